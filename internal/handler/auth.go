package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/solemart/marketplace-api/internal/domain/order"
	"github.com/solemart/marketplace-api/internal/domain/user"
)

const identityKey = "identity"

// Claims is the JWT payload: subject is the user ID, plus role and display
// name.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	UserID string
	Role   user.Role
	Name   string
}

// Actor converts the identity to the domain actor type.
func (id Identity) Actor() order.Actor {
	return order.Actor{UserID: id.UserID, Role: id.Role}
}

// Authenticator verifies and issues HMAC-signed bearer tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthenticator creates an Authenticator with the given signing secret.
func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for a user. Used by the seed tool to mint demo tokens;
// a production deployment gets tokens from an identity provider sharing the
// secret.
func (a *Authenticator) Issue(u *user.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Role: string(u.Role),
		Name: u.Name,
	})
	return token.SignedString(a.secret)
}

func (a *Authenticator) parse(tokenString string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	role := user.Role(claims.Role)
	if !role.Valid() {
		return Identity{}, errors.Errorf("unknown role %q", claims.Role)
	}
	return Identity{UserID: claims.Subject, Role: role, Name: claims.Name}, nil
}

// Require rejects requests without a valid bearer token and stores the
// caller's identity in the gin context.
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: "missing bearer token", Code: codeUnauthorized})
			return
		}

		id, err := a.parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: "invalid token", Code: codeUnauthorized})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not in the allowed
// set. Must run after Require.
func (a *Authenticator) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Message: "insufficient role", Code: codeAccessDenied})
	}
}

// IdentityFrom returns the identity stored by Require. Zero value when the
// request was not authenticated.
func IdentityFrom(c *gin.Context) Identity {
	id, _ := c.Get(identityKey)
	identity, _ := id.(Identity)
	return identity
}

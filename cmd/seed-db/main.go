// Command seed-db loads demo users and a small shoe catalog into the
// database, then prints a bearer token for each demo user so the API can be
// exercised immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/solemart/marketplace-api/internal/domain/product"
	"github.com/solemart/marketplace-api/internal/domain/user"
	"github.com/solemart/marketplace-api/internal/handler"
	"github.com/solemart/marketplace-api/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		jwtSecret   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for demo tokens (or SOLEMART_JWT_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("SOLEMART_JWT_SECRET")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, jwtSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

var demoUsers = []user.User{
	{ID: "usr-client-demo", Name: "Linh Tran", Email: "linh@example.com", Role: user.RoleClient},
	{ID: "usr-partner-sneakerhub", Name: "SneakerHub", Email: "ops@sneakerhub.example.com", Role: user.RolePartner},
	{ID: "usr-partner-runfast", Name: "RunFast Gear", Email: "sales@runfast.example.com", Role: user.RolePartner},
	{ID: "usr-admin-demo", Name: "Marketplace Admin", Email: "admin@example.com", Role: user.RoleAdmin},
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func demoProducts() []product.Product {
	return []product.Product{
		{
			ID:        "prd-urban-runner",
			SellerID:  "usr-partner-sneakerhub",
			Name:      "Urban Runner",
			Brand:     "Stride",
			Category:  "running",
			BasePrice: price("89.90"),
			Active:    true,
			Variants: []product.Variant{
				{
					SKU: "UR-40-BLK", Name: "Urban Runner 40 Black",
					Price: price("89.90"), OriginalPrice: price("109.90"),
					Stock: 25, Available: true,
					Spec: product.Spec{Size: "40", Color: "black", Material: "mesh", Gender: "unisex"},
				},
				{
					SKU: "UR-42-BLK", Name: "Urban Runner 42 Black",
					Price: price("89.90"), OriginalPrice: price("109.90"),
					Stock: 12, Available: true,
					Spec: product.Spec{Size: "42", Color: "black", Material: "mesh", Gender: "unisex"},
				},
				{
					SKU: "UR-42-WHT", Name: "Urban Runner 42 White",
					Price: price("94.90"), OriginalPrice: price("109.90"),
					Stock: 0, Available: true,
					Spec: product.Spec{Size: "42", Color: "white", Material: "mesh", Gender: "unisex"},
				},
			},
		},
		{
			ID:        "prd-trail-blazer",
			SellerID:  "usr-partner-runfast",
			Name:      "Trail Blazer Pro",
			Brand:     "Ridgeline",
			Category:  "hiking",
			BasePrice: price("129.00"),
			Active:    true,
			Variants: []product.Variant{
				{
					SKU: "TB-41-GRN", Name: "Trail Blazer Pro 41 Green",
					Price: price("129.00"), OriginalPrice: price("129.00"),
					Stock: 8, Available: true,
					Spec: product.Spec{Size: "41", Color: "green", Material: "leather", Gender: "men"},
				},
				{
					SKU: "TB-38-GRN", Name: "Trail Blazer Pro 38 Green",
					Price: price("129.00"), OriginalPrice: price("129.00"),
					Stock: 5, Available: false,
					Spec: product.Spec{Size: "38", Color: "green", Material: "leather", Gender: "women"},
				},
			},
		},
		{
			ID:        "prd-retro-court",
			SellerID:  "usr-partner-sneakerhub",
			Name:      "Retro Court Classic",
			Brand:     "Stride",
			Category:  "lifestyle",
			BasePrice: price("74.50"),
			Active:    false,
			Variants: []product.Variant{
				{
					SKU: "RC-43-NVY", Name: "Retro Court Classic 43 Navy",
					Price: price("74.50"), OriginalPrice: price("84.50"),
					Stock: 30, Available: true,
					Spec: product.Spec{Size: "43", Color: "navy", Material: "canvas", Gender: "unisex"},
				},
			},
		},
	}
}

func run(ctx context.Context, databaseURL, jwtSecret string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.NewStore(pool)
	users := postgres.NewUserRepository(store)
	products := postgres.NewProductRepository(store)

	for i := range demoUsers {
		if err := users.Upsert(ctx, &demoUsers[i]); err != nil {
			return errors.Wrapf(err, "seed user %s", demoUsers[i].ID)
		}
	}
	slog.Info("users seeded", slog.Int("count", len(demoUsers)))

	catalog := demoProducts()
	for i := range catalog {
		if err := products.Upsert(ctx, &catalog[i]); err != nil {
			return errors.Wrapf(err, "seed product %s", catalog[i].ID)
		}
	}
	slog.Info("products seeded", slog.Int("count", len(catalog)))

	if jwtSecret == "" {
		slog.Info("no JWT secret given, skipping demo tokens")
		return nil
	}

	auth := handler.NewAuthenticator(jwtSecret, 30*24*time.Hour)
	for i := range demoUsers {
		u := &demoUsers[i]
		token, err := auth.Issue(u)
		if err != nil {
			return errors.Wrapf(err, "issue token for %s", u.ID)
		}
		fmt.Printf("%s (%s):\n  %s\n", u.ID, u.Role, token)
	}
	return nil
}

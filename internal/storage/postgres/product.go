package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/solemart/marketplace-api/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Variants live in their own table keyed (product_id, sku) so stock updates
// lock a single variant row, not the whole product.
type ProductRepository struct {
	store *Store
}

// NewProductRepository returns a ProductRepository using the given store.
func NewProductRepository(store *Store) *ProductRepository {
	return &ProductRepository{store: store}
}

const selectProduct = `SELECT id, seller_id, name, brand, category, base_price, active
	FROM products`

const selectVariants = `SELECT product_id, sku, name, price, original_price, stock, sold,
		available, size, color, material, gender
	FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, sku`

// List returns catalog products matching the filter, each with its variants.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	q := selectProduct + ` WHERE ($1 = '' OR seller_id = $1)
		AND ($2 = '' OR brand = $2)
		AND ($3 = '' OR category = $3)
		AND ($4 OR active)
		ORDER BY name`

	rows, err := r.store.q(ctx).Query(ctx, q, f.SellerID, f.Brand, f.Category, f.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	ids := make([]string, 0, 16)
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Brand, &p.Category, &p.BasePrice, &p.Active); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}
	return products, nil
}

// GetByID returns a single product with its variants, or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := r.store.q(ctx).QueryRow(ctx, selectProduct+` WHERE id = $1`, id).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Brand, &p.Category, &p.BasePrice, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	variants, err := r.variantsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[id]
	return &p, nil
}

func (r *ProductRepository) variantsFor(ctx context.Context, ids []string) (map[string][]product.Variant, error) {
	rows, err := r.store.q(ctx).Query(ctx, selectVariants, ids)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]product.Variant, len(ids))
	for rows.Next() {
		var (
			pid string
			v   product.Variant
		)
		err := rows.Scan(&pid, &v.SKU, &v.Name, &v.Price, &v.OriginalPrice, &v.Stock, &v.Sold,
			&v.Available, &v.Spec.Size, &v.Spec.Color, &v.Spec.Material, &v.Spec.Gender)
		if err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		out[pid] = append(out[pid], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	return out, nil
}

const insertProduct = `INSERT INTO products (id, seller_id, name, brand, category, base_price, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertVariant = `INSERT INTO product_variants
	(product_id, sku, name, price, original_price, stock, sold, available, size, color, material, gender)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Create persists a new product and its variants.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	q := r.store.q(ctx)
	_, err := q.Exec(ctx, insertProduct, p.ID, p.SellerID, p.Name, p.Brand, p.Category, p.BasePrice, p.Active)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	for _, v := range p.Variants {
		if err := r.insertVariantRow(ctx, p.ID, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProductRepository) insertVariantRow(ctx context.Context, productID string, v product.Variant) error {
	_, err := r.store.q(ctx).Exec(ctx, insertVariant,
		productID, v.SKU, v.Name, v.Price, v.OriginalPrice, v.Stock, v.Sold, v.Available,
		v.Spec.Size, v.Spec.Color, v.Spec.Material, v.Spec.Gender,
	)
	if err != nil {
		return fmt.Errorf("creating variant %q of product %q: %w", v.SKU, productID, err)
	}
	return nil
}

// Update rewrites the product row and replaces its variant set. Stock and
// sold counts on surviving variants are taken from the incoming values, so
// callers must pass the current product as loaded.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	q := r.store.q(ctx)
	tag, err := q.Exec(ctx, `UPDATE products
		SET name = $2, brand = $3, category = $4, base_price = $5, active = $6, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Name, p.Brand, p.Category, p.BasePrice, p.Active)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	if _, err := q.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clearing variants of product %q: %w", p.ID, err)
	}
	for _, v := range p.Variants {
		if err := r.insertVariantRow(ctx, p.ID, v); err != nil {
			return err
		}
	}
	return nil
}

const adjustVariant = `UPDATE product_variants
	SET stock = stock + $3, sold = GREATEST(sold + $4, 0)
	WHERE product_id = $1 AND sku = $2 AND stock + $3 >= 0`

// AdjustVariantStock applies a relative stock/sold change to one variant.
// The WHERE predicate is the compare-and-swap: a decrement past zero matches
// no row, leaves the variant untouched, and is reported as
// product.ErrStockExhausted. Under concurrency the UPDATE takes the variant
// row lock, so two transactions decrementing the same variant serialize.
func (r *ProductRepository) AdjustVariantStock(ctx context.Context, productID, sku string, stockDelta, soldDelta int) error {
	q := r.store.q(ctx)
	tag, err := q.Exec(ctx, adjustVariant, productID, sku, stockDelta, soldDelta)
	if err != nil {
		return fmt.Errorf("adjusting variant %q of product %q: %w", sku, productID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row matched: either the variant is gone or the guard refused the
	// decrement. Distinguish so callers can skip missing variants on release.
	var exists bool
	err = q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1 AND sku = $2)`,
		productID, sku).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking variant %q of product %q: %w", sku, productID, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrStockExhausted
}

const upsertProduct = `INSERT INTO products (id, seller_id, name, brand, category, base_price, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, brand = EXCLUDED.brand, category = EXCLUDED.category,
		base_price = EXCLUDED.base_price, active = EXCLUDED.active, updated_at = now()`

const upsertVariant = `INSERT INTO product_variants
	(product_id, sku, name, price, original_price, stock, sold, available, size, color, material, gender)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (product_id, sku) DO UPDATE
	SET name = EXCLUDED.name, price = EXCLUDED.price, original_price = EXCLUDED.original_price,
		stock = EXCLUDED.stock, available = EXCLUDED.available, size = EXCLUDED.size,
		color = EXCLUDED.color, material = EXCLUDED.material, gender = EXCLUDED.gender`

// Upsert inserts or refreshes a product and its variants. Used by the feed
// ingest and seed tools; the sold count of existing variants is preserved.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	q := r.store.q(ctx)
	_, err := q.Exec(ctx, upsertProduct, p.ID, p.SellerID, p.Name, p.Brand, p.Category, p.BasePrice, p.Active)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	for _, v := range p.Variants {
		_, err := q.Exec(ctx, upsertVariant,
			p.ID, v.SKU, v.Name, v.Price, v.OriginalPrice, v.Stock, v.Sold, v.Available,
			v.Spec.Size, v.Spec.Color, v.Spec.Material, v.Spec.Gender,
		)
		if err != nil {
			return fmt.Errorf("upserting variant %q of product %q: %w", v.SKU, p.ID, err)
		}
	}
	return nil
}

// Command feed-ingest imports partner product feeds into the catalog.
//
// A feed is a gzip-compressed NDJSON file, one product per line, as exported
// by partner back offices. Lines are decoded with jx, deduplicated with a
// bloom filter keyed on product ID (first occurrence wins), and upserted by a
// pool of workers. Existing products are refreshed in place; sold counts are
// preserved.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solemart/marketplace-api/internal/domain/product"
	"github.com/solemart/marketplace-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

func main() {
	var (
		feedPath    string
		sellerID    string
		databaseURL string
		workers     int
	)

	flag.StringVar(&feedPath, "feed", "", "path to a gzip-compressed NDJSON product feed")
	flag.StringVar(&sellerID, "seller", "", "seller ID to assign to products missing one")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent upsert workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if feedPath == "" {
		slog.Error("feed path is required: set --feed")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedPath, sellerID, databaseURL, workers); err != nil {
		slog.Error("feed ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("feed ingest completed successfully")
}

func run(ctx context.Context, feedPath, sellerID, databaseURL string, workers int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(postgres.NewStore(pool))

	products := make(chan *product.Product, workers*2)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(products)
		return streamFeed(ctx, feedPath, sellerID, products)
	})
	for range workers {
		g.Go(func() error {
			for p := range products {
				if err := repo.Upsert(ctx, p); err != nil {
					return errors.Wrapf(err, "upsert product %s", p.ID)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// streamFeed reads one feed line at a time, skipping duplicate product IDs
// and malformed lines.
func streamFeed(ctx context.Context, path, sellerID string, out chan<- *product.Product) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var total, skipped uint64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		total++
		if total%progressEvery == 0 {
			slog.Info("feed progress", slog.Uint64("lines", total), slog.Uint64("skipped", skipped))
		}

		p, err := decodeFeedLine(scanner.Bytes(), sellerID)
		if err != nil {
			slog.Warn("skipping malformed feed line", slog.Uint64("line", total), slog.String("error", err.Error()))
			skipped++
			continue
		}
		if seen.TestOrAddString(p.ID) {
			skipped++
			continue
		}

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("feed scanned", slog.Uint64("lines", total), slog.Uint64("skipped", skipped))
	return nil
}

// decodeFeedLine parses one NDJSON product record.
func decodeFeedLine(line []byte, sellerID string) (*product.Product, error) {
	p := &product.Product{Active: true}

	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			return decodeString(d, &p.ID)
		case "sellerId":
			return decodeString(d, &p.SellerID)
		case "name":
			return decodeString(d, &p.Name)
		case "brand":
			return decodeString(d, &p.Brand)
		case "category":
			return decodeString(d, &p.Category)
		case "basePrice":
			return decodeDecimal(d, &p.BasePrice)
		case "active":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			p.Active = v
			return nil
		case "variants":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}

	if p.ID == "" {
		return nil, errors.New("missing product id")
	}
	if p.SellerID == "" {
		p.SellerID = sellerID
	}
	if p.SellerID == "" {
		return nil, errors.Errorf("product %s has no seller and no --seller given", p.ID)
	}
	if len(p.Variants) == 0 {
		return nil, errors.Errorf("product %s has no variants", p.ID)
	}
	return p, nil
}

func decodeVariant(d *jx.Decoder) (product.Variant, error) {
	v := product.Variant{Available: true}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "sku":
			return decodeString(d, &v.SKU)
		case "name":
			return decodeString(d, &v.Name)
		case "price":
			return decodeDecimal(d, &v.Price)
		case "originalPrice":
			return decodeDecimal(d, &v.OriginalPrice)
		case "stock":
			n, err := d.Int()
			if err != nil {
				return err
			}
			v.Stock = n
			return nil
		case "available":
			b, err := d.Bool()
			if err != nil {
				return err
			}
			v.Available = b
			return nil
		case "size":
			return decodeString(d, &v.Spec.Size)
		case "color":
			return decodeString(d, &v.Spec.Color)
		case "material":
			return decodeString(d, &v.Spec.Material)
		case "gender":
			return decodeString(d, &v.Spec.Gender)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return v, err
	}
	if v.SKU == "" {
		return v, errors.New("variant missing sku")
	}
	return v, nil
}

func decodeString(d *jx.Decoder, dst *string) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return err
		}
		raw = s
	default:
		num, err := d.Num()
		if err != nil {
			return err
		}
		raw = num.String()
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

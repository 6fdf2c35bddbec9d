package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/stock"
	"github.com/xenking/malinha-engine/internal/storage/postgres"
)

type productJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
	Variants  []variantJSON   `json:"variants"`
}

type variantJSON struct {
	Color     string          `json:"color"`
	SizeStock []sizeStockJSON `json:"sizeStock"`
}

type sizeStockJSON struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type customerJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type seedJSON struct {
	Products  []productJSON  `json:"products"`
	Customers []customerJSON `json:"customers"`
}

func main() {
	var (
		databaseURL  string
		seedFile     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or MALINHA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MALINHA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("MALINHA_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or MALINHA_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("MALINHA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedJSON
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	if err := seedCustomers(ctx, pool, seed.Customers); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customers []customerJSON) error {
	slog.Info("upserting customers", slog.Int("count", len(customers)))

	for _, c := range customers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO customers (id, name, phone)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone`,
			c.ID, c.Name, c.Phone,
		); err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		total := 0
		for _, v := range p.Variants {
			for _, s := range v.SizeStock {
				total += s.Quantity
			}
		}

		if _, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, cost_price, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price,
			    cost_price = EXCLUDED.cost_price, stock = EXCLUDED.stock`,
			p.ID, p.Name, p.Price, p.CostPrice, total,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		// Simple goods get the implicit default-color variant.
		variants := p.Variants
		if len(variants) == 0 {
			variants = []variantJSON{{Color: stock.DefaultColor}}
		}

		for _, v := range variants {
			sizes := v.SizeStock
			if len(sizes) == 0 {
				sizes = []sizeStockJSON{{Size: "U", Quantity: 0}}
			}
			for _, s := range sizes {
				if _, err := pool.Exec(ctx, `
					INSERT INTO variants (id, product_id, color, size, quantity)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (product_id, color, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
					uuid.New(), p.ID, v.Color, s.Size, s.Quantity,
				); err != nil {
					return errors.Wrapf(err, "upsert variant %s/%s/%s", p.ID, v.Color, s.Size)
				}
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`,
		"default", keyHash, "Default staff key", []string{"orders", "sales"},
	); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}

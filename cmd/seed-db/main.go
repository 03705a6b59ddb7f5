// Command seed-db applies the schema and seeds a demo catalog, discount
// rules, coupons and an API key.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/app"
	"github.com/xenking/storefront-pricing/internal/domain/auth"
	"github.com/xenking/storefront-pricing/internal/handler"
	"github.com/xenking/storefront-pricing/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	apiKey       string
	apiKeyPepper string
	couponsValid time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.DurationVar(&opts.couponsValid, "coupons-valid-for", 90*24*time.Hour, "validity window of seeded coupons")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := app.LoadDotEnv(); err != nil {
		lg.Fatal("Load .env", zap.Error(err))
	}
	opts.databaseURL = firstNonEmpty(opts.databaseURL, os.Getenv("SHOP_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	opts.apiKey = firstNonEmpty(opts.apiKey, os.Getenv("SHOP_SEED_API_KEY"))
	opts.apiKeyPepper = firstNonEmpty(opts.apiKeyPepper, os.Getenv("SHOP_API_KEY_PEPPER"))
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or SHOP_SEED_API_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, lg, postgres.NewCatalogWriter(pool)); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedRules(ctx, lg, postgres.NewRuleRepository(pool)); err != nil {
		return errors.Wrap(err, "seed rules")
	}
	now := time.Now().UTC().Truncate(time.Hour)
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool), now, now.Add(opts.couponsValid)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, lg, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedCatalog(ctx context.Context, lg *zap.Logger, w *postgres.CatalogWriter) error {
	for _, b := range brands {
		if err := w.UpsertBrand(ctx, b.id, b.name); err != nil {
			return err
		}
	}
	for _, c := range categories {
		if err := w.UpsertCategory(ctx, c.id, c.name); err != nil {
			return err
		}
	}
	for _, a := range attributes {
		if err := w.UpsertAttributeValue(ctx, a); err != nil {
			return err
		}
	}
	for _, p := range products() {
		if err := w.UpsertProduct(ctx, &p); err != nil {
			return err
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name), zap.Int("variants", len(p.Variants)))
	}
	return nil
}

func seedRules(ctx context.Context, lg *zap.Logger, repo *postgres.RuleRepository) error {
	for _, r := range rules() {
		if err := repo.Upsert(ctx, &r); err != nil {
			return err
		}
		lg.Info("Upserted rule", zap.String("id", r.ID), zap.Stringer("scope", r.Scope))
	}
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, from, to time.Time) error {
	for _, c := range coupons(from, to) {
		if err := repo.Upsert(ctx, &c); err != nil {
			return err
		}
		lg.Info("Upserted coupon", zap.String("code", c.Code), zap.String("description", c.Description))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, repo *postgres.APIKeyRepository, key, pepper string) error {
	info := &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: handler.HashAPIKey([]byte(pepper), key),
		Name:    "Default storefront key",
		Scopes:  []string{auth.ScopePricing, auth.ScopeOrders},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}
	lg.Info("Upserted API key", zap.String("id", info.ID), zap.Strings("scopes", info.Scopes))
	return nil
}

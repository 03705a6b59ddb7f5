// Command coupon-import bulk loads coupons from gzip-compressed JSON-lines
// files. Codes that appear in more than one file are rejected.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-pricing/internal/app"
	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/storage/postgres"
)

type options struct {
	dataDir     string
	databaseURL string
	expected    uint
	workers     int
	dryRun      bool
}

// couponWriter stores coupons. *postgres.CouponRepository implements it.
type couponWriter interface {
	Upsert(ctx context.Context, c *discount.Coupon) error
}

type stats struct {
	imported  atomic.Int64
	invalid   atomic.Int64
	duplicate atomic.Int64
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.jsonl.gz coupon files")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&opts.expected, "expected-codes", 1_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.IntVar(&opts.workers, "workers", 8, "concurrent database writers")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate and deduplicate without writing")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := app.LoadDotEnv(); err != nil {
		lg.Fatal("Load .env", zap.Error(err))
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts, flag.Args()); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options, args []string) error {
	files := args
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob(filepath.Join(opts.dataDir, "*.jsonl.gz"))
		if err != nil {
			return errors.Wrap(err, "list data dir")
		}
	}
	if len(files) == 0 {
		return errors.Errorf("no coupon files in %s", opts.dataDir)
	}
	sort.Strings(files)

	var w couponWriter = dryRunWriter{}
	if !opts.dryRun {
		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()
		w = postgres.NewCouponRepository(pool)
	}

	st, err := importFiles(ctx, lg, w, files, opts)
	if err != nil {
		return err
	}
	lg.Info("Coupon import completed",
		zap.Int("files", len(files)),
		zap.Int64("imported", st.imported.Load()),
		zap.Int64("invalid", st.invalid.Load()),
		zap.Int64("duplicate", st.duplicate.Load()),
		zap.Bool("dry_run", opts.dryRun),
	)
	return nil
}

type dryRunWriter struct{}

func (dryRunWriter) Upsert(context.Context, *discount.Coupon) error { return nil }

// importFiles validates every record, drops codes duplicated across files or
// repeated within a file, and upserts the rest with a bounded number of
// concurrent writers.
func importFiles(ctx context.Context, lg *zap.Logger, w couponWriter, files []string, opts options) (*stats, error) {
	lg.Info("Scanning for cross-file duplicates", zap.Strings("files", files))
	dups, err := findDuplicates(ctx, lg, files, opts.expected)
	if err != nil {
		return nil, errors.Wrap(err, "find duplicates")
	}
	lg.Info("Duplicate scan complete", zap.Int("duplicates", len(dups)))

	v := validator.New(validator.WithRequiredStructEnabled())
	st := &stats{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))
	for _, path := range files {
		seen := make(map[string]struct{})
		err := streamLines(gctx, path, func(n int, line []byte) error {
			rec, c, err := parseRecord(v, line)
			if err != nil {
				st.invalid.Add(1)
				lg.Warn("Invalid coupon record", zap.String("file", path), zap.Int("line", n), zap.Error(err))
				return nil
			}
			if _, ok := dups[rec.key()]; ok {
				st.duplicate.Add(1)
				lg.Warn("Code present in several files", zap.String("file", path), zap.Int("line", n), zap.String("code", rec.Code))
				return nil
			}
			if _, ok := seen[rec.key()]; ok {
				st.duplicate.Add(1)
				lg.Warn("Code repeated in file", zap.String("file", path), zap.Int("line", n), zap.String("code", rec.Code))
				return nil
			}
			seen[rec.key()] = struct{}{}

			g.Go(func() error {
				if err := w.Upsert(gctx, c); err != nil {
					return errors.Wrapf(err, "%s:%d", path, n)
				}
				if total := st.imported.Add(1); total%progressEvery == 0 {
					lg.Info("Import progress", zap.Int64("imported", total))
				}
				return nil
			})
			return nil
		})
		if err != nil {
			// A failed writer cancels gctx; report its error, not the cancellation.
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			return nil, errors.Wrapf(err, "import %s", path)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

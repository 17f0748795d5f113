package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineBytes  = 1 << 20
)

type options struct {
	pattern     string
	databaseURL string
	batchSize   int
	dryRun      bool
}

func main() {
	var opts options

	flag.StringVar(&opts.pattern, "files", "data/*.jsonl.gz", "glob of gzipped JSON-lines coupon files")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.batchSize, "batch-size", 500, "coupons per upsert batch")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "decode and deduplicate without writing")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.batchSize <= 0 {
		opts.batchSize = 500
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrapf(err, "glob %s", opts.pattern)
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", opts.pattern)
	}
	sort.Strings(files)

	slog.Info("reading coupon files", slog.Int("files", len(files)))

	perFile, err := readFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read coupon files")
	}

	rules, dups := dedupe(perFile, bloomFPR)
	slog.Info("coupons decoded",
		slog.Int("unique", len(rules)),
		slog.Int("duplicates", dups),
	)

	if opts.dryRun || len(rules) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := writeCoupons(ctx, postgres.NewCouponRepository(pool), rules, opts.batchSize); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	return nil
}

// readFiles decodes every file concurrently. Results keep file order.
func readFiles(ctx context.Context, files []string) ([][]*coupon.Rule, error) {
	results := make([][]*coupon.Rule, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rules, err := readFile(ctx, f)
			if err != nil {
				return err
			}
			results[i] = rules
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// readFile decodes one file. Malformed lines are logged and skipped.
func readFile(ctx context.Context, path string) ([]*coupon.Rule, error) {
	var (
		rules   []*coupon.Rule
		line    int
		skipped int
	)

	if err := streamGzFile(ctx, path, func(b []byte) {
		line++
		if len(b) == 0 {
			return
		}
		rule, err := decodeRule(b)
		if err != nil {
			skipped++
			slog.Warn("skipping coupon",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			return
		}
		rules = append(rules, rule)
		if len(rules)%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", path), slog.Int("coupons", len(rules)))
		}
	}); err != nil {
		return nil, err
	}

	slog.Info("file complete",
		slog.String("file", path),
		slog.Int("coupons", len(rules)),
		slog.Int("skipped", skipped),
	)
	return rules, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

type batchWriter interface {
	UpsertBatch(ctx context.Context, rules []*coupon.Rule) error
}

// writeCoupons upserts rules in batches.
func writeCoupons(ctx context.Context, w batchWriter, rules []*coupon.Rule, size int) error {
	slog.Info("writing coupons to database", slog.Int("count", len(rules)))

	for start := 0; start < len(rules); start += size {
		end := min(start+size, len(rules))
		if err := w.UpsertBatch(ctx, rules[start:end]); err != nil {
			return errors.Wrapf(err, "batch at %d", start)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(rules)))
	}
	return nil
}

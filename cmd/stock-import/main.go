// Command stock-import applies bulk stock snapshots to the ledger.
//
// Suppliers deliver gzip-compressed JSON-lines files, one record per variant:
//
//	{"sku":"VEST-01","productId":"p1","color":"Vermelho","size":"M","quantity":4}
//
// A SKU appearing in more than one file is ambiguous (two locations claiming
// the same physical units), so duplicated SKUs are detected up front with
// per-file bloom filters and skipped; everything else is applied as a restock
// through the ledger, keeping aggregates and the movement audit consistent.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/malinha-engine/internal/domain/stock"
	"github.com/xenking/malinha-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// record is one stock snapshot line.
type record struct {
	SKU       string
	ProductID string
	Color     string
	Size      string
	Quantity  int
}

// fileResult holds candidate duplicate SKUs found in a single file.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: stock-import [flags] snapshot1.gz [snapshot2.gz ...]")
		os.Exit(1)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL); err != nil {
		slog.Error("stock import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter per file, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find SKUs appearing in 2+ files.
	slog.Info("pass 2: detecting duplicated SKUs")

	duplicates, err := findDuplicates(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find duplicated SKUs")
	}

	if len(duplicates) > 0 {
		slog.Warn("skipping SKUs present in multiple snapshot files", slog.Int("count", len(duplicates)))
	}

	// Pass 3: apply unique records through the ledger.
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	db := postgres.NewDB(pool)
	ledger := postgres.NewLedger(pool)

	for _, f := range files {
		if err := applyFile(ctx, db, ledger, f, duplicates); err != nil {
			return errors.Wrapf(err, "apply %s", f)
		}
	}
	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(rec record) error {
			filter.AddString(rec.SKU)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("records", count))
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("total_records", count))
		filters[idx] = filter
		return nil
	}
}

// findDuplicates re-streams each file and checks SKUs against OTHER files'
// bloom filters. A SKU is duplicated if it appears in 2 or more files.
func findDuplicates(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]bool, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for sku, mask := range r.candidates {
			merged[sku] |= mask
		}
	}

	duplicates := make(map[string]bool)
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			duplicates[sku] = true
		}
	}
	return duplicates, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)

		if err := streamGzFile(ctx, path, func(rec record) error {
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(rec.SKU) {
					candidates[rec.SKU] |= fileBit
					break
				}
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for duplicates", idx+1)
		}

		slog.Info("pass 2 complete", slog.Int("file", idx+1), slog.Int("candidates", len(candidates)))
		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// applyFile streams one snapshot and restocks every non-duplicated record.
// Each record is its own transaction so a single unknown variant does not
// abort the rest of the import.
func applyFile(ctx context.Context, db *postgres.DB, ledger *postgres.Ledger, path string, duplicates map[string]bool) error {
	var applied, skipped uint64

	err := streamGzFile(ctx, path, func(rec record) error {
		if duplicates[rec.SKU] {
			skipped++
			return nil
		}

		ref := stock.VariantRef{ProductID: rec.ProductID, Color: rec.Color, Size: rec.Size}
		err := db.InTx(ctx, func(tx stock.Tx) error {
			_, err := ledger.Adjust(ctx, tx, ref, rec.Quantity, stock.ReasonRestock)
			return err
		})
		if err != nil {
			var notFound *stock.VariantNotFoundError
			if errors.As(err, &notFound) {
				slog.Warn("unknown variant, skipping", slog.String("sku", rec.SKU), slog.String("variant", ref.String()))
				skipped++
				return nil
			}
			return errors.Wrapf(err, "restock %s", ref)
		}

		applied++
		if applied%progressEvery == 0 {
			slog.Info("apply progress", slog.String("file", path), slog.Uint64("applied", applied))
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("apply complete", slog.String("file", path),
		slog.Uint64("applied", applied), slog.Uint64("skipped", skipped))
	return nil
}

// streamGzFile opens a gzip-compressed JSON-lines file and calls fn for each
// decoded record. Lines are decoded with jx to avoid per-line reflection.
func streamGzFile(ctx context.Context, path string, fn func(record) error) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := decodeRecord(line)
		if err != nil {
			return errors.Wrapf(err, "decode line in %s", path)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// decodeRecord parses one snapshot line.
func decodeRecord(line []byte) (record, error) {
	var rec record
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			rec.SKU, err = d.Str()
		case "productId":
			rec.ProductID, err = d.Str()
		case "color":
			rec.Color, err = d.Str()
		case "size":
			rec.Size, err = d.Str()
		case "quantity":
			rec.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return rec, err
}

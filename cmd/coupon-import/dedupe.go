package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	maxLineBytes  = 64 << 10
	progressEvery = 1_000_000
)

// streamLines opens a gzip-compressed JSON-lines file and calls fn for each
// non-empty line with its 1-based line number. The line buffer is reused.
func streamLines(ctx context.Context, path string, fn func(n int, line []byte) error) error {
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
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	n := 0
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(n, scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// codeOf extracts the normalized code of a line, or "" when the line does
// not decode. Validation happens in the import pass.
func codeOf(line []byte) string {
	var r couponRecord
	if err := r.Decode(jx.DecodeBytes(line)); err != nil {
		return ""
	}
	return r.key()
}

// findDuplicates returns the codes present in two or more files. Each file
// is summarized into a bloom filter; codes that hit another file's filter
// are then confirmed exactly, so false positives never reject a coupon.
func findDuplicates(ctx context.Context, lg *zap.Logger, files []string, expected uint) (map[string]struct{}, error) {
	if len(files) < 2 {
		return map[string]struct{}{}, nil
	}
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files per import", bits.UintSize)
	}

	// Pass 1: one filter per file.
	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(max(expected, 1), bloomFPR)
			var count int
			err := streamLines(gctx, path, func(_ int, line []byte) error {
				if code := codeOf(line); code != "" {
					filter.AddString(code)
					count++
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			lg.Info("Indexed file", zap.String("file", path), zap.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Pass 2: collect candidates that hit another file's filter, tagged
	// with the file they were seen in.
	candidates := make([]map[string]uint, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			seen := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := streamLines(gctx, path, func(_ int, line []byte) error {
				code := codeOf(line)
				if code == "" {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						seen[code] |= bit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s for duplicates", path)
			}
			candidates[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A code flagged from two files really is in both.
	merged := make(map[string]uint)
	for _, c := range candidates {
		for code, mask := range c {
			merged[code] |= mask
		}
	}
	dups := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

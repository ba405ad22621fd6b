package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/pesr/encoding/counts"
	"github.com/grailbio/pesr/pesr"
	"github.com/klauspost/compress/gzip"
)

type testPaths struct {
	vcf, splits, pairs, out string
}

// openText opens a plain or gzipped text file.  The returned function closes
// it.
func openText(ctx context.Context, path string) (io.Reader, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	closeFile := func() error { return in.Close(ctx) }
	if fileio.DetermineType(path) != fileio.Gzip {
		return in.Reader(ctx), closeFile, nil
	}
	gz, err := gzip.NewReader(in.Reader(ctx))
	if err != nil {
		closeFile() // nolint: errcheck
		return nil, nil, errors.E(errors.Invalid, path, err)
	}
	return gz, func() error {
		err := gz.Close()
		if e := closeFile(); e != nil && err == nil {
			err = e
		}
		return err
	}, nil
}

// readSampleList reads one sample name per line.  Blank lines and lines
// starting with '#' are skipped.
func readSampleList(ctx context.Context, path string) (samples []string, err error) {
	if path == "" {
		return nil, nil
	}
	r, closeText, err := openText(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := closeText(); e != nil && err == nil {
			err = e
		}
	}()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		samples = append(samples, s)
	}
	return samples, scanner.Err()
}

func (f *testFlags) opts(ctx context.Context, mode pesr.Mode) (pesr.Opts, error) {
	opts := pesr.DefaultOpts
	opts.Mode = mode
	opts.NBackground = *f.background
	opts.Seed = *f.seed
	opts.BedPath = *f.bed
	opts.BedInvert = *f.bedInvert
	opts.BedOneBased = *f.bedOneBased
	opts.Region = *f.region
	opts.Parallelism = *f.parallelism
	opts.Header = *f.header
	opts.FailFast = *f.failFast
	if f.window != nil {
		opts.Window = *f.window
	}
	if f.windowIn != nil {
		opts.WindowIn = *f.windowIn
		opts.WindowOut = *f.windowOut
	}
	var err error
	if opts.Include, err = readSampleList(ctx, *f.include); err != nil {
		return opts, err
	}
	if opts.Exclude, err = readSampleList(ctx, *f.exclude); err != nil {
		return opts, err
	}
	return opts, nil
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return *flag
}

func runTest(ctx context.Context, mode pesr.Mode, flags *testFlags, paths testPaths) (err error) {
	opts, err := flags.opts(ctx, mode)
	if err != nil {
		return err
	}
	recs, rejected, err := pesr.LoadRecords(ctx, paths.vcf, opts)
	if err != nil {
		return err
	}
	var ev pesr.Evidence
	if paths.splits != "" {
		ev.Splits = counts.NewProvider(paths.splits, counts.ProviderOpts{Index: flagValue(flags.splitsIndex)})
		defer closeProvider(ev.Splits, &err)
	}
	if paths.pairs != "" {
		ev.Pairs = counts.NewProvider(paths.pairs, counts.ProviderOpts{Index: flagValue(flags.pairsIndex)})
		defer closeProvider(ev.Pairs, &err)
	}
	runner, err := pesr.NewRunner(opts, ev, nil)
	if err != nil {
		return err
	}
	w, err := pesr.CreateRowWriter(ctx, paths.out, opts.Header)
	if err != nil {
		return err
	}
	stats, err := runner.Run(ctx, recs, w)
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return err
	}
	log.Printf("%s: wrote %d records (%d rejected, %d skipped)", paths.out, stats.Tested, rejected, stats.Skipped)
	if stats.Failed > 0 {
		return errors.E(stats.FirstErr, fmt.Sprintf("%d of %d records failed; first failure", stats.Failed, stats.Records))
	}
	return nil
}

func closeProvider(p counts.Provider, err *error) {
	if e := p.Close(); e != nil && *err == nil {
		*err = e
	}
}

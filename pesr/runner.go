// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pesr

import (
	"context"
	"runtime"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/pesr/encoding/counts"
	"github.com/grailbio/pesr/encoding/svvcf"
	"github.com/grailbio/pesr/interval"
)

// Evidence holds the providers a run reads from.  Splits is required for
// SR and PESR runs, Pairs for PE and PESR runs.
type Evidence struct {
	Splits counts.Provider
	Pairs  counts.Provider
}

// RowSink receives the rows of one record at a time.
type RowSink interface {
	Write(rows []Row) error
}

// Stats summarizes a run.
type Stats struct {
	// Records is the number of records processed.
	Records int
	// Tested counts records whose rows were written.
	Tested int
	// Skipped counts records without called samples.
	Skipped int
	// Failed counts records dropped because of an error.
	Failed int
	// FirstErr is the error of the first failed record, in input order.
	FirstErr error
}

// Runner tests records in parallel and writes their rows in input order.
type Runner struct {
	opts    Opts
	ev      Evidence
	chooser BackgroundChooser
}

// NewRunner creates a Runner.  If chooser is nil, a SampleChooser built from
// opts is used.
func NewRunner(opts Opts, ev Evidence, chooser BackgroundChooser) (*Runner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Mode != PE && ev.Splits == nil {
		return nil, errors.E(errors.Invalid, opts.Mode.String(), "test needs a split-count file")
	}
	if opts.Mode != SR && ev.Pairs == nil {
		return nil, errors.E(errors.Invalid, opts.Mode.String(), "test needs a discordant-pair file")
	}
	if chooser == nil {
		chooser = NewSampleChooser(opts.NBackground, opts.Seed, opts.Include, opts.Exclude)
	}
	return &Runner{opts: opts, ev: ev, chooser: chooser}, nil
}

// newTester borrows handles for one worker.  The returned function
// releases them.
func (r *Runner) newTester(ctx context.Context) (Tester, func() error, error) {
	var handles []counts.Handle
	release := func() error {
		var err error
		for _, h := range handles {
			if e := h.Close(); e != nil && err == nil {
				err = e
			}
		}
		return err
	}
	open := func(p counts.Provider) (counts.Handle, error) {
		h, err := p.NewHandle(ctx)
		if err != nil {
			release() // nolint: errcheck
			return nil, err
		}
		handles = append(handles, h)
		return h, nil
	}
	var sr *SRTest
	var pe *PETest
	if r.opts.Mode != PE {
		h, err := open(r.ev.Splits)
		if err != nil {
			return nil, nil, err
		}
		sr = NewSRTest(h, r.opts.Window)
	}
	if r.opts.Mode != SR {
		h, err := open(r.ev.Pairs)
		if err != nil {
			return nil, nil, err
		}
		pe = NewPETest(h, r.opts.WindowIn, r.opts.WindowOut)
	}
	switch r.opts.Mode {
	case SR:
		return sr, release, nil
	case PE:
		return pe, release, nil
	}
	return &PESRTest{SR: sr, PE: pe}, release, nil
}

type recordResult struct {
	rows    []Row
	skipped bool
	err     error
}

func (r *Runner) testRecord(ctx context.Context, t Tester, rec *BreakpointRecord) recordResult {
	g, err := r.chooser.ChooseBackground(rec)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		return recordResult{err: errors.E(err, "record", rec.ID)}
	}
	if len(g.Called) == 0 {
		log.Debug.Printf("%s: no called samples, skipping", rec.ID)
		return recordResult{skipped: true}
	}
	rows, err := t.Test(ctx, rec, g)
	if err != nil {
		return recordResult{err: errors.E(err, "record", rec.ID)}
	}
	return recordResult{rows: rows}
}

// Run tests recs and writes their rows to out in input order.  A record
// that fails is logged and left out of the output, unless Opts.FailFast is
// set, in which case Run stops and returns the error.
func (r *Runner) Run(ctx context.Context, recs []*BreakpointRecord, out RowSink) (Stats, error) {
	var stats Stats
	if len(recs) == 0 {
		return stats, nil
	}
	parallelism := r.opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(recs) {
		parallelism = len(recs)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := syncqueue.NewOrderedQueue(4 * parallelism)
	var closeOnce sync.Once
	closeQueue := func(err error) {
		closeOnce.Do(func() {
			if e := queue.Close(err); e != nil && err == nil {
				log.Error.Printf("pesr: closing result queue: %v", e)
			}
		})
	}

	var (
		wg       sync.WaitGroup
		writeErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if writeErr = r.drain(queue, out, &stats); writeErr != nil {
			closeQueue(writeErr)
			cancel()
		}
	}()

	log.Printf("pesr: testing %d records (%s, %d jobs)", len(recs), r.opts.Mode, parallelism)
	err := traverse.Each(parallelism, func(worker int) (err error) {
		defer func() {
			if err != nil {
				// Unblock the other workers and the writer.
				closeQueue(err)
			}
		}()
		tester, release, err := r.newTester(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if e := release(); e != nil && err == nil {
				err = e
			}
		}()
		for i := worker; i < len(recs); i += parallelism {
			res := r.testRecord(ctx, tester, recs[i])
			if res.err != nil && r.opts.FailFast {
				return res.err
			}
			if err := queue.Insert(i, res); err != nil {
				return err
			}
		}
		return nil
	})
	closeQueue(err)
	wg.Wait()
	if err == nil {
		err = writeErr
	}
	log.Printf("pesr: %d records, %d tested, %d skipped, %d failed",
		stats.Records, stats.Tested, stats.Skipped, stats.Failed)
	return stats, err
}

func (r *Runner) drain(queue *syncqueue.OrderedQueue, out RowSink, stats *Stats) error {
	for {
		entry, ok, err := queue.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		res := entry.(recordResult)
		stats.Records++
		switch {
		case res.err != nil:
			log.Error.Printf("pesr: %v", res.err)
			stats.Failed++
			if stats.FirstErr == nil {
				stats.FirstErr = res.err
			}
		case res.skipped:
			stats.Skipped++
		default:
			if err := out.Write(res.rows); err != nil {
				return err
			}
			stats.Tested++
		}
	}
}

// regionFilter builds the union of Opts.Region and the intervals of
// Opts.BedPath.  It returns nil if neither is set.
func regionFilter(opts Opts) (*interval.BEDUnion, error) {
	if opts.BedPath == "" && opts.Region == "" {
		return nil, nil
	}
	var entries []interval.Entry
	if opts.BedPath != "" {
		bed, err := interval.NewBEDUnionFromPath(opts.BedPath, interval.NewBEDOpts{
			Invert:        opts.BedInvert,
			OneBasedInput: opts.BedOneBased,
		})
		if err != nil {
			return nil, errors.E(errors.Invalid, opts.BedPath, err)
		}
		entries = bed.Entries()
	}
	if opts.Region != "" {
		e, err := interval.ParseRegionString(opts.Region)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		entries = append(entries, e)
	}
	interval.SortEntries(entries)
	u, err := interval.NewBEDUnionFromEntries(entries, interval.NewBEDOpts{})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LoadRecords reads and standardizes the records of a VCF.  Records that
// cannot be standardized are logged and counted in rejected.  If a region
// filter is configured, only records with at least one end inside it are
// kept.
func LoadRecords(ctx context.Context, path string, opts Opts) (recs []*BreakpointRecord, rejected int, err error) {
	regions, err := regionFilter(opts)
	if err != nil {
		return nil, 0, err
	}
	hdr, vrecs, err := svvcf.ReadFile(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	for _, v := range vrecs {
		rec, err := NewBreakpointRecord(hdr, v)
		if err != nil {
			log.Error.Printf("%s: %v", path, err)
			rejected++
			continue
		}
		if regions != nil &&
			!regions.ContainsByName(rec.Chrom, interval.PosType(rec.PosA-1)) &&
			!regions.ContainsByName(rec.Chrom2, interval.PosType(rec.PosB-1)) {
			continue
		}
		recs = append(recs, rec)
	}
	log.Printf("%s: %d records loaded, %d rejected", path, len(recs), rejected)
	return recs, rejected, nil
}

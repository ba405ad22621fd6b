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

	"github.com/grailbio/base/log"
	"github.com/grailbio/pesr/encoding/counts"
)

// Tester runs one kind of evidence test on a record.
type Tester interface {
	Test(ctx context.Context, rec *BreakpointRecord, g SampleGroup) ([]Row, error)
}

// SRTest tests split-read enrichment around both breakpoint ends.  An
// SRTest borrows its handle and is not thread safe.
type SRTest struct {
	// Window is the radius scanned around each end.
	Window int
	Splits counts.Handle
}

// NewSRTest creates an SRTest.  A window of 0 tests pos alone.
func NewSRTest(splits counts.Handle, window int) *SRTest {
	return &SRTest{Window: window, Splits: splits}
}

// evidence returns the split counts at pos on the clip side matching
// strand.  Positions <= 0 have no evidence and are not queried.
func (t *SRTest) evidence(ctx context.Context, chrom string, pos int, strand counts.Strand) ([]counts.Record, error) {
	if pos <= 0 {
		return nil, nil
	}
	recs, err := t.Splits.Splits(ctx, chrom, pos, pos)
	if err != nil {
		return nil, err
	}
	clip := strand.Clip()
	n := 0
	for _, r := range recs {
		if r.Clip == clip && r.Pos == pos && r.Chrom == chrom {
			recs[n] = r
			n++
		}
	}
	return recs[:n], nil
}

// scan tests every position in [pos-Window, pos+Window] in increasing
// order and passes each result to visit.
func (t *SRTest) scan(ctx context.Context, chrom string, pos int, strand counts.Strand, g SampleGroup, visit func(TestResult)) error {
	for p := pos - t.Window; p <= pos+t.Window; p++ {
		recs, err := t.evidence(ctx, chrom, p, strand)
		if err != nil {
			return err
		}
		stat := Summarize(recs, g)
		dist := p - pos
		if dist < 0 {
			dist = -dist
		}
		visit(TestResult{
			Pos:          p,
			GroupStat:    stat,
			Significance: Score(stat.Called, stat.Background),
			Dist:         dist,
			HasDist:      true,
		})
	}
	return nil
}

// ScanEnd returns the best-supported position within Window of pos: the
// most significant one, and among equally significant positions the one
// farthest from pos.  Equally distant ties go to the lower position.
func (t *SRTest) ScanEnd(ctx context.Context, chrom string, pos int, strand counts.Strand, g SampleGroup) (TestResult, error) {
	var (
		best TestResult
		seen bool
	)
	err := t.scan(ctx, chrom, pos, strand, g, func(r TestResult) {
		if !seen || r.beats(best) {
			best, seen = r, true
		}
	})
	return best, err
}

// Test implements Tester.  It returns the posA, posB and sum rows.
func (t *SRTest) Test(ctx context.Context, rec *BreakpointRecord, g SampleGroup) ([]Row, error) {
	a, b, joint, err := t.testEnds(ctx, rec, g)
	if err != nil {
		return nil, err
	}
	return FormatRows(rec.ID, a, b, joint), nil
}

func (t *SRTest) testEnds(ctx context.Context, rec *BreakpointRecord, g SampleGroup) (a, b, joint TestResult, err error) {
	if a, err = t.ScanEnd(ctx, rec.Chrom, rec.PosA, rec.StrandA, g); err != nil {
		return
	}
	a.Coord = CoordA
	if b, err = t.ScanEnd(ctx, rec.Chrom2, rec.PosB, rec.StrandB, g); err != nil {
		return
	}
	b.Coord = CoordB
	joint = Combine(a, b)
	if log.At(log.Debug) {
		log.Debug.Printf("%s: posA %d (%.3f), posB %d (%.3f), sum %.3f",
			rec.ID, a.Pos, a.Significance, b.Pos, b.Significance, joint.Significance)
	}
	return
}

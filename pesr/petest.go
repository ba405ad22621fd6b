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

	"github.com/grailbio/pesr/encoding/counts"
)

// PETest tests enrichment of discordant read pairs joining the two ends of
// a breakpoint.  A PETest borrows its handle and is not thread safe.
type PETest struct {
	// WindowIn and WindowOut bound the search on the side of each end that
	// lies inside the variant and the side that lies outside of it.
	WindowIn  int
	WindowOut int
	Pairs     counts.Handle
}

// NewPETest creates a PETest.
func NewPETest(pairs counts.Handle, windowIn, windowOut int) *PETest {
	return &PETest{WindowIn: windowIn, WindowOut: windowOut, Pairs: pairs}
}

// window returns the range in which reads supporting a breakpoint end at
// pos are expected.  Reads supporting a '+' end lie left of it.
func (t *PETest) window(pos int, strand counts.Strand) (start, end int) {
	if strand == counts.StrandPlus {
		return pos - t.WindowOut, pos + t.WindowIn
	}
	return pos - t.WindowIn, pos + t.WindowOut
}

// supporting counts, per sample, the pairs with one end near posA and the
// other near posB, in the strand configuration of the record.
func (t *PETest) supporting(ctx context.Context, rec *BreakpointRecord) (map[string]int, error) {
	bySample := map[string]int{}
	if rec.PosA <= 0 || rec.PosB <= 0 {
		return bySample, nil
	}
	startA, endA := t.window(rec.PosA, rec.StrandA)
	startB, endB := t.window(rec.PosB, rec.StrandB)
	pairs, err := t.Pairs.Pairs(ctx, rec.Chrom, startA, endA)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if p.ChromA != rec.Chrom || p.PosA < startA || p.PosA > endA {
			continue
		}
		if p.ChromB != rec.Chrom2 || p.PosB < startB || p.PosB > endB {
			continue
		}
		if p.StrandA != rec.StrandA || p.StrandB != rec.StrandB {
			continue
		}
		bySample[p.Sample]++
	}
	return bySample, nil
}

// TestRecord returns the paired-end result of a record.
func (t *PETest) TestRecord(ctx context.Context, rec *BreakpointRecord, g SampleGroup) (TestResult, error) {
	bySample, err := t.supporting(ctx, rec)
	if err != nil {
		return TestResult{}, err
	}
	stat := summarizeCounts(bySample, g)
	return TestResult{
		Coord:        CoordPE,
		Pos:          rec.PosA,
		GroupStat:    stat,
		Significance: Score(stat.Called, stat.Background),
	}, nil
}

// Test implements Tester.  It returns a single pe row.
func (t *PETest) Test(ctx context.Context, rec *BreakpointRecord, g SampleGroup) ([]Row, error) {
	r, err := t.TestRecord(ctx, rec, g)
	if err != nil {
		return nil, err
	}
	return []Row{r.Row(rec.ID)}, nil
}

// PESRTest runs both tests and adds a pesr row retesting the summed
// split-read and paired-end statistics.
type PESRTest struct {
	SR *SRTest
	PE *PETest
}

// Test implements Tester.  It returns the posA, posB, sum, pe and pesr
// rows, in that order.
func (t *PESRTest) Test(ctx context.Context, rec *BreakpointRecord, g SampleGroup) ([]Row, error) {
	a, b, joint, err := t.SR.testEnds(ctx, rec, g)
	if err != nil {
		return nil, err
	}
	pe, err := t.PE.TestRecord(ctx, rec, g)
	if err != nil {
		return nil, err
	}
	rows := FormatRows(rec.ID, a, b, joint)
	return append(rows, pe.Row(rec.ID), CombinePESR(joint, pe).Row(rec.ID)), nil
}

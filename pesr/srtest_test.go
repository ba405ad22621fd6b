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
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pesr/encoding/counts"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

var testGroup = SampleGroup{Called: []string{"s1"}, Background: []string{"s2"}}

func right(pos, count int, sample string) counts.Record {
	return counts.Record{Chrom: "chr1", Pos: pos, Clip: counts.ClipRight, Count: count, Sample: sample}
}

func newSRTest(t *testing.T, recs []counts.Record, window int) (*SRTest, *counts.MemProvider) {
	p := counts.NewMemProvider(recs, nil)
	h, err := p.NewHandle(vcontext.Background())
	require.NoError(t, err)
	return NewSRTest(h, window), p
}

func TestScanVisitsWholeWindow(t *testing.T) {
	ctx := vcontext.Background()
	sr, p := newSRTest(t, nil, 3)
	var visited []int
	err := sr.scan(ctx, "chr1", 100, counts.StrandPlus, testGroup, func(r TestResult) {
		visited = append(visited, r.Pos)
	})
	assert.NoError(t, err)
	expect.EQ(t, visited, []int{97, 98, 99, 100, 101, 102, 103})
	expect.EQ(t, p.Queries(), 7)

	// Positions <= 0 are evaluated with empty evidence and not queried.
	sr, p = newSRTest(t, nil, 3)
	visited = nil
	err = sr.scan(ctx, "chr1", 1, counts.StrandPlus, testGroup, func(r TestResult) {
		visited = append(visited, r.Pos)
		if r.Pos <= 0 {
			expect.EQ(t, r.GroupStat, GroupStat{})
			expect.EQ(t, r.Significance, 0.0)
		}
	})
	assert.NoError(t, err)
	expect.EQ(t, visited, []int{-2, -1, 0, 1, 2, 3, 4})
	expect.EQ(t, p.Queries(), 4)
}

func TestScanZeroWindow(t *testing.T) {
	ctx := vcontext.Background()
	sr, p := newSRTest(t, []counts.Record{right(130, 50, "s1")}, 0)
	expect.EQ(t, sr.Window, 0)
	best, err := sr.ScanEnd(ctx, "chr1", 100, counts.StrandPlus, testGroup)
	assert.NoError(t, err)
	expect.EQ(t, best.Pos, 100)
	expect.EQ(t, best.Significance, 0.0)
	expect.EQ(t, p.Queries(), 1)
}

func TestScanEnd(t *testing.T) {
	ctx := vcontext.Background()
	var recs []counts.Record
	for pos := 98; pos <= 102; pos++ {
		recs = append(recs, right(pos, 1, "s2"))
	}
	recs = append(recs, right(100, 10, "s1"))
	sr, _ := newSRTest(t, recs, 2)
	best, err := sr.ScanEnd(ctx, "chr1", 100, counts.StrandPlus, testGroup)
	assert.NoError(t, err)
	expect.EQ(t, best.Pos, 100)
	expect.EQ(t, best.Dist, 0)
	expect.EQ(t, best.GroupStat, GroupStat{Called: 10, Background: 1})
	expect.EQ(t, best.Significance, Score(10, 1))

	// A '-' end reads left clips, of which there are none.
	best, err = sr.ScanEnd(ctx, "chr1", 100, counts.StrandMinus, testGroup)
	assert.NoError(t, err)
	expect.EQ(t, best.Significance, 0.0)
}

func TestScanEndTieBreak(t *testing.T) {
	ctx := vcontext.Background()
	// Equal evidence at pos and pos+5: the farther one wins.
	sr, _ := newSRTest(t, []counts.Record{right(100, 5, "s1"), right(105, 5, "s1")}, 10)
	best, err := sr.ScanEnd(ctx, "chr1", 100, counts.StrandPlus, testGroup)
	assert.NoError(t, err)
	expect.EQ(t, best.Pos, 105)
	expect.EQ(t, best.Dist, 5)

	// Without any called evidence every position scores 0, so the window
	// edge is reported.  Equally distant edges go to the lower position.
	var recs []counts.Record
	for pos := 98; pos <= 102; pos++ {
		recs = append(recs, right(pos, 1, "s2"))
	}
	sr, _ = newSRTest(t, recs, 2)
	best, err = sr.ScanEnd(ctx, "chr1", 100, counts.StrandPlus, testGroup)
	assert.NoError(t, err)
	expect.EQ(t, best.Pos, 98)
	expect.EQ(t, best.Dist, 2)
	expect.EQ(t, best.Significance, 0.0)
}

func TestCombine(t *testing.T) {
	a := TestResult{Coord: CoordA, Pos: 10, GroupStat: GroupStat{Called: 2, Background: 1}, Dist: 1, HasDist: true}
	b := TestResult{Coord: CoordB, Pos: 20, GroupStat: GroupStat{Called: 3, Background: 0}}
	c := Combine(a, b)
	expect.EQ(t, c, TestResult{
		Coord:        CoordSum,
		GroupStat:    GroupStat{Called: 5, Background: 1},
		Significance: Score(5, 1),
	})
	expect.EQ(t, CombinePESR(c, b).Coord, CoordPESR)
	expect.EQ(t, CombinePESR(c, b).GroupStat, GroupStat{Called: 8, Background: 1})
}

func TestSRTestRows(t *testing.T) {
	ctx := vcontext.Background()
	recs := []counts.Record{
		right(1000, 4, "s1"),
		{Chrom: "chr2", Pos: 5000, Clip: counts.ClipLeft, Count: 2, Sample: "s1"},
		{Chrom: "chr1", Pos: 5000, Clip: counts.ClipLeft, Count: 7, Sample: "s1"},
	}
	sr, _ := newSRTest(t, recs, 5)
	rec := &BreakpointRecord{
		ID: "bnd1", SVType: "BND",
		Chrom: "chr1", PosA: 1000, StrandA: counts.StrandPlus,
		Chrom2: "chr2", PosB: 5000, StrandB: counts.StrandMinus,
	}
	rows, err := sr.Test(ctx, rec, testGroup)
	assert.NoError(t, err)
	require.Len(t, rows, 3)
	expect.EQ(t, rows[0], Row{Name: "bnd1", Coord: CoordA, Pos: 1000, Significance: Score(4, 0), Called: 4})
	// posB is read on the second chromosome.
	expect.EQ(t, rows[1], Row{Name: "bnd1", Coord: CoordB, Pos: 5000, Significance: Score(2, 0), Called: 2})
	expect.EQ(t, rows[2], Row{Name: "bnd1", Coord: CoordSum, Significance: Score(6, 0), Called: 6})

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sr.Test(cctx, rec, testGroup)
	expect.EQ(t, err, context.Canceled)
}

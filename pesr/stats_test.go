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
	"math"
	"testing"

	"github.com/grailbio/pesr/encoding/counts"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	for _, bg := range []float64{0, 1, 2.5, 100} {
		expect.EQ(t, Score(0, bg), 0.0)
		expect.EQ(t, Score(-1, bg), 0.0)
	}
	// P(X <= 1) for X ~ Poisson(10) is 11 e^-10.
	require.InDelta(t, math.Abs(math.Log10(11*math.Exp(-10))), Score(10, 1), 1e-9)
	// The background median is truncated.
	expect.EQ(t, Score(10, 1.5), Score(10, 1))
	expect.EQ(t, Score(3, 2), Score(3, 2))

	for _, called := range []float64{0.5, 1, 7, 42} {
		for _, bg := range []float64{0, 3, 40} {
			s := Score(called, bg)
			expect.True(t, s >= 0, "Score(%v, %v) = %v", called, bg, s)
			expect.False(t, math.IsNaN(s) || math.IsInf(s, 0), "Score(%v, %v) = %v", called, bg, s)
		}
	}
}

func TestScoreUnderflow(t *testing.T) {
	// e^-1000 is below the smallest float64.
	s := Score(1000, 0)
	require.InDelta(t, 1000/math.Ln10, s, 1e-6)
	expect.False(t, math.IsInf(Score(2000, 3), 0))
}

func TestMedian(t *testing.T) {
	expect.EQ(t, median(nil), 0.0)
	expect.EQ(t, median([]float64{3, 1, 2}), 2.0)
	expect.EQ(t, median([]float64{4, 1, 3, 2}), 2.5)
	expect.EQ(t, median([]float64{7}), 7.0)
}

func TestSummarize(t *testing.T) {
	recs := []counts.Record{
		{Chrom: "chr1", Pos: 10, Clip: counts.ClipRight, Count: 2, Sample: "s1"},
		{Chrom: "chr1", Pos: 10, Clip: counts.ClipRight, Count: 3, Sample: "s1"},
		{Chrom: "chr1", Pos: 10, Clip: counts.ClipRight, Count: 4, Sample: "s2"},
		{Chrom: "chr1", Pos: 10, Clip: counts.ClipRight, Count: 9, Sample: "other"},
	}
	g := SampleGroup{Called: []string{"s1", "s3"}, Background: []string{"s2", "s4", "s5"}}
	expect.EQ(t, Summarize(recs, g), GroupStat{Called: 2.5, Background: 0})
	expect.EQ(t, Summarize(nil, g), GroupStat{})
	expect.EQ(t, Summarize(recs, SampleGroup{}), GroupStat{})
}

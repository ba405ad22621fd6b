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
	"sort"

	"github.com/grailbio/pesr/encoding/counts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// GroupStat holds the median evidence of the called and background groups.
type GroupStat struct {
	Called     float64
	Background float64
}

// Summarize reduces the evidence at one position to per-group medians.
// Samples without a record count as zero; records for the same sample are
// added up.
func Summarize(recs []counts.Record, g SampleGroup) GroupStat {
	bySample := make(map[string]int, len(recs))
	for _, r := range recs {
		bySample[r.Sample] += r.Count
	}
	return summarizeCounts(bySample, g)
}

func summarizeCounts(bySample map[string]int, g SampleGroup) GroupStat {
	return GroupStat{
		Called:     groupMedian(bySample, g.Called),
		Background: groupMedian(bySample, g.Background),
	}
}

func groupMedian(bySample map[string]int, samples []string) float64 {
	if len(samples) == 0 {
		return 0
	}
	v := make([]float64, len(samples))
	for i, s := range samples {
		v[i] = float64(bySample[s])
	}
	return median(v)
}

// median sorts v in place.  Even-sized inputs yield the mean of the two
// middle values.
func median(v []float64) float64 {
	n := len(v)
	if n == 0 {
		return 0
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// Score returns |log10 P(X <= background)| for X ~ Poisson(called).  The
// background median is truncated to an integer count.  Score(0, k) is 0
// for every k.
func Score(called, background float64) float64 {
	if !(called > 0) {
		return 0
	}
	k := math.Floor(background)
	if k < 0 {
		k = 0
	}
	dist := distuv.Poisson{Lambda: called}
	if p := dist.CDF(k); p > 0 {
		return math.Abs(math.Log10(p))
	}
	// The CDF underflowed; add up the point masses in log space.
	logp := make([]float64, int(k)+1)
	for i := range logp {
		logp[i] = dist.LogProb(float64(i))
	}
	return math.Abs(floats.LogSumExp(logp) / math.Ln10)
}

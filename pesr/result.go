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

// Coord labels a result row.
type Coord string

const (
	// CoordA is the best position near the first breakpoint end.
	CoordA Coord = "posA"
	// CoordB is the best position near the second breakpoint end.
	CoordB Coord = "posB"
	// CoordSum is the joint split-read test of both ends.
	CoordSum Coord = "sum"
	// CoordPE is the paired-end test.
	CoordPE Coord = "pe"
	// CoordPESR combines the joint split-read and paired-end tests.
	CoordPESR Coord = "pesr"
)

// TestResult is the outcome of one enrichment test.
type TestResult struct {
	Coord Coord
	// Pos is the tested position; 0 for combined results.
	Pos int
	GroupStat
	Significance float64
	// Dist is |Pos - predicted position|.  Only set if HasDist.
	Dist    int
	HasDist bool
}

// beats reports whether r should be preferred over o when scanning a
// window: higher significance first, then larger distance from the
// predicted position.
func (r TestResult) beats(o TestResult) bool {
	if r.Significance != o.Significance {
		return r.Significance > o.Significance
	}
	return r.Dist > o.Dist
}

func combine(coord Coord, a, b TestResult) TestResult {
	stat := GroupStat{
		Called:     a.Called + b.Called,
		Background: a.Background + b.Background,
	}
	return TestResult{
		Coord:        coord,
		GroupStat:    stat,
		Significance: Score(stat.Called, stat.Background),
	}
}

// Combine retests the summed statistics of both breakpoint ends.  The result
// has coord "sum", position 0 and no distance.
func Combine(a, b TestResult) TestResult {
	return combine(CoordSum, a, b)
}

// CombinePESR retests the joint split-read statistics summed with the
// paired-end statistics.
func CombinePESR(sum, pe TestResult) TestResult {
	return combine(CoordPESR, sum, pe)
}

// Row is one output line.
type Row struct {
	Name         string
	Coord        Coord
	Pos          int
	Significance float64
	Called       float64
	Background   float64
}

// Row stamps r with a record name.
func (r TestResult) Row(name string) Row {
	return Row{
		Name:         name,
		Coord:        r.Coord,
		Pos:          r.Pos,
		Significance: r.Significance,
		Called:       r.Called,
		Background:   r.Background,
	}
}

// FormatRows returns the split-read rows of a record, always three and
// always in the order posA, posB, sum.
func FormatRows(name string, a, b, joint TestResult) []Row {
	a.Coord, b.Coord, joint.Coord = CoordA, CoordB, CoordSum
	return []Row{a.Row(name), b.Row(name), joint.Row(name)}
}

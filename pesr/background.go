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
	"sort"

	farm "github.com/dgryski/go-farm"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// BackgroundChooser picks the called and background samples of a record.
// Implementations must be safe for concurrent use and must return disjoint
// groups.
type BackgroundChooser interface {
	ChooseBackground(rec *BreakpointRecord) (SampleGroup, error)
}

// SampleChooser is the default BackgroundChooser.  Carriers of a
// non-reference allele are called; every other sample is background.
// When more than NBackground background samples remain, a subset is drawn
// with a seed derived from the record ID, so reruns pick the same samples.
type SampleChooser struct {
	NBackground int
	Seed        uint64
	include     map[string]bool
	exclude     map[string]bool
}

// NewSampleChooser creates a chooser.  A nonempty include list restricts
// both groups to its samples; the exclude list removes samples from both.
func NewSampleChooser(nBackground int, seed uint64, include, exclude []string) *SampleChooser {
	c := &SampleChooser{NBackground: nBackground, Seed: seed}
	if len(include) > 0 {
		c.include = make(map[string]bool, len(include))
		for _, s := range include {
			c.include[s] = true
		}
	}
	c.exclude = make(map[string]bool, len(exclude))
	for _, s := range exclude {
		c.exclude[s] = true
	}
	return c
}

func (c *SampleChooser) allowed(s string) bool {
	if c.include != nil && !c.include[s] {
		return false
	}
	return !c.exclude[s]
}

// ChooseBackground implements BackgroundChooser.
func (c *SampleChooser) ChooseBackground(rec *BreakpointRecord) (SampleGroup, error) {
	var g SampleGroup
	var bgIdx []int
	for i, s := range rec.Samples {
		if !c.allowed(s) {
			continue
		}
		if rec.Carriers[i] {
			g.Called = append(g.Called, s)
		} else {
			bgIdx = append(bgIdx, i)
		}
	}
	if c.NBackground > 0 && len(bgIdx) > c.NBackground {
		picks := make([]int, c.NBackground)
		sampleuv.WithoutReplacement(picks, len(bgIdx), rand.NewSource(farm.Fingerprint64([]byte(rec.ID))^c.Seed))
		sort.Ints(picks)
		for j, k := range picks {
			picks[j] = bgIdx[k]
		}
		bgIdx = picks
	}
	for _, i := range bgIdx {
		g.Background = append(g.Background, rec.Samples[i])
	}
	return g, nil
}

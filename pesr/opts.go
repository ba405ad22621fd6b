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
	"github.com/grailbio/base/errors"
)

// Mode selects the tests run on each record.
type Mode int

const (
	// SR runs the split-read test.
	SR Mode = iota
	// PE runs the paired-end test.
	PE
	// PESR runs both, and adds their combination.
	PESR
)

func (m Mode) String() string {
	switch m {
	case SR:
		return "sr"
	case PE:
		return "pe"
	case PESR:
		return "pesr"
	}
	return "unknown"
}

// Opts configures a Runner.
type Opts struct {
	Mode Mode
	// Window is the radius scanned around each predicted breakpoint.
	Window int
	// WindowIn and WindowOut bound the discordant-pair search on the
	// inner and outer side of each breakpoint.
	WindowIn  int
	WindowOut int
	// NBackground caps the number of background samples per record.
	NBackground int
	// Include, if nonempty, restricts both sample groups to these samples.
	Include []string
	// Exclude removes these samples from both groups.
	Exclude []string
	// Seed perturbs the background subsampling.
	Seed uint64
	// BedPath and Region, if set, keep only records with an end inside the
	// BED intervals or the samtools-style region.
	BedPath string
	Region  string
	// BedInvert keeps records with an end outside the BED intervals
	// instead.  Only chromosomes named in the BED file are covered.
	BedInvert bool
	// BedOneBased reads the BED intervals as one-based [start, end].
	BedOneBased bool
	Parallelism int
	// FailFast aborts the run on the first failed record instead of
	// logging it and moving on.
	FailFast bool
	// Header makes RowWriter emit a column-name line.
	Header bool
}

// DefaultOpts is the default Runner configuration.
var DefaultOpts = Opts{
	Mode:        SR,
	Window:      100,
	WindowIn:    50,
	WindowOut:   500,
	NBackground: 160,
	Parallelism: 0,
}

func (o *Opts) validate() error {
	if o.Window <= 0 {
		return errors.E(errors.Invalid, "window must be positive")
	}
	if o.WindowIn < 0 || o.WindowOut < 0 {
		return errors.E(errors.Invalid, "pair windows must be nonnegative")
	}
	if o.NBackground <= 0 {
		return errors.E(errors.Invalid, "background sample count must be positive")
	}
	return nil
}

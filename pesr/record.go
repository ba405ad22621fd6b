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
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/pesr/encoding/counts"
	"github.com/grailbio/pesr/encoding/svvcf"
)

// SampleGroup splits the samples of a record into carriers and controls.
type SampleGroup struct {
	Called     []string
	Background []string
}

// Validate checks that no sample is in both groups.
func (g SampleGroup) Validate() error {
	called := make(map[string]struct{}, len(g.Called))
	for _, s := range g.Called {
		called[s] = struct{}{}
	}
	for _, s := range g.Background {
		if _, ok := called[s]; ok {
			return errors.E(errors.Invalid, "sample", s, "is both called and background")
		}
	}
	return nil
}

// BreakpointRecord is a standardized SV call: two breakpoint ends with
// their strands, and the genotype-derived carrier status of every sample.
// Positions are 1-based; a position <= 0 marks an end with no usable
// evidence.
type BreakpointRecord struct {
	ID      string
	SVType  string
	Chrom   string
	PosA    int
	StrandA counts.Strand
	Chrom2  string
	PosB    int
	StrandB counts.Strand
	// Samples lists all samples in VCF order; Carriers is parallel to it.
	Samples  []string
	Carriers []bool
}

var defaultStrands = map[string]string{
	"DEL": "+-",
	"DUP": "-+",
	"INV": "++",
	"INS": "+-",
}

// NewBreakpointRecord standardizes a VCF record: END defaults from SVLEN,
// CHR2 defaults to CHROM, STRANDS defaults by SV type, and translocation
// partners are read from bracketed ALT alleles when INFO lacks them.
func NewBreakpointRecord(hdr *svvcf.Header, v *svvcf.Record) (*BreakpointRecord, error) {
	rec := &BreakpointRecord{
		ID:      v.ID,
		SVType:  v.Info["SVTYPE"],
		Chrom:   v.Chrom,
		PosA:    v.Pos,
		Chrom2:  v.Info["CHR2"],
		Samples: hdr.Samples,
	}
	if rec.SVType == "" && len(v.Alt) > 0 && strings.HasPrefix(v.Alt[0], "<") {
		rec.SVType = strings.Trim(strings.SplitN(v.Alt[0], ":", 2)[0], "<>")
	}
	if rec.SVType == "" {
		return nil, errors.E(errors.Invalid, v.ID, "missing INFO/SVTYPE")
	}

	var bnd breakend
	if rec.SVType == "BND" && len(v.Alt) > 0 {
		var ok bool
		if bnd, ok = parseBreakend(v.Alt[0]); !ok {
			return nil, errors.E(errors.Invalid, v.ID, "malformed breakend ALT", v.Alt[0])
		}
	}
	if rec.Chrom2 == "" {
		rec.Chrom2 = rec.Chrom
		if bnd.chrom != "" {
			rec.Chrom2 = bnd.chrom
		}
	}

	end, ok, err := v.InfoInt("END")
	if err != nil {
		return nil, err
	}
	switch {
	case bnd.chrom != "" && (!ok || end == v.Pos):
		// Some callers write END=POS on breakends.
		rec.PosB = bnd.pos
	case ok:
		rec.PosB = end
	default:
		svlen, ok, err := v.InfoInt("SVLEN")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.E(errors.Invalid, v.ID, "missing INFO/END")
		}
		if svlen < 0 {
			svlen = -svlen
		}
		rec.PosB = v.Pos + svlen
	}

	strands := v.Info["STRANDS"]
	if strands == "" {
		if bnd.strands != "" {
			strands = bnd.strands
		} else {
			strands = defaultStrands[rec.SVType]
		}
	}
	if rec.StrandA, rec.StrandB, err = parseStrands(strands); err != nil {
		return nil, errors.E(v.ID, err)
	}

	rec.Carriers = make([]bool, len(hdr.Samples))
	for i := range rec.Carriers {
		rec.Carriers[i] = v.Carrier(i)
	}
	return rec, nil
}

// parseStrands accepts "+-" as well as the "+-:12,-+:3" form written by
// some callers, in which case the first entry is used.
func parseStrands(s string) (a, b counts.Strand, err error) {
	if i := strings.IndexAny(s, ":,"); i >= 0 {
		s = s[:i]
	}
	if len(s) != 2 {
		return 0, 0, errors.E(errors.Invalid, "malformed STRANDS", strconv.Quote(s))
	}
	if a, err = counts.ParseStrand([]byte(s[:1])); err != nil {
		return 0, 0, err
	}
	if b, err = counts.ParseStrand([]byte(s[1:])); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

type breakend struct {
	chrom   string
	pos     int
	strands string
}

// parseBreakend parses the four bracketed ALT forms:
//
//   t[p[  +-   piece right of p joined after t
//   t]p]  ++   reverse of piece left of p joined after t
//   ]p]t  -+   piece left of p joined before t
//   [p[t  --   reverse of piece right of p joined before t
func parseBreakend(alt string) (breakend, bool) {
	i := strings.IndexAny(alt, "[]")
	if i < 0 {
		return breakend{}, false
	}
	bracket := alt[i]
	j := strings.IndexByte(alt[i+1:], bracket)
	if j < 0 {
		return breakend{}, false
	}
	mate := alt[i+1 : i+1+j]
	c := strings.LastIndexByte(mate, ':')
	if c <= 0 {
		return breakend{}, false
	}
	pos, err := strconv.Atoi(mate[c+1:])
	if err != nil {
		return breakend{}, false
	}
	b := breakend{chrom: mate[:c], pos: pos}
	after := i > 0
	switch {
	case after && bracket == '[':
		b.strands = "+-"
	case after && bracket == ']':
		b.strands = "++"
	case bracket == ']':
		b.strands = "-+"
	default:
		b.strands = "--"
	}
	return b, true
}

package interval

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// SortEntries sorts entries by chromosome name, then start.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ChrName != entries[j].ChrName {
			return entries[i].ChrName < entries[j].ChrName
		}
		return entries[i].Start0 < entries[j].Start0
	})
}

// BEDUnion is a per-chromosome interval-union, stored as sorted endpoint
// sequences (see endpoint_index.go).  Overlapping and touching intervals are
// merged.
//
// Queries cache their search position, so a BEDUnion is not thread safe.
type BEDUnion struct {
	// nameMap maps a chromosome to its endpoint sequence.  Always
	// initialized.
	nameMap map[string][]PosType

	// Search state of the last ContainsByName call.
	lastChrName      string
	lastChrIntervals []PosType
	lastPos          PosType
	lastIdx          EndpointIndex
	isSequential     bool
	started          bool
}

// NewBEDOpts defines behavior of this package's BED-loading function(s).
type NewBEDOpts struct {
	// Invert causes the complement of the interval-union to be returned.  The
	// complement extends down to position -1 at the beginning of each
	// mentioned chromosome, and to PosTypeMax at the end.  Chromosomes absent
	// from the input stay absent.
	Invert bool
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// ContainsByName checks whether the (0-based) interval [pos, pos+1) is
// contained within the BEDUnion.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	if !u.started || chrName != u.lastChrName {
		u.started = true
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		u.lastIdx = NewEndpointIndex(pos, u.lastChrIntervals)
		u.lastPos = pos
		u.isSequential = true
		return u.lastIdx.Contained()
	}
	if u.isSequential && pos >= u.lastPos {
		u.lastIdx.Update(pos, u.lastChrIntervals)
		u.lastPos = pos
		return u.lastIdx.Contained()
	}
	u.isSequential = false
	return NewEndpointIndex(pos, u.lastChrIntervals).Contained()
}

// Entries lists the merged intervals, sorted by chromosome name then start.
// The unbounded ends of an inverted union are clipped to [0, PosTypeMax-1).
func (u *BEDUnion) Entries() []Entry {
	names := make([]string, 0, len(u.nameMap))
	for name := range u.nameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	var entries []Entry
	for _, name := range names {
		endpoints := u.nameMap[name]
		for i := 0; i+1 < len(endpoints); i += 2 {
			e := Entry{ChrName: name, Start0: endpoints[i], End: endpoints[i+1]}
			if e.Start0 < 0 {
				e.Start0 = 0
			}
			if e.End >= PosTypeMax {
				e.End = PosTypeMax - 1
			}
			if e.End > e.Start0 {
				entries = append(entries, e)
			}
		}
	}
	return entries
}

// NewBEDUnion loads the intervals of a BED file.  Only the first three
// columns are read; lines starting with "#", "track" or "browser" are
// skipped.  The input need not be sorted.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (BEDUnion, error) {
	var startSubtract int
	if opts.OneBasedInput {
		startSubtract = 1
	}
	var entries []Entry
	scanner := bufio.NewScanner(reader)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' ||
			strings.HasPrefix(gunsafe.BytesToString(line), "track") ||
			strings.HasPrefix(gunsafe.BytesToString(line), "browser") {
			continue
		}
		fields := strings.Fields(string(line))
		if len(fields) < 3 {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: line", strconv.Itoa(lineIdx), "has fewer than 3 columns")
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: line", strconv.Itoa(lineIdx), err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: line", strconv.Itoa(lineIdx), err)
		}
		start -= startSubtract
		if start < 0 || end < start || end >= PosTypeMax {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: invalid coordinate pair on line", strconv.Itoa(lineIdx))
		}
		entries = append(entries, Entry{ChrName: fields[0], Start0: PosType(start), End: PosType(end)})
	}
	if err := scanner.Err(); err != nil {
		return BEDUnion{}, err
	}
	SortEntries(entries)
	u, err := NewBEDUnionFromEntries(entries, NewBEDOpts{Invert: opts.Invert})
	if err != nil {
		return BEDUnion{}, err
	}
	log.Printf("BED loaded, %d base(s) covered.", u.covered())
	return u, nil
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.  Gzipped files are recognized by their extension.
func NewBEDUnionFromPath(path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	return NewBEDUnion(reader, opts)
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax - 1) is returned if there is no positional restriction.
func ParseRegionString(region string) (Entry, error) {
	if len(region) == 0 {
		return Entry{}, errors.E(errors.Invalid, "interval: empty region string")
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		return Entry{ChrName: region, Start0: 0, End: PosTypeMax - 1}, nil
	}
	if colonPos == 0 {
		return Entry{}, errors.E(errors.Invalid, "interval: empty contig ID in", region)
	}
	result := Entry{ChrName: region[:colonPos]}
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	start1Str, endStr := rangeStr, rangeStr
	if dashPos := strings.IndexByte(rangeStr, '-'); dashPos >= 0 {
		start1Str, endStr = rangeStr[:dashPos], rangeStr[dashPos+1:]
	}
	start1, err := strconv.Atoi(start1Str)
	if err != nil || start1 <= 0 {
		return Entry{}, errors.E(errors.Invalid, "interval: position", start1Str, "in region string out of range")
	}
	end, err := strconv.Atoi(endStr)
	if err != nil || end < start1 || end >= PosTypeMax {
		return Entry{}, errors.E(errors.Invalid, "interval: invalid range string", rangeStr)
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end)
	return result, nil
}

// NewBEDUnionFromEntries initializes a BEDUnion from a sorted []Entry.
// Entries of one chromosome must be contiguous and sorted by start.
func NewBEDUnionFromEntries(entries []Entry, opts NewBEDOpts) (BEDUnion, error) {
	u := BEDUnion{nameMap: map[string][]PosType{}}
	var (
		curChr    string
		endpoints []PosType
		// [prevStart, prevEnd) is the interval being extended; prevEnd == -1
		// means there is none yet.
		prevStart, prevEnd PosType = -1, -1
	)
	flush := func() {
		if curChr == "" {
			return
		}
		if prevEnd != -1 {
			endpoints = append(endpoints, prevStart, prevEnd)
		}
		if opts.Invert {
			endpoints = append(append([]PosType{-1}, endpoints...), PosTypeMax)
		}
		u.nameMap[curChr] = endpoints
	}
	for _, e := range entries {
		if e.Start0 < 0 {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: negative start coordinate on", e.ChrName)
		}
		if e.End < e.Start0 || e.End >= PosTypeMax {
			return BEDUnion{}, errors.E(errors.Invalid, "interval: invalid coordinate pair on", e.ChrName)
		}
		if e.ChrName != curChr {
			flush()
			if _, found := u.nameMap[e.ChrName]; found {
				return BEDUnion{}, errors.E(errors.Invalid, "interval: unsorted input (split chromosome", e.ChrName+")")
			}
			curChr = e.ChrName
			endpoints = []PosType{}
			prevStart, prevEnd = -1, -1
		}
		if e.End == e.Start0 {
			// Empty intervals only mention the chromosome.
			continue
		}
		switch {
		case prevEnd == -1:
			prevStart, prevEnd = e.Start0, e.End
		case e.Start0 > prevEnd:
			endpoints = append(endpoints, prevStart, prevEnd)
			prevStart, prevEnd = e.Start0, e.End
		case e.Start0 < prevStart:
			return BEDUnion{}, errors.E(errors.Invalid, "interval: unsorted input on", e.ChrName)
		case e.End > prevEnd:
			prevEnd = e.End
		}
	}
	flush()
	return u, nil
}

func (u *BEDUnion) covered() int {
	n := 0
	for _, endpoints := range u.nameMap {
		for i := 0; i+1 < len(endpoints); i += 2 {
			n += int(endpoints[i+1] - endpoints[i])
		}
	}
	return n
}

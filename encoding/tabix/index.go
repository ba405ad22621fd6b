package tabix

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/biogo/hts/bgzf"
	"github.com/pkg/errors"
)

const (
	// Linear index windows are 16kbp wide.
	linearShift = 14
	// Depth of the UCSC binning scheme used by tabix, BAI and CSI (at
	// min_shift 14).
	binDepth = 5
	// maxPos is the largest position representable by the binning scheme.
	maxPos = 1 << 29

	// formatZeroBased is the bit in Conf.Format flagging 0-based,
	// half-open coordinates.
	formatZeroBased = 0x10000
)

var magic = [4]byte{'T', 'B', 'I', 0x1}

// Conf describes how to find the coordinates of a line.  Column numbers
// are 1-based, as in the tabix command line.
type Conf struct {
	// Format is the tabix preset.  0 is "generic", which is all this package
	// produces.
	Format int32
	// NameColumn holds the sequence name.
	NameColumn int32
	// BeginColumn holds the start position.
	BeginColumn int32
	// EndColumn holds the end position.  If it equals BeginColumn, every line
	// covers a single position.
	EndColumn int32
	// Meta is the comment prefix.  Lines starting with it are ignored.
	Meta byte
	// Skip is the number of header lines to skip.
	Skip int32
}

// PointConf is the layout used by split-count and discordant-pair files:
// name in column 1, 1-based position in column 2, one position per line.
var PointConf = Conf{NameColumn: 1, BeginColumn: 2, EndColumn: 2, Meta: '#'}

// ZeroBased reports whether positions are 0-based, half-open.
func (c Conf) ZeroBased() bool { return c.Format&formatZeroBased != 0 }

// Index is the content of a .tbi file.
type Index struct {
	Conf
	// Names lists the sequence names, in file order.
	Names []string
	// Refs is parallel to Names.
	Refs []RefIndex
	// NoCoordCount is the optional count of unplaced records.
	NoCoordCount *uint64

	nameIdx map[string]int
}

// RefIndex is the index data for one sequence.
type RefIndex struct {
	// Bins maps a bin number to the chunks of lines assigned to it.
	Bins map[uint32][]bgzf.Chunk
	// Linear holds, for each 16kbp window, the smallest offset of a line
	// overlapping that window.
	Linear []bgzf.Offset
}

func toOffset(voffset uint64) bgzf.Offset {
	return bgzf.Offset{
		File:  int64(voffset >> 16),
		Block: uint16(voffset),
	}
}

func fromOffset(offset bgzf.Offset) uint64 {
	return uint64(offset.File<<16) | uint64(offset.Block)
}

func offsetLess(a, b bgzf.Offset) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	return a.Block < b.Block
}

// ReadIndex parses an uncompressed .tbi stream.  .tbi files are stored
// bgzf-compressed; callers must decompress first (see Open).
func ReadIndex(r io.Reader) (*Index, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, errors.Wrap(err, "tabix: read magic")
	}
	if m != magic {
		return nil, errors.Errorf("tabix: invalid magic %v", m)
	}
	var hdr struct {
		NRef                              int32
		Format                            int32
		NameColumn, BeginColumn, EndColumn int32
		Meta                              int32
		Skip                              int32
		NamesLen                          int32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "tabix: read header")
	}
	if hdr.NRef < 0 || hdr.NamesLen < 0 {
		return nil, errors.Errorf("tabix: corrupt header %+v", hdr)
	}
	idx := &Index{
		Conf: Conf{
			Format:      hdr.Format,
			NameColumn:  hdr.NameColumn,
			BeginColumn: hdr.BeginColumn,
			EndColumn:   hdr.EndColumn,
			Meta:        byte(hdr.Meta),
			Skip:        hdr.Skip,
		},
	}
	names := make([]byte, hdr.NamesLen)
	if _, err := io.ReadFull(r, names); err != nil {
		return nil, errors.Wrap(err, "tabix: read names")
	}
	for _, name := range bytes.Split(bytes.TrimRight(names, "\x00"), []byte{0}) {
		if len(name) > 0 {
			idx.Names = append(idx.Names, string(name))
		}
	}
	if len(idx.Names) != int(hdr.NRef) {
		return nil, errors.Errorf("tabix: header lists %d sequences but %d names", hdr.NRef, len(idx.Names))
	}

	idx.Refs = make([]RefIndex, hdr.NRef)
	for refID := range idx.Refs {
		var nBin int32
		if err := binary.Read(r, binary.LittleEndian, &nBin); err != nil {
			return nil, errors.Wrapf(err, "tabix: read bin count for %s", idx.Names[refID])
		}
		ref := RefIndex{Bins: make(map[uint32][]bgzf.Chunk, nBin)}
		for b := int32(0); b < nBin; b++ {
			var binHdr struct {
				Bin    uint32
				NChunk int32
			}
			if err := binary.Read(r, binary.LittleEndian, &binHdr); err != nil {
				return nil, errors.Wrapf(err, "tabix: read bin for %s", idx.Names[refID])
			}
			raw := make([]uint64, 2*binHdr.NChunk)
			if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
				return nil, errors.Wrapf(err, "tabix: read chunks for %s", idx.Names[refID])
			}
			chunks := make([]bgzf.Chunk, binHdr.NChunk)
			for c := range chunks {
				chunks[c] = bgzf.Chunk{Begin: toOffset(raw[2*c]), End: toOffset(raw[2*c+1])}
			}
			ref.Bins[binHdr.Bin] = chunks
		}
		var nIntv int32
		if err := binary.Read(r, binary.LittleEndian, &nIntv); err != nil {
			return nil, errors.Wrapf(err, "tabix: read interval count for %s", idx.Names[refID])
		}
		raw := make([]uint64, nIntv)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, errors.Wrapf(err, "tabix: read intervals for %s", idx.Names[refID])
		}
		ref.Linear = make([]bgzf.Offset, nIntv)
		for i, v := range raw {
			ref.Linear[i] = toOffset(v)
		}
		idx.Refs[refID] = ref
	}

	var noCoord uint64
	if err := binary.Read(r, binary.LittleEndian, &noCoord); err == nil {
		idx.NoCoordCount = &noCoord
	} else if err != io.EOF {
		return nil, errors.Wrap(err, "tabix: read unplaced count")
	}
	idx.buildNameIdx()
	return idx, nil
}

func (idx *Index) buildNameIdx() {
	idx.nameIdx = make(map[string]int, len(idx.Names))
	for i, name := range idx.Names {
		idx.nameIdx[name] = i
	}
}

// WriteTo writes the uncompressed .tbi encoding of idx to w.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	le := binary.LittleEndian
	var names bytes.Buffer
	for _, name := range idx.Names {
		names.WriteString(name)
		names.WriteByte(0)
	}
	hdr := []int32{
		int32(len(idx.Names)),
		idx.Format,
		idx.NameColumn, idx.BeginColumn, idx.EndColumn,
		int32(idx.Meta),
		idx.Skip,
		int32(names.Len()),
	}
	if _, err := cw.Write(magic[:]); err != nil {
		return cw.n, err
	}
	if err := binary.Write(cw, le, hdr); err != nil {
		return cw.n, err
	}
	if _, err := cw.Write(names.Bytes()); err != nil {
		return cw.n, err
	}
	for _, ref := range idx.Refs {
		bins := make([]uint32, 0, len(ref.Bins))
		for bin := range ref.Bins {
			bins = append(bins, bin)
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })
		if err := binary.Write(cw, le, int32(len(bins))); err != nil {
			return cw.n, err
		}
		for _, bin := range bins {
			chunks := ref.Bins[bin]
			if err := binary.Write(cw, le, bin); err != nil {
				return cw.n, err
			}
			if err := binary.Write(cw, le, int32(len(chunks))); err != nil {
				return cw.n, err
			}
			for _, c := range chunks {
				if err := binary.Write(cw, le, [2]uint64{fromOffset(c.Begin), fromOffset(c.End)}); err != nil {
					return cw.n, err
				}
			}
		}
		if err := binary.Write(cw, le, int32(len(ref.Linear))); err != nil {
			return cw.n, err
		}
		for _, off := range ref.Linear {
			if err := binary.Write(cw, le, fromOffset(off)); err != nil {
				return cw.n, err
			}
		}
	}
	if idx.NoCoordCount != nil {
		if err := binary.Write(cw, le, *idx.NoCoordCount); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Chunks returns the sorted, merged file regions that may hold lines
// overlapping the 0-based half-open interval [beg, end) on the named
// sequence.  It returns nil if the sequence is absent from the index.
func (idx *Index) Chunks(name string, beg, end int) []bgzf.Chunk {
	refID, ok := idx.nameIdx[name]
	if !ok || end <= beg {
		return nil
	}
	if beg < 0 {
		beg = 0
	}
	if end > maxPos {
		end = maxPos
	}
	ref := &idx.Refs[refID]
	var minOff bgzf.Offset
	if n := len(ref.Linear); n > 0 {
		w := beg >> linearShift
		if w >= n {
			w = n - 1
		}
		minOff = ref.Linear[w]
	}
	var chunks []bgzf.Chunk
	for _, bin := range regionBins(beg, end) {
		for _, c := range ref.Bins[bin] {
			if offsetLess(minOff, c.End) {
				chunks = append(chunks, c)
			}
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return offsetLess(chunks[i].Begin, chunks[j].Begin) })
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		last := &merged[len(merged)-1]
		if !offsetLess(last.End, c.Begin) {
			if offsetLess(last.End, c.End) {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// regionBin returns the smallest bin fully containing [beg, end).
func regionBin(beg, end int) uint32 {
	end--
	switch {
	case beg>>14 == end>>14:
		return uint32(((1<<15)-1)/7 + (beg >> 14))
	case beg>>17 == end>>17:
		return uint32(((1<<12)-1)/7 + (beg >> 17))
	case beg>>20 == end>>20:
		return uint32(((1<<9)-1)/7 + (beg >> 20))
	case beg>>23 == end>>23:
		return uint32(((1<<6)-1)/7 + (beg >> 23))
	case beg>>26 == end>>26:
		return uint32(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

// regionBins lists every bin that may hold lines overlapping [beg, end).
func regionBins(beg, end int) []uint32 {
	end--
	bins := []uint32{0}
	for level, shift := 1, 26; level <= binDepth; level, shift = level+1, shift-3 {
		offset := ((1 << (3 * uint(level))) - 1) / 7
		for k := offset + (beg >> uint(shift)); k <= offset+(end>>uint(shift)); k++ {
			bins = append(bins, uint32(k))
		}
	}
	return bins
}

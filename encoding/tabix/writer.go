package tabix

import (
	"bytes"
	"io"
	"strconv"

	"github.com/biogo/hts/bgzf"
	gunsafe "github.com/grailbio/base/unsafe"
	gbgzf "github.com/grailbio/pesr/encoding/bgzf"
	"github.com/pkg/errors"
)

// WriterOpts configures a Writer.
type WriterOpts struct {
	// Conf describes the line layout.  PointConf if zero.
	Conf Conf
	// Level is the compression level passed to the bgzf writer.
	Level int
	// BlockSize is the uncompressed bgzf block size.  Defaults to
	// bgzf.DefaultUncompressedBlockSize.
	BlockSize int
}

// Writer writes a bgzf-compressed, coordinate-sorted text file and builds
// its tabix index on the fly.  Lines must be sorted by position within
// each sequence, and all lines of a sequence must be contiguous.
//
// Writer is not thread safe.
type Writer struct {
	conf   Conf
	level  int
	data   *gbgzf.Writer
	index  io.Writer
	idx    Index
	cur    *RefIndex
	line   int
	lastNm string
	last   int
	tokens [][]byte
}

// NewWriter creates a Writer that writes compressed data to data, and the
// compressed index to index on Close.
func NewWriter(data, index io.Writer, opts WriterOpts) (*Writer, error) {
	if opts.Conf == (Conf{}) {
		opts.Conf = PointConf
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = gbgzf.DefaultUncompressedBlockSize
	}
	if opts.Conf.NameColumn <= 0 || opts.Conf.BeginColumn <= 0 || opts.Conf.EndColumn <= 0 {
		return nil, errors.Errorf("tabix: invalid column configuration %+v", opts.Conf)
	}
	bw, err := gbgzf.NewWriterBlockSize(data, opts.Level, opts.BlockSize)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		conf:  opts.Conf,
		level: opts.Level,
		data:  bw,
		index: index,
		idx:   Index{Conf: opts.Conf},
	}
	return w, nil
}

// Write appends one line (without its trailing newline) to the file.
// Comment lines are copied through without being indexed.
func (w *Writer) Write(line []byte) error {
	w.line++
	if len(line) > 0 && line[0] == w.conf.Meta || w.line <= int(w.conf.Skip) {
		_, err := w.writeLine(line)
		return err
	}
	name, beg, end, err := w.conf.parse(line, &w.tokens)
	if err != nil {
		return errors.Wrapf(err, "tabix: line %d", w.line)
	}
	if name != w.lastNm {
		for _, seen := range w.idx.Names {
			if seen == name {
				return errors.Errorf("tabix: line %d: sequence %s is not contiguous", w.line, name)
			}
		}
		w.startRef(name)
	} else if beg < w.last {
		return errors.Errorf("tabix: line %d: position %d follows %d; input must be sorted", w.line, beg+1, w.last+1)
	}
	w.last = beg

	start, err := w.writeLine(line)
	if err != nil {
		return err
	}
	w.add(beg, end, toOffset(start), toOffset(w.data.VOffset()))
	return nil
}

func (w *Writer) writeLine(line []byte) (uint64, error) {
	start := w.data.VOffset()
	if _, err := w.data.Write(line); err != nil {
		return 0, err
	}
	_, err := w.data.Write([]byte{'\n'})
	return start, err
}

func (w *Writer) startRef(name string) {
	w.finishRef()
	w.idx.Names = append(w.idx.Names, name)
	w.idx.Refs = append(w.idx.Refs, RefIndex{Bins: map[uint32][]bgzf.Chunk{}})
	w.cur = &w.idx.Refs[len(w.idx.Refs)-1]
	w.lastNm = name
	w.last = 0
}

// add records that the line spanning [beg, end) occupies [start, limit)
// in the compressed file.
func (w *Writer) add(beg, end int, start, limit bgzf.Offset) {
	bin := regionBin(beg, end)
	chunks := w.cur.Bins[bin]
	if n := len(chunks); n > 0 && chunks[n-1].End == start {
		chunks[n-1].End = limit
	} else {
		w.cur.Bins[bin] = append(chunks, bgzf.Chunk{Begin: start, End: limit})
	}

	// Linear index entries are filled for every 16kbp window the line
	// touches; the first line to touch a window wins.
	lastWin := (end - 1) >> linearShift
	for len(w.cur.Linear) <= lastWin {
		w.cur.Linear = append(w.cur.Linear, bgzf.Offset{File: -1})
	}
	for win := beg >> linearShift; win <= lastWin; win++ {
		if w.cur.Linear[win].File < 0 {
			w.cur.Linear[win] = start
		}
	}
}

// finishRef fills holes in the linear index of the current sequence with
// the preceding window's offset.
func (w *Writer) finishRef() {
	if w.cur == nil {
		return
	}
	var prev bgzf.Offset
	for i, off := range w.cur.Linear {
		if off.File < 0 {
			w.cur.Linear[i] = prev
		} else {
			prev = off
		}
	}
}

// Close flushes the data file and writes the index.
func (w *Writer) Close() error {
	w.finishRef()
	if err := w.data.Close(); err != nil {
		return err
	}
	iw, err := gbgzf.NewWriter(w.index, w.level)
	if err != nil {
		return err
	}
	w.idx.buildNameIdx()
	if _, err := w.idx.WriteTo(iw); err != nil {
		return err
	}
	return iw.Close()
}

// parse extracts the sequence name and the 0-based half-open interval of a
// line.
func (c Conf) parse(line []byte, tokens *[][]byte) (name string, beg, end int, err error) {
	*tokens = bytes.Split(line, []byte{'\t'})
	fields := *tokens
	maxCol := c.NameColumn
	if c.BeginColumn > maxCol {
		maxCol = c.BeginColumn
	}
	if c.EndColumn > maxCol {
		maxCol = c.EndColumn
	}
	if len(fields) < int(maxCol) {
		return "", 0, 0, errors.Errorf("expected at least %d columns, found %d", maxCol, len(fields))
	}
	name = string(fields[c.NameColumn-1])
	if beg, err = strconv.Atoi(gunsafe.BytesToString(fields[c.BeginColumn-1])); err != nil {
		return "", 0, 0, errors.Wrap(err, "begin column")
	}
	if !c.ZeroBased() {
		beg--
	}
	if c.EndColumn == c.BeginColumn {
		end = beg + 1
	} else if end, err = strconv.Atoi(gunsafe.BytesToString(fields[c.EndColumn-1])); err != nil {
		return "", 0, 0, errors.Wrap(err, "end column")
	}
	if beg < 0 || end <= beg || end > maxPos {
		return "", 0, 0, errors.Errorf("invalid interval [%d, %d)", beg, end)
	}
	return name, beg, end, nil
}

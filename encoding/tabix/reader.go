package tabix

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/index"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// LoadIndex reads a bgzf-compressed .tbi file.
func LoadIndex(ctx context.Context, path string) (idx *Index, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	bg, err := bgzf.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, errors.Wrapf(err, "tabix: %s", path)
	}
	defer func() {
		if e := bg.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if idx, err = ReadIndex(bg); err != nil {
		return nil, errors.Wrapf(err, "tabix: %s", path)
	}
	return idx, nil
}

// LineError reports a line whose coordinate columns could not be parsed.
type LineError struct {
	Line string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("tabix: malformed line %q: %v", e.Line, e.Err)
}

// Reader answers region queries against one bgzf-compressed, tabix-indexed
// file.  A Reader holds a single file cursor and is not thread safe; open
// one Reader per goroutine.
type Reader struct {
	idx    *Index
	bg     *bgzf.Reader
	tokens [][]byte
}

// NewReader creates a Reader over r using idx.
func NewReader(r io.ReadSeeker, idx *Index) (*Reader, error) {
	bg, err := bgzf.NewReader(r, 1)
	if err != nil {
		return nil, err
	}
	return &Reader{idx: idx, bg: bg}, nil
}

// Index returns the index used by the reader.
func (r *Reader) Index() *Index { return r.idx }

// Query calls fn for every line overlapping the 0-based half-open interval
// [beg, end) on the named sequence, in file order.  The line passed to fn is
// only valid during the call.  Querying a sequence missing from the index
// is not an error; fn is simply never called.
func (r *Reader) Query(name string, beg, end int, fn func(line []byte) error) error {
	chunks := r.idx.Chunks(name, beg, end)
	if len(chunks) == 0 {
		return nil
	}
	cr, err := index.NewChunkReader(r.bg, chunks)
	if err != nil {
		return err
	}
	defer cr.Close()
	scanner := bufio.NewScanner(cr)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == r.idx.Meta {
			continue
		}
		lname, lbeg, lend, err := r.idx.Conf.parse(line, &r.tokens)
		if err != nil {
			return &LineError{Line: string(line), Err: err}
		}
		if lname != name || lend <= beg {
			continue
		}
		if lbeg >= end {
			break
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Close releases the bgzf reader.  The underlying io.ReadSeeker is owned
// by the caller.
func (r *Reader) Close() error {
	return r.bg.Close()
}

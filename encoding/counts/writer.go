package counts

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/pesr/encoding/tabix"
	"github.com/klauspost/compress/gzip"
)

// Writer writes a coordinate-sorted evidence file as bgzip plus a tabix
// index at path + ".tbi".
type Writer struct {
	ctx      context.Context
	path     string
	out, idx file.File
	tw       *tabix.Writer
	buf      []byte
}

// NewWriter creates path and its index.
func NewWriter(ctx context.Context, path string) (*Writer, error) {
	w := &Writer{ctx: ctx, path: path}
	var err error
	if w.out, err = file.Create(ctx, path); err != nil {
		return nil, errors.E(err, "create", path)
	}
	if w.idx, err = file.Create(ctx, IndexPath(path)); err != nil {
		w.out.Close(ctx) // nolint: errcheck
		return nil, errors.E(err, "create", IndexPath(path))
	}
	w.tw, err = tabix.NewWriter(w.out.Writer(ctx), w.idx.Writer(ctx), tabix.WriterOpts{
		Conf:  tabix.PointConf,
		Level: gzip.DefaultCompression,
	})
	if err != nil {
		w.out.Close(ctx) // nolint: errcheck
		w.idx.Close(ctx) // nolint: errcheck
		return nil, err
	}
	return w, nil
}

// WriteLine appends a raw line.  Lines must be sorted by chromosome
// block and position.
func (w *Writer) WriteLine(line []byte) error {
	if err := w.tw.Write(line); err != nil {
		return errors.E(errors.Invalid, w.path, err)
	}
	return nil
}

// WriteRecord appends a split-count record.
func (w *Writer) WriteRecord(r Record) error {
	w.buf = r.AppendTSV(w.buf[:0])
	return w.WriteLine(w.buf)
}

// WritePair appends a discordant pair.
func (w *Writer) WritePair(p Pair) error {
	w.buf = p.AppendTSV(w.buf[:0])
	return w.WriteLine(w.buf)
}

// Close finishes the data file and writes the index.
func (w *Writer) Close() error {
	err := w.tw.Close()
	file.CloseAndReport(w.ctx, w.out, &err)
	file.CloseAndReport(w.ctx, w.idx, &err)
	return err
}

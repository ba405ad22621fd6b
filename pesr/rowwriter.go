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
	"context"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// HeaderColumns names the output columns.  The called and background
// columns hold group medians.
var HeaderColumns = []string{"name", "coord", "pos", "significance", "called_median", "bg_median"}

// RowWriter writes rows as tab-separated text.  Not thread safe.
type RowWriter struct {
	ctx  context.Context
	out  file.File
	bgzf *bgzf.Writer
	w    *tsv.Writer
}

// NewRowWriter writes rows to w.  If header is set, the first line lists
// the column names.
func NewRowWriter(w io.Writer, header bool) (*RowWriter, error) {
	rw := &RowWriter{w: tsv.NewWriter(w)}
	if header {
		if err := rw.writeHeader(); err != nil {
			return nil, err
		}
	}
	return rw, nil
}

// CreateRowWriter creates path and writes rows to it.  Paths ending in
// ".gz" are bgzipped.
func CreateRowWriter(ctx context.Context, path string, header bool) (*RowWriter, error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	var dst io.Writer = out.Writer(ctx)
	var bw *bgzf.Writer
	if strings.HasSuffix(path, ".gz") {
		bw = bgzf.NewWriter(dst, runtime.NumCPU())
		dst = bw
	}
	rw, err := NewRowWriter(dst, header)
	if err != nil {
		out.Close(ctx) // nolint: errcheck
		return nil, err
	}
	rw.ctx, rw.out, rw.bgzf = ctx, out, bw
	return rw, nil
}

func (rw *RowWriter) writeHeader() error {
	for _, col := range HeaderColumns {
		rw.w.WriteString(col)
	}
	return rw.w.EndLine()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Write appends rows.
func (rw *RowWriter) Write(rows []Row) error {
	for _, r := range rows {
		rw.w.WriteString(r.Name)
		rw.w.WriteString(string(r.Coord))
		rw.w.WriteInt64(int64(r.Pos))
		rw.w.WriteString(formatFloat(r.Significance))
		rw.w.WriteString(formatFloat(r.Called))
		rw.w.WriteString(formatFloat(r.Background))
		if err := rw.w.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows, and closes the file if the writer created
// it.
func (rw *RowWriter) Close() (err error) {
	err = rw.w.Flush()
	if rw.bgzf != nil {
		if e := rw.bgzf.Close(); e != nil && err == nil {
			err = e
		}
	}
	if rw.out != nil {
		file.CloseAndReport(rw.ctx, rw.out, &err)
	}
	return err
}

// Package svvcf reads the subset of VCF 4.x needed to test structural
// variant breakpoints: the fixed columns, INFO key/values and the GT field
// of every sample.
package svvcf

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/vcfgo"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// Header holds the meta lines and the sample names of a VCF.
type Header struct {
	Meta    []string
	Samples []string
}

// Record is one VCF data line.
type Record struct {
	Chrom string
	// Pos is the 1-based position.
	Pos    int
	ID     string
	Ref    string
	Alt    []string
	Filter string
	// Info maps INFO keys to their raw value.  Flags map to "".
	Info map[string]string
	// GT holds the allele indices of each sample, in header order.  -1
	// marks a missing allele.
	GT [][]int
}

// InfoInt returns the integer value of an INFO key.
func (r *Record) InfoInt(key string) (int, bool, error) {
	v, ok := r.Info[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, errors.E(errors.Invalid, "INFO/"+key, r.ID, err)
	}
	return n, true, nil
}

// Carrier reports whether sample i carries a non-reference allele.
func (r *Record) Carrier(i int) bool {
	if i >= len(r.GT) {
		return false
	}
	for _, a := range r.GT[i] {
		if a > 0 {
			return true
		}
	}
	return false
}

// Reader parses VCF text.  Header lines and records are decoded by vcfgo;
// Reader adds line-numbered errors and skips blank lines.
type Reader struct {
	scanner *bufio.Scanner
	vr      *vcfgo.Reader
	header  Header
	line    int
}

// NewReader reads the header from r.  The first line must be
// ##fileformat.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{scanner: bufio.NewScanner(r)}
	rd.scanner.Buffer(make([]byte, 0, 64<<10), 64<<20)
	var text bytes.Buffer
	for rd.scanner.Scan() {
		rd.line++
		line := rd.scanner.Text()
		text.WriteString(line)
		text.WriteByte('\n')
		if strings.HasPrefix(line, "##") {
			rd.header.Meta = append(rd.header.Meta, line)
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			return nil, errors.E(errors.Invalid, "vcf: missing #CHROM header line")
		}
		vr, err := vcfgo.NewReader(&text, false)
		if err != nil {
			return nil, errors.E(errors.Invalid, "vcf: header", err)
		}
		rd.vr = vr
		rd.header.Samples = vr.Header.SampleNames
		return rd, nil
	}
	if err := rd.scanner.Err(); err != nil {
		return nil, err
	}
	if rd.line > 0 {
		return nil, errors.E(errors.Invalid, "vcf: missing #CHROM header line")
	}
	return nil, errors.E(errors.Invalid, "vcf: empty file")
}

// Header returns the parsed header.
func (r *Reader) Header() *Header { return &r.header }

// Read returns the next record, or io.EOF.
func (r *Reader) Read() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := r.parse(line)
		if err != nil {
			return nil, errors.E(errors.Invalid, "vcf: line "+strconv.Itoa(r.line), err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// parse checks the column layout, which vcfgo assumes, and converts the
// decoded variant.
func (r *Reader) parse(line []byte) (*Record, error) {
	// vcfgo keeps references into fields past this call.
	fields := bytes.SplitN(append([]byte(nil), line...), []byte{'\t'}, 9)
	if len(fields) < 8 {
		return nil, errors.E("expected at least 8 columns, found", strconv.Itoa(len(fields)))
	}
	nSamples := len(r.header.Samples)
	if len(fields) == 9 {
		if n := bytes.Count(fields[8], []byte{'\t'}); n != nSamples {
			return nil, errors.E("sample columns do not match header:", strconv.Itoa(n))
		}
		if nSamples == 0 {
			fields = fields[:8]
		}
	}
	r.vr.LineNumber = int64(r.line)
	v := r.vr.Parse(fields)
	if err := r.vr.Error(); err != nil {
		r.vr.Clear()
		return nil, err
	}
	rec := &Record{
		Chrom:  v.Chrom(),
		Pos:    int(v.Pos),
		ID:     v.Id(),
		Ref:    v.Ref(),
		Filter: v.Filter,
		Info:   parseInfo(string(v.Info().Bytes())),
	}
	if alt := v.Alt(); len(alt) != 1 || alt[0] != "." {
		rec.Alt = alt
	}
	if v.Samples != nil {
		rec.GT = make([][]int, len(v.Samples))
		for i, s := range v.Samples {
			if s != nil && len(s.GT) > 0 {
				rec.GT[i] = s.GT
			}
		}
	}
	return rec, nil
}

func parseInfo(s string) map[string]string {
	info := map[string]string{}
	if s == "." || s == "" {
		return info
	}
	for _, kv := range strings.Split(s, ";") {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			info[kv[:i]] = kv[i+1:]
		} else {
			info[kv] = ""
		}
	}
	return info
}

// ReadFile reads a whole VCF, plain or gzipped, from any path supported by
// grailbio/base/file.
func ReadFile(ctx context.Context, path string) (hdr *Header, recs []*Record, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return nil, nil, errors.E(errors.Invalid, path, err)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	vr, err := NewReader(reader)
	if err != nil {
		return nil, nil, errors.E(path, err)
	}
	for {
		rec, err := vr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.E(path, err)
		}
		recs = append(recs, rec)
	}
	return vr.Header(), recs, nil
}

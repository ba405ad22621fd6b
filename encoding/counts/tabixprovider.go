package counts

import (
	"context"
	"sync"

	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pesr/encoding/tabix"
	"v.io/x/lib/vlog"
)

// TabixProvider implements Provider for bgzipped, tabix-indexed split-count
// and discordant-pair files.  Both the data and the index may be S3 URLs.
//
// Handles are pooled: a closed handle keeps its open file and is handed
// out again by the next NewHandle call.
type TabixProvider struct {
	// Path of the *.txt.gz file. Must be nonempty.
	Path string
	// Index is the pathname of the tabix index. If "", Path + ".tbi".
	Index string
	err   errorreporter.T

	mu          sync.Mutex
	nActive     int
	freeHandles []*tabixHandle
	idx         *tabix.Index
}

type tabixHandle struct {
	provider *TabixProvider
	in       file.File
	reader   *tabix.Reader

	active bool
	err    error
}

func (p *TabixProvider) indexPath() string {
	if p.Index == "" {
		return IndexPath(p.Path)
	}
	return p.Index
}

// index loads the index on first use.  The index is shared by all handles.
func (p *TabixProvider) index(ctx context.Context) (*tabix.Index, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx != nil {
		return p.idx, nil
	}
	idx, err := tabix.LoadIndex(ctx, p.indexPath())
	if err != nil {
		err = unavailable(err, "load index", p.indexPath())
		p.err.Set(err)
		return nil, err
	}
	p.idx = idx
	return idx, nil
}

// NewHandle implements the Provider interface.
func (p *TabixProvider) NewHandle(ctx context.Context) (Handle, error) {
	p.mu.Lock()
	p.nActive++
	if n := len(p.freeHandles); n > 0 {
		h := p.freeHandles[n-1]
		p.freeHandles = p.freeHandles[:n-1]
		h.active = true
		h.err = nil
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	h := &tabixHandle{provider: p, active: true}
	idx, err := p.index(ctx)
	if err != nil {
		h.err = err
		h.Close() // nolint: errcheck
		return nil, err
	}
	bctx := vcontext.Background()
	if h.in, err = file.Open(bctx, p.Path); err != nil {
		h.err = unavailable(err, "open", p.Path)
		h.Close() // nolint: errcheck
		return nil, h.err
	}
	if h.reader, err = tabix.NewReader(h.in.Reader(bctx), idx); err != nil {
		h.err = unavailable(err, "read", p.Path)
		h.Close() // nolint: errcheck
		return nil, h.err
	}
	return h, nil
}

// Close implements the Provider interface.
func (p *TabixProvider) Close() error {
	if p.nActive > 0 {
		vlog.Fatalf("%d handles still active for %+v", p.nActive, p.Path)
	}
	for _, h := range p.freeHandles {
		h.internalClose()
	}
	p.freeHandles = nil
	return p.err.Err()
}

func (p *TabixProvider) freeHandle(h *tabixHandle) {
	if !h.active {
		vlog.Fatalf("handle for %s closed twice", p.Path)
	}
	h.active = false
	if h.err != nil {
		// The file cursor may be in an unknown state. Don't reuse it.
		h.internalClose()
		h = nil
	}
	p.mu.Lock()
	if h != nil {
		p.freeHandles = append(p.freeHandles, h)
	}
	p.nActive--
	if p.nActive < 0 {
		vlog.Fatalf("Negative active count for %s", p.Path)
	}
	p.mu.Unlock()
}

func (h *tabixHandle) query(ctx context.Context, chrom string, start, end int, fn func(line []byte) error) error {
	if !h.active {
		vlog.Fatal("query on a closed handle")
	}
	if end < 1 || end < start {
		return nil
	}
	if start < 1 {
		start = 1
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := h.reader.Query(chrom, start-1, end, fn)
	if err == nil {
		return nil
	}
	if _, ok := err.(*tabix.LineError); ok {
		return errors.E(errors.Invalid, "malformed evidence row in", h.provider.Path, err)
	}
	if errors.Is(errors.Invalid, err) {
		return err
	}
	h.err = unavailable(err, "query", h.provider.Path)
	return h.err
}

// Splits implements the Handle interface.
func (h *tabixHandle) Splits(ctx context.Context, chrom string, start, end int) ([]Record, error) {
	var recs []Record
	err := h.query(ctx, chrom, start, end, func(line []byte) error {
		r, err := ParseRecord(line)
		if err != nil {
			return err
		}
		recs = append(recs, r)
		return nil
	})
	return recs, err
}

// Pairs implements the Handle interface.
func (h *tabixHandle) Pairs(ctx context.Context, chrom string, start, end int) ([]Pair, error) {
	var pairs []Pair
	err := h.query(ctx, chrom, start, end, func(line []byte) error {
		p, err := ParsePair(line)
		if err != nil {
			return err
		}
		pairs = append(pairs, p)
		return nil
	})
	return pairs, err
}

// Close implements the Handle interface.
func (h *tabixHandle) Close() error {
	err := h.err
	h.provider.freeHandle(h)
	return err
}

func (h *tabixHandle) internalClose() {
	if h.reader != nil {
		if err := h.reader.Close(); err != nil && h.err == nil {
			h.err = unavailable(err, "close", h.provider.Path)
		}
		h.reader = nil
	}
	if h.in != nil {
		if err := h.in.Close(vcontext.Background()); err != nil && h.err == nil {
			h.err = unavailable(err, "close", h.provider.Path)
		}
		h.in = nil
	}
	h.provider.err.Set(h.err)
}

func unavailable(err error, op, path string) error {
	if errors.Is(errors.NotExist, err) {
		return errors.E(errors.NotExist, op, path, err)
	}
	return errors.E(errors.Unavailable, op, path, err)
}

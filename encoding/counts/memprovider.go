package counts

import (
	"context"
	"sync/atomic"

	"github.com/biogo/store/llrb"
)

type memKey struct {
	chrom string
	pos   int
	seq   int
	rec   *Record
	pair  *Pair
}

// Compare compares two key objects for use in llrb.
func (k memKey) Compare(c2 llrb.Comparable) int {
	k2 := c2.(memKey)
	if k.chrom != k2.chrom {
		if k.chrom < k2.chrom {
			return -1
		}
		return 1
	}
	if diff := k.pos - k2.pos; diff != 0 {
		return diff
	}
	return k.seq - k2.seq
}

// MemProvider is a Provider over records held in memory.  It is used by
// tests and by callers that already have the evidence loaded.
type MemProvider struct {
	splits  llrb.Tree
	pairs   llrb.Tree
	n       int
	queries int64
}

// NewMemProvider creates a provider that serves the given records.
func NewMemProvider(recs []Record, pairs []Pair) *MemProvider {
	p := &MemProvider{}
	for i := range recs {
		r := recs[i]
		p.splits.Insert(memKey{chrom: r.Chrom, pos: r.Pos, seq: p.n, rec: &r})
		p.n++
	}
	for i := range pairs {
		pr := pairs[i]
		p.pairs.Insert(memKey{chrom: pr.ChromA, pos: pr.PosA, seq: p.n, pair: &pr})
		p.n++
	}
	return p
}

// Queries returns the number of queries served so far.
func (p *MemProvider) Queries() int {
	return int(atomic.LoadInt64(&p.queries))
}

// NewHandle implements the Provider interface.
func (p *MemProvider) NewHandle(ctx context.Context) (Handle, error) {
	return memHandle{p}, nil
}

// Close implements the Provider interface.
func (p *MemProvider) Close() error { return nil }

type memHandle struct{ p *MemProvider }

func (h memHandle) scan(t *llrb.Tree, chrom string, start, end int, fn func(k memKey)) {
	atomic.AddInt64(&h.p.queries, 1)
	if end < start {
		return
	}
	from := memKey{chrom: chrom, pos: start, seq: -1}
	to := memKey{chrom: chrom, pos: end + 1, seq: -1}
	t.DoRange(func(c llrb.Comparable) bool {
		fn(c.(memKey))
		return false
	}, from, to)
}

// Splits implements the Handle interface.
func (h memHandle) Splits(ctx context.Context, chrom string, start, end int) ([]Record, error) {
	var recs []Record
	h.scan(&h.p.splits, chrom, start, end, func(k memKey) { recs = append(recs, *k.rec) })
	return recs, ctx.Err()
}

// Pairs implements the Handle interface.
func (h memHandle) Pairs(ctx context.Context, chrom string, start, end int) ([]Pair, error) {
	var pairs []Pair
	h.scan(&h.p.pairs, chrom, start, end, func(k memKey) { pairs = append(pairs, *k.pair) })
	return pairs, ctx.Err()
}

// Close implements the Handle interface.
func (h memHandle) Close() error { return nil }

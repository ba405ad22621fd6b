package counts

import (
	"context"
	"strings"
)

// Provider gives out handles to one evidence file.  Thread safe.
type Provider interface {
	// NewHandle returns a handle for querying the file.  Each goroutine must
	// use its own handle.
	//
	// REQUIRES: Close has not been called.
	NewHandle(ctx context.Context) (Handle, error)

	// Close must be called exactly once. It returns any error encountered by
	// the provider, or by any handle created by the provider.
	//
	// REQUIRES: All the handles created by NewHandle have been closed.
	Close() error
}

// Handle answers positional queries against an evidence file.  Positions
// are 1-based and both bounds are inclusive.  A query matching nothing
// returns an empty result, not an error.  Thread compatible.
//
// Errors of kind errors.Invalid report malformed rows; errors of kind
// errors.Unavailable report that the underlying file could not be read.
type Handle interface {
	// Splits returns the split-count records on chrom within [start, end].
	Splits(ctx context.Context, chrom string, start, end int) ([]Record, error)

	// Pairs returns the discordant pairs whose first end lies on chrom
	// within [start, end].
	Pairs(ctx context.Context, chrom string, start, end int) ([]Pair, error)

	// Close returns the handle to its provider.  It returns the first error
	// seen by the handle.
	Close() error
}

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index is the path of the tabix index.  If "", it defaults to
	// path + ".tbi".
	Index string
}

// NewProvider creates a provider for the bgzipped, tabix-indexed file at
// path.  Path may be any URL supported by grailbio/base/file.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	opts := ProviderOpts{}
	for _, o := range optList {
		if o.Index != "" {
			opts.Index = o.Index
		}
	}
	return &TabixProvider{Path: path, Index: opts.Index}
}

// IndexPath returns the conventional index path for a bgzipped file.
func IndexPath(path string) string {
	return strings.TrimSuffix(path, "/") + ".tbi"
}

// Package counts reads and writes the per-sample evidence files consumed by
// the breakpoint tests.
//
// A split-count file lists, per position, how many reads of each sample are
// soft-clipped there and on which side.  A discordant-pair file lists read
// pairs whose mates map in an unexpected orientation or distance.  Both are
// coordinate-sorted, bgzipped and tabix-indexed on their first two columns.
//
// Provider hands out Handles that answer positional queries, one Handle per
// goroutine.
package counts

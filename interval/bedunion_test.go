package interval

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const testBED = `track name=test
chr1	2488104	2488172
chr1	2489165	2489273
chr1	2488150	2488200
# comment
chr2	100	200
chr2	200	300
chr1	2489782	2489907
`

func TestNewBEDUnion(t *testing.T) {
	tests := []struct {
		invert, oneBasedInput bool
		want                  map[string][]PosType
	}{
		{
			false, false,
			map[string][]PosType{
				"chr1": {2488104, 2488200, 2489165, 2489273, 2489782, 2489907},
				"chr2": {100, 300},
			},
		},
		{
			true, true,
			map[string][]PosType{
				"chr1": {-1, 2488103, 2488200, 2489164, 2489273, 2489781, 2489907, math.MaxInt32},
				"chr2": {-1, 99, 300, math.MaxInt32},
			},
		},
	}
	for _, tt := range tests {
		u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{Invert: tt.invert, OneBasedInput: tt.oneBasedInput})
		assert.NoError(t, err)
		if !reflect.DeepEqual(u.nameMap, tt.want) {
			t.Errorf("invert=%v oneBased=%v: got %v, want %v", tt.invert, tt.oneBasedInput, u.nameMap, tt.want)
		}
	}
}

func TestNewBEDUnionErrors(t *testing.T) {
	for _, bed := range []string{
		"chr1\t100\n",
		"chr1\tx\t200\n",
		"chr1\t300\t200\n",
	} {
		_, err := NewBEDUnion(strings.NewReader(bed), NewBEDOpts{})
		expect.True(t, errors.Is(errors.Invalid, err), "bed %q: %v", bed, err)
	}
}

func TestNewBEDUnionFromPath(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "interval")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "test.bed")
	assert.NoError(t, ioutil.WriteFile(path, []byte(testBED), 0644))
	u, err := NewBEDUnionFromPath(path, NewBEDOpts{})
	assert.NoError(t, err)
	expect.True(t, u.ContainsByName("chr2", 299))
	expect.False(t, u.ContainsByName("chr2", 300))
}

func TestContainsByName(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	tests := []struct {
		chr  string
		pos  PosType
		want bool
	}{
		{"chr1", 0, false},
		{"chr1", 2488103, false},
		{"chr1", 2488104, true},
		{"chr1", 2488199, true},
		{"chr1", 2488200, false},
		{"chr1", 2489906, true},
		{"chr1", 2489907, false},
		// Jump backward.
		{"chr1", 2489200, true},
		{"chr2", 99, false},
		{"chr2", 100, true},
		{"chr3", 100, false},
		{"chr2", 250, true},
	}
	for _, tt := range tests {
		expect.EQ(t, u.ContainsByName(tt.chr, tt.pos), tt.want, "%s:%d", tt.chr, tt.pos)
	}

	inv, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{Invert: true})
	assert.NoError(t, err)
	expect.True(t, inv.ContainsByName("chr1", 0))
	expect.False(t, inv.ContainsByName("chr1", 2488104))
	expect.False(t, inv.ContainsByName("chr3", 0))
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region string
		want   Entry
		ok     bool
	}{
		{"chr1", Entry{"chr1", 0, PosTypeMax - 1}, true},
		{"chr1:100", Entry{"chr1", 99, 100}, true},
		{"chr1:1,000-2,000", Entry{"chr1", 999, 2000}, true},
		{"HLA-A*01:01:01:01:1-5", Entry{"HLA-A*01:01:01:01", 0, 5}, true},
		{"", Entry{}, false},
		{":1-5", Entry{}, false},
		{"chr1:0-5", Entry{}, false},
		{"chr1:5-4", Entry{}, false},
	}
	for _, tt := range tests {
		got, err := ParseRegionString(tt.region)
		if !tt.ok {
			expect.NotNil(t, err, tt.region)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want)
	}
}

func TestEntries(t *testing.T) {
	entries := []Entry{
		{"chr2", 10, 20},
		{"chr1", 30, 40},
		{"chr1", 5, 12},
		{"chr1", 12, 15},
		{"chr2", 0, 0},
	}
	SortEntries(entries)
	u, err := NewBEDUnionFromEntries(entries, NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, u.Entries(), []Entry{
		{"chr1", 5, 15},
		{"chr1", 30, 40},
		{"chr2", 10, 20},
	})
	expect.EQ(t, u.covered(), 30)

	expect.True(t, u.ContainsByName("chr1", 14))
	expect.False(t, u.ContainsByName("chr1", 15))

	_, err = NewBEDUnionFromEntries([]Entry{{"chr1", 10, 20}, {"chr2", 0, 5}, {"chr1", 30, 40}}, NewBEDOpts{})
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestExpsearchPosType(t *testing.T) {
	a := []PosType{1, 3, 5, 7, 9, 11, 13}
	for x := PosType(0); x < 15; x++ {
		want := SearchPosTypes(a, x)
		for idx := EndpointIndex(0); idx <= want; idx++ {
			expect.EQ(t, ExpsearchPosType(a, x, idx), want, "x=%d idx=%d", x, idx)
		}
	}
}

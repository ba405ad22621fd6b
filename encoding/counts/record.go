package counts

import (
	"bytes"
	"strconv"

	"github.com/grailbio/base/errors"
	gunsafe "github.com/grailbio/base/unsafe"
)

// Clip is the side of a read on which its alignment is soft-clipped.
type Clip uint8

const (
	// ClipLeft means the read is clipped on its 5' (leftmost) end.
	ClipLeft Clip = iota
	// ClipRight means the read is clipped on its 3' (rightmost) end.
	ClipRight
)

var clipNames = [...]string{"left", "right"}

func (c Clip) String() string {
	if int(c) < len(clipNames) {
		return clipNames[c]
	}
	return "Clip(" + strconv.Itoa(int(c)) + ")"
}

// ParseClip parses "left" or "right".
func ParseClip(s []byte) (Clip, error) {
	for i, name := range clipNames {
		if gunsafe.BytesToString(s) == name {
			return Clip(i), nil
		}
	}
	return 0, errors.E(errors.Invalid, "unknown clip orientation", string(s))
}

// Strand is a breakpoint or read strand, '+' or '-'.
type Strand byte

const (
	// StrandPlus is the forward strand.
	StrandPlus Strand = '+'
	// StrandMinus is the reverse strand.
	StrandMinus Strand = '-'
)

// ParseStrand parses a single-character strand.
func ParseStrand(s []byte) (Strand, error) {
	if len(s) == 1 && (s[0] == '+' || s[0] == '-') {
		return Strand(s[0]), nil
	}
	return 0, errors.E(errors.Invalid, "unknown strand", string(s))
}

func (s Strand) String() string { return string(rune(s)) }

// Clip returns the clip orientation supporting a breakpoint on this strand:
// reads supporting a '+' breakpoint are clipped on the right, reads
// supporting a '-' breakpoint on the left.
func (s Strand) Clip() Clip {
	if s == StrandPlus {
		return ClipRight
	}
	return ClipLeft
}

// Record is one row of a split-count file: the number of reads from Sample
// clipped at Chrom:Pos on the Clip side.
//
// The on-disk columns are chrom, pos (1-based), clip, count, sample.
type Record struct {
	Chrom  string
	Pos    int
	Clip   Clip
	Count  int
	Sample string
}

// Pair is one row of a discordant-pair file: a read pair from Sample with
// ends at ChromA:PosA and ChromB:PosB.
//
// The on-disk columns are chrA, posA, strandA, chrB, posB, strandB, sample.
type Pair struct {
	ChromA  string
	PosA    int
	StrandA Strand
	ChromB  string
	PosB    int
	StrandB Strand
	Sample  string
}

func splitFields(line []byte, n int, what string) ([][]byte, error) {
	fields := bytes.Split(line, []byte{'\t'})
	if len(fields) != n {
		return nil, errors.E(errors.Invalid, "malformed "+what+": expected "+strconv.Itoa(n)+" columns", string(line))
	}
	return fields, nil
}

func parseInt(field, line []byte, what string) (int, error) {
	v, err := strconv.Atoi(gunsafe.BytesToString(field))
	if err != nil {
		return 0, errors.E(errors.Invalid, "malformed "+what, string(line), err)
	}
	if v < 0 {
		return 0, errors.E(errors.Invalid, "negative "+what, string(line))
	}
	return v, nil
}

// ParseRecord parses a split-count line.  The returned error has kind
// errors.Invalid if the line does not have the expected fields.
func ParseRecord(line []byte) (Record, error) {
	fields, err := splitFields(line, 5, "split count")
	if err != nil {
		return Record{}, err
	}
	r := Record{Chrom: string(fields[0]), Sample: string(fields[4])}
	if r.Pos, err = parseInt(fields[1], line, "split count position"); err != nil {
		return Record{}, err
	}
	if r.Clip, err = ParseClip(fields[2]); err != nil {
		return Record{}, errors.E(err, string(line))
	}
	if r.Count, err = parseInt(fields[3], line, "split count"); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ParsePair parses a discordant-pair line.  The returned error has kind
// errors.Invalid if the line does not have the expected fields.
func ParsePair(line []byte) (Pair, error) {
	fields, err := splitFields(line, 7, "discordant pair")
	if err != nil {
		return Pair{}, err
	}
	p := Pair{ChromA: string(fields[0]), ChromB: string(fields[3]), Sample: string(fields[6])}
	if p.PosA, err = parseInt(fields[1], line, "discordant pair position"); err != nil {
		return Pair{}, err
	}
	if p.PosB, err = parseInt(fields[4], line, "discordant pair position"); err != nil {
		return Pair{}, err
	}
	if p.StrandA, err = ParseStrand(fields[2]); err != nil {
		return Pair{}, errors.E(err, string(line))
	}
	if p.StrandB, err = ParseStrand(fields[5]); err != nil {
		return Pair{}, errors.E(err, string(line))
	}
	return p, nil
}

// AppendTSV appends the on-disk encoding of r, without a newline.
func (r Record) AppendTSV(buf []byte) []byte {
	buf = append(buf, r.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(r.Pos), 10)
	buf = append(buf, '\t')
	buf = append(buf, r.Clip.String()...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(r.Count), 10)
	buf = append(buf, '\t')
	return append(buf, r.Sample...)
}

// AppendTSV appends the on-disk encoding of p, without a newline.
func (p Pair) AppendTSV(buf []byte) []byte {
	buf = append(buf, p.ChromA...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(p.PosA), 10)
	buf = append(buf, '\t', byte(p.StrandA), '\t')
	buf = append(buf, p.ChromB...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(p.PosB), 10)
	buf = append(buf, '\t', byte(p.StrandB), '\t')
	return append(buf, p.Sample...)
}

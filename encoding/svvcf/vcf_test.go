package svvcf

import (
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
##INFO=<ID=SVTYPE,Number=1,Type=String,Description="Type of structural variant">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	a	b	c
chr1	100	sv1	N	<DEL>	.	PASS	SVTYPE=DEL;END=500;IMPRECISE	GT:GQ	0/1:30	./.:0	1|1:99

chr2	200	sv2	N	N[chr3:7[,<INS>	.	.	.	GQ:GT	10:0/0	20:0/2	30:.
`

func TestReader(t *testing.T) {
	r, err := NewReader(strings.NewReader(testVCF))
	require.NoError(t, err)
	hdr := r.Header()
	expect.EQ(t, len(hdr.Meta), 2)
	expect.EQ(t, hdr.Samples, []string{"a", "b", "c"})

	rec, err := r.Read()
	require.NoError(t, err)
	expect.EQ(t, rec.Chrom, "chr1")
	expect.EQ(t, rec.Pos, 100)
	expect.EQ(t, rec.ID, "sv1")
	expect.EQ(t, rec.Alt, []string{"<DEL>"})
	expect.EQ(t, rec.Info, map[string]string{"SVTYPE": "DEL", "END": "500", "IMPRECISE": ""})
	expect.EQ(t, rec.GT, [][]int{{0, 1}, {-1, -1}, {1, 1}})
	expect.EQ(t, []bool{rec.Carrier(0), rec.Carrier(1), rec.Carrier(2), rec.Carrier(3)}, []bool{true, false, true, false})
	end, ok, err := rec.InfoInt("END")
	assert.NoError(t, err)
	expect.True(t, ok)
	expect.EQ(t, end, 500)
	_, ok, err = rec.InfoInt("SVLEN")
	assert.NoError(t, err)
	expect.False(t, ok)
	_, _, err = rec.InfoInt("SVTYPE")
	expect.True(t, errors.Is(errors.Invalid, err))

	rec, err = r.Read()
	require.NoError(t, err)
	expect.EQ(t, rec.ID, "sv2")
	expect.EQ(t, rec.Alt, []string{"N[chr3:7[", "<INS>"})
	expect.EQ(t, len(rec.Info), 0)
	expect.EQ(t, rec.GT, [][]int{{0, 0}, {0, 2}, {-1}})
	expect.EQ(t, []bool{rec.Carrier(0), rec.Carrier(1), rec.Carrier(2)}, []bool{false, true, false})

	_, err = r.Read()
	expect.EQ(t, err, io.EOF)
}

func TestReaderErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"##fileformat=VCFv4.2\nchr1\t1\n",
		"##fileformat=VCFv4.2\n",
		// The version line must come first.
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
	} {
		_, err := NewReader(strings.NewReader(text))
		expect.True(t, errors.Is(errors.Invalid, err), "%q: %v", text, err)
	}

	const header = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\ta\tb\n"
	for _, line := range []string{
		"chr1\t100\tsv1\tN\t<DEL>\t.\tPASS",
		"chr1\tx\tsv1\tN\t<DEL>\t.\tPASS\t.",
		"chr1\t100\tsv1\tN\t<DEL>\tq\tPASS\t.",
		"chr1\t100\tsv1\tN\t<DEL>\t.\tPASS\t.\tGT\t0/1",
		"chr1\t100\tsv1\tN\t<DEL>\t.\tPASS\t.\tGT\t0/1\t0/1\t1/1",
		"chr1\t100\tsv1\tN\t<DEL>\t.\tPASS\t.\tGT\t0/x\t0/1",
	} {
		r, err := NewReader(strings.NewReader(header + line + "\n"))
		require.NoError(t, err)
		_, err = r.Read()
		expect.True(t, errors.Is(errors.Invalid, err), "%q: %v", line, err)
		expect.True(t, strings.Contains(err.Error(), "line 3"), "%v", err)
	}

	// A bad record does not poison the ones after it.
	r, err := NewReader(strings.NewReader(header +
		"chr1\tx\tsv1\tN\t<DEL>\t.\tPASS\t.\tGT\t0/1\t0/0\n" +
		"chr1\t200\tsv2\tN\t<DEL>\t.\tPASS\t.\tGT\t0/0\t1/1\n"))
	require.NoError(t, err)
	_, err = r.Read()
	expect.True(t, errors.Is(errors.Invalid, err))
	rec, err := r.Read()
	require.NoError(t, err)
	expect.EQ(t, rec.Pos, 200)
	expect.EQ(t, rec.GT, [][]int{{0, 0}, {1, 1}})
}

func TestReaderNoSamples(t *testing.T) {
	r, err := NewReader(strings.NewReader("##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\n" +
		"chr1\t100\tsv1\tN\t.\t.\tPASS\tSVTYPE=DEL\tGT\n"))
	require.NoError(t, err)
	expect.EQ(t, len(r.Header().Samples), 0)
	rec, err := r.Read()
	require.NoError(t, err)
	expect.EQ(t, rec.ID, "sv1")
	expect.EQ(t, len(rec.Alt), 0)
	expect.EQ(t, rec.Info["SVTYPE"], "DEL")
	expect.False(t, rec.Carrier(0))
}

func TestReadFile(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpDir)
	ctx := vcontext.Background()

	plain := filepath.Join(tmpDir, "calls.vcf")
	require.NoError(t, ioutil.WriteFile(plain, []byte(testVCF), 0644))
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testVCF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	compressed := filepath.Join(tmpDir, "calls.vcf.gz")
	require.NoError(t, ioutil.WriteFile(compressed, buf.Bytes(), 0644))

	for _, path := range []string{plain, compressed} {
		hdr, recs, err := ReadFile(ctx, path)
		require.NoError(t, err, path)
		expect.EQ(t, hdr.Samples, []string{"a", "b", "c"})
		require.Len(t, recs, 2)
		expect.EQ(t, recs[1].ID, "sv2")
	}
	_, _, err = ReadFile(ctx, filepath.Join(tmpDir, "missing.vcf"))
	expect.NotNil(t, err)
}

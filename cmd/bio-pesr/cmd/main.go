package cmd

import (
	"fmt"
	"log"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pesr/pesr"
	"v.io/x/lib/cmdline"
)

type testFlags struct {
	window      *int
	windowIn    *int
	windowOut   *int
	background  *int
	seed        *uint64
	include     *string
	exclude     *string
	bed         *string
	region      *string
	bedInvert   *bool
	bedOneBased *bool
	splitsIndex *string
	pairsIndex  *string
	parallelism *int
	header      *bool
	failFast    *bool
}

func newTestFlags(cmd *cmdline.Command, mode pesr.Mode) *testFlags {
	d := pesr.DefaultOpts
	f := &testFlags{
		background:  cmd.Flags.Int("background", d.NBackground, "Maximum number of background samples per record"),
		seed:        cmd.Flags.Uint64("seed", d.Seed, "Seed mixed into the per-record background subsampling"),
		include:     cmd.Flags.String("samples-include", "", "File listing the samples to test, one per line; default all"),
		exclude:     cmd.Flags.String("samples-exclude", "", "File listing samples to leave out, one per line"),
		bed:         cmd.Flags.String("bed", d.BedPath, "Only test records with an end inside these BED intervals"),
		bedInvert:   cmd.Flags.Bool("bed-invert", d.BedInvert, "Test records with an end outside the -bed intervals instead. Chromosomes absent from the BED file are not covered"),
		bedOneBased: cmd.Flags.Bool("bed-one-based", d.BedOneBased, "Read -bed intervals as one-based [start, end] instead of zero-based [start, end)"),
		region:      cmd.Flags.String("region", d.Region, "Only test records with an end inside this region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>"),
		parallelism: cmd.Flags.Int("parallelism", d.Parallelism, "Maximum number of records tested at once; 0 = runtime.NumCPU()"),
		header:      cmd.Flags.Bool("header", d.Header, "Write a column-name line first"),
		failFast:    cmd.Flags.Bool("fail-fast", d.FailFast, "Stop at the first record that fails, instead of logging it and moving on"),
	}
	if mode != pesr.PE {
		f.window = cmd.Flags.Int("window", d.Window, "Radius, in bases, of the split-read scan around each breakpoint end")
		f.splitsIndex = cmd.Flags.String("splits-index", "", "Split-count index path. Defaults to the count path + .tbi")
	}
	if mode != pesr.SR {
		f.windowIn = cmd.Flags.Int("window-in", d.WindowIn, "Discordant-pair window inside the variant")
		f.windowOut = cmd.Flags.Int("window-out", d.WindowOut, "Discordant-pair window outside the variant")
		f.pairsIndex = cmd.Flags.String("pairs-index", "", "Discordant-pair index path. Defaults to the pair path + .tbi")
	}
	return f
}

func newCmdSRTest() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "sr-test",
		Short:    "Test split-read support of each breakpoint",
		ArgsName: "vcf splits out",
		Long: `
Scans the window around both ends of every record for the position where the
split-read counts of the called samples are most enriched over the background
samples, and writes three rows per record: posA, posB and sum.`,
	}
	flags := newTestFlags(cmd, pesr.SR)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("sr-test takes vcf, splits and out paths, but got %v", argv)
		}
		return runTest(vcontext.Background(), pesr.SR, flags, testPaths{
			vcf: argv[0], splits: argv[1], out: argv[2],
		})
	})
	return cmd
}

func newCmdPETest() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pe-test",
		Short:    "Test discordant-pair support of each breakpoint",
		ArgsName: "vcf pairs out",
	}
	flags := newTestFlags(cmd, pesr.PE)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("pe-test takes vcf, pairs and out paths, but got %v", argv)
		}
		return runTest(vcontext.Background(), pesr.PE, flags, testPaths{
			vcf: argv[0], pairs: argv[1], out: argv[2],
		})
	})
	return cmd
}

func newCmdPESRTest() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "pesr-test",
		Short:    "Run the split-read and discordant-pair tests, and their combination",
		ArgsName: "vcf splits pairs out",
		Long: `
Writes five rows per record: the three split-read rows, the discordant-pair
row (pe), and a pesr row retesting the summed split-read and pair medians.`,
	}
	flags := newTestFlags(cmd, pesr.PESR)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 4 {
			return fmt.Errorf("pesr-test takes vcf, splits, pairs and out paths, but got %v", argv)
		}
		return runTest(vcontext.Background(), pesr.PESR, flags, testPaths{
			vcf: argv[0], splits: argv[1], pairs: argv[2], out: argv[3],
		})
	})
	return cmd
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Bgzip and tabix-index a sorted split-count or discordant-pair file",
		ArgsName: "src dest",
		Long: `
src is a tab-separated text file, optionally gzipped, sorted by chromosome
block and position.  dest is written bgzipped, with its index at dest.tbi.`,
	}
	format := cmd.Flags.String("format", "split", "Input format; 'split' or 'disc'")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("index takes src and dest paths, but got %v", argv)
		}
		return index(vcontext.Background(), *format, argv[0], argv[1])
	})
	return cmd
}

// Run runs bio-pesr with the command line arguments.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bio-pesr",
			Short:    "Tests structural variant calls for split-read and discordant-pair evidence",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdSRTest(),
				newCmdPETest(),
				newCmdPESRTest(),
				newCmdIndex(),
			},
		})
}

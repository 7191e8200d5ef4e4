package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"loopopt/internal/irio"
	"loopopt/internal/pipeline"
)

var optCmd = &cobra.Command{
	Use:   "opt [flags] <file.lir>...",
	Short: "Optimize loop programs",
	Long: `Run the pass pipeline over each file. Without -o the optimized program is
printed; with -o it is written to that directory under the same name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOpt,
}

func init() {
	optCmd.Flags().IntP("jobs", "j", 0, "max files optimized in parallel (0=auto)")
	optCmd.Flags().Int("verify", 0, "check each result on N random memories (overrides pipeline.verify)")
	optCmd.Flags().Uint64("seed", 0, "seed of the first random memory (overrides pipeline.seed)")
	optCmd.Flags().StringSlice("passes", nil, "comma-separated pass order (partition|simplify|trim)")
	optCmd.Flags().Bool("timings", false, "print per-pass timings")
	optCmd.Flags().StringP("output", "o", "", "directory for optimized files")
}

type optResult struct {
	path   string
	file   *irio.File
	result *pipeline.Result
	err    error
}

func runOpt(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	outDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	override, err := pipelineOverrides(cmd)
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]optResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			r := &results[i]
			r.path = path
			r.file, r.err = irio.ReadFile(path)
			if r.err != nil {
				return nil
			}
			opts := override(settings.Options(r.file.Buffers))
			opts.Timings = showTimings
			r.result, r.err = pipeline.Run(ctx, r.file.Program, opts)
			if r.err != nil {
				r.err = fmt.Errorf("%s: %w", path, r.err)
				return nil
			}
			if outDir != "" {
				out := &irio.File{Name: r.file.Name, Program: r.result.Stmt, Buffers: r.file.Buffers}
				r.err = irio.WriteFile(filepath.Join(outDir, filepath.Base(path)), out)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs []error
	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", errorColor.Sprint("error:"), r.err)
			continue
		}
		printOptResult(w, r, outDir == "")
		if showTimings {
			printTimings(w, r.path, r.result.Report.Timings)
		}
	}
	if len(errs) > 0 {
		dumpTrace()
	}
	return errors.Join(errs...)
}

// pipelineOverrides returns a function applying the opt flags that were
// set explicitly on top of configured options.
func pipelineOverrides(cmd *cobra.Command) (func(pipeline.Options) pipeline.Options, error) {
	flags := cmd.Flags()
	verify, err := flags.GetInt("verify")
	if err != nil {
		return nil, fmt.Errorf("failed to get verify flag: %w", err)
	}
	if verify < 0 {
		return nil, fmt.Errorf("--verify must be non-negative, got %d", verify)
	}
	seed, err := flags.GetUint64("seed")
	if err != nil {
		return nil, fmt.Errorf("failed to get seed flag: %w", err)
	}
	passes, err := flags.GetStringSlice("passes")
	if err != nil {
		return nil, fmt.Errorf("failed to get passes flag: %w", err)
	}
	if err := pipeline.ValidatePasses(passes); err != nil {
		return nil, err
	}
	return func(o pipeline.Options) pipeline.Options {
		if flags.Changed("verify") {
			o.Verify = verify
		}
		if flags.Changed("seed") {
			o.Seed = seed
		}
		if len(passes) > 0 {
			o.Passes = passes
		}
		return o
	}, nil
}

func printOptResult(w io.Writer, r optResult, showProgram bool) {
	rep := r.result.Report
	name := fitName(r.path, terminalWidth(80)/2)
	line := fmt.Sprintf("%s %s: loops %d -> %d", okColor.Sprint("ok"), name, rep.LoopsBefore, rep.LoopsAfter)
	if rep.Verified > 0 {
		line += dimColor.Sprintf(" (verified on %d memories)", rep.Verified)
	}
	fmt.Fprintln(w, line)
	if showProgram {
		fmt.Fprint(w, r.result.Stmt.String())
	}
}

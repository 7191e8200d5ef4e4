package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"loopopt/internal/demo"
	"loopopt/internal/irio"
	"loopopt/internal/pipeline"
)

var demoCmd = &cobra.Command{
	Use:   "demo [flags] [name]",
	Short: "List, run or export the built-in example programs",
	Long: `Without arguments, list the built-in programs. With a name, optimize that
program and print it before and after. --emit writes the programs as IR
files for use with "loopopt opt".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().String("emit", "", "write the selected programs (all when no name is given) to this directory")
	demoCmd.Flags().Int("verify", 8, "check the result on N random memories")
	demoCmd.Flags().Bool("timings", false, "print per-pass timings")
}

func runDemo(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	emitDir, err := cmd.Flags().GetString("emit")
	if err != nil {
		return fmt.Errorf("failed to get emit flag: %w", err)
	}
	verify, err := cmd.Flags().GetInt("verify")
	if err != nil {
		return fmt.Errorf("failed to get verify flag: %w", err)
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	programs := demo.All()
	if len(args) == 1 {
		p, ok := demo.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown demo %q (run \"loopopt demo\" for the list)", args[0])
		}
		programs = []demo.Program{p}
	}

	out := cmd.OutOrStdout()
	switch {
	case emitDir != "":
		for _, p := range programs {
			path := filepath.Join(emitDir, p.Name+".lir")
			if err := irio.WriteFile(path, &irio.File{Name: p.Name, Program: p.Stmt, Buffers: p.Buffers}); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", okColor.Sprint("wrote"), path)
		}
		return nil
	case len(args) == 0:
		listDemos(out, programs)
		return nil
	}

	p := programs[0]
	opts := settings.Options(p.Buffers)
	opts.Verify = verify
	opts.Timings = showTimings
	res, err := pipeline.Run(cmd.Context(), p.Stmt, opts)
	if err != nil {
		dumpTrace()
		return fmt.Errorf("demo %s: %w", p.Name, err)
	}
	fmt.Fprintln(out, headingColor.Sprintf("%s: before", p.Name))
	fmt.Fprint(out, p.Stmt.String())
	fmt.Fprintln(out, headingColor.Sprintf("%s: after", p.Name))
	fmt.Fprint(out, res.Stmt.String())
	rep := res.Report
	fmt.Fprintln(out, dimColor.Sprintf("loops %d -> %d, verified on %d memories", rep.LoopsBefore, rep.LoopsAfter, rep.Verified))
	if showTimings {
		printTimings(out, p.Name, rep.Timings)
	}
	return nil
}

func listDemos(out io.Writer, programs []demo.Program) {
	width := 0
	for _, p := range programs {
		width = max(width, cellWidth(p.Name))
	}
	descWidth := terminalWidth(80) - width - 4
	for _, p := range programs {
		fmt.Fprintf(out, "  %s  %s\n", headingColor.Sprint(padName(p.Name, width)), fitName(p.Description, descWidth))
	}
}

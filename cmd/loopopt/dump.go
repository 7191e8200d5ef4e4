package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"loopopt/internal/irio"
	"loopopt/internal/testkit"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <file.lir>",
	Short: "Print the program stored in an IR file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type dumpPayload struct {
	Name    string         `json:"name,omitempty"`
	Buffers map[string]int `json:"buffers,omitempty"`
	Loops   int            `json:"loops"`
	Program string         `json:"program"`
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	f, err := irio.ReadFile(args[0])
	if err != nil {
		return err
	}
	switch format {
	case "pretty":
		renderDumpPretty(cmd.OutOrStdout(), args[0], f)
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dumpPayload{
			Name:    f.Name,
			Buffers: f.Buffers,
			Loops:   len(testkit.Loops(f.Program)),
			Program: f.Program.String(),
		})
	}
	return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
}

func renderDumpPretty(out io.Writer, path string, f *irio.File) {
	title := path
	if f.Name != "" {
		title = fmt.Sprintf("%s (%s)", f.Name, path)
	}
	fmt.Fprintln(out, headingColor.Sprint(title))
	names := slices.Sorted(maps.Keys(f.Buffers))
	width := 0
	for _, name := range names {
		width = max(width, cellWidth(fitName(name, 32)))
	}
	for _, name := range names {
		fmt.Fprintf(out, "  %s %s\n", padName(fitName(name, 32), width), dimColor.Sprintf("[%d]", f.Buffers[name]))
	}
	fmt.Fprint(out, f.Program.String())
}

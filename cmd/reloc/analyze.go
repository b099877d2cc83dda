package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reloc/internal/diagfmt"
	"reloc/internal/driver"
	"reloc/internal/layout"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <graph.toml|directory>",
	Short: "Check hooks and relocation sites of a manifest or directory",
	Long:  `Analyze loads value-type graph manifests, synthesizes post-move hook plans, and validates every relocation site against them`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	analyzeCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	analyzeCmd.Flags().Bool("ui", false, "show interactive progress for directory processing")
	analyzeCmd.Flags().Bool("disk-cache", false, "enable persistent disk cache for analysis results")
	analyzeCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	analyzeCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	withUI, err := cmd.Flags().GetBool("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	enableDiskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	switch format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	opts := driver.Options{
		MaxDiagnostics: maxDiagnostics,
		Target:         layout.X86_64LinuxGNU(),
	}
	if enableDiskCache {
		cache, err := driver.OpenDiskCache("reloc")
		if err != nil {
			return fmt.Errorf("failed to open disk cache: %w", err)
		}
		opts.Cache = cache
	}

	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	var results []*driver.FileResult
	if st.IsDir() {
		results, err = analyzeBatch(cmd, path, opts, jobs, withUI)
	} else {
		var res *driver.FileResult
		res, err = driver.AnalyzeFile(path, opts)
		if res != nil {
			results = []*driver.FileResult{res}
		}
	}
	if err != nil {
		return err
	}

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	hasErrors := false
	switch format {
	case "pretty":
		popts := diagfmt.PrettyOpts{
			Color:     useColor(cmd),
			PathMode:  pathMode,
			ShowNotes: withNotes,
		}
		for _, r := range results {
			diagfmt.Pretty(os.Stdout, r.Bag, r.FileSet, popts)
			if r.Bag.HasErrors() {
				hasErrors = true
			}
			if !quiet {
				printAnalyzeFooter(r)
			}
		}
	case "json":
		jopts := diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			Max:              maxDiagnostics,
			IncludeNotes:     withNotes,
		}
		output := make(map[string]analyzeJSON, len(results))
		for _, r := range results {
			output[r.Path] = analyzeJSON{
				Diagnostics: diagfmt.BuildDiagnosticsOutput(r.Bag, r.FileSet, jopts),
				Checked:     r.Checked,
				Elided:      r.Elided,
				FromCache:   r.FromCache,
			}
			if r.Bag.HasErrors() {
				hasErrors = true
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
	}

	if hasErrors {
		// Diagnostics already printed, exit non-zero without usage noise.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("")
	}
	return nil
}

type analyzeJSON struct {
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
	Checked     int                       `json:"checked_sites"`
	Elided      int                       `json:"elided_sites"`
	FromCache   bool                      `json:"from_cache,omitempty"`
}

func printAnalyzeFooter(r *driver.FileResult) {
	suffix := ""
	if r.FromCache {
		suffix = " (cached)"
	}
	fmt.Fprintf(os.Stdout, "%s: %d sites checked, %d elided%s\n", r.Path, r.Checked, r.Elided, suffix)
}

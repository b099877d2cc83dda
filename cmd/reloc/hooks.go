package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reloc/internal/diagfmt"
	"reloc/internal/driver"
	"reloc/internal/layout"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks [flags] <graph.toml>",
	Short: "Print synthesized post-move hook plans for a manifest",
	Long:  `Hooks shows, for every declared value type, whether it has an elaborate move and the generated hook plan per qualifier`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHooks,
}

func init() {
	hooksCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	hooksCmd.Flags().Bool("all", false, "include types without an elaborate move")
}

func runHooks(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	showAll, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("failed to get all flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	res, err := driver.AnalyzeFile(path, driver.Options{
		MaxDiagnostics: maxDiagnostics,
		Target:         layout.X86_64LinuxGNU(),
	})
	if err != nil {
		return err
	}

	if res.Bag.HasErrors() {
		diagfmt.Pretty(os.Stderr, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     useColor(cmd),
			ShowNotes: true,
		})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("")
	}

	summaries := res.Summaries
	if !showAll {
		kept := summaries[:0]
		for _, s := range summaries {
			if s.HasElaborateMove {
				kept = append(kept, s)
			}
		}
		summaries = kept
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "pretty":
		printHooksPretty(summaries, useColor(cmd))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func printHooksPretty(summaries []driver.HookSummary, colored bool) {
	typeColor := color.New(color.FgCyan, color.Bold)
	errColor := color.New(color.FgRed)
	dimColor := color.New(color.Faint)
	if !colored {
		typeColor.DisableColor()
		errColor.DisableColor()
		dimColor.DisableColor()
	}

	for _, s := range summaries {
		if !s.HasElaborateMove {
			fmt.Printf("%s: no elaborate move\n", typeColor.Sprint(s.Name))
			continue
		}
		fmt.Printf("%s: elaborate move, %d callback(s)\n", typeColor.Sprint(s.Name), s.Callbacks)
		for _, p := range s.Plans {
			if p.Error != "" {
				fmt.Printf("  [%s] %s\n", p.Qual, errColor.Sprint(p.Error))
				continue
			}
			fmt.Printf("  [%s] %s %s\n", p.Qual, p.Name, dimColor.Sprintf("(%s)", p.Effects))
			if p.Disabled != "" {
				fmt.Printf("       disabled by %s\n", p.Disabled)
			}
			fmt.Print(indentLines(p.Steps, "       "))
		}
	}
}

func indentLines(s, prefix string) string {
	if s == "" {
		return ""
	}
	out := ""
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			line := s[start:i]
			if line != "" {
				out += prefix + line + "\n"
			}
			start = i + 1
		}
	}
	return out
}

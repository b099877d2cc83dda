package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"reloc/internal/driver"
	"reloc/internal/ui"
)

type batchOutcome struct {
	results []*driver.FileResult
	err     error
}

// analyzeBatch runs directory analysis, with or without the interactive
// progress UI. The UI path drains events from the driver on a channel
// while the analysis runs in the background.
func analyzeBatch(cmd *cobra.Command, dir string, opts driver.Options, jobs int, withUI bool) ([]*driver.FileResult, error) {
	if !withUI || !isTerminal(os.Stdout) {
		return driver.AnalyzeDir(cmd.Context(), dir, opts, jobs, nil)
	}

	files, err := driver.ListManifests(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	events := make(chan driver.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		results, err := driver.AnalyzeDir(cmd.Context(), dir, opts, jobs, events)
		outcomeCh <- batchOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("analyzing manifests", files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}

package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"webpify/internal/pipeline"
	"webpify/internal/processor"
	"webpify/internal/tui"
	"webpify/pkg/imgutil"
)

var buildNoProgress bool

var buildCmd = &cobra.Command{
	Use:   "build [flags] <dir>",
	Short: "Convert images in a built output tree and add stylesheet fallbacks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		logger, closeLog, err := openLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		tracker := processor.NewTracker()
		if cfg.State != "" {
			if tracker, err = processor.LoadTracker(cfg.State); err != nil {
				return err
			}
		}

		var updates chan processor.ProgressUpdate
		uiDone := make(chan struct{})
		if buildNoProgress {
			close(uiDone)
		} else {
			updates = make(chan processor.ProgressUpdate, 64)
			program := tea.NewProgram(tui.NewModel(updates))
			go func() {
				_, _ = program.Run()
				close(uiDone)
			}()
		}

		p, err := pipeline.New(pipeline.Options{
			Policy:      cfg.Policy,
			Development: cfg.Development(),
			Logger:      logger,
			Tracker:     tracker,
			Updates:     updates,
		})
		if err != nil {
			if updates != nil {
				close(updates)
			}
			<-uiDone
			return err
		}

		report, err := p.AfterBuild(context.Background(), root, nil)
		if updates != nil {
			close(updates)
		}
		<-uiDone
		if err != nil {
			logger.Error("build pass failed", map[string]any{"root": root, "error": err})
			return err
		}
		if cfg.State != "" {
			if err := p.Tracker().SaveState(cfg.State); err != nil {
				return err
			}
		}

		if cfg.Development() {
			fmt.Fprintln(os.Stdout, "Development build: no images converted.")
			return nil
		}

		summary := report.Summary
		rows := []tui.SummaryRow{
			{Label: "Images processed", Value: fmt.Sprintf("%d", summary.Total)},
			{Label: "Smaller WebP variants", Value: fmt.Sprintf("%d", summary.Smaller)},
			{Label: "Skipped", Value: fmt.Sprintf("%d", summary.Skipped)},
			{Label: "Failed", Value: fmt.Sprintf("%d", summary.Failed)},
			{Label: "Space saved", Value: imgutil.FormatSize(summary.BytesSaved)},
			{Label: "Stylesheets rewritten", Value: fmt.Sprintf("%d", report.StylesheetsRewritten())},
			{Label: "Transients purged", Value: fmt.Sprintf("%d", report.Purged)},
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		if failures := tui.RenderFailures(summary.Failures); failures != "" {
			fmt.Fprintln(os.Stdout, failures)
		}
		for _, sheet := range report.Stylesheets {
			if sheet.Err != nil {
				fmt.Fprintf(os.Stderr, "stylesheet %s: %v\n", sheet.Path, sheet.Err)
			}
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildNoProgress, "no-progress", false, "disable the progress display")

	rootCmd.AddCommand(buildCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"webpify/internal/processor"
)

var purgeCmd = &cobra.Command{
	Use:   "purge --state FILE",
	Short: "Delete WebP variants recorded by earlier imports runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if cfg.State == "" {
			return fmt.Errorf("purge needs --state (or state: in the config file)")
		}

		tracker, err := processor.LoadTracker(cfg.State)
		if err != nil {
			return err
		}
		removed, err := processor.RemoveFiles(tracker.Drain())
		if saveErr := tracker.SaveState(cfg.State); saveErr != nil && err == nil {
			err = saveErr
		}
		fmt.Fprintf(os.Stdout, "Removed %d transient variant(s).\n", removed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webpify",
	Short: "webpify - ship WebP next to your JPEG and PNG build assets",
	Long: "webpify converts raster images in a build output to WebP, keeps a variant only when it pays off, " +
		"and points stylesheets and image imports at the WebP file with a fallback to the original.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	registerSettingsFlags(rootCmd)
}

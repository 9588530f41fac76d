package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"webpify/internal/config"
	"webpify/internal/log"
)

var (
	flagConfig     string
	flagEnvFile    string
	flagQuality    int
	flagMinQuality int
	flagLossless   bool
	flagOnlySmall  bool
	flagCSS        bool
	flagImports    bool
	flagDev        bool
	flagState      string
	flagLogLevel   string
	flagLogFile    string
)

func registerSettingsFlags(cmd *cobra.Command) {
	defaults := config.DefaultPolicy()
	flags := cmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "config file (default ./"+config.DefaultFile+" when present)")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.IntVarP(&flagQuality, "quality", "q", defaults.Quality, "starting WebP quality (0-100)")
	flags.IntVar(&flagMinQuality, "min-quality", defaults.MinQuality, "lowest quality tried when the result is not smaller")
	flags.BoolVar(&flagLossless, "lossless", defaults.Lossless, "encode losslessly (disables the quality search)")
	flags.BoolVar(&flagOnlySmall, "only-smaller", defaults.OnlySmallerFiles, "keep a variant only when it is smaller than the original")
	flags.BoolVar(&flagCSS, "css", defaults.ProcessCSS, "append WebP fallback rules to stylesheets")
	flags.BoolVar(&flagImports, "imports", defaults.ProcessImport, "rewrite image imports in source files")
	flags.BoolVar(&flagDev, "dev", false, "development build: never transcode, only strip opt-out markers")
	flags.StringVar(&flagState, "state", "", "file that records variants created by the imports command for later purging")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&flagLogFile, "log-file", "", "write JSON logs to this file instead of stderr")
}

// loadSettings merges defaults, the config file and explicitly set flags,
// then validates the result.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(flagEnvFile); err != nil {
		return config.Config{}, err
	}

	path, required := flagConfig, true
	if path == "" {
		path, required = config.DefaultFile, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("quality") {
		cfg.Quality = flagQuality
	}
	if flags.Changed("min-quality") {
		cfg.MinQuality = flagMinQuality
	}
	if flags.Changed("lossless") {
		cfg.Lossless = flagLossless
	}
	if flags.Changed("only-smaller") {
		cfg.OnlySmallerFiles = flagOnlySmall
	}
	if flags.Changed("css") {
		cfg.ProcessCSS = flagCSS
	}
	if flags.Changed("imports") {
		cfg.ProcessImport = flagImports
	}
	if flags.Changed("dev") {
		cfg.Mode = config.ModeProduction
		if flagDev {
			cfg.Mode = config.ModeDevelopment
		}
	}
	if flags.Changed("state") {
		cfg.State = flagState
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = flagLogFile
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func openLogger(cfg config.Config) (*log.Logger, func() error, error) {
	return log.Open(cfg.Log.File, cfg.Log.Level)
}

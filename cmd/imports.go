package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"webpify/internal/config"
	"webpify/internal/pipeline"
	"webpify/internal/processor"
	"webpify/internal/rewrite"
	"webpify/internal/tui"
)

// SourceExts are the program source files the imports command rewrites.
var SourceExts = []string{"js", "jsx", "mjs", "cjs", "ts", "tsx", "vue", "svelte"}

const resolverCacheSize = 1024

// defaultImportsOutput receives rewritten sources unless --inplace is set.
const defaultImportsOutput = "webpified"

var (
	importsAliases   []string
	importsRoot      string
	importsInPlace   bool
	importsOutputDir string
	importsQuiet     bool
)

var importsCmd = &cobra.Command{
	Use:   "imports [flags] <path>...",
	Short: "Point image imports in source files at their WebP variants",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importsInPlace && importsOutputDir != "" {
			return fmt.Errorf("--inplace cannot be used with --output")
		}
		outputDir := importsOutputDir
		if !importsInPlace && outputDir == "" {
			outputDir = defaultImportsOutput
		}

		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		aliases, err := mergeAliases(cfg.Aliases, importsAliases)
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

		root, err := filepath.Abs(importsRoot)
		if err != nil {
			return err
		}
		resolver, err := rewrite.NewCachedResolver(rewrite.AliasResolver{Root: root, Aliases: aliases}, resolverCacheSize)
		if err != nil {
			return err
		}

		p, err := pipeline.New(pipeline.Options{
			Policy:      cfg.Policy,
			Development: cfg.Development(),
			Logger:      logger,
			Resolver:    resolver,
			Tracker:     tracker,
		})
		if err != nil {
			return err
		}

		absOutput := ""
		if outputDir != "" {
			if absOutput, err = filepath.Abs(outputDir); err != nil {
				return err
			}
		}

		ctx := context.Background()
		changed := 0
		for _, arg := range args {
			err := processor.WalkText(ctx, arg, SourceExts, func(job processor.Job) error {
				if absOutput != "" && insideDir(absOutput, job.Path) {
					return nil
				}
				wrote, err := rewriteSourceFile(ctx, p, job, outputDir)
				if wrote {
					changed++
				}
				return err
			})
			if err != nil {
				logger.Error("imports run stopped", map[string]any{"path": arg, "error": err})
				return err
			}
		}

		if cfg.State != "" {
			if err := p.Tracker().SaveState(cfg.State); err != nil {
				return err
			}
		}

		summary := p.IncrementalSummary()
		rows := []tui.SummaryRow{
			{Label: "Source files changed", Value: fmt.Sprintf("%d", changed)},
			{Label: "Images converted", Value: fmt.Sprintf("%d", summary.Total)},
			{Label: "Smaller WebP variants", Value: fmt.Sprintf("%d", summary.Smaller)},
			{Label: "Failed", Value: fmt.Sprintf("%d", summary.Failed)},
			{Label: "Transients tracked", Value: fmt.Sprintf("%d", p.Tracker().Len())},
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
		if importsInPlace {
			fmt.Fprintln(os.Stdout, "In-place rewrite complete.")
		} else {
			outPath := outputDir
			if abs, absErr := filepath.Abs(outputDir); absErr == nil {
				outPath = abs
			}
			fmt.Fprintf(os.Stdout, "Rewritten sources written to: %s\n", outPath)
			fmt.Fprintln(os.Stdout, "Note: originals are unchanged unless --inplace is used.")
		}
		return nil
	},
}

// rewriteSourceFile rewrites one file into outputDir, or back in place when
// outputDir is empty. It reports whether the content changed.
func rewriteSourceFile(ctx context.Context, p *pipeline.Pipeline, job processor.Job, outputDir string) (bool, error) {
	info, err := os.Stat(job.Path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return false, err
	}

	out, refs := p.RewriteOneSource(ctx, string(data), job.Path)
	if !importsQuiet && len(refs) > 0 {
		printReferences(job.Display, refs)
	}

	dest := job.Path
	if outputDir != "" {
		dest = filepath.Join(outputDir, filepath.FromSlash(job.RelPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return false, err
		}
	} else if out == string(data) {
		return false, nil
	}
	if err := processor.WriteFileAtomic(dest, []byte(out), info.Mode().Perm()); err != nil {
		return false, err
	}
	return out != string(data), nil
}

func printReferences(display string, refs []rewrite.ImportReference) {
	fmt.Fprintf(os.Stdout, "%s\n", importsFileStyle.Render(display))
	for _, ref := range refs {
		var status string
		switch {
		case ref.Err != nil:
			status = importsWarnStyle.Render(ref.Err.Error())
		case ref.Rewritten():
			status = importsOkStyle.Render("-> "+ref.EmittedPath) + importsDimStyle.Render(" ("+ref.Outcome.Kind.String()+")")
		case ref.Skip:
			status = importsDimStyle.Render("skipped")
		case ref.Outcome.Path != "":
			status = importsDimStyle.Render("kept (" + ref.Outcome.Kind.String() + ")")
		default:
			status = importsDimStyle.Render("unchanged")
		}
		fmt.Fprintf(os.Stdout, "  %s %s %s\n",
			importsBulletStyle.Render("-"),
			importsPathStyle.Render(ref.RawPath),
			status,
		)
	}
}

func insideDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// mergeAliases lays --alias flags over the aliases from the config file.
func mergeAliases(fromConfig map[string]string, flags []string) (map[string]string, error) {
	aliases := make(map[string]string, len(fromConfig)+len(flags))
	for name, dir := range fromConfig {
		aliases[name] = dir
	}
	for _, f := range flags {
		name, dir, err := config.ParseAlias(f)
		if err != nil {
			return nil, err
		}
		aliases[name] = dir
	}
	return aliases, nil
}

var (
	importsFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorFile)
	importsPathStyle   = lipgloss.NewStyle().Foreground(tui.ColorText)
	importsOkStyle     = lipgloss.NewStyle().Foreground(tui.ColorSaved)
	importsWarnStyle   = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	importsDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorMuted)
	importsBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorBullet)
)

func init() {
	importsCmd.Flags().StringArrayVarP(&importsAliases, "alias", "a", nil, "import alias as name=dir (repeatable)")
	importsCmd.Flags().StringVar(&importsRoot, "root", ".", "project root for aliases and node_modules")
	importsCmd.Flags().BoolVarP(&importsInPlace, "inplace", "i", false, "rewrite source files in place")
	importsCmd.Flags().StringVarP(&importsOutputDir, "output", "o", "", "destination folder for rewritten copies (default ./"+defaultImportsOutput+")")
	importsCmd.Flags().BoolVar(&importsQuiet, "quiet", false, "do not list image imports per file")

	rootCmd.AddCommand(importsCmd)
}

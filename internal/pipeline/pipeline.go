// Package pipeline wires discovery, conversion and reference rewriting into
// the two entry points a build driver calls: a full pass over a finished
// output tree, and a per-file rewrite during compilation.
//
// A Pipeline is the run context. It owns the dedup registry, the transient
// tracker and the incremental statistics; create one per build invocation.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"webpify/internal/config"
	"webpify/internal/errs"
	"webpify/internal/log"
	"webpify/internal/processor"
	"webpify/internal/rewrite"
	"webpify/internal/transcode"
	"webpify/pkg/imgutil"
)

// StylesheetExts are the text assets the full pass rewrites.
var StylesheetExts = []string{"css"}

type Options struct {
	Policy config.Policy
	// Development disables transcoding; only opt-out markers are stripped.
	Development bool
	Logger      *log.Logger
	// Transcoder defaults to the WebP transcoder.
	Transcoder processor.Transcoder
	// Resolver maps import specifiers to files for RewriteOneSource.
	Resolver rewrite.Resolver
	// Tracker carries transients over from an earlier process, if any.
	Tracker *processor.Tracker
	Updates chan<- processor.ProgressUpdate
}

type Pipeline struct {
	policy      config.Policy
	development bool
	logger      *log.Logger
	registry    *processor.Registry
	tracker     *processor.Tracker
	stats       *processor.Stats
	converter   *processor.Converter
	resolver    rewrite.Resolver
	updates     chan<- processor.ProgressUpdate
}

// New validates the policy and builds a run context. An invalid policy is
// fatal: nothing runs.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	tc := opts.Transcoder
	if tc == nil {
		tc = transcode.New(nil)
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = processor.NewTracker()
	}

	registry := processor.NewRegistry()
	return &Pipeline{
		policy:      opts.Policy,
		development: opts.Development,
		logger:      logger,
		registry:    registry,
		tracker:     tracker,
		stats:       &processor.Stats{},
		converter:   processor.NewConverter(tc, registry, opts.Policy, logger),
		resolver:    opts.Resolver,
		updates:     opts.Updates,
	}, nil
}

func (p *Pipeline) Tracker() *processor.Tracker { return p.tracker }

// IncrementalSummary returns the statistics gathered by RewriteOneSource.
func (p *Pipeline) IncrementalSummary() processor.Summary { return p.stats.Snapshot() }

// StylesheetResult describes one stylesheet visited by the full pass.
type StylesheetResult struct {
	Path       string
	References int
	Err        error
}

// Report is everything a full pass did.
type Report struct {
	Purged      int
	Summary     processor.Summary
	Outcomes    []processor.Outcome
	Stylesheets []StylesheetResult
}

// StylesheetsRewritten counts stylesheets that received fallback rules.
func (r Report) StylesheetsRewritten() int {
	n := 0
	for _, s := range r.Stylesheets {
		if s.Err == nil && s.References > 0 {
			n++
		}
	}
	return n
}

// AfterBuild is the hook for "the build finished". A failed build stops the
// pipeline before anything runs, and development builds skip the pass.
func (p *Pipeline) AfterBuild(ctx context.Context, root string, buildErr error) (Report, error) {
	if buildErr != nil {
		return Report{}, fmt.Errorf("build failed, image pass not started: %w", buildErr)
	}
	if p.development {
		p.logger.Info("development build, skipping image pass", map[string]any{"root": root})
		return Report{}, nil
	}
	return p.RunFullPass(ctx, root)
}

// PurgeTransients deletes variants created by earlier incremental rewrites
// and resets the dedup state, so the next pass evaluates every image afresh.
func (p *Pipeline) PurgeTransients() (int, error) {
	paths := p.tracker.Drain()
	removed, err := processor.RemoveFiles(paths)
	p.registry.Reset()
	if c, ok := p.resolver.(interface{ Purge() }); ok {
		c.Purge()
	}
	if err != nil {
		return removed, errs.IO("purge transients", "", err)
	}
	return removed, nil
}

// RunFullPass converts every eligible image under root and then, when the
// policy asks for it, appends fallback rules to the stylesheets there.
func (p *Pipeline) RunFullPass(ctx context.Context, root string) (Report, error) {
	var report Report
	if err := ctx.Err(); err != nil {
		return report, err
	}

	purged, err := p.PurgeTransients()
	report.Purged = purged
	if err != nil {
		p.logger.Warn("could not remove every transient variant", map[string]any{"error": err})
	}

	summary, outcomes, err := processor.Run(ctx, root, p.converter, &processor.Stats{}, p.updates)
	report.Summary = summary
	report.Outcomes = outcomes
	if err != nil {
		return report, err
	}

	if p.policy.ProcessCSS {
		sheets, err := p.rewriteStylesheets(ctx, root)
		report.Stylesheets = sheets
		if err != nil {
			return report, err
		}
	}

	p.logger.Info("full pass complete", map[string]any{
		"root":        root,
		"total":       summary.Total,
		"smaller":     summary.Smaller,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
		"saved":       imgutil.FormatSize(summary.BytesSaved),
		"stylesheets": report.StylesheetsRewritten(),
		"purged":      purged,
	})
	return report, nil
}

func (p *Pipeline) rewriteStylesheets(ctx context.Context, root string) ([]StylesheetResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(absRoot); err == nil && !info.IsDir() {
		absRoot = filepath.Dir(absRoot)
	}

	var results []StylesheetResult
	err = processor.WalkText(ctx, root, StylesheetExts, func(job processor.Job) error {
		res := p.rewriteStylesheet(absRoot, job.Path)
		if res.Err != nil {
			p.logger.Warn("stylesheet rewrite failed", map[string]any{"path": job.Path, "error": res.Err})
		} else if res.References > 0 {
			p.logger.Debug("stylesheet rewritten", map[string]any{"path": job.Path, "references": res.References})
		}
		results = append(results, res)
		return nil
	})
	return results, err
}

func (p *Pipeline) rewriteStylesheet(root, sheetPath string) StylesheetResult {
	res := StylesheetResult{Path: sheetPath}
	info, err := os.Stat(sheetPath)
	if err != nil {
		res.Err = errs.IO("stat", sheetPath, err)
		return res
	}
	data, err := os.ReadFile(sheetPath)
	if err != nil {
		res.Err = errs.IO("read", sheetPath, err)
		return res
	}

	sheet := rewrite.Stylesheet{Exists: func(ref string) bool {
		return variantExists(root, sheetPath, ref)
	}}
	out, refs := sheet.Rewrite(string(data))
	res.References = len(refs)
	if len(refs) == 0 {
		return res
	}
	if err := processor.WriteFileAtomic(sheetPath, []byte(out), info.Mode().Perm()); err != nil {
		res.Err = errs.IO("write", sheetPath, err)
	}
	return res
}

// variantExists maps a url() reference in sheetPath onto the output tree and
// reports whether a WebP sibling derived from that image is on disk.
// Root-relative references are taken relative to root.
func variantExists(root, sheetPath, ref string) bool {
	clean := imgutil.StripQuery(ref)
	if unescaped, err := url.PathUnescape(clean); err == nil {
		clean = unescaped
	}
	var target string
	if strings.HasPrefix(clean, "/") {
		target = filepath.Join(root, filepath.FromSlash(path.Clean(clean)))
	} else {
		target = filepath.Join(filepath.Dir(sheetPath), filepath.FromSlash(clean))
	}
	info, err := os.Stat(imgutil.CompactFile(target))
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return processor.VariantOwner(target) == target
}

// RewriteOneSource rewrites image imports in one compiled source file. It is
// safe to call repeatedly for the same file during an incremental build.
func (p *Pipeline) RewriteOneSource(ctx context.Context, text, filePath string) (string, []rewrite.ImportReference) {
	src := &rewrite.Source{
		Resolver:  p.resolver,
		Converter: p.converter,
		Tracker:   p.tracker,
		StripOnly: p.development || !p.policy.ProcessImport,
	}
	out, refs := src.Rewrite(ctx, text, filePath)

	for _, ref := range refs {
		if ref.Outcome.Path != "" {
			p.stats.Record(ref.Outcome)
		}
		if ref.Err != nil && errs.KindOf(ref.Err) == errs.KindResolution {
			p.logger.Warn("image import not resolved", map[string]any{
				"file":   filePath,
				"import": ref.RawPath,
				"error":  ref.Err,
			})
		}
	}
	return out, refs
}

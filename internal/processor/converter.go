package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"webpify/internal/config"
	"webpify/internal/errs"
	"webpify/internal/log"
	"webpify/internal/transcode"
	"webpify/pkg/imgutil"
)

// Transcoder is the codec side of a conversion.
type Transcoder interface {
	Transcode(data []byte, policy config.Policy) (transcode.Result, error)
}

// Converter turns one raster file into a sibling WebP file.
type Converter struct {
	transcoder Transcoder
	registry   *Registry
	policy     config.Policy
	logger     *log.Logger
}

func NewConverter(t Transcoder, registry *Registry, policy config.Policy, logger *log.Logger) *Converter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Converter{
		transcoder: t,
		registry:   registry,
		policy:     policy,
		logger:     logger,
	}
}

// Convert processes path at most once per registry lifetime. The path is
// claimed before any work, so a file that fails is not retried in the same run.
// Failures are reported in the outcome, never returned.
func (c *Converter) Convert(ctx context.Context, path string) Outcome {
	out := c.convert(ctx, path)
	c.report(out)
	return out
}

func (c *Converter) convert(ctx context.Context, path string) Outcome {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Outcome{Kind: OutcomeError, Path: path, Err: errs.IO("abs", path, err)}
	}
	out := Outcome{Path: abs, CompactPath: imgutil.CompactFile(abs)}

	if !c.registry.Claim(abs) {
		out.Kind = OutcomeDuplicate
		out.CompactExists = fileExists(out.CompactPath) && VariantOwner(abs) == abs
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Kind = OutcomeError
		out.Err = err
		return out
	}
	if owner := VariantOwner(abs); owner != abs {
		return failed(out, errs.Conflict(abs, fmt.Errorf("%s is derived from %s", filepath.Base(out.CompactPath), owner)))
	}
	if fileExists(out.CompactPath) {
		out.Kind = OutcomeAlreadyExists
		out.CompactExists = true
		return out
	}

	info, err := os.Stat(abs)
	if err != nil {
		return failed(out, errs.IO("stat", abs, err))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return failed(out, errs.IO("read", abs, err))
	}
	out.OriginalSize = int64(len(data))

	res, err := c.transcoder.Transcode(data, c.policy)
	if err != nil {
		return failed(out, err)
	}
	out.CompactSize = int64(res.Size())
	out.Quality = res.Quality
	out.Attempts = res.Attempts

	if !res.Smaller() && c.policy.OnlySmallerFiles {
		out.Kind = OutcomeLargerSkipped
		return out
	}

	if err := WriteFileAtomic(out.CompactPath, res.Data, info.Mode().Perm()); err != nil {
		return failed(out, errs.IO("write", out.CompactPath, err))
	}
	out.CompactExists = true
	if res.Smaller() {
		out.Kind = OutcomeSmaller
	} else {
		out.Kind = OutcomeLargerKept
	}
	return out
}

func failed(out Outcome, err error) Outcome {
	out.Kind = OutcomeError
	out.Err = err
	return out
}

func (c *Converter) report(out Outcome) {
	switch out.Kind {
	case OutcomeError:
		c.logger.Warn("image conversion failed", out.fields())
	case OutcomeDuplicate:
		c.logger.Debug("image already handled in this run", out.fields())
	default:
		c.logger.Info("image converted", out.fields())
	}
}

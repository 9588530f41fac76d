package processor

import (
	"webpify/pkg/imgutil"
)

// OutcomeKind classifies what happened to one image.
type OutcomeKind int

const (
	// OutcomeSmaller: a variant smaller than the original was written.
	OutcomeSmaller OutcomeKind = iota
	// OutcomeLargerKept: the variant is not smaller but policy keeps it anyway.
	OutcomeLargerKept
	// OutcomeLargerSkipped: the variant is not smaller and was discarded.
	OutcomeLargerSkipped
	// OutcomeAlreadyExists: a variant was already on disk.
	OutcomeAlreadyExists
	// OutcomeDuplicate: the path was already handled earlier in this run.
	OutcomeDuplicate
	// OutcomeError: reading, transcoding or writing failed.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSmaller:
		return "smaller"
	case OutcomeLargerKept:
		return "larger-kept"
	case OutcomeLargerSkipped:
		return "larger-skipped"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of converting one image.
type Outcome struct {
	Kind         OutcomeKind
	Path         string
	CompactPath  string
	OriginalSize int64
	CompactSize  int64
	Quality      int
	Attempts     int
	// CompactExists is true when a variant derived from Path is on disk once
	// Convert returns.
	CompactExists bool
	Err           error
}

// Saved is the number of bytes the variant saves over the original.
func (o Outcome) Saved() int64 {
	if o.Kind != OutcomeSmaller {
		return 0
	}
	return o.OriginalSize - o.CompactSize
}

// Wrote reports whether this call persisted a new variant.
func (o Outcome) Wrote() bool {
	return o.Kind == OutcomeSmaller || o.Kind == OutcomeLargerKept
}

// Usable reports whether references to Path may point at CompactPath.
func (o Outcome) Usable() bool {
	switch o.Kind {
	case OutcomeSmaller, OutcomeLargerKept, OutcomeAlreadyExists:
		return true
	case OutcomeDuplicate:
		return o.CompactExists
	default:
		return false
	}
}

func (o Outcome) fields() map[string]any {
	fields := map[string]any{
		"path":    o.Path,
		"outcome": o.Kind.String(),
	}
	if o.OriginalSize > 0 {
		fields["original"] = imgutil.FormatSize(o.OriginalSize)
	}
	if o.CompactSize > 0 {
		fields["compact"] = imgutil.FormatSize(o.CompactSize)
		fields["quality"] = o.Quality
		fields["attempts"] = o.Attempts
	}
	if saved := o.Saved(); saved > 0 {
		fields["saved"] = imgutil.FormatSize(saved)
	}
	if o.Err != nil {
		fields["error"] = o.Err
	}
	return fields
}

type Job struct {
	Path    string
	RelPath string
	Display string
}

type Result struct {
	Job
	Outcome Outcome
}

// Failure is one image that could not be converted.
type Failure struct {
	Path string
	Err  error
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total      int
	Smaller    int
	Skipped    int
	Failed     int
	BytesSaved int64
	Failures   []Failure
}

type ProgressUpdate struct {
	TotalDelta      int
	ProcessedDelta  int
	SmallerDelta    int
	SkippedDelta    int
	ErrorDelta      int
	BytesSavedDelta int64
}

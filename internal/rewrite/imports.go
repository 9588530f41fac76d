package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"webpify/internal/errs"
	"webpify/internal/processor"
	"webpify/pkg/imgutil"
)

const (
	// SkipSuffix after an image path opts that one import out of rewriting.
	// It is always stripped from the emitted statement.
	SkipSuffix = "!webp"

	// FileSkipMarker in a leading comment opts a whole file out.
	FileSkipMarker = "webp-ignore"

	fileMarkerWindow = 256
)

type ImportKind int

const (
	ImportStatic ImportKind = iota
	ImportRequire
)

func (k ImportKind) String() string {
	if k == ImportRequire {
		return "require"
	}
	return "import"
}

type QuoteStyle int

const (
	QuoteSingle QuoteStyle = iota
	QuoteDouble
)

// Span is a half-open byte range of the original source text.
type Span struct {
	Start int
	End   int
}

// ImportReference is one image import statement found in a source file.
type ImportReference struct {
	Kind  ImportKind
	Quote QuoteStyle
	Name  string
	// RawPath is the path literal as written, including any SkipSuffix.
	RawPath string
	// Span covers the whole statement, PathSpan only the literal's contents.
	Span     Span
	PathSpan Span
	Skip     bool

	ResolvedPath string
	Outcome      processor.Outcome
	// EmittedPath is what the literal was rewritten to; empty when untouched.
	EmittedPath string
	Err         error
}

// Rewritten reports whether the statement now points at the WebP variant.
func (r ImportReference) Rewritten() bool {
	return r.EmittedPath != "" && imgutil.IsCompactPath(r.EmittedPath)
}

// ImageConverter converts one resolved image file.
type ImageConverter interface {
	Convert(ctx context.Context, path string) processor.Outcome
}

// Source rewrites image imports in program source to their WebP variants.
type Source struct {
	Resolver  Resolver
	Converter ImageConverter
	// Tracker receives every variant this rewriter causes to be written.
	Tracker *processor.Tracker
	// StripOnly disables conversion; only SkipSuffix markers are removed.
	StripOnly bool
}

type importPattern struct {
	kind  ImportKind
	quote QuoteStyle
	re    *regexp.Regexp
}

var importPatterns = []importPattern{
	{ImportStatic, QuoteSingle, regexp.MustCompile(`\bimport\s+([A-Za-z_$][\w$]*)\s+from\s+'([^'\n]+)'`)},
	{ImportStatic, QuoteDouble, regexp.MustCompile(`\bimport\s+([A-Za-z_$][\w$]*)\s+from\s+"([^"\n]+)"`)},
	{ImportRequire, QuoteSingle, regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*require\(\s*'([^'\n]+)'\s*\)`)},
	{ImportRequire, QuoteDouble, regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*require\(\s*"([^"\n]+)"\s*\)`)},
}

var fileSkipPattern = regexp.MustCompile(`(?m)^\s*(?://|/\*)\s*` + regexp.QuoteMeta(FileSkipMarker) + `\b`)

// HasFileSkipMarker reports whether the head of text opts the file out.
func HasFileSkipMarker(text string) bool {
	head := text
	if len(head) > fileMarkerWindow {
		head = head[:fileMarkerWindow]
	}
	return fileSkipPattern.MatchString(head)
}

// Rewrite finds image imports in text, converts the images they name and
// points each statement at the variant. importer is the path of the file
// text came from. Statements matched more than once share one decision.
func (s *Source) Rewrite(ctx context.Context, text, importer string) (string, []ImportReference) {
	fileSkip := HasFileSkipMarker(text)

	var refs []ImportReference
	var edits []Edit
	byText := make(map[string]int)
	edited := make(map[int]bool)

	for _, p := range importPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			raw := text[m[4]:m[5]]
			clean, marked := strings.CutSuffix(raw, SkipSuffix)
			if !imgutil.IsRasterPath(clean) || edited[m[4]] {
				continue
			}
			edited[m[4]] = true

			matched := text[m[0]:m[1]]
			idx, ok := byText[matched]
			if !ok {
				ref := ImportReference{
					Kind:     p.kind,
					Quote:    p.quote,
					Name:     text[m[2]:m[3]],
					RawPath:  raw,
					Span:     Span{Start: m[0], End: m[1]},
					PathSpan: Span{Start: m[4], End: m[5]},
					Skip:     marked || fileSkip,
				}
				s.decide(ctx, &ref, clean, marked, importer)
				refs = append(refs, ref)
				idx = len(refs) - 1
				byText[matched] = idx
			}

			if emitted := refs[idx].EmittedPath; emitted != "" {
				edits = append(edits, Edit{Start: m[4], End: m[5], Replacement: emitted})
			}
		}
	}

	return applyEdits(text, importer, edits, refs)
}

// applyEdits splices edits into text. When they cannot be applied the text is
// returned unchanged and every reference that expected a rewrite carries the
// failure instead.
func applyEdits(text, importer string, edits []Edit, refs []ImportReference) (string, []ImportReference) {
	out, err := Apply(text, edits)
	if err == nil {
		return out, refs
	}
	for i := range refs {
		if refs[i].EmittedPath == "" {
			continue
		}
		refs[i].EmittedPath = ""
		if refs[i].Err == nil {
			refs[i].Err = fmt.Errorf("rewrite %s: %w", importer, err)
		}
	}
	return text, refs
}

func (s *Source) decide(ctx context.Context, ref *ImportReference, clean string, marked bool, importer string) {
	if marked {
		ref.EmittedPath = clean
	}
	if ref.Skip || s.StripOnly || s.Converter == nil || s.Resolver == nil {
		return
	}

	resolved, err := s.Resolver.Resolve(clean, importer)
	if err != nil {
		if errs.KindOf(err) != errs.KindResolution {
			err = errs.Resolution(clean, err)
		}
		ref.Err = err
		return
	}
	ref.ResolvedPath = resolved

	out := s.Converter.Convert(ctx, resolved)
	ref.Outcome = out
	if out.Kind == processor.OutcomeError {
		ref.Err = out.Err
	}
	if out.Wrote() && s.Tracker != nil {
		s.Tracker.Track(out.CompactPath)
	}
	if out.Usable() {
		ref.EmittedPath = imgutil.CompactPath(clean)
	}
}

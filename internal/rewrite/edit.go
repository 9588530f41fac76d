// Package rewrite points stylesheet and source references at WebP variants.
//
// Both rewriters are text transforms over an immutable snapshot: they record
// edits against the original offsets and apply them in one pass.
package rewrite

import (
	"fmt"
	"sort"
	"strings"
)

// Edit replaces text[Start:End] with Replacement. Start == End inserts.
type Edit struct {
	Start       int
	End         int
	Replacement string
}

// Apply performs edits against the original offsets of text. Edits may be
// given in any order but must not overlap.
func Apply(text string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}

	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	prevEnd := 0
	for i, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(text) {
			return "", fmt.Errorf("edit [%d,%d) out of range for %d bytes", e.Start, e.End, len(text))
		}
		if i > 0 && e.Start < prevEnd {
			return "", fmt.Errorf("edit [%d,%d) overlaps previous edit ending at %d", e.Start, e.End, prevEnd)
		}
		prevEnd = e.End
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, e := range sorted {
		b.WriteString(text[cursor:e.Start])
		b.WriteString(e.Replacement)
		cursor = e.End
	}
	b.WriteString(text[cursor:])
	return b.String(), nil
}

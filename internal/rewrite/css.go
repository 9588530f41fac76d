package rewrite

import (
	"regexp"
	"strings"

	"webpify/pkg/imgutil"
)

const (
	// CapabilityAttr is set on <html> by the client-side probe, "true" when
	// the browser decodes WebP and "false" otherwise.
	CapabilityAttr = "data-webp"

	// FallbackMarker opens the appended fallback section. A stylesheet that
	// already contains it is left alone.
	FallbackMarker = "/* webpify:fallback */"
)

// StylesheetReference is one single-background rule that gets a fallback pair.
type StylesheetReference struct {
	Selector     string
	Property     string
	Value        string
	OriginalPath string
	CompactPath  string
	// AtRules are the preludes of the conditional blocks around the rule,
	// outermost first. The fallback pair is emitted inside the same blocks.
	AtRules      []string
}

// Stylesheet appends capability-gated rules for raster url() references.
// The original rules are never modified.
type Stylesheet struct {
	// Attribute overrides CapabilityAttr.
	Attribute string
	// Exists, when set, drops references whose variant is not available.
	Exists func(ref string) bool
}

var urlPattern = regexp.MustCompile(`(?i)url\(\s*(?:'([^']*)'|"([^"]*)"|([^'")\s]*))\s*\)`)

// Rewrite scans text and returns it with one fallback pair appended per
// eligible reference, plus the references found.
func (s Stylesheet) Rewrite(text string) (string, []StylesheetReference) {
	if strings.Contains(text, FallbackMarker) {
		return text, nil
	}

	var refs []StylesheetReference
	for _, m := range urlPattern.FindAllStringSubmatchIndex(text, -1) {
		ref, ok := s.reference(text, m)
		if ok {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return text, nil
	}

	return text + s.fallbackBlock(text, refs), refs
}

func (s Stylesheet) reference(text string, m []int) (StylesheetReference, bool) {
	start, end := m[0], m[1]
	path := ""
	for g := 1; g <= 3; g++ {
		if m[2*g] >= 0 {
			path = strings.TrimSpace(text[m[2*g]:m[2*g+1]])
			break
		}
	}
	if !candidate(path) {
		return StylesheetReference{}, false
	}

	open := strings.LastIndex(text[:start], "{")
	if open < 0 || strings.Contains(text[open+1:start], "}") {
		return StylesheetReference{}, false
	}
	closeRel := strings.Index(text[end:], "}")
	if closeRel < 0 {
		return StylesheetReference{}, false
	}
	block := text[open+1 : end+closeRel]
	if multiBackground(block) {
		return StylesheetReference{}, false
	}

	selector := selectorBefore(text[:open])
	if selector == "" || strings.HasPrefix(selector, "@") {
		return StylesheetReference{}, false
	}
	atRules, ok := enclosingAtRules(text[:open])
	if !ok {
		return StylesheetReference{}, false
	}

	prop, value := declarationAt(block, start-(open+1))
	if prop != "background" && prop != "background-image" {
		return StylesheetReference{}, false
	}
	if s.Exists != nil && !s.Exists(path) {
		return StylesheetReference{}, false
	}

	return StylesheetReference{
		Selector:     selector,
		Property:     prop,
		Value:        value,
		OriginalPath: path,
		CompactPath:  imgutil.CompactPath(path),
		AtRules:      atRules,
	}, true
}

// conditionalAtRules may wrap style rules and be repeated around the
// fallback pair without changing what they mean.
var conditionalAtRules = map[string]bool{
	"@media":     true,
	"@supports":  true,
	"@container": true,
	"@layer":     true,
}

// enclosingAtRules returns the preludes of the blocks still open at the end
// of before. It fails when one of them is a nested style rule or an at-rule
// that cannot be repeated, such as @keyframes.
func enclosingAtRules(before string) ([]string, bool) {
	var stack []string
	for i := 0; i < len(before); i++ {
		switch before[i] {
		case '/':
			if i+1 < len(before) && before[i+1] == '*' {
				end := strings.Index(before[i+2:], "*/")
				if end < 0 {
					return nil, false
				}
				i += end + 3
			}
		case '{':
			stack = append(stack, selectorBefore(before[:i]))
		case '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return nil, true
	}
	for _, prelude := range stack {
		keyword := strings.ToLower(prelude)
		if i := strings.IndexAny(keyword, " (\t"); i >= 0 {
			keyword = keyword[:i]
		}
		if !conditionalAtRules[keyword] {
			return nil, false
		}
	}
	return stack, true
}

func candidate(path string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//") {
		return false
	}
	return imgutil.IsRasterPath(path) && !imgutil.IsCompactPath(path)
}

// multiBackground reports whether a rule block holds more than one url() or
// a comma outside of any parentheses. Such blocks are never rewritten.
func multiBackground(block string) bool {
	if strings.Count(strings.ToLower(block), "url(") > 1 {
		return true
	}
	depth := 0
	for i := 0; i < len(block); i++ {
		switch block[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// selectorBefore returns the selector text that ends right before a '{'.
func selectorBefore(before string) string {
	cut := -1
	for _, sep := range []string{"}", "{", ";", "\n"} {
		if i := strings.LastIndex(before, sep); i > cut {
			cut = i
		}
	}
	if i := strings.LastIndex(before, "*/"); i >= 0 && i+1 > cut {
		cut = i + 1
	}
	return strings.TrimSpace(before[cut+1:])
}

// declarationAt returns the lower-cased property name and the value of the
// declaration containing offset pos of block.
func declarationAt(block string, pos int) (string, string) {
	declStart := strings.LastIndex(block[:pos], ";") + 1
	declEnd := len(block)
	if i := strings.Index(block[pos:], ";"); i >= 0 {
		declEnd = pos + i
	}
	name, value, ok := strings.Cut(block[declStart:declEnd], ":")
	if !ok {
		return "", ""
	}
	return strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)
}

func (s Stylesheet) fallbackBlock(text string, refs []StylesheetReference) string {
	attr := s.Attribute
	if attr == "" {
		attr = CapabilityAttr
	}

	var b strings.Builder
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(FallbackMarker)
	b.WriteString("\n")
	for _, ref := range refs {
		for _, prelude := range ref.AtRules {
			b.WriteString(prelude)
			b.WriteString(" {\n")
		}
		compactValue := strings.Replace(ref.Value, ref.OriginalPath, ref.CompactPath, 1)
		writeRule(&b, gate(ref.Selector, attr, "true"), ref.Property, compactValue)
		writeRule(&b, gate(ref.Selector, attr, "false"), ref.Property, ref.Value)
		for range ref.AtRules {
			b.WriteString("}\n")
		}
	}
	return b.String()
}

func writeRule(b *strings.Builder, selector, prop, value string) {
	b.WriteString(selector)
	b.WriteString(" { ")
	b.WriteString(prop)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("; }\n")
}

// gate scopes every selector in a list to the capability attribute on the
// root element.
func gate(selector, attr, value string) string {
	cond := "[" + attr + `="` + value + `"]`
	parts := strings.Split(selector, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "html" || part == ":root":
			parts[i] = part + cond
		case strings.HasPrefix(part, "html") && strings.ContainsAny(part[4:5], " .#:[>"):
			parts[i] = "html" + cond + part[4:]
		case strings.HasPrefix(part, ":root") && len(part) > 5 && strings.ContainsAny(part[5:6], " .#:[>"):
			parts[i] = ":root" + cond + part[5:]
		default:
			parts[i] = "html" + cond + " " + part
		}
	}
	return strings.Join(parts, ", ")
}

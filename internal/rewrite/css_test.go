package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylesheetBannerExample(t *testing.T) {
	in := ".banner { background-image: url(images/a.jpg); }\n"

	out, refs := Stylesheet{}.Rewrite(in)
	require.Len(t, refs, 1)
	assert.Equal(t, StylesheetReference{
		Selector:     ".banner",
		Property:     "background-image",
		Value:        "url(images/a.jpg)",
		OriginalPath: "images/a.jpg",
		CompactPath:  "images/a.webp",
	}, refs[0])

	assert.True(t, strings.HasPrefix(out, in), "original text must be kept byte for byte")
	assert.Contains(t, out, `html[data-webp="true"] .banner { background-image: url(images/a.webp); }`)
	assert.Contains(t, out, `html[data-webp="false"] .banner { background-image: url(images/a.jpg); }`)
}

func TestStylesheetSkipsMultiBackground(t *testing.T) {
	cases := map[string]string{
		"two urls":        ".hero { background: url(a.png), url(b.png); }",
		"one raster url":  ".hero { background-image: url(a.png), url(b.svg); }",
		"gradient layer":  ".hero { background: linear-gradient(red, blue), url(a.jpg); }",
		"comma elsewhere": ".hero { font-family: Arial, sans-serif; background: url(a.jpg); }",
	}
	for name, in := range cases {
		out, refs := Stylesheet{}.Rewrite(in)
		assert.Empty(t, refs, name)
		assert.Equal(t, in, out, name)
	}
}

func TestStylesheetCommaInsideFunctionIsFine(t *testing.T) {
	in := ".card { background: rgba(0, 0, 0, 0.5) url('img/card.png') no-repeat; }"

	out, refs := Stylesheet{}.Rewrite(in)
	require.Len(t, refs, 1)
	assert.Equal(t, "background", refs[0].Property)
	assert.Contains(t, out, `html[data-webp="true"] .card { background: rgba(0, 0, 0, 0.5) url('img/card.webp') no-repeat; }`)
}

func TestStylesheetIgnoresNonCandidates(t *testing.T) {
	in := strings.Join([]string{
		`.a { background-image: url(data:image/png;base64,AAAA); }`,
		`.b { background-image: url(https://cdn.example.com/b.png); }`,
		`.c { background-image: url(//cdn.example.com/c.png); }`,
		`.d { background-image: url(d.webp); }`,
		`.e { background-image: url(e.gif); }`,
		`.f { list-style-image: url(f.png); }`,
		`@import url(theme.png);`,
	}, "\n")

	out, refs := Stylesheet{}.Rewrite(in)
	assert.Empty(t, refs)
	assert.Equal(t, in, out)
}

func TestStylesheetMinifiedInsideMedia(t *testing.T) {
	in := `@media (min-width:600px){.logo{background:url("/img/logo.png?v=2") center}}.x{color:red}`

	out, refs := Stylesheet{}.Rewrite(in)
	require.Len(t, refs, 1)
	assert.Equal(t, ".logo", refs[0].Selector)
	assert.Equal(t, []string{"@media (min-width:600px)"}, refs[0].AtRules)
	assert.Equal(t, "/img/logo.webp?v=2", refs[0].CompactPath)
	assert.Equal(t, in+"\n"+FallbackMarker+"\n"+
		"@media (min-width:600px) {\n"+
		`html[data-webp="true"] .logo { background: url("/img/logo.webp?v=2") center; }`+"\n"+
		`html[data-webp="false"] .logo { background: url("/img/logo.png?v=2") center; }`+"\n"+
		"}\n", out)
}

func TestStylesheetFallbackStaysInsideConditionalBlocks(t *testing.T) {
	in := "@supports (display: grid) {\n  @media (min-width: 600px) {\n    .logo { background: url(logo.png) center; }\n  }\n}\n.plain { background: url(plain.png); }\n"

	out, refs := Stylesheet{}.Rewrite(in)
	require.Len(t, refs, 2)
	assert.Equal(t, []string{"@supports (display: grid)", "@media (min-width: 600px)"}, refs[0].AtRules)
	assert.Nil(t, refs[1].AtRules)

	fallback := out[len(in):]
	assert.Contains(t, fallback, "@supports (display: grid) {\n@media (min-width: 600px) {\n"+
		`html[data-webp="true"] .logo { background: url(logo.webp) center; }`+"\n"+
		`html[data-webp="false"] .logo { background: url(logo.png) center; }`+"\n}\n}\n")
	assert.True(t, strings.HasSuffix(fallback, `html[data-webp="false"] .plain { background: url(plain.png); }`+"\n"))
}

func TestStylesheetSkipsUnrepeatableBlocks(t *testing.T) {
	cases := map[string]string{
		"keyframes":    "@keyframes pulse { 0% { background: url(a.png); } }",
		"nested rule":  ".card { .icon { background: url(a.png); } }",
		"font face":    "@font-face { src: url(a.png); }",
		"open comment": "/* { .x { background: url(a.png); }",
	}
	for name, in := range cases {
		out, refs := Stylesheet{}.Rewrite(in)
		assert.Empty(t, refs, name)
		assert.Equal(t, in, out, name)
	}
}

func TestStylesheetSelectorLists(t *testing.T) {
	in := "html.dark .hero, .alt { background-image: url(hero.jpg) }"

	out, refs := Stylesheet{Attribute: "data-has-webp"}.Rewrite(in)
	require.Len(t, refs, 1)
	assert.Contains(t, out, `html[data-has-webp="true"].dark .hero, html[data-has-webp="true"] .alt { background-image: url(hero.webp); }`)
	assert.Contains(t, out, `html[data-has-webp="false"].dark .hero, html[data-has-webp="false"] .alt { background-image: url(hero.jpg); }`)
}

func TestStylesheetExistsFilterAndIdempotence(t *testing.T) {
	in := ".a { background: url(a.png); }\n.b { background: url(b.png); }\n"
	s := Stylesheet{Exists: func(ref string) bool { return ref == "b.png" }}

	out, refs := s.Rewrite(in)
	require.Len(t, refs, 1)
	assert.Equal(t, ".b", refs[0].Selector)

	again, refs := s.Rewrite(out)
	assert.Empty(t, refs)
	assert.Equal(t, out, again)
}

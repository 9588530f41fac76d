package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webpify/internal/config"
	"webpify/internal/errs"
	"webpify/internal/processor"
	"webpify/internal/rewrite"
	"webpify/internal/transcode"
)

// sizeTranscoder shrinks files named *small* and grows everything else.
type sizeTranscoder struct {
	mu    sync.Mutex
	calls int
}

func (s *sizeTranscoder) Transcode(data []byte, policy config.Policy) (transcode.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	n := len(data) * 2
	if bytes.HasPrefix(data, []byte("small")) {
		n = len(data) / 2
	}
	return transcode.Result{Data: make([]byte, n), Quality: policy.Quality, Attempts: 1, OriginalSize: len(data)}, nil
}

func (s *sizeTranscoder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFullPassConvertsAndRewritesStylesheets(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "images", "a.jpg"), "small"+strings.Repeat("a", 95))
	write(t, filepath.Join(root, "images", "b.png"), strings.Repeat("b", 100))
	css := ".banner { background-image: url(../images/a.jpg); }\n.side { background-image: url(../images/b.png); }\n"
	cssPath := filepath.Join(root, "css", "site.css")
	write(t, cssPath, css)

	tc := &sizeTranscoder{}
	p := newPipeline(t, root, config.DefaultPolicy(), tc, false)

	report, err := p.RunFullPass(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Smaller)
	assert.Equal(t, 1, report.Summary.Skipped)
	assert.Equal(t, int64(50), report.Summary.BytesSaved)
	assert.FileExists(t, filepath.Join(root, "images", "a.webp"))
	assert.NoFileExists(t, filepath.Join(root, "images", "b.webp"))
	assert.Equal(t, 1, report.StylesheetsRewritten())

	got := read(t, cssPath)
	assert.True(t, strings.HasPrefix(got, css))
	assert.Contains(t, got, `html[data-webp="true"] .banner { background-image: url(../images/a.webp); }`)
	assert.Contains(t, got, `html[data-webp="false"] .banner { background-image: url(../images/a.jpg); }`)
	assert.NotContains(t, got, "b.webp")

	second := newPipeline(t, root, config.DefaultPolicy(), tc, false)
	report, err = second.RunFullPass(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Total, "only the image without a variant is looked at again")
	assert.Zero(t, report.Summary.Smaller)
	assert.NoFileExists(t, filepath.Join(root, "images", "b.webp"))
	assert.Zero(t, report.StylesheetsRewritten())
	assert.Equal(t, got, read(t, cssPath))
}

func TestFullPassSkipsStylesheetsWhenDisabled(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.png"), "small image")
	css := ".x { background: url(a.png); }"
	write(t, filepath.Join(root, "a.css"), css)

	policy := config.DefaultPolicy()
	policy.ProcessCSS = false
	report, err := newPipeline(t, root, policy, &sizeTranscoder{}, false).RunFullPass(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Smaller)
	assert.Empty(t, report.Stylesheets)
	assert.Equal(t, css, read(t, filepath.Join(root, "a.css")))
}

func TestIncrementalThenFullPassPurgesTransients(t *testing.T) {
	root := t.TempDir()
	img := filepath.Join(root, "src", "logo.png")
	write(t, img, "small logo bytes")

	tc := &sizeTranscoder{}
	p := newPipeline(t, root, config.DefaultPolicy(), tc, false)
	importer := filepath.Join(root, "src", "main.js")

	out, refs := p.RewriteOneSource(context.Background(), "import logo from './logo.png'\n", importer)
	assert.Equal(t, "import logo from './logo.webp'\n", out)
	require.Len(t, refs, 1)
	assert.Equal(t, processor.OutcomeSmaller, refs[0].Outcome.Kind)
	assert.Equal(t, []string{filepath.Join(root, "src", "logo.webp")}, p.Tracker().Paths())

	out, refs = p.RewriteOneSource(context.Background(), "import logo from './logo.png'\n", importer)
	assert.Equal(t, "import logo from './logo.webp'\n", out, "revisits stay consistent")
	assert.Equal(t, processor.OutcomeDuplicate, refs[0].Outcome.Kind)
	assert.Equal(t, 1, tc.Calls())
	assert.Equal(t, 1, p.IncrementalSummary().Smaller)

	report, err := p.RunFullPass(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Equal(t, 1, report.Summary.Total, "the purged variant is rebuilt by the full pass")
	assert.Equal(t, 2, tc.Calls())
	assert.Zero(t, p.Tracker().Len())
	assert.FileExists(t, filepath.Join(root, "src", "logo.webp"))
}

func TestDevelopmentOnlyStripsMarkers(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "assets", "logo.png"), "small")

	tc := &sizeTranscoder{}
	p := newPipeline(t, root, config.DefaultPolicy(), tc, true)

	in := "import logo from '@/assets/logo.png!webp'\nimport other from '@/assets/logo.png'\n"
	out, _ := p.RewriteOneSource(context.Background(), in, filepath.Join(root, "src", "main.js"))
	assert.Equal(t, "import logo from '@/assets/logo.png'\nimport other from '@/assets/logo.png'\n", out)
	assert.Zero(t, tc.Calls())

	report, err := p.AfterBuild(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Summary.Total)
	assert.NoFileExists(t, filepath.Join(root, "src", "assets", "logo.webp"))
}

func TestAfterBuildStopsOnUpstreamFailure(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.png"), "small")
	tc := &sizeTranscoder{}
	p := newPipeline(t, root, config.DefaultPolicy(), tc, false)

	buildErr := errors.New("compilation failed")
	_, err := p.AfterBuild(context.Background(), root, buildErr)
	assert.ErrorIs(t, err, buildErr)
	assert.Zero(t, tc.Calls())
	assert.NoFileExists(t, filepath.Join(root, "a.webp"))

	report, err := p.AfterBuild(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Smaller)
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.MinQuality = 95
	_, err := New(Options{Policy: policy})
	assert.ErrorIs(t, err, errs.ErrConfig)
}

// stepCodec reproduces a codec whose output shrinks as quality drops:
// 110% of the input at 80, 105% at 75, 98% at 70.
type stepCodec struct {
	original int
}

func (c stepCodec) Encode(_ image.Image, quality int, _ bool) ([]byte, error) {
	percent := map[int]int{80: 110, 75: 105, 70: 98}[quality]
	if percent == 0 {
		percent = 120
	}
	return make([]byte, c.original*percent/100), nil
}

func TestQualitySearchThroughPipeline(t *testing.T) {
	root := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < 16; i++ {
		img.Set(i, i, color.RGBA{R: 0xff, A: 0xff})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	write(t, filepath.Join(root, "photo.png"), buf.String())

	policy := config.DefaultPolicy()
	policy.Quality = 80
	policy.MinQuality = 60
	p := newPipeline(t, root, policy, transcode.New(stepCodec{original: buf.Len()}), false)

	report, err := p.RunFullPass(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, processor.OutcomeSmaller, out.Kind)
	assert.Equal(t, 70, out.Quality)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, out.OriginalSize-out.CompactSize, report.Summary.BytesSaved)
}

func newPipeline(t *testing.T, root string, policy config.Policy, tc processor.Transcoder, dev bool) *Pipeline {
	t.Helper()
	resolver := rewrite.AliasResolver{Root: root, Aliases: map[string]string{"@": "src"}}
	p, err := New(Options{
		Policy:      policy,
		Development: dev,
		Transcoder:  tc,
		Resolver:    resolver,
	})
	require.NoError(t, err)
	return p
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFullPassFallbacksForEscapedAndContestedImages(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "images", "my photo.jpg"), "small photo")
	write(t, filepath.Join(root, "images", "a.jpg"), "small jpeg")
	write(t, filepath.Join(root, "images", "a.png"), "small png")
	css := ".p { background-image: url(../images/my%20photo.jpg); }\n" +
		".q { background-image: url(../images/a.png); }\n" +
		".r { background-image: url(../images/a.jpg); }\n"
	cssPath := filepath.Join(root, "css", "site.css")
	write(t, cssPath, css)

	report, err := newPipeline(t, root, config.DefaultPolicy(), &sizeTranscoder{}, false).RunFullPass(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Smaller)
	require.Len(t, report.Summary.Failures, 1)
	assert.Equal(t, filepath.Join(root, "images", "a.png"), report.Summary.Failures[0].Path)
	assert.ErrorIs(t, report.Summary.Failures[0].Err, errs.ErrConflict)

	got := read(t, cssPath)
	assert.Contains(t, got, `html[data-webp="true"] .p { background-image: url(../images/my%20photo.webp); }`)
	assert.Contains(t, got, `html[data-webp="true"] .r { background-image: url(../images/a.webp); }`)
	assert.NotContains(t, got, `.q { background-image: url(../images/a.webp)`)
}

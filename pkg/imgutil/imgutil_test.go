package imgutil

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectHeader(t *testing.T) {
	cases := []struct {
		name   string
		header []byte
		want   Kind
	}{
		{"jpeg", append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 8)...), KindJPEG},
		{"png", append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 4)...), KindPNG},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBP"), KindWebP},
		{"riff wave", []byte("RIFF\x10\x00\x00\x00WAVE"), KindUnknown},
		{"text", []byte("hello, world"), KindUnknown},
	}
	for _, tc := range cases {
		got, err := DetectHeader(tc.header)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}

	if _, err := DetectHeader([]byte{0xff}); err == nil {
		t.Fatalf("expected error for short header")
	}
}

func TestSniffFilePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	kind, err := SniffFile(path)
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if kind != KindPNG || !kind.Raster() {
		t.Fatalf("got %s, want raster png", kind)
	}
}

func TestCompactPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"images/a.jpg", "images/a.webp"},
		{"/abs/dir/photo.JPEG", "/abs/dir/photo.webp"},
		{"@/assets/logo.png", "@/assets/logo.webp"},
		{"a.png?v=3", "a.webp?v=3"},
		{"sprite.png#frame", "sprite.webp#frame"},
		{"dir.with.dots/noext", "dir.with.dots/noext"},
		{"../up/one.two.png", "../up/one.two.webp"},
	}
	for _, tc := range cases {
		if got := CompactPath(tc.in); got != tc.want {
			t.Fatalf("CompactPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsRasterPath(t *testing.T) {
	for _, p := range []string{"a.jpg", "a.JPG", "b/c.jpeg", "d.png?x=1"} {
		if !IsRasterPath(p) {
			t.Fatalf("expected %q to be raster", p)
		}
	}
	for _, p := range []string{"a.webp", "a.gif", "a.svg", "png", "a.png.txt"} {
		if IsRasterPath(p) {
			t.Fatalf("expected %q not to be raster", p)
		}
	}
	if !IsCompactPath("x/y.WEBP?1") {
		t.Fatalf("expected compact path")
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(0); got != "0 B" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSize(1500); got != "1.5 kB" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSize(-1500); got != "-1.5 kB" {
		t.Fatalf("got %q", got)
	}
}

func TestCompactFileIgnoresQueryCharacters(t *testing.T) {
	cases := map[string]string{
		"/out/a.png":        "/out/a.webp",
		"/out/what?.JPG":    "/out/what?.webp",
		"/out/v1.2/img.jpg": "/out/v1.2/img.webp",
		"/out/noext":        "/out/noext",
	}
	for in, want := range cases {
		if got := CompactFile(in); got != want {
			t.Errorf("CompactFile(%q) = %q, want %q", in, got, want)
		}
	}
}

package transcode

import (
	"bytes"
	"image"

	"github.com/gen2brain/webp"
)

const defaultMethod = 4

// WebPCodec encodes with libwebp compiled to WebAssembly, so no cgo toolchain
// is needed.
type WebPCodec struct {
	// Method trades speed for size, 0 (fast) to 6 (small). Zero uses the
	// library default.
	Method int
}

// Encode implements Codec.
func (c WebPCodec) Encode(img image.Image, quality int, lossless bool) ([]byte, error) {
	method := c.Method
	if method == 0 {
		method = defaultMethod
	}

	var buf bytes.Buffer
	err := webp.Encode(&buf, img, webp.Options{
		Quality:  quality,
		Lossless: lossless,
		Method:   method,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

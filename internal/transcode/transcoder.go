// Package transcode turns raster image bytes into a WebP buffer, lowering the
// quality step by step until the result is smaller than the input or the
// policy floor is reached.
package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"webpify/internal/config"
	"webpify/internal/errs"
	"webpify/pkg/imgutil"
)

// QualityStep is how far each retry lowers the quality.
const QualityStep = 5

// Codec encodes a decoded image into the compact format.
type Codec interface {
	Encode(img image.Image, quality int, lossless bool) ([]byte, error)
}

// Result is the last buffer produced by a Transcode call.
type Result struct {
	Data         []byte
	Quality      int
	Attempts     int
	OriginalSize int
}

// Size is the length of the encoded buffer.
func (r Result) Size() int { return len(r.Data) }

// Smaller reports whether the encoded buffer beats the original.
func (r Result) Smaller() bool { return len(r.Data) < r.OriginalSize }

// Transcoder runs the adaptive quality search over a Codec.
type Transcoder struct {
	codec Codec
}

// New returns a Transcoder using codec, or the WebP codec when codec is nil.
func New(codec Codec) *Transcoder {
	if codec == nil {
		codec = WebPCodec{}
	}
	return &Transcoder{codec: codec}
}

// MaxAttempts is the upper bound on encode calls for a policy.
func MaxAttempts(policy config.Policy) int {
	if policy.Lossless || policy.Quality <= policy.MinQuality {
		return 1
	}
	span := policy.Quality - policy.MinQuality
	return (span+QualityStep-1)/QualityStep + 1
}

// Transcode decodes data and encodes it at policy.Quality. While the output
// is not smaller than data and the encoding is lossy, it retries five quality
// points lower, never going under policy.MinQuality. The final buffer is
// returned even when it is still larger; the caller decides whether to keep it.
func (t *Transcoder) Transcode(data []byte, policy config.Policy) (Result, error) {
	res := Result{OriginalSize: len(data)}

	img, err := decode(data)
	if err != nil {
		return res, err
	}

	quality := policy.Quality
	for {
		out, err := t.codec.Encode(img, quality, policy.Lossless)
		res.Attempts++
		if err != nil {
			return Result{OriginalSize: len(data), Attempts: res.Attempts}, errs.Codec(fmt.Sprintf("encode at quality %d", quality), err)
		}
		res.Data = out
		res.Quality = quality

		if len(out) < len(data) || policy.Lossless || quality <= policy.MinQuality {
			return res, nil
		}
		quality -= QualityStep
		if quality < policy.MinQuality {
			quality = policy.MinQuality
		}
	}
}

func decode(data []byte) (image.Image, error) {
	kind := imgutil.SniffBytes(data)

	var (
		img image.Image
		err error
	)
	switch kind {
	case imgutil.KindJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case imgutil.KindPNG:
		img, err = png.Decode(bytes.NewReader(data))
	default:
		return nil, errs.Codec("decode", fmt.Errorf("unsupported image type %s", kind))
	}
	if err != nil {
		return nil, errs.Codec("decode "+kind.String(), err)
	}

	if kind == imgutil.KindJPEG {
		if orientation, err := readOrientation(data); err == nil {
			img = applyOrientation(img, orientation)
		}
	}
	return img, nil
}

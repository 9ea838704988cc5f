package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// CoverOptions controls how cover art is prepared before embedding.
type CoverOptions struct {
	// Resize shrinks images larger than MaxSize on either side.
	Resize  bool
	MaxSize int

	// ConvertToJPEG re-encodes non-JPEG images as JPEG.
	ConvertToJPEG bool
}

// ImageService prepares downloaded cover art for embedding in ID3 tags.
//
// Example usage:
//
//	svc := NewImageService()
//	data, mime, err := svc.PrepareCover(ctx, raw, CoverOptions{Resize: true, MaxSize: 1000, ConvertToJPEG: true})
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// PrepareCover applies opts to raw image bytes and returns the result along
// with its MIME type.
//
// Images that cannot be decoded are returned unchanged with their sniffed
// MIME type: an unusual cover format should not cost the track its cover.
func (s *ImageService) PrepareCover(ctx context.Context, data []byte, opts CoverOptions) ([]byte, string, error) {
	mime := http.DetectContentType(data)

	if !opts.Resize && !(opts.ConvertToJPEG && mime != "image/jpeg") {
		return data, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime, nil
	}

	if opts.Resize && opts.MaxSize > 0 {
		b := img.Bounds()
		if b.Dx() > opts.MaxSize || b.Dy() > opts.MaxSize {
			out, err := s.ResizeImage(ctx, img, opts.MaxSize, opts.MaxSize)
			if err != nil {
				return nil, "", err
			}
			return out, "image/jpeg", nil
		}
	}

	if opts.ConvertToJPEG && mime != "image/jpeg" {
		out, err := encodeJPEG(img)
		if err != nil {
			return nil, "", err
		}
		return out, "image/jpeg", nil
	}

	return data, mime, nil
}

// ResizeImage scales img to fit within maxWidth x maxHeight, preserving the
// aspect ratio, and returns JPEG bytes. Catmull-Rom is used for scaling.
//
// A 1500x1000 image with a 1000x1000 bound becomes 1000x666.
func (s *ImageService) ResizeImage(ctx context.Context, img image.Image, maxWidth, maxHeight int) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			width = int(float64(maxHeight) * ratio)
			height = maxHeight
		} else {
			height = int(float64(maxWidth) / ratio)
			width = maxWidth
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/disintegration/gift"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
	_ "golang.org/x/image/webp"
)

const (
	MaxUploadSize     = 10 << 20
	MaxImageDimension = 2048
	JPEGQuality       = 90
)

// sniffContentType prefers the type detected from the bytes when it is an
// accepted image type and falls back to the declared one otherwise.
func sniffContentType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if storage.IsAllowedImageType(sniffed) {
		return sniffed
	}
	switch declared {
	case "", "application/octet-stream":
		return sniffed
	default:
		return declared
	}
}

// normalizeImage shrinks images whose longest side exceeds MaxImageDimension
// and re-encodes them as JPEG. Smaller images are returned untouched.
func normalizeImage(data []byte, contentType string) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= MaxImageDimension && cfg.Height <= MaxImageDimension {
		return data, contentType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	width, height := MaxImageDimension, 0
	if cfg.Height > cfg.Width {
		width, height = 0, MaxImageDimension
	}

	g := gift.New(gift.Resize(width, height, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

package integrations

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// fallbackReuseSize is the size above which an existing fallback file is
// trusted without converting again.
const fallbackReuseSize = 4096

// JPEGTranscoder converts images the container cannot carry natively into
// JPEG files stored next to the source.
type JPEGTranscoder struct {
	Quality int
}

func NewJPEGTranscoder(quality int) *JPEGTranscoder {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &JPEGTranscoder{Quality: quality}
}

// FallbackPath is where the JPEG copy of src is written.
func FallbackPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + "_fallback.jpg"
}

func (t *JPEGTranscoder) TranscodeToJPEG(src string) (string, error) {
	dst := FallbackPath(src)
	if info, err := os.Stat(dst); err == nil && info.Size() > fallbackReuseSize {
		return dst, nil
	}

	img, err := imaging.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFallbackConversion, err)
	}

	// JPEG has no alpha channel, flatten onto white
	b := img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	if err := imaging.Save(flat, dst, imaging.JPEGQuality(t.Quality)); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("%w: %v", ErrFallbackConversion, err)
	}
	return dst, nil
}

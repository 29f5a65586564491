package integrations

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegpc/cwm-export/pkg/utils"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.NRGBA{R: 255, A: 128})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestFallbackPath(t *testing.T) {
	assert.Equal(t, "/tmp/a/pic_fallback.jpg", FallbackPath("/tmp/a/pic.webp"))
	assert.Equal(t, "pic_fallback.jpg", FallbackPath("pic"))
}

func TestTranscodeToJPEG(t *testing.T) {
	src := filepath.Join(t.TempDir(), "pic.png")
	writeTestPNG(t, src)

	dst, err := NewJPEGTranscoder(0).TranscodeToJPEG(src)
	require.NoError(t, err)
	assert.Equal(t, FallbackPath(src), dst)

	mime, err := utils.DetectMimeFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestTranscodeInvalidImage(t *testing.T) {
	src := filepath.Join(t.TempDir(), "broken.webp")
	require.NoError(t, os.WriteFile(src, webpData, 0644))

	_, err := NewJPEGTranscoder(80).TranscodeToJPEG(src)
	assert.True(t, errors.Is(err, ErrFallbackConversion))
}

func TestNewJPEGTranscoderQuality(t *testing.T) {
	assert.Equal(t, 90, NewJPEGTranscoder(-1).Quality)
	assert.Equal(t, 90, NewJPEGTranscoder(101).Quality)
	assert.Equal(t, 75, NewJPEGTranscoder(75).Quality)
}

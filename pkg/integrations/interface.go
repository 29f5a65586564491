package integrations

import "errors"

var (
	ErrFallbackConversion = errors.New("fallback conversion failed")
	ErrInvalidContainer   = errors.New("invalid container")
)

// Transcoder produces a JPEG copy of an image file and returns its path.
type Transcoder interface {
	TranscodeToJPEG(path string) (string, error)
}

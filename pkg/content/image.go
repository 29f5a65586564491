package content

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lifegpc/cwm-export/pkg/utils"
)

var ErrImageUnavailable = errors.New("image unavailable")

// ImageError reports an image that could not be turned into a local file.
type ImageError struct {
	URI string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %q unavailable: %v", e.URI, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

func (e *ImageError) Is(target error) bool { return target == ErrImageUnavailable }

// Resolver fetches an image and returns a local path to it.
type Resolver interface {
	Resolve(ctx context.Context, uri string) (string, error)
}

// ImageRef is an image reference found in chapter text. It is resolved at
// most once; later calls return the first outcome.
type ImageRef struct {
	URI string
	Alt string

	// FallbackID is the manifest id of a transcoded copy, if any.
	FallbackID string

	resolved bool
	err      error
	path     string
	mime     string
	filename string
}

// Resolve fetches the image, detects its media type and derives the file
// name used inside the container.
func (r *ImageRef) Resolve(ctx context.Context, res Resolver) error {
	if r.resolved {
		return r.err
	}
	if r.URI == "" {
		return &ImageError{URI: r.URI, Err: utils.ErrEmptyURI}
	}
	r.resolved = true
	r.err = r.resolve(ctx, res)
	return r.err
}

func (r *ImageRef) resolve(ctx context.Context, res Resolver) error {
	local, err := res.Resolve(ctx, r.URI)
	if err != nil {
		return &ImageError{URI: r.URI, Err: err}
	}
	mime, err := utils.DetectMimeFile(local)
	if err != nil {
		return &ImageError{URI: r.URI, Err: err}
	}
	ext, err := utils.ExtensionForMime(mime)
	if err != nil {
		return &ImageError{URI: r.URI, Err: err}
	}

	base := filepath.Base(local)
	r.path = local
	r.mime = mime
	r.filename = strings.TrimSuffix(base, filepath.Ext(base)) + ext
	return nil
}

// Resolved reports whether the image resolved successfully.
func (r *ImageRef) Resolved() bool { return r.resolved && r.err == nil }

// Path is the local file of a resolved image.
func (r *ImageRef) Path() string { return r.path }

// MediaType is the detected media type of a resolved image.
func (r *ImageRef) MediaType() string { return r.mime }

// Filename is the file name used for the image inside the container.
func (r *ImageRef) Filename() string { return r.filename }

// SetFilename renames the image inside the container.
func (r *ImageRef) SetFilename(name string) { r.filename = name }

package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
)

var ErrUnknownMime = errors.New("unknown content type")

const sniffLen = 8192

// DetectMime identifies an image from its leading bytes.
func DetectMime(b []byte) (string, error) {
	kind, err := filetype.Match(b)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}
	if isSVG(b) {
		return "image/svg+xml", nil
	}
	return "", ErrUnknownMime
}

// DetectMimeFile runs DetectMime on the head of a file.
func DetectMimeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectMime(buf[:n])
}

func isSVG(b []byte) bool {
	head := b
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// ExtensionForMime returns the file extension (with dot) used for an image type.
func ExtensionForMime(mimeType string) (string, error) {
	switch strings.ToLower(mimeType) {
	case "image/gif":
		return ".gif", nil
	case "image/jpeg":
		return ".jpeg", nil
	case "image/png":
		return ".png", nil
	case "image/svg+xml":
		return ".svg", nil
	case "image/webp":
		return ".webp", nil
	}
	return "", fmt.Errorf("unsupported image type %q", mimeType)
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrEmptyURI = errors.New("empty image uri")

// ImageCache maps image uris to local files, downloading remote images into
// a cache directory mirroring host and path.
type ImageCache struct {
	dir   string
	api   *API
	group singleflight.Group
	log   *zap.Logger
}

func NewImageCache(dir string, log *zap.Logger) *ImageCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageCache{dir: dir, api: NewAPI(), log: log}
}

// Resolve returns a local path holding the image at uri.
func (c *ImageCache) Resolve(ctx context.Context, uri string) (string, error) {
	if uri == "" {
		return "", ErrEmptyURI
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		local := uri
		if err == nil && u.Scheme == "file" {
			local = u.Path
		}
		if _, err := os.Stat(local); err != nil {
			return "", fmt.Errorf("image %s: %w", uri, err)
		}
		return local, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported image uri scheme %q", u.Scheme)
	}

	local := c.cachePath(u)
	if info, err := os.Stat(local); err == nil && info.Size() > 0 {
		return local, nil
	}

	_, err, _ = c.group.Do(local, func() (any, error) {
		c.log.Debug("Downloading image", zap.String("uri", uri))
		body, err := c.api.Get(ctx, uri)
		if err != nil {
			return nil, err
		}
		return nil, writeFileAtomic(local, body)
	})
	if err != nil {
		return "", err
	}
	return local, nil
}

func (c *ImageCache) cachePath(u *url.URL) string {
	p := path.Clean("/" + u.Path)
	if p == "/" {
		p = "/index"
	}
	return filepath.Join(c.dir, SanitizeFilename(u.Host), filepath.FromSlash(p))
}

func writeFileAtomic(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(name), ".download-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), name)
}

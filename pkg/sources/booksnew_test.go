package sources

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "booksnew.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestBooksNewLayouts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "100"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100", "1001.txt"), []byte("cipher"), 0644))

	layouts := map[string]string{
		"dir":      dir,
		"zip":      writeZip(t, map[string]string{"100/1001.txt": "cipher"}),
		"prefixed": writeZip(t, map[string]string{"booksnew/100/1001.txt": "cipher"}),
	}

	for name, p := range layouts {
		t.Run(name, func(t *testing.T) {
			store, err := OpenBooksNew(p)
			require.NoError(t, err)
			defer store.Close()

			assert.True(t, store.Has(100, 1001))
			assert.False(t, store.Has(100, 1002))

			body, err := store.Content(context.Background(), 100, 1001)
			require.NoError(t, err)
			assert.Equal(t, "cipher", body)

			_, err = store.Content(context.Background(), 100, 1002)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestOpenBooksNewMissing(t *testing.T) {
	_, err := OpenBooksNew(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

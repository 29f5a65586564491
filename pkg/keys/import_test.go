package keys

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegpc/cwm-export/pkg/data"
)

func setupTestStore(t *testing.T) *data.KeyStore {
	t.Helper()
	store, err := data.OpenKeyStore(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeDirBundle(t *testing.T, dir string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for oid, key := range entries {
		require.NoError(t, os.WriteFile(filepath.Join(dir, EncodeName(oid)), []byte(key), 0644))
	}
}

func writeZipBundle(t *testing.T, path, prefix string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	if prefix != "" {
		_, err := zw.Create(prefix)
		require.NoError(t, err)
	}
	for oid, key := range entries {
		w, err := zw.Create(prefix + EncodeName(oid))
		require.NoError(t, err)
		_, err = w.Write([]byte(key))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestImportSingleEntry(t *testing.T) {
	store := setupTestStore(t)
	dir := filepath.Join(t.TempDir(), "bundle")
	writeDirBundle(t, dir, map[string]string{"000000001" + "7": "k1"})

	b, err := OpenBundle(dir)
	require.NoError(t, err)

	n, err := Import(context.Background(), b, store, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err := store.KeysFor(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, keys)
}

func TestImportIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	dir := filepath.Join(t.TempDir(), "bundle")
	writeDirBundle(t, dir, map[string]string{
		"0000000017":  "k1",
		"0000000023":  "k2",
		"12345678942": "k3",
	})
	importer := NewImporter(dir, store, nil)

	n, err := importer.Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = importer.Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = importer.Import(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "identical content is not rewritten")
}

func TestImportForceOverwritesChangedKey(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.UpsertKey(1, 7, "old"))

	dir := filepath.Join(t.TempDir(), "bundle")
	writeDirBundle(t, dir, map[string]string{"0000000017": "new"})
	importer := NewImporter(dir, store, nil)

	n, err := importer.Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	keys, _ := store.KeysFor(1)
	assert.Equal(t, []string{"old"}, keys)

	n, err = importer.Import(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, _ = store.KeysFor(1)
	assert.Equal(t, []string{"new"}, keys)
}

func TestImportSkipsBadEntries(t *testing.T) {
	store := setupTestStore(t)
	dir := filepath.Join(t.TempDir(), "bundle")
	writeDirBundle(t, dir, map[string]string{"0000000017": "k1"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not base64!"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EncodeName("12")), []byte("short id"), 0644))

	n, err := NewImporter(dir, store, nil).Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportZipWithWrapperDir(t *testing.T) {
	store := setupTestStore(t)
	path := filepath.Join(t.TempDir(), "keys.zip")
	writeZipBundle(t, path, "Y2hlcy8/", map[string]string{
		"0000000017": "k1",
		"0000000027": "k2",
	})

	n, err := NewImporter(path, store, nil).Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := store.AllKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0000000017": "k1", "0000000027": "k2"}, all)
}

func TestImportZipFlat(t *testing.T) {
	store := setupTestStore(t)
	path := filepath.Join(t.TempDir(), "keys.zip")
	writeZipBundle(t, path, "", map[string]string{"0000000017": "k1"})

	n, err := NewImporter(path, store, nil).Import(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDirBundleWrapperDir(t *testing.T) {
	root := t.TempDir()
	writeDirBundle(t, filepath.Join(root, "Y2hlcy8"), map[string]string{"0000000017": "k1"})

	b, err := OpenBundle(root)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, b.Names(), 1)
	content, err := b.ReadFile(b.Names()[0])
	require.NoError(t, err)
	assert.Equal(t, "k1", string(content))
}

func TestDirBundleIgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	writeDirBundle(t, filepath.Join(root, "Y2hlcy8"), map[string]string{"0000000017": "k1"})
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("junk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Y2hlcy8", ".DS_Store"), []byte("junk"), 0644))

	b, err := OpenBundle(root)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []string{EncodeName("0000000017")}, b.Names())
}

func TestDirBundleStripsOneLevel(t *testing.T) {
	root := t.TempDir()
	writeDirBundle(t, filepath.Join(root, "outer", "inner"), map[string]string{"0000000017": "k1"})

	b, err := OpenBundle(root)
	require.NoError(t, err)
	defer b.Close()

	// inner is a directory below the wrapper, not a key
	assert.Empty(t, b.Names())
}

func TestZipBundleIgnoresHiddenFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"Y2hlcy8/" + EncodeName("0000000017"): "k1",
		"Y2hlcy8/.DS_Store":                   "junk",
		".DS_Store":                           "junk",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	b, err := OpenBundle(path)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, []string{EncodeName("0000000017")}, b.Names())
	content, err := b.ReadFile(b.Names()[0])
	require.NoError(t, err)
	assert.Equal(t, "k1", string(content))
}

func TestOpenBundleMissing(t *testing.T) {
	_, err := OpenBundle(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDecodeName(t *testing.T) {
	oid, err := DecodeName(EncodeName("0000000017"))
	require.NoError(t, err)
	assert.Equal(t, "0000000017", oid)

	_, err = DecodeName("@@@")
	assert.Error(t, err)
}

package decrypt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePlaintext = strings.Repeat("第一章的正文内容，用来检验解密结果。", 4)

// memKeys is an in-memory key source whose import hook appends keys.
type memKeys struct {
	keys    map[int64][]string
	bundle  map[int64][]string
	imports []bool
}

func (m *memKeys) KeysFor(chapterID int64) ([]string, error) {
	return m.keys[chapterID], nil
}

func (m *memKeys) importKeys(_ context.Context, force bool) (int, error) {
	m.imports = append(m.imports, force)
	n := 0
	for id, keys := range m.bundle {
		for _, k := range keys {
			if !contains(m.keys[id], k) {
				m.keys[id] = append(m.keys[id], k)
				n++
			}
		}
	}
	return n, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func encrypt(t *testing.T, key string) string {
	t.Helper()
	ct, err := Encrypt([]byte(samplePlaintext), key)
	require.NoError(t, err)
	return ct
}

func TestTryDecryptUsesStoredKey(t *testing.T) {
	keys := &memKeys{keys: map[int64][]string{1: {"wrong", "right"}}}
	d := NewDecryptor(keys, keys.importKeys, nil)

	text, err := d.TryDecrypt(context.Background(), &RetryState{}, encrypt(t, "right"), 1)
	require.NoError(t, err)
	assert.Equal(t, samplePlaintext, text)
	assert.Empty(t, keys.imports)
}

func TestTryDecryptOrderIndependent(t *testing.T) {
	ct := encrypt(t, "right")

	for _, order := range [][]string{{"a", "right", "b"}, {"b", "a", "right"}, {"right", "a", "b"}} {
		keys := &memKeys{keys: map[int64][]string{1: order}}
		d := NewDecryptor(keys, keys.importKeys, nil)

		text, err := d.TryDecrypt(context.Background(), &RetryState{}, ct, 1)
		require.NoError(t, err)
		assert.Equal(t, samplePlaintext, text)
	}
}

func TestTryDecryptImportsOnMiss(t *testing.T) {
	keys := &memKeys{
		keys:   map[int64][]string{},
		bundle: map[int64][]string{1: {"right"}},
	}
	d := NewDecryptor(keys, keys.importKeys, nil)
	state := &RetryState{}

	text, err := d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 1)
	require.NoError(t, err)
	assert.Equal(t, samplePlaintext, text)
	assert.Equal(t, []bool{false}, keys.imports)
	assert.True(t, state.Imported())
	assert.False(t, state.Forced())
}

func TestTryDecryptKeyNotFound(t *testing.T) {
	keys := &memKeys{keys: map[int64][]string{}}
	d := NewDecryptor(keys, keys.importKeys, nil)
	state := &RetryState{}

	_, err := d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	// the normal import runs once per run
	_, err = d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 2)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	assert.Equal(t, []bool{false}, keys.imports)
}

func TestTryDecryptKeyNotFoundWithoutImporter(t *testing.T) {
	keys := &memKeys{keys: map[int64][]string{}}
	d := NewDecryptor(keys, nil, nil)

	_, err := d.TryDecrypt(context.Background(), &RetryState{}, encrypt(t, "right"), 1)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestTryDecryptForcedReimport(t *testing.T) {
	keys := &memKeys{
		keys:   map[int64][]string{1: {"stale"}},
		bundle: map[int64][]string{1: {"right"}},
	}
	d := NewDecryptor(keys, keys.importKeys, nil)
	state := &RetryState{}

	text, err := d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 1)
	require.NoError(t, err)
	assert.Equal(t, samplePlaintext, text)
	assert.Equal(t, []bool{true}, keys.imports)
	assert.True(t, state.Forced())
}

func TestTryDecryptFailsAfterSingleForcedImport(t *testing.T) {
	keys := &memKeys{keys: map[int64][]string{1: {"bad1"}, 2: {"bad2"}}}
	d := NewDecryptor(keys, keys.importKeys, nil)
	state := &RetryState{}

	_, err := d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))

	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, int64(1), failed.ChapterID)
	assert.Len(t, failed.Attempts, 2)

	_, err = d.TryDecrypt(context.Background(), state, encrypt(t, "right"), 2)
	assert.True(t, errors.Is(err, ErrDecryptionFailed))
	assert.Equal(t, []bool{true}, keys.imports, "forced import runs once per run")
}

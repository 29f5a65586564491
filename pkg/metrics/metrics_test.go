package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	KeysImported.Add(3)
	BooksExported.WithLabelValues("ok").Inc()

	path := filepath.Join(t.TempDir(), "cwm.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.Contains(text, "cwm_keys_imported_total"))
	assert.True(t, strings.Contains(text, `cwm_books_exported_total{result="ok"}`))
}

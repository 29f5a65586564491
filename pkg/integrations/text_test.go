package integrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegpc/cwm-export/pkg/data"
)

func TestTextWriter(t *testing.T) {
	out := filepath.Join(t.TempDir(), "books", "book.txt")
	w, err := NewTextWriter(out)
	require.NoError(t, err)

	require.NoError(t, w.WriteDivision(&data.Division{Index: 1, Name: "作品相关", Description: "说明"}))
	require.NoError(t, w.WriteChapter(&data.Chapter{Index: 1, Title: "序"}, "第一行\n第二行\n\n"))
	require.NoError(t, w.WriteDivision(&data.Division{Index: 2, Name: "正文"}))
	require.NoError(t, w.WritePlaceholder(&data.Chapter{Index: 2, Title: "开始"}))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"第1卷 作品相关\n说明\n\n"+
			"第1章 序\n第一行\n第二行\n\n"+
			"第2卷 正文\n\n"+
			"第2章 开始(未下载)\n\n",
		string(b))
}

func TestTextWriterAbort(t *testing.T) {
	out := filepath.Join(t.TempDir(), "book.txt")
	w, err := NewTextWriter(out)
	require.NoError(t, err)
	require.NoError(t, w.WriteChapter(&data.Chapter{Index: 1, Title: "a"}, "b"))
	require.NoError(t, w.Abort())

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteChapterFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "1", "2.txt")
	require.NoError(t, WriteChapterFile(out, "标题", "内容\n"))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "标题\n内容\n", string(b))
}

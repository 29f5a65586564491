package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegpc/cwm-export/pkg/data"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, "cwm.db", cfg.DB)
	assert.Equal(t, "epub,txt", cfg.Type)
	assert.Equal(t, "exported/<book_name> - <author_name>.<ext>", cfg.ExportBookTemplate)
	assert.Equal(t, "exported/<book_id>/<chapter_id>.txt", cfg.ExportChapterTemplate)
	assert.Equal(t, "img_cache", cfg.ImgCacheDir)
	assert.Equal(t, "inline", cfg.ImageType)
	assert.True(t, cfg.IncludeUndownloaded)
	assert.True(t, cfg.FallbackImages)
	assert.Equal(t, "作品相关", cfg.SupplementaryDivision)
	assert.Equal(t, 90, cfg.JPEGQuality)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "normal", cfg.Logging.Console.Level)

	txt, epub := cfg.Targets()
	assert.True(t, txt)
	assert.True(t, epub)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"db": "keys.db",
		"type": "txt",
		"image_type": "footnote",
		"workers": 4,
		"logging": {"console": {"level": "debug"}}
	}`), 0644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "keys.db", cfg.DB)
	assert.Equal(t, "footnote", cfg.ImageType)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.Logging.Console.Level)
	assert.Equal(t, "img_cache", cfg.ImgCacheDir)

	txt, epub := cfg.Targets()
	assert.True(t, txt)
	assert.False(t, epub)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	v := viper.New()
	require.NoError(t, Read(v, path))
	v.Set("booksnew", "/tmp/booksnew")
	require.NoError(t, Save(v, path))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/booksnew", cfg.BooksNew)
	assert.Equal(t, "cwm.db", cfg.DB)
}

func TestUseAndroidPaths(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	UseAndroidPaths(v)

	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/data/com.kuangxiangciweimao.novel/databases/novelCiwei", cfg.CwmDB)
	assert.Equal(t, "/data/data/com.kuangxiangciweimao.novel/files/Y2hlcy8", cfg.Key)
	assert.Equal(t, "/data/data/com.kuangxiangciweimao.novel/files/novelCiwei/reader/booksnew", cfg.BooksNew)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Type: "epub,txt", ImageType: "inline", Workers: 1, JPEGQuality: 90}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"unknown type":  func(c *Config) { c.Type = "pdf" },
		"no type":       func(c *Config) { c.Type = "" },
		"image type":    func(c *Config) { c.ImageType = "sidebar" },
		"workers":       func(c *Config) { c.Workers = 0 },
		"jpeg quality":  func(c *Config) { c.JPEGQuality = 101 },
		"console level": func(c *Config) { c.Logging.Console.Level = "loud" },
		"file log mode": func(c *Config) { c.Logging.File.Mode = "rotate" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestTemplates(t *testing.T) {
	cfg := &Config{
		ExportBookTemplate:    "exported/<book_name> - <author_name>.<ext>",
		ExportChapterTemplate: "exported/<book_id>/<chapter_id> <chapter_title>.txt",
	}

	book := &data.Book{ID: 7, Name: "a/b: c", Author: "作者"}
	assert.Equal(t, "exported/a_b_ c - 作者.epub", cfg.BookPath(book, "epub"))

	ch := &data.Chapter{ID: 1001, BookID: 7, Title: "第一章?"}
	assert.Equal(t, "exported/7/1001 第一章_.txt", cfg.ChapterPath(ch, "txt"))

	assert.Equal(t, "books/hello-world.txt",
		ExpandTemplate("books/<book_slug>.<ext>", BookValues(&data.Book{Name: "Hello World"}, "txt")))
	assert.Equal(t, "<unknown>", ExpandTemplate("<unknown>", nil))
}

func TestLoggingPrepare(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "run.log")
	conf := LoggingConfig{
		Console: LoggerConfig{Level: "none"},
		File:    LoggerConfig{Level: "debug", Destination: dest, Mode: "overwrite"},
	}

	log, err := conf.Prepare()
	require.NoError(t, err)
	log.Debug("hello file")
	require.NoError(t, log.Sync())

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello file")

	conf.File.Destination = ""
	_, err = conf.Prepare()
	assert.Error(t, err)
}

func TestEnsureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	created, err := EnsureFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureFile(path)
	require.NoError(t, err)
	assert.False(t, created)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "cwm.db", cfg.DB)
}

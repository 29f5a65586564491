package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/lifegpc/cwm-export/pkg/content"
)

const DefaultConfigFile = "config.json"

// Android locations used by --real.
const (
	AndroidBaseDir  = "/data/data/com.kuangxiangciweimao.novel/"
	AndroidCatalog  = AndroidBaseDir + "databases/novelCiwei"
	AndroidKeys     = AndroidBaseDir + "files/Y2hlcy8"
	AndroidBooksNew = AndroidBaseDir + "files/novelCiwei/reader/booksnew"
)

const (
	TargetEPub = "epub"
	TargetTxt  = "txt"
)

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Destination string `mapstructure:"destination"`
	Mode        string `mapstructure:"mode"`
}

type LoggingConfig struct {
	File    LoggerConfig `mapstructure:"file"`
	Console LoggerConfig `mapstructure:"console"`
}

type Config struct {
	DB                    string        `mapstructure:"db"`
	Key                   string        `mapstructure:"key"`
	CwmDB                 string        `mapstructure:"cwmdb"`
	BooksNew              string        `mapstructure:"booksnew"`
	Type                  string        `mapstructure:"type"`
	ExportBookTemplate    string        `mapstructure:"export_book_template"`
	ExportChapterTemplate string        `mapstructure:"export_chapter_template"`
	ImgCacheDir           string        `mapstructure:"img_cache_dir"`
	ImageType             string        `mapstructure:"image_type"`
	IncludeUndownloaded   bool          `mapstructure:"include_undownloaded"`
	SupplementaryDivision string        `mapstructure:"supplementary_division"`
	FallbackImages        bool          `mapstructure:"fallback_images"`
	JPEGQuality           int           `mapstructure:"jpeg_quality"`
	FixZip                bool          `mapstructure:"fix_zip"`
	Workers               int           `mapstructure:"workers"`
	MetricsFile           string        `mapstructure:"metrics_file"`
	Logging               LoggingConfig `mapstructure:"logging"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", "cwm.db")
	v.SetDefault("key", "")
	v.SetDefault("cwmdb", "")
	v.SetDefault("booksnew", "")
	v.SetDefault("type", "epub,txt")
	v.SetDefault("export_book_template", "exported/<book_name> - <author_name>.<ext>")
	v.SetDefault("export_chapter_template", "exported/<book_id>/<chapter_id>.txt")
	v.SetDefault("img_cache_dir", "img_cache")
	v.SetDefault("image_type", "inline")
	v.SetDefault("include_undownloaded", true)
	v.SetDefault("supplementary_division", "作品相关")
	v.SetDefault("fallback_images", true)
	v.SetDefault("jpeg_quality", 90)
	v.SetDefault("fix_zip", false)
	v.SetDefault("workers", 1)
	v.SetDefault("metrics_file", "")
	v.SetDefault("logging.console.level", "normal")
	v.SetDefault("logging.file.level", "none")
	v.SetDefault("logging.file.destination", "")
	v.SetDefault("logging.file.mode", "append")
}

// EnsureFile writes a file holding the defaults when path does not exist yet.
func EnsureFile(path string) (created bool, err error) {
	_, err = os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	v := viper.New()
	SetDefaults(v)
	if err := Save(v, path); err != nil {
		return false, err
	}
	return true, nil
}

// Read loads path into v. A missing file is not an error.
func Read(v *viper.Viper, path string) error {
	SetDefaults(v)
	v.SetConfigFile(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Load reads path and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := Read(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the current settings of v to path.
func Save(v *viper.Viper, path string) error {
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config %s: %w", path, err)
	}
	return nil
}

// UseAndroidPaths points the reader locations at the app's private storage.
func UseAndroidPaths(v *viper.Viper) {
	v.Set("cwmdb", AndroidCatalog)
	v.Set("key", AndroidKeys)
	v.Set("booksnew", AndroidBooksNew)
}

// Targets returns the enabled export targets.
func (c *Config) Targets() (txt, epub bool) {
	for _, t := range strings.Split(c.Type, ",") {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TargetTxt:
			txt = true
		case TargetEPub:
			epub = true
		}
	}
	return txt, epub
}

func (c *Config) Validate() error {
	for _, t := range strings.Split(c.Type, ",") {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TargetTxt, TargetEPub, "":
		default:
			return fmt.Errorf("unknown export type %q", t)
		}
	}
	if txt, epub := c.Targets(); !txt && !epub {
		return fmt.Errorf("at least one export type should be specified")
	}
	if _, err := content.ParseImageMode(c.ImageType); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be within 1..100, got %d", c.JPEGQuality)
	}
	for name, l := range map[string]LoggerConfig{"console": c.Logging.Console, "file": c.Logging.File} {
		switch l.Level {
		case "", "none", "normal", "debug":
		default:
			return fmt.Errorf("unknown %s log level %q", name, l.Level)
		}
	}
	switch c.Logging.File.Mode {
	case "", "append", "overwrite":
	default:
		return fmt.Errorf("unknown log file mode %q", c.Logging.File.Mode)
	}
	return nil
}

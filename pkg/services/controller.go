package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/config"
	"github.com/lifegpc/cwm-export/pkg/content"
	"github.com/lifegpc/cwm-export/pkg/data"
	"github.com/lifegpc/cwm-export/pkg/decrypt"
	"github.com/lifegpc/cwm-export/pkg/integrations"
	"github.com/lifegpc/cwm-export/pkg/keys"
	"github.com/lifegpc/cwm-export/pkg/sources"
	"github.com/lifegpc/cwm-export/pkg/utils"
)

var (
	ErrNoKeySource     = errors.New("the key is not specified")
	ErrNoCatalog       = errors.New("the cwmdb is not specified")
	ErrNoChapterSource = errors.New("the booksnew is not specified")
)

// Controller owns the stores opened for one command invocation.
type Controller struct {
	cfg *config.Config
	log *zap.Logger

	store    *data.KeyStore
	catalog  sources.Catalog
	chapters sources.ChapterStore
}

// NewController opens the key store configured in cfg. Reader stores are
// opened on first use.
func NewController(cfg *config.Config, log *zap.Logger) (*Controller, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store, err := data.OpenKeyStore(cfg.DB)
	if err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, log: log, store: store}, nil
}

func (c *Controller) Close() error {
	var err error
	if c.chapters != nil {
		err = multierr.Append(err, c.chapters.Close())
	}
	if c.catalog != nil {
		err = multierr.Append(err, c.catalog.Close())
	}
	return multierr.Append(err, c.store.Close())
}

func (c *Controller) Store() *data.KeyStore { return c.store }

// importFunc returns the key import bound to the configured bundle, or nil
// when none is configured.
func (c *Controller) importFunc() decrypt.ImportFunc {
	if c.cfg.Key == "" {
		return nil
	}
	return keys.NewImporter(c.cfg.Key, c.store, c.log.Named("keys")).Import
}

func (c *Controller) ImportKeys(ctx context.Context, force bool) (int, error) {
	imp := c.importFunc()
	if imp == nil {
		return 0, ErrNoKeySource
	}
	return imp(ctx, force)
}

func (c *Controller) Catalog() (sources.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	if c.cfg.CwmDB == "" {
		return nil, ErrNoCatalog
	}
	cat, err := sources.OpenNovelCiwei(c.cfg.CwmDB)
	if err != nil {
		return nil, err
	}
	c.catalog = cat
	return cat, nil
}

func (c *Controller) chapterStore() (sources.ChapterStore, error) {
	if c.chapters != nil {
		return c.chapters, nil
	}
	if c.cfg.BooksNew == "" {
		return nil, ErrNoChapterSource
	}
	bn, err := sources.OpenBooksNew(c.cfg.BooksNew)
	if err != nil {
		return nil, err
	}
	c.chapters = bn
	return bn, nil
}

// Exporter builds an Exporter over the configured stores.
func (c *Controller) Exporter() (*Exporter, error) {
	switch {
	case c.cfg.CwmDB == "":
		return nil, ErrNoCatalog
	case c.cfg.BooksNew == "":
		return nil, ErrNoChapterSource
	}

	catalog, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	chapters, err := c.chapterStore()
	if err != nil {
		return nil, err
	}

	mode, err := content.ParseImageMode(c.cfg.ImageType)
	if err != nil {
		return nil, err
	}

	var transcoder integrations.Transcoder
	if c.cfg.FallbackImages {
		transcoder = integrations.NewJPEGTranscoder(c.cfg.JPEGQuality)
	}

	txt, epub := c.cfg.Targets()
	opts := Options{
		Text:                txt,
		EPub:                epub,
		BookPath:            c.cfg.BookPath,
		ChapterPath:         c.cfg.ChapterPath,
		IncludeUndownloaded: c.cfg.IncludeUndownloaded,
		Workers:             c.cfg.Workers,
		EPubOptions: integrations.EPubOptions{
			ImageMode:             mode,
			SupplementaryDivision: c.cfg.SupplementaryDivision,
			FixZip:                c.cfg.FixZip,
		},
	}

	decryptor := decrypt.NewDecryptor(c.store, c.importFunc(), c.log.Named("decrypt"))
	resolver := utils.NewImageCache(c.cfg.ImgCacheDir, c.log.Named("images"))

	return NewExporter(catalog, chapters, c.store, decryptor, resolver, transcoder, opts, c.log), nil
}

func (c *Controller) MarkDivision(divisionID int64, linear bool) error {
	return markDivision(c.store, divisionID, linear)
}

// BookEntry is a book known to the reader and where it was found.
type BookEntry struct {
	Book    *data.Book
	OnShelf bool
}

// ListBooks returns the books of the shelf and the read history.
func (c *Controller) ListBooks(ctx context.Context) ([]BookEntry, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	ids, err := catalog.BookIDs(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]BookEntry, 0, len(ids))
	for _, id := range ids {
		book, err := catalog.ShelfBook(ctx, id)
		onShelf := err == nil
		if errors.Is(err, sources.ErrNotFound) {
			book, err = catalog.HistoryBook(ctx, id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load book %d: %w", id, err)
		}
		entries = append(entries, BookEntry{Book: book, OnShelf: onShelf})
	}
	return entries, nil
}

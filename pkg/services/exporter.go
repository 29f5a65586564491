package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lifegpc/cwm-export/pkg/content"
	"github.com/lifegpc/cwm-export/pkg/data"
	"github.com/lifegpc/cwm-export/pkg/decrypt"
	"github.com/lifegpc/cwm-export/pkg/integrations"
	"github.com/lifegpc/cwm-export/pkg/metrics"
	"github.com/lifegpc/cwm-export/pkg/sources"
)

var (
	ErrBookNotFound   = errors.New("book not found")
	ErrOutputConflict = errors.New("output path already used by another book")
)

// Progress statuses.
const (
	StatusExporting   = "exporting"
	StatusPlaceholder = "placeholder"
	StatusSkipped     = "skipped"
	StatusWriting     = "writing"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// ExportProgress represents the progress of an export operation
type ExportProgress struct {
	BookID    int64
	BookName  string
	ChapterID int64
	Title     string
	Current   int
	Total     int
	Status    string
	Error     error
}

// KeyStore is the part of the key store the exporter needs.
type KeyStore interface {
	decrypt.KeyLister
	LookupLinear(divisionID int64) (linear bool, ok bool, err error)
	SetLinear(divisionID int64, linear bool) error
}

type Options struct {
	Text bool
	EPub bool

	// BookPath and ChapterPath map records to output files.
	BookPath    func(book *data.Book, ext string) string
	ChapterPath func(ch *data.Chapter, ext string) string

	IncludeUndownloaded bool
	Workers             int
	EPubOptions         integrations.EPubOptions
}

// Summary reports the outcome of ExportAll.
type Summary struct {
	Exported []int64
	Failed   map[int64]error
}

// Exporter turns cached books into text and EPUB files.
type Exporter struct {
	catalog    sources.Catalog
	chapters   sources.ChapterStore
	store      KeyStore
	decryptor  *decrypt.Decryptor
	resolver   content.Resolver
	transcoder integrations.Transcoder
	opts       Options
	log        *zap.Logger

	progressChan chan ExportProgress

	outputMu sync.Mutex
	outputs  map[string]int64 // output path -> book id
}

// NewExporter creates an Exporter. transcoder may be nil.
func NewExporter(catalog sources.Catalog, chapters sources.ChapterStore, store KeyStore,
	decryptor *decrypt.Decryptor, resolver content.Resolver, transcoder integrations.Transcoder,
	opts Options, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Exporter{
		catalog:      catalog,
		chapters:     chapters,
		store:        store,
		decryptor:    decryptor,
		resolver:     resolver,
		transcoder:   transcoder,
		opts:         opts,
		log:          log,
		progressChan: make(chan ExportProgress, 100),
		outputs:      make(map[string]int64),
	}
}

// GetProgressChannel returns the channel for receiving export progress updates
func (e *Exporter) GetProgressChannel() <-chan ExportProgress {
	return e.progressChan
}

// sendProgress sends a progress update (non-blocking)
func (e *Exporter) sendProgress(p ExportProgress) {
	select {
	case e.progressChan <- p:
	default:
		// Channel full, skip this update
	}
}

// Close closes the progress channel. The exporter must not be used afterwards.
func (e *Exporter) Close() {
	close(e.progressChan)
}

// MarkDivision persists the reading order flag of a division.
func (e *Exporter) MarkDivision(divisionID int64, linear bool) error {
	return markDivision(e.store, divisionID, linear)
}

func markDivision(store interface{ SetLinear(int64, bool) error }, divisionID int64, linear bool) error {
	if err := store.SetLinear(divisionID, linear); err != nil {
		return fmt.Errorf("failed to mark division %d: %w", divisionID, err)
	}
	return nil
}

// ExportChapter decrypts one chapter into its own text file and returns the
// path written.
func (e *Exporter) ExportChapter(ctx context.Context, chapterID int64) (string, error) {
	ch, err := e.catalog.Chapter(ctx, chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to find chapter: %w", err)
	}

	text, err := e.decryptChapter(ctx, &decrypt.RetryState{}, ch)
	if err != nil {
		return "", err
	}

	out := e.opts.ChapterPath(ch, "txt")
	if err := integrations.WriteChapterFile(out, ch.Title, text); err != nil {
		return "", fmt.Errorf("failed to write chapter: %w", err)
	}
	metrics.ChaptersExported.WithLabelValues("chapter").Inc()
	e.log.Info("Chapter exported", zap.Int64("chapter", ch.ID), zap.String("output", out))
	return out, nil
}

func (e *Exporter) decryptChapter(ctx context.Context, state *decrypt.RetryState, ch *data.Chapter) (string, error) {
	raw, err := e.chapters.Content(ctx, ch.BookID, ch.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read chapter %d: %w", ch.ID, err)
	}
	text, err := e.decryptor.TryDecrypt(ctx, state, raw, ch.ID)
	if err != nil {
		metrics.ChapterFailures.Inc()
		return "", err
	}
	return text, nil
}

// ExportBook writes every enabled target of one book and returns the paths
// written.
func (e *Exporter) ExportBook(ctx context.Context, bookID int64) ([]string, error) {
	return e.exportBook(ctx, &decrypt.RetryState{}, bookID)
}

func (e *Exporter) findBook(ctx context.Context, bookID int64) (*data.Book, error) {
	book, err := e.catalog.ShelfBook(ctx, bookID)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sources.ErrNotFound) {
		return nil, err
	}

	book, err = e.catalog.HistoryBook(ctx, bookID)
	if errors.Is(err, sources.ErrNotFound) {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrBookNotFound)
	}
	return book, err
}

// bookOutputs holds the open targets of one book export.
type bookOutputs struct {
	text     *integrations.TextWriter
	textPath string
	epub     *integrations.EPubBuilder
	epubPath string
}

func (o *bookOutputs) abort() error {
	if o.text == nil {
		return nil
	}
	t := o.text
	o.text = nil
	return t.Abort()
}

func (o *bookOutputs) finish() ([]string, error) {
	var paths []string
	if o.text != nil {
		if err := o.text.Close(); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to finalize text output: %w", err), o.abort())
		}
		paths = append(paths, o.textPath)
	}
	if o.epub != nil {
		if err := o.epub.Write(o.epubPath); err != nil {
			return paths, fmt.Errorf("failed to finalize EPUB: %w", err)
		}
		paths = append(paths, o.epubPath)
	}
	return paths, nil
}

func (e *Exporter) openOutputs(ctx context.Context, book *data.Book) (*bookOutputs, error) {
	if !e.opts.Text && !e.opts.EPub {
		return nil, fmt.Errorf("no export target enabled")
	}

	out := &bookOutputs{}
	if e.opts.Text {
		out.textPath = e.opts.BookPath(book, "txt")
	}
	if e.opts.EPub {
		out.epubPath = e.opts.BookPath(book, "epub")
	}
	if err := e.claimOutputs(book.ID, out.textPath, out.epubPath); err != nil {
		return nil, err
	}

	if e.opts.Text {
		w, err := integrations.NewTextWriter(out.textPath)
		if err != nil {
			return nil, err
		}
		out.text = w
	}
	if e.opts.EPub {
		out.epub = integrations.NewEPubBuilder(e.opts.EPubOptions, e.resolver, e.transcoder,
			e.log.With(zap.Int64("book", book.ID)))
		if err := out.epub.SetBook(ctx, book); err != nil {
			return nil, multierr.Append(err, out.abort())
		}
	}
	return out, nil
}

// claimOutputs reserves the output paths of a book for the lifetime of the
// exporter so that two books never write the same file.
func (e *Exporter) claimOutputs(bookID int64, paths ...string) error {
	e.outputMu.Lock()
	defer e.outputMu.Unlock()

	var keys []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		key := filepath.Clean(p)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if owner, ok := e.outputs[key]; ok && owner != bookID {
			return fmt.Errorf("%w: %s (book %d)", ErrOutputConflict, p, owner)
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		e.outputs[key] = bookID
	}
	return nil
}

type bookChapter struct {
	div *data.Division
	ch  *data.Chapter
}

// loadStructure lists the chapters of a book in division then chapter order
// with the persisted reading order flags applied.
func (e *Exporter) loadStructure(ctx context.Context, book *data.Book) ([]bookChapter, error) {
	divs, err := e.catalog.Divisions(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list divisions: %w", err)
	}

	var items []bookChapter
	for _, div := range divs {
		linear, ok, err := e.store.LookupLinear(div.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read division %d: %w", div.ID, err)
		}
		if ok {
			div.Linear = &linear
		}

		chapters, err := e.catalog.Chapters(ctx, div.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list chapters of division %d: %w", div.ID, err)
		}
		if len(chapters) == 0 {
			items = append(items, bookChapter{div: div})
		}
		for _, ch := range chapters {
			ch.Downloaded = e.chapters.Has(book.ID, ch.ID)
			items = append(items, bookChapter{div: div, ch: ch})
		}
	}
	return items, nil
}

func (e *Exporter) exportBook(ctx context.Context, state *decrypt.RetryState, bookID int64) (paths []string, err error) {
	start := time.Now()
	defer func() {
		metrics.BookExportDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.BooksExported.WithLabelValues("failed").Inc()
		} else {
			metrics.BooksExported.WithLabelValues("ok").Inc()
		}
	}()

	book, err := e.findBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	log := e.log.With(zap.Int64("book", book.ID), zap.String("name", book.Name))

	items, err := e.loadStructure(ctx, book)
	if err != nil {
		return nil, err
	}

	out, err := e.openOutputs(ctx, book)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, out.abort())
		}
	}()

	log.Info("Exporting book", zap.Int("chapters", len(items)))

	var lastDiv *data.Division
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if item.div != lastDiv {
			lastDiv = item.div
			if out.text != nil {
				if err := out.text.WriteDivision(item.div); err != nil {
					return nil, fmt.Errorf("failed to write text output: %w", err)
				}
			}
		}
		if item.ch == nil {
			continue
		}

		p := ExportProgress{
			BookID:    book.ID,
			BookName:  book.Name,
			ChapterID: item.ch.ID,
			Title:     item.ch.Title,
			Current:   i + 1,
			Total:     len(items),
		}

		if !item.ch.Downloaded {
			if !e.opts.IncludeUndownloaded {
				p.Status = StatusSkipped
				e.sendProgress(p)
				continue
			}
			if err := e.writePlaceholder(out, item); err != nil {
				return nil, err
			}
			p.Status = StatusPlaceholder
			e.sendProgress(p)
			continue
		}

		p.Status = StatusExporting
		e.sendProgress(p)
		if err := e.writeChapter(ctx, state, out, item); err != nil {
			p.Status, p.Error = StatusError, err
			e.sendProgress(p)
			return nil, fmt.Errorf("chapter %d (%s): %w", item.ch.ID, item.ch.Title, err)
		}
	}

	e.sendProgress(ExportProgress{BookID: book.ID, BookName: book.Name, Total: len(items), Current: len(items), Status: StatusWriting})
	paths, err = out.finish()
	if err != nil {
		return nil, err
	}

	e.sendProgress(ExportProgress{BookID: book.ID, BookName: book.Name, Total: len(items), Current: len(items), Status: StatusComplete})
	log.Info("Book exported", zap.Strings("outputs", paths), zap.Duration("elapsed", time.Since(start)))
	return paths, nil
}

func (e *Exporter) writePlaceholder(out *bookOutputs, item bookChapter) error {
	if out.text != nil {
		if err := out.text.WritePlaceholder(item.ch); err != nil {
			return fmt.Errorf("failed to write text output: %w", err)
		}
	}
	if out.epub != nil {
		if err := out.epub.AddPlaceholder(item.ch, item.div); err != nil {
			return err
		}
	}
	metrics.ChaptersExported.WithLabelValues("placeholder").Inc()
	return nil
}

func (e *Exporter) writeChapter(ctx context.Context, state *decrypt.RetryState, out *bookOutputs, item bookChapter) error {
	text, err := e.decryptChapter(ctx, state, item.ch)
	if err != nil {
		return err
	}
	doc, err := content.Parse(text)
	if err != nil {
		metrics.ChapterFailures.Inc()
		return err
	}

	if out.text != nil {
		if err := out.text.WriteChapter(item.ch, doc.PlainText()); err != nil {
			return fmt.Errorf("failed to write text output: %w", err)
		}
	}
	if out.epub != nil {
		if err := out.epub.AddChapter(ctx, item.ch, item.div, doc); err != nil {
			return err
		}
	}
	metrics.ChaptersExported.WithLabelValues("chapter").Inc()
	return nil
}

// ExportAll exports every known book. A failing book is logged and skipped.
// One RetryState is shared by all books of the run.
func (e *Exporter) ExportAll(ctx context.Context) (*Summary, error) {
	ids, err := e.catalog.BookIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	var (
		mu      sync.Mutex
		state   = &decrypt.RetryState{}
		summary = &Summary{Failed: make(map[int64]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, id := range ids {
		g.Go(func() error {
			_, err := e.exportBook(gctx, state, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.Warn("Book export failed", zap.Int64("book", id), zap.Error(err))
				summary.Failed[id] = err
				return nil
			}
			summary.Exported = append(summary.Exported, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	slices.Sort(summary.Exported)

	e.log.Info("Export finished", zap.Int("exported", len(summary.Exported)), zap.Int("failed", len(summary.Failed)))
	return summary, ctx.Err()
}

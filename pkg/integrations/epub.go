package integrations

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/content"
	"github.com/lifegpc/cwm-export/pkg/data"
	"github.com/lifegpc/cwm-export/pkg/metrics"
)

const (
	imagesDir = "images"

	introID    = "intro"
	coverID    = "cover-image"
	navID      = "nav"
	ncxID      = "ncx"
	styleID    = "style"
	fallbackID = "f"

	// DefaultSupplementaryDivision is the division the reader uses for
	// author notes and extras.
	DefaultSupplementaryDivision = "作品相关"

	placeholderNotice = "本章未下载"
	placeholderSuffix = " (未下载)"
)

// Media types readers must support without a fallback.
var nativeImageTypes = map[string]bool{
	"image/gif":     true,
	"image/jpeg":    true,
	"image/png":     true,
	"image/svg+xml": true,
}

type EPubOptions struct {
	ImageMode content.ImageMode
	// Chapters of this division are left out of the linear reading order
	// unless the division was marked otherwise.
	SupplementaryDivision string
	Language              string
	// FixZip rewrites the archive without data descriptors.
	FixZip bool
}

type ManifestEntry struct {
	ID           string
	Href         string
	MediaType    string
	Properties   []string
	Fallback     string
	MediaOverlay string
	Duration     string

	doc  *etree.Document
	file string
	raw  []byte
}

type SpineItem struct {
	IDRef  string
	Linear bool
}

type TocEntry struct {
	Title string
	Href  string
}

// TocGroup holds a run of consecutive chapters sharing a division name.
type TocGroup struct {
	Division string
	Entries  []TocEntry
}

// EPubBuilder assembles an EPUB 3 book chapter by chapter.
type EPubBuilder struct {
	opts       EPubOptions
	resolver   content.Resolver
	transcoder Transcoder
	log        *zap.Logger

	book     *data.Book
	manifest []*ManifestEntry
	spine    []SpineItem
	chapters []string
	toc      []*TocGroup

	imageNames map[string]string // local path -> name inside images/
	imageAdded map[string]bool
	usedNames  map[string]bool
}

// NewEPubBuilder creates a builder. transcoder may be nil, in which case
// images without native support are stored without a fallback.
func NewEPubBuilder(opts EPubOptions, resolver content.Resolver, transcoder Transcoder, log *zap.Logger) *EPubBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Language == "" {
		opts.Language = "zh-CN"
	}
	return &EPubBuilder{
		opts:       opts,
		resolver:   resolver,
		transcoder: transcoder,
		log:        log,
		imageNames: make(map[string]string),
		imageAdded: make(map[string]bool),
		usedNames:  make(map[string]bool),
	}
}

// SetBook creates the title page and the cover. It must be called before
// any chapter is added.
func (b *EPubBuilder) SetBook(ctx context.Context, book *data.Book) error {
	if book == nil {
		return fmt.Errorf("book cannot be nil")
	}
	if b.book != nil {
		return fmt.Errorf("book already set")
	}
	b.book = book

	doc, body := newXHTML(book.Name, b.opts.Language)

	if book.CoverURL != "" {
		ref := &content.ImageRef{URI: book.CoverURL}
		if err := ref.Resolve(ctx, b.resolver); err != nil {
			b.log.Warn("Cover unavailable", zap.Int64("book", book.ID), zap.Error(err))
		} else {
			name := "cover" + path.Ext(ref.Filename())
			b.usedNames[name] = true
			b.addEntry(&ManifestEntry{
				ID:         coverID,
				Href:       path.Join(imagesDir, name),
				MediaType:  ref.MediaType(),
				Properties: []string{"cover-image"},
				file:       ref.Path(),
			})
			div := body.CreateElement("div")
			div.CreateAttr("class", "cover")
			img := div.CreateElement("img")
			img.CreateAttr("src", path.Join(imagesDir, name))
			img.CreateAttr("alt", book.Name)
		}
	}

	for _, line := range [][2]string{
		{"书名", book.Name},
		{"ID", strconv.FormatInt(book.ID, 10)},
		{"作者", book.Author},
		{"更新时间", book.Updated},
		{"最新章节", book.LastChapter},
	} {
		body.CreateElement("p").SetText(line[0] + "：" + line[1])
	}

	b.addEntry(&ManifestEntry{ID: introID, Href: "intro.xhtml", MediaType: "application/xhtml+xml", doc: doc})
	b.spine = append(b.spine, SpineItem{IDRef: introID, Linear: true})
	return nil
}

// AddChapter renders a decrypted chapter and registers it and its images.
func (b *EPubBuilder) AddChapter(ctx context.Context, ch *data.Chapter, div *data.Division, doc *content.Document) error {
	if b.book == nil {
		return fmt.Errorf("%w: book not set", ErrInvalidContainer)
	}

	b.assignImageNames(ctx, doc)

	page, body := newXHTML(ch.Title, b.opts.Language)
	body.CreateElement("h1").SetText(ch.Title)
	r := &content.Renderer{
		Mode:     b.opts.ImageMode,
		Resolver: b.resolver,
		ImageDir: imagesDir + "/",
		Log:      b.log.With(zap.Int64("chapter", ch.ID)),
	}
	images := r.Render(ctx, body, doc)

	b.addChapterPage(ch, div, ch.Title, page)

	for n, ref := range images {
		b.addImage(fmt.Sprintf("i%d_%d", ch.ID, n), ref)
	}
	return nil
}

// AddPlaceholder registers a chapter whose body was never downloaded.
func (b *EPubBuilder) AddPlaceholder(ch *data.Chapter, div *data.Division) error {
	if b.book == nil {
		return fmt.Errorf("%w: book not set", ErrInvalidContainer)
	}
	title := ch.Title + placeholderSuffix
	page, body := newXHTML(title, b.opts.Language)
	body.CreateElement("h1").SetText(title)
	body.CreateElement("p").SetText(placeholderNotice)

	b.addChapterPage(ch, div, title, page)
	return nil
}

func (b *EPubBuilder) addChapterPage(ch *data.Chapter, div *data.Division, title string, page *etree.Document) {
	id := fmt.Sprintf("ch%d", ch.ID)
	href := id + ".xhtml"

	b.addEntry(&ManifestEntry{ID: id, Href: href, MediaType: "application/xhtml+xml", doc: page})
	b.spine = append(b.spine, SpineItem{IDRef: id, Linear: b.isLinear(div)})
	b.chapters = append(b.chapters, id)

	name := ""
	if div != nil {
		name = div.Name
	}
	if len(b.toc) == 0 || b.toc[len(b.toc)-1].Division != name {
		b.toc = append(b.toc, &TocGroup{Division: name})
	}
	group := b.toc[len(b.toc)-1]
	group.Entries = append(group.Entries, TocEntry{Title: title, Href: href})
}

func (b *EPubBuilder) isLinear(div *data.Division) bool {
	if div == nil {
		return true
	}
	if div.Linear != nil {
		return *div.Linear
	}
	return b.opts.SupplementaryDivision == "" || div.Name != b.opts.SupplementaryDivision
}

// assignImageNames resolves the images of doc and gives each local file one
// unique name inside the container.
func (b *EPubBuilder) assignImageNames(ctx context.Context, doc *content.Document) {
	for _, ref := range doc.Images() {
		if ref.Resolve(ctx, b.resolver) != nil {
			continue
		}
		if name, ok := b.imageNames[ref.Path()]; ok {
			ref.SetFilename(name)
			continue
		}
		name := b.uniqueName(ref.Filename())
		ref.SetFilename(name)
		b.imageNames[ref.Path()] = name
	}
}

func (b *EPubBuilder) uniqueName(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; b.usedNames[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	b.usedNames[candidate] = true
	return candidate
}

func (b *EPubBuilder) addImage(id string, ref *content.ImageRef) {
	if b.imageAdded[ref.Path()] {
		return
	}
	b.imageAdded[ref.Path()] = true

	entry := &ManifestEntry{
		ID:        id,
		Href:      path.Join(imagesDir, ref.Filename()),
		MediaType: ref.MediaType(),
		file:      ref.Path(),
	}
	b.addEntry(entry)

	if nativeImageTypes[ref.MediaType()] {
		return
	}
	if b.transcoder == nil {
		b.log.Warn("No fallback for unsupported image type",
			zap.String("image", ref.Filename()), zap.String("type", ref.MediaType()))
		return
	}

	fb, err := b.transcoder.TranscodeToJPEG(ref.Path())
	if err != nil {
		metrics.ImageFallbacks.WithLabelValues("failed").Inc()
		b.log.Warn("Fallback conversion failed", zap.String("image", ref.Filename()), zap.Error(err))
		return
	}
	metrics.ImageFallbacks.WithLabelValues("ok").Inc()

	stem := strings.TrimSuffix(ref.Filename(), path.Ext(ref.Filename()))
	fbName := b.uniqueName(stem + "_fallback" + filepath.Ext(fb))
	b.addEntry(&ManifestEntry{
		ID:        id + fallbackID,
		Href:      path.Join(imagesDir, fbName),
		MediaType: "image/jpeg",
		file:      fb,
	})
	entry.Fallback = id + fallbackID
	ref.FallbackID = entry.Fallback
}

func (b *EPubBuilder) addEntry(e *ManifestEntry) {
	b.manifest = append(b.manifest, e)
}

// Manifest returns the entries registered so far, excluding navigation files
// added on write.
func (b *EPubBuilder) Manifest() []ManifestEntry {
	out := make([]ManifestEntry, len(b.manifest))
	for i, e := range b.manifest {
		out[i] = *e
	}
	return out
}

func (b *EPubBuilder) Spine() []SpineItem {
	return append([]SpineItem(nil), b.spine...)
}

func (b *EPubBuilder) TOC() []TocGroup {
	out := make([]TocGroup, len(b.toc))
	for i, g := range b.toc {
		out[i] = TocGroup{Division: g.Division, Entries: append([]TocEntry(nil), g.Entries...)}
	}
	return out
}

// Validate checks the cross references of the book before it is written.
func (b *EPubBuilder) Validate() error {
	if b.book == nil {
		return fmt.Errorf("%w: missing title page", ErrInvalidContainer)
	}

	ids := make(map[string]bool, len(b.manifest))
	for _, e := range b.manifest {
		if ids[e.ID] {
			return fmt.Errorf("%w: duplicate manifest id %q", ErrInvalidContainer, e.ID)
		}
		ids[e.ID] = true
	}
	for _, e := range b.manifest {
		if e.Fallback != "" && !ids[e.Fallback] {
			return fmt.Errorf("%w: %q falls back to unknown id %q", ErrInvalidContainer, e.ID, e.Fallback)
		}
	}

	if len(b.spine) == 0 || b.spine[0].IDRef != introID {
		return fmt.Errorf("%w: spine must start with the title page", ErrInvalidContainer)
	}
	if len(b.spine)-1 != len(b.chapters) {
		return fmt.Errorf("%w: spine has %d chapters, %d were added", ErrInvalidContainer, len(b.spine)-1, len(b.chapters))
	}
	for i, id := range b.chapters {
		if b.spine[i+1].IDRef != id {
			return fmt.Errorf("%w: spine position %d is %q, expected %q", ErrInvalidContainer, i+1, b.spine[i+1].IDRef, id)
		}
	}
	return nil
}

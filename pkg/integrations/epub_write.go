package integrations

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
)

const (
	oebpsDir        = "OEBPS"
	mimetypeContent = "application/epub+zip"
)

const stylesheet = `body { margin: 0 2%; line-height: 1.6; }
h1 { font-size: 1.4em; text-align: center; margin: 1em 0; }
p { text-indent: 2em; margin: 0.3em 0; }
img { max-width: 100%; }
div.cover { text-align: center; }
div.cover img { max-height: 90vh; }
aside { font-size: 0.9em; }
`

// BookUUID derives a stable package identifier from the book id.
func BookUUID(bookID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.ciweimao.com/book/"+strconv.FormatInt(bookID, 10)))
}

// Write validates the book and stores it at outputPath.
func (b *EPubBuilder) Write(outputPath string) (err error) {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	b.log.Info("Generating EPUB", zap.String("output", outputPath), zap.Int("chapters", len(b.chapters)))

	f, err := os.CreateTemp(filepath.Dir(outputPath), ".epub-*")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	tmpName := f.Name()
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(f)
	if err := b.writeArchive(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}

	if b.opts.FixZip {
		defer os.Remove(tmpName)
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return os.Rename(tmpName, outputPath)
}

func (b *EPubBuilder) writeArchive(zw *zip.Writer) error {
	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := writeContainer(zw); err != nil {
		return fmt.Errorf("unable to write container: %w", err)
	}

	nav := &ManifestEntry{ID: navID, Href: "nav.xhtml", MediaType: "application/xhtml+xml",
		Properties: []string{"nav"}, doc: b.navDocument()}
	ncx := &ManifestEntry{ID: ncxID, Href: "toc.ncx", MediaType: "application/x-dtbncx+xml", doc: b.ncxDocument()}
	style := &ManifestEntry{ID: styleID, Href: "style.css", MediaType: "text/css", raw: []byte(stylesheet)}
	entries := append([]*ManifestEntry{nav, ncx, style}, b.manifest...)

	if err := writeXMLToZip(zw, path.Join(oebpsDir, "content.opf"), b.opfDocument(entries)); err != nil {
		return fmt.Errorf("unable to write OPF: %w", err)
	}

	for _, e := range entries {
		name := path.Join(oebpsDir, e.Href)
		var err error
		switch {
		case e.doc != nil:
			err = writeXMLToZip(zw, name, e.doc)
		case e.file != "":
			err = writeFileToZip(zw, name, e.file)
		default:
			err = writeDataToZip(zw, name, e.raw)
		}
		if err != nil {
			return fmt.Errorf("unable to write %s: %w", e.Href, err)
		}
	}
	return nil
}

func (b *EPubBuilder) opfDocument(entries []*ManifestEntry) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("unique-identifier", "BookId")
	pkg.CreateAttr("xml:lang", b.opts.Language)

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	id := metadata.CreateElement("dc:identifier")
	id.CreateAttr("id", "BookId")
	id.SetText("urn:uuid:" + BookUUID(b.book.ID).String())
	metadata.CreateElement("dc:title").SetText(b.book.Name)
	metadata.CreateElement("dc:language").SetText(b.opts.Language)
	if b.book.Author != "" {
		metadata.CreateElement("dc:creator").SetText(b.book.Author)
	}
	modified := metadata.CreateElement("meta")
	modified.CreateAttr("property", "dcterms:modified")
	modified.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	manifest := pkg.CreateElement("manifest")
	for _, e := range entries {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", e.ID)
		item.CreateAttr("href", e.Href)
		item.CreateAttr("media-type", e.MediaType)
		if len(e.Properties) > 0 {
			item.CreateAttr("properties", strings.Join(e.Properties, " "))
		}
		if e.Fallback != "" {
			item.CreateAttr("fallback", e.Fallback)
		}
		if e.MediaOverlay != "" {
			item.CreateAttr("media-overlay", e.MediaOverlay)
		}
		if e.Duration != "" {
			meta := metadata.CreateElement("meta")
			meta.CreateAttr("property", "media:duration")
			meta.CreateAttr("refines", "#"+e.ID)
			meta.SetText(e.Duration)
		}
		if e.ID == coverID {
			meta := metadata.CreateElement("meta")
			meta.CreateAttr("name", "cover")
			meta.CreateAttr("content", coverID)
		}
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", ncxID)
	for _, s := range b.spine {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", s.IDRef)
		if !s.Linear {
			itemref.CreateAttr("linear", "no")
		}
	}

	return doc
}

func (b *EPubBuilder) navDocument() *etree.Document {
	doc, body := newXHTML("目录", b.opts.Language)

	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateElement("h1").SetText("目录")

	ol := nav.CreateElement("ol")
	intro := ol.CreateElement("li").CreateElement("a")
	intro.CreateAttr("href", "intro.xhtml")
	intro.SetText(b.book.Name)

	for _, g := range b.toc {
		parent := ol
		if g.Division != "" {
			li := ol.CreateElement("li")
			a := li.CreateElement("a")
			a.CreateAttr("href", g.Entries[0].Href)
			a.SetText(g.Division)
			parent = li.CreateElement("ol")
		}
		for _, e := range g.Entries {
			a := parent.CreateElement("li").CreateElement("a")
			a.CreateAttr("href", e.Href)
			a.SetText(e.Title)
		}
	}
	return doc
}

func (b *EPubBuilder) ncxDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	for _, m := range [][2]string{
		{"dtb:uid", "urn:uuid:" + BookUUID(b.book.ID).String()},
		{"dtb:depth", "2"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", m[0])
		meta.CreateAttr("content", m[1])
	}
	ncx.CreateElement("docTitle").CreateElement("text").SetText(b.book.Name)

	navMap := ncx.CreateElement("navMap")
	playOrder := 0
	point := func(parent *etree.Element, label, src string) *etree.Element {
		playOrder++
		np := parent.CreateElement("navPoint")
		np.CreateAttr("id", fmt.Sprintf("navpoint-%d", playOrder))
		np.CreateAttr("playOrder", strconv.Itoa(playOrder))
		np.CreateElement("navLabel").CreateElement("text").SetText(label)
		np.CreateElement("content").CreateAttr("src", src)
		return np
	}

	point(navMap, b.book.Name, "intro.xhtml")
	for _, g := range b.toc {
		parent := navMap
		if g.Division != "" {
			parent = point(navMap, g.Division, g.Entries[0].Href)
		}
		for _, e := range g.Entries {
			point(parent, e.Title, e.Href)
		}
	}
	return doc
}

func newXHTML(title, lang string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective("DOCTYPE html")

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	html.CreateAttr("xml:lang", lang)
	html.CreateAttr("lang", lang)

	head := html.CreateElement("head")
	head.CreateElement("title").SetText(title)
	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", "style.css")

	return doc, html.CreateElement("body")
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeContainer(zw *zip.Writer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfile := container.CreateElement("rootfiles").CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return writeXMLToZip(zw, "META-INF/container.xml", doc)
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeDataToZip(zw, name, buf.Bytes())
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeFileToZip(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// copyZipWithoutDataDescriptors rewrites from into to. to is replaced only
// once the new archive is complete.
func copyZipWithoutDataDescriptors(from, to string) (err error) {
	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	out, err := os.CreateTemp(filepath.Dir(to), ".epub-fix-*")
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	tmpName := out.Name()
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			w.Close()
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to write target file (%s): %w", to, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("unable to write target file (%s): %w", to, err)
	}
	return os.Rename(tmpName, to)
}

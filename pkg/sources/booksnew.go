package sources

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const booksNewPrefix = "booksnew/"

// BooksNew is the reader's download directory, either extracted or zipped.
// Chapters live at {book_id}/{chapter_id}.txt.
type BooksNew struct {
	dir    string
	zr     *zip.ReadCloser
	files  map[string]*zip.File
	prefix string
}

func OpenBooksNew(p string) (*BooksNew, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open chapter store: %w", err)
	}
	if info.IsDir() {
		return &BooksNew{dir: p}, nil
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open chapter archive: %w", err)
	}
	b := &BooksNew{zr: zr, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
		if strings.HasPrefix(f.Name, booksNewPrefix) {
			b.prefix = booksNewPrefix
		}
	}
	return b, nil
}

func entryName(bookID, chapterID int64) string {
	return path.Join(strconv.FormatInt(bookID, 10), strconv.FormatInt(chapterID, 10)+".txt")
}

func (b *BooksNew) Has(bookID, chapterID int64) bool {
	name := entryName(bookID, chapterID)
	if b.zr != nil {
		_, ok := b.files[b.prefix+name]
		return ok
	}
	info, err := os.Stat(filepath.Join(b.dir, filepath.FromSlash(name)))
	return err == nil && info.Mode().IsRegular()
}

func (b *BooksNew) Content(ctx context.Context, bookID, chapterID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := entryName(bookID, chapterID)

	if b.zr == nil {
		raw, err := os.ReadFile(filepath.Join(b.dir, filepath.FromSlash(name)))
		if os.IsNotExist(err) {
			return "", fmt.Errorf("chapter %d of book %d: %w", chapterID, bookID, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read chapter %d: %w", chapterID, err)
		}
		return string(raw), nil
	}

	f, ok := b.files[b.prefix+name]
	if !ok {
		return "", fmt.Errorf("chapter %d of book %d: %w", chapterID, bookID, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read chapter %d: %w", chapterID, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read chapter %d: %w", chapterID, err)
	}
	return string(raw), nil
}

func (b *BooksNew) Close() error {
	if b.zr != nil {
		return b.zr.Close()
	}
	return nil
}

package integrations

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/lifegpc/cwm-export/pkg/data"
)

// TextWriter writes a book as one UTF-8 text file.
type TextWriter struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

func NewTextWriter(path string) (*TextWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create output file: %w", err)
	}
	return &TextWriter{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (t *TextWriter) WriteDivision(div *data.Division) error {
	fmt.Fprintf(t.w, "第%d卷 %s\n", div.Index, div.Name)
	if div.Description != "" {
		fmt.Fprintln(t.w, div.Description)
	}
	_, err := fmt.Fprintln(t.w)
	return err
}

func (t *TextWriter) WriteChapter(ch *data.Chapter, body string) error {
	_, err := fmt.Fprintf(t.w, "第%d章 %s\n%s\n\n", ch.Index, ch.Title, strings.TrimRight(body, "\r\n"))
	return err
}

func (t *TextWriter) WritePlaceholder(ch *data.Chapter) error {
	_, err := fmt.Fprintf(t.w, "第%d章 %s(未下载)\n\n", ch.Index, ch.Title)
	return err
}

// Close flushes and closes the file.
func (t *TextWriter) Close() error {
	return multierr.Append(t.w.Flush(), t.f.Close())
}

// Abort closes and removes a partially written file.
func (t *TextWriter) Abort() error {
	t.f.Close()
	return os.Remove(t.path)
}

// WriteChapterFile writes a single chapter: title line then content.
func WriteChapterFile(path, title, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(title+"\n"+body), 0644)
}

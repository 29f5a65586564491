package config

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/lifegpc/cwm-export/pkg/data"
	"github.com/lifegpc/cwm-export/pkg/utils"
)

// ExpandTemplate replaces every <key> in tmpl. Values are sanitized to stay
// within one path component.
func ExpandTemplate(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "<"+k+">", utils.SanitizeFilename(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func BookValues(book *data.Book, ext string) map[string]string {
	return map[string]string{
		"book_id":     strconv.FormatInt(book.ID, 10),
		"book_name":   book.Name,
		"author_name": book.Author,
		"book_slug":   slug.Make(book.Name),
		"ext":         ext,
	}
}

func ChapterValues(ch *data.Chapter, ext string) map[string]string {
	return map[string]string{
		"book_id":       strconv.FormatInt(ch.BookID, 10),
		"chapter_id":    strconv.FormatInt(ch.ID, 10),
		"chapter_title": ch.Title,
		"ext":           ext,
	}
}

// BookPath is the output file of a book export.
func (c *Config) BookPath(book *data.Book, ext string) string {
	return ExpandTemplate(c.ExportBookTemplate, BookValues(book, ext))
}

// ChapterPath is the output file of a single chapter export.
func (c *Config) ChapterPath(ch *data.Chapter, ext string) string {
	return ExpandTemplate(c.ExportChapterTemplate, ChapterValues(ch, ext))
}

package sources

import (
	"context"
	"errors"

	"github.com/lifegpc/cwm-export/pkg/data"
)

var ErrNotFound = errors.New("not found")

// Catalog is the reader's book and chapter index.
type Catalog interface {
	// ShelfBook looks a book up on the active shelf.
	ShelfBook(ctx context.Context, id int64) (*data.Book, error)
	// HistoryBook looks a book up in the read history.
	HistoryBook(ctx context.Context, id int64) (*data.Book, error)
	// BookIDs lists shelf books followed by history-only books.
	BookIDs(ctx context.Context) ([]int64, error)
	// Divisions of a book, ordered by index.
	Divisions(ctx context.Context, bookID int64) ([]*data.Division, error)
	// Chapters of a division, ordered by index.
	Chapters(ctx context.Context, divisionID int64) ([]*data.Chapter, error)
	Chapter(ctx context.Context, id int64) (*data.Chapter, error)
	Close() error
}

// ChapterStore holds the encrypted chapter bodies the reader downloaded.
type ChapterStore interface {
	Content(ctx context.Context, bookID, chapterID int64) (string, error)
	Has(bookID, chapterID int64) bool
	Close() error
}

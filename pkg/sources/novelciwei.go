package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lifegpc/cwm-export/pkg/data"
)

// NovelCiwei reads the catalog database of the reader app.
type NovelCiwei struct {
	db *sql.DB
}

// OpenNovelCiwei opens the database at path read-only.
func OpenNovelCiwei(path string) (*NovelCiwei, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return &NovelCiwei{db: db}, nil
}

func (n *NovelCiwei) Close() error {
	return n.db.Close()
}

// flexInt accepts numbers encoded either as JSON numbers or strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*f = flexInt(v)
	return nil
}

type bookInfo struct {
	BookID          flexInt `json:"book_id"`
	BookName        string  `json:"book_name"`
	AuthorName      string  `json:"author_name"`
	Cover           string  `json:"cover"`
	Uptime          string  `json:"uptime"`
	LastChapterInfo struct {
		ChapterTitle string `json:"chapter_title"`
	} `json:"last_chapter_info"`
}

func (b *bookInfo) toBook(id int64) *data.Book {
	if b.BookID != 0 {
		id = int64(b.BookID)
	}
	return &data.Book{
		ID:          id,
		Name:        b.BookName,
		Author:      b.AuthorName,
		CoverURL:    b.Cover,
		LastChapter: b.LastChapterInfo.ChapterTitle,
		Updated:     b.Uptime,
	}
}

func (n *NovelCiwei) ShelfBook(ctx context.Context, id int64) (*data.Book, error) {
	return n.book(ctx, "shelf_book_info", id)
}

func (n *NovelCiwei) HistoryBook(ctx context.Context, id int64) (*data.Book, error) {
	return n.book(ctx, "read_history_book_info", id)
}

func (n *NovelCiwei) book(ctx context.Context, table string, id int64) (*data.Book, error) {
	var raw string
	err := n.db.QueryRowContext(ctx,
		"SELECT book_info FROM "+table+" WHERE book_id = ?", strconv.FormatInt(id, 10),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d in %s: %w", id, table, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	var info bookInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("failed to decode book info of %d: %w", id, err)
	}
	return info.toBook(id), nil
}

func (n *NovelCiwei) BookIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, table := range []string{"shelf_book_info", "read_history_book_info"} {
		rows, err := n.db.QueryContext(ctx, "SELECT book_id FROM "+table+" ORDER BY rowid")
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s: %w", table, err)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}
	}
	return ids, nil
}

func (n *NovelCiwei) Divisions(ctx context.Context, bookID int64) ([]*data.Division, error) {
	rows, err := n.db.QueryContext(ctx, `
		SELECT division_id, book_id, division_name, division_index, description
		FROM division1 WHERE book_id = ?
		ORDER BY CAST(division_index AS INTEGER)`, strconv.FormatInt(bookID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to query divisions: %w", err)
	}
	defer rows.Close()

	var divs []*data.Division
	for rows.Next() {
		var (
			d    data.Division
			desc sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.BookID, &d.Name, &d.Index, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan division: %w", err)
		}
		d.Description = desc.String
		divs = append(divs, &d)
	}
	return divs, rows.Err()
}

const chapterColumns = "chapter_id, book_id, division_id, chapter_index, chapter_title"

func scanChapter(s interface{ Scan(...any) error }) (*data.Chapter, error) {
	var c data.Chapter
	if err := s.Scan(&c.ID, &c.BookID, &c.DivisionID, &c.Index, &c.Title); err != nil {
		return nil, err
	}
	return &c, nil
}

func (n *NovelCiwei) Chapters(ctx context.Context, divisionID int64) ([]*data.Chapter, error) {
	rows, err := n.db.QueryContext(ctx,
		"SELECT "+chapterColumns+" FROM catalog1 WHERE division_id = ? ORDER BY CAST(chapter_index AS INTEGER)",
		strconv.FormatInt(divisionID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*data.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func (n *NovelCiwei) Chapter(ctx context.Context, id int64) (*data.Chapter, error) {
	c, err := scanChapter(n.db.QueryRowContext(ctx,
		"SELECT "+chapterColumns+" FROM catalog1 WHERE chapter_id = ?", strconv.FormatInt(id, 10)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chapter %d: %w", id, err)
	}
	return c, nil
}

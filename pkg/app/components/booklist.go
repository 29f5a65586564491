package components

import (
	"sort"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/maruel/natural"

	"github.com/lifegpc/cwm-export/pkg/app/styles"
	"github.com/lifegpc/cwm-export/pkg/services"
)

// SortBooks orders entries by book name in natural order, then by id.
func SortBooks(entries []services.BookEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Book, entries[j].Book
		if a.Name != b.Name {
			return natural.Less(a.Name, b.Name)
		}
		return a.ID < b.ID
	})
}

// BookTable renders entries as a static table.
func BookTable(entries []services.BookEntry) string {
	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Name", Width: 30},
		{Title: "Author", Width: 16},
		{Title: "Shelf", Width: 6},
		{Title: "Latest chapter", Width: 30},
	}

	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		shelf := ""
		if e.OnShelf {
			shelf = "yes"
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(e.Book.ID, 10),
			truncateString(e.Book.Name, 28),
			truncateString(e.Book.Author, 14),
			shelf,
			truncateString(e.Book.LastChapter, 28),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+2), // header and its border
	)
	t.SetStyles(styles.TableStyles())
	return t.View()
}

// truncateString cuts s to at most width terminal cells, ending with "...".
func truncateString(s string, width int) string {
	return ansi.Truncate(s, width, "...")
}

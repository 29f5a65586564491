package components

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/lifegpc/cwm-export/pkg/app/styles"
	"github.com/lifegpc/cwm-export/pkg/services"
)

// ProgressTracker keeps the latest progress of every book being exported.
type ProgressTracker struct {
	books map[int64]*services.ExportProgress
	width int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		books: make(map[int64]*services.ExportProgress),
		width: width,
	}
}

func (p *ProgressTracker) Update(progress services.ExportProgress) {
	// an error ends the book's export
	if progress.Status == services.StatusComplete || progress.Status == services.StatusError {
		delete(p.books, progress.BookID)
		return
	}
	prog := progress // Copy
	p.books[progress.BookID] = &prog
}

// View renders one block per active book, ordered by book id.
func (p *ProgressTracker) View() string {
	if len(p.books) == 0 {
		return ""
	}

	ids := make([]int64, 0, len(p.books))
	for id := range p.books {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Active Exports"))
	b.WriteString("\n\n")
	for _, id := range ids {
		progress := p.books[id]
		b.WriteString(progress.BookName)
		b.WriteString("\n")
		if progress.Total > 0 {
			b.WriteString(renderProgressBar(progress.Current, progress.Total, p.width-4))
			b.WriteString("\n")
		}
		b.WriteString(ProgressLine(*progress))
		b.WriteString("\n\n")
	}
	return b.String()
}

// ProgressLine renders one progress event on a single line.
func ProgressLine(progress services.ExportProgress) string {
	var b strings.Builder
	if progress.Total > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", progress.Current, progress.Total)
	}
	if progress.Title != "" {
		b.WriteString(progress.Title)
	} else {
		b.WriteString(progress.BookName)
	}
	b.WriteString(" ")
	b.WriteString(styles.StatusStyle(progress.Status).Render(progress.Status))
	if progress.Error != nil {
		b.WriteString(" ")
		b.WriteString(styles.StatusError.Render(progress.Error.Error()))
	}
	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// LiveProgress redraws the active books in place on a terminal. Finished and
// failed chapters are printed above the block and stay on screen.
type LiveProgress struct {
	tracker *ProgressTracker
	out     io.Writer
	lines   int
}

func NewLiveProgress(out io.Writer, width int) *LiveProgress {
	return &LiveProgress{tracker: NewProgressTracker(width), out: out}
}

func (l *LiveProgress) Update(progress services.ExportProgress) {
	l.tracker.Update(progress)

	var b strings.Builder
	if l.lines > 0 {
		b.WriteString(ansi.CursorUp(l.lines))
		b.WriteString("\r")
		b.WriteString(ansi.EraseScreenBelow)
	}
	if progress.Status == services.StatusComplete || progress.Error != nil {
		b.WriteString(ProgressLine(progress))
		b.WriteString("\n")
	}
	view := l.tracker.View()
	b.WriteString(view)
	l.lines = strings.Count(view, "\n")

	io.WriteString(l.out, b.String())
}

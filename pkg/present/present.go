// Package present renders pipeline results for the terminal: row tables,
// scored search hits, markdown replies and usage counters. Rendering is
// deterministic for a given Mode, so command output can be asserted exactly.
package present

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/stovetop/galley/pkg/chat"
	"github.com/stovetop/galley/pkg/tabular"
	"github.com/stovetop/galley/pkg/vector"
)

// Mode selects between styled and plain rendering.
type Mode int

const (
	// ModePlain renders unstyled text, safe for pipes and test assertions.
	ModePlain Mode = iota
	// ModeColor renders with borders, styles and markdown formatting.
	ModeColor
)

const defaultWidth = 80

// Detect picks the rendering mode for the current stdout: plain unless
// stdout is a terminal that supports at least basic color.
func Detect() Mode {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ModePlain
	}
	if termenv.ColorProfile() == termenv.Ascii {
		return ModePlain
	}
	return ModeColor
}

// Renderer renders results for one output mode.
type Renderer struct {
	mode  Mode
	width int
}

// New builds a renderer for the given mode, sized to the current terminal
// when one is attached.
func New(mode Mode) *Renderer {
	width := defaultWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return &Renderer{mode: mode, width: width}
}

// Table renders rows as a table: bordered and styled in color mode, aligned
// columns with a two-space gutter otherwise. Columns and records keep their
// input order.
func (r *Renderer) Table(rows *tabular.Rows) string {
	if r.mode == ModePlain {
		return plainTable(rows)
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(rows.Columns...).
		Rows(rows.Records...)

	return t.String() + "\n"
}

// Hits renders scored search results, one row per hit: rank, record ID,
// score to four decimals, then the returned fields in the given order.
func (r *Renderer) Hits(hits []vector.Hit, fields []string) string {
	if len(hits) == 0 {
		return "no results\n"
	}

	rows := tabular.New(append([]string{"#", "id", "score"}, fields...)...)
	for i, hit := range hits {
		rec := make([]string, 0, 3+len(fields))
		rec = append(rec, strconv.Itoa(i+1), hit.ID, strconv.FormatFloat(hit.Score, 'f', 4, 64))
		for _, field := range fields {
			rec = append(rec, hit.Fields[field])
		}
		rows.Records = append(rows.Records, rec)
	}

	return r.Table(rows)
}

// Markdown renders markdown text for the terminal. Plain mode and any
// rendering failure fall back to the raw text.
func (r *Renderer) Markdown(text string) string {
	if r.mode == ModePlain {
		return text
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return text
	}

	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}

// Usage formats the token counters of one completion call as a single line.
func (r *Renderer) Usage(u chat.Usage) string {
	line := fmt.Sprintf("tokens: %d prompt + %d completion = %d total",
		u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if r.mode == ModePlain {
		return line + "\n"
	}
	return lipgloss.NewStyle().Faint(true).Render(line) + "\n"
}

func plainTable(rows *tabular.Rows) string {
	widths := make([]int, len(rows.Columns))
	for i, col := range rows.Columns {
		widths[i] = ansi.StringWidth(col)
	}
	for _, rec := range rows.Records {
		for i, cell := range rec {
			if w := ansi.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			// Pad every column except the last so lines carry no
			// trailing spaces.
			if i < len(cells)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-ansi.StringWidth(cell)))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(rows.Columns)
	for _, rec := range rows.Records {
		writeRow(rec)
	}
	return b.String()
}

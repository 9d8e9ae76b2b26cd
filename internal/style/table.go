package style

import (
	"regexp"
	"strings"
)

// Align controls horizontal cell alignment within a column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Align
}

// Table renders rows of fixed-width columns under a bold header.
// Cells may carry ANSI styling; width math uses the visible text.
type Table struct {
	cols      []Column
	rows      [][]string
	indent    string
	headerSep bool
}

// NewTable creates a table with the given columns.
func NewTable(cols ...Column) *Table {
	return &Table{cols: cols, headerSep: true}
}

// SetIndent sets the prefix prepended to every rendered line.
func (t *Table) SetIndent(indent string) {
	t.indent = indent
}

// SetHeaderSeparator toggles the rule drawn under the header row.
func (t *Table) SetHeaderSeparator(on bool) {
	t.headerSep = on
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.cols))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Render returns the table as a string, one line per row, each ending in
// a newline. A table with no columns renders as the empty string.
func (t *Table) Render() string {
	if len(t.cols) == 0 {
		return ""
	}
	var b strings.Builder

	cells := make([]string, len(t.cols))
	for i, c := range t.cols {
		cells[i] = t.pad(c.Name, Bold.Render(c.Name), c.Width, c.Align)
	}
	b.WriteString(t.indent + strings.Join(cells, "  ") + "\n")

	if t.headerSep {
		for i, c := range t.cols {
			cells[i] = Dim.Render(strings.Repeat("─", c.Width))
		}
		b.WriteString(t.indent + strings.Join(cells, "  ") + "\n")
	}

	for _, row := range t.rows {
		for i, c := range t.cols {
			cells[i] = t.pad(stripAnsi(row[i]), row[i], c.Width, c.Align)
		}
		b.WriteString(t.indent + strings.Join(cells, "  ") + "\n")
	}
	return b.String()
}

// pad aligns styled within width, using raw for visible-length math.
// Values longer than width are truncated with an ellipsis and lose
// their styling.
func (t *Table) pad(raw, styled string, width int, align Align) string {
	if len(raw) > width {
		if width <= 3 {
			return raw[:width]
		}
		return raw[:width-3] + "..."
	}
	gap := width - len(raw)
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

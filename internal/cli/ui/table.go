package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Table renders rows of cells in aligned columns under a colored header
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, headers []string, noColor bool) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table to the writer, nothing when it has no headers
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := t.color(color.Bold, color.FgCyan)
	for i, header := range t.headers {
		bold.Fprint(t.writer, cell(header, widths[i], i == len(t.headers)-1))
	}
	fmt.Fprintln(t.writer)

	gray := t.color(color.FgHiBlack)
	separators := make([]string, len(widths))
	for i, width := range widths {
		separators[i] = strings.Repeat("─", width)
	}
	gray.Fprintln(t.writer, strings.Join(separators, "  "))

	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			fmt.Fprint(t.writer, cell(row[i], widths[i], i == len(row)-1 || i == len(widths)-1))
		}
		fmt.Fprintln(t.writer)
	}
}

func (t *Table) color(attributes ...color.Attribute) *color.Color {
	c := color.New(attributes...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

// cell pads s to width, the last cell of a row left unpadded
func cell(s string, width int, last bool) string {
	if last {
		return s
	}
	if len(s) < width {
		s += strings.Repeat(" ", width-len(s))
	}
	return s + "  "
}

// EntityTable renders entities of def with one column per selected column
// and loaded foreign key, headed by captions where defined
func EntityTable(w io.Writer, def *schema.EntityDefinition, entities []entity.Entity, noColor bool) {
	var attributes []schema.Attribute
	var headers []string
	for _, column := range def.SelectColumns() {
		attributes = append(attributes, column.Attribute())
		headers = append(headers, header(column))
	}
	for _, fk := range def.ForeignKeys() {
		attributes = append(attributes, fk.ForeignKey())
		headers = append(headers, header(fk))
	}

	table := NewTable(w, headers, noColor)
	for _, e := range entities {
		cells := make([]string, len(attributes))
		for i, attribute := range attributes {
			cells[i] = FormatValue(e.Get(attribute))
		}
		table.AddRow(cells...)
	}
	table.Render()
}

func header(def schema.AttributeDefinition) string {
	if caption := def.Caption(); caption != "" {
		return caption
	}
	return def.Attribute().Name()
}

// FormatValue formats an entity value for display, referenced entities by
// their string representation
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case entity.Entity:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// KeyValueTable renders aligned key: value lines
type KeyValueTable struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair to the table
func (t *KeyValueTable) AddRow(key, value string) {
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

// Render renders the key-value table
func (t *KeyValueTable) Render() {
	width := 0
	for _, key := range t.keys {
		width = max(width, len(key)+1)
	}
	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for i, key := range t.keys {
		label := key + ":"
		cyan.Fprint(t.writer, label+strings.Repeat(" ", width-len(label)))
		fmt.Fprintf(t.writer, " %s\n", t.values[i])
	}
}

// Header renders a styled title followed by a divider of the same width
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", len(title)))
}

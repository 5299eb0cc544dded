package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that can be shown as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w)
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// Pairs is a two column key/value listing, such as an echo test result.
type Pairs [][2]string

// Headers implements TableRenderer.
func (p Pairs) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements TableRenderer.
func (p Pairs) Rows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, kv := range p {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	return rows
}

// PrintPairs writes p without a header, separated by colons.
func PrintPairs(w io.Writer, p Pairs) error {
	table := newTable(w)
	table.SetColumnSeparator(":")
	table.AppendBulk(p.Rows())
	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

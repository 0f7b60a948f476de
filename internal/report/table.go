package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/wasmsim/internal/dynamo"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(18)
)

// Table collects rows and renders them as a bordered table on Close.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
}

func NewTable(out io.Writer) *Table {
	return &Table{out: out}
}

func (t *Table) Header(names []string) error {
	t.headers = append([]string{"t"}, names...)
	return nil
}

func (t *Table) Row(at float64, values []dynamo.Value) error {
	row := make([]string, 0, len(values)+1)
	row = append(row, strconv.FormatFloat(at, 'f', 4, 64))
	for _, v := range values {
		if r, ok := v.Real(); ok {
			row = append(row, strconv.FormatFloat(r, 'f', 6, 64))
			continue
		}
		row = append(row, v.String())
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *Table) Close() error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.headers...).
		Rows(t.rows...)
	_, err := fmt.Fprintln(t.out, tbl.Render())
	return err
}

// Describe renders the model identity, capabilities and variables.
func Describe(desc *dynamo.ModelDescription) string {
	var b strings.Builder
	m := desc.Model

	b.WriteString(titleStyle.Render("Model"))
	b.WriteString("\n")
	for _, kv := range [][2]string{
		{"ID", m.ID},
		{"Name", m.Name},
		{"Description", m.Description},
		{"Generating Tool", m.GenerationTool},
		{"Variable step", yesNo(m.Capabilities.CanHandleVariableStepSize)},
		{"Interpolate inputs", yesNo(m.Capabilities.CanInterpolateInputs)},
		{"Reset step", yesNo(m.Capabilities.CanResetStep)},
	} {
		b.WriteString(labelStyle.Render(kv[0]))
		b.WriteString(kv[1])
		b.WriteString("\n")
	}

	rows := make([][]string, 0, len(desc.Variables))
	for _, v := range desc.Variables {
		def := ""
		if v.HasDefault {
			def = v.Default.String()
		}
		rows = append(rows, []string{strconv.Itoa(int(v.ID)), v.Name, v.Kind.String(), v.Causality.String(), def})
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("id", "name", "kind", "causality", "default").
		Rows(rows...)

	b.WriteString("\n")
	b.WriteString(tbl.Render())
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

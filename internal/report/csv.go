package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// CSV writes a "t,name..." header followed by one line per row. Booleans are
// written as 1 or 0.
type CSV struct {
	w *csv.Writer
}

func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

func (c *CSV) Header(names []string) error {
	return c.write(append([]string{"t"}, names...))
}

func (c *CSV) Row(t float64, values []dynamo.Value) error {
	record := make([]string, 0, len(values)+1)
	record = append(record, strconv.FormatFloat(t, 'g', -1, 64))
	for _, v := range values {
		record = append(record, v.String())
	}
	return c.write(record)
}

func (c *CSV) write(record []string) error {
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) Close() error {
	c.w.Flush()
	return c.w.Error()
}

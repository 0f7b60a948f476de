package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"
)

type ExportData struct {
	RunMetadata
	Names  []string                     `json:"names"`
	Times  []float64                    `json:"times"`
	Values map[string][]json.RawMessage `json:"values"`
}

// ExportJSON writes the metadata and every column. Finite numeric cells are
// emitted as numbers and everything else as strings.
func ExportJSON(w io.Writer, meta *RunMetadata, series *Series) error {
	data := ExportData{
		RunMetadata: *meta,
		Names:       series.Names,
		Times:       series.Times,
		Values:      make(map[string][]json.RawMessage, len(series.Names)),
	}
	for i, name := range series.Names {
		col := make([]json.RawMessage, len(series.Values))
		for j, row := range series.Values {
			col[j] = cell(row[i])
		}
		data.Values[name] = col
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func cell(s string) json.RawMessage {
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return json.RawMessage(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b, _ := json.Marshal(s)
	return b
}

// WriteSeries writes rows in the "t,name..." format.
func WriteSeries(w io.Writer, series *Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"t"}, series.Names...)); err != nil {
		return err
	}
	for i, t := range series.Times {
		record := append([]string{strconv.FormatFloat(t, 'g', -1, 64)}, series.Values[i]...)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV copies the stored rows of a run.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	series, err := s.LoadSeries(runID)
	if err != nil {
		return err
	}
	return WriteSeries(w, series)
}

package export

import (
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/wasmsim/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wellFormed(t *testing.T, doc string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.Fatalf("invalid svg: %v\n%s", err, doc)
		}
	}
}

func TestTimeSeriesSVG(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	doc, err := TimeSeriesSVG(times, []Line{
		{Name: "theta<1>", Values: []float64{-1, 0, 1, 0}},
		{Name: "omega", Values: []float64{1, math.NaN(), 2, 3}},
	}, 400, 200)
	require.NoError(t, err)
	wellFormed(t, doc)

	assert.Equal(t, 2, strings.Count(doc, "<path"))
	assert.Contains(t, doc, "theta&lt;1&gt;")
	assert.Contains(t, doc, "stroke-dasharray", "zero line expected when values straddle zero")
	omega := doc[strings.LastIndex(doc, "<path"):]
	assert.Equal(t, 2, strings.Count(omega[:strings.Index(omega, "/>")], "M"), "NaN should split the line")
}

func TestTimeSeriesSVGErrors(t *testing.T) {
	_, err := TimeSeriesSVG([]float64{0, 1}, []Line{{Name: "x", Values: []float64{1}}}, 10, 10)
	assert.Error(t, err)

	_, err = TimeSeriesSVG([]float64{0}, []Line{{Name: "x", Values: []float64{math.NaN()}}}, 10, 10)
	assert.ErrorIs(t, err, ErrNothingToPlot)
}

func TestPortraitSVG(t *testing.T) {
	p, err := analysis.NewPhasePortrait("theta", []float64{0, 1, 0}, "omega", []float64{1, 0, -1})
	require.NoError(t, err)
	doc, err := PortraitSVG(p, 300, 300, "#00ff00")
	require.NoError(t, err)
	wellFormed(t, doc)
	assert.Contains(t, doc, "omega vs theta")
	assert.Contains(t, doc, `stroke="#00ff00"`)

	_, err = PortraitSVG(&analysis.PhasePortrait{}, 10, 10, "#fff")
	assert.ErrorIs(t, err, ErrNothingToPlot)
}

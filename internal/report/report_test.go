package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var row = []dynamo.Value{
	dynamo.RealValue(0.25),
	dynamo.IntValue(3),
	dynamo.BoolValue(true),
	dynamo.TextValue("ok"),
}

var names = []string{"x", "n", "on", "label"}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSV(&buf)
	require.NoError(t, w.Header(names))
	require.NoError(t, w.Row(0, row))
	require.NoError(t, w.Row(0.1, row))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"t,x,n,on,label",
		"0,0.25,3,1,ok",
		"0.1,0.25,3,1,ok",
	}, lines)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Header(names))
	require.NoError(t, r.Row(0, row))
	require.NoError(t, r.Row(1, row))
	assert.Equal(t, 2, r.Len())

	col, err := r.Column("on")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, col)

	col, err = r.Column("label")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(col[0]))

	_, err = r.Column("missing")
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Replay(NewCSV(&buf)))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestRecorderCopiesRows(t *testing.T) {
	r := NewRecorder()
	values := []dynamo.Value{dynamo.RealValue(1)}
	require.NoError(t, r.Header([]string{"x"}))
	require.NoError(t, r.Row(0, values))
	values[0] = dynamo.RealValue(2)
	assert.Equal(t, dynamo.RealValue(1), r.Rows[0][0])
}

type failing struct{ err error }

func (f failing) Header([]string) error             { return f.err }
func (f failing) Row(float64, []dynamo.Value) error { return f.err }

type closer struct {
	*Recorder
	closed int
}

func (c *closer) Close() error {
	c.closed++
	return nil
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	rec := NewRecorder()
	c := &closer{Recorder: NewRecorder()}
	m := Multi{rec, failing{err: boom}, c}

	assert.ErrorIs(t, m.Header(names), boom)
	assert.ErrorIs(t, m.Row(0, row), boom)
	assert.Equal(t, 1, rec.Len(), "a failing member must not starve the others")
	assert.Equal(t, 1, c.Len())

	require.NoError(t, m.Close())
	assert.Equal(t, 1, c.closed)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf)
	require.NoError(t, tbl.Header(names))
	require.NoError(t, tbl.Row(0.5, row))
	require.NoError(t, tbl.Close())

	out := buf.String()
	for _, want := range []string{"label", "0.5000", "0.250000", "ok"} {
		assert.Contains(t, out, want)
	}
}

func TestDescribe(t *testing.T) {
	desc := &dynamo.ModelDescription{
		Model: dynamo.ModelInfo{
			ID:             "m-1",
			Name:           "gain",
			GenerationTool: "hand",
			Capabilities:   dynamo.Capabilities{CanHandleVariableStepSize: true},
		},
		Variables: []dynamo.Variable{
			{ID: 1, Name: "k", Kind: dynamo.KindReal, Causality: dynamo.CausalityParameter, HasDefault: true, Default: dynamo.RealValue(2)},
			{ID: 2, Name: "y", Kind: dynamo.KindReal, Causality: dynamo.CausalityOutput},
		},
	}
	out := Describe(desc)
	for _, want := range []string{"gain", "m-1", "hand", "yes", "parameter", "output", "k", "2"} {
		assert.Contains(t, out, want)
	}
}

type token struct {
	err     error
	timeout bool
}

func (t token) Wait() bool                     { return true }
func (t token) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t token) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t token) Error() error                   { return t.err }

type publisher struct {
	topics   []string
	payloads [][]byte
	tok      token
}

func (p *publisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	return p.tok
}

func TestMQTTPublishesSamples(t *testing.T) {
	pub := &publisher{}
	m := NewMQTT(pub, "sim/rows", "gain", 1, zerolog.Nop())
	require.NoError(t, m.Header(names))
	require.NoError(t, m.Row(0.5, row))

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "sim/rows", pub.topics[0])

	var got Sample
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "gain", got.Model)
	assert.Equal(t, 0.5, got.Time)
	assert.Equal(t, 0.25, got.Values["x"])
	assert.Equal(t, float64(3), got.Values["n"])
	assert.Equal(t, true, got.Values["on"])
	assert.Equal(t, "ok", got.Values["label"])
	assert.NoError(t, m.Close())
}

func TestMQTTFailures(t *testing.T) {
	broker := errors.New("not authorized")
	m := NewMQTT(&publisher{tok: token{err: broker}}, "t", "m", 0, zerolog.Nop())
	require.NoError(t, m.Header(names))
	assert.ErrorIs(t, m.Row(0, row), broker)

	m = NewMQTT(&publisher{tok: token{timeout: true}}, "t", "m", 0, zerolog.Nop())
	require.NoError(t, m.Header(names))
	assert.ErrorContains(t, m.Row(0, row), "timed out")

	assert.Error(t, m.Row(0, row[:1]))
}

type exec struct {
	queries []string
	args    [][]any
	err     error
}

func (e *exec) Exec(_ context.Context, query string, args ...any) error {
	e.queries = append(e.queries, query)
	e.args = append(e.args, args)
	return e.err
}

func TestClickHouseInsertsLongFormat(t *testing.T) {
	conn := &exec{}
	c := NewClickHouse(context.Background(), conn, "samples", "run-1", "gain", zerolog.Nop())
	require.NoError(t, c.CreateTable())
	assert.Contains(t, conn.queries[0], "CREATE TABLE IF NOT EXISTS samples")

	require.NoError(t, c.Header(names))
	require.NoError(t, c.Row(0.5, row))
	require.Len(t, conn.args, 1+len(row))

	assert.Equal(t, []any{"run-1", "gain", 0.5, "x", "real", 0.25, ""}, conn.args[1])
	assert.Equal(t, []any{"run-1", "gain", 0.5, "on", "bool", 1.0, ""}, conn.args[3])
	assert.Equal(t, []any{"run-1", "gain", 0.5, "label", "text", 0.0, "ok"}, conn.args[4])
	assert.NoError(t, c.Close())
}

func TestClickHouseInsertFailure(t *testing.T) {
	down := errors.New("connection refused")
	c := NewClickHouse(context.Background(), &exec{err: down}, "samples", "r", "m", zerolog.Nop())
	require.NoError(t, c.Header(names))
	assert.ErrorIs(t, c.Row(0, row), down)
	assert.ErrorIs(t, c.CreateTable(), down)
}

package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// Execer is the part of a ClickHouse connection the reporter needs.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ClickHouse inserts one row per variable per reported time, in long format.
type ClickHouse struct {
	conn   Execer
	ctx    context.Context
	table  string
	runID  string
	model  string
	names  []string
	close  func() error
	logger zerolog.Logger
}

func NewClickHouse(ctx context.Context, conn Execer, table, runID, model string, logger zerolog.Logger) *ClickHouse {
	return &ClickHouse{
		conn:   conn,
		ctx:    ctx,
		table:  table,
		runID:  runID,
		model:  model,
		logger: logger,
	}
}

// DialClickHouse opens a connection, verifies it and creates the samples
// table when missing.
func DialClickHouse(ctx context.Context, cfg ClickHouseConfig, runID, model string, logger zerolog.Logger) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse %s: %w", cfg.Addr, err)
	}

	r := NewClickHouse(ctx, conn, cfg.Table, runID, model, logger)
	r.close = conn.Close
	if err := r.CreateTable(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info().Str("addr", cfg.Addr).Str("table", cfg.Table).Msg("connected to clickhouse")
	return r, nil
}

func (c *ClickHouse) CreateTable() error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id String,
		model String,
		t Float64,
		name String,
		kind LowCardinality(String),
		value Float64,
		text String,
		inserted_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	ORDER BY (run_id, name, t)`, c.table)
	if err := c.conn.Exec(c.ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", c.table, err)
	}
	return nil
}

func (c *ClickHouse) Header(names []string) error {
	c.names = append([]string(nil), names...)
	return nil
}

func (c *ClickHouse) Row(t float64, values []dynamo.Value) error {
	if len(values) != len(c.names) {
		return fmt.Errorf("row has %d values for %d columns", len(values), len(c.names))
	}
	query := fmt.Sprintf("INSERT INTO %s (run_id, model, t, name, kind, value, text) VALUES (?, ?, ?, ?, ?, ?, ?)", c.table)
	for i, v := range values {
		num := v.Float()
		if math.IsNaN(num) {
			num = 0
		}
		text, _ := v.Text()
		if err := c.conn.Exec(c.ctx, query, c.runID, c.model, t, c.names[i], v.Kind().String(), num, text); err != nil {
			return fmt.Errorf("insert %s at t=%g: %w", c.names[i], t, err)
		}
	}
	return nil
}

func (c *ClickHouse) Close() error {
	if c.close == nil {
		return nil
	}
	err := c.close()
	c.close = nil
	return err
}

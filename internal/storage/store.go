// Package storage keeps finished runs on disk: one directory per run holding
// metadata.json and values.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/wasmsim/internal/report"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	valuesFile   = "values.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored run.
type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	ModelID   string             `json:"model_id,omitempty"`
	Artifact  string             `json:"artifact,omitempty"`
	Checksum  string             `json:"checksum,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	StartTime float64            `json:"start_time"`
	StopTime  float64            `json:"stop_time"`
	Steps     int                `json:"steps"`
	StepMode  string             `json:"step_mode"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Rows      int                `json:"rows"`
	Retries   int                `json:"retries"`
	Warnings  int                `json:"warnings"`
	EndTime   float64            `json:"end_time"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Save writes the metadata and the recorded rows. ID and Timestamp are
// assigned here.
func (s *Store) Save(meta RunMetadata, rec *report.Recorder) (string, error) {
	now := s.now()
	name := unsafeName.ReplaceAllString(meta.Model, "_")
	if name == "" {
		name = "run"
	}
	meta.ID = fmt.Sprintf("%s_%d", name, now.UnixNano())
	meta.Timestamp = now
	meta.Rows = rec.Len()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, valuesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := report.NewCSV(csvFile)
	if err := rec.Replay(w); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, newest first. Unreadable entries are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.Base(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

// Series is the stored rows of a run in columnar form. Values keeps the
// text of every cell; Column parses a numeric view.
type Series struct {
	Names  []string
	Times  []float64
	Values [][]string
}

func (s *Series) Len() int { return len(s.Times) }

func (s *Series) index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Column returns the named column as floats. Cells that do not parse become NaN.
func (s *Series) Column(name string) ([]float64, error) {
	idx := s.index(name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column: %s", name)
	}
	col := make([]float64, len(s.Values))
	for i, row := range s.Values {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			v = math.NaN()
		}
		col[i] = v
	}
	return col, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.Base(runID), valuesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()
	return ReadSeries(file)
}

// ReadSeries parses the "t,name..." row format.
func ReadSeries(r io.Reader) (*Series, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Series{}, nil
	}
	if records[0][0] != "t" {
		return nil, fmt.Errorf("unexpected header %q", records[0])
	}

	series := &Series{
		Names:  records[0][1:],
		Times:  make([]float64, 0, len(records)-1),
		Values: make([][]string, 0, len(records)-1),
	}
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time %q", i+1, record[0])
		}
		series.Times = append(series.Times, t)
		series.Values = append(series.Values, record[1:])
	}
	return series, nil
}

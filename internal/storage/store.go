package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

var bodiesHeader = []string{"name", "mass", "radius", "x", "y", "vx", "vy", "r", "g", "b"}

// Store keeps the final snapshot of finished runs, one directory per run.
type Store struct {
	baseDir string
}

// New returns a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory.
func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata is the metadata.json of a stored run.
type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Session    string             `json:"session"`
	Timestamp  time.Time          `json:"timestamp"`
	IntervalMs int64              `json:"interval_ms"`
	Step       float64            `json:"step_seconds"`
	Ticks      uint64             `json:"ticks"`
	Time       float64            `json:"time"`
	Bodies     int                `json:"bodies"`
	Valid      bool               `json:"valid"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes snap as the final state of a run and returns the run id.
func (s *Store) Save(scenario string, interval time.Duration, snap dynamo.Snapshot, metrics map[string]float64) (string, error) {
	runID := fmt.Sprintf("%s_%s", scenario, shortID(snap.Session))
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scenario:   scenario,
		Session:    snap.Session,
		Timestamp:  time.Now(),
		IntervalMs: interval.Milliseconds(),
		Step:       snap.Step,
		Ticks:      snap.Tick,
		Time:       snap.Time,
		Bodies:     len(snap.Bodies),
		Valid:      snap.Err() == nil,
		Metrics:    make(map[string]float64, len(metrics)),
	}
	// json cannot carry NaN or Inf.
	for k, v := range metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			meta.Metrics[k] = v
		}
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "bodies.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(bodiesHeader); err != nil {
		return "", err
	}
	for _, b := range snap.Bodies {
		row := []string{b.Name}
		for _, v := range []float64{b.Mass, b.Radius, b.Pos.X, b.Pos.Y, b.Vel.X, b.Vel.Y, b.Color[0], b.Color[1], b.Color[2]} {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns stored runs, newest first.
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

// Load reads the metadata of a run.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSnapshot rebuilds the stored final snapshot of a run.
func (s *Store) LoadSnapshot(runID string) (dynamo.Snapshot, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return dynamo.Snapshot{}, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "bodies.csv"))
	if err != nil {
		return dynamo.Snapshot{}, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(bodiesHeader)
	records, err := r.ReadAll()
	if err != nil {
		return dynamo.Snapshot{}, fmt.Errorf("%s: %w", runID, err)
	}

	snap := dynamo.Snapshot{
		Session: meta.Session,
		Tick:    meta.Ticks,
		Time:    meta.Time,
		Step:    meta.Step,
		Bodies:  make([]dynamo.Body, 0, len(records)),
	}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		vals := make([]float64, len(rec)-1)
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return dynamo.Snapshot{}, fmt.Errorf("%s: row %d: %w", runID, i, err)
			}
			vals[j] = v
		}
		snap.Bodies = append(snap.Bodies, dynamo.Body{
			Name:   rec[0],
			Mass:   vals[0],
			Radius: vals[1],
			Pos:    r2.Vec{X: vals[2], Y: vals[3]},
			Vel:    r2.Vec{X: vals[4], Y: vals[5]},
			Color:  dynamo.Color{vals[6], vals[7], vals[8]},
		})
	}

	return snap, nil
}

func shortID(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	if session == "" {
		return strconv.FormatInt(time.Now().Unix(), 10)
	}
	return session
}

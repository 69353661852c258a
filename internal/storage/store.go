package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/san-kum/dampsim/internal/dynamo"
	"github.com/san-kum/dampsim/internal/sim"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

var stateColumns = []string{"x", "vx", "y", "vy"}
var controlColumns = []string{"ux", "uy"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Preset      string             `json:"preset,omitempty"`
	Mode        string             `json:"mode"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Damping     float64            `json:"damping"`
	Steps       int                `json:"steps"`
	InitState   []float64          `json:"init_state"`
	Goal        []float64          `json:"goal,omitempty"`
	MaxAccel    float64            `json:"max_accel,omitempty"`
	MaxSpeed    float64            `json:"max_speed,omitempty"`
	AccelClamps int                `json:"accel_clamps"`
	SpeedClamps int                `json:"speed_clamps"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Trajectory is a stored rollout. Controls has one entry fewer than States,
// or none for open-loop runs.
type Trajectory struct {
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
}

// Save writes meta and the rollout under a fresh run id and returns the id.
// ID, Timestamp, Steps, clamp counts and Metrics are taken from the result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()
	meta.Steps = len(result.States)
	meta.AccelClamps = result.AccelClamps
	meta.SpeedClamps = result.SpeedClamps
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeStates(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append([]string{"time"}, stateColumns...)
	header = append(header, controlColumns...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i, x := range result.States {
		row := make([]string, 0, len(header))
		row = append(row, formatFloat(result.Times[i]))
		for _, v := range x {
			row = append(row, formatFloat(v))
		}
		if i < len(result.Controls) {
			for _, v := range result.Controls[i] {
				row = append(row, formatFloat(v))
			}
		} else {
			for range controlColumns {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the stored runs, newest first. Directories without readable
// metadata are skipped.
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
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 1 + len(stateColumns) + len(controlColumns)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	traj := &Trajectory{
		Times:    []float64{},
		States:   [][]float64{},
		Controls: [][]float64{},
	}
	if len(records) < 2 {
		return traj, nil
	}

	for line, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
		}
		state, err := parseRow(record[1 : 1+len(stateColumns)])
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
		}
		traj.Times = append(traj.Times, t)
		traj.States = append(traj.States, state)

		if record[1+len(stateColumns)] == "" {
			continue
		}
		u, err := parseRow(record[1+len(stateColumns):])
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
		}
		traj.Controls = append(traj.Controls, u)
	}
	return traj, nil
}

func parseRow(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Series returns one column of the stored states by name (x, vx, y, vy).
func (t *Trajectory) Series(column string) ([]float64, error) {
	idx := -1
	for i, c := range stateColumns {
		if c == column {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: unknown state column %q", dynamo.ErrDimensionMismatch, column)
	}
	out := make([]float64, len(t.States))
	for i, x := range t.States {
		out[i] = x[idx]
	}
	return out, nil
}

type ExportData struct {
	RunMetadata
	Trajectory
}

// ExportJSON writes a stored run's metadata and trajectory to w.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	traj, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{RunMetadata: *meta, Trajectory: *traj})
}

// Resolve accepts a full run id or a unique prefix of one.
func (s *Store) Resolve(prefix string) (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	match := ""
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if prefix != "" && strings.HasPrefix(r.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("run prefix %q is ambiguous", prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", ErrRunNotFound
	}
	return match, nil
}

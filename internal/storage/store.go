// Package storage persists rollouts as run directories holding
// metadata.json and transitions.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/experiment"
)

const (
	metadataFile    = "metadata.json"
	transitionsFile = "transitions.csv"
)

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
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint64             `json:"seed"`
	Policy     string             `json:"policy"`
	Integrator string             `json:"integrator"`
	Episodes   int                `json:"episodes"`
	MaxSteps   int                `json:"max_steps"`
	Config     config.Config      `json:"config"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run directory and returns its id.
func (s *Store) Save(preset string, cfg config.Config, result *experiment.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s_%d", preset, cfg.Policy, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Preset:     preset,
		Timestamp:  now,
		Seed:       cfg.Seed,
		Policy:     cfg.Policy,
		Integrator: cfg.Integrator,
		Episodes:   len(result.Episodes),
		MaxSteps:   cfg.Steps,
		Config:     cfg,
		Metrics:    result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, transitionsFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteTransitions(f, result.Transitions()); err != nil {
		return "", err
	}
	return runID, f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// List returns every readable run, newest first.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
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

func (s *Store) LoadTransitions(runID string) ([]env.Transition, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, transitionsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTransitions(f)
}

// column groups after the fixed columns, keyed by header prefix
var groups = []string{"a", "q", "od", "ag", "dg"}

var fixed = []string{"episode", "step", "reward", "terminated", "truncated", "is_success", "is_collision"}

func header(tr env.Transition) []string {
	h := append([]string(nil), fixed...)
	sizes := []int{len(tr.Action), len(tr.Observation.RobotPos), len(tr.Observation.ObstacleDist),
		len(tr.Observation.AchievedGoal), len(tr.Observation.DesiredGoal)}
	for g, n := range sizes {
		for i := 0; i < n; i++ {
			h = append(h, fmt.Sprintf("%s%d", groups[g], i))
		}
	}
	return h
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteTransitions writes a header row then one row per transition.
func WriteTransitions(w io.Writer, trs []env.Transition) error {
	cw := csv.NewWriter(w)
	if len(trs) == 0 {
		cw.Flush()
		return cw.Error()
	}
	if err := cw.Write(header(trs[0])); err != nil {
		return err
	}
	for _, tr := range trs {
		row := []string{
			strconv.Itoa(tr.Episode),
			strconv.Itoa(tr.Step),
			formatFloat(tr.Reward),
			strconv.FormatBool(tr.Terminated),
			strconv.FormatBool(tr.Truncated),
			strconv.FormatBool(tr.Info.IsSuccess),
			strconv.FormatBool(tr.Info.IsCollision),
		}
		for _, v := range tr.Action {
			row = append(row, formatFloat(v))
		}
		for _, vs := range [][]float32{tr.Observation.RobotPos, tr.Observation.ObstacleDist, tr.Observation.AchievedGoal, tr.Observation.DesiredGoal} {
			for _, v := range vs {
				row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransitions parses the output of WriteTransitions.
func ReadTransitions(r io.Reader) ([]env.Transition, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []env.Transition{}, nil
	}

	head := records[0]
	if len(head) < len(fixed) {
		return nil, fmt.Errorf("transitions: header has %d columns, need at least %d", len(head), len(fixed))
	}
	group := make([]int, len(head))
	for c := len(fixed); c < len(head); c++ {
		prefix := strings.TrimRight(head[c], "0123456789")
		group[c] = -1
		for g, name := range groups {
			if prefix == name {
				group[c] = g
			}
		}
		if group[c] < 0 {
			return nil, fmt.Errorf("transitions: unknown column %q", head[c])
		}
	}

	out := make([]env.Transition, 0, len(records)-1)
	for line, rec := range records[1:] {
		tr, err := parseRow(rec, group)
		if err != nil {
			return nil, fmt.Errorf("transitions line %d: %w", line+2, err)
		}
		out = append(out, tr)
	}
	return out, nil
}

func parseRow(rec []string, group []int) (env.Transition, error) {
	var tr env.Transition
	var err error
	if tr.Episode, err = strconv.Atoi(rec[0]); err != nil {
		return tr, err
	}
	if tr.Step, err = strconv.Atoi(rec[1]); err != nil {
		return tr, err
	}
	if tr.Reward, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return tr, err
	}
	bools := []*bool{&tr.Terminated, &tr.Truncated, &tr.Info.IsSuccess, &tr.Info.IsCollision}
	for i, b := range bools {
		if *b, err = strconv.ParseBool(rec[3+i]); err != nil {
			return tr, err
		}
	}

	obs := []*[]float32{&tr.Observation.RobotPos, &tr.Observation.ObstacleDist, &tr.Observation.AchievedGoal, &tr.Observation.DesiredGoal}
	for c := len(fixed); c < len(rec); c++ {
		if group[c] == 0 {
			v, err := strconv.ParseFloat(rec[c], 64)
			if err != nil {
				return tr, err
			}
			tr.Action = append(tr.Action, v)
			continue
		}
		v, err := strconv.ParseFloat(rec[c], 32)
		if err != nil {
			return tr, err
		}
		dst := obs[group[c]-1]
		*dst = append(*dst, float32(v))
	}
	return tr, nil
}

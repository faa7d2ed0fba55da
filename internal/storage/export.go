package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/reachenv/internal/env"
)

type ExportData struct {
	Run         RunMetadata      `json:"run"`
	Transitions []env.Transition `json:"transitions"`
}

// ExportJSON writes a stored run as one JSON document; path "-" writes to
// stdout.
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	trs, err := s.LoadTransitions(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: *meta, Transitions: trs}

	if path == "-" {
		return WriteJSON(os.Stdout, data)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := WriteJSON(file, data); err != nil {
		return err
	}
	return file.Close()
}

func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

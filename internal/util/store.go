package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// StatusOK is the only status the orchestrator writes.
const StatusOK = "OK"

// Checkpoint is the resume marker: the timestamp of the last sample whose
// iteration completed.
type Checkpoint struct {
	LastTimestamp string `json:"lastTimestamp"`
	Status        string `json:"status"`

	// legacy files wrote snake_case
	LegacyTimestamp string `json:"last_timestamp,omitempty"`
}

// Time parses LastTimestamp (falling back to the legacy key).
func (c Checkpoint) Time() (time.Time, error) {
	ts := c.LastTimestamp
	if ts == "" {
		ts = c.LegacyTimestamp
	}
	if ts == "" {
		return time.Time{}, errors.New("checkpoint: empty lastTimestamp")
	}
	return ParseTimestamp(ts)
}

// LoadCheckpoint reads the checkpoint at path. A missing file returns an
// error satisfying errors.Is(err, os.ErrNotExist).
func LoadCheckpoint(path string) (Checkpoint, error) {
	var c Checkpoint
	if err := LoadJSON(path, &c); err != nil {
		return Checkpoint{}, err
	}
	return c, nil
}

// SaveCheckpoint overwrites the checkpoint at path with t in UTC.
func SaveCheckpoint(path string, t time.Time) error {
	return SaveJSON(path, Checkpoint{LastTimestamp: FormatTimestamp(t), Status: StatusOK}, false)
}

// LoadJSON decodes the JSON file at path into v.
func LoadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// SaveJSON writes v as indented JSON atomically. With backup set the previous
// content is first copied to path+".bak" (best effort).
func SaveJSON(path string, v any, backup bool) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if backup {
		if prev, err := os.ReadFile(path); err == nil {
			_ = os.WriteFile(path+".bak", prev, 0o600)
		}
	}
	return WriteFileAtomic(path, b, 0o600)
}

// ABOUTME: Local resume memory persisted between player runs
// ABOUTME: Reads and atomically writes the JSON state file
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(path string) (LocalState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return LocalState{}, nil
	}
	if err != nil {
		return LocalState{}, fmt.Errorf("read state file: %w", err)
	}

	var state LocalState
	if err := json.Unmarshal(data, &state); err != nil {
		return LocalState{}, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return state, nil
}

// SaveState writes the state file via a temp file and rename
func SaveState(path string, state LocalState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	pkgrepo "switchdesk/pkg/repository"

	"github.com/natefinch/atomic"
)

// ViewState is the table view restored across CLI sessions.
type ViewState struct {
	BaseURL  string              `json:"base_url,omitempty"`
	Search   string              `json:"search"`
	Sort     []pkgrepo.SortField `json:"sort"`
	PageSize int                 `json:"page_size"`
}

func Load(path string) (ViewState, error) {
	var st ViewState
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read view state failed: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse view state failed: %w", err)
	}
	return st, nil
}

// Save replaces the file at path in a single rename.
func Save(path string, st ViewState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create view state dir failed: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal view state failed: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write view state failed: %w", err)
	}
	return nil
}

func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove view state failed: %w", err)
	}
	return nil
}

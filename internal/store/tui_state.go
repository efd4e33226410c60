package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const tuiStateFileName = "tui_state.json"

// TUIState stores small, user-facing UI state for restoring the manager on relaunch.
//
// It is best effort: callers should tolerate missing or invalid data.
type TUIState struct {
	Version int `json:"version"`

	// Views is keyed by collection name.
	Views map[string]TUIView `json:"views,omitempty"`
}

type TUIView struct {
	Sort       string `json:"sort,omitempty"`
	Columns    int    `json:"columns,omitempty"`
	SelectedID string `json:"selectedId,omitempty"`
}

func tuiStatePath(dir string) string {
	return filepath.Join(dir, tuiStateFileName)
}

// LoadTUIState reads dir/tui_state.json. A missing or corrupt file yields an empty state.
func LoadTUIState(dir string) (*TUIState, error) {
	empty := &TUIState{Version: 1, Views: map[string]TUIView{}}
	if strings.TrimSpace(dir) == "" {
		return empty, nil
	}
	b, err := os.ReadFile(tuiStatePath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, nil
		}
		return nil, err
	}
	var st TUIState
	if err := json.Unmarshal(b, &st); err != nil {
		return empty, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	if st.Views == nil {
		st.Views = map[string]TUIView{}
	}
	return &st, nil
}

func SaveTUIState(dir string, st *TUIState) error {
	if st == nil || strings.TrimSpace(dir) == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	path := tuiStatePath(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

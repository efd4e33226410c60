// Package publish writes a collection as static Markdown pages.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"roster-cli/internal/model"
)

type WriteOptions struct {
	Overwrite bool
	Render    RenderOptions
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteCollection writes <toDir>/index.md and one <toDir>/members/<id>.md per
// member. items must already be in display order.
func WriteCollection(collection string, items []model.Member, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)

	membersDir := filepath.Join(toDir, "members")
	if err := os.MkdirAll(membersDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexPath := filepath.Join(toDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(collection, items, opt.Render)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on first error.
	written := []string{indexPath}
	for _, m := range items {
		p := filepath.Join(membersDir, m.ID+".md")
		if err := writeFile(p, []byte(RenderMemberMarkdown(m)), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}
	return WriteResult{Written: written}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}

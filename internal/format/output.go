package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"gopkg.in/yaml.v3"

	"roster-cli/internal/model"
)

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - yaml
// - text (member tables; other payloads fall back to yaml)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml":
		return WriteYAML(w, v)
	case "text":
		return WriteText(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteYAML goes through JSON first so keys follow the json tags.
func WriteYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(x); err != nil {
		return err
	}
	return enc.Close()
}

const bioWidth = 40

// WriteText renders members as a table. A {"data": ...} envelope is unwrapped.
func WriteText(w io.Writer, v any) error {
	if env, ok := v.(map[string]any); ok {
		if d, ok := env["data"]; ok {
			v = d
		}
	}
	switch x := v.(type) {
	case []model.Member:
		_, err := fmt.Fprintln(w, MembersTable(x))
		return err
	case model.Member:
		_, err := fmt.Fprintln(w, MembersTable([]model.Member{x}))
		return err
	default:
		return WriteYAML(w, v)
	}
}

// MembersTable renders members in the given order.
func MembersTable(items []model.Member) string {
	rows := make([][]string, 0, len(items))
	for _, m := range items {
		rank := "-"
		if m.HasRank() {
			rank = strconv.Itoa(m.Rank)
		}
		bio := strings.Join(strings.Fields(m.Bio), " ")
		rows = append(rows, []string{
			rank,
			m.Name,
			m.JobTitle,
			m.Seniority,
			ansi.Truncate(bio, bioWidth, "…"),
			m.ID,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ORDER", "NAME", "JOB TITLE", "RANK", "BIO", "ID").
		Rows(rows...)
	return t.Render()
}

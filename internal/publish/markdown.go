package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"roster-cli/internal/model"
)

type RenderOptions struct {
	// Title heads the index page; empty uses the collection name.
	Title string
	// Now stamps the index page; zero omits the stamp.
	Now time.Time
}

// RenderIndexMarkdown renders the team page: one section per member in the given
// order, linking to the member pages written next to it.
func RenderIndexMarkdown(collection string, items []model.Member, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "Team: " + collection
	}
	writeLn("# " + title)
	writeLn("")
	if !opt.Now.IsZero() {
		writeLn("_Published " + opt.Now.UTC().Format(time.RFC3339) + "._")
		writeLn("")
	}
	if len(items) == 0 {
		writeLn("No team members yet.")
		return buf.String()
	}

	for i, m := range items {
		writeLn(fmt.Sprintf("## %d. [%s](members/%s.md)", i+1, escapeInline(m.Name), m.ID))
		writeLn("")
		if line := roleLine(m); line != "" {
			writeLn(line)
			writeLn("")
		}
		if strings.TrimSpace(m.ImageURL) != "" {
			writeLn(fmt.Sprintf("![%s](%s)", escapeInline(m.Name), strings.TrimSpace(m.ImageURL)))
			writeLn("")
		}
		if first := firstParagraph(m.Bio); first != "" {
			writeLn(first)
			writeLn("")
		}
	}
	return buf.String()
}

// RenderMemberMarkdown renders one member page with the full bio.
func RenderMemberMarkdown(m model.Member) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + escapeInline(m.Name))
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- ID: " + m.ID)
	if m.HasRank() {
		writeLn(fmt.Sprintf("- Order: %d", m.Rank))
	}
	if v := strings.TrimSpace(m.JobTitle); v != "" {
		writeLn("- Job title: " + v)
	}
	if v := strings.TrimSpace(m.Seniority); v != "" {
		writeLn("- Rank: " + v)
	}
	if v := strings.TrimSpace(m.ImageURL); v != "" {
		writeLn("- Photo: " + v)
	}
	writeLn("")

	if bio := strings.TrimSpace(m.Bio); bio != "" {
		writeLn("## Bio")
		writeLn("")
		writeLn(bio)
		writeLn("")
	}
	writeLn("[Back to the team](../index.md)")
	return buf.String()
}

func roleLine(m model.Member) string {
	parts := []string{}
	if v := strings.TrimSpace(m.JobTitle); v != "" {
		parts = append(parts, "**"+escapeInline(v)+"**")
	}
	if v := strings.TrimSpace(m.Seniority); v != "" {
		parts = append(parts, escapeInline(v))
	}
	return strings.Join(parts, " · ")
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// escapeInline keeps names from opening links or emphasis.
var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	`[`, `\[`,
	`]`, `\]`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.TrimSpace(s))
}

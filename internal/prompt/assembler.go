// Package prompt renders the system prompt sent to the inference backend,
// combining persisted long-term memory with the live session turns.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antoniostano/secretary/internal/memory"
	"github.com/antoniostano/secretary/internal/session"
)

const header = `You are a capable personal secretary.
Answer the user's input naturally, taking the following information about the user into account.`

var sectionTitles = map[memory.Category]string{
	memory.CategoryAttribute: "User attributes",
	memory.CategoryGoal:      "User goals",
	memory.CategoryMemory:    "Other memories",
	memory.CategoryRequest:   "Requests to the assistant",
}

// Breakdown is the structured view of an assembled prompt, for diagnostics.
type Breakdown struct {
	Header    string `json:"header"`
	LongTerm  string `json:"long_term"`
	ShortTerm string `json:"short_term"`
}

// View pairs the exact prompt text with its breakdown.
type View struct {
	Prompt    string    `json:"prompt"`
	Breakdown Breakdown `json:"breakdown"`
}

// Render assembles the prompt: fixed header, long-term records grouped by
// category in stable order (ascending UpdatedAt within a group), then the
// session turns chronologically. Deterministic in its inputs.
func Render(snapshot []session.Turn, records []memory.Record) string {
	return RenderDebugView(snapshot, records).Prompt
}

// RenderDebugView returns the identical prompt plus its structured
// breakdown. Render is defined in terms of this function, so the diagnostic
// view can never diverge from what is actually sent to the backend.
func RenderDebugView(snapshot []session.Turn, records []memory.Record) View {
	long := renderLongTerm(records)
	short := renderShortTerm(snapshot)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(long)
	if short != "" {
		b.WriteString("\n")
		b.WriteString(short)
	}

	return View{
		Prompt: b.String(),
		Breakdown: Breakdown{
			Header:    header,
			LongTerm:  long,
			ShortTerm: short,
		},
	}
}

func renderLongTerm(records []memory.Record) string {
	grouped := make(map[memory.Category][]memory.Record)
	for _, r := range records {
		grouped[r.Category] = append(grouped[r.Category], r)
	}

	var b strings.Builder
	for _, cat := range memory.Categories() {
		items := grouped[cat]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		})

		fmt.Fprintf(&b, "[%s]\n", sectionTitles[cat])
		if len(items) == 0 {
			b.WriteString("(none)\n")
		}
		for _, r := range items {
			fmt.Fprintf(&b, "- %s\n", r.Content)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderShortTerm(snapshot []session.Turn) string {
	if len(snapshot) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Conversation so far]\n")
	for _, t := range snapshot {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}

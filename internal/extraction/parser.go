package extraction

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/antoniostano/secretary/internal/memory"
)

// Candidate is a durable fact proposed by the model. Transient: it is never
// persisted directly, only through the merge step.
type Candidate struct {
	Category memory.Category
	Content  string
}

// ErrMalformedCompletion reports that a completion failed both strict and
// permissive parsing. Recovered locally by discarding the cycle.
var ErrMalformedCompletion = errors.New("malformed extraction completion")

type itemsEnvelope struct {
	Items []struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	} `json:"items"`
}

// parseCandidates treats the completion as untrusted text: strict JSON
// first, then a permissive line-based fallback that still enforces the
// category tag. Items with unknown categories or empty content are dropped,
// not errors.
func parseCandidates(completion string) ([]Candidate, error) {
	if items, ok := parseStrict(completion); ok {
		return items, nil
	}
	if items, ok := parsePermissive(completion); ok {
		return items, nil
	}
	return nil, ErrMalformedCompletion
}

func parseStrict(completion string) ([]Candidate, bool) {
	text := strings.TrimSpace(completion)
	// Models wrap JSON in markdown fences despite instructions.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	var env itemsEnvelope
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&env); err != nil {
		return nil, false
	}

	out := make([]Candidate, 0, len(env.Items))
	for _, item := range env.Items {
		cat, ok := memory.ParseCategory(strings.ToLower(strings.TrimSpace(item.Category)))
		if !ok {
			continue
		}
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		out = append(out, Candidate{Category: cat, Content: content})
	}
	return out, true
}

// parsePermissive accepts "category: content" lines, optionally bulleted.
// It succeeds only when at least one line carries a known category tag, so
// arbitrary prose still counts as malformed.
func parsePermissive(completion string) ([]Candidate, bool) {
	var out []Candidate
	tagged := false
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if line == "" {
			continue
		}

		tag, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cat, ok := memory.ParseCategory(strings.ToLower(strings.TrimSpace(tag)))
		if !ok {
			continue
		}
		tagged = true
		content := strings.TrimSpace(rest)
		if content == "" {
			continue
		}
		out = append(out, Candidate{Category: cat, Content: content})
	}
	if !tagged {
		return nil, false
	}
	return out, true
}

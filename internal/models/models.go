package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GrammarEntry is a single grammar point.
type GrammarEntry struct {
	ID          string    `json:"id"`
	Structure   string    `json:"structure"`
	Level       string    `json:"level,omitempty"`
	Meaning     string    `json:"meaning"`
	Explanation string    `json:"explanation"`
	Note        string    `json:"note,omitempty"`
	Examples    []Example `json:"examples"`
}

// NumericID returns the id as an integer, or 0 when it is not numeric.
func (g GrammarEntry) NumericID() int {
	n, err := strconv.Atoi(strings.TrimSpace(g.ID))
	if err != nil {
		return 0
	}
	return n
}

// UnmarshalJSON accepts numeric ids as well as strings.
func (g *GrammarEntry) UnmarshalJSON(b []byte) error {
	type plain GrammarEntry
	var raw struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*g = GrammarEntry(raw.plain)
	g.ID = ""
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ID, &s); err == nil {
		g.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ID, &n); err != nil {
		return fmt.Errorf("grammar id: %w", err)
	}
	g.ID = n.String()
	return nil
}

// Clone returns a deep copy of the entry.
func (g GrammarEntry) Clone() GrammarEntry {
	out := g
	if g.Examples != nil {
		out.Examples = make([]Example, len(g.Examples))
		copy(out.Examples, g.Examples)
	}
	return out
}

// Example is a Japanese sentence with its translation.
type Example struct {
	JP string `json:"jp"`
	VI string `json:"vi"`
}

// UnmarshalJSON accepts both the short jp/vi keys and the older
// japanese/vietnamese keys.
func (e *Example) UnmarshalJSON(b []byte) error {
	var raw struct {
		JP         *string `json:"jp"`
		VI         *string `json:"vi"`
		Japanese   *string `json:"japanese"`
		Vietnamese *string `json:"vietnamese"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Example{}
	switch {
	case raw.JP != nil:
		e.JP = *raw.JP
	case raw.Japanese != nil:
		e.JP = *raw.Japanese
	}
	switch {
	case raw.VI != nil:
		e.VI = *raw.VI
	case raw.Vietnamese != nil:
		e.VI = *raw.Vietnamese
	}
	return nil
}

const examplesSeparator = "\n---\n"

// ParseExamplesText parses the edit-form representation of examples:
// blocks separated by a "---" line, each block holding the Japanese
// sentence on its first line and the translation on the second.
func ParseExamplesText(s string) []Example {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []Example
	for _, block := range strings.Split(s, examplesSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.SplitN(block, "\n", 2)
		ex := Example{JP: strings.TrimSpace(lines[0])}
		if len(lines) > 1 {
			ex.VI = strings.TrimSpace(lines[1])
		}
		if ex.JP == "" {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// FormatExamplesText is the inverse of ParseExamplesText.
func FormatExamplesText(examples []Example) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		blocks = append(blocks, ex.JP+"\n"+ex.VI)
	}
	return strings.Join(blocks, examplesSeparator)
}

// GrammarInput carries the fields of a new entry. Examples may be given
// either structured or as edit-form text.
type GrammarInput struct {
	Structure    string    `json:"structure"`
	Level        string    `json:"level"`
	Meaning      string    `json:"meaning"`
	Explanation  string    `json:"explanation"`
	Note         string    `json:"note"`
	Examples     []Example `json:"examples"`
	ExamplesText string    `json:"examples_text"`
}

// ResolvedExamples returns the structured examples, parsing the text form
// when no structured examples were supplied.
func (in GrammarInput) ResolvedExamples() []Example {
	if len(in.Examples) > 0 || in.ExamplesText == "" {
		return in.Examples
	}
	return ParseExamplesText(in.ExamplesText)
}

// GrammarPatch holds the fields to change on an existing entry; nil
// fields are left untouched.
type GrammarPatch struct {
	Structure    *string    `json:"structure"`
	Level        *string    `json:"level"`
	Meaning      *string    `json:"meaning"`
	Explanation  *string    `json:"explanation"`
	Note         *string    `json:"note"`
	Examples     *[]Example `json:"examples"`
	ExamplesText *string    `json:"examples_text"`
}

// Apply returns a copy of entry with the patch applied.
func (p GrammarPatch) Apply(entry GrammarEntry) GrammarEntry {
	out := entry.Clone()
	if p.Structure != nil {
		out.Structure = strings.TrimSpace(*p.Structure)
	}
	if p.Level != nil {
		out.Level = strings.TrimSpace(*p.Level)
	}
	if p.Meaning != nil {
		out.Meaning = strings.TrimSpace(*p.Meaning)
	}
	if p.Explanation != nil {
		out.Explanation = *p.Explanation
	}
	if p.Note != nil {
		out.Note = *p.Note
	}
	switch {
	case p.Examples != nil:
		out.Examples = append([]Example(nil), (*p.Examples)...)
	case p.ExamplesText != nil:
		out.Examples = ParseExamplesText(*p.ExamplesText)
	}
	return out
}

// Snapshot is the full application data set.
type Snapshot struct {
	Entries   []GrammarEntry `json:"entries"`
	Stats     Stats          `json:"stats"`
	Status    StatusMap      `json:"status"`
	DailyGoal DailyGoal      `json:"daily_goal"`
}

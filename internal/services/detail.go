package services

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/flashcard"
	"github.com/vytor/bunpo/internal/models"
)

// EntryDetail is an entry with its progress and rendered notes, as shown in
// the detail view.
type EntryDetail struct {
	Entry           models.GrammarEntry `json:"entry"`
	Stat            models.Stat         `json:"stat"`
	Status          models.Status       `json:"status"`
	Weak            bool                `json:"weak"`
	ExplanationHTML string              `json:"explanation_html"`
	NoteHTML        string              `json:"note_html,omitempty"`
}

// Raw HTML in entries is not rendered; line breaks are kept.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func (s *grammarService) Detail(ctx context.Context, id string) (*EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil, errors.NewNotFoundError("grammar", id)
	}
	return newEntryDetail(s.entries[i], s.stats[id], s.status[id]), nil
}

func newEntryDetail(e models.GrammarEntry, stat models.Stat, status models.Status) *EntryDetail {
	return &EntryDetail{
		Entry:           e.Clone(),
		Stat:            stat,
		Status:          status,
		Weak:            flashcard.IsWeak(stat),
		ExplanationHTML: renderMarkdown(e.Explanation),
		NoteHTML:        renderMarkdown(e.Note),
	}
}

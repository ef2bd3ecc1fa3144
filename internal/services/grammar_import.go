package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

// PlanImport matches incoming entries against the collection by structure
// and holds the result until ApplyImport is called with its token.
func (s *grammarService) PlanImport(ctx context.Context, entries []models.GrammarEntry) (*models.ImportPlan, error) {
	log := logger.FromContext(ctx).WithPrefix("import")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NewBadRequestError("nothing to import")
	}

	byKey := make(map[string]models.GrammarEntry, len(s.entries))
	for _, e := range s.entries {
		key := textmatch.StructureKey(e.Structure)
		if _, seen := byKey[key]; !seen {
			byKey[key] = e
		}
	}

	plan := models.ImportPlan{Token: uuid.NewString(), Items: make([]models.ImportCandidate, 0, len(entries))}
	for i, e := range entries {
		e = sanitize(e)
		c := models.ImportCandidate{Index: i, Entry: e}
		if existing, ok := byKey[textmatch.StructureKey(e.Structure)]; ok {
			existing = existing.Clone()
			c.Existing = &existing
			plan.Duplicates++
		}
		plan.Items = append(plan.Items, c)
	}

	s.prunePlans()
	s.plans[plan.Token] = &pendingPlan{plan: plan, created: s.opts.Now()}
	log.Info("import planned: token=%s items=%d duplicates=%d", plan.Token, len(plan.Items), plan.Duplicates)
	return clonePlan(plan), nil
}

func (s *grammarService) ImportPlan(ctx context.Context, token string) (*models.ImportPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prunePlans()
	p, ok := s.plans[token]
	if !ok {
		return nil, errors.NewNotFoundError("import plan", token)
	}
	return clonePlan(p.plan), nil
}

// ApplyImport adds or merges the planned entries. Items without a duplicate
// are added; duplicates follow their decision and are skipped when none was
// given. Update keeps the existing id and overlays the incoming fields.
func (s *grammarService) ApplyImport(ctx context.Context, token string, decisions map[int]models.ImportDecision) (*models.ImportResult, error) {
	log := logger.FromContext(ctx).WithPrefix("import")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.prunePlans()
	pending, ok := s.plans[token]
	if !ok {
		return nil, errors.NewNotFoundError("import plan", token)
	}
	for idx, d := range decisions {
		if !d.Valid() {
			return nil, errors.NewValidationError("decisions", "unknown decision "+string(d))
		}
		if idx < 0 || idx >= len(pending.plan.Items) {
			return nil, errors.NewValidationError("decisions", "no item at index")
		}
	}

	before := cloneEntries(s.entries)
	result := &models.ImportResult{}
	next := s.maxNumericID()
	for _, item := range pending.plan.Items {
		decision := models.DecisionAdd
		if item.Existing != nil {
			decision = decisions[item.Index]
			if decision == "" {
				decision = models.DecisionSkip
			}
		}
		switch decision {
		case models.DecisionSkip:
			result.Skipped++
		case models.DecisionUpdate:
			if i := s.indexOf(item.Existing.ID); i >= 0 {
				s.entries[i] = mergeEntry(s.entries[i], item.Entry)
				result.Updated++
				continue
			}
			fallthrough
		case models.DecisionAdd:
			e := item.Entry.Clone()
			e.ID = idAfter(next)
			next++
			s.entries = append(s.entries, e)
			result.Added++
		}
	}

	if err := s.persistEntries(ctx); err != nil {
		s.entries = before
		return nil, err
	}
	s.enqueue(ctx, "grammar_import", diffOps(before, s.entries)...)
	delete(s.plans, token)
	log.Info("import applied: added=%d updated=%d skipped=%d", result.Added, result.Updated, result.Skipped)
	return result, nil
}

// ReplaceAll swaps the whole collection for entries. Ids are reassigned
// when missing or repeated.
func (s *grammarService) ReplaceAll(ctx context.Context, entries []models.GrammarEntry) (*models.ImportResult, error) {
	log := logger.FromContext(ctx).WithPrefix("import")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NewBadRequestError("nothing to import")
	}

	replacement := make([]models.GrammarEntry, 0, len(entries))
	seen := map[string]bool{}
	next := 0
	for _, e := range entries {
		if n := e.NumericID(); n > next {
			next = n
		}
	}
	for _, e := range entries {
		e = sanitize(e)
		if e.ID == "" || seen[e.ID] {
			e.ID = idAfter(next)
			next++
		}
		seen[e.ID] = true
		replacement = append(replacement, e)
	}

	before := s.entries
	s.entries = replacement
	if err := s.persistEntries(ctx); err != nil {
		s.entries = before
		return nil, err
	}
	s.enqueue(ctx, "grammar_replace", diffOps(before, s.entries)...)
	log.Info("collection replaced: entries=%d previous=%d", len(replacement), len(before))
	return &models.ImportResult{Added: len(replacement)}, nil
}

// ExportAll returns the collection as an indented JSON array.
func (s *grammarService) ExportAll(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return out, nil
}

func (s *grammarService) maxNumericID() int {
	max := 0
	for _, e := range s.entries {
		if n := e.NumericID(); n > max {
			max = n
		}
	}
	return max
}

func (s *grammarService) prunePlans() {
	cutoff := s.opts.Now().Add(-s.opts.PlanTTL)
	for token, p := range s.plans {
		if p.created.Before(cutoff) {
			delete(s.plans, token)
		}
	}
}

// mergeEntry overlays the non-empty fields of incoming onto existing.
func mergeEntry(existing, incoming models.GrammarEntry) models.GrammarEntry {
	out := existing.Clone()
	if incoming.Structure != "" {
		out.Structure = incoming.Structure
	}
	if incoming.Meaning != "" {
		out.Meaning = incoming.Meaning
	}
	if incoming.Level != "" {
		out.Level = incoming.Level
	}
	if incoming.Explanation != "" {
		out.Explanation = incoming.Explanation
	}
	if incoming.Note != "" {
		out.Note = incoming.Note
	}
	if len(incoming.Examples) > 0 {
		out.Examples = append([]models.Example{}, incoming.Examples...)
	}
	return out
}

func clonePlan(p models.ImportPlan) *models.ImportPlan {
	out := p
	out.Items = make([]models.ImportCandidate, len(p.Items))
	for i, c := range p.Items {
		c.Entry = c.Entry.Clone()
		if c.Existing != nil {
			e := c.Existing.Clone()
			c.Existing = &e
		}
		out.Items[i] = c
	}
	return &out
}

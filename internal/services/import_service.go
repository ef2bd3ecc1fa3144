package services

import (
	"context"

	"github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/importer"
	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/models"
)

// ImportMode selects how parsed entries reach the collection.
type ImportMode string

const (
	// ImportMerge plans the import so duplicates can be resolved.
	ImportMerge ImportMode = "merge"
	// ImportReplace swaps the whole collection for the file's entries.
	ImportReplace ImportMode = "replace"
)

// ImportOutcome is the result of an upload: a plan awaiting decisions in
// merge mode, or the applied result in replace mode.
type ImportOutcome struct {
	Format   importer.Format      `json:"format"`
	Mode     ImportMode           `json:"mode"`
	Plan     *models.ImportPlan   `json:"plan,omitempty"`
	Result   *models.ImportResult `json:"result,omitempty"`
	Warnings []importer.Warning   `json:"warnings"`
}

// ImportService handles grammar file uploads
type ImportService interface {
	Upload(ctx context.Context, filename string, data []byte, format importer.Format, mode ImportMode) (*ImportOutcome, error)
}

type importService struct {
	grammar GrammarService
}

// NewImportService creates a new ImportService
func NewImportService(grammar GrammarService) ImportService {
	return &importService{grammar: grammar}
}

// Upload parses data and hands the entries to the grammar service. An empty
// format is detected from the file name. A malformed file changes nothing.
func (s *importService) Upload(ctx context.Context, filename string, data []byte, format importer.Format, mode ImportMode) (*ImportOutcome, error) {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"file": filename,
		"mode": string(mode),
	})
	log.Info("importing grammar file")

	if len(data) == 0 {
		return nil, errors.NewBadRequestError("the uploaded file is empty")
	}
	switch mode {
	case "":
		mode = ImportMerge
	case ImportMerge, ImportReplace:
	default:
		return nil, errors.NewValidationError("mode", "must be merge or replace")
	}

	var (
		parsed *importer.Result
		err    error
	)
	if format == "" {
		parsed, err = importer.Parse(filename, data)
	} else {
		parsed, err = importer.ParseAs(format, filename, data)
	}
	if err != nil {
		log.Warn("rejected import file: %v", err)
		return nil, err
	}
	if len(parsed.Warnings) > 0 {
		log.Debug("import skipped %d parts of the file", len(parsed.Warnings))
	}

	out := &ImportOutcome{Format: parsed.Format, Mode: mode, Warnings: parsed.Warnings}
	if mode == ImportReplace {
		out.Result, err = s.grammar.ReplaceAll(ctx, parsed.Entries)
	} else {
		out.Plan, err = s.grammar.PlanImport(ctx, parsed.Entries)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

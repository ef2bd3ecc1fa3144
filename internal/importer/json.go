package importer

import (
	"encoding/json"
	"strings"

	apperrors "github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/models"
)

// ParseJSON decodes an exported grammar array. The file is rejected as a
// whole unless it is an array whose first element has a structure and a
// meaning; later elements without a structure are dropped.
func ParseJSON(data []byte) ([]models.GrammarEntry, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewMalformedImportError("expected a JSON array", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.NewMalformedImportError("the array is empty", nil)
	}

	var head struct {
		Structure string `json:"structure"`
		Meaning   string `json:"meaning"`
	}
	if err := json.Unmarshal(raw[0], &head); err != nil || head.Structure == "" || head.Meaning == "" {
		return nil, apperrors.NewMalformedImportError("entries need a structure and a meaning", err)
	}

	out := make([]models.GrammarEntry, 0, len(raw))
	for _, item := range raw {
		var e models.GrammarEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, apperrors.NewMalformedImportError("invalid entry", err)
		}
		e.Structure = strings.TrimSpace(e.Structure)
		if e.Structure == "" {
			continue
		}
		e.Meaning = strings.TrimSpace(e.Meaning)
		e.Level = strings.TrimSpace(e.Level)
		if e.Examples == nil {
			e.Examples = []models.Example{}
		}
		out = append(out, e)
	}
	return out, nil
}

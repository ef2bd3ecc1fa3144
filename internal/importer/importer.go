// Package importer turns uploaded files into grammar entries. It never
// touches storage; duplicate handling happens in the grammar service.
package importer

import (
	"path/filepath"
	"strings"

	apperrors "github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/models"
)

// Format is the kind of file being imported.
type Format string

const (
	FormatJSON  Format = "json"
	FormatWord  Format = "word"
	FormatSheet Format = "sheet"
	FormatCSV   Format = "csv"
)

// Warning describes a part of the input that was skipped.
type Warning struct {
	Block  int    `json:"block"`
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// Result is a parsed import file.
type Result struct {
	Format   Format                `json:"format"`
	Entries  []models.GrammarEntry `json:"entries"`
	Warnings []Warning             `json:"warnings"`
}

// DetectFormat picks a format from the file name.
func DetectFormat(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON, true
	case ".docx", ".txt", ".md":
		return FormatWord, true
	case ".xlsx", ".xlsm":
		return FormatSheet, true
	case ".csv":
		return FormatCSV, true
	}
	return "", false
}

// Parse reads data according to the format implied by filename.
func Parse(filename string, data []byte) (*Result, error) {
	format, ok := DetectFormat(filename)
	if !ok {
		return nil, apperrors.NewMalformedImportError("unsupported file type "+filepath.Ext(filename), nil)
	}
	return ParseAs(format, filename, data)
}

// ParseAs reads data in an explicit format.
func ParseAs(format Format, filename string, data []byte) (*Result, error) {
	res := &Result{Format: format, Warnings: []Warning{}}
	var err error
	switch format {
	case FormatJSON:
		res.Entries, err = ParseJSON(data)
	case FormatWord:
		text := string(data)
		if strings.EqualFold(filepath.Ext(filename), ".docx") {
			text, err = ExtractDocxText(data)
			if err != nil {
				return nil, err
			}
		}
		res.Entries, res.Warnings = ParseWordText(text)
		if len(res.Entries) == 0 {
			err = apperrors.NewMalformedImportError("no grammar blocks recognised", nil)
		}
	case FormatSheet:
		res.Entries, res.Warnings, err = ParseSheet(data)
	case FormatCSV:
		res.Entries, res.Warnings, err = ParseCSV(data)
	default:
		err = apperrors.NewMalformedImportError("unknown format "+string(format), nil)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/vytor/bunpo/internal/errors"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

type column int

const (
	colStructure column = iota
	colMeaning
	colLevel
	colExplanation
	colExamples
	colNote
	colCount
)

// defaultColumns is the layout assumed when the first row is not a header
// row: A structure, B meaning, C level, D explanation, E examples, F note.
var defaultColumns = [colCount]int{0, 1, 2, 3, 4, 5}

var headerNames = map[string]column{
	"structure":   colStructure,
	"cau truc":    colStructure,
	"meaning":     colMeaning,
	"y nghia":     colMeaning,
	"level":       colLevel,
	"jlpt":        colLevel,
	"cap do":      colLevel,
	"explanation": colExplanation,
	"giai thich":  colExplanation,
	"examples":    colExamples,
	"example":     colExamples,
	"vi du":       colExamples,
	"note":        colNote,
	"notes":       colNote,
	"chu y":       colNote,
}

// ParseSheet reads the first worksheet of an .xlsx workbook.
func ParseSheet(data []byte) ([]models.GrammarEntry, []Warning, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, apperrors.NewMalformedImportError("not a spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, apperrors.NewMalformedImportError("the workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, apperrors.NewMalformedImportError("failed to read rows", err)
	}
	return parseRows(rows)
}

// ParseCSV reads comma separated rows with the same layout as ParseSheet.
func ParseCSV(data []byte) ([]models.GrammarEntry, []Warning, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewMalformedImportError("invalid csv", err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]models.GrammarEntry, []Warning, error) {
	if len(rows) == 0 {
		return nil, nil, apperrors.NewMalformedImportError("the file is empty", nil)
	}

	cols, isHeader := headerColumns(rows[0])
	start := 0
	if isHeader {
		start = 1
	}

	entries := []models.GrammarEntry{}
	warnings := []Warning{}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		cell := func(c column) string {
			idx := cols[c]
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		e := models.GrammarEntry{
			Structure:   cell(colStructure),
			Meaning:     cell(colMeaning),
			Level:       cell(colLevel),
			Explanation: cell(colExplanation),
			Note:        cell(colNote),
			Examples:    parseExampleCell(cell(colExamples)),
		}
		if e.Structure == "" || e.Meaning == "" {
			warnings = append(warnings, Warning{
				Block:  i + 1,
				Line:   strings.Join(row, " | "),
				Reason: "missing structure or meaning",
			})
			continue
		}
		e.ID = fmt.Sprint(len(entries) + 1)
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, warnings, apperrors.NewMalformedImportError("no grammar rows found", nil)
	}
	return entries, warnings, nil
}

// headerColumns maps columns from a header row. It reports false, with the
// default layout, unless both structure and meaning headers are present.
func headerColumns(row []string) ([colCount]int, bool) {
	var cols [colCount]int
	for i := range cols {
		cols[i] = -1
	}
	for i, name := range row {
		if c, ok := headerNames[strings.TrimSpace(textmatch.Fold(name))]; ok && cols[c] < 0 {
			cols[c] = i
		}
	}
	if cols[colStructure] < 0 || cols[colMeaning] < 0 {
		return defaultColumns, false
	}
	return cols, true
}

// parseExampleCell accepts the edit-form layout with "---" separators, or
// alternating Japanese and translation lines.
func parseExampleCell(s string) []models.Example {
	if s == "" {
		return []models.Example{}
	}
	if strings.Contains(s, "\n---\n") {
		return models.ParseExamplesText(s)
	}
	return parseExamples(preprocessExamples(strings.ReplaceAll(s, "\r", "")))
}

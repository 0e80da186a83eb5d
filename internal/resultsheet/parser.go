// Package resultsheet implements the result-record pipeline: parsing the
// two-sheet ledger workbook, building typed student records, ranking, and
// reconciling re-exam corrections. Every function is a pure transformation;
// storage and transport live elsewhere.
package resultsheet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
)

const (
	// CatalogSheet lists subjects, ResultSheet the per-student mark rows.
	CatalogSheet = "Sheet1"
	ResultSheet  = "Sheet2"

	subjectCodeLength = 10
	usnPrefix         = "U"
	headerRows        = 1
)

// Row is one raw student line from the result sheet. Cells are mark
// columns positionally aligned to the workbook's subject order.
type Row struct {
	USN   string
	Name  string
	Cells []string
}

// Workbook is the structured intermediate representation of one ledger
// file: the subject catalog plus the raw student rows.
type Workbook struct {
	Subjects []models.Subject
	Rows     []Row
}

// Parse reads a two-sheet ledger workbook from raw bytes. Rows with an
// invalid subject code or USN are skipped silently; structural problems
// (missing sheet, nothing valid on either sheet) are fatal.
func Parse(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable workbook")
	}
	defer f.Close() //nolint:errcheck

	subjects, err := parseCatalog(f)
	if err != nil {
		return nil, err
	}
	rows, err := parseRows(f)
	if err != nil {
		return nil, err
	}
	return &Workbook{Subjects: subjects, Rows: rows}, nil
}

// Catalog layout: header row, then [index, code, name, maxMarks, passMarks].
func parseCatalog(f *excelize.File) ([]models.Subject, error) {
	rows, err := f.GetRows(CatalogSheet)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrMissingSheet, fmt.Sprintf("worksheet %s not found", CatalogSheet))
	}

	subjects := make([]models.Subject, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if i < headerRows {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(cell(row, 1)))
		if !validSubjectCode(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		maxMarks := parseNumber(cell(row, 3))
		if maxMarks == nil || *maxMarks <= 0 {
			continue
		}
		passMarks := parseNumber(cell(row, 4))
		if passMarks == nil {
			// Hand-edited catalogs occasionally omit the pass column;
			// the institution-wide minimum is 40% of maximum.
			fallback := *maxMarks * 0.4
			passMarks = &fallback
		}
		seen[code] = struct{}{}
		subjects = append(subjects, models.Subject{
			Code:      code,
			Name:      strings.TrimSpace(cell(row, 2)),
			MaxMarks:  *maxMarks,
			PassMarks: *passMarks,
		})
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyCatalog, fmt.Sprintf("no valid subject rows on %s", CatalogSheet))
	}
	return subjects, nil
}

// Result layout: header row, then [usn, name, mark columns in catalog order].
func parseRows(f *excelize.File) ([]Row, error) {
	rows, err := f.GetRows(ResultSheet)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrMissingSheet, fmt.Sprintf("worksheet %s not found", ResultSheet))
	}

	out := make([]Row, 0, len(rows))
	for i, row := range rows {
		if i < headerRows {
			continue
		}
		usn := strings.ToUpper(strings.TrimSpace(cell(row, 0)))
		if usn == "" || !strings.HasPrefix(usn, usnPrefix) {
			continue
		}
		var cells []string
		if len(row) > 2 {
			cells = row[2:]
		}
		out = append(out, Row{
			USN:   usn,
			Name:  strings.ToUpper(strings.TrimSpace(cell(row, 1))),
			Cells: cells,
		})
	}
	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyResults, fmt.Sprintf("no valid student rows on %s", ResultSheet))
	}
	return out, nil
}

func validSubjectCode(code string) bool {
	if len(code) != subjectCodeLength {
		return false
	}
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return true
}

// parseNumber reads a mark cell leniently. Source sheets are hand-edited,
// so anything non-numeric ("AB", "-", "") reads as absent, never an error.
func parseNumber(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseMark reads a mark cell against its subject's maximum. A numeric
// value outside [0, maxMarks] is as untrustworthy as a non-numeric one
// and reads as absent too.
func parseMark(raw string, maxMarks float64) *float64 {
	v := parseNumber(raw)
	if v == nil || *v < 0 || *v > maxMarks {
		return nil
	}
	return v
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

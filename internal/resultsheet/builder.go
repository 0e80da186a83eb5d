package resultsheet

import (
	"math"
	"time"

	"github.com/Chethan77667/Result-BBHC/internal/models"
)

// BuildRecord converts one raw row into a typed student record. Mark
// cells are mapped positionally within the declared subject order; a
// blank, non-numeric, or out-of-range cell means the student was absent
// for that subject, which counts as failing it. Keeping marks inside
// [0, maxMarks] also keeps every derived percentage inside [0, 100].
func BuildRecord(row Row, subjects []models.Subject) models.StudentResult {
	result := models.StudentResult{
		USN:   row.USN,
		Name:  row.Name,
		Marks: make(map[string]models.MarkEntry, len(subjects)),
	}
	for i, sub := range subjects {
		var raw string
		if i < len(row.Cells) {
			raw = row.Cells[i]
		}
		entry := models.MarkEntry{}
		if v := parseMark(raw, sub.MaxMarks); v != nil {
			entry.Marks = v
			entry.Passed = *v >= sub.PassMarks
		}
		result.Marks[sub.Code] = entry
	}
	computeDerived(&result, subjects)
	return result
}

// BuildResultSet runs the full pipeline over a parsed workbook: build one
// record per row, then rank.
func BuildResultSet(wb *Workbook, semester, year string, generatedAt time.Time) *models.ResultSet {
	students := make([]models.StudentResult, 0, len(wb.Rows))
	for _, row := range wb.Rows {
		students = append(students, BuildRecord(row, wb.Subjects))
	}
	return &models.ResultSet{
		Subjects:    wb.Subjects,
		Students:    Rank(students),
		Semester:    semester,
		Year:        year,
		GeneratedAt: generatedAt,
	}
}

// computeDerived recomputes totals, percentage, SGPA, and overall status
// from the record's marks. Shared by the builder and the reconciliation
// engine so an override never leaves derived fields stale.
func computeDerived(st *models.StudentResult, subjects []models.Subject) {
	var total, maxTotal, points float64
	absent := 0
	failed := false
	for _, sub := range subjects {
		maxTotal += sub.MaxMarks
		entry := st.Marks[sub.Code]
		if entry.Absent() {
			absent++
			failed = true
			continue
		}
		total += *entry.Marks
		if sub.MaxMarks > 0 {
			points += *entry.Marks / sub.MaxMarks * 10
		}
		if !entry.Passed {
			failed = true
		}
	}

	st.TotalMarks = total
	st.Percentage = 0
	if maxTotal > 0 {
		st.Percentage = round2(total / maxTotal * 100)
	}
	st.SGPA = 0
	if len(subjects) > 0 {
		st.SGPA = round2(points / float64(len(subjects)))
	}

	switch {
	case absent == len(subjects) && len(subjects) > 0:
		st.Status = models.StatusAbsent
	case failed:
		st.Status = models.StatusFail
	default:
		st.Status = models.StatusPass
	}
}

// round2 rounds half-up to two decimal places.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

package resultsheet

import (
	"fmt"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
)

// Outcome carries the result of merging a re-exam ledger into an existing
// result set: the new set, one audit record per actually-changed mark,
// and the non-fatal warnings collected along the way.
type Outcome struct {
	Updated  *models.ResultSet             `json:"updated"`
	Audit    []models.ReconciliationRecord `json:"audit"`
	Warnings []models.ReconcileWarning     `json:"warnings"`
}

// Reconcile merges a correction workbook into an existing result set.
// The correction may cover a subset of subjects and students. Unknown
// USNs and subject codes become warnings while every resolvable match is
// still applied. The existing set is never mutated; the outcome owns a
// fresh copy with derived fields recomputed for modified students only
// and ranks reassigned globally.
func Reconcile(existing *models.ResultSet, correction []byte) (*Outcome, error) {
	wb, err := Parse(correction)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	byUSN := make(map[string]int, len(updated.Students))
	for i, st := range updated.Students {
		byUSN[st.USN] = i
	}

	outcome := &Outcome{Updated: updated}

	// Resolve the correction catalog against the master catalog. The
	// master's pass/max marks win; the correction column order only maps
	// cells to codes.
	known := make([]bool, len(wb.Subjects))
	for i, sub := range wb.Subjects {
		if _, ok := updated.SubjectByCode(sub.Code); ok {
			known[i] = true
			continue
		}
		outcome.Warnings = append(outcome.Warnings, models.ReconcileWarning{
			Code:        appErrors.ErrUnknownSubject.Code,
			SubjectCode: sub.Code,
			Message:     fmt.Sprintf("subject %s is not part of the existing result set", sub.Code),
		})
	}

	type pending struct {
		recordIdx  []int
		prevPct    float64
		prevStatus models.ResultStatus
	}
	modified := make(map[string]*pending)
	warnedUSN := make(map[string]struct{})

	for _, row := range wb.Rows {
		idx, ok := byUSN[row.USN]
		if !ok {
			if _, dup := warnedUSN[row.USN]; dup {
				continue
			}
			warnedUSN[row.USN] = struct{}{}
			outcome.Warnings = append(outcome.Warnings, models.ReconcileWarning{
				Code:    appErrors.ErrUnknownUSN.Code,
				USN:     row.USN,
				Message: fmt.Sprintf("usn %s is not part of the existing result set", row.USN),
			})
			continue
		}
		student := &updated.Students[idx]

		for i, sub := range wb.Subjects {
			if !known[i] {
				continue
			}
			var raw string
			if i < len(row.Cells) {
				raw = row.Cells[i]
			}
			// An absent or out-of-range cell in the ledger means the
			// subject was not re-attempted; the existing mark stands.
			master, _ := updated.SubjectByCode(sub.Code)
			v := parseMark(raw, master.MaxMarks)
			if v == nil {
				continue
			}
			current := student.Marks[sub.Code]
			if !current.Absent() && *current.Marks == *v {
				continue
			}

			p, started := modified[row.USN]
			if !started {
				p = &pending{prevPct: student.Percentage, prevStatus: student.Status}
				modified[row.USN] = p
			}
			student.Marks[sub.Code] = models.MarkEntry{Marks: v, Passed: *v >= master.PassMarks}
			outcome.Audit = append(outcome.Audit, models.ReconciliationRecord{
				USN:            row.USN,
				SubjectCode:    sub.Code,
				PreviousMarks:  current.Marks,
				NewMarks:       v,
				PreviousStatus: p.prevStatus,
			})
			p.recordIdx = append(p.recordIdx, len(outcome.Audit)-1)
		}
	}

	for usn, p := range modified {
		student := &updated.Students[byUSN[usn]]
		computeDerived(student, updated.Subjects)
		for _, ri := range p.recordIdx {
			outcome.Audit[ri].NewStatus = student.Status
			outcome.Audit[ri].PercentageDelta = round2(student.Percentage - p.prevPct)
		}
	}

	updated.Students = Rank(updated.Students)
	return outcome, nil
}

package models

import "time"

// ResultStatus is the overall outcome of one student's semester.
type ResultStatus string

const (
	StatusPass   ResultStatus = "PASS"
	StatusFail   ResultStatus = "FAIL"
	StatusAbsent ResultStatus = "ABSENT"
)

// Subject describes one catalog entry of a result workbook. Immutable
// after parsing; the slice order mirrors the column order of the sheet.
type Subject struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	MaxMarks  float64 `json:"max_marks"`
	PassMarks float64 `json:"pass_marks"`
}

// MarkEntry holds one subject outcome for one student. Marks is nil when
// the student was absent; absence is never conflated with a zero score.
type MarkEntry struct {
	Marks  *float64 `json:"marks"`
	Passed bool     `json:"passed"`
}

// Absent reports whether no mark was recorded.
func (m MarkEntry) Absent() bool {
	return m.Marks == nil
}

// StudentResult is the per-student record derived from one workbook row.
// Marks is keyed by subject code; iteration order comes from the owning
// ResultSet's Subjects slice.
type StudentResult struct {
	USN        string               `json:"usn"`
	Name       string               `json:"name"`
	Marks      map[string]MarkEntry `json:"marks"`
	TotalMarks float64              `json:"total_marks"`
	Percentage float64              `json:"percentage"`
	SGPA       float64              `json:"sgpa"`
	Status     ResultStatus         `json:"status"`
	Rank       int                  `json:"rank"`
}

// ResultSet owns the subjects and ranked students parsed from one workbook.
type ResultSet struct {
	Subjects    []Subject       `json:"subjects"`
	Students    []StudentResult `json:"students"`
	Semester    string          `json:"semester"`
	Year        string          `json:"year"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SubjectByCode returns the catalog entry for a code, if present.
func (rs *ResultSet) SubjectByCode(code string) (Subject, bool) {
	for _, s := range rs.Subjects {
		if s.Code == code {
			return s, true
		}
	}
	return Subject{}, false
}

// Clone returns a deep copy; reconciliation works on the copy so callers
// may retain the original concurrently.
func (rs *ResultSet) Clone() *ResultSet {
	out := &ResultSet{
		Subjects:    make([]Subject, len(rs.Subjects)),
		Students:    make([]StudentResult, len(rs.Students)),
		Semester:    rs.Semester,
		Year:        rs.Year,
		GeneratedAt: rs.GeneratedAt,
	}
	copy(out.Subjects, rs.Subjects)
	for i, st := range rs.Students {
		cp := st
		cp.Marks = make(map[string]MarkEntry, len(st.Marks))
		for code, entry := range st.Marks {
			if entry.Marks != nil {
				v := *entry.Marks
				entry.Marks = &v
			}
			cp.Marks[code] = entry
		}
		out.Students[i] = cp
	}
	return out
}

// ReconciliationRecord is the audit artifact for one overridden subject
// mark. Never mutated after creation.
type ReconciliationRecord struct {
	USN             string       `json:"usn"`
	SubjectCode     string       `json:"subject_code"`
	PreviousMarks   *float64     `json:"previous_marks"`
	NewMarks        *float64     `json:"new_marks"`
	PreviousStatus  ResultStatus `json:"previous_status"`
	NewStatus       ResultStatus `json:"new_status"`
	PercentageDelta float64      `json:"percentage_delta"`
}

// ReconcileWarning flags a correction entry that could not be matched
// against the existing result set. Warnings are surfaced to the caller,
// never silently dropped.
type ReconcileWarning struct {
	Code        string `json:"code"`
	USN         string `json:"usn,omitempty"`
	SubjectCode string `json:"subject_code,omitempty"`
	Message     string `json:"message"`
}

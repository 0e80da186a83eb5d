// Command compare_results diffs two processed result sets, either JSON
// artifacts produced by the API or raw .xlsx workbooks. It is used to
// verify that a reconciled artifact matches a freshly re-processed
// workbook. Exits non-zero when the sets differ.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	"github.com/Chethan77667/Result-BBHC/internal/resultsheet"
)

type diff struct {
	USN     string
	Field   string
	Left    string
	Right   string
	Missing bool
}

func main() {
	var (
		leftPath  string
		rightPath string
		tolerance float64
	)

	flag.StringVar(&leftPath, "left", "", "First result set (.json artifact or .xlsx workbook)")
	flag.StringVar(&rightPath, "right", "", "Second result set (.json artifact or .xlsx workbook)")
	flag.Float64Var(&tolerance, "tolerance", 0.001, "Numeric comparison tolerance")
	flag.Parse()

	if leftPath == "" || rightPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	left, err := loadResultSet(leftPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", leftPath, err)
	}
	right, err := loadResultSet(rightPath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", rightPath, err)
	}

	diffs := compare(left, right, tolerance)
	printReport(leftPath, rightPath, diffs)
	if len(diffs) > 0 {
		os.Exit(1)
	}
}

func loadResultSet(path string) (*models.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		wb, err := resultsheet.Parse(data)
		if err != nil {
			return nil, err
		}
		return resultsheet.BuildResultSet(wb, "", "", time.Now().UTC()), nil
	}
	var rs models.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func compare(left, right *models.ResultSet, tolerance float64) []diff {
	var diffs []diff

	byUSN := make(map[string]models.StudentResult, len(right.Students))
	for _, st := range right.Students {
		byUSN[st.USN] = st
	}

	for _, l := range left.Students {
		r, ok := byUSN[l.USN]
		if !ok {
			diffs = append(diffs, diff{USN: l.USN, Field: "student", Left: "present", Right: "missing", Missing: true})
			continue
		}
		delete(byUSN, l.USN)

		if math.Abs(l.TotalMarks-r.TotalMarks) > tolerance {
			diffs = append(diffs, numDiff(l.USN, "total_marks", l.TotalMarks, r.TotalMarks))
		}
		if math.Abs(l.Percentage-r.Percentage) > tolerance {
			diffs = append(diffs, numDiff(l.USN, "percentage", l.Percentage, r.Percentage))
		}
		if math.Abs(l.SGPA-r.SGPA) > tolerance {
			diffs = append(diffs, numDiff(l.USN, "sgpa", l.SGPA, r.SGPA))
		}
		if l.Status != r.Status {
			diffs = append(diffs, diff{USN: l.USN, Field: "status", Left: string(l.Status), Right: string(r.Status)})
		}
		if l.Rank != r.Rank {
			diffs = append(diffs, diff{USN: l.USN, Field: "rank", Left: fmt.Sprint(l.Rank), Right: fmt.Sprint(r.Rank)})
		}

		for code, lm := range l.Marks {
			rm, ok := r.Marks[code]
			if !ok {
				diffs = append(diffs, diff{USN: l.USN, Field: "marks." + code, Left: markString(lm), Right: "missing"})
				continue
			}
			if !marksEqual(lm, rm, tolerance) {
				diffs = append(diffs, diff{USN: l.USN, Field: "marks." + code, Left: markString(lm), Right: markString(rm)})
			}
		}
	}

	for usn := range byUSN {
		diffs = append(diffs, diff{USN: usn, Field: "student", Left: "missing", Right: "present", Missing: true})
	}
	return diffs
}

func marksEqual(a, b models.MarkEntry, tolerance float64) bool {
	if a.Absent() != b.Absent() {
		return false
	}
	if a.Absent() {
		return true
	}
	return math.Abs(*a.Marks-*b.Marks) <= tolerance
}

func markString(m models.MarkEntry) string {
	if m.Absent() {
		return "AB"
	}
	return fmt.Sprintf("%.2f", *m.Marks)
}

func numDiff(usn, field string, l, r float64) diff {
	return diff{USN: usn, Field: field, Left: fmt.Sprintf("%.2f", l), Right: fmt.Sprintf("%.2f", r)}
}

func printReport(leftPath, rightPath string, diffs []diff) {
	if len(diffs) == 0 {
		fmt.Printf("MATCH: %s and %s contain identical results\n", leftPath, rightPath)
		return
	}
	fmt.Printf("%-14s %-20s %-16s %-16s\n", "USN", "FIELD", "LEFT", "RIGHT")
	for _, d := range diffs {
		fmt.Printf("%-14s %-20s %-16s %-16s\n", d.USN, d.Field, d.Left, d.Right)
	}
	fmt.Printf("Total diffs: %d\n", len(diffs))
}

package resultsheet

import (
	"sort"

	"github.com/Chethan77667/Result-BBHC/internal/models"
)

// Rank returns a new slice ordered by percentage descending with ties
// broken by USN ascending, and 1-based ranks assigned in that order.
// Students who failed or were absent are ranked too; downstream reports
// expect every student to carry a rank. Idempotent: ranking an already
// ranked slice with unchanged percentages reproduces it exactly.
func Rank(students []models.StudentResult) []models.StudentResult {
	out := make([]models.StudentResult, len(students))
	copy(out, students)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].USN < out[j].USN
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

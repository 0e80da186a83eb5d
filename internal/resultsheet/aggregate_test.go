package resultsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chethan77667/Result-BBHC/internal/models"
)

func TestRankOrdersByPercentageDescending(t *testing.T) {
	students := []models.StudentResult{
		{USN: "U1001", Percentage: 55.5, Status: models.StatusPass},
		{USN: "U1003", Percentage: 91.0, Status: models.StatusPass},
		{USN: "U1002", Percentage: 33.0, Status: models.StatusFail},
	}

	ranked := Rank(students)

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"U1003", "U1001", "U1002"}, []string{ranked[0].USN, ranked[1].USN, ranked[2].USN})
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestRankBreaksTiesByUSN(t *testing.T) {
	students := []models.StudentResult{
		{USN: "U1002", Percentage: 70.0},
		{USN: "U1001", Percentage: 70.0},
	}

	ranked := Rank(students)
	assert.Equal(t, "U1001", ranked[0].USN)
	assert.Equal(t, "U1002", ranked[1].USN)
}

func TestRankIncludesFailedAndAbsentStudents(t *testing.T) {
	students := []models.StudentResult{
		{USN: "U1001", Percentage: 80.0, Status: models.StatusPass},
		{USN: "U1002", Percentage: 0, Status: models.StatusAbsent},
		{USN: "U1003", Percentage: 20.0, Status: models.StatusFail},
	}

	ranked := Rank(students)
	seen := map[int]bool{}
	for _, st := range ranked {
		seen[st.Rank] = true
	}
	// Ranks form exactly 1..N with no gaps regardless of status.
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, seen)
}

func TestRankIsIdempotent(t *testing.T) {
	students := []models.StudentResult{
		{USN: "U1002", Percentage: 70.0},
		{USN: "U1001", Percentage: 70.0},
		{USN: "U1003", Percentage: 12.5},
	}

	once := Rank(students)
	twice := Rank(once)
	assert.Equal(t, once, twice)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	students := []models.StudentResult{
		{USN: "U1002", Percentage: 10.0},
		{USN: "U1001", Percentage: 90.0},
	}

	_ = Rank(students)
	assert.Equal(t, "U1002", students[0].USN)
	assert.Equal(t, 0, students[0].Rank)
}

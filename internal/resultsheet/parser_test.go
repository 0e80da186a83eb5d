package resultsheet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
)

// makeWorkbook renders a two-sheet ledger in memory: catalog rows are
// [index, code, name, maxMarks, passMarks], result rows [usn, name, marks...].
func makeWorkbook(t *testing.T, catalog [][]interface{}, results [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	_, err := f.NewSheet(ResultSheet)
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow(CatalogSheet, "A1", &[]interface{}{"Sl. No", "Code", "Subject", "Max", "Pass"}))
	for i, row := range catalog {
		require.NoError(t, f.SetSheetRow(CatalogSheet, fmt.Sprintf("A%d", i+2), &row))
	}
	require.NoError(t, f.SetSheetRow(ResultSheet, "A1", &[]interface{}{"USN", "Name"}))
	for i, row := range results {
		require.NoError(t, f.SetSheetRow(ResultSheet, fmt.Sprintf("A%d", i+2), &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func makeCatalogOnlyWorkbook(t *testing.T, catalog [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	for i, row := range catalog {
		require.NoError(t, f.SetSheetRow(CatalogSheet, fmt.Sprintf("A%d", i+2), &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseValidWorkbook(t *testing.T) {
	data := makeWorkbook(t,
		[][]interface{}{
			{1, "SUB0000001", "Mathematics I", 100, 40},
			{2, "sub0000002", "Physics I", 100, 40},
			{3, "BAD", "too short, skipped", 100, 40},
			{4, "", ""},
		},
		[][]interface{}{
			{"U1001", "Asha", 55, 61},
			{"u1002", "Bina", 72, 38},
			{"", "trailing blank row"},
			{"X9999", "wrong prefix, skipped", 10, 10},
		},
	)

	wb, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, wb.Subjects, 2)
	assert.Equal(t, "SUB0000001", wb.Subjects[0].Code)
	assert.Equal(t, "SUB0000002", wb.Subjects[1].Code)
	assert.Equal(t, "Mathematics I", wb.Subjects[0].Name)
	assert.Equal(t, 100.0, wb.Subjects[0].MaxMarks)
	assert.Equal(t, 40.0, wb.Subjects[0].PassMarks)

	require.Len(t, wb.Rows, 2)
	assert.Equal(t, "U1001", wb.Rows[0].USN)
	assert.Equal(t, "ASHA", wb.Rows[0].Name)
	assert.Equal(t, []string{"55", "61"}, wb.Rows[0].Cells)
	assert.Equal(t, "U1002", wb.Rows[1].USN)
}

func TestParseSkipsDuplicateSubjectCodes(t *testing.T) {
	data := makeWorkbook(t,
		[][]interface{}{
			{1, "SUB0000001", "Mathematics I", 100, 40},
			{2, "SUB0000001", "Duplicate", 50, 20},
		},
		[][]interface{}{{"U1001", "Asha", 55}},
	)

	wb, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, wb.Subjects, 1)
	assert.Equal(t, "Mathematics I", wb.Subjects[0].Name)
}

func TestParseDefaultsMissingPassMarks(t *testing.T) {
	data := makeWorkbook(t,
		[][]interface{}{{1, "SUB0000001", "Mathematics I", 150}},
		[][]interface{}{{"U1001", "Asha", 90}},
	)

	wb, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, wb.Subjects, 1)
	assert.Equal(t, 60.0, wb.Subjects[0].PassMarks)
}

func TestParseMissingResultSheet(t *testing.T) {
	data := makeCatalogOnlyWorkbook(t, [][]interface{}{{1, "SUB0000001", "Mathematics I", 100, 40}})

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrMissingSheet))
}

func TestParseEmptyCatalog(t *testing.T) {
	data := makeWorkbook(t,
		[][]interface{}{{1, "SHORT", "invalid code", 100, 40}},
		[][]interface{}{{"U1001", "Asha", 55}},
	)

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEmptyCatalog))
}

func TestParseEmptyResults(t *testing.T) {
	data := makeWorkbook(t,
		[][]interface{}{{1, "SUB0000001", "Mathematics I", 100, 40}},
		[][]interface{}{{"", ""}, {"9999", "no prefix"}},
	)

	_, err := Parse(data)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrEmptyResults))
}

func TestParseUnreadableBytes(t *testing.T) {
	_, err := Parse([]byte("not a workbook"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
	"github.com/Chethan77667/Result-BBHC/pkg/jobs"
)

type stubFileRepo struct {
	files    map[string]*models.ResultFile
	created  []*models.ResultFile
	statuses []models.FileStatus
}

func newStubFileRepo() *stubFileRepo {
	return &stubFileRepo{files: map[string]*models.ResultFile{}}
}

func (r *stubFileRepo) Create(_ context.Context, file *models.ResultFile) error {
	if file.ID == "" {
		file.ID = fmt.Sprintf("id-%d", len(r.created)+1)
	}
	r.files[file.Filename] = file
	r.created = append(r.created, file)
	return nil
}

func (r *stubFileRepo) FindByFilename(_ context.Context, filename string) (*models.ResultFile, error) {
	file, ok := r.files[filename]
	if !ok {
		return nil, fmt.Errorf("result file %s not found", filename)
	}
	return file, nil
}

func (r *stubFileRepo) List(_ context.Context, _ models.ResultFileFilter) ([]models.ResultFile, int, error) {
	out := make([]models.ResultFile, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, *f)
	}
	return out, len(out), nil
}

func (r *stubFileRepo) UpdateStatus(_ context.Context, filename string, status models.FileStatus, studentCount int, errorMessage *string) error {
	file, ok := r.files[filename]
	if !ok {
		return fmt.Errorf("result file %s not found", filename)
	}
	file.Status = status
	file.StudentCount = studentCount
	file.ErrorMessage = errorMessage
	r.statuses = append(r.statuses, status)
	return nil
}

type stubStorage struct {
	files map[string][]byte
}

func newStubStorage() *stubStorage {
	return &stubStorage{files: map[string][]byte{}}
}

func (s *stubStorage) Save(filename string, data []byte) (string, error) {
	s.files[filename] = append([]byte(nil), data...)
	return filename, nil
}

func (s *stubStorage) Read(filename string) ([]byte, error) {
	data, ok := s.files[filename]
	if !ok {
		return nil, fmt.Errorf("file %s not found", filename)
	}
	return data, nil
}

func (s *stubStorage) Exists(filename string) bool {
	_, ok := s.files[filename]
	return ok
}

func (s *stubStorage) Delete(filename string) error {
	delete(s.files, filename)
	return nil
}

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// resultWorkbook builds a minimal two-sheet workbook with one catalog
// subject per entry of subjects and one row per entry of students.
func resultWorkbook(t *testing.T, subjects [][]interface{}, students [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Sl", "Code", "Subject", "Max", "Pass"}))
	for i, row := range subjects {
		axis := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &row))
	}

	_, err := f.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet2", "A1", &[]interface{}{"USN", "Name", "M1", "M2"}))
	for i, row := range students {
		axis := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow("Sheet2", axis, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func sampleWorkbook(t *testing.T) []byte {
	t.Helper()
	return resultWorkbook(t,
		[][]interface{}{
			{1, "BCA101MATH", "Mathematics", 100, 40},
			{2, "BCA102PROG", "Programming", 100, 40},
		},
		[][]interface{}{
			{"U1001", "Anil Kumar", 35, 70},
			{"U1002", "Bhavana R", 80, 75},
		},
	)
}

func newTestResultService(t *testing.T) (*ResultService, *stubFileRepo, *stubStorage, *stubQueue) {
	t.Helper()
	repo := newStubFileRepo()
	store := newStubStorage()
	queue := &stubQueue{}
	svc := NewResultService(repo, store, queue, nil, nil, zap.NewNop())
	return svc, repo, store, queue
}

func TestUploadStoresAndQueuesWorkbook(t *testing.T) {
	svc, repo, store, queue := newTestResultService(t)

	file, err := svc.Upload(context.Background(), "III_SEM_2024-25.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	assert.Equal(t, models.FileStatusQueued, file.Status)
	assert.Equal(t, models.FileKindUpload, file.Kind)
	assert.Equal(t, "III", file.Semester)
	assert.Equal(t, "2024-25", file.Year)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeProcessWorkbook, queue.jobs[0].Type)
	assert.Equal(t, file.Filename, queue.jobs[0].Payload)

	assert.True(t, store.Exists(filepath.Join(uploadDir, file.Filename)))
	require.Len(t, repo.created, 1)
}

func TestUploadRejectsNonXLSX(t *testing.T) {
	svc, _, _, _ := newTestResultService(t)

	_, err := svc.Upload(context.Background(), "results.csv", []byte("usn,name"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc, _, _, _ := newTestResultService(t)

	_, err := svc.Upload(context.Background(), "empty.xlsx", nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUploadMarksFailedWhenQueueRejects(t *testing.T) {
	repo := newStubFileRepo()
	store := newStubStorage()
	queue := &stubQueue{err: fmt.Errorf("queue stopped")}
	svc := NewResultService(repo, store, queue, nil, nil, zap.NewNop())

	_, err := svc.Upload(context.Background(), "sem.xlsx", sampleWorkbook(t))
	require.Error(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.FileStatusFailed, repo.created[0].Status)
}

func TestProcessJobProducesRankedResultSet(t *testing.T) {
	svc, repo, store, queue := newTestResultService(t)

	file, err := svc.Upload(context.Background(), "I_SEM_2024-25.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	err = svc.ProcessJob(context.Background(), queue.jobs[0])
	require.NoError(t, err)

	assert.Equal(t, models.FileStatusDone, repo.files[file.Filename].Status)
	assert.Equal(t, 2, repo.files[file.Filename].StudentCount)
	assert.True(t, store.Exists(resultArtifactPath(file.Filename)))

	rs, err := svc.Get(context.Background(), file.Filename)
	require.NoError(t, err)
	require.Len(t, rs.Students, 2)
	assert.Equal(t, "I", rs.Semester)

	// U1002 (77.5%) outranks U1001 (52.5%, failed Mathematics).
	assert.Equal(t, "U1002", rs.Students[0].USN)
	assert.Equal(t, 1, rs.Students[0].Rank)
	assert.Equal(t, models.StatusPass, rs.Students[0].Status)
	assert.Equal(t, "U1001", rs.Students[1].USN)
	assert.Equal(t, models.StatusFail, rs.Students[1].Status)
}

func TestProcessJobMarksFailureOnUnreadableWorkbook(t *testing.T) {
	svc, repo, store, _ := newTestResultService(t)

	filename := "20250110_093000_bad.xlsx"
	_, err := store.Save(filepath.Join(uploadDir, filename), []byte("not a workbook"))
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &models.ResultFile{
		Filename: filename,
		Kind:     models.FileKindUpload,
		Status:   models.FileStatusQueued,
	}))

	err = svc.ProcessJob(context.Background(), jobs.Job{ID: "j1", Type: JobTypeProcessWorkbook, Payload: filename})
	require.NoError(t, err, "parse failures are terminal and must not be retried")
	assert.Equal(t, models.FileStatusFailed, repo.files[filename].Status)
	require.NotNil(t, repo.files[filename].ErrorMessage)
}

func TestGetRejectsUnprocessedFile(t *testing.T) {
	svc, repo, _, _ := newTestResultService(t)

	require.NoError(t, repo.Create(context.Background(), &models.ResultFile{
		Filename: "pending.xlsx",
		Status:   models.FileStatusQueued,
	}))

	_, err := svc.Get(context.Background(), "pending.xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestGetUnknownFilename(t *testing.T) {
	svc, _, _, _ := newTestResultService(t)

	_, err := svc.Get(context.Background(), "missing.xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportRendersCSVWithAbsentMarker(t *testing.T) {
	svc, _, _, queue := newTestResultService(t)

	wb := resultWorkbook(t,
		[][]interface{}{
			{1, "BCA101MATH", "Mathematics", 100, 40},
			{2, "BCA102PROG", "Programming", 100, 40},
		},
		[][]interface{}{
			{"U1001", "Anil Kumar", 65, nil},
		},
	)
	file, err := svc.Upload(context.Background(), "I_SEM_2024.xlsx", wb)
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), queue.jobs[0]))

	content, name, mime, err := svc.Export(context.Background(), file.Filename, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "I_SEM_2024_result.csv", name)
	assert.Equal(t, "text/csv", mime)

	out := string(content)
	assert.Contains(t, out, "BCA101MATH - Mathematics")
	assert.Contains(t, out, "65-PASS")
	assert.Contains(t, out, "AB-FAIL")
	assert.Contains(t, out, "U1001")
}

func TestExportColumnContract(t *testing.T) {
	svc, _, _, queue := newTestResultService(t)

	file, err := svc.Upload(context.Background(), "I_SEM_2024-25.xlsx", sampleWorkbook(t))
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), queue.jobs[0]))

	content, _, _, err := svc.Export(context.Background(), file.Filename, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"Sl. No", "Name", "USN",
		"BCA101MATH - Mathematics", "BCA102PROG - Programming",
		"Total Marks", "Percentage", "SGPA", "Status", "Rank",
	}, rows[0])

	// Rank order: U1002 (77.5) first, with per-subject mark-status pairs.
	assert.Equal(t, "U1002", rows[1][2])
	assert.Equal(t, "80-PASS", rows[1][3])
	assert.Equal(t, "U1001", rows[2][2])
	assert.Equal(t, "35-FAIL", rows[2][3])
	assert.Equal(t, "70-PASS", rows[2][4])
}

func TestExportXLSXRoundTrips(t *testing.T) {
	svc, _, _, queue := newTestResultService(t)

	file, err := svc.Upload(context.Background(), "II_SEM_2024-25.xlsx", sampleWorkbook(t))
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), queue.jobs[0]))

	content, name, _, err := svc.Export(context.Background(), file.Filename, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "II_SEM_2024-25_result.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Sl. No", rows[0][0])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _, _, queue := newTestResultService(t)

	file, err := svc.Upload(context.Background(), "sem.xlsx", sampleWorkbook(t))
	require.NoError(t, err)
	require.NoError(t, svc.ProcessJob(context.Background(), queue.jobs[0]))

	_, _, _, err = svc.Export(context.Background(), file.Filename, "docx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestListRejectsInvalidFilter(t *testing.T) {
	svc, _, _, _ := newTestResultService(t)

	_, _, err := svc.List(context.Background(), models.ResultFileFilter{Kind: "bogus"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), models.ResultFileFilter{PageSize: 5000})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestInferSemesterAndYear(t *testing.T) {
	cases := []struct {
		filename string
		semester string
		year     string
	}{
		{"III_SEM_2024-25.xlsx", "III", "2024-25"},
		{"i sem results 2023.xlsx", "I", "2023"},
		{"IV-sem-2024_25.xlsx", "IV", "2024-25"},
		{"results.xlsx", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.semester, inferSemester(tc.filename), tc.filename)
		assert.Equal(t, tc.year, inferYear(tc.filename), tc.filename)
	}
}

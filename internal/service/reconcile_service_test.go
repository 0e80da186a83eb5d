package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
)

func newTestReconcileService(t *testing.T) (*ReconcileService, *ResultService, *stubFileRepo, *stubStorage, *stubQueue) {
	t.Helper()
	repo := newStubFileRepo()
	store := newStubStorage()
	queue := &stubQueue{}
	results := NewResultService(repo, store, queue, nil, nil, zap.NewNop())
	reconcile := NewReconcileService(results, repo, store, nil, nil, zap.NewNop())
	return reconcile, results, repo, store, queue
}

func processedFixture(t *testing.T, results *ResultService, queue *stubQueue) string {
	t.Helper()
	file, err := results.Upload(context.Background(), "I_SEM_2024-25.xlsx", sampleWorkbook(t))
	require.NoError(t, err)
	require.NoError(t, results.ProcessJob(context.Background(), queue.jobs[len(queue.jobs)-1]))
	return file.Filename
}

func correctionWorkbook(t *testing.T) []byte {
	t.Helper()
	return resultWorkbook(t,
		[][]interface{}{
			{1, "BCA101MATH", "Mathematics", 100, 40},
		},
		[][]interface{}{
			{"U1001", "Anil Kumar", 45},
		},
	)
}

func TestReconcileAppliesCorrection(t *testing.T) {
	reconcile, results, _, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	summary, err := reconcile.Reconcile(context.Background(), filename, "I_SEM_reexam.xlsx", correctionWorkbook(t))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AppliedCount)
	assert.Equal(t, 1, summary.StudentsUpdated)
	assert.Empty(t, summary.Warnings)

	require.Len(t, summary.Audit, 1)
	rec := summary.Audit[0]
	assert.Equal(t, "U1001", rec.USN)
	assert.Equal(t, "BCA101MATH", rec.SubjectCode)
	require.NotNil(t, rec.PreviousMarks)
	assert.InDelta(t, 35.0, *rec.PreviousMarks, 0.001)
	require.NotNil(t, rec.NewMarks)
	assert.InDelta(t, 45.0, *rec.NewMarks, 0.001)
	assert.Equal(t, models.StatusFail, rec.PreviousStatus)
	assert.Equal(t, models.StatusPass, rec.NewStatus)
	assert.InDelta(t, 5.0, rec.PercentageDelta, 0.001)

	// The stored artifact now reflects the corrected marks.
	rs, err := results.Get(context.Background(), filename)
	require.NoError(t, err)
	var corrected *models.StudentResult
	for i := range rs.Students {
		if rs.Students[i].USN == "U1001" {
			corrected = &rs.Students[i]
		}
	}
	require.NotNil(t, corrected)
	assert.InDelta(t, 57.5, corrected.Percentage, 0.001)
	assert.Equal(t, models.StatusPass, corrected.Status)
}

func TestReconcileArchivesCorrectionMetadata(t *testing.T) {
	reconcile, results, repo, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	_, err := reconcile.Reconcile(context.Background(), filename, "I_SEM_reexam.xlsx", correctionWorkbook(t))
	require.NoError(t, err)

	var reexam *models.ResultFile
	for _, f := range repo.created {
		if f.Kind == models.FileKindReexam {
			reexam = f
		}
	}
	require.NotNil(t, reexam)
	assert.Equal(t, models.FileStatusDone, reexam.Status)
	assert.Equal(t, 1, reexam.StudentCount)
	assert.Equal(t, "I", reexam.Semester)
}

func TestReconcileAccumulatesAuditTrail(t *testing.T) {
	reconcile, results, _, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	_, err := reconcile.Reconcile(context.Background(), filename, "reexam1.xlsx", correctionWorkbook(t))
	require.NoError(t, err)

	second := resultWorkbook(t,
		[][]interface{}{
			{1, "BCA102PROG", "Programming", 100, 40},
		},
		[][]interface{}{
			{"U1002", "Bhavana R", 90},
		},
	)
	_, err = reconcile.Reconcile(context.Background(), filename, "reexam2.xlsx", second)
	require.NoError(t, err)

	records, err := reconcile.Audit(context.Background(), filename)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "U1001", records[0].USN)
	assert.Equal(t, "U1002", records[1].USN)
}

func TestReconcileSurfacesWarnings(t *testing.T) {
	reconcile, results, _, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	correction := resultWorkbook(t,
		[][]interface{}{
			{1, "BCA101MATH", "Mathematics", 100, 40},
		},
		[][]interface{}{
			{"U9999", "Unknown Student", 50},
		},
	)
	summary, err := reconcile.Reconcile(context.Background(), filename, "reexam.xlsx", correction)
	require.NoError(t, err)

	assert.Zero(t, summary.AppliedCount)
	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, appErrors.ErrUnknownUSN.Code, summary.Warnings[0].Code)
	assert.Equal(t, "U9999", summary.Warnings[0].USN)
}

func TestReconcileUnknownFile(t *testing.T) {
	reconcile, _, _, _, _ := newTestReconcileService(t)

	_, err := reconcile.Reconcile(context.Background(), "missing.xlsx", "reexam.xlsx", correctionWorkbook(t))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAuditEmptyWithoutReconciliation(t *testing.T) {
	reconcile, results, _, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	records, err := reconcile.Audit(context.Background(), filename)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditCSVRendersTrail(t *testing.T) {
	reconcile, results, _, _, queue := newTestReconcileService(t)
	filename := processedFixture(t, results, queue)

	_, err := reconcile.Reconcile(context.Background(), filename, "reexam.xlsx", correctionWorkbook(t))
	require.NoError(t, err)

	content, name, err := reconcile.AuditCSV(context.Background(), filename)
	require.NoError(t, err)
	assert.Contains(t, name, "_audit.csv")
	out := string(content)
	assert.Contains(t, out, "BCA101MATH")
	assert.Contains(t, out, "PASS")
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	"github.com/Chethan77667/Result-BBHC/internal/resultsheet"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
	"github.com/Chethan77667/Result-BBHC/pkg/export"
	"github.com/Chethan77667/Result-BBHC/pkg/jobs"
)

// JobTypeProcessWorkbook is the queue job type for parsing an uploaded
// workbook into a ranked result set.
const JobTypeProcessWorkbook = "process_workbook"

const (
	uploadDir = "uploads"
	resultDir = "results"
)

type resultFileRepository interface {
	Create(ctx context.Context, file *models.ResultFile) error
	FindByFilename(ctx context.Context, filename string) (*models.ResultFile, error)
	List(ctx context.Context, filter models.ResultFileFilter) ([]models.ResultFile, int, error)
	UpdateStatus(ctx context.Context, filename string, status models.FileStatus, studentCount int, errorMessage *string) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Exists(filename string) bool
	Delete(filename string) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

// ExportFormat is a supported download format for processed results.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
	FormatXLSX ExportFormat = "xlsx"
)

// ResultService owns the upload-to-ranked-results pipeline: it stores
// workbooks, queues them for processing, and serves the derived result
// sets and their export renditions.
type ResultService struct {
	repo     resultFileRepository
	storage  fileStorage
	queue    jobQueue
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	validate *validator.Validate
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     xlsxRenderer
}

// NewResultService constructs a ResultService.
func NewResultService(repo resultFileRepository, storage fileStorage, queue jobQueue, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	_ = validate.RegisterValidation("file_kind", func(fl validator.FieldLevel) bool {
		switch models.FileKind(fl.Field().String()) {
		case models.FileKindUpload, models.FileKindResult, models.FileKindReexam:
			return true
		}
		return false
	})
	return &ResultService{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		validate: validate,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		xlsx:     export.NewXLSXExporter(),
	}
}

// AttachQueue sets the processing queue. The queue is constructed after
// the service because its handler is ProcessJob.
func (s *ResultService) AttachQueue(q jobQueue) {
	s.queue = q
}

// Upload stores a workbook under a timestamped name, records its
// metadata, and queues it for asynchronous processing.
func (s *ResultService) Upload(ctx context.Context, originalName string, data []byte) (*models.ResultFile, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	if !strings.EqualFold(filepath.Ext(originalName), ".xlsx") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .xlsx workbooks are accepted")
	}

	storedName := timestampedName(originalName, time.Now().UTC())
	if _, err := s.storage.Save(filepath.Join(uploadDir, storedName), data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store workbook")
	}

	file := &models.ResultFile{
		Filename: storedName,
		Kind:     models.FileKindUpload,
		Semester: inferSemester(originalName),
		Year:     inferYear(originalName),
		Status:   models.FileStatusQueued,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		return nil, appErrors.FromError(err)
	}

	if s.queue == nil {
		msg := "processing queue is not configured"
		_ = s.repo.UpdateStatus(ctx, storedName, models.FileStatusFailed, 0, &msg)
		return nil, appErrors.Clone(appErrors.ErrInternal, msg)
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeProcessWorkbook, Payload: storedName}
	if err := s.queue.Enqueue(job); err != nil {
		msg := "failed to queue workbook for processing"
		_ = s.repo.UpdateStatus(ctx, storedName, models.FileStatusFailed, 0, &msg)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}

	s.logger.Info("workbook queued",
		zap.String("filename", storedName),
		zap.String("semester", file.Semester),
		zap.String("year", file.Year))
	return file, nil
}

// ProcessJob is the queue handler that turns a stored workbook into a
// ranked result set artifact. Parse failures are terminal; the file is
// marked failed and the job is not retried.
func (s *ResultService) ProcessJob(ctx context.Context, job jobs.Job) error {
	filename := job.Payload
	start := time.Now()

	if err := s.repo.UpdateStatus(ctx, filename, models.FileStatusProcessing, 0, nil); err != nil {
		return err
	}

	rs, err := s.process(ctx, filename)
	if err != nil {
		msg := err.Error()
		_ = s.repo.UpdateStatus(ctx, filename, models.FileStatusFailed, 0, &msg)
		if s.metrics != nil {
			s.metrics.ObserveProcessing(string(models.FileKindUpload), false, time.Since(start))
		}
		s.logger.Error("workbook processing failed", zap.String("filename", filename), zap.Error(err))
		if appErr := appErrors.FromError(err); appErr.Status < 500 {
			return nil
		}
		return err
	}

	if err := s.repo.UpdateStatus(ctx, filename, models.FileStatusDone, len(rs.Students), nil); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, resultCacheKey(filename), rs, 0)
	}
	if s.metrics != nil {
		s.metrics.ObserveProcessing(string(models.FileKindUpload), true, time.Since(start))
	}
	s.logger.Info("workbook processed",
		zap.String("filename", filename),
		zap.Int("students", len(rs.Students)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *ResultService) process(ctx context.Context, filename string) (*models.ResultSet, error) {
	raw, err := s.storage.Read(filepath.Join(uploadDir, filename))
	if err != nil {
		return nil, fmt.Errorf("read stored workbook: %w", err)
	}

	wb, err := resultsheet.Parse(raw)
	if err != nil {
		return nil, err
	}

	file, err := s.repo.FindByFilename(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("load workbook metadata: %w", err)
	}

	rs := resultsheet.BuildResultSet(wb, file.Semester, file.Year, time.Now().UTC())
	if err := s.saveResultSet(filename, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Get returns the processed result set for a stored workbook. The cache
// is consulted first; on a miss the JSON artifact is loaded from disk.
func (s *ResultService) Get(ctx context.Context, filename string) (*models.ResultSet, error) {
	var cached models.ResultSet
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, resultCacheKey(filename), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	file, err := s.repo.FindByFilename(ctx, filename)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("result file %s not found", filename))
	}
	switch file.Status {
	case models.FileStatusDone:
	case models.FileStatusFailed:
		msg := "workbook processing failed"
		if file.ErrorMessage != nil {
			msg = *file.ErrorMessage
		}
		return nil, appErrors.New("PROCESSING_FAILED", 422, msg)
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "workbook is still being processed")
	}

	rs, err := s.loadResultSet(filename)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, resultCacheKey(filename), rs, 0)
	}
	return rs, nil
}

// List returns stored file metadata matching the filter.
func (s *ResultService) List(ctx context.Context, filter models.ResultFileFilter) ([]models.ResultFile, models.Pagination, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	files, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.FromError(err)
	}
	return files, models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Export renders the processed result set in the requested format and
// returns the content, download filename, and MIME type.
func (s *ResultService) Export(ctx context.Context, filename string, format ExportFormat) ([]byte, string, string, error) {
	rs, err := s.Get(ctx, filename)
	if err != nil {
		return nil, "", "", err
	}

	data := buildResultDataset(rs)
	base := downloadBaseName(rs, filename)

	switch format {
	case FormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.FromError(err)
		}
		return content, base + ".csv", "text/csv", nil
	case FormatPDF:
		title := fmt.Sprintf("Semester %s Results %s", rs.Semester, rs.Year)
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", "", appErrors.FromError(err)
		}
		return content, base + ".pdf", "application/pdf", nil
	case FormatXLSX, "":
		content, err := s.xlsx.Render(data, "Results")
		if err != nil {
			return nil, "", "", appErrors.FromError(err)
		}
		return content, base + ".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *ResultService) saveResultSet(filename string, rs *models.ResultSet) error {
	payload, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal result set: %w", err)
	}
	if _, err := s.storage.Save(resultArtifactPath(filename), payload); err != nil {
		return fmt.Errorf("store result set: %w", err)
	}
	return nil
}

func (s *ResultService) loadResultSet(filename string) (*models.ResultSet, error) {
	raw, err := s.storage.Read(resultArtifactPath(filename))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("processed results for %s not found", filename))
	}
	var rs models.ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode result set: %w", err)
	}
	return &rs, nil
}

func resultArtifactPath(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return filepath.Join(resultDir, stem+".json")
}

func resultCacheKey(filename string) string {
	return "resultset:" + filename
}

// timestampedName prefixes the sanitized original filename with an UTC
// timestamp so repeated uploads of the same workbook never collide.
func timestampedName(originalName string, now time.Time) string {
	base := filepath.Base(originalName)
	base = strings.ReplaceAll(base, " ", "_")
	return now.Format("20060102_150405") + "_" + base
}

var (
	semesterPattern = regexp.MustCompile(`(?i)(?:^|[_\s-])(i{1,3}|iv|v|vi{1,3}|ix|x)(?:[_\s-]?sem)`)
	yearPattern     = regexp.MustCompile(`(20\d{2}[-_]\d{2,4}|20\d{2})`)
)

// inferSemester extracts a roman-numeral semester tag from filenames such
// as "III_SEM_2024-25.xlsx". Returns "" when no tag is present.
func inferSemester(filename string) string {
	m := semesterPattern.FindStringSubmatch(filename)
	if len(m) < 2 {
		return ""
	}
	return strings.ToUpper(m[1])
}

// inferYear extracts an academic year such as "2024-25" or "2024".
func inferYear(filename string) string {
	return strings.ReplaceAll(yearPattern.FindString(filename), "_", "-")
}

func downloadBaseName(rs *models.ResultSet, filename string) string {
	if rs.Semester != "" && rs.Year != "" {
		return fmt.Sprintf("%s_SEM_%s_result", rs.Semester, rs.Year)
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "_result"
}

// buildResultDataset flattens a ranked result set into the tabular form
// shared by the CSV, PDF, and XLSX renderers. Each subject column is
// headed "CODE - Name" and holds a mark-status pair ("45-PASS",
// "AB-FAIL") so per-subject outcomes survive the export.
func buildResultDataset(rs *models.ResultSet) export.Dataset {
	headers := []string{"Sl. No", "Name", "USN"}
	for _, subject := range rs.Subjects {
		headers = append(headers, subjectColumn(subject))
	}
	headers = append(headers, "Total Marks", "Percentage", "SGPA", "Status", "Rank")

	rows := make([]map[string]string, 0, len(rs.Students))
	for i, st := range rs.Students {
		row := map[string]string{
			"Sl. No":      fmt.Sprintf("%d", i+1),
			"Name":        st.Name,
			"USN":         st.USN,
			"Total Marks": formatNumber(st.TotalMarks),
			"Percentage":  fmt.Sprintf("%.2f", st.Percentage),
			"SGPA":        fmt.Sprintf("%.2f", st.SGPA),
			"Status":      string(st.Status),
			"Rank":        fmt.Sprintf("%d", st.Rank),
		}
		for _, subject := range rs.Subjects {
			row[subjectColumn(subject)] = subjectCell(st.Marks[subject.Code])
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func subjectColumn(subject models.Subject) string {
	return subject.Code + " - " + subject.Name
}

func subjectCell(entry models.MarkEntry) string {
	if entry.Absent() {
		return "AB-" + string(models.StatusFail)
	}
	status := models.StatusFail
	if entry.Passed {
		status = models.StatusPass
	}
	return formatNumber(*entry.Marks) + "-" + string(status)
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

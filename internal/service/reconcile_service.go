package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	"github.com/Chethan77667/Result-BBHC/internal/resultsheet"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
	"github.com/Chethan77667/Result-BBHC/pkg/export"
)

const (
	reexamDir = "reexams"
	auditDir  = "audits"
)

// ReconcileSummary is the response payload for a reconciliation run.
type ReconcileSummary struct {
	Filename        string                        `json:"filename"`
	AppliedCount    int                           `json:"applied_count"`
	Audit           []models.ReconciliationRecord `json:"audit"`
	Warnings        []models.ReconcileWarning     `json:"warnings,omitempty"`
	ReconciledAt    time.Time                     `json:"reconciled_at"`
	StudentsUpdated int                           `json:"students_updated"`
}

// ReconcileService overlays re-exam correction ledgers onto processed
// result sets and keeps a cumulative audit trail per result file.
type ReconcileService struct {
	results *ResultService
	repo    resultFileRepository
	storage fileStorage
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	csv     csvRenderer
}

// NewReconcileService constructs a ReconcileService.
func NewReconcileService(results *ResultService, repo resultFileRepository, storage fileStorage, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		results: results,
		repo:    repo,
		storage: storage,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		csv:     export.NewCSVExporter(),
	}
}

// Reconcile applies a correction workbook to the processed result set for
// filename. The updated set replaces the stored artifact, the correction
// file is archived, and audit records are appended to the cumulative
// trail. Unknown USNs or subject codes surface as warnings, not errors.
func (s *ReconcileService) Reconcile(ctx context.Context, filename, correctionName string, correction []byte) (*ReconcileSummary, error) {
	existing, err := s.results.Get(ctx, filename)
	if err != nil {
		return nil, err
	}

	outcome, err := resultsheet.Reconcile(existing, correction)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if err := s.results.saveResultSet(filename, outcome.Updated); err != nil {
		return nil, appErrors.FromError(err)
	}

	archived := timestampedName(correctionName, now)
	if _, err := s.storage.Save(filepath.Join(reexamDir, archived), correction); err != nil {
		s.logger.Warn("failed to archive correction workbook", zap.String("filename", archived), zap.Error(err))
	} else {
		meta := &models.ResultFile{
			Filename:     archived,
			Kind:         models.FileKindReexam,
			Semester:     existing.Semester,
			Year:         existing.Year,
			Status:       models.FileStatusDone,
			StudentCount: countDistinctStudents(outcome.Audit),
		}
		if err := s.repo.Create(ctx, meta); err != nil {
			s.logger.Warn("failed to record correction metadata", zap.String("filename", archived), zap.Error(err))
		}
	}

	if err := s.appendAudit(filename, outcome.Audit); err != nil {
		s.logger.Warn("failed to persist audit trail", zap.String("filename", filename), zap.Error(err))
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, resultCacheKey(filename))
		_ = s.cache.Set(ctx, resultCacheKey(filename), outcome.Updated, 0)
	}
	if s.metrics != nil {
		s.metrics.ObserveReconciliation(len(outcome.Audit), len(outcome.Warnings))
	}

	s.logger.Info("reconciliation complete",
		zap.String("filename", filename),
		zap.Int("applied", len(outcome.Audit)),
		zap.Int("warnings", len(outcome.Warnings)))

	return &ReconcileSummary{
		Filename:        filename,
		AppliedCount:    len(outcome.Audit),
		Audit:           outcome.Audit,
		Warnings:        outcome.Warnings,
		ReconciledAt:    now,
		StudentsUpdated: countDistinctStudents(outcome.Audit),
	}, nil
}

// Audit returns the cumulative audit trail for a result file.
func (s *ReconcileService) Audit(ctx context.Context, filename string) ([]models.ReconciliationRecord, error) {
	if _, err := s.repo.FindByFilename(ctx, filename); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("result file %s not found", filename))
	}
	records, err := s.loadAudit(filename)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AuditCSV renders the cumulative audit trail as CSV for download.
func (s *ReconcileService) AuditCSV(ctx context.Context, filename string) ([]byte, string, error) {
	records, err := s.Audit(ctx, filename)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"USN", "Subject Code", "Previous Marks", "New Marks", "Previous Status", "New Status", "Percentage Delta"}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]string{
			"USN":              rec.USN,
			"Subject Code":     rec.SubjectCode,
			"Previous Marks":   formatAuditMark(rec.PreviousMarks),
			"New Marks":        formatAuditMark(rec.NewMarks),
			"Previous Status":  string(rec.PreviousStatus),
			"New Status":       string(rec.NewStatus),
			"Percentage Delta": fmt.Sprintf("%.2f", rec.PercentageDelta),
		})
	}

	content, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, "", appErrors.FromError(err)
	}
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return content, stem + "_audit.csv", nil
}

func (s *ReconcileService) appendAudit(filename string, records []models.ReconciliationRecord) error {
	if len(records) == 0 {
		return nil
	}
	existing, err := s.loadAudit(filename)
	if err != nil {
		return err
	}
	combined := append(existing, records...)
	payload, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("marshal audit trail: %w", err)
	}
	if _, err := s.storage.Save(auditPath(filename), payload); err != nil {
		return fmt.Errorf("store audit trail: %w", err)
	}
	return nil
}

func (s *ReconcileService) loadAudit(filename string) ([]models.ReconciliationRecord, error) {
	path := auditPath(filename)
	if !s.storage.Exists(path) {
		return []models.ReconciliationRecord{}, nil
	}
	raw, err := s.storage.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	var records []models.ReconciliationRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode audit trail: %w", err)
	}
	return records, nil
}

func auditPath(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return filepath.Join(auditDir, stem+"_audit.json")
}

func countDistinctStudents(records []models.ReconciliationRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.USN] = struct{}{}
	}
	return len(seen)
}

func formatAuditMark(v *float64) string {
	if v == nil {
		return "AB"
	}
	return formatNumber(*v)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Chethan77667/Result-BBHC/internal/models"
)

// ResultFileRepository persists per-artifact metadata used for listing
// and search.
type ResultFileRepository struct {
	db *sqlx.DB
}

// NewResultFileRepository creates a new result file repository.
func NewResultFileRepository(db *sqlx.DB) *ResultFileRepository {
	return &ResultFileRepository{db: db}
}

// Create inserts a metadata record for a stored artifact.
func (r *ResultFileRepository) Create(ctx context.Context, file *models.ResultFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO result_files (id, filename, kind, semester, year, status, student_count, uploaded_at)
        VALUES (:id, :filename, :kind, :semester, :year, :status, :student_count, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	return nil
}

// FindByFilename returns the metadata record for a stored filename.
func (r *ResultFileRepository) FindByFilename(ctx context.Context, filename string) (*models.ResultFile, error) {
	const query = `SELECT id, filename, kind, semester, year, status, student_count, uploaded_at, processed_at, error_message
        FROM result_files WHERE filename = $1`
	var file models.ResultFile
	if err := r.db.GetContext(ctx, &file, query, filename); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns metadata records matching the filter along with the total count.
func (r *ResultFileRepository) List(ctx context.Context, filter models.ResultFileFilter) ([]models.ResultFile, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND filename ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Kind != "" {
		where += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, filter.Kind)
	}
	if filter.Semester != "" {
		where += fmt.Sprintf(" AND semester = $%d", len(args)+1)
		args = append(args, filter.Semester)
	}
	if filter.Year != "" {
		where += fmt.Sprintf(" AND year = $%d", len(args)+1)
		args = append(args, filter.Year)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM result_files"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count result files: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	query := `SELECT id, filename, kind, semester, year, status, student_count, uploaded_at, processed_at, error_message
        FROM result_files` + where + fmt.Sprintf(" ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var files []models.ResultFile
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list result files: %w", err)
	}
	return files, total, nil
}

// UpdateStatus transitions the processing state of a stored workbook.
func (r *ResultFileRepository) UpdateStatus(ctx context.Context, filename string, status models.FileStatus, studentCount int, errorMessage *string) error {
	const query = `UPDATE result_files
        SET status = $2, student_count = $3, error_message = $4,
            processed_at = CASE WHEN $2 IN ('done', 'failed') THEN NOW() ELSE processed_at END
        WHERE filename = $1`
	res, err := r.db.ExecContext(ctx, query, filename, status, studentCount, errorMessage)
	if err != nil {
		return fmt.Errorf("update result file status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("result file %s not found", filename)
	}
	return nil
}

// Delete removes the metadata record for a filename.
func (r *ResultFileRepository) Delete(ctx context.Context, filename string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM result_files WHERE filename = $1`, filename); err != nil {
		return fmt.Errorf("delete result file: %w", err)
	}
	return nil
}

package models

import "time"

// FileKind distinguishes stored workbook artifacts.
type FileKind string

const (
	FileKindUpload FileKind = "upload"
	FileKindResult FileKind = "result"
	FileKindReexam FileKind = "reexam"
)

// FileStatus tracks the processing lifecycle of an uploaded workbook.
type FileStatus string

const (
	FileStatusQueued     FileStatus = "queued"
	FileStatusProcessing FileStatus = "processing"
	FileStatusDone       FileStatus = "done"
	FileStatusFailed     FileStatus = "failed"
)

// ResultFile is the metadata record kept per stored artifact. It is used
// only for listing and search; the processing core never reads it.
type ResultFile struct {
	ID           string     `db:"id" json:"id"`
	Filename     string     `db:"filename" json:"filename"`
	Kind         FileKind   `db:"kind" json:"kind"`
	Semester     string     `db:"semester" json:"semester"`
	Year         string     `db:"year" json:"year"`
	Status       FileStatus `db:"status" json:"status"`
	StudentCount int        `db:"student_count" json:"student_count"`
	UploadedAt   time.Time  `db:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
}

// ResultFileFilter captures supported filters for listing stored files.
type ResultFileFilter struct {
	Search   string   `validate:"max=255"`
	Kind     FileKind `validate:"omitempty,file_kind"`
	Semester string   `validate:"max=16"`
	Year     string   `validate:"max=16"`
	Page     int      `validate:"min=0"`
	PageSize int      `validate:"min=0,max=200"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Chethan77667/Result-BBHC/internal/models"
	"github.com/Chethan77667/Result-BBHC/internal/service"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
	"github.com/Chethan77667/Result-BBHC/pkg/response"
)

// ResultHandler exposes the workbook upload and result retrieval endpoints.
type ResultHandler struct {
	results        *service.ResultService
	maxUploadBytes int64
}

// NewResultHandler constructs the result handler.
func NewResultHandler(results *service.ResultService, maxUploadBytes int64) *ResultHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ResultHandler{results: results, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a result workbook and queues it for processing.
// @Summary Upload result workbook
// @Tags Results
// @Accept mpfd
// @Produce json
// @Param file formData file true "Two-sheet .xlsx workbook (catalog + marks)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results/upload [post]
func (h *ResultHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required"))
		return
	}
	if header.Size > h.maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUploadBytes)))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}
	defer src.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte upload limit", h.maxUploadBytes)))
		return
	}

	file, err := h.results.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// List returns metadata for stored result files.
// @Summary List stored result files
// @Tags Results
// @Produce json
// @Param search query string false "Filter by filename substring"
// @Param kind query string false "upload, result, or reexam"
// @Param semester query string false "Filter by semester"
// @Param year query string false "Filter by academic year"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	filter := models.ResultFileFilter{
		Search:   c.Query("search"),
		Kind:     models.FileKind(c.Query("kind")),
		Semester: c.Query("semester"),
		Year:     c.Query("year"),
	}
	if raw := c.Query("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil {
			filter.Page = page
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			filter.PageSize = size
		}
	}

	files, pagination, err := h.results.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, &pagination)
}

// Get returns the processed, ranked result set for a stored workbook.
// @Summary Get processed results
// @Tags Results
// @Produce json
// @Param filename path string true "Stored workbook filename"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/{filename} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	rs, err := h.results.Get(c.Request.Context(), c.Param("filename"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rs, nil)
}

// Export streams the processed results in the requested format.
// @Summary Export processed results
// @Tags Results
// @Produce octet-stream
// @Param filename path string true "Stored workbook filename"
// @Param format query string false "xlsx (default), csv, or pdf"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /results/{filename}/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatXLSX)))
	content, name, contentType, err := h.results.Export(c.Request.Context(), c.Param("filename"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, content)
}

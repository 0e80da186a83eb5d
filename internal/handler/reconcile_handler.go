package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Chethan77667/Result-BBHC/internal/service"
	appErrors "github.com/Chethan77667/Result-BBHC/pkg/errors"
	"github.com/Chethan77667/Result-BBHC/pkg/response"
)

// ReconcileHandler exposes re-exam reconciliation and the audit trail.
type ReconcileHandler struct {
	reconcile      *service.ReconcileService
	maxUploadBytes int64
}

// NewReconcileHandler constructs the reconcile handler.
func NewReconcileHandler(reconcile *service.ReconcileService, maxUploadBytes int64) *ReconcileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ReconcileHandler{reconcile: reconcile, maxUploadBytes: maxUploadBytes}
}

// Reconcile applies a correction workbook to a processed result set.
// Unknown USNs or subject codes in the correction are returned as
// warnings alongside the applied corrections.
// @Summary Reconcile re-exam corrections
// @Tags Reconciliation
// @Accept mpfd
// @Produce json
// @Param filename path string true "Stored workbook filename"
// @Param file formData file true "Correction .xlsx workbook"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/{filename}/reconcile [post]
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
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

	summary, err := h.reconcile.Reconcile(c.Request.Context(), c.Param("filename"), header.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(summary.Warnings) > 0 {
		response.JSONWithWarnings(c, http.StatusOK, summary, summary.Warnings)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Audit returns the cumulative reconciliation audit trail for a result
// file, as JSON by default or CSV when format=csv.
// @Summary Get reconciliation audit trail
// @Tags Reconciliation
// @Produce json
// @Param filename path string true "Stored workbook filename"
// @Param format query string false "json (default) or csv"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/{filename}/audit [get]
func (h *ReconcileHandler) Audit(c *gin.Context) {
	filename := c.Param("filename")
	if c.Query("format") == "csv" {
		content, name, err := h.reconcile.AuditCSV(c.Request.Context(), filename)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "text/csv", content)
		return
	}

	records, err := h.reconcile.Audit(c.Request.Context(), filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

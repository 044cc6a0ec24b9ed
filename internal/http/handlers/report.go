package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/charity-iap-backend/internal/http/response"
	"github.com/yungbote/charity-iap-backend/internal/modules/reports"
	"github.com/yungbote/charity-iap-backend/internal/platform/dbctx"
	"github.com/yungbote/charity-iap-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/admin/reports/:month?async=true|false
func (h *ReportHandler) Generate(c *gin.Context) {
	month := c.Param("month")
	async, err := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_async", err)
		return
	}

	if async {
		job, err := h.reports.EnqueueGenerate(dbctx.Context{Ctx: c.Request.Context()}, month)
		if err != nil {
			respondReportError(c, "enqueue_failed", err)
			return
		}
		response.RespondAccepted(c, gin.H{"job": job})
		return
	}

	report, err := h.reports.Generate(c.Request.Context(), month)
	if err != nil {
		respondReportError(c, "generate_report_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

// GET /api/admin/reports/:month
func (h *ReportHandler) GetReport(c *gin.Context) {
	report, err := h.reports.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("month"))
	if err != nil {
		respondReportError(c, "load_report_failed", err)
		return
	}
	if report == nil {
		response.RespondError(c, http.StatusNotFound, "report_not_found", errNotFound("report"))
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

func respondReportError(c *gin.Context, code string, err error) {
	if errors.Is(err, reports.ErrInvalidMonth) {
		response.RespondError(c, http.StatusBadRequest, "invalid_month", err)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, code, err)
}

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-profitability-api/config"
	"github.com/kendall-kelly/delivery-profitability-api/logger"
	"github.com/kendall-kelly/delivery-profitability-api/middleware"
	"github.com/kendall-kelly/delivery-profitability-api/services"
	"go.uber.org/zap"
)

func newReportExporter() *services.ReportExporter {
	reports := services.NewReportService(config.GetDB())
	return services.NewReportExporter(reports, services.GetS3Service(), summaryOptions())
}

// DownloadReport handles GET /api/v1/reports/export - every report as one xlsx workbook
func DownloadReport(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	content, _, err := newReportExporter().Export(c.Request.Context(), filter)
	middleware.RecordExport("download", err)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export report")
		return
	}

	filename := fmt.Sprintf("profitability_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, services.XLSXContentType, content)
}

// PublishReport handles POST /api/v1/reports/export - uploads the workbook and
// returns a presigned download link. Every publish is attributed to the token subject.
func PublishReport(c *gin.Context) {
	publisher, err := middleware.GetUserID(c)
	if err != nil || publisher == "" {
		respondError(c, http.StatusUnauthorized, "MISSING_USER_ID", "Token has no subject")
		return
	}

	filter, err := parseReportFilter(c)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	published, err := newReportExporter().Publish(c.Request.Context(), filter)
	middleware.RecordExport("publish", err)
	if errors.Is(err, services.ErrStorageUnavailable) {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Report storage is not configured")
		return
	}
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to publish report")
		return
	}

	logger.Logger.Info("report published",
		zap.String("user_id", publisher),
		zap.String("key", published.Key),
	)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    published,
	})
}

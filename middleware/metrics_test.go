package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountsRequestsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Metrics())
	router.GET("/orders/:order_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", PrometheusHandler())

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/orders/:order_id", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(counter), "path label uses the route template")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRecordExport(t *testing.T) {
	ok := reportExportsTotal.WithLabelValues("download", "success")
	failed := reportExportsTotal.WithLabelValues("publish", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordExport("download", nil)
	RecordExport("publish", errors.New("bucket unreachable"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

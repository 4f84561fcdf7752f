package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/api/audit/:auditId", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/audit/:auditId", "200"))

	for _, id := range []string{"a1", "a2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/audit/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/audit/:auditId", "200"))
	assert.Equal(t, before+2, after)
}

func TestRecordVerification(t *testing.T) {
	before := testutil.ToFloat64(AuditVerificationsTotal.WithLabelValues("damaged", "true"))
	RecordVerification("damaged", true)
	assert.Equal(t, before+1, testutil.ToFloat64(AuditVerificationsTotal.WithLabelValues("damaged", "true")))
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_EndpointReturns200(t *testing.T) {
	e := echo.New()
	e.Use(echoprometheus.NewMiddleware("ezworker_http"))
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/test", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain content type, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestQueueDepthGauge_ReflectsSetValue(t *testing.T) {
	QueueDepthGauge.Set(7)
	defer QueueDepthGauge.Set(0)

	e := echo.New()
	e.GET("/metrics", echoprometheus.NewHandler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "ezworker_queue_depth 7") {
		t.Errorf("expected ezworker_queue_depth 7 in output, got:\n%s", rec.Body.String())
	}
}

func TestRecordPollBatch_LabelsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(PollBatchesCounter.WithLabelValues("enqueued"))
	RecordPollBatch(1)
	after := testutil.ToFloat64(PollBatchesCounter.WithLabelValues("enqueued"))
	if after != before+1 {
		t.Errorf("expected enqueued counter to increment by 1, got %v -> %v", before, after)
	}

	beforeEmpty := testutil.ToFloat64(PollBatchesCounter.WithLabelValues("empty"))
	RecordPollBatch(0)
	afterEmpty := testutil.ToFloat64(PollBatchesCounter.WithLabelValues("empty"))
	if afterEmpty != beforeEmpty+1 {
		t.Errorf("expected empty counter to increment by 1, got %v -> %v", beforeEmpty, afterEmpty)
	}
}

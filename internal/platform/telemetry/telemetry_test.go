package telemetry

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casenote/casenote/internal/domain/casenote"
)

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/case-notes/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/missing/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	for _, path := range []string{"/api/v1/case-notes/1", "/api/v1/case-notes/2", "/missing/3"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/case-notes/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/missing/:id", "404")))
}

func TestObserveViews(t *testing.T) {
	m := New()
	pic := int64(5)
	records := []*casenote.Request{
		{ID: 1, Status: casenote.StatusApproved, RequestedByUserID: 5, CurrentPICUserID: &pic, IsReceived: true},
		{ID: 2, Status: casenote.StatusPending, RequestedByUserID: 5},
	}
	m.ObserveViews("my_requests", casenote.ClassifyAll(records, casenote.Viewer{ID: 5, Role: casenote.RoleCA}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.views.WithLabelValues("my_requests", "APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.views.WithLabelValues("my_requests", "PENDING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.involvements.WithLabelValues("my_requests", "requested_and_verified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.buckets.WithLabelValues("my_requests", string(casenote.BucketReturnable))))
}

func TestObserveViews_UnknownStatusesShareOneSeries(t *testing.T) {
	m := New()
	records := make([]*casenote.Request, 0, 1000)
	for i := 0; i < 1000; i++ {
		records = append(records, &casenote.Request{ID: int64(i + 1), Status: casenote.Status(fmt.Sprintf("junk%d", i)), RequestedByUserID: 5})
	}
	m.ObserveViews("my_requests", casenote.ClassifyAll(records, casenote.Viewer{ID: 5, Role: casenote.RoleCA}))

	assert.Equal(t, 1, testutil.CollectAndCount(m.views))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.views.WithLabelValues("my_requests", "other")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveViews("detail", nil)
	m.views.WithLabelValues("detail", "PENDING").Inc()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	require.NoError(t, m.Handler()(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "casenote_classified_views_total"))
}

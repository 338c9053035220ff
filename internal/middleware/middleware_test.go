package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(reg *prometheus.Registry) (*gin.Engine, *PrometheusMiddleware) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())
	pm := NewPrometheusMiddleware("test", reg)
	r.Use(pm.Handler())
	return r, pm
}

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, _ := newTestRouter(reg)
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/fail", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"}) })

	for _, path := range []string{"/ok", "/ok", "/fail", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	t.Run("Гистограмма по маршрутам", func(t *testing.T) {
		mf := family(t, reg, "test_http_request_duration_seconds")
		require.NotNil(t, mf)
		assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
		assert.Len(t, mf.Metric, 3, "ok, fail и unmatched")

		var okCount uint64
		for _, m := range mf.Metric {
			for _, l := range m.Label {
				if l.GetName() == "path" && l.GetValue() == "/ok" {
					okCount = m.GetHistogram().GetSampleCount()
				}
			}
		}
		assert.Equal(t, uint64(2), okCount)
	})

	t.Run("Ошибки", func(t *testing.T) {
		mf := family(t, reg, "test_http_request_errors_total")
		require.NotNil(t, mf)
		var total float64
		paths := map[string]bool{}
		for _, m := range mf.Metric {
			total += m.GetCounter().GetValue()
			for _, l := range m.Label {
				if l.GetName() == "path" {
					paths[l.GetValue()] = true
				}
			}
		}
		assert.Equal(t, float64(2), total, "500 и 404")
		assert.True(t, paths["unmatched"], "неизвестный путь не раздувает метки")
	})

	t.Run("Нет запросов в обработке", func(t *testing.T) {
		mf := family(t, reg, "test_http_requests_inflight")
		require.NotNil(t, mf)
		assert.Equal(t, float64(0), mf.Metric[0].GetGauge().GetValue())
	})
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, _ := newTestRouter(reg)

	entered := make(chan struct{})
	release := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()

	<-entered
	mf := family(t, reg, "test_http_requests_inflight")
	require.NotNil(t, mf)
	assert.Equal(t, float64(1), mf.Metric[0].GetGauge().GetValue())

	close(release)
	wg.Wait()
	mf = family(t, reg, "test_http_requests_inflight")
	assert.Equal(t, float64(0), mf.Metric[0].GetGauge().GetValue())
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, pm := newTestRouter(reg)
	pm.RegisterMetricsEndpoint(r, reg)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	if !strings.Contains(w.Body.String(), `test_http_request_duration_seconds_count{method="GET",path="/ping",status="200"} 1`) {
		t.Errorf("в выводе /metrics нет запроса /ping:\n%s", w.Body.String())
	}
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger().Handler())

	var captured []string
	r.GET("/trace", func(c *gin.Context) {
		traceID, exists := c.Get("trace_id")
		require.True(t, exists, "trace_id должен быть в контексте")
		captured = append(captured, traceID.(string))
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trace", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trace", nil))

	require.Len(t, captured, 2)
	assert.NotEmpty(t, captured[0])
	assert.NotEqual(t, captured[0], captured[1], "без span каждый запрос получает свой id")
}

func BenchmarkPrometheusMiddleware(b *testing.B) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewPrometheusMiddleware("bench", prometheus.NewRegistry()).Handler())
	r.GET("/bench", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/bench", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

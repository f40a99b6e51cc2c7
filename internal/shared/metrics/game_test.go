package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameRegistersCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGame(reg)

	g.BetsRejected.WithLabelValues("window_closed").Inc()
	g.PayoutsTotal.Add(250)

	assert.Equal(t, float64(1), testutil.ToFloat64(g.BetsRejected.WithLabelValues("window_closed")))
	assert.Equal(t, float64(250), testutil.ToFloat64(g.PayoutsTotal))
	assert.Panics(t, func() { NewGame(reg) }, "registering twice must fail")
}

func TestMetricsServerHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	healthy := true
	srv := NewMetricsServer("0", reg, func(ctx context.Context) error {
		if !healthy {
			return errors.New("pg down")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pg down")
}

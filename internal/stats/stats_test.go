package stats

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	defer su.Stop()

	su.RegisterMetric("TestCounter")
	su.Incr("TestCounter")
	su.Incr("TestCounter")
	su.Decr("TestCounter")

	// updates are applied asynchronously
	assert.Eventually(t, func() bool {
		return su.vars.Get("TestCounter").String() == "1"
	}, time.Second, 10*time.Millisecond, "expected the counter to settle at 1")

	req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), `"TestCounter":1`),
		"expected the counter to be exposed, got %s", rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Uptime")
}

func TestStatsUpdater_StopDrainsAndDropsLateUpdates(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("LateCounter")
	su.Run()

	// queued before the stop, must still be applied
	su.Incr("LateCounter")
	su.Stop()

	assert.Equal(t, "1", su.vars.Get("LateCounter").String(),
		"expected a pre-stop update to be drained")

	// a connection teardown racing shutdown must not panic
	require.NotPanics(t, func() { su.Decr("LateCounter") })
	assert.Equal(t, "1", su.vars.Get("LateCounter").String(),
		"expected a post-stop update to be dropped")
}

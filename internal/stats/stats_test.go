package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expvar panics on duplicate map names, so the whole suite shares one updater.
func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	t.Cleanup(su.Stop)

	su.RegisterMetric(ActiveChatSessions)
	su.RegisterMetric(MessagesPersisted)

	readMetric := func(name string) int {
		t.Helper()
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var data map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&data))
		value, ok := data[name].(float64)
		require.True(t, ok, "expected metric %q in response", name)
		return int(value)
	}

	t.Run("increments and decrements", func(t *testing.T) {
		su.Incr(ActiveChatSessions)
		su.Incr(ActiveChatSessions)
		su.Decr(ActiveChatSessions)

		assert.Eventually(t, func() bool {
			return readMetric(ActiveChatSessions) == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("adds deltas", func(t *testing.T) {
		su.Add(MessagesPersisted, 5)

		assert.Eventually(t, func() bool {
			return readMetric(MessagesPersisted) == 5
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("reports uptime", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

		var data map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&data))
		assert.Contains(t, data, "Uptime")
	})
}

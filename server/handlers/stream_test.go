package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pushup-cv/server/emitter"
	"github.com/san-kum/pushup-cv/server/processor"
	"github.com/san-kum/pushup-cv/server/pushup"
	"github.com/san-kum/pushup-cv/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticEventStats emitter.Stats

func (s staticEventStats) Stats() emitter.Stats { return emitter.Stats(s) }

func newStreamHandler(t *testing.T) *StreamHandler {
	t.Helper()
	store := session.NewStore(10, time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })

	factory, err := processor.NewCounterFactory(pushup.ExerciseName, pushup.DefaultThresholds())
	require.NoError(t, err)

	fp := processor.NewFrameProcessor(store, factory, processor.Options{}, zap.NewNop())
	return NewStreamHandler(fp, zap.NewNop())
}

func getStats(t *testing.T, h *StreamHandler) map[string]json.RawMessage {
	t.Helper()
	router := gin.New()
	router.GET("/stats", h.GetStats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetStatsIncludesEventStats(t *testing.T) {
	h := newStreamHandler(t)
	assert.NotContains(t, getStats(t, h), "events")

	h.SetEventStats(staticEventStats{
		Connected: true,
		Published: map[string]uint64{"pushup/abc/events": 3},
		Errors:    1,
	})

	body := getStats(t, h)
	require.Contains(t, body, "events")

	var events emitter.Stats
	require.NoError(t, json.Unmarshal(body["events"], &events))
	assert.True(t, events.Connected)
	assert.Equal(t, uint64(3), events.Published["pushup/abc/events"])
	assert.Equal(t, uint64(1), events.Errors)
}

func TestExtractImageData(t *testing.T) {
	data, err := extractImageData("data:image/jpeg;base64,AAEC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)

	for _, bad := range []string{"", "AAEC", "data:image/jpeg;base64,", "a,b,c", "data:image/png;base64,%%%"} {
		_, err := extractImageData(bad)
		assert.Error(t, err, bad)
	}
}

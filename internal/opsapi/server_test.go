package opsapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intcheckpoint "github.com/streamguard/streamguard-go/internal/checkpoint"
	intsequence "github.com/streamguard/streamguard-go/internal/sequence"
	"github.com/streamguard/streamguard-go/pkg/checkpoint"
	"github.com/streamguard/streamguard-go/pkg/sequence"
)

// haltedTracker builds a tracker with one halted thread.
func haltedTracker(t *testing.T) *intsequence.Tracker {
	t.Helper()
	tracker := intsequence.NewTracker(sequence.PolicyHalt)
	require.NoError(t, tracker.Validate("stuck", 1))
	require.Error(t, tracker.Validate("stuck", 9)) // gap halts the thread
	require.True(t, tracker.IsHalted("stuck"))
	return tracker
}

func doRequest(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestServer_Health tests the unauthenticated health endpoint.
func TestServer_Health(t *testing.T) {
	s := NewServer(Config{Topic: "events", Partition: 3}, haltedTracker(t), nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.Healthy)
	assert.Equal(t, "events", health.Topic)
	assert.Equal(t, int32(3), health.Partition)
	assert.Equal(t, 1, health.HaltedThreads)
}

// TestServer_HaltedListAndReset tests listing and unblocking halted threads.
func TestServer_HaltedListAndReset(t *testing.T) {
	tracker := haltedTracker(t)
	s := NewServer(Config{Topic: "events"}, tracker, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/halted", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var halted HaltedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &halted))
	assert.Equal(t, []string{"stuck"}, halted.Threads)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/halted/stuck/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reset ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reset))
	assert.Equal(t, "stuck", reset.ThreadID)
	assert.False(t, reset.Halted)
	assert.False(t, tracker.IsHalted("stuck"))

	// The expected value survives a plain reset.
	next, ok := tracker.ExpectedForThread("stuck")
	require.True(t, ok)
	assert.Equal(t, uint64(2), next)
}

// TestServer_HaltedFullReset tests ?full=true clearing tracking state too.
func TestServer_HaltedFullReset(t *testing.T) {
	tracker := haltedTracker(t)
	s := NewServer(Config{Topic: "events"}, tracker, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/halted/stuck/reset?full=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := tracker.ExpectedForThread("stuck")
	assert.False(t, ok, "full reset must clear tracking state")
}

// TestServer_HaltedResetBadPath tests path validation. A doubled slash never
// reaches the handler: ServeMux cleans the path and redirects.
func TestServer_HaltedResetBadPath(t *testing.T) {
	s := NewServer(Config{Topic: "events"}, haltedTracker(t), nil)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/halted//reset", http.StatusMovedPermanently},
		{"/api/v1/halted/stuck", http.StatusNotFound},
		{"/api/v1/halted/stuck/other", http.StatusNotFound},
		{"/api/v1/halted/reset", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := doRequest(t, s, http.MethodPost, tt.path, "")
		assert.Equal(t, tt.code, rec.Code, "path %s", tt.path)
	}
}

// TestServer_Checkpoint tests checkpoint reporting.
func TestServer_Checkpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consumer.checkpoint")
	require.NoError(t, intcheckpoint.Store(path, checkpoint.New("events", 1, 77)))

	s := NewServer(Config{Topic: "events", Partition: 1, CheckpointPath: path}, haltedTracker(t), nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/checkpoint", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cp checkpoint.OffsetCheckpoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cp))
	assert.Equal(t, int64(77), cp.Offset)
}

// TestServer_CheckpointMissing tests 404s for unconfigured and absent
// checkpoints.
func TestServer_CheckpointMissing(t *testing.T) {
	s := NewServer(Config{Topic: "events"}, haltedTracker(t), nil)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/checkpoint", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = NewServer(Config{Topic: "events", CheckpointPath: filepath.Join(t.TempDir(), "none")}, haltedTracker(t), nil)
	rec = doRequest(t, s, http.MethodGet, "/api/v1/checkpoint", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestServer_AuthRequired tests that a secret key locks the operator
// endpoints but not health.
func TestServer_AuthRequired(t *testing.T) {
	s := NewServer(Config{Topic: "events", SecretKey: "ops-secret"}, haltedTracker(t), nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health must stay open for probes")

	rec = doRequest(t, s, http.MethodGet, "/api/v1/halted", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/halted", "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := NewJWTAuth("ops-secret").GenerateToken("alex")
	require.NoError(t, err)
	rec = doRequest(t, s, http.MethodGet, "/api/v1/halted", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestServer_MethodNotAllowed tests method checking on each route.
func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(Config{Topic: "events"}, haltedTracker(t), nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/halted", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	rec = doRequest(t, s, http.MethodGet, "/api/v1/halted/stuck/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/entities"
)

func TestTriggerSync_QueuesRun(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	w := f.request(t, "POST", "/api/v1/sync", map[string]any{"mode": "full"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var run entities.SyncRun
	decodeBody(t, w, &run)
	assert.Equal(t, entities.SyncModeFull, run.Mode)
	assert.Equal(t, entities.SyncRunStatusPending, run.Status)
	assert.Equal(t, []uint{run.ID}, f.enqueued)
}

func TestTriggerSync_DefaultsToIncremental(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	w := f.request(t, "POST", "/api/v1/sync", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var run entities.SyncRun
	decodeBody(t, w, &run)
	assert.Equal(t, entities.SyncModeIncremental, run.Mode)
}

func TestTriggerSync_ConflictsWithActiveRun(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	active, err := f.runs.Create(entities.SyncModeFull)
	require.NoError(t, err)
	require.NoError(t, f.runs.MarkRunning(active))

	w := f.request(t, "POST", "/api/v1/sync", map[string]any{"mode": "full"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// force bypasses the guard
	w = f.request(t, "POST", "/api/v1/sync", map[string]any{"mode": "full", "force": true})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestTriggerSync_RejectsUnknownMode(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	w := f.request(t, "POST", "/api/v1/sync", map[string]any{"mode": "monthly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRuns(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		_, err := f.runs.Create(entities.SyncModeIncremental)
		require.NoError(t, err)
	}

	w := f.request(t, "GET", "/api/v1/sync/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Runs []entities.SyncRun `json:"runs"`
	}
	decodeBody(t, w, &response)
	assert.Len(t, response.Runs, 2)

	w = f.request(t, "GET", "/api/v1/sync/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	run, err := f.runs.Create(entities.SyncModeFull)
	require.NoError(t, err)

	w := f.request(t, "GET", "/api/v1/sync/runs/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched entities.SyncRun
	decodeBody(t, w, &fetched)
	assert.Equal(t, run.ID, fetched.ID)

	w = f.request(t, "GET", "/api/v1/sync/runs/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.request(t, "GET", "/api/v1/sync/runs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncStatus(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	require.NoError(t, f.store.SetSyncOutcome("completed", "synced 10 resources", time.Now()))

	w := f.request(t, "GET", "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	decodeBody(t, w, &response)
	assert.Equal(t, "completed", response["last_status"])
	assert.Equal(t, "synced 10 resources", response["last_message"])
	assert.NotNil(t, response["last_sync_at"])
}

func TestAcknowledgeAlert(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	w := f.request(t, "POST", "/api/v1/sync/alert/acknowledge", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.alerter.RunFailed("auth failed")
	w = f.request(t, "POST", "/api/v1/sync/alert/acknowledge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var alert entities.SyncFailureAlert
	decodeBody(t, w, &alert)
	assert.NotNil(t, alert.AcknowledgedAt)
}

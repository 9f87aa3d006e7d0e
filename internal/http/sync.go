package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/alerts"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/scheduler"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// SyncController exposes sync run triggering and inspection.
type SyncController struct {
	service   *ingest.Service
	runs      *syncruns.Repository
	store     *settingsstore.SettingsStore
	scheduler *scheduler.SyncScheduler
	alerter   *alerts.Service
	log       *logrus.Logger
}

func NewSyncController(
	service *ingest.Service,
	runs *syncruns.Repository,
	store *settingsstore.SettingsStore,
	sched *scheduler.SyncScheduler,
	alerter *alerts.Service,
	log *logrus.Logger,
) *SyncController {
	return &SyncController{
		service:   service,
		runs:      runs,
		store:     store,
		scheduler: sched,
		alerter:   alerter,
		log:       log,
	}
}

type triggerSyncRequest struct {
	Mode  string `json:"mode"`
	Force bool   `json:"force"`
}

// TriggerSync handles POST /api/v1/sync. The run is queued and
// executed in the background; the response carries the pending run for
// polling.
func (sc *SyncController) TriggerSync(c *gin.Context) {
	req := triggerSyncRequest{Mode: string(entities.SyncModeIncremental)}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	run, err := sc.service.StartRun(c.Request.Context(), entities.SyncMode(req.Mode), req.Force)
	switch {
	case errors.Is(err, ingest.ErrRunActive):
		respondConflict(c, err.Error())
		return
	case err != nil:
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// ListRuns handles GET /api/v1/sync/runs.
func (sc *SyncController) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondBadRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}
	runs, err := sc.runs.List(limit)
	if err != nil {
		respondInternalError(c, sc.log, err, "listing sync runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/v1/sync/runs/:id.
func (sc *SyncController) GetRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid run id")
		return
	}
	run, err := sc.runs.Get(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "sync run")
		return
	}
	if err != nil {
		respondInternalError(c, sc.log, err, "loading sync run")
		return
	}
	c.JSON(http.StatusOK, run)
}

// SyncStatus handles GET /api/v1/sync/status: the last outcome, the
// scheduler state and any standing failure alert.
func (sc *SyncController) SyncStatus(c *gin.Context) {
	lastStatus, lastMessage := sc.store.GetSyncLastStatus()
	response := gin.H{
		"last_status":  lastStatus,
		"last_message": lastMessage,
		"last_sync_at": sc.store.GetSyncLastAt(),
	}
	if sc.scheduler != nil {
		response["scheduler"] = gin.H{
			"running":  sc.scheduler.IsRunning(),
			"next_run": sc.scheduler.NextRun(),
		}
	}
	if sc.alerter != nil {
		alert, err := sc.alerter.Status()
		if err != nil {
			respondInternalError(c, sc.log, err, "loading failure alert")
			return
		}
		response["alert"] = alert
	}
	c.JSON(http.StatusOK, response)
}

// AcknowledgeAlert handles POST /api/v1/sync/alert/acknowledge.
func (sc *SyncController) AcknowledgeAlert(c *gin.Context) {
	alert, err := sc.alerter.Acknowledge()
	if errors.Is(err, alerts.ErrNoActiveAlert) {
		respondNotFound(c, "active alert")
		return
	}
	if err != nil {
		respondInternalError(c, sc.log, err, "acknowledging alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

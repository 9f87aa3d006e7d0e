package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/scheduler"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// SettingsController manages provider credentials and the sync
// schedule.
type SettingsController struct {
	store      *settingsstore.SettingsStore
	scheduler  *scheduler.SyncScheduler
	clientOpts propertyware.Options
	log        *logrus.Logger
}

func NewSettingsController(store *settingsstore.SettingsStore, sched *scheduler.SyncScheduler, clientOpts propertyware.Options, log *logrus.Logger) *SettingsController {
	return &SettingsController{store: store, scheduler: sched, clientOpts: clientOpts, log: log}
}

// GetSyncSettings handles GET /api/v1/settings/sync.
func (sc *SettingsController) GetSyncSettings(c *gin.Context) {
	config := sc.store.GetSyncConfig()
	_, err := sc.store.GetAPICredentials()
	response := gin.H{
		"enabled":                config.Enabled,
		"schedule":               config.Schedule,
		"credentials_configured": err == nil,
	}
	if next, err := settingsstore.NextRunTime(config.Schedule); err == nil {
		response["next_run"] = next
	}
	c.JSON(http.StatusOK, response)
}

type syncSettingsRequest struct {
	Enabled  *bool  `json:"enabled"`
	Schedule string `json:"schedule"`
}

// UpdateSyncSettings handles PUT /api/v1/settings/sync and restarts
// the scheduler so changes take effect immediately.
func (sc *SettingsController) UpdateSyncSettings(c *gin.Context) {
	var req syncSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if req.Schedule != "" {
		if err := sc.store.SetSyncSchedule(req.Schedule); err != nil {
			respondBadRequest(c, "invalid schedule: "+err.Error())
			return
		}
	}
	if req.Enabled != nil {
		if err := sc.store.SetSyncEnabled(*req.Enabled); err != nil {
			respondInternalError(c, sc.log, err, "updating sync settings")
			return
		}
	}
	if sc.scheduler != nil {
		if err := sc.scheduler.Reschedule(); err != nil {
			respondInternalError(c, sc.log, err, "rescheduling sync")
			return
		}
	}
	sc.GetSyncSettings(c)
}

type credentialsRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	OrgID        string `json:"org_id" binding:"required"`
	Validate     bool   `json:"validate"`
}

// UpdateCredentials handles PUT /api/v1/settings/credentials. With
// validate set, the credentials are checked against the provider
// before being stored.
func (sc *SettingsController) UpdateCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	creds := propertyware.Credentials{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		OrgID:        req.OrgID,
	}

	if req.Validate {
		client := propertyware.NewClient(creds, sc.clientOpts)
		if err := client.ValidateCredentials(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: "credential validation failed: " + err.Error(),
			})
			return
		}
	}

	if err := sc.store.SetAPICredentials(creds); err != nil {
		respondInternalError(c, sc.log, err, "storing credentials")
		return
	}
	respondSuccess(c, "credentials updated")
}

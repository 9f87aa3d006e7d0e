package http

import (
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the controllers the router wires up. Nil
// controllers skip their routes, which keeps partial setups (CLI mode,
// tests) working.
type RouterConfig struct {
	Health    *HealthController
	Sync      *SyncController
	Vendors   *VendorsController
	Utilities *UtilitiesController
	Settings  *SettingsController
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	if cfg.Health != nil {
		router.GET("/health", cfg.Health.Status)
	}

	api := router.Group("/api/v1")

	if cfg.Sync != nil {
		api.POST("/sync", cfg.Sync.TriggerSync)
		api.GET("/sync/runs", cfg.Sync.ListRuns)
		api.GET("/sync/runs/:id", cfg.Sync.GetRun)
		api.GET("/sync/status", cfg.Sync.SyncStatus)
		api.POST("/sync/alert/acknowledge", cfg.Sync.AcknowledgeAlert)
	}

	if cfg.Vendors != nil {
		api.GET("/vendors/duplicates", cfg.Vendors.FindDuplicates)
		api.POST("/vendors/analyses", cfg.Vendors.CreateAnalysis)
		api.GET("/vendors/analyses/:id", cfg.Vendors.GetAnalysis)
		api.GET("/vendors/:id/duplicates", cfg.Vendors.ListLinkedDuplicates)
		api.POST("/vendors/:id/link", cfg.Vendors.LinkVendor)
		api.POST("/vendors/:id/unlink", cfg.Vendors.UnlinkVendor)
	}

	if cfg.Utilities != nil {
		api.POST("/utilities/reprocess", cfg.Utilities.Reprocess)
		api.GET("/utilities/mappings", cfg.Utilities.ListMappings)
		api.PUT("/utilities/mappings", cfg.Utilities.UpdateMapping)
	}

	if cfg.Settings != nil {
		api.GET("/settings/sync", cfg.Settings.GetSyncSettings)
		api.PUT("/settings/sync", cfg.Settings.UpdateSyncSettings)
		api.PUT("/settings/credentials", cfg.Settings.UpdateCredentials)
	}

	return router
}

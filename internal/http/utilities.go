package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/reclassify"
	"gorm.io/gorm"
)

// UtilitiesController exposes utility-expense reclassification and the
// GL-account mapping table.
type UtilitiesController struct {
	engine *reclassify.Engine
	db     *gorm.DB
	log    *logrus.Logger
}

func NewUtilitiesController(engine *reclassify.Engine, db *gorm.DB, log *logrus.Logger) *UtilitiesController {
	return &UtilitiesController{engine: engine, db: db, log: log}
}

type reprocessRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Reprocess handles POST /api/v1/utilities/reprocess. The rebuild runs
// synchronously and returns its summary; bounds use YYYY-MM-DD.
func (uc *UtilitiesController) Reprocess(c *gin.Context) {
	var req reprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	from, ok := parseBound(req.From)
	if !ok {
		respondBadRequest(c, "from must be a YYYY-MM-DD date")
		return
	}
	to, ok := parseBound(req.To)
	if !ok {
		respondBadRequest(c, "to must be a YYYY-MM-DD date")
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		respondBadRequest(c, "to must not precede from")
		return
	}

	result, err := uc.engine.ReprocessRange(from, to)
	if err != nil {
		respondInternalError(c, uc.log, err, "reprocessing utility expenses")
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseBound(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// ListMappings handles GET /api/v1/utilities/mappings.
func (uc *UtilitiesController) ListMappings(c *gin.Context) {
	var accounts []entities.UtilityAccount
	if err := uc.db.Order("gl_account_number").Find(&accounts).Error; err != nil {
		respondInternalError(c, uc.log, err, "listing utility mappings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": accounts})
}

type mappingRequest struct {
	GLAccountNumber string `json:"gl_account_number" binding:"required"`
	UtilityType     string `json:"utility_type" binding:"required"`
	Description     string `json:"description"`
}

// UpdateMapping handles PUT /api/v1/utilities/mappings. Changing a
// mapping reprocesses all derived expenses so they reflect it.
func (uc *UtilitiesController) UpdateMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := uc.engine.ApplyMappingChange(req.GLAccountNumber, req.UtilityType, req.Description)
	if err != nil {
		respondInternalError(c, uc.log, err, "applying mapping change")
		return
	}
	c.JSON(http.StatusOK, result)
}

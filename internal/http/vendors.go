package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/database/vendors"
	"github.com/rentfolio/rentfolio/internal/dedup"
)

// AnalysisEnqueuer hands a created analysis to the background queue.
type AnalysisEnqueuer func(ctx context.Context, analysisID uint) error

// VendorsController exposes duplicate detection and the canonical
// vendor graph.
type VendorsController struct {
	engine  *dedup.Engine
	repo    *vendors.Repository
	enqueue AnalysisEnqueuer
	log     *logrus.Logger
}

func NewVendorsController(engine *dedup.Engine, repo *vendors.Repository, enqueue AnalysisEnqueuer, log *logrus.Logger) *VendorsController {
	return &VendorsController{engine: engine, repo: repo, enqueue: enqueue, log: log}
}

// FindDuplicates handles GET /api/v1/vendors/duplicates. The scan runs
// synchronously, which is fine for interactive vendor sets; large sets
// should go through an analysis job instead.
func (vc *VendorsController) FindDuplicates(c *gin.Context) {
	var threshold float64
	var limit int
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			respondBadRequest(c, "threshold must be in (0, 1]")
			return
		}
		threshold = parsed
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	pairs, err := vc.engine.FindPotentialDuplicates(threshold, limit)
	if err != nil {
		respondInternalError(c, vc.log, err, "scanning for duplicates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicates": pairs, "count": len(pairs)})
}

type linkVendorRequest struct {
	CanonicalID uint `json:"canonical_id" binding:"required"`
}

// LinkVendor handles POST /api/v1/vendors/:id/link.
func (vc *VendorsController) LinkVendor(c *gin.Context) {
	vendorID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid vendor id")
		return
	}
	var req linkVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	err = vc.engine.LinkAsDuplicate(uint(vendorID), req.CanonicalID)
	switch {
	case errors.Is(err, vendors.ErrSelfLink), errors.Is(err, vendors.ErrCyclicLink):
		respondBadRequest(c, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondNotFound(c, "vendor")
	case err != nil:
		respondInternalError(c, vc.log, err, "linking vendor")
	default:
		respondSuccess(c, "vendor linked")
	}
}

// UnlinkVendor handles POST /api/v1/vendors/:id/unlink.
func (vc *VendorsController) UnlinkVendor(c *gin.Context) {
	vendorID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid vendor id")
		return
	}

	err = vc.engine.Unlink(uint(vendorID))
	switch {
	case errors.Is(err, vendors.ErrNotLinked):
		respondBadRequest(c, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondNotFound(c, "vendor")
	case err != nil:
		respondInternalError(c, vc.log, err, "unlinking vendor")
	default:
		respondSuccess(c, "vendor unlinked")
	}
}

// ListLinkedDuplicates handles GET /api/v1/vendors/:id/duplicates,
// returning the vendors linked to this canonical vendor.
func (vc *VendorsController) ListLinkedDuplicates(c *gin.Context) {
	vendorID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid vendor id")
		return
	}
	duplicates, err := vc.repo.DuplicatesOf(uint(vendorID))
	if err != nil {
		respondInternalError(c, vc.log, err, "listing linked duplicates")
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicates": duplicates})
}

type createAnalysisRequest struct {
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

// CreateAnalysis handles POST /api/v1/vendors/analyses, queueing an
// asynchronous pairwise scan.
func (vc *VendorsController) CreateAnalysis(c *gin.Context) {
	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		respondBadRequest(c, "threshold must be in (0, 1]")
		return
	}

	analysis, err := vc.repo.CreateAnalysis(req.Threshold, req.Limit)
	if err != nil {
		respondInternalError(c, vc.log, err, "creating analysis")
		return
	}
	if vc.enqueue != nil {
		if err := vc.enqueue(c.Request.Context(), analysis.ID); err != nil {
			respondInternalError(c, vc.log, err, "enqueueing analysis")
			return
		}
	}
	c.JSON(http.StatusAccepted, analysis)
}

// GetAnalysis handles GET /api/v1/vendors/analyses/:id for polling
// progress.
func (vc *VendorsController) GetAnalysis(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid analysis id")
		return
	}
	analysis, err := vc.repo.GetAnalysis(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "analysis")
		return
	}
	if err != nil {
		respondInternalError(c, vc.log, err, "loading analysis")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

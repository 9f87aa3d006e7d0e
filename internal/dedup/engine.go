// Package dedup finds vendors that look like the same real-world
// business and maintains the canonical-vendor graph. Scoring compares
// normalized names, phone numbers and emails; linking records a
// duplicate against its canonical survivor without deleting either
// row.
package dedup

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/database/vendors"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// progressEvery is how many scanned vendors pass between progress
// checkpoints during an asynchronous analysis.
const progressEvery = 25

// Engine scores vendor pairs and manages duplicate links.
type Engine struct {
	vendors *vendors.Repository
	store   *settingsstore.SettingsStore
	log     *logrus.Logger
}

func NewEngine(vendorRepo *vendors.Repository, store *settingsstore.SettingsStore, log *logrus.Logger) *Engine {
	return &Engine{vendors: vendorRepo, store: store, log: log}
}

// FindPotentialDuplicates scans all canonical vendors pairwise and
// returns candidate pairs scoring at or above the threshold, highest
// score first, capped at limit. Zero threshold or limit fall back to
// the configured defaults. Results are deterministic for an unchanged
// vendor set.
func (e *Engine) FindPotentialDuplicates(threshold float64, limit int) ([]entities.DuplicatePair, error) {
	threshold, limit = e.applyDefaults(threshold, limit)
	canonicals, err := e.vendors.Canonicals()
	if err != nil {
		return nil, err
	}
	pairs := scanPairs(canonicals, threshold, nil)
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// scanPairs compares every vendor pair once and collects the ones at
// or above the threshold, sorted by score descending with ids as the
// tiebreaker. tick, when set, is called after each outer vendor so
// async scans can checkpoint progress.
func scanPairs(canonicals []entities.Vendor, threshold float64, tick func(scanned, comparisons, found int) bool) []entities.DuplicatePair {
	var pairs []entities.DuplicatePair
	comparisons := 0
	for i := range canonicals {
		for j := i + 1; j < len(canonicals); j++ {
			comparisons++
			match := compareVendors(&canonicals[i], &canonicals[j])
			if match.Score >= threshold {
				pairs = append(pairs, entities.DuplicatePair{
					VendorID:     canonicals[i].ID,
					CandidateID:  canonicals[j].ID,
					Score:        match.Score,
					MatchReasons: match.Reasons,
				})
			}
		}
		if tick != nil && !tick(i+1, comparisons, len(pairs)) {
			return nil
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].VendorID != pairs[j].VendorID {
			return pairs[i].VendorID < pairs[j].VendorID
		}
		return pairs[i].CandidateID < pairs[j].CandidateID
	})
	return pairs
}

// RunAnalysis executes one queued analysis job to a terminal state,
// checkpointing scan progress as it goes.
func (e *Engine) RunAnalysis(ctx context.Context, analysisID uint) error {
	analysis, err := e.vendors.GetAnalysis(analysisID)
	if err != nil {
		return fmt.Errorf("loading analysis %d: %w", analysisID, err)
	}
	if analysis.Status != entities.AnalysisStatusPending {
		e.log.WithField("analysis", analysis.ID).Info("analysis already started, nothing to do")
		return nil
	}
	if err := e.vendors.StartAnalysis(analysis); err != nil {
		return err
	}

	threshold, limit := e.applyDefaults(analysis.Threshold, analysis.Limit)
	canonicals, err := e.vendors.Canonicals()
	if err != nil {
		return e.failAnalysis(analysis, err)
	}

	cancelled := false
	pairs := scanPairs(canonicals, threshold, func(scanned, comparisons, found int) bool {
		analysis.VendorsScanned = scanned
		analysis.ComparisonsMade = comparisons
		analysis.DuplicatesFound = found
		if scanned%progressEvery == 0 {
			if err := e.vendors.SaveAnalysisProgress(analysis); err != nil {
				e.log.WithError(err).Warn("checkpointing analysis progress")
			}
		}
		if ctx.Err() != nil {
			cancelled = true
			return false
		}
		return true
	})
	if cancelled {
		return e.failAnalysis(analysis, ctx.Err())
	}
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	analysis.DuplicatesFound = len(pairs)
	if err := e.vendors.CompleteAnalysis(analysis, pairs); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"analysis":    analysis.ID,
		"scanned":     analysis.VendorsScanned,
		"comparisons": analysis.ComparisonsMade,
		"duplicates":  len(pairs),
	}).Info("duplicate analysis completed")
	return nil
}

// LinkAsDuplicate marks vendorID as a duplicate of canonicalID.
func (e *Engine) LinkAsDuplicate(vendorID, canonicalID uint) error {
	if err := e.vendors.Link(vendorID, canonicalID); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"vendor":    vendorID,
		"canonical": canonicalID,
	}).Info("vendor linked as duplicate")
	return nil
}

// Unlink restores a previously linked vendor to canonical status.
func (e *Engine) Unlink(vendorID uint) error {
	if err := e.vendors.Unlink(vendorID); err != nil {
		return err
	}
	e.log.WithField("vendor", vendorID).Info("vendor unlinked")
	return nil
}

func (e *Engine) applyDefaults(threshold float64, limit int) (float64, int) {
	defThreshold, defLimit := e.store.GetDedupDefaults()
	if threshold <= 0 || threshold > 1 {
		threshold = defThreshold
	}
	if limit <= 0 {
		limit = defLimit
	}
	return threshold, limit
}

func (e *Engine) failAnalysis(analysis *entities.VendorDuplicateAnalysis, cause error) error {
	e.log.WithField("analysis", analysis.ID).WithError(cause).Error("duplicate analysis failed")
	return e.vendors.FailAnalysis(analysis, cause)
}

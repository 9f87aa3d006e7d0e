package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfolio/rentfolio/internal/entities"
)

func seedTestVendor(t *testing.T, f *apiFixture, externalID int64, name, email string) *entities.Vendor {
	t.Helper()
	vendor := &entities.Vendor{ExternalID: externalID, Name: name, Email: email, Active: true}
	require.NoError(t, f.db.Create(vendor).Error)
	return vendor
}

func TestFindDuplicates(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	seedTestVendor(t, f, 1, "Acme Plumbing LLC", "office@acme.com")
	seedTestVendor(t, f, 2, "Acme Plumbing Inc", "office@acme.com")
	seedTestVendor(t, f, 3, "Mountain Electric", "hi@mountain.com")

	w := f.request(t, "GET", "/api/v1/vendors/duplicates?threshold=0.8", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Duplicates []entities.DuplicatePair `json:"duplicates"`
		Count      int                      `json:"count"`
	}
	decodeBody(t, w, &response)
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Duplicates, 1)
	assert.EqualValues(t, 1, response.Duplicates[0].VendorID)

	w = f.request(t, "GET", "/api/v1/vendors/duplicates?threshold=7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkAndUnlinkVendor(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	canonical := seedTestVendor(t, f, 1, "Acme Plumbing", "")
	duplicate := seedTestVendor(t, f, 2, "Acme Plumbing LLC", "")

	w := f.request(t, "POST", "/api/v1/vendors/2/link", map[string]any{"canonical_id": canonical.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "GET", "/api/v1/vendors/1/duplicates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Duplicates []entities.Vendor `json:"duplicates"`
	}
	decodeBody(t, w, &listed)
	require.Len(t, listed.Duplicates, 1)
	assert.Equal(t, duplicate.ID, listed.Duplicates[0].ID)

	// Self-links are rejected.
	w = f.request(t, "POST", "/api/v1/vendors/1/link", map[string]any{"canonical_id": canonical.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.request(t, "POST", "/api/v1/vendors/2/unlink", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "POST", "/api/v1/vendors/2/unlink", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndPollAnalysis(t *testing.T) {
	f, cleanup := setupAPI(t)
	defer cleanup()

	w := f.request(t, "POST", "/api/v1/vendors/analyses", map[string]any{"threshold": 0.9, "limit": 10})
	require.Equal(t, http.StatusAccepted, w.Code)

	var analysis entities.VendorDuplicateAnalysis
	decodeBody(t, w, &analysis)
	assert.Equal(t, entities.AnalysisStatusPending, analysis.Status)
	assert.Equal(t, 0.9, analysis.Threshold)

	w = f.request(t, "GET", "/api/v1/vendors/analyses/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, "GET", "/api/v1/vendors/analyses/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.request(t, "POST", "/api/v1/vendors/analyses", map[string]any{"threshold": 3.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

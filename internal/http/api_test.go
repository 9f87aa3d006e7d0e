package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/alerts"
	"github.com/rentfolio/rentfolio/internal/database"
	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/database/vendors"
	"github.com/rentfolio/rentfolio/internal/dedup"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/reclassify"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// apiFixture wires the full router against a temp database the way
// the entrypoint does, minus the task queue: enqueued work is recorded
// instead of executed.
type apiFixture struct {
	router   *gin.Engine
	db       *gorm.DB
	runs     *syncruns.Repository
	vendors  *vendors.Repository
	store    *settingsstore.SettingsStore
	alerter  *alerts.Service
	enqueued []uint
}

func setupAPI(t *testing.T) (*apiFixture, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_api_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.NewDatabase(dbPath, log)
	require.NoError(t, err)
	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	f := &apiFixture{db: db.DB}
	f.runs = syncruns.NewRepository(db.DB)
	f.vendors = vendors.NewRepository(db.DB)
	f.store = settingsstore.New(settings.NewRepository(db.DB))
	f.alerter = alerts.NewService(db.DB, f.store, &alerts.LogNotifier{Log: log}, 3, log)

	service := ingest.NewService(f.runs, func(ctx context.Context, runID uint) error {
		f.enqueued = append(f.enqueued, runID)
		return nil
	}, log)
	dedupEngine := dedup.NewEngine(f.vendors, f.store, log)
	reclassifyEngine := reclassify.NewEngine(db.DB, log)

	f.router = NewRouter(RouterConfig{
		Health:    NewHealthController(db, "test"),
		Sync:      NewSyncController(service, f.runs, f.store, nil, f.alerter, log),
		Vendors:   NewVendorsController(dedupEngine, f.vendors, nil, log),
		Utilities: NewUtilitiesController(reclassifyEngine, db.DB, log),
		Settings:  NewSettingsController(f.store, nil, propertyware.DefaultOptions(), log),
	})
	return f, cleanup
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

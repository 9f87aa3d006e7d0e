package entities

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetadata_Metric_CreatesOnFirstUse(t *testing.T) {
	var meta RunMetadata

	metric := meta.Metric(ResourceProperty)
	metric.Created++

	assert.Equal(t, 1, meta.ResourceMetrics[ResourceProperty].Created)
	assert.Same(t, metric, meta.Metric(ResourceProperty))
}

func TestRunMetadata_AppendError_CountsAndRecords(t *testing.T) {
	var meta RunMetadata

	meta.AppendError(ResourceUnit, SyncError{ExternalID: 42, Message: "bad payload", OccurredAt: time.Now()})

	require.Len(t, meta.ResourceErrors[ResourceUnit], 1)
	assert.Equal(t, int64(42), meta.ResourceErrors[ResourceUnit][0].ExternalID)
	assert.Equal(t, 1, meta.Metric(ResourceUnit).Errors)
}

func TestRunMetadata_AppendError_FIFOCap(t *testing.T) {
	var meta RunMetadata

	for i := 1; i <= 15; i++ {
		meta.AppendError(ResourceProperty, SyncError{
			ExternalID: int64(i),
			Message:    fmt.Sprintf("error %d", i),
			OccurredAt: time.Now(),
		})
	}

	errs := meta.ResourceErrors[ResourceProperty]
	require.Len(t, errs, MaxErrorsPerResource)

	// Oldest dropped: entries 6..15 remain, in order.
	assert.Equal(t, int64(6), errs[0].ExternalID)
	assert.Equal(t, int64(15), errs[len(errs)-1].ExternalID)

	// The counter is not capped.
	assert.Equal(t, 15, meta.Metric(ResourceProperty).Errors)
}

func TestRunMetadata_Totals(t *testing.T) {
	var meta RunMetadata

	prop := meta.Metric(ResourceProperty)
	prop.Created = 50
	prop.Updated = 61
	prop.Skipped = 1

	unit := meta.Metric(ResourceUnit)
	unit.Created = 3

	meta.AppendError(ResourceProperty, SyncError{Message: "boom"})

	assert.Equal(t, 114, meta.TotalResources())
	assert.Equal(t, 1, meta.TotalErrors())
}

func TestSyncRun_Terminal(t *testing.T) {
	run := SyncRun{Status: SyncRunStatusPending}
	assert.False(t, run.Terminal())

	run.Status = SyncRunStatusRunning
	assert.False(t, run.Terminal())

	run.Status = SyncRunStatusCompleted
	assert.True(t, run.Terminal())

	run.Status = SyncRunStatusFailed
	assert.True(t, run.Terminal())
}

package merging

import (
	"context"
	"testing"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSweepClusters(store *fakeStore) {
	store.entities["a1"] = testEntity("a1", "tenant-1", map[string]any{"name": "Acme renewal", "customer": "Acme Corp"})
	store.entities["a2"] = testEntity("a2", "tenant-1", map[string]any{"name": "Acme renewal"})
	store.entities["b1"] = testEntity("b1", "tenant-1", map[string]any{"name": "Globex deal", "customer": "Globex"})
	store.entities["b2"] = testEntity("b2", "tenant-1", map[string]any{"name": "Globex deal"})

	store.clusters["cl-a"] = &models.DuplicateCluster{
		ID:              "cl-a",
		TenantID:        "tenant-1",
		EntityType:      "deal",
		EntityIDs:       database.NewJSONB([]string{"a1", "a2"}),
		ConfidenceScore: 0.97,
		Status:          models.ClusterStatusActive,
	}
	store.clusters["cl-b"] = &models.DuplicateCluster{
		ID:              "cl-b",
		TenantID:        "tenant-1",
		EntityType:      "deal",
		EntityIDs:       database.NewJSONB([]string{"b1", "b2"}),
		ConfidenceScore: 0.96,
		Status:          models.ClusterStatusActive,
	}
	// below the default threshold, never swept
	store.clusters["cl-c"] = &models.DuplicateCluster{
		ID:              "cl-c",
		TenantID:        "tenant-1",
		EntityType:      "deal",
		EntityIDs:       database.NewJSONB([]string{"a1", "b1"}),
		ConfidenceScore: 0.80,
		Status:          models.ClusterStatusActive,
	}
}

func TestAutoMergeSweep_MergesEligibleClusters(t *testing.T) {
	store := newFakeStore()
	seedSweepClusters(store)
	engine := newTestEngine(store)

	result, err := engine.AutoMergeHighConfidenceDuplicates(context.Background(), "tenant-1", "deal", 0, false, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalClusters)
	assert.Equal(t, 2, result.MergedClusters)
	assert.Equal(t, 0, result.FailedClusters)
	assert.Len(t, result.MergeResults, 2)
	assert.False(t, result.DryRun)

	assert.Equal(t, models.ClusterStatusMerged, store.clusters["cl-a"].Status)
	assert.Equal(t, models.ClusterStatusMerged, store.clusters["cl-b"].Status)
	assert.Len(t, store.histories, 2)
}

func TestAutoMergeSweep_DryRunMutatesNothing(t *testing.T) {
	store := newFakeStore()
	seedSweepClusters(store)
	engine := newTestEngine(store)

	result, err := engine.AutoMergeHighConfidenceDuplicates(context.Background(), "tenant-1", "deal", 0, true, 0)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.TotalClusters)
	assert.Equal(t, 0, result.MergedClusters)
	assert.Empty(t, result.MergeResults)

	assert.Equal(t, models.ClusterStatusActive, store.clusters["cl-a"].Status)
	assert.Equal(t, models.ClusterStatusActive, store.clusters["cl-b"].Status)
	assert.Empty(t, store.histories)
	assert.Equal(t, 0, store.commits)
}

func TestAutoMergeSweep_FailureIsolatedPerCluster(t *testing.T) {
	store := newFakeStore()
	seedSweepClusters(store)
	// cl-a's members are gone, cl-b still merges
	delete(store.entities, "a1")
	delete(store.entities, "a2")
	engine := newTestEngine(store)

	result, err := engine.AutoMergeHighConfidenceDuplicates(context.Background(), "tenant-1", "deal", 0, false, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalClusters)
	assert.Equal(t, 1, result.MergedClusters)
	assert.Equal(t, 1, result.FailedClusters)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "cl-a", result.Errors[0].ClusterID)
	assert.NotEmpty(t, result.Errors[0].Error)

	assert.Equal(t, models.ClusterStatusMerged, store.clusters["cl-b"].Status)
}

func TestAutoMergeSweep_ExplicitThresholdAndLimit(t *testing.T) {
	store := newFakeStore()
	seedSweepClusters(store)
	engine := newTestEngine(store)

	result, err := engine.AutoMergeHighConfidenceDuplicates(context.Background(), "tenant-1", "deal", 0.75, true, 1)
	require.NoError(t, err)

	// 0.75 admits all three clusters but the limit caps the page
	assert.Equal(t, 1, result.TotalClusters)
}

package merging

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMergePair(store *fakeStore) {
	store.entities["target"] = testEntity("target", "tenant-1", map[string]any{
		"name":            "Acme renewal",
		"customer":        "Acme Corp",
		"source_file_ids": []any{"f1", "f2"},
	})
	store.entities["source"] = testEntity("source", "tenant-1", map[string]any{
		"name":            "Acme renewal",
		"deal_value":      50000.0,
		"source_file_ids": []any{"f1", "f3"},
	})
}

func TestMergeEntities_HappyPath(t *testing.T) {
	store := newFakeStore()
	seedMergePair(store)
	store.candidates["c1"] = &models.MatchCandidate{
		ID:                "c1",
		TenantID:          "tenant-1",
		EntityType:        "deal",
		SourceEntityID:    "target",
		CandidateEntityID: "source",
		SimilarityScore:   0.9,
		Status:            models.MatchCandidateStatusPending,
	}
	store.clusters["cl1"] = &models.DuplicateCluster{
		ID:         "cl1",
		TenantID:   "tenant-1",
		EntityType: "deal",
		EntityIDs:  database.NewJSONB([]string{"target", "source"}),
		Status:     models.ClusterStatusActive,
	}
	engine := newTestEngine(store)

	result, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "target", result.MergedEntityID)
	assert.Equal(t, []string{"source"}, result.SourceEntityIDs)
	assert.Equal(t, models.StrategyPreferComplete, result.Strategy)
	assert.NotEmpty(t, result.MergeHistoryID)

	// target carries the resolved payload
	merged := store.entities["target"].GetData()
	assert.Equal(t, 50000.0, merged["deal_value"])
	assert.Equal(t, []any{"f1", "f2", "f3"}, merged["source_file_ids"])

	// source is retired and points at the survivor
	source := store.entities["source"]
	assert.Equal(t, models.EntityStatusMerged, source.Status)
	require.NotNil(t, source.MergedIntoID)
	assert.Equal(t, "target", *source.MergedIntoID)

	// exactly one audit row with pre-merge snapshots
	require.Len(t, store.histories, 1)
	history := store.histories[result.MergeHistoryID]
	require.NotNil(t, history)
	assert.True(t, history.CanUnmerge)
	assert.Len(t, history.Snapshots.Data, 2)
	snapshot, ok := history.SnapshotFor("source")
	require.True(t, ok)
	assert.Equal(t, models.EntityStatusActive, snapshot.Status)

	assert.Equal(t, models.MatchCandidateStatusMerged, store.candidates["c1"].Status)
	assert.Equal(t, models.ClusterStatusMerged, store.clusters["cl1"].Status)

	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 0, store.rollbacks)
}

func TestMergeEntities_RequiresSources(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	tests := []struct {
		name    string
		target  string
		sources []string
	}{
		{name: "no sources", target: "target", sources: nil},
		{name: "target is only source", target: "target", sources: []string{"target"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := engine.MergeEntities(context.Background(), "tenant-1", test.target, test.sources, models.MergeOptions{})
			require.True(t, httperror.IsHTTPError(err))
			assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
			assert.Contains(t, err.Error(), "At least 1 source entity required")
		})
	}
}

func TestMergeEntities_RejectsUnknownStrategy(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{
		Strategy: "PREFER_CHAOS",
	})

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestMergeEntities_TargetNotFound(t *testing.T) {
	store := newFakeStore()
	store.entities["source"] = testEntity("source", "tenant-1", map[string]any{"name": "Acme"})
	engine := newTestEngine(store)

	_, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{})

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Equal(t, 1, store.rollbacks)
}

func TestMergeEntities_StepFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	seedMergePair(store)
	store.failOn = "Create"
	store.failErr = errors.New("history insert failed")
	engine := newTestEngine(store)

	_, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{})

	// the original step error comes back untouched
	assert.ErrorIs(t, err, store.failErr)
	assert.Equal(t, 1, store.rollbacks)
	assert.Equal(t, 0, store.commits)
}

func TestMergeEntities_RollbackFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	// no entities seeded, so executeMerge fails and triggers rollback
	store.failOn = "Rollback"
	store.failErr = errors.New("rollback failed")
	engine := newTestEngine(store)

	_, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{})

	assert.ErrorIs(t, err, store.failErr)
}

func TestMergeEntities_PreserveSources(t *testing.T) {
	store := newFakeStore()
	seedMergePair(store)
	engine := newTestEngine(store)

	_, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{
		PreserveSources: true,
	})
	require.NoError(t, err)

	// preserved sources still leave exactly one active entity behind
	source := store.entities["source"]
	assert.Equal(t, models.EntityStatusMerged, source.Status)
	require.NotNil(t, source.MergedIntoID)
	assert.Equal(t, "target", *source.MergedIntoID)
	require.NotNil(t, source.MergeNote)
	assert.Equal(t, "preserved by merge", *source.MergeNote)
	assert.Equal(t, models.EntityStatusActive, store.entities["target"].Status)
}

func TestMergeEntities_MergedByRecorded(t *testing.T) {
	store := newFakeStore()
	seedMergePair(store)
	engine := newTestEngine(store)

	mergedBy := "ops@example.com"
	result, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{
		MergedBy: &mergedBy,
	})
	require.NoError(t, err)

	history := store.histories[result.MergeHistoryID]
	require.NotNil(t, history)
	require.NotNil(t, history.MergedBy)
	assert.Equal(t, mergedBy, *history.MergedBy)
}

func TestMergeEntities_DeduplicatesSourceIDs(t *testing.T) {
	store := newFakeStore()
	seedMergePair(store)
	engine := newTestEngine(store)

	result, err := engine.MergeEntities(context.Background(), "tenant-1", "target",
		[]string{"source", "source", "target", ""}, models.MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"source"}, result.SourceEntityIDs)
}

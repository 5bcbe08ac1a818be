package merging

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewMerge_RequiresTwoEntities(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "empty", ids: nil},
		{name: "single", ids: []string{"e1"}},
		{name: "duplicated single", ids: []string{"e1", "e1", ""}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := engine.PreviewMerge(context.Background(), "tenant-1", test.ids)
			require.Error(t, err)
			require.True(t, httperror.IsHTTPError(err))
			assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
			assert.Contains(t, err.Error(), "At least 2 entities")
		})
	}
}

func TestPreviewMerge_MissingEntitiesRejected(t *testing.T) {
	store := newFakeStore()
	store.entities["e1"] = testEntity("e1", "tenant-1", map[string]any{"name": "Acme"})
	engine := newTestEngine(store)

	_, err := engine.PreviewMerge(context.Background(), "tenant-1", []string{"e1", "missing"})

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestPreviewMerge_SuggestsHighestQualityMaster(t *testing.T) {
	store := newFakeStore()
	store.entities["e1"] = testEntity("e1", "tenant-1", map[string]any{"name": "Acme renewal"})
	store.entities["e2"] = testEntity("e2", "tenant-1", map[string]any{
		"name":                "Acme renewal",
		"customer":            "Acme Corp",
		"deal_value":          50000.0,
		"currency":            "USD",
		"expected_close_date": "2026-09-30",
		"account_id":          "acct-1",
	})
	engine := newTestEngine(store)

	preview, err := engine.PreviewMerge(context.Background(), "tenant-1", []string{"e1", "e2"})
	require.NoError(t, err)

	assert.Equal(t, "e2", preview.SuggestedMasterID)
	assert.Len(t, preview.SourceData, 2)
	assert.Len(t, preview.QualityScores, 2)
	assert.Greater(t, preview.QualityScores["e2"], preview.QualityScores["e1"])
	assert.Greater(t, preview.ComparedFields, 0)
	assert.GreaterOrEqual(t, preview.Confidence, 0.0)
	assert.LessOrEqual(t, preview.Confidence, 1.0)

	// nothing was written
	assert.Empty(t, store.histories)
	assert.Equal(t, 0, store.commits)
}

func TestPreviewMerge_WarnsOnHighConflictCount(t *testing.T) {
	store := newFakeStore()
	left := map[string]any{}
	right := map[string]any{}
	for _, field := range []string{"f1", "f2", "f3", "f4", "f5", "f6"} {
		left[field] = field + "-left"
		right[field] = field + "-right"
	}
	store.entities["e1"] = testEntity("e1", "tenant-1", left)
	store.entities["e2"] = testEntity("e2", "tenant-1", right)
	// identical timestamps keep every conflict undecidable
	store.entities["e2"].UpdatedAt = store.entities["e1"].UpdatedAt
	engine := newTestEngine(store)

	preview, err := engine.PreviewMerge(context.Background(), "tenant-1", []string{"e1", "e2"})
	require.NoError(t, err)

	require.Len(t, preview.Conflicts, 6)
	require.NotEmpty(t, preview.Warnings)
	assert.Contains(t, preview.Warnings[0], "High conflict count")
}

func TestPreviewMerge_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.failOn = "GetByIDs"
	store.failErr = errors.New("connection refused")
	engine := newTestEngine(store)

	_, err := engine.PreviewMerge(context.Background(), "tenant-1", []string{"e1", "e2"})

	assert.ErrorIs(t, err, store.failErr)
}

func TestCalculateDataQualityScore(t *testing.T) {
	store := newFakeStore()
	entity := testEntity("e1", "tenant-1", map[string]any{
		"name":                "Acme renewal",
		"customer":            "Acme Corp",
		"deal_value":          50000.0,
		"currency":            "USD",
		"expected_close_date": "2026-09-30",
		"account_id":          "acct-1",
	})
	entity.UpdatedAt = time.Now().UTC()
	store.entities["e1"] = entity
	engine := newTestEngine(store)

	score, err := engine.CalculateDataQualityScore(context.Background(), "tenant-1", "e1")
	require.NoError(t, err)

	assert.Equal(t, "e1", score.EntityID)
	assert.Equal(t, 1.0, score.Completeness)
	assert.Empty(t, score.MissingFields)
	assert.Greater(t, score.Overall, 0.0)
}

func TestCalculateDataQualityScore_NotFound(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.CalculateDataQualityScore(context.Background(), "tenant-1", "missing")

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

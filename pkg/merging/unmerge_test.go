package merging

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mergeThenFetchHistory runs a real merge so unmerge tests operate on the
// exact state the executor leaves behind.
func mergeThenFetchHistory(t *testing.T, store *fakeStore, engine *Engine) string {
	t.Helper()
	seedMergePair(store)
	result, err := engine.MergeEntities(context.Background(), "tenant-1", "target", []string{"source"}, models.MergeOptions{})
	require.NoError(t, err)
	return result.MergeHistoryID
}

func TestUnmergeEntities_RestoresSources(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	historyID := mergeThenFetchHistory(t, store, engine)

	reason := "merged the wrong deals"
	result, err := engine.UnmergeEntities(context.Background(), "tenant-1", historyID, &reason)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, historyID, result.MergeHistoryID)
	assert.Equal(t, []string{"source"}, result.RestoredEntityIDs)

	source := store.entities["source"]
	assert.Equal(t, models.EntityStatusActive, source.Status)
	assert.Nil(t, source.MergedIntoID)
	// pre-merge payload is back
	assert.Equal(t, 50000.0, source.GetData()["deal_value"])
	_, hadCustomer := source.GetData()["customer"]
	assert.False(t, hadCustomer)

	// the target reverts to its pre-merge payload too
	target := store.entities["target"]
	assert.Equal(t, "Acme Corp", target.GetData()["customer"])
	_, stillMerged := target.GetData()["deal_value"]
	assert.False(t, stillMerged)

	history := store.histories[historyID]
	assert.True(t, history.Unmerged)
	require.NotNil(t, history.UnmergeReason)
	assert.Equal(t, reason, *history.UnmergeReason)
}

func TestUnmergeEntities_ReopensCandidatesAndClusters(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	store.candidates["c1"] = &models.MatchCandidate{
		ID:                "c1",
		TenantID:          "tenant-1",
		EntityType:        "deal",
		SourceEntityID:    "target",
		CandidateEntityID: "source",
		SimilarityScore:   0.9,
		Status:            models.MatchCandidateStatusPending,
	}
	historyID := mergeThenFetchHistory(t, store, engine)
	require.Equal(t, models.MatchCandidateStatusMerged, store.candidates["c1"].Status)

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", historyID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.MatchCandidateStatusPending, store.candidates["c1"].Status)
	assert.Nil(t, store.candidates["c1"].ResolvedAt)
}

func TestUnmergeEntities_RequiresHistoryID(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", "", nil)

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestUnmergeEntities_UnknownHistory(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", "missing", nil)

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "Merge not found or already unmerged")
}

func TestUnmergeEntities_DoubleUnmergeRejected(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	historyID := mergeThenFetchHistory(t, store, engine)

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", historyID, nil)
	require.NoError(t, err)

	_, err = engine.UnmergeEntities(context.Background(), "tenant-1", historyID, nil)
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestUnmergeEntities_WindowExpired(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	historyID := mergeThenFetchHistory(t, store, engine)
	store.histories[historyID].CreatedAt = time.Now().UTC().Add(-31 * 24 * time.Hour)

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", historyID, nil)

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "cannot be undone after")
	assert.False(t, store.histories[historyID].Unmerged)
}

func TestUnmergeEntities_CanUnmergeFlagRespected(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	historyID := mergeThenFetchHistory(t, store, engine)
	store.histories[historyID].CanUnmerge = false

	_, err := engine.UnmergeEntities(context.Background(), "tenant-1", historyID, nil)

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "cannot be unmerged")
}

func TestUnmergeEntities_TenantIsolation(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	historyID := mergeThenFetchHistory(t, store, engine)

	_, err := engine.UnmergeEntities(context.Background(), "tenant-2", historyID, nil)

	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

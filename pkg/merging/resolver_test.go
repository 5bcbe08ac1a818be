package merging

import (
	"testing"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveForTest(t *testing.T, target models.Entity, sources []models.Entity, strategy models.ConflictResolutionStrategy, overrides map[string]any) map[string]any {
	t.Helper()
	all := append([]models.Entity{target}, sources...)
	conflicts, _ := AnalyzeConflicts(all, 0.05)
	return resolveFields(&target, sources, conflicts, strategy, overrides)
}

func TestResolveFields_ArrayUnion(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{
		"name":            "Acme renewal",
		"source_file_ids": []any{"f1", "f2"},
	})
	source := entityWith("e2", 0.8, now, map[string]any{
		"name":            "Acme renewal",
		"source_file_ids": []any{"f1", "f3"},
	})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferComplete, nil)

	assert.Equal(t, []any{"f1", "f2", "f3"}, merged["source_file_ids"])
	assert.Equal(t, "Acme renewal", merged["name"])
}

func TestResolveFields_MergeArraysStrategyAlsoUnions(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{"tags": []any{"b", "a"}})
	source := entityWith("e2", 0.8, now, map[string]any{"tags": []any{"c", "a"}})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyMergeArrays, nil)

	assert.Equal(t, []any{"a", "b", "c"}, merged["tags"])
}

func TestResolveFields_PreferTargetArray(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{"tags": []any{"t1"}})
	source := entityWith("e2", 0.8, now, map[string]any{"tags": []any{"s1"}})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferTarget, nil)

	assert.Equal(t, []any{"t1"}, merged["tags"])
}

func TestResolveFields_PreferSource(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{"customer": "Acme"})
	source := entityWith("e2", 0.8, now, map[string]any{"customer": "Acme Corporation"})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferSource, nil)

	assert.Equal(t, "Acme Corporation", merged["customer"])
}

func TestResolveFields_PreferTargetFallsBackWhenTargetNull(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{"name": "Acme"})
	source := entityWith("e2", 0.8, now, map[string]any{"name": "Acme", "customer": "Acme Corp"})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferTarget, nil)

	assert.Equal(t, "Acme Corp", merged["customer"])
}

func TestResolveFields_PreferValidated(t *testing.T) {
	now := time.Now().UTC()
	passed := models.ValidationStatusPassed
	failed := models.ValidationStatusFailed

	target := entityWith("e1", 0.9, now, map[string]any{"customer": "Acme"})
	target.ValidationStatus = &failed
	source := entityWith("e2", 0.6, now, map[string]any{"customer": "Acme Corporation"})
	source.ValidationStatus = &passed

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferValidated, nil)

	assert.Equal(t, "Acme Corporation", merged["customer"])
}

func TestResolveFields_ManualLeavesConflictsUnset(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	target := entityWith("e1", 0.8, now, map[string]any{"customer": "Acme", "phone": "555-1234"})
	source := entityWith("e2", 0.8, now, map[string]any{"customer": "Acme Corporation"})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyManual, nil)

	// disagreeing scalars wait for a human, lone populated values survive
	_, hasCustomer := merged["customer"]
	assert.False(t, hasCustomer)
	assert.Equal(t, "555-1234", merged["phone"])
}

func TestResolveFields_OverridesWin(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.8, now, map[string]any{"customer": "Acme"})
	source := entityWith("e2", 0.8, now, map[string]any{"customer": "Acme Corporation"})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferComplete, map[string]any{
		"customer": "Acme Inc",
		"id":       "injected",
	})

	assert.Equal(t, "Acme Inc", merged["customer"])
	_, hasID := merged["id"]
	assert.False(t, hasID)
}

func TestResolveFields_PreferCompleteUsesSuggestion(t *testing.T) {
	now := time.Now().UTC()
	target := entityWith("e1", 0.9, now, map[string]any{"customer": "Acme Corporation"})
	source := entityWith("e2", 0.6, now, map[string]any{"customer": "Acme"})

	merged := resolveForTest(t, target, []models.Entity{source}, models.StrategyPreferComplete, nil)

	assert.Equal(t, "Acme Corporation", merged["customer"])
}

func TestMostCompleteValue_TieBrokenByEntityID(t *testing.T) {
	values := []models.ConflictValue{
		{EntityID: "e2", Value: "abc"},
		{EntityID: "e1", Value: "xyz"},
	}

	value, ok := mostCompleteValue(values)
	require.True(t, ok)
	assert.Equal(t, "xyz", value)
}

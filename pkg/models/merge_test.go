package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEntitiesRequest_StrategyDecodesAsResolutionStrategy(t *testing.T) {
	body := `{
		"target_id": "target",
		"source_ids": ["source"],
		"strategy": "MERGE_ARRAYS"
	}`

	var req MergeEntitiesRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, StrategyMergeArrays, req.Strategy)
	assert.True(t, req.Strategy.IsValid())

	options := MergeOptions{Strategy: req.Strategy}
	assert.Equal(t, StrategyMergeArrays, options.Strategy)
}

func TestMergeClusterRequest_StrategyDecodesAsResolutionStrategy(t *testing.T) {
	body := `{
		"cluster_id": "cl1",
		"strategy": "PREFER_VALIDATED"
	}`

	var req MergeClusterRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, StrategyPreferValidated, req.Strategy)
	assert.True(t, req.Strategy.IsValid())

	options := MergeOptions{Strategy: req.Strategy}
	assert.Equal(t, StrategyPreferValidated, options.Strategy)
}

func TestConflictResolutionStrategy_IsValid(t *testing.T) {
	valid := []ConflictResolutionStrategy{
		StrategyPreferSource,
		StrategyPreferTarget,
		StrategyPreferComplete,
		StrategyPreferValidated,
		StrategyMergeArrays,
		StrategyManual,
	}
	for _, strategy := range valid {
		assert.True(t, strategy.IsValid(), string(strategy))
	}

	assert.False(t, ConflictResolutionStrategy("PREFER_CHAOS").IsValid())
}

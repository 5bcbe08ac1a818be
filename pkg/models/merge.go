package models

import "time"

// ConflictResolutionStrategy defines how conflicting field values are resolved
type ConflictResolutionStrategy string

const (
	// StrategyPreferSource takes the source entity's value on conflict
	StrategyPreferSource ConflictResolutionStrategy = "PREFER_SOURCE"
	// StrategyPreferTarget keeps the target entity's value on conflict
	StrategyPreferTarget ConflictResolutionStrategy = "PREFER_TARGET"
	// StrategyPreferComplete prefers the most complete value (default)
	StrategyPreferComplete ConflictResolutionStrategy = "PREFER_COMPLETE"
	// StrategyPreferValidated prefers values from validated entities
	StrategyPreferValidated ConflictResolutionStrategy = "PREFER_VALIDATED"
	// StrategyMergeArrays unions array values from all entities
	StrategyMergeArrays ConflictResolutionStrategy = "MERGE_ARRAYS"
	// StrategyManual leaves conflicted scalars for caller-supplied values
	StrategyManual ConflictResolutionStrategy = "MANUAL"
)

// IsValid reports whether the strategy is one of the known values.
func (s ConflictResolutionStrategy) IsValid() bool {
	switch s {
	case StrategyPreferSource, StrategyPreferTarget, StrategyPreferComplete,
		StrategyPreferValidated, StrategyMergeArrays, StrategyManual:
		return true
	}
	return false
}

// ConflictValue is one distinct value for a conflicted field with its provenance
type ConflictValue struct {
	EntityID   string     `json:"entity_id"`
	Value      any        `json:"value"`
	Confidence float64    `json:"confidence"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// FieldConflict describes a field with more than one distinct non-null value
type FieldConflict struct {
	Field                string          `json:"field"`
	Values               []ConflictValue `json:"values"`
	SuggestedValue       any             `json:"suggested_value,omitempty"`
	SuggestionReason     string          `json:"suggestion_reason,omitempty"`
	RequiresManualReview bool            `json:"requires_manual_review"`
}

// MergePreview is the read-only analysis of a prospective merge
type MergePreview struct {
	SourceData        []Entity           `json:"source_data"`
	SuggestedMasterID string             `json:"suggested_master"`
	Conflicts         []FieldConflict    `json:"conflicts"`
	ComparedFields    int                `json:"compared_fields"`
	QualityScores     map[string]float64 `json:"quality_scores"`
	Confidence        float64            `json:"confidence"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// MergeOptions controls merge execution
type MergeOptions struct {
	Strategy        ConflictResolutionStrategy `json:"strategy"`
	PreserveSources bool                       `json:"preserve_sources"`
	FieldOverrides  map[string]any             `json:"field_overrides,omitempty"`
	MergedBy        *string                    `json:"merged_by,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
}

// MergeResult contains the outcome of a committed merge
type MergeResult struct {
	Success         bool                       `json:"success"`
	MergedEntityID  string                     `json:"merged_entity_id"`
	EntityType      string                     `json:"entity_type"`
	SourceEntityIDs []string                   `json:"source_entity_ids"`
	MergeHistoryID  string                     `json:"merge_history_id"`
	MergedData      map[string]any             `json:"merged_data"`
	Conflicts       []FieldConflict            `json:"conflicts,omitempty"`
	Strategy        ConflictResolutionStrategy `json:"strategy"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// UnmergeResult contains the outcome of an unmerge
type UnmergeResult struct {
	Success           bool      `json:"success"`
	MergeHistoryID    string    `json:"merge_history_id"`
	EntityType        string    `json:"entity_type"`
	RestoredEntityIDs []string  `json:"restored_entity_ids"`
	Reason            *string   `json:"reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// AutoMergeSweepResult summarizes an auto-merge pass over high confidence clusters
type AutoMergeSweepResult struct {
	TotalClusters  int           `json:"total_clusters"`
	MergedClusters int           `json:"merged_clusters"`
	FailedClusters int           `json:"failed_clusters"`
	DryRun         bool          `json:"dry_run"`
	MergeResults   []MergeResult `json:"merge_results,omitempty"`
	Errors         []SweepError  `json:"errors,omitempty"`
}

// SweepError records a per-cluster failure during a sweep
type SweepError struct {
	ClusterID string `json:"cluster_id"`
	Error     string `json:"error"`
}

// PreviewMergeRequest is the request for a merge preview
type PreviewMergeRequest struct {
	EntityIDs  []string `json:"entity_ids" validate:"required"`
	EntityType string   `json:"entity_type,omitempty"`
}

// MergeEntitiesRequest is the request to merge source entities into a target
type MergeEntitiesRequest struct {
	TargetID        string                     `json:"target_id" validate:"required"`
	SourceIDs       []string                   `json:"source_ids" validate:"required"`
	Strategy        ConflictResolutionStrategy `json:"strategy,omitempty"`
	PreserveSources bool                       `json:"preserve_sources"`
	FieldOverrides  map[string]any             `json:"field_overrides,omitempty"`
	MergedBy        *string                    `json:"merged_by,omitempty"`
	Notes           *string                    `json:"notes,omitempty"`
}

// MergeClusterRequest is the request to merge a whole duplicate cluster
type MergeClusterRequest struct {
	ClusterID      string                     `json:"cluster_id" validate:"required"`
	MasterEntityID *string                    `json:"master_entity_id,omitempty"`
	Strategy       ConflictResolutionStrategy `json:"strategy,omitempty"`
	MergedBy       *string                    `json:"merged_by,omitempty"`
}

// UnmergeRequest is the request to undo a previous merge
type UnmergeRequest struct {
	MergeHistoryID string  `json:"merge_history_id" validate:"required"`
	Reason         *string `json:"reason,omitempty"`
}

// AutoMergeSweepRequest is the request for an auto-merge sweep
type AutoMergeSweepRequest struct {
	EntityType string  `json:"entity_type,omitempty"`
	Threshold  float64 `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	DryRun     bool    `json:"dry_run"`
	Limit      int     `json:"limit,omitempty" validate:"omitempty,gte=1"`
}

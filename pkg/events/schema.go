package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeEntityMerged   EventType = "entity.merged"
	EventTypeEntityUnmerged EventType = "entity.unmerged"
	EventTypeEntityDeleted  EventType = "entity.deleted"
	EventTypeSweepCompleted EventType = "merge.sweep.completed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EntityMergedEvent is emitted after a merge commits
type EntityMergedEvent struct {
	BaseEvent
	MergedEntityID string         `json:"merged_entity_id"`
	EntityType     string         `json:"entity_type"`
	SourceEntities []string       `json:"source_entities"`
	MergeHistoryID string         `json:"merge_history_id"`
	Strategy       string         `json:"strategy"`
	ConflictCount  int            `json:"conflict_count"`
	Data           map[string]any `json:"data,omitempty"`
}

// EntityUnmergedEvent is emitted after an unmerge commits
type EntityUnmergedEvent struct {
	BaseEvent
	MergeHistoryID   string   `json:"merge_history_id"`
	RestoredEntities []string `json:"restored_entities"`
	Reason           string   `json:"reason,omitempty"`
}

// EntityDeletedEvent is emitted after an entity is soft deleted
type EntityDeletedEvent struct {
	BaseEvent
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
	DeletedBy  string `json:"deleted_by,omitempty"`
}

// SweepCompletedEvent is emitted after an auto-merge sweep finishes
type SweepCompletedEvent struct {
	BaseEvent
	EntityType     string `json:"entity_type,omitempty"`
	TotalClusters  int    `json:"total_clusters"`
	MergedClusters int    `json:"merged_clusters"`
	FailedClusters int    `json:"failed_clusters"`
	DryRun         bool   `json:"dry_run"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}

// Package events handles event emission for merge lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/tracing"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for merge lifecycle changes. Emission is
// best effort: callers log failures but never fail the request over them.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitEntityMerged emits an entity merged event after the merge commits
func (e *Emitter) EmitEntityMerged(ctx context.Context, tenantID string, entityType string, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityMerged")
	defer span.End()

	payload := EntityMergedEvent{
		BaseEvent:      NewBaseEvent(EventTypeEntityMerged, tenantID),
		MergedEntityID: result.MergedEntityID,
		EntityType:     entityType,
		SourceEntities: result.SourceEntityIDs,
		MergeHistoryID: result.MergeHistoryID,
		Strategy:       string(result.Strategy),
		ConflictCount:  len(result.Conflicts),
		Data:           result.MergedData,
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:      string(EventTypeEntityMerged),
		TenantID:       tenantID,
		EntityID:       result.MergedEntityID,
		EntityType:     entityType,
		Data:           dataJSON,
		SourceEntities: result.SourceEntityIDs,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.merged event")
		return err
	}

	return nil
}

// EmitEntityUnmerged emits an entity unmerged event after the unmerge commits
func (e *Emitter) EmitEntityUnmerged(ctx context.Context, tenantID string, entityType string, result *models.UnmergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityUnmerged")
	defer span.End()

	payload := EntityUnmergedEvent{
		BaseEvent:        NewBaseEvent(EventTypeEntityUnmerged, tenantID),
		MergeHistoryID:   result.MergeHistoryID,
		RestoredEntities: result.RestoredEntityIDs,
	}
	if result.Reason != nil {
		payload.Reason = *result.Reason
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:  string(EventTypeEntityUnmerged),
		TenantID:   tenantID,
		EntityID:   result.MergeHistoryID,
		EntityType: entityType,
		Data:       dataJSON,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.unmerged event")
		return err
	}

	return nil
}

// EmitEntityDeleted emits an entity deleted event after a soft delete
func (e *Emitter) EmitEntityDeleted(ctx context.Context, tenantID string, entity *models.Entity, deletedBy string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityDeleted")
	defer span.End()

	payload := EntityDeletedEvent{
		BaseEvent:  NewBaseEvent(EventTypeEntityDeleted, tenantID),
		EntityID:   entity.ID,
		EntityType: entity.EntityType,
		DeletedBy:  deletedBy,
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:  string(EventTypeEntityDeleted),
		TenantID:   tenantID,
		EntityID:   entity.ID,
		EntityType: entity.EntityType,
		Data:       dataJSON,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.deleted event")
		return err
	}

	return nil
}

// EmitSweepCompleted emits a summary event after an auto-merge sweep
func (e *Emitter) EmitSweepCompleted(ctx context.Context, tenantID string, entityType string, result *models.AutoMergeSweepResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSweepCompleted")
	defer span.End()

	payload := SweepCompletedEvent{
		BaseEvent:      NewBaseEvent(EventTypeSweepCompleted, tenantID),
		EntityType:     entityType,
		TotalClusters:  result.TotalClusters,
		MergedClusters: result.MergedClusters,
		FailedClusters: result.FailedClusters,
		DryRun:         result.DryRun,
	}

	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:  string(EventTypeSweepCompleted),
		TenantID:   tenantID,
		EntityID:   tenantID,
		EntityType: entityType,
		Data:       dataJSON,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit merge.sweep.completed event")
		return err
	}

	return nil
}

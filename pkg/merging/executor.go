package merging

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MergeEntities merges the source entities into the target inside a single
// transaction: resolved fields are written to the target, exactly one audit
// row is created, sources are marked merged and duplicate/cluster rows are
// pointed at the surviving entity. Any step failure rolls everything back and
// returns the original error.
func (e *Engine) MergeEntities(
	ctx context.Context,
	tenantID string,
	targetID string,
	sourceIDs []string,
	options models.MergeOptions,
) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeEntities")
	defer span.End()

	sources := dedupeIDs(sourceIDs)
	sources = removeID(sources, targetID)
	if len(sources) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "At least 1 source entity required")
	}
	if targetID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "Target entity is required")
	}

	strategy := options.Strategy
	if strategy == "" {
		strategy = models.StrategyPreferComplete
	}
	if !strategy.IsValid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "Unknown conflict resolution strategy %q", strategy)
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":    tenantID,
		"target_id":    targetID,
		"source_count": len(sources),
		"strategy":     strategy,
	})

	ctxTx, tx, err := e.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	result, err := e.executeMerge(ctxTx, tenantID, targetID, sources, strategy, options, log)
	if err != nil {
		if rbErr := tx.Rollback(ctxTx); rbErr != nil {
			log.WithError(rbErr).Error("Failed to roll back merge transaction")
			return nil, rbErr
		}
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		if rbErr := tx.Rollback(ctxTx); rbErr != nil {
			return nil, rbErr
		}
		return nil, err
	}

	log.WithFields(map[string]any{"merge_history_id": result.MergeHistoryID}).Info("Merged entities")

	return result, nil
}

// executeMerge runs every merge step against the open transaction.
func (e *Engine) executeMerge(
	ctx context.Context,
	tenantID string,
	targetID string,
	sourceIDs []string,
	strategy models.ConflictResolutionStrategy,
	options models.MergeOptions,
	log ectologger.Logger,
) (*models.MergeResult, error) {
	ids := append([]string{targetID}, sourceIDs...)

	entities, err := e.entities.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	var target *models.Entity
	sources := make([]models.Entity, 0, len(entities))
	for i := range entities {
		if entities[i].ID == targetID {
			target = &entities[i]
		} else {
			sources = append(sources, entities[i])
		}
	}

	if target == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "Target entity not found")
	}
	if len(sources) == 0 || len(entities) < 2 {
		// a concurrent merge can leave fewer than 2 still-active entities
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "At least 2 entities are required for a merge")
	}

	all := append([]models.Entity{*target}, sources...)
	conflicts, _ := AnalyzeConflicts(all, e.options.ConfidenceEpsilon)

	mergedData := resolveFields(target, sources, conflicts, strategy, options.FieldOverrides)
	log.WithFields(map[string]any{"conflict_count": len(conflicts)}).Debug("Resolved merge fields")

	if err := e.entities.UpdateData(ctx, tenantID, targetID, mergedData); err != nil {
		return nil, err
	}

	snapshots := make([]models.EntitySnapshot, 0, len(all))
	for i := range all {
		snapshots = append(snapshots, snapshotEntity(&all[i]))
	}

	resolvedSourceIDs := make([]string, 0, len(sources))
	for i := range sources {
		resolvedSourceIDs = append(resolvedSourceIDs, sources[i].ID)
	}

	history, err := e.history.Create(ctx, &models.MergeHistory{
		TenantID:      tenantID,
		EntityType:    target.EntityType,
		TargetID:      targetID,
		SourceIDs:     database.NewJSONB(resolvedSourceIDs),
		Strategy:      string(strategy),
		MergedData:    database.NewJSONB(mergedData),
		Snapshots:     database.NewJSONB(snapshots),
		Conflicts:     database.NewJSONB(conflicts),
		ConflictCount: len(conflicts),
		MergedBy:      options.MergedBy,
		Notes:         options.Notes,
		CanUnmerge:    true,
	})
	if err != nil {
		return nil, err
	}

	if options.PreserveSources {
		if err := e.entities.NotePreserved(ctx, tenantID, resolvedSourceIDs, targetID, "preserved by merge"); err != nil {
			return nil, err
		}
	} else {
		if err := e.entities.MarkMerged(ctx, tenantID, resolvedSourceIDs, targetID); err != nil {
			return nil, err
		}
	}

	involved := append([]string{targetID}, resolvedSourceIDs...)
	if err := e.candidates.ResolveForEntities(ctx, tenantID, involved, models.MatchCandidateStatusMerged, options.MergedBy); err != nil {
		return nil, err
	}
	if err := e.clusters.MarkMergedForEntities(ctx, tenantID, involved, targetID); err != nil {
		return nil, err
	}

	return &models.MergeResult{
		Success:         true,
		MergedEntityID:  targetID,
		EntityType:      target.EntityType,
		SourceEntityIDs: resolvedSourceIDs,
		MergeHistoryID:  history.ID,
		MergedData:      mergedData,
		Conflicts:       conflicts,
		Strategy:        strategy,
		Timestamp:       time.Now().UTC(),
	}, nil
}

func snapshotEntity(entity *models.Entity) models.EntitySnapshot {
	return models.EntitySnapshot{
		EntityID:         entity.ID,
		Status:           entity.Status,
		Data:             entity.GetData(),
		Confidence:       entity.Confidence,
		ValidationStatus: entity.ValidationStatus,
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

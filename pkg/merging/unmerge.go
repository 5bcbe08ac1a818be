package merging

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// UnmergeEntities reverses one executed merge inside a single transaction.
// Sources return to active from their audit snapshots, the history row is
// stamped unmerged and duplicate/cluster rows reopen for re-evaluation.
func (e *Engine) UnmergeEntities(
	ctx context.Context,
	tenantID string,
	mergeHistoryID string,
	reason *string,
) (*models.UnmergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.UnmergeEntities")
	defer span.End()

	if mergeHistoryID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "Merge history id is required")
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":        tenantID,
		"merge_history_id": mergeHistoryID,
	})

	ctxTx, tx, err := e.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}

	result, err := e.executeUnmerge(ctxTx, tenantID, mergeHistoryID, reason)
	if err != nil {
		if rbErr := tx.Rollback(ctxTx); rbErr != nil {
			log.WithError(rbErr).Error("Failed to roll back unmerge transaction")
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

	log.WithFields(map[string]any{"restored_count": len(result.RestoredEntityIDs)}).Info("Unmerged entities")

	return result, nil
}

func (e *Engine) executeUnmerge(ctx context.Context, tenantID, mergeHistoryID string, reason *string) (*models.UnmergeResult, error) {
	history, err := e.history.GetByID(ctx, tenantID, mergeHistoryID)
	if err != nil {
		return nil, err
	}
	if history == nil || history.Unmerged {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "Merge not found or already unmerged")
	}
	if !history.CanUnmerge {
		return nil, httperror.NewHTTPError(http.StatusConflict, "This merge cannot be unmerged")
	}

	window := time.Duration(e.options.UnmergeWindowDays) * 24 * time.Hour
	if time.Since(history.CreatedAt) > window {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "Merges cannot be undone after %d days", e.options.UnmergeWindowDays)
	}

	// the authoritative guard: only one caller ever flips the flag
	updated, err := e.history.MarkUnmerged(ctx, tenantID, mergeHistoryID, reason)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "Merge not found or already unmerged")
	}

	restored := make([]string, 0, len(history.SourceIDs.Data))
	for _, sourceID := range history.SourceIDs.Data {
		snapshot, ok := history.SnapshotFor(sourceID)
		if !ok {
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "Merge snapshot missing for entity %s", sourceID)
		}
		snapshot.Status = models.EntityStatusActive
		if err := e.entities.RestoreSnapshot(ctx, tenantID, snapshot); err != nil {
			return nil, err
		}
		restored = append(restored, sourceID)
	}

	// the target also reverts to its pre-merge payload
	if snapshot, ok := history.SnapshotFor(history.TargetID); ok {
		if err := e.entities.RestoreSnapshot(ctx, tenantID, snapshot); err != nil {
			return nil, err
		}
	}

	involved := append([]string{history.TargetID}, history.SourceIDs.Data...)
	if err := e.candidates.ReopenForEntities(ctx, tenantID, involved); err != nil {
		return nil, err
	}
	if err := e.clusters.ReopenForEntities(ctx, tenantID, involved); err != nil {
		return nil, err
	}

	return &models.UnmergeResult{
		Success:           true,
		MergeHistoryID:    mergeHistoryID,
		EntityType:        history.EntityType,
		RestoredEntityIDs: restored,
		Reason:            reason,
		Timestamp:         time.Now().UTC(),
	}, nil
}

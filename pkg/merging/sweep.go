package merging

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// AutoMergeHighConfidenceDuplicates merges every active cluster at or above
// the confidence threshold. Clusters are processed sequentially so the audit
// trail stays ordered; one cluster's failure is recorded and the sweep moves
// on. With dryRun set nothing is mutated and only counts are reported.
func (e *Engine) AutoMergeHighConfidenceDuplicates(
	ctx context.Context,
	tenantID string,
	entityType string,
	threshold float64,
	dryRun bool,
	limit int,
) (*models.AutoMergeSweepResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.AutoMergeHighConfidenceDuplicates")
	defer span.End()

	if threshold <= 0 {
		threshold = e.options.AutoMergeThreshold
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"threshold":   threshold,
		"dry_run":     dryRun,
	})

	clusters, err := e.clusters.ListHighConfidence(ctx, tenantID, entityType, threshold, limit)
	if err != nil {
		return nil, err
	}

	result := &models.AutoMergeSweepResult{
		TotalClusters: len(clusters),
		DryRun:        dryRun,
	}

	if dryRun {
		log.WithFields(map[string]any{"eligible": len(clusters)}).Info("Auto-merge dry run complete")
		return result, nil
	}

	for i := range clusters {
		cluster := &clusters[i]
		mergeResult, err := e.MergeCluster(ctx, tenantID, cluster.ID, nil, models.MergeOptions{
			Strategy: models.StrategyPreferComplete,
		})
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"cluster_id": cluster.ID}).Warn("Auto-merge failed for cluster")
			result.FailedClusters++
			result.Errors = append(result.Errors, models.SweepError{
				ClusterID: cluster.ID,
				Error:     err.Error(),
			})
			continue
		}

		result.MergedClusters++
		result.MergeResults = append(result.MergeResults, *mergeResult)
	}

	log.WithFields(map[string]any{
		"total":  result.TotalClusters,
		"merged": result.MergedClusters,
		"failed": result.FailedClusters,
	}).Info("Auto-merge sweep complete")

	return result, nil
}

package merging

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MergeCluster resolves a duplicate cluster to a master and sources and
// delegates to MergeEntities. When no master is given the highest quality
// member wins.
func (e *Engine) MergeCluster(
	ctx context.Context,
	tenantID string,
	clusterID string,
	masterEntityID *string,
	options models.MergeOptions,
) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeCluster")
	defer span.End()

	cluster, err := e.clusters.GetByID(ctx, tenantID, clusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "Cluster not found")
	}

	memberIDs := dedupeIDs(cluster.EntityIDs.Data)
	if len(memberIDs) < 2 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "Cluster must contain at least 2 entities to merge")
	}

	master, err := e.resolveMaster(ctx, tenantID, memberIDs, masterEntityID)
	if err != nil {
		return nil, err
	}

	sources := removeID(append([]string(nil), memberIDs...), master)

	result, err := e.MergeEntities(ctx, tenantID, master, sources, options)
	if err != nil {
		return nil, err
	}

	// the merge already committed and closed the cluster row in-tx; a failed
	// reviewer/master stamp must not fail the request
	if err := e.clusters.MarkMerged(ctx, tenantID, clusterID, master, options.MergedBy); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":  tenantID,
			"cluster_id": clusterID,
		}).Warn("Failed to stamp cluster after merge")
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"cluster_id": clusterID,
		"master_id":  master,
	}).Info("Merged duplicate cluster")

	return result, nil
}

// resolveMaster validates an explicit master or selects the highest quality
// cluster member.
func (e *Engine) resolveMaster(ctx context.Context, tenantID string, memberIDs []string, masterEntityID *string) (string, error) {
	if masterEntityID != nil && *masterEntityID != "" {
		for _, id := range memberIDs {
			if id == *masterEntityID {
				return *masterEntityID, nil
			}
		}
		return "", httperror.NewHTTPErrorf(http.StatusBadRequest, "Master entity %s is not a member of the cluster", *masterEntityID)
	}

	entities, err := e.entities.GetByIDs(ctx, tenantID, memberIDs)
	if err != nil {
		return "", err
	}
	if len(entities) < 2 {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "Cluster must contain at least 2 entities to merge")
	}

	scores := make(map[string]float64, len(entities))
	for i := range entities {
		scores[entities[i].ID] = e.scorer.Score(&entities[i]).Overall
	}

	return e.suggestMaster(entities, scores), nil
}

package cluster

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/models"
)

const columns = "id, tenant_id, entity_type, entity_ids, confidence_score, status, master_entity_id, reviewed_by, created_at, updated_at"

// Repository handles duplicate cluster persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new duplicate cluster repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a duplicate cluster
func (r *Repository) Create(ctx context.Context, cluster *models.DuplicateCluster) (*models.DuplicateCluster, error) {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.Create")
	defer span.End()

	if cluster.ID == "" {
		cluster.ID = uuid.New().String()
	}
	if cluster.Status == "" {
		cluster.Status = models.ClusterStatusActive
	}
	cluster.CreatedAt = time.Now().UTC()
	cluster.UpdatedAt = cluster.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("duplicate_clusters")
	sb.Cols("id", "tenant_id", "entity_type", "entity_ids", "confidence_score", "status", "created_at", "updated_at")
	sb.Values(cluster.ID, cluster.TenantID, cluster.EntityType, cluster.EntityIDs, cluster.ConfidenceScore, cluster.Status, cluster.CreatedAt, cluster.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"cluster_id": cluster.ID}).Error("Failed to create duplicate cluster")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate cluster")
	}

	return cluster, nil
}

// GetByID retrieves a duplicate cluster. Returns nil when the cluster does
// not exist.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.DuplicateCluster, error) {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("duplicate_clusters")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var cluster models.DuplicateCluster
	if err := r.db.GetContext(ctx, &cluster, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate cluster")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate cluster")
	}

	return &cluster, nil
}

// List retrieves clusters filtered by type and status
func (r *Repository) List(ctx context.Context, tenantID string, entityType string, status string, limit, offset int) ([]models.DuplicateCluster, error) {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("duplicate_clusters")

	where := []string{sb.Equal("tenant_id", tenantID)}
	if entityType != "" {
		where = append(where, sb.Equal("entity_type", entityType))
	}
	if status != "" {
		where = append(where, sb.Equal("status", status))
	}
	sb.Where(where...)
	sb.OrderBy("confidence_score DESC", "created_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var clusters []models.DuplicateCluster
	if err := r.db.SelectContext(ctx, &clusters, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate clusters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate clusters")
	}

	return clusters, nil
}

// ListHighConfidence retrieves active clusters at or above the threshold,
// highest confidence first
func (r *Repository) ListHighConfidence(ctx context.Context, tenantID string, entityType string, threshold float64, limit int) ([]models.DuplicateCluster, error) {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.ListHighConfidence")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("duplicate_clusters")

	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.ClusterStatusActive),
		sb.GreaterEqualThan("confidence_score", threshold),
	}
	if entityType != "" {
		where = append(where, sb.Equal("entity_type", entityType))
	}
	sb.Where(where...)
	sb.OrderBy("confidence_score DESC", "created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var clusters []models.DuplicateCluster
	if err := r.db.SelectContext(ctx, &clusters, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list high confidence clusters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list high confidence clusters")
	}

	return clusters, nil
}

// MarkMerged closes a cluster around its surviving master
func (r *Repository) MarkMerged(ctx context.Context, tenantID string, clusterID string, masterEntityID string, reviewedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.MarkMerged")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("duplicate_clusters")
	sb.Set(
		sb.Assign("status", models.ClusterStatusMerged),
		sb.Assign("master_entity_id", masterEntityID),
		sb.Assign("reviewed_by", reviewedBy),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", clusterID),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"cluster_id": clusterID}).Error("Failed to mark cluster as merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark cluster as merged")
	}

	return nil
}

// MarkMergedForEntities closes every active cluster containing any of the
// given entities
func (r *Repository) MarkMergedForEntities(ctx context.Context, tenantID string, entityIDs []string, masterEntityID string) error {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.MarkMergedForEntities")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil
	}

	query := `
		UPDATE duplicate_clusters
		SET status = $1, master_entity_id = $2, updated_at = $3
		WHERE tenant_id = $4
		AND status = $5
		AND entity_ids ?| $6
	`

	args := []any{
		models.ClusterStatusMerged,
		masterEntityID,
		time.Now().UTC(),
		tenantID,
		models.ClusterStatusActive,
		pqStringArray(entityIDs),
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark clusters as merged for entities")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark clusters as merged")
	}

	return nil
}

// ReopenForEntities reactivates merged clusters containing any of the given
// entities so they can be re-reviewed after an unmerge
func (r *Repository) ReopenForEntities(ctx context.Context, tenantID string, entityIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "cluster.Repository.ReopenForEntities")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil
	}

	query := `
		UPDATE duplicate_clusters
		SET status = $1, master_entity_id = NULL, updated_at = $2
		WHERE tenant_id = $3
		AND status = $4
		AND entity_ids ?| $5
	`

	args := []any{
		models.ClusterStatusActive,
		time.Now().UTC(),
		tenantID,
		models.ClusterStatusMerged,
		pqStringArray(entityIDs),
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reopen clusters for entities")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reopen clusters")
	}

	return nil
}

// pqStringArray adapts ids for the jsonb ?| operator, which takes text[]
func pqStringArray(ids []string) any {
	return pq.Array(ids)
}

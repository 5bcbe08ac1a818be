package mergehistory

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

	"github.com/Ramsey-B/clover/pkg/models"
)

const columns = "id, tenant_id, entity_type, target_id, source_ids, strategy, merged_data, snapshots, conflicts, conflict_count, merged_by, notes, can_unmerge, unmerged, unmerged_at, unmerge_reason, created_at"

// Repository handles merge audit persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge history repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a merge audit row
func (r *Repository) Create(ctx context.Context, history *models.MergeHistory) (*models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.Create")
	defer span.End()

	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	history.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merge_history")
	sb.Cols("id", "tenant_id", "entity_type", "target_id", "source_ids", "strategy", "merged_data", "snapshots", "conflicts", "conflict_count", "merged_by", "notes", "can_unmerge", "unmerged", "created_at")
	sb.Values(history.ID, history.TenantID, history.EntityType, history.TargetID, history.SourceIDs, history.Strategy, history.MergedData, history.Snapshots, history.Conflicts, history.ConflictCount, history.MergedBy, history.Notes, history.CanUnmerge, history.Unmerged, history.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"target_id": history.TargetID}).Error("Failed to create merge history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge history")
	}

	return history, nil
}

// GetByID retrieves a merge audit row. Returns nil when the row does not exist.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("merge_history")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var history models.MergeHistory
	if err := r.db.GetContext(ctx, &history, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get merge history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge history")
	}

	return &history, nil
}

// ListByEntity retrieves merge audit rows involving an entity as target or source
func (r *Repository) ListByEntity(ctx context.Context, tenantID string, entityID string, limit int) ([]models.MergeHistory, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.ListByEntity")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT ` + columns + `
		FROM merge_history
		WHERE tenant_id = $1
		AND (target_id = $2 OR source_ids @> to_jsonb($2::text))
		ORDER BY created_at DESC
		LIMIT $3
	`

	var histories []models.MergeHistory
	if err := r.db.SelectContext(ctx, &histories, query, tenantID, entityID, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge history by entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge history")
	}

	return histories, nil
}

// MarkUnmerged flips the unmerged flag. The WHERE clause guards against a
// concurrent unmerge of the same row; false means another caller won.
func (r *Repository) MarkUnmerged(ctx context.Context, tenantID string, id string, reason *string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "mergehistory.Repository.MarkUnmerged")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("merge_history")
	sb.Set(
		sb.Assign("unmerged", true),
		sb.Assign("unmerged_at", time.Now().UTC()),
		sb.Assign("unmerge_reason", reason),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("unmerged", false),
		sb.Equal("can_unmerge", true),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"merge_history_id": id}).Error("Failed to mark merge as unmerged")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark merge as unmerged")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

package matchcandidate

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

const columns = "id, tenant_id, entity_type, source_entity_id, candidate_entity_id, similarity_score, matched_fields, status, created_at, updated_at, resolved_at, resolved_by"

// Repository handles match candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new match candidate
func (r *Repository) Create(ctx context.Context, candidate *models.MatchCandidate) (*models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.Create")
	defer span.End()

	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	candidate.CreatedAt = time.Now().UTC()
	candidate.UpdatedAt = candidate.CreatedAt
	candidate.Status = models.MatchCandidateStatusPending

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_candidates")
	sb.Cols("id", "tenant_id", "entity_type", "source_entity_id", "candidate_entity_id", "similarity_score", "matched_fields", "status", "created_at", "updated_at")
	sb.Values(candidate.ID, candidate.TenantID, candidate.EntityType, candidate.SourceEntityID, candidate.CandidateEntityID, candidate.SimilarityScore, candidate.MatchedFields, candidate.Status, candidate.CreatedAt, candidate.UpdatedAt)

	query, args := sb.Build()
	// duplicates for the same pair keep the strongest observed score
	query += " ON CONFLICT (tenant_id, source_entity_id, candidate_entity_id) DO UPDATE SET similarity_score = GREATEST(match_candidates.similarity_score, EXCLUDED.similarity_score), matched_fields = EXCLUDED.matched_fields, updated_at = EXCLUDED.updated_at"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"candidate_id": candidate.ID}).Error("Failed to create match candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match candidate")
	}

	return candidate, nil
}

// GetByID retrieves a match candidate. Returns nil when the candidate does
// not exist.
func (r *Repository) GetByID(ctx context.Context, tenantID string, id string) (*models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_candidates")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var candidate models.MatchCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match candidate")
	}

	return &candidate, nil
}

// ListPending retrieves pending match candidates ranked by similarity
func (r *Repository) ListPending(ctx context.Context, tenantID string, entityType string, limit int) ([]models.MatchCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.ListPending")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("match_candidates")

	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.MatchCandidateStatusPending),
	}
	if entityType != "" {
		where = append(where, sb.Equal("entity_type", entityType))
	}
	sb.Where(where...)
	sb.OrderBy("similarity_score DESC", "created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var candidates []models.MatchCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending match candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending match candidates")
	}

	return candidates, nil
}

// ResolveForEntities closes every pending candidate touching any of the given
// entities
func (r *Repository) ResolveForEntities(ctx context.Context, tenantID string, entityIDs []string, status string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.ResolveForEntities")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_candidates")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.MatchCandidateStatusPending),
		sb.Or(
			sb.In("source_entity_id", idsToAny(entityIDs)...),
			sb.In("candidate_entity_id", idsToAny(entityIDs)...),
		),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve match candidates for entities")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve match candidates")
	}

	return nil
}

// ReopenForEntities returns resolved candidates touching any of the given
// entities to pending after an unmerge
func (r *Repository) ReopenForEntities(ctx context.Context, tenantID string, entityIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.ReopenForEntities")
	defer span.End()

	if len(entityIDs) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_candidates")
	sb.Set(
		sb.Assign("status", models.MatchCandidateStatusPending),
		sb.Assign("resolved_at", nil),
		sb.Assign("resolved_by", nil),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.NotEqual("status", models.MatchCandidateStatusPending),
		sb.Or(
			sb.In("source_entity_id", idsToAny(entityIDs)...),
			sb.In("candidate_entity_id", idsToAny(entityIDs)...),
		),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reopen match candidates for entities")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reopen match candidates")
	}

	return nil
}

// Dismiss closes a single candidate without merging
func (r *Repository) Dismiss(ctx context.Context, tenantID string, id string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchcandidate.Repository.Dismiss")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_candidates")
	sb.Set(
		sb.Assign("status", models.MatchCandidateStatusDismissed),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.MatchCandidateStatusPending),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to dismiss match candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to dismiss match candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "match candidate %s not found", id)
	}

	return nil
}

func idsToAny(ids []string) []any {
	result := make([]any, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}

package merging

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// PreviewMerge analyzes a prospective merge without mutating anything.
func (e *Engine) PreviewMerge(ctx context.Context, tenantID string, entityIDs []string) (*models.MergePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.PreviewMerge")
	defer span.End()

	ids := dedupeIDs(entityIDs)
	if len(ids) < 2 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "At least 2 entities are required for a merge preview")
	}

	entities, err := e.entities.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(entities) < 2 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "At least 2 entities are required for a merge preview")
	}

	conflicts, comparedFields := AnalyzeConflicts(entities, e.options.ConfidenceEpsilon)

	qualityScores := make(map[string]float64, len(entities))
	for i := range entities {
		qualityScores[entities[i].ID] = e.scorer.Score(&entities[i]).Overall
	}

	master := e.suggestMaster(entities, qualityScores)
	confidence := e.previewConfidence(len(conflicts), comparedFields, qualityScores)

	var warnings []string
	if len(conflicts) > e.options.ConflictWarningCount {
		warnings = append(warnings, fmt.Sprintf("High conflict count: %d fields disagree across the selected entities", len(conflicts)))
	}
	if confidence < e.options.PreviewConfidenceFloor {
		warnings = append(warnings, fmt.Sprintf("Low merge confidence (%.2f); manual review recommended", confidence))
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":        tenantID,
		"entity_count":     len(entities),
		"conflict_count":   len(conflicts),
		"suggested_master": master,
	}).Debug("Generated merge preview")

	return &models.MergePreview{
		SourceData:        entities,
		SuggestedMasterID: master,
		Conflicts:         conflicts,
		ComparedFields:    comparedFields,
		QualityScores:     qualityScores,
		Confidence:        confidence,
		Warnings:          warnings,
	}, nil
}

// CalculateDataQualityScore scores a single entity.
func (e *Engine) CalculateDataQualityScore(ctx context.Context, tenantID, entityID string) (*models.QualityScore, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.CalculateDataQualityScore")
	defer span.End()

	entity, err := e.entities.GetByID(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "Entity not found")
	}

	score := e.scorer.Score(entity)
	return &score, nil
}

// suggestMaster picks the highest quality entity, ties broken by most recent
// update then lowest id.
func (e *Engine) suggestMaster(entities []models.Entity, scores map[string]float64) string {
	best := &entities[0]
	for i := 1; i < len(entities); i++ {
		candidate := &entities[i]
		switch {
		case scores[candidate.ID] > scores[best.ID]:
			best = candidate
		case scores[candidate.ID] == scores[best.ID]:
			if candidate.UpdatedAt.After(best.UpdatedAt) ||
				(candidate.UpdatedAt.Equal(best.UpdatedAt) && candidate.ID < best.ID) {
				best = candidate
			}
		}
	}
	return best.ID
}

// previewConfidence blends conflict density with mean quality into one 0..1
// figure: 0.6 * (1 - conflicts/comparedFields) + 0.4 * avgQuality.
func (e *Engine) previewConfidence(conflictCount, comparedFields int, scores map[string]float64) float64 {
	density := 0.0
	if comparedFields > 0 {
		density = float64(conflictCount) / float64(comparedFields)
	}

	avgQuality := 0.0
	if len(scores) > 0 {
		for _, s := range scores {
			avgQuality += s
		}
		avgQuality /= float64(len(scores))
	}

	confidence := 0.6*(1-density) + 0.4*avgQuality
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// dedupeIDs removes duplicate and empty ids, preserving first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

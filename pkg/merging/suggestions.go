package merging

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// GetSmartMergeSuggestions turns pending match candidates into ranked merge
// recommendations. Scores at or above the auto-merge threshold recommend
// auto_merge, scores at or above the review floor recommend manual_review,
// everything else is ignorable.
func (e *Engine) GetSmartMergeSuggestions(ctx context.Context, tenantID, entityType string, limit int) ([]models.MergeSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.GetSmartMergeSuggestions")
	defer span.End()

	if limit <= 0 {
		limit = e.options.SuggestionDefaultLimit
	}
	if limit > e.options.SuggestionMaxLimit {
		limit = e.options.SuggestionMaxLimit
	}

	candidates, err := e.candidates.ListPending(ctx, tenantID, entityType, limit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.MergeSuggestion, 0, len(candidates))
	for i := range candidates {
		suggestions = append(suggestions, e.suggest(&candidates[i]))
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"count":       len(suggestions),
	}).Debug("Built merge suggestions")

	return suggestions, nil
}

func (e *Engine) suggest(candidate *models.MatchCandidate) models.MergeSuggestion {
	action := models.SuggestedActionIgnore
	switch {
	case candidate.SimilarityScore >= e.options.AutoMergeThreshold:
		action = models.SuggestedActionAutoMerge
	case candidate.SimilarityScore >= e.options.ReviewScoreFloor:
		action = models.SuggestedActionManualReview
	}

	matched := candidate.MatchedFields.Data
	reasoning := fmt.Sprintf("%.0f%% similarity", candidate.SimilarityScore*100)
	if len(matched) > 0 {
		reasoning = fmt.Sprintf("%.0f%% similarity across %d matched fields", candidate.SimilarityScore*100, len(matched))
	}

	return models.MergeSuggestion{
		CandidateID:       candidate.ID,
		EntityType:        candidate.EntityType,
		SourceEntityID:    candidate.SourceEntityID,
		CandidateEntityID: candidate.CandidateEntityID,
		SimilarityScore:   candidate.SimilarityScore,
		MatchedFields:     matched,
		SuggestedAction:   action,
		Reasoning:         reasoning,
	}
}

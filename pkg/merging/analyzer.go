package merging

import (
	"fmt"
	"sort"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// reservedFields never participate in conflict analysis even if they leak
// into the record payload.
var reservedFields = map[string]bool{
	"id":                true,
	"tenant_id":         true,
	"entity_type":       true,
	"status":            true,
	"confidence":        true,
	"validation_status": true,
	"merged_into_id":    true,
	"created_at":        true,
	"updated_at":        true,
	"deleted_at":        true,
}

// Suggestion reasons surfaced on conflicts.
const (
	reasonCompleteValue = "complete value preferred"
	reasonManualReview  = "requires manual review"
)

// AnalyzeConflicts compares the entities field by field and returns every
// conflicting field with provenance and a suggested resolution, plus the
// number of fields compared. It is pure and deterministic.
func AnalyzeConflicts(entities []models.Entity, epsilon float64) ([]models.FieldConflict, int) {
	fields := collectFields(entities)

	var conflicts []models.FieldConflict
	for _, field := range fields {
		if conflict := analyzeField(field, entities, epsilon); conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	return conflicts, len(fields)
}

// collectFields returns the sorted set of non-reserved fields present on any
// entity. Sorting keeps conflict output deterministic.
func collectFields(entities []models.Entity) []string {
	seen := map[string]bool{}
	for i := range entities {
		for field := range entities[i].GetData() {
			if !reservedFields[field] {
				seen[field] = true
			}
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func analyzeField(field string, entities []models.Entity, epsilon float64) *models.FieldConflict {
	values := collectValues(field, entities)
	if len(values) == 0 {
		return nil
	}

	distinct := distinctCount(values)

	// every entity agrees on the one value
	if distinct == 1 && len(values) == len(entities) {
		return nil
	}

	conflict := &models.FieldConflict{
		Field:  field,
		Values: values,
	}

	// exactly one populated value among otherwise empty candidates
	if distinct == 1 {
		conflict.SuggestedValue = values[0].Value
		conflict.SuggestionReason = reasonCompleteValue
		return conflict
	}

	// differing arrays are unioned rather than conflicting
	if allArrays(values) {
		return nil
	}

	suggestConflictResolution(conflict, epsilon)
	return conflict
}

// collectValues gathers the non-null values for a field with provenance.
func collectValues(field string, entities []models.Entity) []models.ConflictValue {
	var values []models.ConflictValue
	for i := range entities {
		entity := &entities[i]
		value, ok := entity.GetData()[field]
		if !ok || value == nil {
			continue
		}

		cv := models.ConflictValue{
			EntityID:   entity.ID,
			Value:      value,
			Confidence: entity.Confidence,
		}
		if !entity.UpdatedAt.IsZero() {
			updatedAt := entity.UpdatedAt
			cv.UpdatedAt = &updatedAt
		}
		values = append(values, cv)
	}
	return values
}

func distinctCount(values []models.ConflictValue) int {
	seen := map[string]bool{}
	for _, v := range values {
		seen[valueKey(v.Value)] = true
	}
	return len(seen)
}

// valueKey normalizes a value for equality comparison.
func valueKey(value any) string {
	if arr, ok := value.([]any); ok {
		keys := make([]string, len(arr))
		for i, item := range arr {
			keys[i] = fmt.Sprintf("%v", item)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%v", keys)
	}
	return fmt.Sprintf("%v", value)
}

func allArrays(values []models.ConflictValue) bool {
	for _, v := range values {
		if _, ok := v.Value.([]any); !ok {
			return false
		}
	}
	return true
}

// suggestConflictResolution fills in the suggested value for a multi-value
// conflict: a meaningfully higher confidence wins, then the most recent
// update, otherwise the conflict needs a human.
func suggestConflictResolution(conflict *models.FieldConflict, epsilon float64) {
	values := conflict.Values

	best := values[0]
	runnerUp := 0.0
	for i, v := range values {
		if i == 0 {
			continue
		}
		if v.Confidence > best.Confidence {
			runnerUp = best.Confidence
			best = v
		} else if v.Confidence > runnerUp {
			runnerUp = v.Confidence
		}
	}

	if best.Confidence-runnerUp > epsilon {
		conflict.SuggestedValue = best.Value
		conflict.SuggestionReason = fmt.Sprintf("higher extraction confidence (%.2f vs %.2f)", best.Confidence, runnerUp)
		return
	}

	if recent, ok := mostRecentValue(values); ok {
		conflict.SuggestedValue = recent.Value
		conflict.SuggestionReason = "most recently updated"
		return
	}

	conflict.RequiresManualReview = true
	conflict.SuggestionReason = reasonManualReview
}

// mostRecentValue returns the single value with the latest timestamp. It
// reports false when timestamps are missing or the latest is shared by
// different values.
func mostRecentValue(values []models.ConflictValue) (models.ConflictValue, bool) {
	var best models.ConflictValue
	var bestTime time.Time
	found := false
	tied := false

	for _, v := range values {
		if v.UpdatedAt == nil {
			continue
		}
		switch {
		case !found || v.UpdatedAt.After(bestTime):
			best = v
			bestTime = *v.UpdatedAt
			found = true
			tied = false
		case v.UpdatedAt.Equal(bestTime) && valueKey(v.Value) != valueKey(best.Value):
			tied = true
		}
	}

	if !found || tied {
		return models.ConflictValue{}, false
	}
	return best, true
}

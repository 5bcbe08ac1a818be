package merging

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// resolveFields builds the merged payload for the target from the target and
// source entities under the selected strategy. Conflicted scalar resolution is
// dispatched through resolveConflict; arrays are unioned unless the strategy
// explicitly prefers one side. Field overrides always win.
func resolveFields(
	target *models.Entity,
	sources []models.Entity,
	conflicts []models.FieldConflict,
	strategy models.ConflictResolutionStrategy,
	overrides map[string]any,
) map[string]any {
	all := make([]models.Entity, 0, len(sources)+1)
	all = append(all, *target)
	all = append(all, sources...)

	conflictByField := make(map[string]models.FieldConflict, len(conflicts))
	for _, c := range conflicts {
		conflictByField[c.Field] = c
	}

	merged := map[string]any{}
	for _, field := range collectFields(all) {
		if isArrayField(field, all) {
			if value := resolveArray(field, target, sources, strategy); value != nil {
				merged[field] = value
			}
			continue
		}

		conflict, hasConflict := conflictByField[field]
		if !hasConflict {
			if value := firstValue(field, all); value != nil {
				merged[field] = value
			}
			continue
		}

		value, set := resolveConflict(conflict, target, sources, strategy)
		if set {
			merged[field] = value
		}
	}

	for field, value := range overrides {
		if reservedFields[field] {
			continue
		}
		merged[field] = value
	}

	return merged
}

// resolveConflict picks the winning value for one conflicted scalar field.
// The second return is false when the field should be left unset.
func resolveConflict(
	conflict models.FieldConflict,
	target *models.Entity,
	sources []models.Entity,
	strategy models.ConflictResolutionStrategy,
) (any, bool) {
	switch strategy {
	case models.StrategyPreferSource:
		for i := range sources {
			if value, ok := nonNullValue(&sources[i], conflict.Field); ok {
				return value, true
			}
		}
		return nonNullValue(target, conflict.Field)

	case models.StrategyPreferTarget:
		if value, ok := nonNullValue(target, conflict.Field); ok {
			return value, true
		}
		return suggestedOrMostComplete(conflict)

	case models.StrategyPreferValidated:
		if value, ok := validatedValue(conflict, target, sources); ok {
			return value, true
		}
		return suggestedOrMostComplete(conflict)

	case models.StrategyManual:
		// a lone populated value is not a disagreement, keep it
		if conflict.SuggestionReason == reasonCompleteValue {
			return conflict.SuggestedValue, true
		}
		// disagreeing scalars are left unset for human entry
		return nil, false

	default:
		// PREFER_COMPLETE and MERGE_ARRAYS resolve scalars the same way
		return suggestedOrMostComplete(conflict)
	}
}

// suggestedOrMostComplete takes the analyzer's suggestion, falling back to the
// most complete value when the conflict needs manual review.
func suggestedOrMostComplete(conflict models.FieldConflict) (any, bool) {
	if !conflict.RequiresManualReview && conflict.SuggestedValue != nil {
		return conflict.SuggestedValue, true
	}
	return mostCompleteValue(conflict.Values)
}

// mostCompleteValue picks the value with the longest representation,
// tie-broken by entity id for determinism.
func mostCompleteValue(values []models.ConflictValue) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}

	best := values[0]
	for _, v := range values[1:] {
		bestLen := len(fmt.Sprintf("%v", best.Value))
		vLen := len(fmt.Sprintf("%v", v.Value))
		if vLen > bestLen || (vLen == bestLen && v.EntityID < best.EntityID) {
			best = v
		}
	}
	return best.Value, true
}

// validatedValue returns the value owned by a validation-passed entity,
// preferring higher confidence owners.
func validatedValue(conflict models.FieldConflict, target *models.Entity, sources []models.Entity) (any, bool) {
	validated := map[string]bool{}
	note := func(e *models.Entity) {
		if e.ValidationStatus != nil && *e.ValidationStatus == models.ValidationStatusPassed {
			validated[e.ID] = true
		}
	}
	note(target)
	for i := range sources {
		note(&sources[i])
	}

	var best *models.ConflictValue
	for i := range conflict.Values {
		v := &conflict.Values[i]
		if !validated[v.EntityID] {
			continue
		}
		if best == nil || v.Confidence > best.Confidence {
			best = v
		}
	}

	if best == nil {
		return nil, false
	}
	return best.Value, true
}

// resolveArray resolves an array field. Default behavior is a dedup union
// across every entity; source and target preferring strategies take one side.
func resolveArray(field string, target *models.Entity, sources []models.Entity, strategy models.ConflictResolutionStrategy) any {
	switch strategy {
	case models.StrategyPreferSource:
		for i := range sources {
			if value, ok := nonNullValue(&sources[i], field); ok {
				return value
			}
		}
		if value, ok := nonNullValue(target, field); ok {
			return value
		}
		return nil

	case models.StrategyPreferTarget:
		if value, ok := nonNullValue(target, field); ok {
			return value
		}
	}

	all := make([]models.Entity, 0, len(sources)+1)
	all = append(all, *target)
	all = append(all, sources...)
	return unionArrays(field, all)
}

// unionArrays merges array values across entities, deduplicated and sorted by
// string form for order independence.
func unionArrays(field string, entities []models.Entity) any {
	seen := map[string]bool{}
	var union []any
	for i := range entities {
		value, ok := entities[i].GetData()[field]
		if !ok || value == nil {
			continue
		}
		arr, ok := value.([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			key := fmt.Sprintf("%v", item)
			if !seen[key] {
				seen[key] = true
				union = append(union, item)
			}
		}
	}

	if union == nil {
		return nil
	}
	sort.Slice(union, func(i, j int) bool {
		return fmt.Sprintf("%v", union[i]) < fmt.Sprintf("%v", union[j])
	})
	return union
}

// isArrayField reports whether every non-null value for the field is an array.
func isArrayField(field string, entities []models.Entity) bool {
	found := false
	for i := range entities {
		value, ok := entities[i].GetData()[field]
		if !ok || value == nil {
			continue
		}
		if _, isArr := value.([]any); !isArr {
			return false
		}
		found = true
	}
	return found
}

func nonNullValue(entity *models.Entity, field string) (any, bool) {
	value, ok := entity.GetData()[field]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// firstValue returns the first non-null value across entities in order.
func firstValue(field string, entities []models.Entity) any {
	for i := range entities {
		if value, ok := nonNullValue(&entities[i], field); ok {
			return value
		}
	}
	return nil
}

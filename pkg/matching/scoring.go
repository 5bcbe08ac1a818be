// Package matching scores how alike two records are. The scorers rank
// duplicate candidates and rescore entity pairs on demand.
package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// MatchedFieldThreshold is the per-field similarity at which a field counts
// as matched on a candidate pair.
const MatchedFieldThreshold = 0.85

// skipFields are record attributes that never participate in similarity
// scoring even if they leak into the payload.
var skipFields = map[string]bool{
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
	"source_file_ids":   true,
}

// fieldWeights biases the record score toward identifying fields. Fields
// not listed carry weight 1.
var fieldWeights = map[string]float64{
	"name":       3,
	"email":      3,
	"phone":      2,
	"customer":   2,
	"company":    2,
	"deal_value": 2,
}

// Scorer computes field and record level similarity in the [0, 1] range.
type Scorer struct{}

// NewScorer returns a ready to use Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// CompareEntities scores a pair of records of the same type. It compares
// every payload field present and non-null on both sides and returns the
// weighted record score plus the fields that cleared MatchedFieldThreshold,
// sorted by name.
func (s *Scorer) CompareEntities(source, candidate *models.Entity) (float64, []string) {
	var weightedSum, weightTotal float64
	var matched []string

	for field, a := range source.Data.Data {
		if skipFields[field] || a == nil {
			continue
		}
		b, ok := candidate.Data.Data[field]
		if !ok || b == nil {
			continue
		}
		if isComposite(a) || isComposite(b) {
			continue
		}

		sim := s.FieldSimilarity(field, a, b)
		weight := fieldWeights[field]
		if weight == 0 {
			weight = 1
		}
		weightedSum += sim * weight
		weightTotal += weight

		if sim >= MatchedFieldThreshold {
			matched = append(matched, field)
		}
	}

	if weightTotal == 0 {
		return 0, nil
	}
	sort.Strings(matched)
	return weightedSum / weightTotal, matched
}

// FieldSimilarity picks a comparator from the value types. Numbers use
// relative proximity, everything else is normalized per field kind and
// compared with Jaro-Winkler.
func (s *Scorer) FieldSimilarity(field string, a, b any) float64 {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return s.NumericProximity(af, bf)
	}
	return s.JaroWinkler(normalizeField(field, a), normalizeField(field, b))
}

// ExactMatch returns 1 when the normalized string forms are identical.
func (s *Scorer) ExactMatch(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	return 0
}

// Levenshtein returns edit-distance similarity normalized by the longer
// string.
func (s *Scorer) Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Jaro returns the Jaro similarity of two strings.
func (s *Scorer) Jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	window := max(len(ra), len(rb))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(ra))
	bMatched := make([]bool, len(rb))
	matches := 0

	for i := range ra {
		lo := max(0, i-window)
		hi := min(i+window+1, len(rb))
		for j := lo; j < hi; j++ {
			if bMatched[j] || ra[i] != rb[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range ra {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-t)/m) / 3
}

// JaroWinkler boosts the Jaro similarity for a shared prefix of up to four
// characters.
func (s *Scorer) JaroWinkler(a, b string) float64 {
	jaro := s.Jaro(a, b)

	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < min(len(ra), len(rb), 4) && ra[prefix] == rb[prefix] {
		prefix++
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

// NumericProximity returns how close two numbers are relative to their
// larger magnitude. Equal values score 1, opposite signs score 0.
func (s *Scorer) NumericProximity(a, b float64) float64 {
	if a == b {
		return 1
	}
	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return 1
	}
	sim := 1 - math.Abs(a-b)/largest
	if sim < 0 {
		return 0
	}
	return sim
}

// DateProximity scores two timestamps by their distance inside the horizon.
// Dates further apart than horizonDays score 0.
func (s *Scorer) DateProximity(a, b time.Time, horizonDays int) float64 {
	if horizonDays <= 0 {
		return 0
	}
	gap := math.Abs(a.Sub(b).Hours()) / 24
	if gap >= float64(horizonDays) {
		return 0
	}
	return 1 - gap/float64(horizonDays)
}

// WeightedScore combines per-field scores into a single record score.
// Fields without a listed weight count with weight 1.
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	var sum, total float64
	for field, score := range scores {
		weight := weights[field]
		if weight == 0 {
			weight = 1
		}
		sum += score * weight
		total += weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func normalizeField(field string, v any) string {
	raw := fmt.Sprintf("%v", v)
	switch {
	case strings.Contains(field, "email"):
		return normalizers.NormalizeEmail(raw)
	case strings.Contains(field, "phone"):
		return normalizers.NormalizePhone(raw)
	case strings.Contains(field, "name") || field == "customer" || field == "company":
		return normalizers.NormalizeName(raw)
	}
	return normalizers.NormalizeText(raw)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isComposite(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

package quality

import (
	"sort"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Weights for the quality dimensions. They sum to 1.
const (
	completenessWeight = 0.4
	confidenceWeight   = 0.3
	validationWeight   = 0.2
	recencyWeight      = 0.1
)

// coreFields lists the fields that define completeness per entity type.
var coreFields = map[string][]string{
	"deal":    {"name", "customer", "deal_value", "currency", "expected_close_date", "account_id"},
	"vendor":  {"name", "website", "email", "phone", "address", "tax_id"},
	"contact": {"first_name", "last_name", "email", "phone", "company", "title"},
}

// Scorer computes data quality scores. It is pure: same entity in, same
// score out, and it never errors.
type Scorer struct {
	recencyHorizon time.Duration
	now            func() time.Time
}

func NewScorer(recencyHorizonDays int) *Scorer {
	return &Scorer{
		recencyHorizon: time.Duration(recencyHorizonDays) * 24 * time.Hour,
		now:            time.Now,
	}
}

// Score returns the weighted quality breakdown for an entity.
// Completeness 40%, confidence 30%, validation 20%, recency 10%.
func (s *Scorer) Score(entity *models.Entity) models.QualityScore {
	completeness, missing := s.completeness(entity)
	confidence := clamp(entity.Confidence)
	validation := s.validation(entity)
	recency := s.recency(entity)

	overall := completenessWeight*completeness +
		confidenceWeight*confidence +
		validationWeight*validation +
		recencyWeight*recency

	return models.QualityScore{
		EntityID:      entity.ID,
		Overall:       clamp(overall),
		Completeness:  completeness,
		Confidence:    confidence,
		Validation:    validation,
		Recency:       recency,
		MissingFields: missing,
	}
}

func (s *Scorer) completeness(entity *models.Entity) (float64, []string) {
	data := entity.GetData()

	fields, ok := coreFields[entity.EntityType]
	if !ok {
		// unknown types score on the ratio of populated values
		if len(data) == 0 {
			return 0, nil
		}
		populated := 0
		for _, value := range data {
			if !isEmpty(value) {
				populated++
			}
		}
		return float64(populated) / float64(len(data)), nil
	}

	var missing []string
	populated := 0
	for _, field := range fields {
		if value, ok := data[field]; ok && !isEmpty(value) {
			populated++
		} else {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)

	return float64(populated) / float64(len(fields)), missing
}

func (s *Scorer) validation(entity *models.Entity) float64 {
	if entity.ValidationStatus == nil {
		return 0.5
	}
	switch *entity.ValidationStatus {
	case models.ValidationStatusPassed:
		return 1
	case models.ValidationStatusFailed:
		return 0
	default:
		return 0.5
	}
}

func (s *Scorer) recency(entity *models.Entity) float64 {
	if entity.UpdatedAt.IsZero() {
		return 0.5
	}

	age := s.now().Sub(entity.UpdatedAt)
	if age <= 0 {
		return 1
	}
	if age >= s.recencyHorizon {
		return 0
	}

	return 1 - float64(age)/float64(s.recencyHorizon)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

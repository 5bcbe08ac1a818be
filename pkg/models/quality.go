package models

// QualityScore is the weighted data quality breakdown for one entity
type QualityScore struct {
	EntityID      string   `json:"entity_id"`
	Overall       float64  `json:"overall"`
	Completeness  float64  `json:"completeness"`
	Confidence    float64  `json:"confidence"`
	Validation    float64  `json:"validation"`
	Recency       float64  `json:"recency"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

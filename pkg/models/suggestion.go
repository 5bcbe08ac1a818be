package models

// Suggested actions for a scored duplicate pair
const (
	SuggestedActionAutoMerge    = "auto_merge"
	SuggestedActionManualReview = "manual_review"
	SuggestedActionIgnore       = "ignore"
)

// MergeSuggestion is a ranked recommendation built from a pending match candidate
type MergeSuggestion struct {
	CandidateID       string   `json:"candidate_id"`
	EntityType        string   `json:"entity_type"`
	SourceEntityID    string   `json:"source_entity_id"`
	CandidateEntityID string   `json:"candidate_entity_id"`
	SimilarityScore   float64  `json:"similarity_score"`
	MatchedFields     []string `json:"matched_fields,omitempty"`
	SuggestedAction   string   `json:"suggested_action"`
	Reasoning         string   `json:"reasoning"`
}

// SuggestionListResponse is the response for listing merge suggestions
type SuggestionListResponse struct {
	Items      []MergeSuggestion `json:"items"`
	TotalCount int               `json:"total_count"`
}

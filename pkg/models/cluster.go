package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// DuplicateClusterStatus constants
const (
	ClusterStatusActive = "active"
	ClusterStatusMerged = "merged"
	ClusterStatusSplit  = "split"
)

// DuplicateCluster groups entities the similarity detector flagged as duplicates
type DuplicateCluster struct {
	ID              string                   `json:"id" db:"id"`
	TenantID        string                   `json:"tenant_id" db:"tenant_id"`
	EntityType      string                   `json:"entity_type" db:"entity_type"`
	EntityIDs       database.JSONB[[]string] `json:"entity_ids" db:"entity_ids"`
	ConfidenceScore float64                  `json:"confidence_score" db:"confidence_score"`
	Status          string                   `json:"status" db:"status"` // active, merged, split
	MasterEntityID  *string                  `json:"master_entity_id,omitempty" db:"master_entity_id"`
	ReviewedBy      *string                  `json:"reviewed_by,omitempty" db:"reviewed_by"`
	CreatedAt       time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at" db:"updated_at"`
}

// MatchCandidateStatus constants
const (
	MatchCandidateStatusPending    = "pending"
	MatchCandidateStatusMerged     = "merged"
	MatchCandidateStatusDismissed  = "dismissed"
	MatchCandidateStatusAutoMerged = "auto_merged"
)

// ScoreCandidateRequest asks the service to score an entity pair and record
// the result as a match candidate
type ScoreCandidateRequest struct {
	SourceEntityID    string `json:"source_entity_id" validate:"required"`
	CandidateEntityID string `json:"candidate_entity_id" validate:"required"`
}

// MatchCandidate is one scored pair produced by the similarity detector
type MatchCandidate struct {
	ID                string                   `json:"id" db:"id"`
	TenantID          string                   `json:"tenant_id" db:"tenant_id"`
	EntityType        string                   `json:"entity_type" db:"entity_type"`
	SourceEntityID    string                   `json:"source_entity_id" db:"source_entity_id"`
	CandidateEntityID string                   `json:"candidate_entity_id" db:"candidate_entity_id"`
	SimilarityScore   float64                  `json:"similarity_score" db:"similarity_score"`
	MatchedFields     database.JSONB[[]string] `json:"matched_fields" db:"matched_fields"`
	Status            string                   `json:"status" db:"status"` // pending, merged, dismissed, auto_merged
	CreatedAt         time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" db:"updated_at"`
	ResolvedAt        *time.Time               `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *string                  `json:"resolved_by,omitempty" db:"resolved_by"`
}

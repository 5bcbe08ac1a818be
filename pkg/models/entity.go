package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// EntityStatus tracks where a record is in the merge lifecycle
const (
	EntityStatusActive = "active"
	EntityStatusMerged = "merged"
	EntityStatusSplit  = "split"
)

// ValidationStatus values set by upstream validation
const (
	ValidationStatusPassed  = "passed"
	ValidationStatusFailed  = "failed"
	ValidationStatusPending = "pending"
)

// Entity represents an extracted business record (deal, vendor, contact)
type Entity struct {
	ID               string                         `json:"id" db:"id"`
	TenantID         string                         `json:"tenant_id" db:"tenant_id"`
	EntityType       string                         `json:"entity_type" db:"entity_type"`
	Status           string                         `json:"status" db:"status"` // active, merged, split
	Data             database.JSONB[map[string]any] `json:"data" db:"data"`
	Confidence       float64                        `json:"confidence" db:"confidence"`
	ValidationStatus *string                        `json:"validation_status,omitempty" db:"validation_status"`
	MergedIntoID     *string                        `json:"merged_into_id,omitempty" db:"merged_into_id"`
	MergeNote        *string                        `json:"merge_note,omitempty" db:"merge_note"`
	CreatedAt        time.Time                      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time                      `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time                     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// GetData returns the record payload, never nil.
func (e *Entity) GetData() map[string]any {
	if e.Data.Data == nil {
		return map[string]any{}
	}
	return e.Data.Data
}

// IsActive reports whether the entity can participate in a merge.
func (e *Entity) IsActive() bool {
	return e.Status == EntityStatusActive && e.DeletedAt == nil
}

// CreateEntityRequest is the request for creating/upserting an entity
type CreateEntityRequest struct {
	EntityType       string         `json:"entity_type" validate:"required"`
	Data             map[string]any `json:"data" validate:"required"`
	Confidence       float64        `json:"confidence" validate:"gte=0,lte=1"`
	ValidationStatus *string        `json:"validation_status,omitempty"`
}

// EntityListResponse is the response for listing entities
type EntityListResponse struct {
	Items      []Entity `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// EntitySnapshot captures an entity's state before a merge so it can be restored
type EntitySnapshot struct {
	EntityID         string         `json:"entity_id"`
	Status           string         `json:"status"`
	Data             map[string]any `json:"data"`
	Confidence       float64        `json:"confidence"`
	ValidationStatus *string        `json:"validation_status,omitempty"`
}

// MergeHistory is the audit record written for every committed merge.
// Snapshots hold the pre-merge state of the target and every source, which is
// what the unmerge path restores from.
type MergeHistory struct {
	ID            string                           `json:"id" db:"id"`
	TenantID      string                           `json:"tenant_id" db:"tenant_id"`
	EntityType    string                           `json:"entity_type" db:"entity_type"`
	TargetID      string                           `json:"target_id" db:"target_id"`
	SourceIDs     database.JSONB[[]string]         `json:"source_ids" db:"source_ids"`
	Strategy      string                           `json:"strategy" db:"strategy"`
	MergedData    database.JSONB[map[string]any]   `json:"merged_data" db:"merged_data"`
	Snapshots     database.JSONB[[]EntitySnapshot] `json:"snapshots" db:"snapshots"`
	Conflicts     database.JSONB[[]FieldConflict]  `json:"conflicts,omitempty" db:"conflicts"`
	ConflictCount int                              `json:"conflict_count" db:"conflict_count"`
	MergedBy      *string                          `json:"merged_by,omitempty" db:"merged_by"`
	Notes         *string                          `json:"notes,omitempty" db:"notes"`
	CanUnmerge    bool                             `json:"can_unmerge" db:"can_unmerge"`
	Unmerged      bool                             `json:"unmerged" db:"unmerged"`
	UnmergedAt    *time.Time                       `json:"unmerged_at,omitempty" db:"unmerged_at"`
	UnmergeReason *string                          `json:"unmerge_reason,omitempty" db:"unmerge_reason"`
	CreatedAt     time.Time                        `json:"created_at" db:"created_at"`
}

// SnapshotFor returns the pre-merge snapshot for the given entity id.
func (h *MergeHistory) SnapshotFor(entityID string) (EntitySnapshot, bool) {
	for _, snap := range h.Snapshots.Data {
		if snap.EntityID == entityID {
			return snap, true
		}
	}
	return EntitySnapshot{}, false
}

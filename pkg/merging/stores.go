package merging

import (
	"context"
	"database/sql"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

// TxBeginner opens context-carried transactions. Satisfied by database.DB.
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// EntityStore is the entity persistence the engine depends on.
type EntityStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Entity, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Entity, error)
	UpdateData(ctx context.Context, tenantID, id string, data map[string]any) error
	MarkMerged(ctx context.Context, tenantID string, ids []string, mergedIntoID string) error
	NotePreserved(ctx context.Context, tenantID string, ids []string, mergedIntoID string, note string) error
	RestoreSnapshot(ctx context.Context, tenantID string, snapshot models.EntitySnapshot) error
}

// HistoryStore persists and flips merge audit records.
type HistoryStore interface {
	Create(ctx context.Context, history *models.MergeHistory) (*models.MergeHistory, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.MergeHistory, error)
	// MarkUnmerged stamps unmerged=true only when the row is still unmerged=false.
	// It reports whether a row was updated.
	MarkUnmerged(ctx context.Context, tenantID, id string, reason *string) (bool, error)
}

// ClusterStore is the duplicate cluster persistence the engine depends on.
type ClusterStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.DuplicateCluster, error)
	ListHighConfidence(ctx context.Context, tenantID, entityType string, threshold float64, limit int) ([]models.DuplicateCluster, error)
	MarkMerged(ctx context.Context, tenantID, clusterID, masterEntityID string, reviewedBy *string) error
	// MarkMergedForEntities closes any active cluster containing one of the ids.
	MarkMergedForEntities(ctx context.Context, tenantID string, entityIDs []string, masterEntityID string) error
	// ReopenForEntities returns merged clusters containing the ids to active.
	ReopenForEntities(ctx context.Context, tenantID string, entityIDs []string) error
}

// CandidateStore is the match candidate persistence the engine depends on.
type CandidateStore interface {
	ListPending(ctx context.Context, tenantID, entityType string, limit int) ([]models.MatchCandidate, error)
	// ResolveForEntities stamps pending candidates touching the ids with status.
	ResolveForEntities(ctx context.Context, tenantID string, entityIDs []string, status string, resolvedBy *string) error
	// ReopenForEntities returns resolved candidates touching the ids to pending.
	ReopenForEntities(ctx context.Context, tenantID string, entityIDs []string) error
}

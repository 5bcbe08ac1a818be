package merging

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/quality"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// fakeStore is an in-memory implementation of every store interface the
// engine depends on. failOn triggers failErr from the named method.
type fakeStore struct {
	entities   map[string]*models.Entity
	histories  map[string]*models.MergeHistory
	clusters   map[string]*models.DuplicateCluster
	candidates map[string]*models.MatchCandidate

	failOn  string
	failErr error

	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:   map[string]*models.Entity{},
		histories:  map[string]*models.MergeHistory{},
		clusters:   map[string]*models.DuplicateCluster{},
		candidates: map[string]*models.MatchCandidate{},
	}
}

func (f *fakeStore) fail(method string) error {
	if f.failOn == method {
		if f.failErr != nil {
			return f.failErr
		}
		return fmt.Errorf("%s failed", method)
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
	open  bool
}

func (f *fakeStore) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	if err := f.fail("GetTx"); err != nil {
		return ctx, nil, err
	}
	return ctx, &fakeTx{store: f, open: true}, nil
}

func (t *fakeTx) IsOpen() bool { return t.open }

func (t *fakeTx) Commit(ctx context.Context) error {
	if err := t.store.fail("Commit"); err != nil {
		return err
	}
	if t.open {
		t.open = false
		t.store.commits++
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if err := t.store.fail("Rollback"); err != nil {
		return err
	}
	if t.open {
		t.open = false
		t.store.rollbacks++
	}
	return nil
}

func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (t *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (t *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (t *fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}

func (f *fakeStore) GetByID(ctx context.Context, tenantID, id string) (*models.Entity, error) {
	if err := f.fail("GetByID"); err != nil {
		return nil, err
	}
	entity, ok := f.entities[id]
	if !ok || entity.TenantID != tenantID || entity.DeletedAt != nil {
		return nil, nil
	}
	clone := *entity
	return &clone, nil
}

func (f *fakeStore) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Entity, error) {
	if err := f.fail("GetByIDs"); err != nil {
		return nil, err
	}
	var out []models.Entity
	for _, id := range ids {
		entity, ok := f.entities[id]
		if !ok || entity.TenantID != tenantID || entity.DeletedAt != nil {
			continue
		}
		if entity.Status != models.EntityStatusActive {
			continue
		}
		out = append(out, *entity)
	}
	return out, nil
}

func (f *fakeStore) UpdateData(ctx context.Context, tenantID, id string, data map[string]any) error {
	if err := f.fail("UpdateData"); err != nil {
		return err
	}
	entity, ok := f.entities[id]
	if !ok {
		return fmt.Errorf("entity %s not found", id)
	}
	entity.Data = database.NewJSONB(data)
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) MarkMerged(ctx context.Context, tenantID string, ids []string, mergedIntoID string) error {
	if err := f.fail("MarkMerged"); err != nil {
		return err
	}
	for _, id := range ids {
		if entity, ok := f.entities[id]; ok {
			entity.Status = models.EntityStatusMerged
			entity.MergedIntoID = &mergedIntoID
		}
	}
	return nil
}

func (f *fakeStore) NotePreserved(ctx context.Context, tenantID string, ids []string, mergedIntoID, note string) error {
	if err := f.fail("NotePreserved"); err != nil {
		return err
	}
	for _, id := range ids {
		if entity, ok := f.entities[id]; ok {
			entity.Status = models.EntityStatusMerged
			entity.MergedIntoID = &mergedIntoID
			entity.MergeNote = &note
		}
	}
	return nil
}

func (f *fakeStore) RestoreSnapshot(ctx context.Context, tenantID string, snapshot models.EntitySnapshot) error {
	if err := f.fail("RestoreSnapshot"); err != nil {
		return err
	}
	entity, ok := f.entities[snapshot.EntityID]
	if !ok {
		return fmt.Errorf("entity %s not found", snapshot.EntityID)
	}
	entity.Status = snapshot.Status
	entity.Data = database.NewJSONB(snapshot.Data)
	entity.Confidence = snapshot.Confidence
	entity.ValidationStatus = snapshot.ValidationStatus
	entity.MergedIntoID = nil
	entity.MergeNote = nil
	return nil
}

func (f *fakeStore) Create(ctx context.Context, history *models.MergeHistory) (*models.MergeHistory, error) {
	if err := f.fail("Create"); err != nil {
		return nil, err
	}
	clone := *history
	clone.ID = uuid.New().String()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	f.histories[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (f *fakeStore) GetHistoryByID(ctx context.Context, tenantID, id string) (*models.MergeHistory, error) {
	history, ok := f.histories[id]
	if !ok || history.TenantID != tenantID {
		return nil, nil
	}
	clone := *history
	return &clone, nil
}

func (f *fakeStore) MarkUnmerged(ctx context.Context, tenantID, id string, reason *string) (bool, error) {
	if err := f.fail("MarkUnmerged"); err != nil {
		return false, err
	}
	history, ok := f.histories[id]
	if !ok || history.TenantID != tenantID || history.Unmerged {
		return false, nil
	}
	now := time.Now().UTC()
	history.Unmerged = true
	history.UnmergedAt = &now
	history.UnmergeReason = reason
	return true, nil
}

func (f *fakeStore) GetClusterByID(ctx context.Context, tenantID, id string) (*models.DuplicateCluster, error) {
	cluster, ok := f.clusters[id]
	if !ok || cluster.TenantID != tenantID {
		return nil, nil
	}
	clone := *cluster
	return &clone, nil
}

func (f *fakeStore) ListHighConfidence(ctx context.Context, tenantID, entityType string, threshold float64, limit int) ([]models.DuplicateCluster, error) {
	if err := f.fail("ListHighConfidence"); err != nil {
		return nil, err
	}
	var out []models.DuplicateCluster
	for _, cluster := range f.clusters {
		if cluster.TenantID != tenantID || cluster.Status != models.ClusterStatusActive {
			continue
		}
		if entityType != "" && cluster.EntityType != entityType {
			continue
		}
		if cluster.ConfidenceScore < threshold {
			continue
		}
		out = append(out, *cluster)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) markClusterMerged(ctx context.Context, tenantID, clusterID, masterEntityID string, reviewedBy *string) error {
	if err := f.fail("ClusterMarkMerged"); err != nil {
		return err
	}
	if cluster, ok := f.clusters[clusterID]; ok {
		cluster.Status = models.ClusterStatusMerged
		cluster.MasterEntityID = &masterEntityID
		cluster.ReviewedBy = reviewedBy
	}
	return nil
}

func (f *fakeStore) MarkMergedForEntities(ctx context.Context, tenantID string, entityIDs []string, masterEntityID string) error {
	if err := f.fail("MarkMergedForEntities"); err != nil {
		return err
	}
	for _, cluster := range f.clusters {
		if cluster.Status != models.ClusterStatusActive {
			continue
		}
		if containsAny(cluster.EntityIDs.Data, entityIDs) {
			cluster.Status = models.ClusterStatusMerged
			cluster.MasterEntityID = &masterEntityID
		}
	}
	return nil
}

func (f *fakeStore) ReopenForEntities(ctx context.Context, tenantID string, entityIDs []string) error {
	if err := f.fail("ReopenForEntities"); err != nil {
		return err
	}
	for _, cluster := range f.clusters {
		if cluster.Status == models.ClusterStatusMerged && containsAny(cluster.EntityIDs.Data, entityIDs) {
			cluster.Status = models.ClusterStatusActive
			cluster.MasterEntityID = nil
		}
	}
	for _, candidate := range f.candidates {
		if candidate.Status != models.MatchCandidateStatusPending &&
			(contains(entityIDs, candidate.SourceEntityID) || contains(entityIDs, candidate.CandidateEntityID)) {
			candidate.Status = models.MatchCandidateStatusPending
			candidate.ResolvedAt = nil
			candidate.ResolvedBy = nil
		}
	}
	return nil
}

func (f *fakeStore) ListPending(ctx context.Context, tenantID, entityType string, limit int) ([]models.MatchCandidate, error) {
	if err := f.fail("ListPending"); err != nil {
		return nil, err
	}
	var out []models.MatchCandidate
	for _, candidate := range f.candidates {
		if candidate.TenantID != tenantID || candidate.Status != models.MatchCandidateStatusPending {
			continue
		}
		if entityType != "" && candidate.EntityType != entityType {
			continue
		}
		out = append(out, *candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SimilarityScore > out[j].SimilarityScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ResolveForEntities(ctx context.Context, tenantID string, entityIDs []string, status string, resolvedBy *string) error {
	if err := f.fail("ResolveForEntities"); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, candidate := range f.candidates {
		if candidate.Status != models.MatchCandidateStatusPending {
			continue
		}
		if contains(entityIDs, candidate.SourceEntityID) || contains(entityIDs, candidate.CandidateEntityID) {
			candidate.Status = status
			candidate.ResolvedAt = &now
			candidate.ResolvedBy = resolvedBy
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsAny(ids, lookup []string) bool {
	for _, id := range lookup {
		if contains(ids, id) {
			return true
		}
	}
	return false
}

// adapters split the single fakeStore across the engine's store interfaces
// where method names collide.
type fakeHistoryStore struct{ *fakeStore }

func (f fakeHistoryStore) GetByID(ctx context.Context, tenantID, id string) (*models.MergeHistory, error) {
	if err := f.fail("HistoryGetByID"); err != nil {
		return nil, err
	}
	return f.GetHistoryByID(ctx, tenantID, id)
}

type fakeClusterStore struct{ *fakeStore }

func (f fakeClusterStore) GetByID(ctx context.Context, tenantID, id string) (*models.DuplicateCluster, error) {
	if err := f.fail("ClusterGetByID"); err != nil {
		return nil, err
	}
	return f.GetClusterByID(ctx, tenantID, id)
}

func (f fakeClusterStore) MarkMerged(ctx context.Context, tenantID, clusterID, masterEntityID string, reviewedBy *string) error {
	return f.markClusterMerged(ctx, tenantID, clusterID, masterEntityID, reviewedBy)
}

func newTestEngine(store *fakeStore) *Engine {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewEngine(
		logger,
		store,
		store,
		fakeHistoryStore{store},
		fakeClusterStore{store},
		store,
		quality.NewScorer(180),
		DefaultOptions(),
	)
}

func testEntity(id, tenantID string, data map[string]any) *models.Entity {
	return &models.Entity{
		ID:         id,
		TenantID:   tenantID,
		EntityType: "deal",
		Status:     models.EntityStatusActive,
		Data:       database.NewJSONB(data),
		Confidence: 0.8,
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-time.Hour),
	}
}

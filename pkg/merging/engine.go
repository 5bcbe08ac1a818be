// Package merging implements conflict analysis, merge execution and reversal
// for duplicate business records.
package merging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/quality"
)

// Options holds the tunable thresholds for the merge engine.
type Options struct {
	// ConfidenceEpsilon is the minimum confidence gap treated as meaningful
	// when suggesting a conflict resolution.
	ConfidenceEpsilon float64
	// ConflictWarningCount is the conflict count above which previews warn.
	ConflictWarningCount int
	// PreviewConfidenceFloor is the preview confidence below which previews warn.
	PreviewConfidenceFloor float64
	// AutoMergeThreshold gates the auto-merge sweep and suggestion banding.
	AutoMergeThreshold float64
	// ReviewScoreFloor is the similarity floor for manual review suggestions.
	ReviewScoreFloor float64
	// UnmergeWindowDays bounds how long after a merge an unmerge is allowed.
	UnmergeWindowDays int
	// SuggestionDefaultLimit and SuggestionMaxLimit bound suggestion listings.
	SuggestionDefaultLimit int
	SuggestionMaxLimit     int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		ConfidenceEpsilon:      0.05,
		ConflictWarningCount:   5,
		PreviewConfidenceFloor: 0.7,
		AutoMergeThreshold:     0.95,
		ReviewScoreFloor:       0.7,
		UnmergeWindowDays:      30,
		SuggestionDefaultLimit: 20,
		SuggestionMaxLimit:     100,
	}
}

// Engine orchestrates previews, merges, cluster merges, sweeps and unmerges.
type Engine struct {
	logger     ectologger.Logger
	db         TxBeginner
	entities   EntityStore
	history    HistoryStore
	clusters   ClusterStore
	candidates CandidateStore
	scorer     *quality.Scorer
	options    Options
}

// NewEngine creates a merge engine.
func NewEngine(
	logger ectologger.Logger,
	db TxBeginner,
	entities EntityStore,
	history HistoryStore,
	clusters ClusterStore,
	candidates CandidateStore,
	scorer *quality.Scorer,
	options Options,
) *Engine {
	return &Engine{
		logger:     logger,
		db:         db,
		entities:   entities,
		history:    history,
		clusters:   clusters,
		candidates: candidates,
		scorer:     scorer,
		options:    options,
	}
}

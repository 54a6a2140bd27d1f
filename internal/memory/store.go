package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sammyboi1801/SentinelAI/internal/config"
	"github.com/sammyboi1801/SentinelAI/internal/embeddings"
	"github.com/sammyboi1801/SentinelAI/internal/scoring"
	"github.com/sammyboi1801/SentinelAI/internal/storage"
	"github.com/sammyboi1801/SentinelAI/internal/vector"
)

const recordType = "fact"

// Filter selects facts for deletion. Subject is an exact metadata match and
// is mandatory; Predicate and Object, when set, are substring-matched
// against the stored text.
type Filter struct {
	Subject   string
	Predicate string
	Object    string
}

// Store orchestrates the vector index and the relational metadata store into
// the fact API the rest of the agent uses.
//
// Both backends are lazily initialized on first use and after Teardown, so a
// wipe of the on-disk state followed by continued use works without a
// process restart. Initialization is guarded so only one goroutine performs
// first-time setup; steady-state reads take the shared lock only.
type Store struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embeddings.Embedder
	scorer   *scoring.Scorer

	mu  sync.RWMutex
	vec *vector.Index
	db  *storage.Store
}

// NewStore creates the fact store. Backends open on first use.
func NewStore(cfg *config.Config, logger *zap.Logger, embedder embeddings.Embedder) *Store {
	scorer := scoring.New(
		scoring.Weights{
			Similarity: cfg.SimilarityWeight,
			Importance: cfg.ImportanceWeight,
			Recency:    cfg.RecencyWeight,
		},
		cfg.RelevanceThreshold,
		cfg.DecayRatePerHour,
		cfg.MaxImportance,
	)
	return &Store{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		scorer:   scorer,
	}
}

// backends returns the live vector index and metadata store, initializing
// them if needed (double-checked under the write lock).
func (s *Store) backends() (*vector.Index, *storage.Store, error) {
	s.mu.RLock()
	vec, db := s.vec, s.db
	s.mu.RUnlock()
	if vec != nil && db != nil {
		return vec, db, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vec != nil && s.db != nil {
		return s.vec, s.db, nil
	}

	if err := s.cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("%w: create data dir: %v", ErrUnavailable, err)
	}

	if s.db == nil {
		db, err := storage.Open(s.cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		s.db = db
	}

	if s.vec == nil {
		vec, err := vector.Open(s.cfg.VectorDir, s.embedder.Embed)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		s.vec = vec
	}

	s.logger.Debug("memory backends initialized",
		zap.String("db", s.cfg.DBPath),
		zap.String("vectors", s.cfg.VectorDir))
	return s.vec, s.db, nil
}

// StoreFact writes one (subject, predicate, object) fact to both stores and
// returns the composed fact text. An empty contextTag defaults to
// "user_defined".
func (s *Store) StoreFact(ctx context.Context, subject, predicate, object, contextTag string) (string, error) {
	if contextTag == "" {
		contextTag = "user_defined"
	}

	vec, db, err := s.backends()
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("%s %s %s", subject, predicate, object)
	fullText := fmt.Sprintf("%s. Context: %s", text, contextTag)
	id := uuid.New().String()

	err = vec.Add(ctx, id, fullText, map[string]string{
		"subject": subject,
		"type":    recordType,
		"context": contextTag,
	})
	if err != nil {
		s.logger.Warn("vector add failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := db.PutMetadata(id, s.cfg.DefaultImportance); err != nil {
		// Keep the two stores consistent from the caller's perspective.
		if cleanupErr := vec.DeleteIDs(ctx, []string{id}); cleanupErr != nil {
			s.logger.Warn("orphaned vector entry after metadata failure",
				zap.String("id", id), zap.Error(cleanupErr))
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("fact stored", zap.String("id", id), zap.String("subject", subject))
	return text, nil
}

// DeleteFacts removes every fact matching the filter from both stores and
// returns the number deleted. A missing subject is rejected with
// ErrInvalidFilter; a filter matching nothing returns ErrNotFound.
func (s *Store) DeleteFacts(ctx context.Context, f Filter) (int, error) {
	if strings.TrimSpace(f.Subject) == "" {
		return 0, ErrInvalidFilter
	}

	vec, db, err := s.backends()
	if err != nil {
		return 0, err
	}

	// The backend filters natively on subject only; predicate/object are
	// substring conditions on the composed text, so enumerate and match
	// locally. n is bounded by a single user's memory volume.
	// Enumeration is driven by the metadata rows: a vector entry whose
	// metadata write was lost (crash between the two writes) is not reachable
	// here, only via a wipe. Retrieval still surfaces it with default
	// metadata, so nothing is silently hidden.
	ids, err := db.AllIDs()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var matched, orphaned []string
	for _, id := range ids {
		doc, ok := vec.Get(ctx, id)
		if !ok {
			// Metadata row without a vector entry: invisible to retrieval,
			// prune it while we are here.
			orphaned = append(orphaned, id)
			continue
		}
		if doc.Metadata["subject"] != f.Subject {
			continue
		}
		if f.Predicate != "" && !strings.Contains(doc.Text, f.Predicate) {
			continue
		}
		if f.Object != "" && !strings.Contains(doc.Text, f.Object) {
			continue
		}
		matched = append(matched, id)
	}

	if len(orphaned) > 0 {
		if err := db.Delete(orphaned); err != nil {
			s.logger.Warn("orphaned metadata cleanup failed", zap.Error(err))
		}
	}

	if len(matched) == 0 {
		return 0, ErrNotFound
	}

	if err := vec.DeleteIDs(ctx, matched); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.Delete(matched); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Info("facts deleted",
		zap.String("subject", f.Subject), zap.Int("count", len(matched)))
	return len(matched), nil
}

// Retrieve runs the full retrieval pipeline: wide similarity search,
// metadata join, relevance ranking, recency reinforcement of the winners.
// found reports whether the similarity search produced any candidates at
// all, so callers can distinguish an empty index from a below-threshold
// result set.
func (s *Store) Retrieve(ctx context.Context, query string, limit int) (results []scoring.Scored, found bool, err error) {
	if limit <= 0 {
		limit = 5
	}

	vec, db, err := s.backends()
	if err != nil {
		return nil, false, err
	}

	hits, err := vec.Query(ctx, query, s.cfg.CandidateLimit)
	if err != nil {
		s.logger.Warn("vector query failed", zap.Error(err))
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(hits) == 0 {
		return nil, false, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}

	meta, err := db.Fetch(ids)
	if err != nil {
		// Favor availability: score with defaults rather than failing.
		s.logger.Warn("metadata fetch failed", zap.Error(err))
		meta = map[string]storage.Row{}
	}

	candidates := make([]scoring.Candidate, len(hits))
	for i, hit := range hits {
		candidate := scoring.Candidate{
			ID:         hit.ID,
			Text:       hit.Text,
			Similarity: float64(hit.Similarity),
			Importance: s.cfg.DefaultImportance,
		}
		if row, ok := meta[hit.ID]; ok {
			candidate.Importance = row.Importance
			candidate.LastAccessed = row.LastAccessed
		}
		candidates[i] = candidate
	}

	winners := s.scorer.Rank(candidates, limit)
	if len(winners) > 0 {
		winnerIDs := make([]string, len(winners))
		for i, w := range winners {
			winnerIDs[i] = w.ID
		}
		if err := db.Touch(winnerIDs); err != nil {
			s.logger.Warn("recency touch failed", zap.Error(err))
		}
	}

	s.logger.Debug("retrieval complete",
		zap.Int("candidates", len(candidates)), zap.Int("winners", len(winners)))
	return winners, true, nil
}

// LogActivity appends one activity log entry. Never returns an error:
// logging must not break the caller.
func (s *Store) LogActivity(action, details string) {
	_, db, err := s.backends()
	if err != nil {
		s.logger.Debug("activity log skipped", zap.Error(err))
		return
	}
	if err := db.AppendLog(action, details); err != nil {
		s.logger.Debug("activity log write failed", zap.Error(err))
	}
}

// ReflectOnDay returns the activity log for a calendar date ("2006-01-02").
// Empty or "today" selects the current date.
func (s *Store) ReflectOnDay(date string) ([]storage.LogEntry, string, error) {
	if date == "" || date == "today" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	_, db, err := s.backends()
	if err != nil {
		return nil, date, err
	}

	entries, err := db.LogsForDay(date)
	if err != nil {
		return nil, date, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return entries, date, nil
}

// CountRecords reports the number of metadata rows. Used by the CLI and
// tests.
func (s *Store) CountRecords() (int, error) {
	_, db, err := s.backends()
	if err != nil {
		return 0, err
	}
	return db.CountRecords()
}

// Teardown releases both backend handles so the on-disk files can be
// deleted by an external process without lock conflicts. Idempotent; the
// next operation re-initializes lazily. In-flight operations holding the old
// handles may fail loudly, which callers see as ErrUnavailable.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("metadata close failed", zap.Error(err))
		}
		s.db = nil
	}
	s.vec = nil
	s.logger.Info("memory backends released")
}

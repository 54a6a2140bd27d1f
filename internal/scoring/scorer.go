package scoring

import (
	"math"
	"sort"
	"time"
)

// Weights control how similarity, importance and recency fuse into one
// score. Similarity is expected to dominate; the other two break ties.
type Weights struct {
	Similarity float64
	Importance float64
	Recency    float64
}

// Candidate is one vector-search hit joined with its metadata row.
// A zero LastAccessed means the metadata row was missing or unparseable and
// recency is treated as neutral (1.0) rather than penalized.
type Candidate struct {
	ID           string
	Text         string
	Similarity   float64
	Importance   int
	LastAccessed time.Time
}

// Scored is a candidate that cleared the acceptance threshold.
type Scored struct {
	Candidate
	Score float64
}

// Scorer ranks retrieval candidates.
//
// Per candidate: S = clamp01(cosine similarity), I = importance/max,
// R = decay^hours-since-last-access, final = wS*S + wI*I + wR*R.
// Candidates below the threshold are dropped entirely so marginally related
// memories never surface.
type Scorer struct {
	weights       Weights
	threshold     float64
	decayRate     float64
	maxImportance int

	// Now is the clock used for recency decay; overridable in tests.
	Now func() time.Time
}

// New creates a scorer with the given policy knobs.
func New(weights Weights, threshold, decayRatePerHour float64, maxImportance int) *Scorer {
	if maxImportance <= 0 {
		maxImportance = 10
	}
	return &Scorer{
		weights:       weights,
		threshold:     threshold,
		decayRate:     decayRatePerHour,
		maxImportance: maxImportance,
		Now:           time.Now,
	}
}

// Score computes the fused relevance score for one candidate.
func (s *Scorer) Score(c Candidate) float64 {
	similarity := clamp01(c.Similarity)
	importance := float64(c.Importance) / float64(s.maxImportance)

	recency := 1.0
	if !c.LastAccessed.IsZero() {
		hours := s.Now().Sub(c.LastAccessed).Hours()
		if hours > 0 {
			recency = math.Pow(s.decayRate, hours)
		}
	}

	return s.weights.Similarity*similarity +
		s.weights.Importance*importance +
		s.weights.Recency*recency
}

// Rank scores all candidates, drops those below the threshold, and returns
// the top limit by score descending. The sort is stable so equal scores keep
// their incoming (similarity) order.
func (s *Scorer) Rank(candidates []Candidate, limit int) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		score := s.Score(c)
		if score <= s.threshold {
			continue
		}
		scored = append(scored, Scored{Candidate: c, Score: score})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

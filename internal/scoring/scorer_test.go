package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultScorer() *Scorer {
	return New(Weights{Similarity: 0.5, Importance: 0.3, Recency: 0.2}, 0.4, 0.99, 10)
}

func TestScoreFusesComponents(t *testing.T) {
	s := defaultScorer()
	now := time.Now()
	s.Now = func() time.Time { return now }

	c := Candidate{
		Similarity:   1.0,
		Importance:   10,
		LastAccessed: now,
	}
	// Perfect similarity, max importance, fresh access.
	assert.InDelta(t, 1.0, s.Score(c), 1e-9)

	c = Candidate{Similarity: 0.8, Importance: 5, LastAccessed: now}
	assert.InDelta(t, 0.5*0.8+0.3*0.5+0.2*1.0, s.Score(c), 1e-9)
}

func TestScoreNeutralRecencyWhenMissing(t *testing.T) {
	s := defaultScorer()

	// Zero LastAccessed means the metadata row was missing; recency must not
	// penalize.
	withMeta := Candidate{Similarity: 0.5, Importance: 5, LastAccessed: time.Now()}
	withoutMeta := Candidate{Similarity: 0.5, Importance: 5}

	assert.InDelta(t, s.Score(withMeta), s.Score(withoutMeta), 1e-3)
}

func TestScoreClampsSimilarity(t *testing.T) {
	s := defaultScorer()

	negative := Candidate{Similarity: -0.4, Importance: 5}
	zero := Candidate{Similarity: 0, Importance: 5}
	assert.Equal(t, s.Score(zero), s.Score(negative))

	above := Candidate{Similarity: 1.7, Importance: 5}
	one := Candidate{Similarity: 1, Importance: 5}
	assert.Equal(t, s.Score(one), s.Score(above))
}

func TestRecencyMonotonicity(t *testing.T) {
	s := defaultScorer()
	now := time.Now()
	s.Now = func() time.Time { return now }

	recent := Candidate{Similarity: 0.9, Importance: 5, LastAccessed: now.Add(-1 * time.Hour)}
	stale := Candidate{Similarity: 0.9, Importance: 5, LastAccessed: now.Add(-30 * 24 * time.Hour)}

	assert.Greater(t, s.Score(recent), s.Score(stale))

	ranked := s.Rank([]Candidate{stale, recent}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, recent.LastAccessed, ranked[0].LastAccessed)
}

func TestRankDropsBelowThreshold(t *testing.T) {
	s := defaultScorer()
	now := time.Now()
	s.Now = func() time.Time { return now }

	// Unrelated hit: similarity ~0, default importance, fresh access.
	// F = 0 + 0.15 + 0.2 = 0.35, below the 0.4 threshold.
	unrelated := Candidate{ID: "a", Similarity: 0.0, Importance: 5, LastAccessed: now}
	related := Candidate{ID: "b", Similarity: 0.9, Importance: 5, LastAccessed: now}

	ranked := s.Rank([]Candidate{unrelated, related}, 5)
	require.Len(t, ranked, 1)
	assert.Equal(t, "b", ranked[0].ID)
}

func TestRankRespectsLimit(t *testing.T) {
	s := defaultScorer()
	now := time.Now()
	s.Now = func() time.Time { return now }

	candidates := []Candidate{
		{ID: "a", Similarity: 0.7, Importance: 5, LastAccessed: now},
		{ID: "b", Similarity: 0.9, Importance: 5, LastAccessed: now},
		{ID: "c", Similarity: 0.8, Importance: 5, LastAccessed: now},
	}

	ranked := s.Rank(candidates, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "c", ranked[1].ID)
}

func TestImportanceBreaksTies(t *testing.T) {
	s := defaultScorer()
	now := time.Now()
	s.Now = func() time.Time { return now }

	low := Candidate{ID: "low", Similarity: 0.8, Importance: 2, LastAccessed: now}
	high := Candidate{ID: "high", Similarity: 0.8, Importance: 9, LastAccessed: now}

	ranked := s.Rank([]Candidate{low, high}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].ID)
}

package memory_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sammyboi1801/SentinelAI/internal/archiver"
	"github.com/sammyboi1801/SentinelAI/internal/config"
	"github.com/sammyboi1801/SentinelAI/internal/llm"
	"github.com/sammyboi1801/SentinelAI/internal/memory"
)

// keywordEmbedder maps each known keyword to its own vector axis, so
// similarity between texts is fully determined by keyword overlap. A small
// bias axis keeps vectors non-zero for texts with no keywords at all.
type keywordEmbedder struct {
	axes []string
}

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.axes)+1)
	lower := strings.ToLower(text)
	for i, axis := range e.axes {
		if strings.Contains(lower, axis) {
			vec[i] = 1
		}
	}
	vec[len(e.axes)] = 0.01

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (e keywordEmbedder) Dimensions() int { return len(e.axes) + 1 }

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	cfg := config.Default(t.TempDir())
	embedder := keywordEmbedder{axes: []string{"boston", "live", "hiking", "acme", "espresso"}}
	return memory.NewStore(cfg, zap.NewNop(), embedder)
}

func TestStoreFactRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	text, err := store.StoreFact(ctx, "User", "likes", "espresso", "")
	require.NoError(t, err)
	assert.Equal(t, "User likes espresso", text)

	winners, found, err := store.Retrieve(ctx, "espresso preferences", 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Equal(t, "User likes espresso. Context: user_defined", winners[0].Text)

	count, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreFactCustomContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "likes", "espresso", "health")
	require.NoError(t, err)

	winners, found, err := store.Retrieve(ctx, "espresso", 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Equal(t, "User likes espresso. Context: health", winners[0].Text)
}

func TestRetrieveRanksMostRelevantFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, fact := range [][3]string{
		{"User", "lives_in", "Boston"},
		{"User", "enjoys", "hiking"},
		{"User", "works_at", "Acme"},
	} {
		_, err := store.StoreFact(ctx, fact[0], fact[1], fact[2], "")
		require.NoError(t, err)
	}

	winners, found, err := store.Retrieve(ctx, "Where does the user live?", 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Contains(t, winners[0].Text, "Boston")
}

func TestRetrieveDropsIrrelevantCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "enjoys", "hiking", "")
	require.NoError(t, err)

	// The index has candidates, but none clears the relevance threshold.
	winners, found, err := store.Retrieve(ctx, "quantum chromodynamics", 5)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, winners)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	store := newTestStore(t)

	winners, found, err := store.Retrieve(context.Background(), "anything at all", 5)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, winners)
}

func TestDeleteFactsRequiresSubject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "likes", "espresso", "")
	require.NoError(t, err)

	_, err = store.DeleteFacts(ctx, memory.Filter{Predicate: "likes"})
	assert.ErrorIs(t, err, memory.ErrInvalidFilter)

	_, err = store.DeleteFacts(ctx, memory.Filter{Subject: "   "})
	assert.ErrorIs(t, err, memory.ErrInvalidFilter)

	count, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteFactsBySubject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, fact := range [][3]string{
		{"User", "lives_in", "Boston"},
		{"User", "enjoys", "hiking"},
		{"User", "works_at", "Acme"},
	} {
		_, err := store.StoreFact(ctx, fact[0], fact[1], fact[2], "")
		require.NoError(t, err)
	}
	_, err := store.StoreFact(ctx, "Alice", "lives_in", "Boston", "")
	require.NoError(t, err)

	count, err := store.DeleteFacts(ctx, memory.Filter{Subject: "User"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	remaining, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, err = store.DeleteFacts(ctx, memory.Filter{Subject: "User"})
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestDeleteFactsWithPredicateAndObject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "likes", "espresso", "")
	require.NoError(t, err)
	_, err = store.StoreFact(ctx, "User", "lives_in", "Boston", "")
	require.NoError(t, err)

	count, err := store.DeleteFacts(ctx, memory.Filter{Subject: "User", Predicate: "likes"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.DeleteFacts(ctx, memory.Filter{Subject: "User", Object: "Boston"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestTeardownIsIdempotentAndReinitializes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "likes", "espresso", "")
	require.NoError(t, err)

	store.Teardown()
	store.Teardown()

	// The next operation lazily reopens both backends; persisted state is
	// still there.
	_, err = store.StoreFact(ctx, "User", "lives_in", "Boston", "")
	require.NoError(t, err)

	count, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	winners, found, err := store.Retrieve(ctx, "espresso", 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Contains(t, winners[0].Text, "espresso")
}

func TestConcurrentFirstUse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// All goroutines hit the uninitialized store at once; exactly one may
	// perform first-time setup and none may observe a half-open backend.
	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.StoreFact(ctx, "User", "visited", fmt.Sprintf("city-%d", n), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	count, err := store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, writers, count)
}

func TestTeardownRacesRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreFact(ctx, "User", "likes", "espresso", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				// In-flight calls that lose their backend may fail with the
				// unavailable sentinel; anything else is a defect.
				_, _, err := store.Retrieve(ctx, "espresso", 5)
				if err != nil {
					assert.ErrorIs(t, err, memory.ErrUnavailable)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			store.Teardown()
		}
	}()
	wg.Wait()

	// After the churn the store lazily re-initializes and still recalls the
	// persisted fact.
	winners, found, err := store.Retrieve(ctx, "espresso", 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Contains(t, winners[0].Text, "espresso")
}

func TestArchiverWritesThroughStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen := staticGenerator(`["User likes espresso"]`)
	a := archiver.New(gen, store, config.DefaultArchiveMinLength, zap.NewNop())

	a.Archive(ctx, "I really love a good espresso in the morning", "Noted!")

	winners, found, err := store.Retrieve(ctx, "espresso", 5)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, winners, 1)
	assert.Equal(t, "User context User likes espresso. Context: conversation_archive", winners[0].Text)
}

// staticGenerator returns a Generator that always replies with the same text.
type staticGenerator string

func (g staticGenerator) Generate(_ context.Context, _ string, _ []llm.Turn) (string, error) {
	return string(g), nil
}

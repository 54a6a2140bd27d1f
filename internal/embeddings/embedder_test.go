package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocalDeterministic(t *testing.T) {
	e := NewLocal(0)

	a, err := e.Embed(context.Background(), "User lives_in Boston")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "User lives_in Boston")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimensions())
}

func TestLocalUnitNorm(t *testing.T) {
	e := NewLocal(64)

	vec, err := e.Embed(context.Background(), "some text to embed")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalNonZeroForAnyInput(t *testing.T) {
	e := NewLocal(64)

	// Inputs with no alphanumeric content still get the bias bucket.
	for _, text := range []string{"", "   ", "!!!"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.Greater(t, norm, 0.0, "input %q", text)
	}
}

func TestLocalSharedVocabularyRanksCloser(t *testing.T) {
	e := NewLocal(0)
	ctx := context.Background()

	fact, err := e.Embed(ctx, "User lives_in Boston. Context: user_defined")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "Where does the user live? Boston?")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "compile the kernel with gcc")
	require.NoError(t, err)

	assert.Greater(t, cosine(fact, related), cosine(fact, unrelated))
}

func TestLocalTokenizationIgnoresPunctuation(t *testing.T) {
	e := NewLocal(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "User lives_in Boston")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "user lives in boston")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

type countingEmbedder struct {
	inner Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestCachedSkipsBackendOnRepeat(t *testing.T) {
	counting := &countingEmbedder{inner: NewLocal(64)}
	cached, err := NewCached(counting, 1<<20)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "User likes espresso")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls)

	cached.Wait()

	second, err := cached.Embed(ctx, "User likes espresso")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, first, second)

	_, err = cached.Embed(ctx, "a different text")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
}

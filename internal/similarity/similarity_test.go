package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJaccard_SymmetricAndBounded(t *testing.T) {
	a := Tokenize("Claude 4 is incredible reasoning")
	b := Tokenize("Claude 4 is amazing reasoning")
	require.Equal(t, Jaccard(a, b), Jaccard(b, a))
	j := Jaccard(a, b)
	require.GreaterOrEqual(t, j, 0.0)
	require.LessOrEqual(t, j, 1.0)
}

func TestJaccard_EqualSetsIsOne(t *testing.T) {
	a := Tokenize("hello world")
	b := Tokenize("World Hello")
	require.Equal(t, 1.0, Jaccard(a, b))
}

func TestJaccard_EmptySets(t *testing.T) {
	require.Equal(t, 1.0, Jaccard(map[string]struct{}{}, map[string]struct{}{}))
	require.Equal(t, 0.0, Jaccard(Tokenize("x"), map[string]struct{}{}))
}

func TestEditDistanceNormalized_Bounds(t *testing.T) {
	require.Equal(t, 0.0, EditDistanceNormalized("", ""))
	require.Equal(t, 1.0, EditDistanceNormalized("abc", ""))
	require.Equal(t, 0.0, EditDistanceNormalized("Hello", "hello"))
	d := EditDistanceNormalized("kitten", "sitting")
	require.GreaterOrEqual(t, d, 0.0)
	require.LessOrEqual(t, d, 1.0)
}

func TestEditDistanceNormalized_Symmetric(t *testing.T) {
	require.Equal(t, EditDistanceNormalized("foo", "bar"), EditDistanceNormalized("bar", "foo"))
}

func TestLayer3Duplicate_ParaphrasedTitlesMatch(t *testing.T) {
	a := "Claude 4 is incredible! The new reasoning capabilities are amazing."
	b := "Claude 4 is amazing! The reasoning capabilities are incredible."
	dup, j, _ := IsLayer3Duplicate(a, b, Threshold{JaccardGTE: 0.7, LevenshteinLTE: 0.3})
	require.True(t, dup)
	require.GreaterOrEqual(t, j, 0.7)
}

func TestDetectCategory(t *testing.T) {
	require.Equal(t, CategoryArxiv, DetectCategory("arxiv-daily", "arxiv.org"))
	require.Equal(t, CategoryNews, DetectCategory("techcrunch-rss", "example.com"))
	require.Equal(t, CategoryDefault, DetectCategory("random-source", "example.com"))
}

func TestTitleHash_Stable(t *testing.T) {
	h1 := TitleHash("Hello   World")
	h2 := TitleHash("hello world")
	require.Equal(t, h1, h2)
}

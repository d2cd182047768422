package urlnorm

import "testing"

import "github.com/stretchr/testify/require"

func TestNormalize_StripsTrackingParamsAndWWW(t *testing.T) {
	got, err := Normalize("https://TechCrunch.com/2024/01/15/ai/?utm_source=t", DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "https://techcrunch.com/2024/01/15/ai", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/Path/?b=2&a=1&utm_campaign=x",
		"http://www.example.com//foo//bar/",
		"https://example.com/",
	}
	for _, in := range inputs {
		once, err := Normalize(in, DefaultOptions())
		require.NoError(t, err)
		twice, err := Normalize(once, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, once, twice)
	}
}

func TestNormalize_EquivalentVariants(t *testing.T) {
	variants := []string{
		"https://example.com/a?ref=x&fbclid=y",
		"https://www.example.com/a",
		"HTTP://EXAMPLE.COM/a/",
		"https://example.com/a?gclid=z",
	}
	want, err := Normalize(variants[0], DefaultOptions())
	require.NoError(t, err)
	for _, v := range variants[1:] {
		got, err := Normalize(v, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, want, got, "variant %q should normalise to %q", v, want)
	}
}

func TestNormalize_QueryParamOrderIgnored(t *testing.T) {
	a, err := Normalize("https://example.com/x?b=2&a=1", DefaultOptions())
	require.NoError(t, err)
	b, err := Normalize("https://example.com/x?a=1&b=2", DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalize_RejectsNonHTTP(t *testing.T) {
	_, err := Normalize("ftp://example.com/a", DefaultOptions())
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestNormalize_RootPathKeepsSlash(t *testing.T) {
	got, err := Normalize("https://example.com/", DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", got)
}

func TestExtractDomain(t *testing.T) {
	d, err := ExtractDomain("https://www.Example.com/a")
	require.NoError(t, err)
	require.Equal(t, "example.com", d)
}

func TestIsSameDomain(t *testing.T) {
	require.True(t, IsSameDomain("https://a.com/x", "https://www.a.com/y"))
	require.False(t, IsSameDomain("https://a.com/x", "https://b.com/y"))
}

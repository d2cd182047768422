package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEffectiveMaxRetries_TierFloors(t *testing.T) {
	require.Equal(t, 3, EffectiveMaxRetries(0, 1))
	require.Equal(t, 5, EffectiveMaxRetries(5, 1))
	require.Equal(t, 1, EffectiveMaxRetries(0, 2))
	require.Equal(t, 0, EffectiveMaxRetries(0, 3))
}

func TestClassifyError(t *testing.T) {
	cases := map[string]string{
		"request timeout":               "timeout",
		"operation aborted by user":     "timeout",
		"network error: connect failed": "network",
		"rate limit exceeded (429)":     "rate_limit",
		"failed to parse json":          "parse",
		"something else entirely":       "unknown",
	}
	for msg, want := range cases {
		require.Equal(t, want, string(ClassifyError(errors.New(msg))), msg)
	}
}

type fakeFetcher struct {
	calls   int
	failN   int
	content string
}

func (f *fakeFetcher) ExecuteDirect(ctx context.Context, url, prompt, source string) (string, error) {
	f.calls++
	if f.calls <= f.failN {
		return "", errors.New("network connect failed")
	}
	return f.content, nil
}

func (f *fakeFetcher) ExecuteSearch(ctx context.Context, query, prompt, source string) (string, error) {
	return f.ExecuteDirect(ctx, query, prompt, source)
}

func TestExecutor_RetriesThenSucceeds(t *testing.T) {
	ff := &fakeFetcher{failN: 2, content: `{"articles":[]}`}
	ex := NewExecutor(ff)
	content, taskErr := ex.ExecuteDirect(context.Background(), "https://x.com", "prompt", "src", Options{
		Timeout: time.Second, RetryInterval: time.Millisecond, MaxRetries: 5, Tier: 3,
	})
	require.Nil(t, taskErr)
	require.Equal(t, `{"articles":[]}`, content)
	require.Equal(t, 3, ff.calls)
}

func TestExecutor_ExhaustsRetriesAndClassifies(t *testing.T) {
	ff := &fakeFetcher{failN: 100}
	ex := NewExecutor(ff)
	_, taskErr := ex.ExecuteDirect(context.Background(), "https://x.com", "prompt", "src", Options{
		Timeout: time.Second, RetryInterval: time.Millisecond, MaxRetries: 1, Tier: 3,
	})
	require.NotNil(t, taskErr)
	require.Equal(t, "network", string(taskErr.Type))
	require.Equal(t, "src", taskErr.SourceID)
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	content := "Here is the result:\n```json\n{\"articles\": [{\"title\":\"A\",\"url\":\"https://x.com\"}]}\n```\n"
	v, ok := ExtractJSON(content)
	require.True(t, ok)
	m := v.(map[string]any)
	require.Len(t, m["articles"], 1)
}

func TestExtractJSON_BareArray(t *testing.T) {
	content := `[{"title":"A","url":"https://x.com"}]`
	v, ok := ExtractJSON(content)
	require.True(t, ok)
	arr := v.([]any)
	require.Len(t, arr, 1)
}

func TestExtractJSON_FirstToLastBrace(t *testing.T) {
	content := `some preamble { "articles": [{"title":"A","url":"https://x.com"}] } trailing junk`
	v, ok := ExtractJSON(content)
	require.True(t, ok)
	m := v.(map[string]any)
	require.Len(t, m["articles"], 1)
}

func TestExtractJSON_Unparseable(t *testing.T) {
	_, ok := ExtractJSON("残念ながら、最新記事を抽出できませんでした。")
	require.False(t, ok)
}

func TestNormalizeArticles_DropsMissingFields(t *testing.T) {
	parsed := []any{
		map[string]any{"title": "A", "url": "https://x.com/a"},
		map[string]any{"title": "", "url": "https://x.com/b"},
		map[string]any{"title": "C"},
	}
	now := time.Now()
	out := NormalizeArticles(parsed, "src1", now)
	require.Len(t, out, 1)
	require.Equal(t, "src1", out[0].Source)
	require.Equal(t, now, out[0].CollectedAt)
}

func TestPreview_CollapsesAndTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x "
	}
	p := Preview(long)
	require.LessOrEqual(t, len(p), 120)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newsbrief/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_AllFivePresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sources.yaml", `
sources:
  - id: s1
    name: Source One
    tier: 1
    enabled: true
    collectMethod: DirectFetch
    url: https://example.com
rateControl:
  maxConcurrency: 5
  defaultMaxRetries: 2
`)
	writeFile(t, dir, "queries.yaml", `
queryGroups:
  - id: g1
    name: AI
    keywords: [llm, gpu]
    weight: 1.0
selection:
  topN: 10
  maxPerSource: 2
`)
	writeFile(t, dir, "tag-synonyms.yaml", `
AI: [ML, "Machine Learning"]
`)
	writeFile(t, dir, "dedup-thresholds.yaml", `
thresholds:
  default:
    jaccard_gte: 0.7
    levenshtein_lte: 0.3
layer2_fallback:
  default:
    same_domain: 0.8
    cross_domain: 0.6
`)
	writeFile(t, dir, "app.yaml", `
agent:
  provider: mock
history:
  path: data/history.db
  retentionDays: 30
`)

	set, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, set.Sources.Sources, 1)
	require.Equal(t, "s1", set.Sources.Sources[0].ID)
	require.Equal(t, 5, set.Sources.RateControl.MaxConcurrency)
	require.Len(t, set.Queries.QueryGroups, 1)
	require.Equal(t, []string{"ML", "Machine Learning"}, set.Tags["AI"])
	require.Equal(t, 0.7, set.Dedup.Thresholds["default"].JaccardGTE)
	require.Equal(t, 30, set.App.History.RetentionDays)
}

func TestLoad_MissingFilesToleratedWithDefaults(t *testing.T) {
	dir := t.TempDir()
	set, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 90, set.App.History.RetentionDays)
	require.Equal(t, "mock", set.App.Agent.Provider)
}

func TestFileSourceStore_DisableSourcesPersists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sources.yaml", `
sources:
  - id: s1
    tier: 1
    enabled: true
    collectMethod: DirectFetch
    url: https://example.com
  - id: s2
    tier: 2
    enabled: true
    collectMethod: DirectFetch
    url: https://example.org
rateControl:
  maxConcurrency: 3
`)
	store := NewFileSourceStore(dir)
	require.NoError(t, store.DisableSources([]string{"s1"}))

	sources, rc, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 3, rc.MaxConcurrency)
	for _, s := range sources {
		if s.ID == "s1" {
			require.False(t, s.Enabled)
		}
		if s.ID == "s2" {
			require.True(t, s.Enabled)
		}
	}
}

func TestFileSourceStore_Load_CamelCaseFieldsBind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sources.yaml", `
sources:
  - id: s1
    tier: 1
    enabled: true
    collectMethod: DirectFetch
    url: https://example.com
    dateMethod: url_parse
    datePattern: '\d{4}-\d{2}-\d{2}'
    maxArticles: 7
    repairEligible: true
rateControl:
  maxConcurrency: 4
  defaultTimeout: 30s
  perSource:
    s1:
      timeout: 10s
      maxRetries: 2
`)
	store := NewFileSourceStore(dir)
	sources, rc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	s := sources[0]
	require.Equal(t, domain.CollectDirectFetch, s.CollectMethod)
	require.Equal(t, domain.DateMethodURLParse, s.DateMethod)
	require.Equal(t, `\d{4}-\d{2}-\d{2}`, s.DatePattern)
	require.Equal(t, 7, s.MaxArticles)
	require.True(t, s.RepairEligible)
	require.Equal(t, 4, rc.MaxConcurrency)
	require.Equal(t, 30*time.Second, rc.DefaultTimeout)
	require.Equal(t, 10*time.Second, rc.PerSource["s1"].Timeout)
	require.Equal(t, 2, rc.PerSource["s1"].MaxRetries)
}

func TestFileLastSuccessStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileLastSuccessStore(dir)

	got, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, got)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Save(now))

	got, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, now, *got)
}

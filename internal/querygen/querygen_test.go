package querygen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate_EmitsOneQueryPerKeyword(t *testing.T) {
	cfg := Config{
		Groups: []Group{
			{ID: "g1", Name: "AI", Keywords: []string{"llm", "transformer"}, Weight: 1.0},
		},
		TopN: 10,
	}
	qs := Generate(cfg)
	require.Len(t, qs, 2)
}

func TestGenerate_CombinedQueriesCapped(t *testing.T) {
	cfg := Config{
		Groups: []Group{
			{ID: "g1", Keywords: []string{"a", "b", "c"}, Weight: 1.0},
		},
		CombinedQueriesEnabled: true,
		MaxCombinations:        1,
		TopN:                   100,
	}
	qs := Generate(cfg)
	combos := 0
	for _, q := range qs {
		if len(q.Text) > 1 && containsSpace(q.Text) {
			combos++
		}
	}
	require.Equal(t, 1, combos)
}

func containsSpace(s string) bool {
	for _, r := range s {
		if r == ' ' {
			return true
		}
	}
	return false
}

func TestGenerate_RecencyBoostsWeight(t *testing.T) {
	cfg := Config{
		Groups: []Group{
			{ID: "hot", Keywords: []string{"llm"}, Weight: 1.0},
			{ID: "cold", Keywords: []string{"cobol"}, Weight: 1.0},
		},
		RecentTitles: []string{"new llm release", "another llm story"},
		TopN:         10,
	}
	qs := Generate(cfg)
	var hotWeight, coldWeight float64
	for _, q := range qs {
		if q.GroupID == "hot" {
			hotWeight = q.Weight
		}
		if q.GroupID == "cold" {
			coldWeight = q.Weight
		}
	}
	require.Greater(t, hotWeight, coldWeight)
}

func TestAllocatePerSource_OneQueryPerGroup(t *testing.T) {
	qs := []Query{
		{GroupID: "g1", Text: "a", Weight: 3},
		{GroupID: "g1", Text: "b", Weight: 2},
		{GroupID: "g2", Text: "c", Weight: 1},
	}
	selected := AllocatePerSource(qs, 2)
	require.Len(t, selected, 2)
	require.NotEqual(t, selected[0].GroupID, selected[1].GroupID)
}

func TestTagSynonyms_CaseInsensitive(t *testing.T) {
	idx := NewTagSynonyms(map[string][]string{"AI": {"ML", "Machine Learning"}})
	require.Equal(t, "AI", idx.Canonicalize("ml"))
	require.Equal(t, "AI", idx.Canonicalize("machine learning"))
	require.Equal(t, "unknown", idx.Canonicalize("unknown"))
}

func TestGenerate_SynonymExpansionCountsTowardRecency(t *testing.T) {
	syn := NewTagSynonyms(map[string][]string{"llm": {"large language model"}})
	cfg := Config{
		Groups: []Group{
			{ID: "hot", Keywords: []string{"llm"}, Weight: 1.0},
			{ID: "cold", Keywords: []string{"cobol"}, Weight: 1.0},
		},
		RecentTitles: []string{"a new large language model ships", "another large language model story"},
		Synonyms:     syn,
		TopN:         10,
	}
	qs := Generate(cfg)
	var hotWeight, coldWeight float64
	for _, q := range qs {
		if q.GroupID == "hot" {
			hotWeight = q.Weight
		}
		if q.GroupID == "cold" {
			coldWeight = q.Weight
		}
	}
	require.Greater(t, hotWeight, coldWeight)
}

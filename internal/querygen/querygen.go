// Package querygen produces a ranked set of weighted search queries from
// tag-synonym and query-group configuration.
//
// Grounded on a linear ratio-band-mapping idiom for relevance scoring,
// adapted here to recency/frequency query weighting.
package querygen

import (
	"sort"
	"strings"
)

// Group is one configured query group.
type Group struct {
	ID       string
	Name     string
	Keywords []string
	Weight   float64
}

// Band maps a ratio linearly into [Low, High].
type Band struct {
	Low  float64
	High float64
}

// DefaultRecencyBand and DefaultFrequencyBand are the default weighting bands.
var (
	DefaultRecencyBand   = Band{Low: 0.5, High: 1.5}
	DefaultFrequencyBand = Band{Low: 0.8, High: 1.2}
)

// Config drives query generation.
type Config struct {
	Groups                []Group
	RecentTitles          []string
	AllTimeTitles         []string
	RecencyBand           Band
	FrequencyBand         Band
	CombinedQueriesEnabled bool
	MaxCombinations        int
	TopN                   int
	MaxPerSource           int
	Synonyms               *TagSynonyms // canonical-tag reverse index; nil disables synonym expansion
}

// Query is one generated, weighted search query.
type Query struct {
	GroupID string
	Text    string
	Weight  float64
}

func countMatches(titles []string, keyword string) int {
	n := 0
	lower := strings.ToLower(keyword)
	for _, t := range titles {
		if strings.Contains(strings.ToLower(t), lower) {
			n++
		}
	}
	return n
}

// countMatchesAny counts a title as a match if it contains ANY of the
// keyword's surface forms (the keyword itself plus its tag-synonyms, when a
// synonym index is configured), so a title using a synonym still counts.
func countMatchesAny(titles []string, keyword string, syn *TagSynonyms) int {
	if syn == nil {
		return countMatches(titles, keyword)
	}
	forms := syn.SurfaceForms(keyword)
	n := 0
	for _, t := range titles {
		lower := strings.ToLower(t)
		for _, f := range forms {
			if strings.Contains(lower, strings.ToLower(f)) {
				n++
				break
			}
		}
	}
	return n
}

func mapRatio(ratio float64, band Band) float64 {
	// linear: 0 -> band.Low, 1 -> band.High, clamped to [0,1] input domain
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return band.Low + ratio*(band.High-band.Low)
}

func maxGroupMatches(cfg Config, titles []string) int {
	max := 0
	for _, g := range cfg.Groups {
		n := 0
		for _, kw := range g.Keywords {
			n += countMatchesAny(titles, kw, cfg.Synonyms)
		}
		if n > max {
			max = n
		}
	}
	return max
}

// groupWeight computes a group's finalWeight: baseWeight * recencyFactor * frequencyFactor.
func groupWeight(g Group, cfg Config, maxRecent, maxAll int) float64 {
	recentMatches := 0
	allMatches := 0
	for _, kw := range g.Keywords {
		recentMatches += countMatchesAny(cfg.RecentTitles, kw, cfg.Synonyms)
		allMatches += countMatchesAny(cfg.AllTimeTitles, kw, cfg.Synonyms)
	}
	recencyRatio := zeroSafeRatio(recentMatches, maxRecent)
	frequencyRatio := zeroSafeRatio(allMatches, maxAll)
	recencyFactor := mapRatio(recencyRatio, cfg.RecencyBand)
	frequencyFactor := mapRatio(frequencyRatio, cfg.FrequencyBand)
	return g.Weight * recencyFactor * frequencyFactor
}

func zeroSafeRatio(n, max int) float64 {
	if max == 0 {
		return 0
	}
	return float64(n) / float64(max)
}

// Generate produces, ranks and selects queries from the configured groups.
func Generate(cfg Config) []Query {
	if cfg.RecencyBand == (Band{}) {
		cfg.RecencyBand = DefaultRecencyBand
	}
	if cfg.FrequencyBand == (Band{}) {
		cfg.FrequencyBand = DefaultFrequencyBand
	}

	maxRecent := maxGroupMatches(cfg, cfg.RecentTitles)
	maxAll := maxGroupMatches(cfg, cfg.AllTimeTitles)

	var all []Query
	for _, g := range cfg.Groups {
		finalWeight := groupWeight(g, cfg, maxRecent, maxAll)
		for _, kw := range g.Keywords {
			all = append(all, Query{GroupID: g.ID, Text: kw, Weight: finalWeight})
		}
		if cfg.CombinedQueriesEnabled {
			combos := 0
			for i := 0; i < len(g.Keywords); i++ {
				for j := i + 1; j < len(g.Keywords); j++ {
					if combos >= cfg.MaxCombinations {
						break
					}
					all = append(all, Query{
						GroupID: g.ID,
						Text:    g.Keywords[i] + " " + g.Keywords[j],
						Weight:  finalWeight * 0.9,
					})
					combos++
				}
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Weight > all[j].Weight })
	if cfg.TopN > 0 && len(all) > cfg.TopN {
		all = all[:cfg.TopN]
	}
	return all
}

// AllocatePerSource walks the sorted query list and picks at most
// maxPerSource queries, allowing at most one query per group (diversity
// constraint).
func AllocatePerSource(queries []Query, maxPerSource int) []Query {
	seenGroups := map[string]bool{}
	var out []Query
	for _, q := range queries {
		if len(out) >= maxPerSource {
			break
		}
		if seenGroups[q.GroupID] {
			continue
		}
		seenGroups[q.GroupID] = true
		out = append(out, q)
	}
	return out
}

// TagSynonyms is a case-insensitive reverse index from synonym -> canonical tag.
type TagSynonyms struct {
	bySynonym map[string]string
	byTag     map[string][]string // canonical tag (lowercased) -> all surface forms, including itself
}

// NewTagSynonyms builds a reverse index from canonical tag -> synonym list.
func NewTagSynonyms(canonicalToSynonyms map[string][]string) *TagSynonyms {
	idx := &TagSynonyms{bySynonym: map[string]string{}, byTag: map[string][]string{}}
	for canonical, synonyms := range canonicalToSynonyms {
		lc := strings.ToLower(canonical)
		idx.bySynonym[lc] = canonical
		idx.byTag[lc] = append(idx.byTag[lc], canonical)
		for _, s := range synonyms {
			idx.bySynonym[strings.ToLower(s)] = canonical
			idx.byTag[lc] = append(idx.byTag[lc], s)
		}
	}
	return idx
}

// Canonicalize returns the canonical tag for term, or term itself if unknown.
func (t *TagSynonyms) Canonicalize(term string) string {
	if canonical, ok := t.bySynonym[strings.ToLower(term)]; ok {
		return canonical
	}
	return term
}

// SurfaceForms returns every synonym (plus term itself) sharing term's
// canonical tag, for recency/frequency match-counting against title corpora
// that may mention a synonym rather than the configured keyword verbatim.
func (t *TagSynonyms) SurfaceForms(term string) []string {
	canonical, ok := t.bySynonym[strings.ToLower(term)]
	if !ok {
		return []string{term}
	}
	if forms, ok := t.byTag[strings.ToLower(canonical)]; ok {
		return forms
	}
	return []string{term}
}

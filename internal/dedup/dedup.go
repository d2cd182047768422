// Package dedup implements the Deduplicator: URL normalise + intra-batch
// dedupe, history exclusion, Layer-2 and Layer-3 near-duplicate filtering,
// freshness classification and history update.
//
// Grounded on a 4-layer deduplication engine for the overall
// staged-pipeline/stats-reporting shape.
package dedup

import (
	"regexp"
	"time"

	"newsbrief/internal/dateparse"
	"newsbrief/internal/domain"
	"newsbrief/internal/similarity"
	"newsbrief/internal/urlnorm"
)

// HistoryReader is the subset of historystore.Store the Deduplicator reads.
type HistoryReader interface {
	FindExistingURLs(urls []string) (map[string]bool, error)
}

// HistoryWriter is the subset of historystore.Store the Deduplicator writes.
type HistoryWriter interface {
	BulkUpsert(entries []domain.HistoryEntry) error
}

// HistoryStore is the combined read/write interface used by Deduplicator.Run.
type HistoryStore interface {
	HistoryReader
	HistoryWriter
}

// Stats reports the surviving count after each stage.
type Stats struct {
	TotalInput           int
	AfterURLDedup         int
	AfterHistoryDedup     int
	AfterSimilarityDedup  int
	FreshCount            int
}

// Input bundles everything one Deduplicator.Run call needs.
type Input struct {
	Articles        []domain.RawArticle
	Sources         map[string]domain.SourceConfig // by source id
	Thresholds      domain.DedupThresholds
	URLNormOptions  urlnorm.Options
	DateURLOverride *regexp.Regexp
	LastSuccessAt   *time.Time
	Now             time.Time
}

// Result is the Deduplicator's output.
type Result struct {
	Articles []domain.FilteredArticle
	Stats    Stats
}

// Deduplicator runs the six-stage pipeline against a HistoryStore.
type Deduplicator struct {
	history HistoryStore
}

// NewDeduplicator builds a Deduplicator around the given History Store.
func NewDeduplicator(history HistoryStore) *Deduplicator {
	return &Deduplicator{history: history}
}

type candidate struct {
	article       domain.RawArticle
	normalizedURL string
}

// Run executes all six stages in order, preserving input order throughout.
func (d *Deduplicator) Run(in Input) (*Result, error) {
	stats := Stats{TotalInput: len(in.Articles)}
	if len(in.Articles) == 0 {
		return &Result{Stats: stats}, nil
	}

	// Stage 1: URL normalise + intra-batch dedupe.
	seen := map[string]bool{}
	var stage1 []candidate
	for _, a := range in.Articles {
		norm, err := urlnorm.Normalize(a.URL, in.URLNormOptions)
		if err != nil {
			norm = a.URL // normalisation failure falls back to the raw URL
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		stage1 = append(stage1, candidate{article: a, normalizedURL: norm})
	}
	stats.AfterURLDedup = len(stage1)

	// Stage 2: History exclusion.
	urls := make([]string, len(stage1))
	for i, c := range stage1 {
		urls[i] = c.normalizedURL
	}
	existing, err := d.history.FindExistingURLs(urls)
	if err != nil {
		return nil, err // History Store errors are fatal to the run
	}
	var stage2 []candidate
	for _, c := range stage1 {
		if existing[c.normalizedURL] {
			continue
		}
		stage2 = append(stage2, c)
	}
	stats.AfterHistoryDedup = len(stage2)

	// Stage 3: Layer-2 intra-batch near-duplicate.
	var stage3 []candidate
	for _, c := range stage2 {
		if d.isLayer2Duplicate(c, stage3, in.Thresholds) {
			continue
		}
		stage3 = append(stage3, c)
	}

	// Stage 4: Layer-3 fuzzy.
	var stage4 []candidate
	var diagnostics []*float64
	for _, c := range stage3 {
		dup, score := d.isLayer3Duplicate(c, stage4, in.Sources, in.Thresholds)
		if dup {
			continue
		}
		stage4 = append(stage4, c)
		diagnostics = append(diagnostics, score)
	}
	stats.AfterSimilarityDedup = len(stage4)

	// Stage 5: Freshness classification.
	windowStart := dateparse.WindowStart(in.LastSuccessAt, in.Now)
	var filtered []domain.FilteredArticle
	var toUpsert []domain.HistoryEntry
	for i, c := range stage4 {
		fa := d.classifyFreshness(c, in.Sources, in.DateURLOverride, in.Now, windowStart)
		fa.SimilarityScore = diagnostics[i]
		if !(fa.IsFresh || fa.DateConfidence == domain.ConfidenceUnknown) {
			continue
		}
		filtered = append(filtered, fa)

		toUpsert = append(toUpsert, domain.HistoryEntry{
			URL:            fa.URL,
			NormalizedURL:  fa.NormalizedURL,
			Title:          fa.Title,
			Source:         fa.Source,
			FirstSeenAt:    in.Now,
			LastSeenAt:     in.Now,
			PublishedAt:    resolvedDatePtr(fa),
			DateConfidence: fa.DateConfidence,
			TitleHash:      similarity.TitleHash(fa.Title),
		})
	}
	stats.FreshCount = len(filtered)

	// Stage 6: History update.
	if err := d.history.BulkUpsert(toUpsert); err != nil {
		return nil, err
	}

	return &Result{Articles: filtered, Stats: stats}, nil
}

func resolvedDatePtr(fa domain.FilteredArticle) *time.Time {
	if fa.ResolvedDate.IsZero() {
		return nil
	}
	t := fa.ResolvedDate
	return &t
}

func (d *Deduplicator) categoryFor(a domain.RawArticle, sources map[string]domain.SourceConfig) similarity.Category {
	host, _ := urlnorm.ExtractDomain(a.URL)
	return similarity.DetectCategory(a.Source, host)
}

func (d *Deduplicator) isLayer2Duplicate(c candidate, accepted []candidate, thresholds domain.DedupThresholds) bool {
	for _, acc := range accepted {
		sameDomain := urlnorm.IsSameDomain(c.article.URL, acc.article.URL)
		sameTh, crossTh := layer2Thresholds(c.article.Source, thresholds)
		dup, _ := similarity.IsLayer2Duplicate(c.article.Title, acc.article.Title, sameDomain, sameTh, crossTh)
		if dup {
			return true
		}
	}
	return false
}

// layer2Thresholds looks up the same/cross domain Jaccard cut-offs by
// source id, with a "default" fallback.
func layer2Thresholds(sourceID string, thresholds domain.DedupThresholds) (sameDomain, crossDomain float64) {
	if fb, ok := thresholds.Layer2Fallback[sourceID]; ok {
		return fb.SameDomain, fb.CrossDomain
	}
	if fb, ok := thresholds.Layer2Fallback["default"]; ok {
		return fb.SameDomain, fb.CrossDomain
	}
	return 0.8, 0.6
}

func (d *Deduplicator) isLayer3Duplicate(c candidate, accepted []candidate, sources map[string]domain.SourceConfig, thresholds domain.DedupThresholds) (bool, *float64) {
	cat := d.categoryFor(c.article, sources)
	th := thresholdFor(cat, thresholds)
	var best *float64
	for _, acc := range accepted {
		dup, j, e := similarity.IsLayer3Duplicate(c.article.Title, acc.article.Title, th)
		score := j + (1 - e)
		if best == nil || score > *best {
			best = &score
		}
		if dup {
			b := score
			return true, &b
		}
	}
	return false, best
}

func thresholdFor(cat similarity.Category, thresholds domain.DedupThresholds) similarity.Threshold {
	if ct, ok := thresholds.Thresholds[string(cat)]; ok {
		return similarity.Threshold{JaccardGTE: ct.JaccardGTE, LevenshteinLTE: ct.LevenshteinLTE}
	}
	if ct, ok := thresholds.Thresholds[string(similarity.CategoryDefault)]; ok {
		return similarity.Threshold{JaccardGTE: ct.JaccardGTE, LevenshteinLTE: ct.LevenshteinLTE}
	}
	return similarity.Threshold{JaccardGTE: 0.7, LevenshteinLTE: 0.3}
}

func (d *Deduplicator) classifyFreshness(c candidate, sources map[string]domain.SourceConfig, urlOverride *regexp.Regexp, now, windowStart time.Time) domain.FilteredArticle {
	fa := domain.FilteredArticle{RawArticle: c.article, NormalizedURL: c.normalizedURL}

	var result dateparse.Result
	src, hasSrc := sources[c.article.Source]
	switch {
	case c.article.PublishedAt != "":
		result = dateparse.Layer1Explicit(c.article.PublishedAt)
	case hasSrc && src.DateMethod != "":
		var override *regexp.Regexp
		if src.DatePattern != "" {
			if re, err := regexp.Compile(src.DatePattern); err == nil {
				override = re
			}
		}
		result = dateparse.DispatchByMethod(src.DateMethod, c.article.URL, c.article.DateMetaContent, override, now)
	default:
		result = dateparse.MultiLayer(c.article.PublishedAt, c.article.URL, c.article.DateMetaContent, urlOverride, now)
	}

	fa.DateConfidence = result.Confidence
	fa.DateSource = result.Source
	if result.Resolved {
		fa.ResolvedDate = result.Date
	}

	candidates := []dateparse.Result{}
	if result.Resolved {
		candidates = append(candidates, result)
	}
	fr := dateparse.ClassifyFreshness(candidates, windowStart)
	fa.IsFresh = fr.IsFresh
	fa.FreshnessPriority = fr.Priority
	if !result.Resolved {
		fa.DateSource = fr.Source
	}

	return fa
}

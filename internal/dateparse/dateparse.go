// Package dateparse implements three-layer date extraction and the
// freshness-window comparison used to decide whether an article is new
// enough to keep.
//
// Grounded on the multi-format date-layout idiom found in RSS/Atom feed
// parsers: try a list of layouts in order, first success wins.
package dateparse

import (
	"newsbrief/internal/domain"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of a date-resolution attempt.
type Result struct {
	Date       time.Time
	Confidence domain.DateConfidence
	Source     domain.DateSource
	Resolved   bool
}

var explicitLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Layer1Explicit parses an explicit timestamp string (e.g. RSS pubDate,
// article metadata). Success -> confidence=high, source=published_at.
func Layer1Explicit(s string) Result {
	s = strings.TrimSpace(s)
	if s == "" {
		return Result{Confidence: domain.ConfidenceUnknown}
	}
	for _, layout := range explicitLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Result{Date: t.UTC(), Confidence: domain.ConfidenceHigh, Source: domain.DateSourcePublishedAt, Resolved: true}
		}
	}
	return Result{Confidence: domain.ConfidenceUnknown}
}

var defaultURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(\d{4})[-/](\d{2})[-/](\d{2})/`),
	regexp.MustCompile(`[?&]date=(\d{4})[-/](\d{2})[-/](\d{2})`),
	regexp.MustCompile(`/articles?/(\d{4})(\d{2})(\d{2})`),
}

// Layer2URLPath tries the default (or caller-supplied override) URL date
// patterns in order. Success -> midnight UTC, confidence=medium, source=url_date.
func Layer2URLPath(url string, override *regexp.Regexp) Result {
	patterns := defaultURLPatterns
	if override != nil {
		patterns = []*regexp.Regexp{override}
	}
	for _, re := range patterns {
		m := re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		year, errY := strconv.Atoi(m[1])
		month, errM := strconv.Atoi(m[2])
		day, errD := strconv.Atoi(m[3])
		if errY != nil || errM != nil || errD != nil {
			continue
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return Result{Date: t, Confidence: domain.ConfidenceMedium, Source: domain.DateSourceURLDate, Resolved: true}
	}
	return Result{Confidence: domain.ConfidenceUnknown}
}

type relativePhrase struct {
	re   *regexp.Regexp
	unit string // "second","minute","hour","day","week" or "month"
}

var relativePhrases = []relativePhrase{
	{regexp.MustCompile(`(\d+)\s*秒前`), "second"},
	{regexp.MustCompile(`(\d+)\s*分前`), "minute"},
	{regexp.MustCompile(`(\d+)\s*時間前`), "hour"},
	{regexp.MustCompile(`(\d+)\s*日前`), "day"},
	{regexp.MustCompile(`(\d+)\s*週間前`), "week"},
	{regexp.MustCompile(`(\d+)\s*(?:ヶ月|か月)前`), "month"},
	{regexp.MustCompile(`(\d+)\s*seconds?\s*ago`), "second"},
	{regexp.MustCompile(`(\d+)\s*minutes?\s*ago`), "minute"},
	{regexp.MustCompile(`(\d+)\s*hours?\s*ago`), "hour"},
	{regexp.MustCompile(`(\d+)\s*days?\s*ago`), "day"},
	{regexp.MustCompile(`(\d+)\s*weeks?\s*ago`), "week"},
	{regexp.MustCompile(`(\d+)\s*months?\s*ago`), "month"},
}

var fixedPhrases = []struct {
	re     *regexp.Regexp
	offset time.Duration
}{
	{regexp.MustCompile(`昨日`), -24 * time.Hour},
	{regexp.MustCompile(`今日`), 0},
	{regexp.MustCompile(`先週`), -7 * 24 * time.Hour},
	{regexp.MustCompile(`(?i)yesterday`), -24 * time.Hour},
	{regexp.MustCompile(`(?i)today`), 0},
	{regexp.MustCompile(`(?i)last week`), -7 * 24 * time.Hour},
}

// Layer3NaturalLanguage matches a Japanese/English relative-time phrase
// table, computing the result from ref (default: now). confidence=low,
// source=relative_time.
func Layer3NaturalLanguage(s string, ref time.Time) Result {
	for _, p := range relativePhrases {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		var d time.Duration
		switch p.unit {
		case "second":
			d = time.Duration(n) * time.Second
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		case "week":
			d = time.Duration(n) * 7 * 24 * time.Hour
		case "month":
			d = time.Duration(n) * 30 * 24 * time.Hour
		}
		return Result{Date: ref.Add(-d).UTC(), Confidence: domain.ConfidenceLow, Source: domain.DateSourceRelativeTime, Resolved: true}
	}
	for _, fp := range fixedPhrases {
		if fp.re.MatchString(s) {
			return Result{Date: ref.Add(fp.offset).UTC(), Confidence: domain.ConfidenceLow, Source: domain.DateSourceRelativeTime, Resolved: true}
		}
	}
	return Result{Confidence: domain.ConfidenceUnknown}
}

// MultiLayer runs the three layers in order against the relevant inputs,
// returning the first that resolves. If all fail it returns the "none"
// sentinel instructing downstream to fall back to first_seen_at.
func MultiLayer(explicit, urlStr, naturalLanguage string, urlOverride *regexp.Regexp, ref time.Time) Result {
	if r := Layer1Explicit(explicit); r.Resolved {
		return r
	}
	if r := Layer2URLPath(urlStr, urlOverride); r.Resolved {
		return r
	}
	if r := Layer3NaturalLanguage(naturalLanguage, ref); r.Resolved {
		return r
	}
	return Result{Confidence: domain.ConfidenceUnknown, Source: domain.DateSourceFirstSeenAt, Resolved: false}
}

// DispatchByMethod resolves a date according to the SourceConfig's
// configured dateMethod.
func DispatchByMethod(method domain.DateMethod, urlStr, metaContent string, urlOverride *regexp.Regexp, ref time.Time) Result {
	switch method {
	case domain.DateMethodHTMLMeta, domain.DateMethodAPI:
		return Layer1Explicit(metaContent)
	case domain.DateMethodURLParse:
		return Layer2URLPath(urlStr, urlOverride)
	case domain.DateMethodHTMLParse, domain.DateMethodSearchResult:
		return Layer3NaturalLanguage(metaContent, ref)
	default:
		return Result{Confidence: domain.ConfidenceUnknown, Source: domain.DateSourceFirstSeenAt}
	}
}

// WindowStart computes the freshness cut-off, with Monday catch-up for the
// weekend gap, avoiding double-counting against the last successful run.
func WindowStart(lastSuccessAt *time.Time, now time.Time) time.Time {
	now = now.UTC()
	if now.Weekday() == time.Monday {
		catchUp := now.Add(-72 * time.Hour)
		if lastSuccessAt == nil {
			return catchUp
		}
		last := lastSuccessAt.UTC()
		if last.Before(catchUp) {
			return last
		}
		return catchUp
	}
	if lastSuccessAt != nil {
		return lastSuccessAt.UTC()
	}
	return now.Add(-24 * time.Hour)
}

// FreshnessResult is the outcome of freshness classification.
type FreshnessResult struct {
	IsFresh  bool
	Priority domain.FreshnessPriority
	Source   domain.DateSource
}

// priorityFor maps a DateSource to its freshness priority:
// published_at -> high, url_date/relative_time -> normal, first_seen_at -> low.
func priorityFor(src domain.DateSource) domain.FreshnessPriority {
	switch src {
	case domain.DateSourcePublishedAt:
		return domain.PriorityHigh
	case domain.DateSourceURLDate, domain.DateSourceRelativeTime:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

// ClassifyFreshness walks published_at -> url_date -> relative_time ->
// first_seen_at, taking the first candidate that yielded a parseable date,
// and compares it against windowStart. If every candidate failed, the
// conservative "keep on doubt" policy applies.
func ClassifyFreshness(candidates []Result, windowStart time.Time) FreshnessResult {
	order := []domain.DateSource{
		domain.DateSourcePublishedAt,
		domain.DateSourceURLDate,
		domain.DateSourceRelativeTime,
		domain.DateSourceFirstSeenAt,
	}
	bySource := map[domain.DateSource]Result{}
	for _, c := range candidates {
		if c.Resolved {
			bySource[c.Source] = c
		}
	}
	for _, src := range order {
		if r, ok := bySource[src]; ok {
			return FreshnessResult{
				IsFresh:  !r.Date.Before(windowStart),
				Priority: priorityFor(src),
				Source:   src,
			}
		}
	}
	return FreshnessResult{IsFresh: true, Priority: domain.PriorityLow, Source: domain.DateSourceNone}
}

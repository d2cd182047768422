// Package domain holds the plain data types shared across the
// collection and deduplication pipeline.
package domain

import "time"

// CollectMethod selects how a source is fetched.
type CollectMethod string

const (
	CollectDirectFetch CollectMethod = "DirectFetch"
	CollectSearch      CollectMethod = "Search"
)

// DateMethod selects how a source's publish date is resolved.
type DateMethod string

const (
	DateMethodHTMLMeta     DateMethod = "html_meta"
	DateMethodHTMLParse    DateMethod = "html_parse"
	DateMethodURLParse     DateMethod = "url_parse"
	DateMethodSearchResult DateMethod = "search_result"
	DateMethodAPI          DateMethod = "api"
)

// DateConfidence classifies how trustworthy a resolved date is.
type DateConfidence string

const (
	ConfidenceHigh    DateConfidence = "high"
	ConfidenceMedium  DateConfidence = "medium"
	ConfidenceLow     DateConfidence = "low"
	ConfidenceUnknown DateConfidence = "unknown"
)

// DateSource identifies which layer produced a resolved date.
type DateSource string

const (
	DateSourcePublishedAt  DateSource = "published_at"
	DateSourceURLDate      DateSource = "url_date"
	DateSourceRelativeTime DateSource = "relative_time"
	DateSourceFirstSeenAt  DateSource = "first_seen_at"
	DateSourceNone         DateSource = "none"
)

// FreshnessPriority is derived from DateSource.
type FreshnessPriority string

const (
	PriorityHigh   FreshnessPriority = "high"
	PriorityNormal FreshnessPriority = "normal"
	PriorityLow    FreshnessPriority = "low"
)

// ErrorType is the error taxonomy used by the Fetch Executor and Collector.
type ErrorType string

const (
	ErrorTimeout   ErrorType = "timeout"
	ErrorNetwork   ErrorType = "network"
	ErrorRateLimit ErrorType = "rate_limit"
	ErrorParse     ErrorType = "parse"
	ErrorUnknown   ErrorType = "unknown"
)

// SourceStatus summarises the outcome of fetching one source.
type SourceStatus string

const (
	StatusSuccess SourceStatus = "success"
	StatusPartial SourceStatus = "partial"
	StatusFailed  SourceStatus = "failed"
)

// RawArticle is produced by the Fetch Executor.
type RawArticle struct {
	URL             string    `json:"url"`                       // absolute http/https, required
	Title           string    `json:"title"`                     // required, non-empty
	Summary         string    `json:"summary,omitempty"`          // optional short prose
	Source          string    `json:"source"`                    // stable source identifier
	CollectedAt     time.Time `json:"collectedAt"`                // timestamp of retrieval
	PublishedAt     string    `json:"publishedAt,omitempty"`       // optional, any recognisable form
	DateMetaContent string    `json:"dateMetaContent,omitempty"`  // meta-tag value / relative phrase / snippet
}

// FilteredArticle is the output of the Deduplicator.
type FilteredArticle struct {
	RawArticle
	NormalizedURL     string            `json:"normalizedUrl"`
	IsFresh           bool              `json:"isFresh"`
	DateConfidence    DateConfidence    `json:"dateConfidence"`
	DateSource        DateSource        `json:"dateSource"`
	ResolvedDate      time.Time         `json:"resolvedDate,omitempty"`
	FreshnessPriority FreshnessPriority `json:"freshnessPriority"`
	SimilarityScore   *float64          `json:"similarityScore,omitempty"` // diagnostic only
}

// HistoryEntry is the persistent record keyed by normalised URL.
type HistoryEntry struct {
	URL            string
	NormalizedURL  string // unique
	Title          string
	Source         string
	FirstSeenAt    time.Time // immutable after insert
	LastSeenAt     time.Time
	PublishedAt    *time.Time
	DateConfidence DateConfidence
	TitleHash      string
	ContentHash    string
}

// SourceConfig describes one configured news source.
type SourceConfig struct {
	ID              string        `mapstructure:"id" yaml:"id"`
	Name            string        `mapstructure:"name" yaml:"name"`
	Tier            int           `mapstructure:"tier" yaml:"tier"` // 1, 2 or 3
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	CollectMethod   CollectMethod `mapstructure:"collectMethod" yaml:"collectMethod"`
	URL             string        `mapstructure:"url" yaml:"url"`           // for DirectFetch
	Query           string        `mapstructure:"query" yaml:"query"`       // for Search
	Accounts        []string      `mapstructure:"accounts" yaml:"accounts"` // for Twitter-like Search sources
	DateMethod      DateMethod    `mapstructure:"dateMethod" yaml:"dateMethod"`
	DateSelector    string        `mapstructure:"dateSelector" yaml:"dateSelector"`
	DatePattern     string        `mapstructure:"datePattern" yaml:"datePattern"`
	MaxArticles     int           `mapstructure:"maxArticles" yaml:"maxArticles"`
	RepairEligible  bool          `mapstructure:"repairEligible" yaml:"repairEligible"` // opt-in strict-JSON repair
}

// PerSourceRateControl overrides the global RateControl defaults for one source.
type PerSourceRateControl struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryInterval time.Duration `mapstructure:"retryInterval" yaml:"retryInterval"`
	MaxRetries    int           `mapstructure:"maxRetries" yaml:"maxRetries"`
}

// RateControl holds global fetch concurrency/retry defaults plus per-source overrides.
type RateControl struct {
	MaxConcurrency       int                             `mapstructure:"maxConcurrency" yaml:"maxConcurrency"`
	DefaultTimeout       time.Duration                   `mapstructure:"defaultTimeout" yaml:"defaultTimeout"`
	DefaultRetryInterval time.Duration                   `mapstructure:"defaultRetryInterval" yaml:"defaultRetryInterval"`
	DefaultMaxRetries    int                             `mapstructure:"defaultMaxRetries" yaml:"defaultMaxRetries"`
	PerSource            map[string]PerSourceRateControl `mapstructure:"perSource" yaml:"perSource"`
}

// CategoryThreshold holds the Layer-3 similarity cut-offs for one dedup category.
type CategoryThreshold struct {
	JaccardGTE     float64 `mapstructure:"jaccard_gte"`
	LevenshteinLTE float64 `mapstructure:"levenshtein_lte"`
}

// Layer2Fallback holds the Layer-2 same/cross domain Jaccard cut-offs for one source.
type Layer2Fallback struct {
	SameDomain  float64 `mapstructure:"same_domain"`
	CrossDomain float64 `mapstructure:"cross_domain"`
}

// DedupThresholds is the parsed dedup-thresholds configuration file.
type DedupThresholds struct {
	Thresholds     map[string]CategoryThreshold `mapstructure:"thresholds"`
	Layer2Fallback map[string]Layer2Fallback    `mapstructure:"layer2_fallback"`
}

// Task is one unit of collection work built by the Collector.
type Task struct {
	ID          string
	SourceID    string
	Tier        int
	Method      CollectMethod
	URL         string
	Query       string
	Prompt      string
	MaxArticles int
	RepairEligible bool // opt-in strict-JSON repair, only meaningful for DirectFetch (§4.6)
}

// TaskResult is the all-settled outcome of running one Task through the Fetch Executor.
type TaskResult struct {
	Task      Task
	Status    SourceStatus
	Articles  []RawArticle
	Err       *TaskError
	RawPreview string
}

// TaskError carries the classified error plus the retry context the
// auto-disable pass needs to inspect.
type TaskError struct {
	Type       ErrorType
	SourceID   string
	RetryCount int
	Timestamp  time.Time
	Message    string
}

func (e *TaskError) Error() string {
	return e.Message
}

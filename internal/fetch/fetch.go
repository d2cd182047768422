// Package fetch implements the per-source Fetch Executor: tiered retry,
// timeout, cancellation, error classification, JSON result shaping and
// strict-JSON repair, wrapped around an abstracted LLM-fetch boundary.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsbrief/internal/domain"
)

// Fetcher is the LLM-fetch boundary contract. Implementations are expected
// to honour ctx cancellation and return text that usually, but not always,
// contains fenced JSON.
type Fetcher interface {
	ExecuteDirect(ctx context.Context, url, prompt, source string) (content string, err error)
	ExecuteSearch(ctx context.Context, query, prompt, source string) (content string, err error)
}

// Options configures one Executor invocation.
type Options struct {
	Timeout       time.Duration
	RetryInterval time.Duration
	MaxRetries    int
	Tier          int
}

var tierFloors = map[int]int{1: 3, 2: 1, 3: 0}

// EffectiveMaxRetries returns max(configured, tierFloor).
func EffectiveMaxRetries(configured, tier int) int {
	floor := tierFloors[tier]
	if configured > floor {
		return configured
	}
	return floor
}

// Executor wraps a Fetcher with retry/timeout/error-classification policy.
type Executor struct {
	fetcher Fetcher
}

// NewExecutor builds an Executor around the given Fetcher boundary.
func NewExecutor(fetcher Fetcher) *Executor {
	return &Executor{fetcher: fetcher}
}

// ClassifyError maps raw error text to the error taxonomy by lowercase
// substring.
func ClassifyError(err error) domain.ErrorType {
	if err == nil {
		return domain.ErrorUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "abort"), strings.Contains(msg, "aborted by user"):
		return domain.ErrorTimeout
	case strings.Contains(msg, "network"), strings.Contains(msg, "fetch"), strings.Contains(msg, "connect"):
		return domain.ErrorNetwork
	case strings.Contains(msg, "rate"), strings.Contains(msg, "limit"), strings.Contains(msg, "429"):
		return domain.ErrorRateLimit
	case strings.Contains(msg, "parse"), strings.Contains(msg, "json"):
		return domain.ErrorParse
	default:
		return domain.ErrorUnknown
	}
}

// attemptResult is the outcome of a single retry attempt.
type attemptResult struct {
	content    string
	err        error
	retryCount int
}

// runWithRetry executes fn up to maxRetries+1 times, waiting retryInterval
// between attempts, installing a per-attempt deadline of timeout.
func runWithRetry(ctx context.Context, opts Options, fn func(ctx context.Context) (string, error)) attemptResult {
	var lastErr error
	attempts := opts.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		content, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return attemptResult{content: content, retryCount: i}
		}
		lastErr = err
		if attemptCtx.Err() == context.DeadlineExceeded {
			lastErr = fmt.Errorf("timeout: %w", err)
		}
		if i < attempts-1 {
			time.Sleep(opts.RetryInterval)
		}
	}
	return attemptResult{err: lastErr, retryCount: attempts - 1}
}

// ExecuteDirect runs a DirectFetch task through the retry/timeout policy.
func (e *Executor) ExecuteDirect(ctx context.Context, url, prompt, source string, opts Options) (string, *domain.TaskError) {
	opts.MaxRetries = EffectiveMaxRetries(opts.MaxRetries, opts.Tier)
	res := runWithRetry(ctx, opts, func(ctx context.Context) (string, error) {
		return e.fetcher.ExecuteDirect(ctx, url, prompt, source)
	})
	return e.shapeResult(res, source)
}

// ExecuteSearch runs a Search task through the retry/timeout policy.
func (e *Executor) ExecuteSearch(ctx context.Context, query, prompt, source string, opts Options) (string, *domain.TaskError) {
	opts.MaxRetries = EffectiveMaxRetries(opts.MaxRetries, opts.Tier)
	res := runWithRetry(ctx, opts, func(ctx context.Context) (string, error) {
		return e.fetcher.ExecuteSearch(ctx, query, prompt, source)
	})
	return e.shapeResult(res, source)
}

const strictJSONRepairPrompt = "The previous response could not be parsed as JSON. Re-emit ONLY a strict JSON articles array (or {\"articles\": [...]})  with no prose and no markdown fencing, derived from this prior response:\n\n%s"

// Repair issues exactly one additional DirectFetch attempt, asking the
// fetcher to re-emit priorContent as strict JSON. It is the Executor's
// half of the repair-eligible source path (§4.6); the caller decides
// eligibility (DirectFetch method + source opt-in).
func (e *Executor) Repair(ctx context.Context, url, source, priorContent string, opts Options) (string, *domain.TaskError) {
	prompt := fmt.Sprintf(strictJSONRepairPrompt, priorContent)
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	content, err := e.fetcher.ExecuteDirect(attemptCtx, url, prompt, source)
	if err != nil {
		return "", &domain.TaskError{
			Type: ClassifyError(err), SourceID: source, RetryCount: 0,
			Timestamp: time.Now().UTC(), Message: err.Error(),
		}
	}
	return content, nil
}

func (e *Executor) shapeResult(res attemptResult, source string) (string, *domain.TaskError) {
	if res.err != nil {
		return "", &domain.TaskError{
			Type:       ClassifyError(res.err),
			SourceID:   source,
			RetryCount: res.retryCount,
			Timestamp:  time.Now().UTC(),
			Message:    res.err.Error(),
		}
	}
	return res.content, nil
}

var fencedJSONBlock = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\n(.*?)\\n```")

// ExtractJSON applies a four-rule extraction order to raw content, returning
// the first candidate that parses as a JSON array or as a JSON object with an
// "articles" key.
func ExtractJSON(content string) (any, bool) {
	candidates := fencedBlocks(content, true) // rule 1: ```json blocks
	candidates = append(candidates, fencedBlocks(content, false)...) // rule 2: any fenced block starting {/[
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		candidates = append(candidates, trimmed) // rule 3
	}
	if sub, ok := firstToLastBrace(content); ok {
		candidates = append(candidates, sub) // rule 4
	}

	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err == nil {
			if hasArticles(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func fencedBlocks(content string, jsonOnly bool) []string {
	var out []string
	for _, m := range fencedJSONBlock.FindAllStringSubmatch(content, -1) {
		body := strings.TrimSpace(m[2])
		if jsonOnly {
			if strings.EqualFold(m[1], "json") {
				out = append(out, body)
			}
			continue
		}
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			out = append(out, body)
		}
	}
	return out
}

func firstToLastBrace(content string) (string, bool) {
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return content[first : last+1], true
}

func hasArticles(v any) bool {
	switch t := v.(type) {
	case []any:
		return true
	case map[string]any:
		_, ok := t["articles"]
		return ok
	}
	return false
}

// NormalizeArticles keeps only entries with non-empty title and url, coerces
// missing optional fields to absent, and stamps source/collectedAt.
func NormalizeArticles(parsed any, source string, collectedAt time.Time) []domain.RawArticle {
	var rawEntries []any
	switch t := parsed.(type) {
	case []any:
		rawEntries = t
	case map[string]any:
		if arr, ok := t["articles"].([]any); ok {
			rawEntries = arr
		}
	}

	var out []domain.RawArticle
	for _, entry := range rawEntries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		title, _ := m["title"].(string)
		url, _ := m["url"].(string)
		if title == "" || url == "" {
			continue
		}
		a := domain.RawArticle{
			URL:         url,
			Title:       title,
			Source:      source,
			CollectedAt: collectedAt,
		}
		if s, ok := m["summary"].(string); ok {
			a.Summary = s
		}
		if p, ok := m["publishedAt"].(string); ok {
			a.PublishedAt = p
		}
		if d, ok := m["dateMetaContent"].(string); ok {
			a.DateMetaContent = d
		}
		out = append(out, a)
	}
	return out
}

// Preview returns a whitespace-collapsed prefix of at most 120 characters,
// for diagnostics on an unrecoverable parse failure.
func Preview(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if r := []rune(collapsed); len(r) > 120 {
		return string(r[:120])
	}
	return collapsed
}

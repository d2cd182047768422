// Package collector orchestrates the Fetch Executor across all enabled
// sources under a concurrency bound, ordered by tier.
//
// Grounded on a dependency-injected orchestration idiom (Config/DefaultConfig,
// numbered-step progress reporting) and on golang.org/x/sync/errgroup for
// bounded, all-settled per-tier concurrency.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newsbrief/internal/domain"
	"newsbrief/internal/fetch"
)

const (
	directFetchPrompt = "Fetch the article at the given URL and return its title, summary and publish-date hint as JSON."
	searchPrompt      = "Search for recent articles matching the query and return them as a JSON array of {title,url,summary,publishedAt}."
	twitterPrompt     = "Search the given accounts for recent posts matching the keywords and return them as JSON."
)

// AllocatedQuery is one (source, query) pairing produced upstream by the
// Query Generator's per-source allocation.
type AllocatedQuery struct {
	SourceID string
	Text     string
}

// Input bundles everything the Collector needs for one run.
type Input struct {
	Sources         []domain.SourceConfig
	RateControl     domain.RateControl
	AllocatedQueries map[string][]string // sourceID -> top-N group keywords, space-joined at call site
	DryRun          bool
}

// TierStats aggregates per-tier counts.
type TierStats struct {
	Tier    int
	Success int
	Partial int
	Failed  int
}

// Result is the outcome of one Collector run.
type Result struct {
	Results   []domain.TaskResult
	TierStats []TierStats
}

// Collector runs tasks against the Fetch Executor.
type Collector struct {
	executor *fetch.Executor
}

// NewCollector builds a Collector around the given Fetch Executor.
func NewCollector(executor *fetch.Executor) *Collector {
	return &Collector{executor: executor}
}

// BuildTasks constructs one task per enabled source, dispatching by
// collect method (direct fetch, twitter-like search, or plain search).
func BuildTasks(in Input) []domain.Task {
	var tasks []domain.Task
	for _, src := range in.Sources {
		if !src.Enabled {
			continue
		}
		task := domain.Task{
			ID:             uuid.NewString(),
			SourceID:       src.ID,
			Tier:           src.Tier,
			MaxArticles:    src.MaxArticles,
			RepairEligible: src.RepairEligible,
		}
		switch {
		case src.CollectMethod == domain.CollectDirectFetch:
			task.Method = domain.CollectDirectFetch
			task.URL = src.URL
			task.Prompt = directFetchPrompt
		case isTwitterLike(src):
			task.Method = domain.CollectSearch
			task.Query = twitterQuery(src.Accounts, in.AllocatedQueries[src.ID])
			task.Prompt = twitterPrompt
		default:
			task.Method = domain.CollectSearch
			keywords := strings.Join(in.AllocatedQueries[src.ID], " ")
			task.Query = strings.TrimSpace(src.Query + " " + keywords)
			task.Prompt = searchPrompt
		}
		tasks = append(tasks, task)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Tier < tasks[j].Tier })
	return tasks
}

func isTwitterLike(src domain.SourceConfig) bool {
	return src.CollectMethod == domain.CollectSearch && len(src.Accounts) > 0
}

func twitterQuery(accounts, keywords []string) string {
	var fromClauses []string
	for _, a := range accounts {
		fromClauses = append(fromClauses, "from:@"+a)
	}
	fromPart := "(" + strings.Join(fromClauses, " OR ") + ")"
	var kwPart string
	if len(keywords) > 0 {
		kwPart = " (" + strings.Join(keywords, " OR ") + ")"
	}
	return fromPart + kwPart
}

// rateControlFor resolves the effective timeout/retry/retries for a source.
func rateControlFor(rc domain.RateControl, sourceID string, tier int) fetch.Options {
	opts := fetch.Options{
		Timeout:       rc.DefaultTimeout,
		RetryInterval: rc.DefaultRetryInterval,
		MaxRetries:    rc.DefaultMaxRetries,
		Tier:          tier,
	}
	if override, ok := rc.PerSource[sourceID]; ok {
		if override.Timeout > 0 {
			opts.Timeout = override.Timeout
		}
		if override.RetryInterval > 0 {
			opts.RetryInterval = override.RetryInterval
		}
		if override.MaxRetries > 0 {
			opts.MaxRetries = override.MaxRetries
		}
	}
	return opts
}

// Run executes tasks tier-by-tier (tier 1 fully, then tier 2, then tier 3),
// with a per-tier concurrency bound and all-settled semantics.
func (c *Collector) Run(ctx context.Context, in Input) (*Result, error) {
	tasks := BuildTasks(in)
	if in.DryRun {
		return &Result{Results: taskResultsDryRun(tasks)}, nil
	}

	byTier := map[int][]domain.Task{}
	for _, t := range tasks {
		byTier[t.Tier] = append(byTier[t.Tier], t)
	}

	var allResults []domain.TaskResult
	var tierStats []TierStats
	for _, tier := range []int{1, 2, 3} {
		tierTasks := byTier[tier]
		if len(tierTasks) == 0 {
			continue
		}
		results := c.runTier(ctx, tierTasks, in.RateControl)
		allResults = append(allResults, results...)
		tierStats = append(tierStats, summarizeTier(tier, results))
	}

	return &Result{Results: allResults, TierStats: tierStats}, nil
}

func taskResultsDryRun(tasks []domain.Task) []domain.TaskResult {
	out := make([]domain.TaskResult, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, domain.TaskResult{Task: t})
	}
	return out
}

func (c *Collector) runTier(ctx context.Context, tasks []domain.Task, rc domain.RateControl) []domain.TaskResult {
	results := make([]domain.TaskResult, len(tasks))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if rc.MaxConcurrency > 0 {
		g.SetLimit(rc.MaxConcurrency)
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			res := c.runTask(gctx, task, rc)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil // all-settled: never propagate a task failure to siblings
		})
	}
	_ = g.Wait()
	return results
}

func (c *Collector) runTask(ctx context.Context, task domain.Task, rc domain.RateControl) domain.TaskResult {
	opts := rateControlFor(rc, task.SourceID, task.Tier)
	var content string
	var taskErr *domain.TaskError
	if task.Method == domain.CollectDirectFetch {
		content, taskErr = c.executor.ExecuteDirect(ctx, task.URL, task.Prompt, task.SourceID, opts)
	} else {
		content, taskErr = c.executor.ExecuteSearch(ctx, task.Query, task.Prompt, task.SourceID, opts)
	}

	if taskErr != nil {
		return domain.TaskResult{Task: task, Status: domain.StatusFailed, Err: taskErr, RawPreview: fetch.Preview(content)}
	}

	parsed, ok := fetch.ExtractJSON(content)
	if ok {
		articles := fetch.NormalizeArticles(parsed, task.SourceID, time.Now().UTC())
		if len(articles) > 0 {
			return domain.TaskResult{Task: task, Status: domain.StatusSuccess, Articles: articles}
		}
		return domain.TaskResult{Task: task, Status: domain.StatusFailed}
	}

	parseErr := &domain.TaskError{
		Type: domain.ErrorParse, SourceID: task.SourceID, Timestamp: time.Now().UTC(),
		Message: "unable to locate a JSON articles payload in fetch response",
	}

	// Strict-JSON repair: one additional DirectFetch attempt, only for
	// repair-eligible sources fetched via DirectFetch.
	if task.Method == domain.CollectDirectFetch && task.RepairEligible {
		repaired, repairErr := c.executor.Repair(ctx, task.URL, task.SourceID, content, opts)
		if repairErr == nil {
			if rparsed, rok := fetch.ExtractJSON(repaired); rok {
				articles := fetch.NormalizeArticles(rparsed, task.SourceID, time.Now().UTC())
				if len(articles) > 0 {
					// A parse error surfaced before repair recovered articles: partial, not success.
					return domain.TaskResult{Task: task, Status: domain.StatusPartial, Articles: articles, Err: parseErr, RawPreview: fetch.Preview(repaired)}
				}
			}
			content = repaired
		}
	}

	return domain.TaskResult{Task: task, Status: domain.StatusFailed, Err: parseErr, RawPreview: fetch.Preview(content)}
}

func summarizeTier(tier int, results []domain.TaskResult) TierStats {
	stats := TierStats{Tier: tier}
	for _, r := range results {
		switch r.Status {
		case domain.StatusSuccess:
			stats.Success++
		case domain.StatusPartial:
			stats.Partial++
		default:
			stats.Failed++
		}
	}
	return stats
}

// IsAbortHeavy reports whether a TaskError indicates an abort-heavy source:
// retryCount >= 1 and the message contains an abort-style phrase.
func IsAbortHeavy(err *domain.TaskError) bool {
	if err == nil || err.RetryCount < 1 {
		return false
	}
	msg := strings.ToLower(err.Message)
	phrases := []string{"aborted by user", "process aborted", "operation aborted"}
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// AbortHeavySources returns the set of source IDs whose result was
// abort-heavy, for the Orchestrator's auto-disable pass.
func AbortHeavySources(results []domain.TaskResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range results {
		if IsAbortHeavy(r.Err) && !seen[r.Task.SourceID] {
			seen[r.Task.SourceID] = true
			out = append(out, r.Task.SourceID)
		}
	}
	return out
}

// FormatDryRun renders tasks for human inspection in dry-run mode.
func FormatDryRun(tasks []domain.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "tier=%d source=%s method=%s url=%q query=%q\n", t.Tier, t.SourceID, t.Method, t.URL, t.Query)
	}
	return b.String()
}

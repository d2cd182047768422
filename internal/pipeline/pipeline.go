// Package pipeline implements the Orchestrator: a single-invocation flow
// running Collect -> auto-disable -> Deduplicate -> hand-off.
//
// Grounded on a single linear orchestration-function idiom with numbered
// progress logging and a top-level method that wires config load -> collect
// -> transform -> persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsbrief/internal/collector"
	"newsbrief/internal/dedup"
	"newsbrief/internal/domain"
	"newsbrief/internal/fetch"
	"newsbrief/internal/historystore"
	"newsbrief/internal/logger"
	"newsbrief/internal/querygen"
	"newsbrief/internal/urlnorm"
)

// Options mirrors the CLI surface a run invocation must honour.
type Options struct {
	DryRun        bool
	Verbose       bool
	Simple        bool
	Date          *time.Time // override "today"
	NoAutoDisable bool
	NoRerun       bool
}

// LastSuccessStore persists the lastSuccessAt marker.
type LastSuccessStore interface {
	Load() (*time.Time, error)
	Save(t time.Time) error
}

// SourceConfigStore loads and persists SourceConfig, supporting the
// auto-disable pass's single in-run mutation.
type SourceConfigStore interface {
	Load() ([]domain.SourceConfig, domain.RateControl, error)
	DisableSources(ids []string) error
}

// Renderer is the out-of-scope hand-off boundary: the core calls it once
// dedup completes and does not concern itself with its output format.
type Renderer interface {
	Render(ctx context.Context, articles []domain.FilteredArticle, collectStats []collector.TierStats, dedupStats dedup.Stats, statuses []domain.TaskResult) error
}

// Orchestrator wires the whole collection+deduplication run together.
type Orchestrator struct {
	sourceStore SourceConfigStore
	lastSuccess LastSuccessStore
	history     *historystore.Store
	fetcher     fetch.Fetcher
	renderer    Renderer
	thresholds  domain.DedupThresholds
	queryCfg    querygen.Config
	urlOpts     urlnorm.Options
	retentionDays int
}

// New builds an Orchestrator from its dependencies.
func New(sourceStore SourceConfigStore, lastSuccess LastSuccessStore, history *historystore.Store,
	fetcher fetch.Fetcher, renderer Renderer, thresholds domain.DedupThresholds, queryCfg querygen.Config,
	urlOpts urlnorm.Options, retentionDays int) *Orchestrator {
	return &Orchestrator{
		sourceStore: sourceStore, lastSuccess: lastSuccess, history: history,
		fetcher: fetcher, renderer: renderer, thresholds: thresholds, queryCfg: queryCfg,
		urlOpts: urlOpts, retentionDays: retentionDays,
	}
}

// RunResult summarises one orchestrator invocation.
type RunResult struct {
	DedupStats     dedup.Stats
	CollectStats   []collector.TierStats
	RanSecondPass  bool
	DisabledSources []string
}

// Run executes the full single-invocation collect/dedup/hand-off flow.
// Exit code 0 is logical success even with tier-3 losses; only fatal
// config/history errors should cause the caller to exit non-zero.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	log := logger.Get()

	// Step 1: load configs + lastSuccessAt.
	sources, rateControl, err := o.sourceStore.Load()
	if err != nil {
		return nil, fmt.Errorf("pipeline: load source config: %w", err)
	}
	lastSuccessAt, err := o.lastSuccess.Load()
	if err != nil {
		return nil, fmt.Errorf("pipeline: load last success marker: %w", err)
	}

	now := time.Now().UTC()
	if opts.Date != nil {
		now = opts.Date.UTC()
	}

	// Step 2: generate queries.
	allocated := allocateQueries(o.queryCfg, sources)

	// Step 3/4: build Collector, run (or dry-run).
	executor := fetch.NewExecutor(o.fetcher)
	coll := collector.NewCollector(executor)
	collectInput := collector.Input{
		Sources: sources, RateControl: rateControl, AllocatedQueries: allocated, DryRun: opts.DryRun,
	}

	if opts.DryRun {
		tasks := collector.BuildTasks(collectInput)
		fmt.Print(collector.FormatDryRun(tasks))
		return &RunResult{}, nil
	}

	log.Info("collection starting", slog.Int("sourceCount", len(sources)))
	collectResult, err := coll.Run(ctx, collectInput)
	if err != nil {
		return nil, fmt.Errorf("pipeline: collect: %w", err)
	}

	// Step 5: auto-disable pass.
	ranSecondPass := false
	abortHeavy := collector.AbortHeavySources(collectResult.Results)
	if !opts.NoAutoDisable && len(abortHeavy) > 0 {
		log.Warn("disabling abort-heavy sources", slog.Any("sources", abortHeavy))
		if err := o.sourceStore.DisableSources(abortHeavy); err != nil {
			return nil, fmt.Errorf("pipeline: disable sources: %w", err)
		}
		if !opts.NoRerun {
			sources, rateControl, err = o.sourceStore.Load()
			if err != nil {
				return nil, fmt.Errorf("pipeline: reload source config: %w", err)
			}
			allocated = allocateQueries(o.queryCfg, sources)
			collectInput = collector.Input{Sources: sources, RateControl: rateControl, AllocatedQueries: allocated}
			collectResult, err = coll.Run(ctx, collectInput)
			if err != nil {
				return nil, fmt.Errorf("pipeline: re-run collect: %w", err)
			}
			ranSecondPass = true
		}
	}

	// Step 6: run Deduplicator.
	var rawArticles []domain.RawArticle
	for _, r := range collectResult.Results {
		rawArticles = append(rawArticles, r.Articles...)
	}
	sourcesByID := map[string]domain.SourceConfig{}
	for _, s := range sources {
		sourcesByID[s.ID] = s
	}
	dd := dedup.NewDeduplicator(o.history)
	dedupResult, err := dd.Run(dedup.Input{
		Articles: rawArticles, Sources: sourcesByID, Thresholds: o.thresholds,
		URLNormOptions: o.urlOpts, LastSuccessAt: lastSuccessAt, Now: now,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: deduplicate: %w", err) // history store errors are fatal
	}

	// Step 7: hand off to renderer (out of scope internals).
	if o.renderer != nil && !opts.Simple {
		if err := o.renderer.Render(ctx, dedupResult.Articles, collectResult.TierStats, dedupResult.Stats, collectResult.Results); err != nil {
			return nil, fmt.Errorf("pipeline: render: %w", err)
		}
	}

	// Step 8: persist lastSuccessAt on success.
	if err := o.lastSuccess.Save(now); err != nil {
		return nil, fmt.Errorf("pipeline: save last success marker: %w", err)
	}

	// Step 9: purge beyond retention.
	if _, err := o.history.Cleanup(nil, o.retentionDays); err != nil {
		return nil, fmt.Errorf("pipeline: cleanup history: %w", err)
	}

	log.Info("run complete",
		slog.Int("fresh", dedupResult.Stats.FreshCount),
		slog.Bool("ranSecondPass", ranSecondPass))

	return &RunResult{
		DedupStats: dedupResult.Stats, CollectStats: collectResult.TierStats,
		RanSecondPass: ranSecondPass, DisabledSources: abortHeavy,
	}, nil
}

// Close releases the History Store handle, per step 10 of the orchestrator flow.
func (o *Orchestrator) Close() error {
	return o.history.Close()
}

func allocateQueries(cfg querygen.Config, sources []domain.SourceConfig) map[string][]string {
	queries := querygen.Generate(cfg)
	selected := querygen.AllocatePerSource(queries, cfg.MaxPerSource)
	out := map[string][]string{}
	for _, src := range sources {
		if src.CollectMethod != domain.CollectSearch {
			continue
		}
		var kws []string
		for _, q := range selected {
			kws = append(kws, q.Text)
		}
		out[src.ID] = kws
	}
	return out
}

/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/fetch"
	"newsbrief/internal/historystore"
	"newsbrief/internal/logger"
	"newsbrief/internal/pipeline"
	"newsbrief/internal/querygen"
	"newsbrief/internal/urlnorm"
)

var cfgDir string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "newsbrief",
	Short: "newsbrief collects, deduplicates and freshness-classifies technical news",
	Long: `newsbrief runs the daily collection+deduplication pipeline: it fans out
fetch tasks across configured sources, deduplicates against running history
using URL normalisation and title similarity, classifies freshness, and hands
the surviving articles off to a renderer.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "config", "configuration directory")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collection+deduplication pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		verbose, _ := cmd.Flags().GetBool("verbose")
		simple, _ := cmd.Flags().GetBool("simple")
		dateStr, _ := cmd.Flags().GetString("date")
		noAutoDisable, _ := cmd.Flags().GetBool("no-auto-disable")
		noRerun, _ := cmd.Flags().GetBool("no-rerun")

		opts := pipeline.Options{
			DryRun:        dryRun,
			Verbose:       verbose,
			Simple:        simple,
			NoAutoDisable: noAutoDisable,
			NoRerun:       noRerun,
		}
		if dateStr != "" {
			d, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", dateStr, err)
			}
			opts.Date = &d
		}

		return runPipeline(cmd.Context(), opts)
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "build and print fetch tasks without contacting any fetcher")
	runCmd.Flags().Bool("verbose", false, "accepted but does not change log output; the log level is set by NEWSBRIEF_LOG_LEVEL")
	runCmd.Flags().Bool("simple", false, "skip the render hand-off")
	runCmd.Flags().String("date", "", "override today's date (YYYY-MM-DD), for catch-up runs")
	runCmd.Flags().Bool("no-auto-disable", false, "disable the abort-heavy source auto-disable pass")
	runCmd.Flags().Bool("no-rerun", false, "skip the single re-run after auto-disabling sources")
}

func runPipeline(ctx context.Context, opts pipeline.Options) error {
	logger.Init()
	log := logger.Get()

	if err := config.EnsureConfigDir(cfgDir); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	set, err := config.Load(cfgDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	history, err := historystore.Open(set.App.History.Path)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	fetcher, err := fetch.NewFetcherFactory().CreateFetcher(ctx, fetch.ProviderType(set.App.Agent.Provider), map[string]string{
		"api_key": set.App.Agent.APIKey,
		"model":   set.App.Agent.Model,
	})
	if err != nil {
		history.Close()
		return fmt.Errorf("create fetcher: %w", err)
	}

	sourceStore := config.NewFileSourceStore(cfgDir)
	lastSuccessStore := config.NewFileLastSuccessStore(set.App.OutputDir)

	queryCfg := buildQueryConfig(set, history)
	removeParams := map[string]bool{}
	for _, p := range set.App.URLNorm.RemoveParams {
		removeParams[strings.ToLower(p)] = true
	}
	urlOpts := urlnorm.Options{
		RemoveParams:       removeParams,
		StripTrailingSlash: set.App.URLNorm.StripTrailingSlash,
	}

	orch := pipeline.New(
		sourceStore,
		lastSuccessStore,
		history,
		fetcher,
		nil, // renderer hand-off is out of scope for this binary
		domain.DedupThresholds(set.Dedup),
		queryCfg,
		urlOpts,
		set.App.History.RetentionDays,
	)
	defer orch.Close()

	log.Info("starting run", "dryRun", opts.DryRun, "simple", opts.Simple)
	result, err := orch.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}
	if !opts.DryRun {
		log.Info("run finished",
			"fresh", result.DedupStats.FreshCount,
			"ranSecondPass", result.RanSecondPass,
			"disabledSources", result.DisabledSources,
		)
	}
	return nil
}

// buildQueryConfig assembles the search-query generation config from the
// loaded queries.yaml / tag-synonyms.yaml files plus recent/all-time title
// corpora pulled from history for recency/frequency weighting.
func buildQueryConfig(set *config.Set, history *historystore.Store) querygen.Config {
	var groups []querygen.Group
	for _, g := range set.Queries.QueryGroups {
		groups = append(groups, querygen.Group{ID: g.ID, Name: g.Name, Keywords: g.Keywords, Weight: g.Weight})
	}

	now := time.Now().UTC()
	recent, _ := history.FindByDateRange(now.Add(-7*24*time.Hour), &now)
	allTime, _ := history.FindByDateRange(now.Add(-365*24*time.Hour), &now)

	return querygen.Config{
		Groups:                 groups,
		RecentTitles:           titlesOf(recent),
		AllTimeTitles:          titlesOf(allTime),
		CombinedQueriesEnabled: set.Queries.CombinedQueries.Enabled,
		MaxCombinations:        set.Queries.CombinedQueries.MaxCombinations,
		TopN:                   set.Queries.Selection.TopN,
		MaxPerSource:           set.Queries.Selection.MaxPerSource,
		Synonyms:               querygen.NewTagSynonyms(set.Tags),
	}
}

func titlesOf(entries []domain.HistoryEntry) []string {
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	return titles
}

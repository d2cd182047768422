// Package config loads the five structured configuration files (sources,
// queries, tag-synonyms, dedup-thresholds, app).
//
// Built on viper: AddConfigPath/SetConfigName/SetConfigType, AutomaticEnv
// with an env-key replacer, godotenv for .env loading, mapstructure-tagged
// nested structs unmarshalled via viper.Unmarshal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"newsbrief/internal/domain"
)

// SourcesFile is the parsed sources.yaml.
type SourcesFile struct {
	Sources     []domain.SourceConfig `mapstructure:"sources" yaml:"sources"`
	RateControl domain.RateControl    `mapstructure:"rateControl" yaml:"rateControl"`
}

// QueryGroup mirrors querygen.Group with mapstructure tags for file loading.
type QueryGroup struct {
	ID       string   `mapstructure:"id"`
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
	Weight   float64  `mapstructure:"weight"`
}

// QueriesFile is the parsed queries.yaml.
type QueriesFile struct {
	QueryGroups     []QueryGroup `mapstructure:"queryGroups"`
	CombinedQueries struct {
		Enabled         bool `mapstructure:"enabled"`
		MaxCombinations int  `mapstructure:"maxCombinations"`
	} `mapstructure:"combinedQueries"`
	DateRestriction struct {
		Enabled    bool `mapstructure:"enabled"`
		WithinDays int  `mapstructure:"withinDays"`
	} `mapstructure:"dateRestriction"`
	Selection struct {
		TopN         int `mapstructure:"topN"`
		MaxPerSource int `mapstructure:"maxPerSource"`
	} `mapstructure:"selection"`
}

// TagSynonymsFile is the parsed tag-synonyms.yaml: canonicalTag -> synonyms.
type TagSynonymsFile map[string][]string

// DedupThresholdsFile is the parsed dedup-thresholds.yaml.
type DedupThresholdsFile domain.DedupThresholds

// HistorySettings configures the History Store file.
type HistorySettings struct {
	Type          string `mapstructure:"type"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retentionDays"`
}

// URLNormSettings configures the URL Normaliser.
type URLNormSettings struct {
	RemoveParams       []string `mapstructure:"removeParams"`
	StripTrailingSlash bool     `mapstructure:"stripTrailingSlash"`
}

// AgentSettings configures the Fetcher boundary implementation.
type AgentSettings struct {
	Provider string            `mapstructure:"provider"` // "gemini" or "mock"
	APIKey   string            `mapstructure:"apiKey"`
	Model    string            `mapstructure:"model"`
	Extra    map[string]string `mapstructure:"extra"`
}

// AppFile is the parsed app.yaml.
type AppFile struct {
	Agent     AgentSettings   `mapstructure:"agent"`
	URLNorm   URLNormSettings `mapstructure:"urlNormalisation"`
	History   HistorySettings `mapstructure:"history"`
	OutputDir string          `mapstructure:"outputDir"`
	LogLevel  string          `mapstructure:"logLevel"`
}

// Set bundles all five loaded configuration files.
type Set struct {
	Sources SourcesFile
	Queries QueriesFile
	Tags    TagSynonymsFile
	Dedup   DedupThresholdsFile
	App     AppFile
}

// Load reads .env (if present) then loads all five config files from
// configDir, applying NEWSBRIEF_-prefixed environment overrides.
func Load(configDir string) (*Set, error) {
	_ = godotenv.Load()

	set := &Set{}

	if err := loadFile(configDir, "sources", &set.Sources); err != nil {
		return nil, err
	}
	if err := loadFile(configDir, "queries", &set.Queries); err != nil {
		return nil, err
	}
	if err := loadFile(configDir, "tag-synonyms", &set.Tags); err != nil {
		return nil, err
	}
	if err := loadFile(configDir, "dedup-thresholds", &set.Dedup); err != nil {
		return nil, err
	}
	if err := loadFile(configDir, "app", &set.App); err != nil {
		return nil, err
	}

	applyAppDefaults(&set.App)
	return set, nil
}

func loadFile(configDir, name string, out any) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("NEWSBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: read %s: %w", name, err)
		}
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: unmarshal %s: %w", name, err)
	}
	return nil
}

func applyAppDefaults(app *AppFile) {
	if app.History.RetentionDays == 0 {
		app.History.RetentionDays = 90
	}
	if app.History.Path == "" {
		app.History.Path = filepath.Join("data", "history.db")
	}
	if app.Agent.Provider == "" {
		app.Agent.Provider = "mock"
	}
}

// EnsureConfigDir creates configDir if it does not already exist.
func EnsureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"newsbrief/internal/domain"
)

// FileSourceStore loads sources.yaml and persists the one in-run "disable"
// mutation the auto-disable pass performs.
type FileSourceStore struct {
	path string
}

// NewFileSourceStore points at configDir/sources.yaml.
func NewFileSourceStore(configDir string) *FileSourceStore {
	return &FileSourceStore{path: filepath.Join(configDir, "sources.yaml")}
}

// Load reads and parses sources.yaml into SourceConfig + RateControl.
func (f *FileSourceStore) Load() ([]domain.SourceConfig, domain.RateControl, error) {
	var sf SourcesFile
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.RateControl{}, nil
		}
		return nil, domain.RateControl{}, fmt.Errorf("config: read sources.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, domain.RateControl{}, fmt.Errorf("config: parse sources.yaml: %w", err)
	}
	return sf.Sources, sf.RateControl, nil
}

// DisableSources sets enabled=false for the given source ids and rewrites
// sources.yaml in place.
func (f *FileSourceStore) DisableSources(ids []string) error {
	sources, rateControl, err := f.Load()
	if err != nil {
		return err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for i := range sources {
		if want[sources[i].ID] {
			sources[i].Enabled = false
		}
	}
	out := SourcesFile{Sources: sources, RateControl: rateControl}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("config: marshal sources.yaml: %w", err)
	}
	return os.WriteFile(f.path, data, 0o644)
}

// FileLastSuccessStore persists last_success.json ({lastSuccessAt: ISO}).
type FileLastSuccessStore struct {
	path string
}

// NewFileLastSuccessStore points at outputDir/last_success.json.
func NewFileLastSuccessStore(outputDir string) *FileLastSuccessStore {
	return &FileLastSuccessStore{path: filepath.Join(outputDir, "last_success.json")}
}

type lastSuccessDoc struct {
	LastSuccessAt string `json:"lastSuccessAt"`
}

// Load returns the persisted lastSuccessAt, or nil if the file is absent.
func (f *FileLastSuccessStore) Load() (*time.Time, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read last_success.json: %w", err)
	}
	var doc lastSuccessDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse last_success.json: %w", err)
	}
	t, err := time.Parse(time.RFC3339, doc.LastSuccessAt)
	if err != nil {
		return nil, fmt.Errorf("config: parse lastSuccessAt: %w", err)
	}
	return &t, nil
}

// Save writes lastSuccessAt to disk as ISO-8601.
func (f *FileLastSuccessStore) Save(t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("config: create output dir: %w", err)
	}
	doc := lastSuccessDoc{LastSuccessAt: t.UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal last_success.json: %w", err)
	}
	return os.WriteFile(f.path, data, 0o644)
}

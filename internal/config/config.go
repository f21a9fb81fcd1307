package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ScholarSnippets/internal/domain"
)

const (
	configPathEnv = "SCHOLAR_SNIPPETS_CONFIG"
	mailtoEnv     = "OPENALEX_MAILTO"
	baseURLEnv    = "OPENALEX_BASE_URL"
	logLevelEnv   = "SCHOLAR_SNIPPETS_LOG_LEVEL"

	maxConcurrency = 8
	maxPerPage     = 200
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging        LoggingConfig        `yaml:"logging"`
	OpenAlex       OpenAlexConfig       `yaml:"openalex"`
	Input          InputConfig          `yaml:"input"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Classification ClassificationConfig `yaml:"classification"`
	Output         OutputConfig         `yaml:"output"`
}

// LoggingConfig selects verbosity and handler format (text, json or auto).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAlexConfig describes how to reach the metadata service.
type OpenAlexConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	Mailto            string        `yaml:"mailto"`
	PerPage           int           `yaml:"perPage"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	RetryAttempts     int           `yaml:"retryAttempts"`
	MaxRetryAfter     time.Duration `yaml:"maxRetryAfter"`
}

// InputConfig points at the roster and the filter profile directory.
type InputConfig struct {
	Members    string `yaml:"members"`
	FiltersDir string `yaml:"filtersDir"`
}

// PipelineConfig tunes the orchestration run.
type PipelineConfig struct {
	Source      string `yaml:"source"`
	MaxResults  int    `yaml:"maxResults"`
	Concurrency int    `yaml:"concurrency"`
}

// ClassificationConfig overrides the heuristic keyword lists.
type ClassificationConfig struct {
	ForcedConferenceVenues []string `yaml:"forcedConferenceVenues"`
	ConferenceKeywords     []string `yaml:"conferenceKeywords"`
	BookKeywords           []string `yaml:"bookKeywords"`
	DefaultCategory        string   `yaml:"defaultCategory"`
}

// OutputConfig controls where snippets go and how they look.
type OutputConfig struct {
	Dir          string        `yaml:"dir"`
	MaxItems     int           `yaml:"maxItems"`
	MaxExcluded  int           `yaml:"maxExcluded"`
	ExcludedFile string        `yaml:"excludedFile"`
	Journals     SectionConfig `yaml:"journals"`
	Conferences  SectionConfig `yaml:"conferences"`
	Books        SectionConfig `yaml:"books"`
}

// SectionConfig describes one category snippet.
type SectionConfig struct {
	File      string `yaml:"file"`
	Title     string `yaml:"title"`
	HeroImage string `yaml:"heroImage"`
	Intro     string `yaml:"intro"`
}

// Load reads YAML configuration (if any) over the defaults and applies
// environment overrides. An explicit path wins over SCHOLAR_SNIPPETS_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &domain.ConfigurationError{Source: path, Msg: "read config", Err: err}
		}
		fileCfg, err := Parse(raw)
		if err != nil {
			return Config{}, &domain.ConfigurationError{Source: path, Msg: "parse config", Err: err}
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Parse decodes a YAML document, rejecting unknown keys.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(mailtoEnv); v != "" {
		c.OpenAlex.Mailto = v
	}

	if v := os.Getenv(baseURLEnv); v != "" {
		c.OpenAlex.BaseURL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "auto":
	default:
		return domain.Configurationf("config", "logging.format must be text, json or auto, got %q", c.Logging.Format)
	}
	if c.OpenAlex.BaseURL == "" {
		return domain.Configurationf("config", "openalex.baseUrl is required")
	}
	if c.OpenAlex.PerPage < 1 || c.OpenAlex.PerPage > maxPerPage {
		return domain.Configurationf("config", "openalex.perPage must be within [1,%d], got %d", maxPerPage, c.OpenAlex.PerPage)
	}
	if c.OpenAlex.RequestsPerSecond < 0 {
		return domain.Configurationf("config", "openalex.requestsPerSecond must not be negative")
	}
	if c.OpenAlex.RetryAttempts < 1 {
		return domain.Configurationf("config", "openalex.retryAttempts must be at least 1, got %d", c.OpenAlex.RetryAttempts)
	}
	if c.Pipeline.MaxResults < 0 {
		return domain.Configurationf("config", "pipeline.maxResults must not be negative")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > maxConcurrency {
		return domain.Configurationf("config", "pipeline.concurrency must be within [1,%d], got %d", maxConcurrency, c.Pipeline.Concurrency)
	}
	if _, err := domain.ParseCategory(c.Classification.DefaultCategory); err != nil {
		return &domain.ConfigurationError{Source: "config", Msg: "classification.defaultCategory", Err: err}
	}
	if c.Output.MaxItems < 1 || c.Output.MaxExcluded < 1 {
		return domain.Configurationf("config", "output.maxItems and output.maxExcluded must be positive")
	}
	if c.Input.Members == "" || c.Input.FiltersDir == "" {
		return domain.Configurationf("config", "input.members and input.filtersDir are required")
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.OpenAlex.BaseURL != "" {
		base.OpenAlex.BaseURL = override.OpenAlex.BaseURL
	}
	if override.OpenAlex.Mailto != "" {
		base.OpenAlex.Mailto = override.OpenAlex.Mailto
	}
	if override.OpenAlex.PerPage != 0 {
		base.OpenAlex.PerPage = override.OpenAlex.PerPage
	}
	if override.OpenAlex.Timeout != 0 {
		base.OpenAlex.Timeout = override.OpenAlex.Timeout
	}
	if override.OpenAlex.RequestsPerSecond != 0 {
		base.OpenAlex.RequestsPerSecond = override.OpenAlex.RequestsPerSecond
	}
	if override.OpenAlex.RetryAttempts != 0 {
		base.OpenAlex.RetryAttempts = override.OpenAlex.RetryAttempts
	}
	if override.OpenAlex.MaxRetryAfter != 0 {
		base.OpenAlex.MaxRetryAfter = override.OpenAlex.MaxRetryAfter
	}

	if override.Input.Members != "" {
		base.Input.Members = override.Input.Members
	}
	if override.Input.FiltersDir != "" {
		base.Input.FiltersDir = override.Input.FiltersDir
	}

	if override.Pipeline.Source != "" {
		base.Pipeline.Source = override.Pipeline.Source
	}
	if override.Pipeline.MaxResults != 0 {
		base.Pipeline.MaxResults = override.Pipeline.MaxResults
	}
	if override.Pipeline.Concurrency != 0 {
		base.Pipeline.Concurrency = override.Pipeline.Concurrency
	}

	if override.Classification.ForcedConferenceVenues != nil {
		base.Classification.ForcedConferenceVenues = override.Classification.ForcedConferenceVenues
	}
	if override.Classification.ConferenceKeywords != nil {
		base.Classification.ConferenceKeywords = override.Classification.ConferenceKeywords
	}
	if override.Classification.BookKeywords != nil {
		base.Classification.BookKeywords = override.Classification.BookKeywords
	}
	if override.Classification.DefaultCategory != "" {
		base.Classification.DefaultCategory = override.Classification.DefaultCategory
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if override.Output.MaxItems != 0 {
		base.Output.MaxItems = override.Output.MaxItems
	}
	if override.Output.MaxExcluded != 0 {
		base.Output.MaxExcluded = override.Output.MaxExcluded
	}
	if override.Output.ExcludedFile != "" {
		base.Output.ExcludedFile = override.Output.ExcludedFile
	}
	base.Output.Journals = mergeSection(base.Output.Journals, override.Output.Journals)
	base.Output.Conferences = mergeSection(base.Output.Conferences, override.Output.Conferences)
	base.Output.Books = mergeSection(base.Output.Books, override.Output.Books)

	return base
}

func mergeSection(base, override SectionConfig) SectionConfig {
	if override.File != "" {
		base.File = override.File
	}
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.HeroImage != "" {
		base.HeroImage = override.HeroImage
	}
	if override.Intro != "" {
		base.Intro = override.Intro
	}
	return base
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		OpenAlex: OpenAlexConfig{
			BaseURL:           "https://api.openalex.org",
			PerPage:           200,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 8,
			RetryAttempts:     4,
			MaxRetryAfter:     2 * time.Minute,
		},
		Input: InputConfig{Members: "orcid_members.csv", FiltersDir: "filters"},
		Pipeline: PipelineConfig{
			Source:      "openalex",
			MaxResults:  0,
			Concurrency: 1,
		},
		Classification: ClassificationConfig{
			ForcedConferenceVenues: []string{"egu", "european geosciences union", "general assembly"},
			ConferenceKeywords:     []string{"proceedings", "conference", "workshop", "symposium", "congress", "abstracts"},
			BookKeywords:           []string{"chapter", "handbook", "book"},
			DefaultCategory:        "journal",
		},
		Output: OutputConfig{
			Dir:          ".",
			MaxItems:     120,
			MaxExcluded:  300,
			ExcludedFile: "excluded.html",
			Journals: SectionConfig{
				File:      "snippet_journals.html",
				Title:     "Articoli",
				HeroImage: "/sites/st02/files/pubblicazioni-big.jpg",
				Intro:     "Articoli su riviste internazionali indicizzati su SCOPUS e/o WoS.",
			},
			Conferences: SectionConfig{
				File:      "snippet_conferences.html",
				Title:     "Conferenze",
				HeroImage: "/sites/st02/files/conferenze-big.jpg",
				Intro:     "Lavori presentati a conferenze nazionali e internazionali (incluse EGU).",
			},
			Books: SectionConfig{
				File:      "snippet_books.html",
				Title:     "Libri e capitoli di libri",
				HeroImage: "/sites/st02/files/libri-bg.jpg",
				Intro:     "Libri, capitoli e contributi editoriali associati ai membri del laboratorio.",
			},
		},
	}
}

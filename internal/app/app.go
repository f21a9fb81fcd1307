package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"ScholarSnippets/internal/classify"
	"ScholarSnippets/internal/config"
	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/filter"
	"ScholarSnippets/internal/infrastructure/openalex"
	"ScholarSnippets/internal/infrastructure/render"
	"ScholarSnippets/internal/logging"
	"ScholarSnippets/internal/roster"
	"ScholarSnippets/internal/source"
	"ScholarSnippets/internal/usecase"
)

// Inputs are the validated roster and filter profiles of a run.
type Inputs struct {
	Roster   []domain.RosterEntry
	Profiles map[string]*domain.FilterProfile
}

// Report summarizes a finished run.
type Report struct {
	RunID  string
	Output domain.AggregatedOutput
	Files  []string
}

// Application wires configs to use cases.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	runID    string
	pipeline *usecase.Pipeline
	writer   *render.Writer
}

// Option customizes how the application is assembled.
type Option func(*settings)

type settings struct {
	httpClient *http.Client
	registry   *source.Registry
}

// WithHTTPClient sets the HTTP client used by the OpenAlex provider.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.httpClient = client }
}

// WithRegistry replaces the provider registry, e.g. to add another source.
func WithRegistry(registry *source.Registry) Option {
	return func(s *settings) { s.registry = registry }
}

// New builds a runnable application instance. Every run gets its own id,
// attached to all log records.
func New(cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	}

	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	runID := uuid.NewString()
	logger := baseLogger.With("run_id", runID)

	registry := s.registry
	if registry == nil {
		registry = source.NewRegistry()
	}
	if _, err := registry.Resolve(openalex.ProviderName); err != nil {
		registry.Register(openalex.NewClient(openalex.Config{
			BaseURL:           cfg.OpenAlex.BaseURL,
			Mailto:            cfg.OpenAlex.Mailto,
			PerPage:           cfg.OpenAlex.PerPage,
			Timeout:           cfg.OpenAlex.Timeout,
			RequestsPerSecond: cfg.OpenAlex.RequestsPerSecond,
		},
			openalex.WithHTTPClient(s.httpClient),
			openalex.WithRetryMaxAttempts(cfg.OpenAlex.RetryAttempts),
			openalex.WithMaxRetryAfter(cfg.OpenAlex.MaxRetryAfter),
			openalex.WithLogger(logger.With("component", "source.openalex")),
		))
	}

	provider, err := registry.Resolve(cfg.Pipeline.Source)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: "config", Msg: "pipeline.source", Err: err}
	}

	policy, err := classificationPolicy(cfg.Classification)
	if err != nil {
		return nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      provider,
		Classifier:  classify.New(policy),
		Logger:      logger.With("component", "pipeline"),
		Concurrency: cfg.Pipeline.Concurrency,
	})

	renderer, err := render.NewRenderer(renderOptions(cfg.Output))
	if err != nil {
		return nil, err
	}
	writer := render.NewWriter(renderer, cfg.Output.Dir, render.Files{
		Journals:    cfg.Output.Journals.File,
		Conferences: cfg.Output.Conferences.File,
		Books:       cfg.Output.Books.File,
		Excluded:    cfg.Output.ExcludedFile,
	}, logger.With("component", "render"))

	return &Application{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		pipeline: pipeline,
		writer:   writer,
	}, nil
}

// RunID identifies this application instance in logs.
func (a *Application) RunID() string { return a.runID }

// Check loads the roster and filter profiles and verifies that every
// referenced profile exists. It performs no network access.
func (a *Application) Check() (Inputs, error) {
	members, err := roster.Load(a.cfg.Input.Members)
	if err != nil {
		return Inputs{}, err
	}
	profiles, err := filter.LoadProfiles(a.cfg.Input.FiltersDir)
	if err != nil {
		return Inputs{}, err
	}
	if err := usecase.ValidateProfiles(members, profiles); err != nil {
		return Inputs{}, err
	}
	a.logger.Info("inputs loaded",
		slog.Int("members", len(members)),
		slog.Int("profiles", len(profiles)),
	)
	return Inputs{Roster: members, Profiles: profiles}, nil
}

// Run performs a full generation: load inputs, run the pipeline and write
// the snippets. Configuration errors abort before any file is written.
func (a *Application) Run(ctx context.Context) (Report, error) {
	inputs, err := a.Check()
	if err != nil {
		return Report{}, err
	}

	out, err := a.pipeline.Run(ctx, inputs.Roster, inputs.Profiles, a.cfg.Pipeline.MaxResults)
	if err != nil {
		return Report{}, fmt.Errorf("run pipeline: %w", err)
	}

	files, err := a.writer.Write(ctx, out)
	if err != nil {
		return Report{}, fmt.Errorf("write snippets: %w", err)
	}

	for _, failed := range out.Failures() {
		a.logger.Warn("member skipped after retrieval failure",
			slog.String("identifier", failed.Owner.Identifier),
			slog.Any("error", failed.Err),
		)
	}
	return Report{RunID: a.runID, Output: out, Files: files}, nil
}

func classificationPolicy(cfg config.ClassificationConfig) (classify.Policy, error) {
	category, err := domain.ParseCategory(cfg.DefaultCategory)
	if err != nil {
		return classify.Policy{}, &domain.ConfigurationError{Source: "config", Msg: "classification.defaultCategory", Err: err}
	}
	return classify.Policy{
		ForcedConferenceVenues:  cfg.ForcedConferenceVenues,
		ConferenceTitleKeywords: cfg.ConferenceKeywords,
		BookTitleKeywords:       cfg.BookKeywords,
		DefaultCategory:         category,
	}, nil
}

func renderOptions(cfg config.OutputConfig) render.Options {
	section := func(s config.SectionConfig) render.Section {
		return render.Section{Title: s.Title, HeroImage: s.HeroImage, Intro: s.Intro}
	}
	return render.Options{
		Journals:    section(cfg.Journals),
		Conferences: section(cfg.Conferences),
		Books:       section(cfg.Books),
		MaxItems:    cfg.MaxItems,
		MaxExcluded: cfg.MaxExcluded,
	}
}

package usecase

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ScholarSnippets/internal/domain"
	"ScholarSnippets/internal/filter"
	"ScholarSnippets/internal/ports"
)

// MaxConcurrency bounds the number of identifiers fetched at once.
const MaxConcurrency = 8

// PipelineDeps wires the driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.WorkSource
	Classifier  ports.Classifier
	Logger      *slog.Logger
	Concurrency int
}

// Pipeline implements the retrieve, classify and filter workflow.
type Pipeline struct {
	source      ports.WorkSource
	classifier  ports.Classifier
	logger      *slog.Logger
	concurrency int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	return &Pipeline{
		source:      deps.Source,
		classifier:  deps.Classifier,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run processes the roster in order and returns the aggregated buckets.
// Every roster entry's profile is resolved before anything is fetched. A
// retrieval failure is recorded in the entry's stats and the run moves on;
// only configuration problems and context cancellation abort it.
func (p *Pipeline) Run(ctx context.Context, roster []domain.RosterEntry, profiles map[string]*domain.FilterProfile, maxPerIdentifier int) (domain.AggregatedOutput, error) {
	if p.source == nil || p.classifier == nil {
		return domain.AggregatedOutput{}, domain.Configurationf("pipeline", "work source and classifier are required")
	}

	resolved, err := resolveProfiles(roster, profiles)
	if err != nil {
		return domain.AggregatedOutput{}, err
	}

	r := &run{
		classifier: p.classifier,
		logger:     p.logger,
		seen:       newSeenSet(),
	}

	if p.concurrency > 1 && len(roster) > 1 {
		err = p.runConcurrent(ctx, r, roster, resolved, maxPerIdentifier)
	} else {
		err = p.runSequential(ctx, r, roster, resolved, maxPerIdentifier)
	}
	if err != nil {
		return domain.AggregatedOutput{}, err
	}

	p.logger.Info("pipeline finished",
		slog.Int("members", len(roster)),
		slog.Int("journals", len(r.out.Journals)),
		slog.Int("conferences", len(r.out.Conferences)),
		slog.Int("books", len(r.out.Books)),
		slog.Int("excluded", len(r.out.Excluded)),
		slog.Int("failures", len(r.out.Failures())),
	)
	return r.out, nil
}

func (p *Pipeline) runSequential(ctx context.Context, r *run, roster []domain.RosterEntry, profiles []*domain.FilterProfile, maxPerIdentifier int) error {
	for i, entry := range roster {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.absorb(entry, profiles[i], p.source.FetchWorks(ctx, entry.Identifier, maxPerIdentifier))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// runConcurrent fetches into per-entry buffers, then merges them in roster
// order so dedup stays single-writer and the result matches a sequential run.
func (p *Pipeline) runConcurrent(ctx context.Context, r *run, roster []domain.RosterEntry, profiles []*domain.FilterProfile, maxPerIdentifier int) error {
	buffers := make([][]fetched, len(roster))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, entry := range roster {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			for w, err := range p.source.FetchWorks(ctx, entry.Identifier, maxPerIdentifier) {
				buffers[i] = append(buffers[i], fetched{work: w, err: err})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, entry := range roster {
		r.absorb(entry, profiles[i], replay(buffers[i]))
	}
	return nil
}

// ValidateProfiles reports a ConfigurationError when a roster entry names a
// profile that was not loaded.
func ValidateProfiles(roster []domain.RosterEntry, profiles map[string]*domain.FilterProfile) error {
	_, err := resolveProfiles(roster, profiles)
	return err
}

func resolveProfiles(roster []domain.RosterEntry, profiles map[string]*domain.FilterProfile) ([]*domain.FilterProfile, error) {
	resolved := make([]*domain.FilterProfile, len(roster))
	for i, entry := range roster {
		name := entry.FilterProfile
		if name == "" {
			name = string(domain.FilterModeNone)
		}
		profile, ok := profiles[name]
		if !ok && name == string(domain.FilterModeNone) {
			profile, ok = filter.NoFilter(), true
		}
		if !ok || profile == nil {
			return nil, domain.Configurationf("roster", "member %s references unknown filter profile %q", entry.Identifier, name)
		}
		resolved[i] = profile
	}
	return resolved, nil
}

type fetched struct {
	work domain.Work
	err  error
}

func replay(items []fetched) iter.Seq2[domain.Work, error] {
	return func(yield func(domain.Work, error) bool) {
		for _, it := range items {
			if !yield(it.work, it.err) {
				return
			}
		}
	}
}

// run is the state owned by a single Pipeline.Run call.
type run struct {
	classifier ports.Classifier
	logger     *slog.Logger
	seen       *seenSet
	out        domain.AggregatedOutput
}

func (r *run) absorb(owner domain.RosterEntry, profile *domain.FilterProfile, works iter.Seq2[domain.Work, error]) {
	stats := domain.EntryStats{Owner: owner}
	logger := r.logger.With(slog.String("identifier", owner.Identifier), slog.String("member", owner.DisplayName))

	for w, err := range works {
		if err != nil {
			var malformed *domain.MalformedRecordError
			if errors.As(err, &malformed) {
				stats.Malformed++
				logger.Debug("dropped malformed record", slog.Any("error", err))
				continue
			}
			stats.Err = err
			logger.Warn("retrieval failed, continuing with next member", slog.Any("error", err))
			continue
		}

		stats.Fetched++
		if !r.seen.add(w) {
			stats.Duplicates++
			continue
		}

		work := w
		entry := domain.Entry{
			Work:           &work,
			Owner:          owner,
			Classification: r.classifier.Classify(work),
		}
		decision := filter.Evaluate(work, profile)
		if !decision.Included {
			r.out.Excluded = append(r.out.Excluded, domain.ExcludedEntry{Entry: entry, Reason: decision.Reason})
			stats.Excluded++
			continue
		}
		r.out.Append(entry)
		stats.Included++
	}

	logger.Info("member processed",
		slog.Int("fetched", stats.Fetched),
		slog.Int("included", stats.Included),
		slog.Int("excluded", stats.Excluded),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("malformed", stats.Malformed),
	)
	r.out.Stats = append(r.out.Stats, stats)
}

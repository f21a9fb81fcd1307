package ports

import (
	"context"
	"iter"

	"ScholarSnippets/internal/domain"
)

// WorkSource streams the works attributed to one researcher identifier.
// The sequence is lazy and may be ranged only once; a *domain.RetrievalError
// ends it, a *domain.MalformedRecordError does not.
type WorkSource interface {
	FetchWorks(ctx context.Context, identifier string, maxResults int) iter.Seq2[domain.Work, error]
}

// OutputWriter renders and persists the aggregated bibliography.
type OutputWriter interface {
	Write(ctx context.Context, out domain.AggregatedOutput) ([]string, error)
}

// Classifier assigns exactly one category to a work.
type Classifier interface {
	Classify(w domain.Work) domain.ClassificationResult
}

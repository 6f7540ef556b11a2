package ports

import (
	"context"

	"SpeechCorpus/internal/domain"
)

// SegmentItem pairs a text with a caller-chosen correlation id so batched
// results can be mapped back to their source.
type SegmentItem struct {
	ID   string
	Text string
}

// Segmenter splits texts into sentences annotated with token-level
// lexical/morphological/dependency attributes and named-entity spans.
type Segmenter interface {
	Segment(ctx context.Context, items []SegmentItem) (map[string][]domain.ParsedSentence, error)
}

// Embedder produces a sentence vector with the producing model's metadata.
type Embedder interface {
	Embed(ctx context.Context, text string) (*domain.Embedding, error)
}

// StatsCalculator computes per-sentence text statistics; it returns an error
// for degenerate input, in which case the record is omitted.
type StatsCalculator interface {
	Calculate(text string) (*domain.TextStats, error)
}

// RedLineClassifier scores a sentence against the red-line category.
type RedLineClassifier interface {
	Classify(ctx context.Context, text string) (*domain.RedLineScore, error)
}

// SentimentScorer predicts a sentiment score and label for a sentence.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (*domain.Sentiment, error)
}

// CorpusRepository persists and serves document graphs. SaveDocument writes
// the whole graph atomically; DeleteDocument cascades to every child record.
type CorpusRepository interface {
	Exists(ctx context.Context, documentID int) (bool, error)
	SaveDocument(ctx context.Context, graph *domain.DocumentGraph) error
	GetDocument(ctx context.Context, id int, includeThemes, includeSentences bool) (*domain.Document, error)
	LatestDocuments(ctx context.Context, offset, limit int) ([]domain.DocumentSummary, error)
	DeleteDocument(ctx context.Context, id int) error
}

// Notifier reports a completed ingestion to an outbound channel; best-effort.
type Notifier interface {
	NotifyIngested(ctx context.Context, documentID, sentences int) error
}

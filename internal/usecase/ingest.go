package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/match"
	"SpeechCorpus/internal/ports"
)

// IngestDeps wires all driven adapters into the ingestion orchestrator.
type IngestDeps struct {
	Repository ports.CorpusRepository
	Segmenter  ports.Segmenter
	Matcher    *match.Matcher
	Stats      ports.StatsCalculator
	RedLines   ports.RedLineClassifier
	Embedder   ports.Embedder
	Sentiment  ports.SentimentScorer
	BatchSize  int
	Exclusive  bool
	Logger     *slog.Logger
}

// Ingestor turns one transformed document into a fully persisted, enriched
// graph, exactly once per source id. The four enrichments are independent
// and best-effort; conflict and persistence failure are the only terminal
// failures.
type Ingestor struct {
	repository ports.CorpusRepository
	segmenter  ports.Segmenter
	matcher    *match.Matcher
	stats      ports.StatsCalculator
	redLines   ports.RedLineClassifier
	embedder   ports.Embedder
	sentiment  ports.SentimentScorer
	batchSize  int
	exclusive  bool
	logger     *slog.Logger
}

// NewIngestor constructs the orchestration component.
func NewIngestor(deps IngestDeps) *Ingestor {
	return &Ingestor{
		repository: deps.Repository,
		segmenter:  deps.Segmenter,
		matcher:    deps.Matcher,
		stats:      deps.Stats,
		redLines:   deps.RedLines,
		embedder:   deps.Embedder,
		sentiment:  deps.Sentiment,
		batchSize:  deps.BatchSize,
		exclusive:  deps.Exclusive,
		logger:     deps.Logger,
	}
}

// IsPresent checks the store for a document with this identity.
func (i *Ingestor) IsPresent(ctx context.Context, documentID int) (bool, error) {
	return i.repository.Exists(ctx, documentID)
}

// Create persists the document graph atomically. It fails with
// domain.ErrConflict when the identity is already stored; enrichment
// sub-failures are absorbed and surface only as absent records.
func (i *Ingestor) Create(ctx context.Context, document domain.Document, rawHTML []byte) error {
	exists, err := i.repository.Exists(ctx, document.ID)
	if err != nil {
		return fmt.Errorf("check document %d: %w", document.ID, err)
	}
	if exists {
		return fmt.Errorf("document %d: %w", document.ID, domain.ErrConflict)
	}

	features, err := i.extractFeatures(ctx, document.Sentences)
	if err != nil {
		return fmt.Errorf("extract features for document %d: %w", document.ID, err)
	}

	graph := &domain.DocumentGraph{
		Document: document,
		RawHTML:  rawHTML,
		Enriched: make([]domain.EnrichedSentence, 0, len(document.Sentences)),
	}

	for idx, sentence := range document.Sentences {
		enriched := domain.EnrichedSentence{
			Sentence: sentence,
			Features: features[idx],
		}
		i.enrich(ctx, &enriched)
		graph.Enriched = append(graph.Enriched, enriched)
	}

	if err := i.repository.SaveDocument(ctx, graph); err != nil {
		return fmt.Errorf("persist document %d: %w", document.ID, err)
	}
	return nil
}

// extractFeatures runs the matcher over every sentence in one batched
// stream, keyed back to the sentence position.
func (i *Ingestor) extractFeatures(ctx context.Context, sentences []domain.Sentence) (map[int][]domain.Feature, error) {
	features := make(map[int][]domain.Feature, len(sentences))
	if i.matcher == nil || i.segmenter == nil || len(sentences) == 0 {
		return features, nil
	}

	items := make([]ports.SegmentItem, len(sentences))
	for idx, sentence := range sentences {
		items[idx] = ports.SegmentItem{ID: strconv.Itoa(idx), Text: sentence.Text}
	}

	for streamed, err := range i.matcher.Stream(ctx, i.segmenter, items, i.batchSize, i.exclusive) {
		if err != nil {
			return nil, err
		}
		idx, convErr := strconv.Atoi(streamed.ItemID)
		if convErr != nil {
			continue
		}
		features[idx] = append(features[idx], streamed.Feature)
	}
	return features, nil
}

// enrich attaches the four optional records; each scorer fails
// independently without blocking the others.
func (i *Ingestor) enrich(ctx context.Context, sentence *domain.EnrichedSentence) {
	if i.stats != nil {
		stats, err := i.stats.Calculate(sentence.Text)
		if err != nil {
			i.debug("text statistics omitted", sentence, err)
		} else {
			sentence.Stats = stats
		}
	}

	if i.redLines != nil {
		prediction, err := i.redLines.Classify(ctx, sentence.Text)
		if err != nil {
			i.debug("red-line score omitted", sentence, err)
		} else {
			sentence.RedLine = prediction
		}
	}

	if i.embedder != nil {
		embedding, err := i.embedder.Embed(ctx, sentence.Text)
		if err != nil {
			i.debug("embedding omitted", sentence, err)
		} else {
			sentence.Embedding = embedding
		}
	}

	if i.sentiment != nil {
		prediction, err := i.sentiment.Score(ctx, sentence.Text)
		if err != nil {
			i.debug("sentiment omitted", sentence, err)
		} else {
			sentence.Sentiment = prediction
		}
	}
}

func (i *Ingestor) debug(msg string, sentence *domain.EnrichedSentence, err error) {
	if i.logger == nil {
		return
	}
	i.logger.Debug(msg,
		"document_id", sentence.DocumentID,
		"paragraph_id", sentence.ParagraphID,
		"sentence_id", sentence.SentenceID,
		"error", err)
}

package usecase

import (
	"context"
	"errors"
	"testing"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/match"
	"SpeechCorpus/internal/ports"
)

type fakeRepository struct {
	existing  map[int]bool
	existsErr error
	saveErr   error
	saveCalls int
	saved     *domain.DocumentGraph
}

func (f *fakeRepository) Exists(_ context.Context, documentID int) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[documentID], nil
}

func (f *fakeRepository) SaveDocument(_ context.Context, graph *domain.DocumentGraph) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = graph
	return nil
}

func (f *fakeRepository) GetDocument(context.Context, int, bool, bool) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeRepository) LatestDocuments(context.Context, int, int) ([]domain.DocumentSummary, error) {
	return nil, nil
}

func (f *fakeRepository) DeleteDocument(context.Context, int) error {
	return domain.ErrNotFound
}

type fakeStats struct{ err error }

func (f fakeStats) Calculate(string) (*domain.TextStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TextStats{Words: 3}, nil
}

type fakeRedLines struct{ err error }

func (f fakeRedLines) Classify(context.Context, string) (*domain.RedLineScore, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RedLineScore{ModelName: "redline-test", Prediction: 0.5}, nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) (*domain.Embedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Embedding{ModelName: "embed-test", Vector: []float64{0.1, 0.2}}, nil
}

type fakeSentiment struct{ err error }

func (f fakeSentiment) Score(context.Context, string) (*domain.Sentiment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Sentiment{ModelName: "sentiment-test", PredictionLabel: "neutral"}, nil
}

// echoSegmenter returns one token-per-word parse so the matcher sees a
// nominal subject in every sentence.
type echoSegmenter struct{ err error }

func (e echoSegmenter) Segment(_ context.Context, items []ports.SegmentItem) (map[string][]domain.ParsedSentence, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make(map[string][]domain.ParsedSentence, len(items))
	for _, item := range items {
		out[item.ID] = []domain.ParsedSentence{{
			Text: item.Text,
			Tokens: []domain.Token{
				{Index: 0, Text: item.Text, Lemma: item.Text, POS: "NOUN", Dep: "nsubj", Head: 1},
				{Index: 1, Text: "", POS: "VERB", Dep: "root", Head: 1},
			},
		}}
	}
	return out, nil
}

func testDocument() domain.Document {
	return domain.Document{
		ID:    42,
		Title: "t",
		Sentences: []domain.Sentence{
			{DocumentID: 42, ParagraphID: 1, SentenceID: 1, Text: "Первое предложение."},
			{DocumentID: 42, ParagraphID: 1, SentenceID: 2, Text: "Второе предложение."},
		},
	}
}

func newTestIngestor(repo *fakeRepository, deps IngestDeps) *Ingestor {
	deps.Repository = repo
	return NewIngestor(deps)
}

func TestCreatePersistsEnrichedGraph(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{}}
	ingestor := newTestIngestor(repo, IngestDeps{
		Stats:     fakeStats{},
		RedLines:  fakeRedLines{},
		Embedder:  fakeEmbedder{},
		Sentiment: fakeSentiment{},
	})

	raw := []byte("<html/>")
	if err := ingestor.Create(context.Background(), testDocument(), raw); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if repo.saveCalls != 1 {
		t.Fatalf("expected a single save, got %d", repo.saveCalls)
	}
	graph := repo.saved
	if graph == nil {
		t.Fatal("graph was not saved")
	}
	if graph.ID != 42 || string(graph.RawHTML) != "<html/>" {
		t.Fatalf("unexpected graph header: %#v", graph.Document)
	}
	if len(graph.Enriched) != 2 {
		t.Fatalf("expected 2 enriched sentences, got %d", len(graph.Enriched))
	}

	for i, enriched := range graph.Enriched {
		if enriched.SentenceID != i+1 {
			t.Fatalf("sentence order not preserved: %#v", enriched.Sentence)
		}
		if enriched.Stats == nil || enriched.RedLine == nil ||
			enriched.Embedding == nil || enriched.Sentiment == nil {
			t.Fatalf("enrichment records missing on sentence %d: %#v", i, enriched)
		}
	}
}

func TestCreateConflict(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{42: true}}
	ingestor := newTestIngestor(repo, IngestDeps{})

	err := ingestor.Create(context.Background(), testDocument(), nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("conflicting document must not be saved, got %d saves", repo.saveCalls)
	}
}

func TestCreateAbsorbsScorerFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{}}
	ingestor := newTestIngestor(repo, IngestDeps{
		Stats:     fakeStats{},
		RedLines:  fakeRedLines{err: errors.New("inference down")},
		Embedder:  fakeEmbedder{},
		Sentiment: fakeSentiment{},
	})

	if err := ingestor.Create(context.Background(), testDocument(), nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for _, enriched := range repo.saved.Enriched {
		if enriched.RedLine != nil {
			t.Fatalf("failed scorer must leave its record absent: %#v", enriched.RedLine)
		}
		if enriched.Stats == nil || enriched.Embedding == nil || enriched.Sentiment == nil {
			t.Fatalf("unrelated enrichments must survive: %#v", enriched)
		}
	}
}

func TestCreateAttachesFeatures(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{}}
	matcher := match.NewWithRules([]match.Rule{
		{Label: "NOUN", Pattern: [][]match.TokenConstraint{{{"POS": "NOUN"}}}},
	})
	ingestor := newTestIngestor(repo, IngestDeps{
		Segmenter: echoSegmenter{},
		Matcher:   matcher,
		BatchSize: 1,
	})

	if err := ingestor.Create(context.Background(), testDocument(), nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for i, enriched := range repo.saved.Enriched {
		if len(enriched.Features) != 1 {
			t.Fatalf("sentence %d: expected 1 feature, got %#v", i, enriched.Features)
		}
		if enriched.Features[0].EntityType != domain.EntityTypeNounPhrase {
			t.Fatalf("unexpected feature: %#v", enriched.Features[0])
		}
	}
}

func TestCreateFailsOnSegmentationError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{}}
	segErr := errors.New("segmentation unavailable")
	ingestor := newTestIngestor(repo, IngestDeps{
		Segmenter: echoSegmenter{err: segErr},
		Matcher:   match.NewWithRules(nil),
	})

	err := ingestor.Create(context.Background(), testDocument(), nil)
	if !errors.Is(err, segErr) {
		t.Fatalf("expected the segmentation error, got %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("document must not be saved on segmentation failure, got %d saves", repo.saveCalls)
	}
}

func TestCreateFailsOnPersistenceError(t *testing.T) {
	t.Parallel()

	saveErr := errors.New("connection reset")
	repo := &fakeRepository{existing: map[int]bool{}, saveErr: saveErr}
	ingestor := newTestIngestor(repo, IngestDeps{})

	err := ingestor.Create(context.Background(), testDocument(), nil)
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected the persistence error, got %v", err)
	}
}

func TestIsPresent(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{existing: map[int]bool{7: true}}
	ingestor := newTestIngestor(repo, IngestDeps{})

	present, err := ingestor.IsPresent(context.Background(), 7)
	if err != nil || !present {
		t.Fatalf("IsPresent(7) = (%v, %v), want (true, nil)", present, err)
	}
	present, err = ingestor.IsPresent(context.Background(), 8)
	if err != nil || present {
		t.Fatalf("IsPresent(8) = (%v, %v), want (false, nil)", present, err)
	}
}

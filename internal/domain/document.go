package domain

import "time"

// Feature entity types stored in extracted_features.
const (
	EntityTypeNamedEntity = "named entity"
	EntityTypeNounPhrase  = "noun phrase"
)

// Document is the core entity produced by the HTML transformer.
// Its identity is the integer trailing segment of the canonical URL.
type Document struct {
	ID        int
	Title     string
	Date      time.Time
	URL       string
	Themes    []Theme
	Sentences []Sentence
}

// Theme is a category/label pair attached to a document; order-irrelevant.
type Theme struct {
	Category string
	Theme    string
}

// Sentence is one cleaned sentence with paragraph-scoped speaker attribution.
// (DocumentID, ParagraphID, SentenceID) is unique within a document; both
// indices are 1-based and SentenceID counts only non-empty cleaned sentences.
type Sentence struct {
	DocumentID     int
	ParagraphID    int
	SentenceID     int
	Speaker        string // empty when no speaker has ever been attributed
	Text           string
	TextLemmatized string
}

// Feature is a single extracted named entity or key noun phrase.
// Span holds [start, end) rune offsets within the owning sentence.
type Feature struct {
	EntityType     string
	Label          string
	Match          string
	MatchProcessed string
	Span           [2]int
}

// TextStats aggregates per-sentence basic, readability, and lexical
// diversity statistics.
type TextStats struct {
	// basic
	Chars             int
	Letters           int
	Words             int
	LongWords         int
	ComplexWords      int
	SimpleWords       int
	UniqueWords       int
	Syllables         int
	MonosyllableWords int
	PolysyllableWords int
	// readability
	AutomatedReadabilityIndex float64
	ColemanLiauIndex          float64
	FleschKincaidGrade        float64
	FleschReadingEasy         float64
	LIX                       float64
	SMOGIndex                 float64
	// diversity
	TTR          float64
	RTTR         float64
	CTTR         float64
	MATTR        float64
	SimpsonIndex float64
	HapaxIndex   float64
}

// RedLineScore is the red-line classifier prediction with model metadata.
type RedLineScore struct {
	ModelLanguage    string
	ModelName        string
	ModelType        string
	ModelVersion     string
	ModelPerformance *float64
	Prediction       float64
}

// Embedding is a sentence vector with the producing model's metadata.
type Embedding struct {
	ModelLanguage string
	ModelName     string
	Vector        []float64
}

// Sentiment is the sentiment scorer prediction with model metadata.
type Sentiment struct {
	ModelName       string
	TokenizerName   string
	Prediction      float64
	PredictionLabel string
}

// EnrichedSentence bundles a sentence with its extracted features and the
// optional enrichment records. A nil record means the corresponding scorer
// failed or was absent; ingestion carries on regardless.
type EnrichedSentence struct {
	Sentence
	Features  []Feature
	Stats     *TextStats
	RedLine   *RedLineScore
	Embedding *Embedding
	Sentiment *Sentiment
}

// DocumentGraph is the full in-memory aggregate persisted in one transaction:
// metadata, raw export, themes, and enriched sentences in stable
// (paragraph, sentence) order.
type DocumentGraph struct {
	Document
	RawHTML  []byte
	Enriched []EnrichedSentence
}

// DocumentSummary is the listing shape returned by the latest-documents query.
type DocumentSummary struct {
	ID        int
	URL       string
	Date      time.Time
	CreatedAt time.Time
}

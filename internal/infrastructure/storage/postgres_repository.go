package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
)

// PostgresRepository persists document graphs into Postgres. SaveDocument
// writes the whole graph in a single transaction; the documents primary key
// serializes concurrent ingestion of the same source id.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.CorpusRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Exists reports whether a document with this identity is stored.
func (r *PostgresRepository) Exists(ctx context.Context, documentID int) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From("documents_metadata").
		Where(sq.Eq{"id": documentID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query document %d: %w", documentID, err)
	}
	return true, nil
}

// SaveDocument persists metadata, raw export, themes, sentences, extracted
// features, and every enrichment record atomically. On any failure nothing
// is committed.
func (r *PostgresRepository) SaveDocument(ctx context.Context, graph *domain.DocumentGraph) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.insertMetadata(ctx, tx, graph); err != nil {
		return err
	}
	if err := r.insertExport(ctx, tx, graph); err != nil {
		return err
	}
	if err := r.insertThemes(ctx, tx, graph); err != nil {
		return err
	}

	for i := range graph.Enriched {
		if err := r.insertSentence(ctx, tx, &graph.Enriched[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %d: %w", graph.ID, err)
	}
	return nil
}

func (r *PostgresRepository) insertMetadata(ctx context.Context, tx *sql.Tx, graph *domain.DocumentGraph) error {
	query, args, err := r.builder.
		Insert("documents_metadata").
		Columns("id", "title", "date", "url").
		Values(graph.ID, graph.Title, graph.Date, graph.URL).
		ToSql()
	if err != nil {
		return fmt.Errorf("build metadata insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert metadata %d: %w", graph.ID, err)
	}
	return nil
}

func (r *PostgresRepository) insertExport(ctx context.Context, tx *sql.Tx, graph *domain.DocumentGraph) error {
	query, args, err := r.builder.
		Insert("exports").
		Columns("id", "html_contents").
		Values(graph.ID, graph.RawHTML).
		ToSql()
	if err != nil {
		return fmt.Errorf("build export insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert export %d: %w", graph.ID, err)
	}
	return nil
}

func (r *PostgresRepository) insertThemes(ctx context.Context, tx *sql.Tx, graph *domain.DocumentGraph) error {
	if len(graph.Themes) == 0 {
		return nil
	}

	builder := r.builder.
		Insert("themes").
		Columns("document_id", "category", "theme")
	for _, theme := range graph.Themes {
		builder = builder.Values(graph.ID, theme.Category, theme.Theme)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build themes insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert themes for %d: %w", graph.ID, err)
	}
	return nil
}

func (r *PostgresRepository) insertSentence(ctx context.Context, tx *sql.Tx, sentence *domain.EnrichedSentence) error {
	query, args, err := r.builder.
		Insert("sentences").
		Columns("document_id", "paragraph_id", "sentence_id", "speaker", "text", "text_lemmatized").
		Values(sentence.DocumentID, sentence.ParagraphID, sentence.SentenceID,
			nullableString(sentence.Speaker), sentence.Text, sentence.TextLemmatized).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sentence insert: %w", err)
	}

	var sentenceRow int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&sentenceRow); err != nil {
		return fmt.Errorf("insert sentence %d/%d/%d: %w",
			sentence.DocumentID, sentence.ParagraphID, sentence.SentenceID, err)
	}

	if err := r.insertFeatures(ctx, tx, sentenceRow, sentence.Features); err != nil {
		return err
	}
	return r.insertEnrichments(ctx, tx, sentenceRow, sentence)
}

func (r *PostgresRepository) insertFeatures(ctx context.Context, tx *sql.Tx, sentenceRow int64, features []domain.Feature) error {
	if len(features) == 0 {
		return nil
	}

	builder := r.builder.
		Insert("extracted_features").
		Columns("sentence_id", "entity_type", "label", "match", "match_processed", "span_location")
	for _, feature := range features {
		builder = builder.Values(sentenceRow, feature.EntityType, feature.Label,
			feature.Match, feature.MatchProcessed, pq.Array(feature.Span[:]))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build features insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert features for sentence %d: %w", sentenceRow, err)
	}
	return nil
}

func (r *PostgresRepository) insertEnrichments(ctx context.Context, tx *sql.Tx, sentenceRow int64, sentence *domain.EnrichedSentence) error {
	if stats := sentence.Stats; stats != nil {
		query, args, err := r.builder.
			Insert("text_statistics").
			Columns("sentence_id",
				"n_chars", "n_letters", "n_words", "n_long_words", "n_complex_words",
				"n_simple_words", "n_unique_words", "n_syllables",
				"n_monosyllable_words", "n_polysyllable_words",
				"automated_readability_index", "coleman_liau_index",
				"flesch_kincaid_grade", "flesch_reading_easy", "lix", "smog_index",
				"ttr", "rttr", "cttr", "mattr", "simpson_index", "hapax_index").
			Values(sentenceRow,
				stats.Chars, stats.Letters, stats.Words, stats.LongWords, stats.ComplexWords,
				stats.SimpleWords, stats.UniqueWords, stats.Syllables,
				stats.MonosyllableWords, stats.PolysyllableWords,
				stats.AutomatedReadabilityIndex, stats.ColemanLiauIndex,
				stats.FleschKincaidGrade, stats.FleschReadingEasy, stats.LIX, stats.SMOGIndex,
				stats.TTR, stats.RTTR, stats.CTTR, stats.MATTR, stats.SimpsonIndex, stats.HapaxIndex).
			ToSql()
		if err != nil {
			return fmt.Errorf("build statistics insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert statistics for sentence %d: %w", sentenceRow, err)
		}
	}

	if redLine := sentence.RedLine; redLine != nil {
		query, args, err := r.builder.
			Insert("red_lines").
			Columns("sentence_id", "model_language", "model_name", "model_type",
				"model_version", "model_performance", "prediction").
			Values(sentenceRow, redLine.ModelLanguage, redLine.ModelName,
				nullableString(redLine.ModelType), redLine.ModelVersion,
				redLine.ModelPerformance, redLine.Prediction).
			ToSql()
		if err != nil {
			return fmt.Errorf("build red-line insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert red line for sentence %d: %w", sentenceRow, err)
		}
	}

	if embedding := sentence.Embedding; embedding != nil {
		query, args, err := r.builder.
			Insert("embeddings").
			Columns("sentence_id", "model_language", "model_name", "vector").
			Values(sentenceRow, embedding.ModelLanguage, embedding.ModelName,
				pq.Array(embedding.Vector)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build embedding insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert embedding for sentence %d: %w", sentenceRow, err)
		}
	}

	if sentiment := sentence.Sentiment; sentiment != nil {
		query, args, err := r.builder.
			Insert("sentiments").
			Columns("sentence_id", "model_name", "tokenizer_name", "prediction", "prediction_label").
			Values(sentenceRow, sentiment.ModelName, sentiment.TokenizerName,
				sentiment.Prediction, sentiment.PredictionLabel).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sentiment insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert sentiment for sentence %d: %w", sentenceRow, err)
		}
	}

	return nil
}

// GetDocument loads the metadata row, optionally joined with themes and
// sentences in stable (paragraph, sentence) order.
func (r *PostgresRepository) GetDocument(ctx context.Context, id int, includeThemes, includeSentences bool) (*domain.Document, error) {
	query, args, err := r.builder.
		Select("id", "title", "date", "url").
		From("documents_metadata").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}

	var document domain.Document
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&document.ID, &document.Title, &document.Date, &document.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document %d: %w", id, err)
	}

	if includeThemes {
		if document.Themes, err = r.loadThemes(ctx, id); err != nil {
			return nil, err
		}
	}
	if includeSentences {
		if document.Sentences, err = r.loadSentences(ctx, id); err != nil {
			return nil, err
		}
	}
	return &document, nil
}

func (r *PostgresRepository) loadThemes(ctx context.Context, documentID int) ([]domain.Theme, error) {
	query, args, err := r.builder.
		Select("category", "theme").
		From("themes").
		Where(sq.Eq{"document_id": documentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build themes query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query themes for %d: %w", documentID, err)
	}
	defer rows.Close()

	var themes []domain.Theme
	for rows.Next() {
		var theme domain.Theme
		if err := rows.Scan(&theme.Category, &theme.Theme); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("themes iteration: %w", err)
	}
	return themes, nil
}

func (r *PostgresRepository) loadSentences(ctx context.Context, documentID int) ([]domain.Sentence, error) {
	query, args, err := r.builder.
		Select("document_id", "paragraph_id", "sentence_id", "speaker", "text", "text_lemmatized").
		From("sentences").
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("paragraph_id", "sentence_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sentences query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sentences for %d: %w", documentID, err)
	}
	defer rows.Close()

	var sentences []domain.Sentence
	for rows.Next() {
		var (
			sentence domain.Sentence
			speaker  sql.NullString
		)
		if err := rows.Scan(&sentence.DocumentID, &sentence.ParagraphID, &sentence.SentenceID,
			&speaker, &sentence.Text, &sentence.TextLemmatized); err != nil {
			return nil, fmt.Errorf("scan sentence: %w", err)
		}
		sentence.Speaker = speaker.String
		sentences = append(sentences, sentence)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sentences iteration: %w", err)
	}
	return sentences, nil
}

// LatestDocuments lists stored documents newest first.
func (r *PostgresRepository) LatestDocuments(ctx context.Context, offset, limit int) ([]domain.DocumentSummary, error) {
	query, args, err := r.builder.
		Select("id", "url", "date", "created_at").
		From("documents_metadata").
		OrderBy("date DESC", "created_at").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest documents: %w", err)
	}
	defer rows.Close()

	var summaries []domain.DocumentSummary
	for rows.Next() {
		var summary domain.DocumentSummary
		if err := rows.Scan(&summary.ID, &summary.URL, &summary.Date, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest iteration: %w", err)
	}
	return summaries, nil
}

// DeleteDocument removes the parent row; every child table cascades.
func (r *PostgresRepository) DeleteDocument(ctx context.Context, id int) error {
	query, args, err := r.builder.
		Delete("documents_metadata").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

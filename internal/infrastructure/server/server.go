package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
	"SpeechCorpus/internal/transform"
	"SpeechCorpus/internal/usecase"
)

const maxUploadBytes = 8 << 20

// Server exposes the ingestion pipeline and the stored corpus over HTTP.
type Server struct {
	ingestor   *usecase.Ingestor
	repository ports.CorpusRepository
	segmenter  ports.Segmenter
	notifier   ports.Notifier
	logger     *slog.Logger
}

// New wires the HTTP surface.
func New(ingestor *usecase.Ingestor, repository ports.CorpusRepository, segmenter ports.Segmenter, notifier ports.Notifier, logger *slog.Logger) *Server {
	return &Server{
		ingestor:   ingestor,
		repository: repository,
		segmenter:  segmenter,
		notifier:   notifier,
		logger:     logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/upload", s.handleUpload)
	r.Get("/documents/latest", s.handleLatest)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Delete("/documents/{id}", s.handleDeleteDocument)
	r.Get("/healthz", s.handleHealth)

	return r
}

// handleUpload ingests one raw HTML page: transform, enrich, persist.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil || len(raw) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty or unreadable body")
		return
	}

	transformer, err := transform.New(raw, s.segmenter)
	if err != nil {
		if errors.Is(err, transform.ErrInvalidSource) {
			s.writeError(w, http.StatusUnprocessableEntity, "unprocessable entity")
			return
		}
		s.internalError(w, "build transformer", err)
		return
	}

	document, err := transformer.AsDocument(r.Context())
	if err != nil {
		s.internalError(w, "transform document", err)
		return
	}

	if err := s.ingestor.Create(r.Context(), document, transformer.RawHTML()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.writeError(w, http.StatusConflict, "this file has already been added")
			return
		}
		s.internalError(w, "ingest document", err)
		return
	}

	s.notify(r.Context(), document.ID, len(document.Sentences))
	s.writeJSON(w, http.StatusCreated, map[string]int{"id": document.ID})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 10)

	summaries, err := s.repository.LatestDocuments(r.Context(), offset, limit)
	if err != nil {
		s.internalError(w, "list documents", err)
		return
	}

	type item struct {
		ID        int       `json:"id"`
		URL       string    `json:"url"`
		Date      time.Time `json:"date"`
		CreatedAt time.Time `json:"created_at"`
	}
	payload := make([]item, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, item{
			ID:        summary.ID,
			URL:       summary.URL,
			Date:      summary.Date,
			CreatedAt: summary.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	includeThemes := r.URL.Query().Get("include_themes") == "true"
	includeSentences := r.URL.Query().Get("include_sentences") == "true"

	document, err := s.repository.GetDocument(r.Context(), id, includeThemes, includeSentences)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.internalError(w, "read document", err)
		return
	}

	s.writeJSON(w, http.StatusOK, documentPayload(document, includeThemes, includeSentences))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	if err := s.repository.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.internalError(w, "delete document", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted id=" + strconv.Itoa(id)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sentencePayload struct {
	ParagraphID    int    `json:"paragraph_id"`
	SentenceID     int    `json:"sentence_id"`
	Speaker        string `json:"speaker,omitempty"`
	Text           string `json:"text"`
	TextLemmatized string `json:"text_lemmatized"`
}

type themePayload struct {
	Category string `json:"category"`
	Theme    string `json:"theme"`
}

func documentPayload(document *domain.Document, includeThemes, includeSentences bool) map[string]any {
	payload := map[string]any{
		"id":    document.ID,
		"title": document.Title,
		"date":  document.Date,
		"url":   document.URL,
	}
	if includeThemes {
		themes := make([]themePayload, 0, len(document.Themes))
		for _, theme := range document.Themes {
			themes = append(themes, themePayload{Category: theme.Category, Theme: theme.Theme})
		}
		payload["themes"] = themes
	}
	if includeSentences {
		sentences := make([]sentencePayload, 0, len(document.Sentences))
		for _, sentence := range document.Sentences {
			sentences = append(sentences, sentencePayload{
				ParagraphID:    sentence.ParagraphID,
				SentenceID:     sentence.SentenceID,
				Speaker:        sentence.Speaker,
				Text:           sentence.Text,
				TextLemmatized: sentence.TextLemmatized,
			})
		}
		payload["sentences"] = sentences
	}
	return payload
}

// notify reports the ingestion outcome; failures are logged, never surfaced.
func (s *Server) notify(ctx context.Context, documentID, sentences int) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyIngested(ctx, documentID, sentences); err != nil && s.logger != nil {
		s.logger.Warn("ingestion notification failed", "document_id", documentID, "error", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	if s.logger != nil {
		s.logger.Error(action, "error", err)
	}
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
	"SpeechCorpus/internal/usecase"
)

const uploadHTML = `<html><body>
<div class="read__top">
  <h1>Заголовок</h1>
  <div class="read__meta"><time datetime="2022-05-16T12:00:00Z">16 мая</time></div>
</div>
<div id="material_link">https://example.org/material/12345</div>
<div class="entry-content e-content read__internal_content">
  <p>В.Путин: Мы продолжим работу.</p>
</div>
</body></html>`

type memoryRepository struct {
	documents map[int]*domain.Document
	saveCalls int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{documents: map[int]*domain.Document{}}
}

func (m *memoryRepository) Exists(_ context.Context, documentID int) (bool, error) {
	_, ok := m.documents[documentID]
	return ok, nil
}

func (m *memoryRepository) SaveDocument(_ context.Context, graph *domain.DocumentGraph) error {
	m.saveCalls++
	document := graph.Document
	m.documents[document.ID] = &document
	return nil
}

func (m *memoryRepository) GetDocument(_ context.Context, id int, includeThemes, includeSentences bool) (*domain.Document, error) {
	document, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *document
	if !includeThemes {
		copied.Themes = nil
	}
	if !includeSentences {
		copied.Sentences = nil
	}
	return &copied, nil
}

func (m *memoryRepository) LatestDocuments(_ context.Context, offset, limit int) ([]domain.DocumentSummary, error) {
	summaries := make([]domain.DocumentSummary, 0, len(m.documents))
	for _, document := range m.documents {
		summaries = append(summaries, domain.DocumentSummary{
			ID:        document.ID,
			URL:       document.URL,
			Date:      document.Date,
			CreatedAt: time.Now(),
		})
	}
	if offset >= len(summaries) {
		return nil, nil
	}
	summaries = summaries[offset:]
	if limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (m *memoryRepository) DeleteDocument(_ context.Context, id int) error {
	if _, ok := m.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

// lineSegmenter parses each paragraph as a single sentence.
type lineSegmenter struct{}

func (lineSegmenter) Segment(_ context.Context, items []ports.SegmentItem) (map[string][]domain.ParsedSentence, error) {
	out := make(map[string][]domain.ParsedSentence, len(items))
	for _, item := range items {
		out[item.ID] = []domain.ParsedSentence{{Text: item.Text}}
	}
	return out, nil
}

type recordingNotifier struct {
	documentID int
	sentences  int
	calls      int
}

func (r *recordingNotifier) NotifyIngested(_ context.Context, documentID, sentences int) error {
	r.calls++
	r.documentID = documentID
	r.sentences = sentences
	return nil
}

func newTestServer(repo *memoryRepository, notifier ports.Notifier) http.Handler {
	ingestor := usecase.NewIngestor(usecase.IngestDeps{Repository: repo})
	return New(ingestor, repo, lineSegmenter{}, notifier, nil).Router()
}

func TestUploadCreatesDocument(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	notifier := &recordingNotifier{}
	handler := newTestServer(repo, notifier)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(uploadHTML))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["id"] != 12345 {
		t.Fatalf("unexpected id: %d", body["id"])
	}

	if repo.saveCalls != 1 {
		t.Fatalf("expected a single save, got %d", repo.saveCalls)
	}
	if notifier.calls != 1 || notifier.documentID != 12345 || notifier.sentences != 1 {
		t.Fatalf("unexpected notification: %+v", notifier)
	}
}

func TestUploadInvalidSource(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("<html><body>nothing</body></html>"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadConflict(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.documents[12345] = &domain.Document{ID: 12345}
	handler := newTestServer(repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(uploadHTML))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.saveCalls != 0 {
		t.Fatalf("conflicting upload must not be saved, got %d saves", repo.saveCalls)
	}
}

func TestUploadEmptyBody(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.documents[7] = &domain.Document{
		ID:    7,
		Title: "Документ",
		URL:   "https://example.org/material/7",
		Themes: []domain.Theme{
			{Category: "Темы", Theme: "Дипломатия"},
		},
		Sentences: []domain.Sentence{
			{DocumentID: 7, ParagraphID: 1, SentenceID: 1, Speaker: "С.Лавров", Text: "Текст."},
		},
	}
	handler := newTestServer(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/7?include_themes=true&include_sentences=true", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID     int `json:"id"`
		Themes []struct {
			Category string `json:"category"`
			Theme    string `json:"theme"`
		} `json:"themes"`
		Sentences []struct {
			ParagraphID int    `json:"paragraph_id"`
			Speaker     string `json:"speaker"`
		} `json:"sentences"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != 7 || len(body.Themes) != 1 || len(body.Sentences) != 1 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if body.Sentences[0].Speaker != "С.Лавров" {
		t.Fatalf("unexpected speaker: %q", body.Sentences[0].Speaker)
	}
}

func TestGetDocumentWithoutIncludes(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.documents[7] = &domain.Document{ID: 7, Title: "Документ"}
	handler := newTestServer(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/7", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["themes"]; ok {
		t.Fatal("themes must be absent without include_themes")
	}
	if _, ok := body["sentences"]; ok {
		t.Fatal("sentences must be absent without include_sentences")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/404", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetDocumentBadID(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newMemoryRepository(), nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.documents[7] = &domain.Document{ID: 7}
	handler := newTestServer(repo, nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/7", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := repo.documents[7]; ok {
		t.Fatal("document was not deleted")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/7", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", rec.Code)
	}
}

func TestLatestDocuments(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepository()
	repo.documents[1] = &domain.Document{ID: 1, URL: "https://example.org/material/1"}
	repo.documents[2] = &domain.Document{ID: 2, URL: "https://example.org/material/2"}
	handler := newTestServer(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/latest?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(body))
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	handler := newTestServer(newMemoryRepository(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

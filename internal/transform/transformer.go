package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kljensen/snowball"
	"github.com/oklog/ulid/v2"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
)

// ErrInvalidSource signals that the page lacks a structural anchor required
// for ingestion: the top-matter block, the canonical link, or an integer
// trailing URL segment.
var ErrInvalidSource = errors.New("invalid source page")

const (
	selectorTop        = "div.read__top"
	selectorLink       = "#material_link"
	selectorTime       = "div.read__meta > time"
	selectorTags       = "div.read__bottommeta.hidden-copy > div > div.read__tags.masha-ignore"
	selectorParagraphs = "div.entry-content.e-content.read__internal_content > p"
)

// noisePatterns strip segmentation artifacts from sentence text before
// trimming: asterisks, non-breaking spaces, newlines, a leading
// "word.word:" echo of the speaker prefix, and ellipsis-in-angle-brackets.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\*`),
	regexp.MustCompile("\u00a0"),
	regexp.MustCompile(`\n`),
	regexp.MustCompile(`^[\p{L}\p{N}_]+\.[\p{L}\p{N}_]+:\s+`),
	regexp.MustCompile(`<…>`),
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Transformer converts one scraped HTML page into the document entity graph.
// Construction extracts mandatory metadata immediately; themes and sentences
// are extracted lazily and cached, so AsDocument is idempotent.
type Transformer struct {
	raw       []byte
	page      *goquery.Document
	segmenter ports.Segmenter

	id    int
	title string
	date  time.Time
	url   string

	themes        []domain.Theme
	themesDone    bool
	sentences     []domain.Sentence
	sentencesDone bool
}

// New parses the raw HTML and extracts the mandatory metadata.
func New(raw []byte, segmenter ports.Segmenter) (*Transformer, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrInvalidSource, err)
	}

	t := &Transformer{raw: raw, page: page, segmenter: segmenter}
	if err := t.extractMetadata(); err != nil {
		return nil, err
	}
	return t, nil
}

// DocumentID returns the identity parsed from the canonical URL.
func (t *Transformer) DocumentID() int {
	return t.id
}

// RawHTML returns the verbatim source bytes kept for the raw export.
func (t *Transformer) RawHTML() []byte {
	return t.raw
}

func (t *Transformer) extractMetadata() error {
	top := t.page.Find(selectorTop).First()
	if top.Length() == 0 {
		return fmt.Errorf("%w: the top part of the page is missing", ErrInvalidSource)
	}

	link := t.page.Find(selectorLink).First()
	if link.Length() == 0 {
		return fmt.Errorf("%w: %s is not present", ErrInvalidSource, selectorLink)
	}

	t.url = strings.TrimSpace(link.Text())
	segments := strings.Split(t.url, "/")
	id, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return fmt.Errorf("%w: trailing url segment is not an integer: %q", ErrInvalidSource, t.url)
	}
	t.id = id

	t.title = strings.ReplaceAll(top.Find("h1").First().Text(), "\u00a0", " ")

	datetime, ok := top.Find(selectorTime).First().Attr("datetime")
	if !ok {
		return fmt.Errorf("%w: publication time is missing", ErrInvalidSource)
	}
	date, err := parseDate(datetime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	t.date = date

	return nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", value)
}

// ExtractThemes collects category/theme pairs from the tags block.
// Themes are optional content: a missing block yields nil, not an error.
func (t *Transformer) ExtractThemes() []domain.Theme {
	if t.themesDone {
		return t.themes
	}
	t.themesDone = true

	block := t.page.Find(selectorTags).First()
	if block.Length() == 0 {
		return nil
	}

	var themes []domain.Theme
	block.Find(".read__tagscol").Each(func(_ int, col *goquery.Selection) {
		category := strings.TrimSpace(col.Find("h3").First().Text())
		col.Find("li").Each(func(_ int, li *goquery.Selection) {
			themes = append(themes, domain.Theme{
				Category: category,
				Theme:    strings.TrimSpace(li.Text()),
			})
		})
	})
	t.themes = themes
	return themes
}

// ExtractSentences segments the body paragraphs and returns attributed,
// cleaned sentences in stable (paragraph, sentence) order. Missing body
// content yields an empty sequence, never an error.
func (t *Transformer) ExtractSentences(ctx context.Context) ([]domain.Sentence, error) {
	if t.sentencesDone {
		return t.sentences, nil
	}

	var paragraphs []string
	t.page.Find(selectorParagraphs).Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, p.Text())
	})

	if len(paragraphs) == 0 || t.segmenter == nil {
		t.sentencesDone = true
		t.sentences = []domain.Sentence{}
		return t.sentences, nil
	}

	items := make([]ports.SegmentItem, len(paragraphs))
	for i, text := range paragraphs {
		items[i] = ports.SegmentItem{ID: ulid.Make().String(), Text: text}
	}

	parsed, err := t.segmenter.Segment(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("segment paragraphs: %w", err)
	}

	var scanner speakerScanner
	sentences := make([]domain.Sentence, 0, len(paragraphs))
	for i, paragraph := range paragraphs {
		speaker := scanner.attribute(paragraph)

		sentenceID := 0
		for _, sent := range parsed[items[i].ID] {
			cleaned := CleanText(sent.Text)
			if cleaned == "" {
				continue
			}
			sentenceID++
			sentences = append(sentences, domain.Sentence{
				DocumentID:     t.id,
				ParagraphID:    i + 1,
				SentenceID:     sentenceID,
				Speaker:        speaker,
				Text:           cleaned,
				TextLemmatized: lemmatize(sent.Tokens),
			})
		}
	}

	t.sentencesDone = true
	t.sentences = sentences
	return sentences, nil
}

// AsDocument assembles the document entity. Repeated calls return an
// equivalent document without re-parsing.
func (t *Transformer) AsDocument(ctx context.Context) (domain.Document, error) {
	sentences, err := t.ExtractSentences(ctx)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:        t.id,
		Title:     t.title,
		Date:      t.date,
		URL:       t.url,
		Themes:    t.ExtractThemes(),
		Sentences: sentences,
	}, nil
}

// CleanText strips the fixed noise patterns and trims surrounding
// whitespace; an empty result means the sentence is dropped entirely.
func CleanText(text string) string {
	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(text)
}

// lemmatize joins the lower-cased lemmas of alphabetic, non-stop-word
// tokens. When the segmenter supplies no lemma the snowball stem stands in.
func lemmatize(tokens []domain.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !tok.IsAlpha || tok.IsStop {
			continue
		}
		lemma := tok.Lemma
		if lemma == "" {
			stemmed, err := snowball.Stem(tok.Text, "russian", true)
			if err != nil {
				stemmed = tok.Text
			}
			lemma = stemmed
		}
		parts = append(parts, strings.ToLower(lemma))
	}
	return strings.Join(parts, " ")
}

package match

import (
	"context"
	"iter"
	"strings"
	"unicode/utf8"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
)

const defaultBatchSize = 25

// Matcher yields key noun-phrases and named entities from parsed sentences.
// Matching is scoped to the syntactic subtree of each clause's nominal
// subject, which biases extraction toward the grammatical core of the clause
// and suppresses noise from unrelated modifiers. A Matcher is immutable
// after construction and safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// New compiles the pattern asset at path into a Matcher.
func New(path string) (*Matcher, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return &Matcher{rules: rules}, nil
}

// NewWithRules builds a Matcher from an already-loaded rule set.
func NewWithRules(rules []Rule) *Matcher {
	return &Matcher{rules: rules}
}

// StreamedFeature is one matcher output tagged with the correlation id of
// the item it was found in.
type StreamedFeature struct {
	ItemID string
	domain.Feature
}

// KeyPhrases lazily yields the features of one parsed sentence.
//
// For every token whose dependency role is nominal subject and whose
// syntactic head is a verb, the subject's subtree span becomes the search
// window. Pattern matches inside the window become noun-phrase features;
// with exclusive search a match must contain the subject token itself, and
// VERB-labelled patterns must carry a gerund/present-participle or a past
// participle. Named entities inside the window are yielded regardless of
// the pattern set.
func (m *Matcher) KeyPhrases(sentence domain.ParsedSentence, exclusiveSearch bool) iter.Seq[domain.Feature] {
	return func(yield func(domain.Feature) bool) {
		for i := range sentence.Tokens {
			subject := sentence.Tokens[i]
			if !isNominalSubject(subject.Dep) {
				continue
			}
			if subject.Head < 0 || subject.Head >= len(sentence.Tokens) {
				continue
			}
			if sentence.Tokens[subject.Head].POS != "VERB" {
				continue
			}

			lo, hi := windowBounds(subject, len(sentence.Tokens))
			if !m.matchWindow(sentence, lo, hi, i, exclusiveSearch, yield) {
				return
			}
			if !namedEntities(sentence, lo, hi, yield) {
				return
			}
		}
	}
}

// Stream segments the items in batches and yields features as a single
// forward-only sequence. A non-nil error terminates the sequence; consumers
// restart by re-invoking the call.
func (m *Matcher) Stream(
	ctx context.Context,
	segmenter ports.Segmenter,
	items []ports.SegmentItem,
	batchSize int,
	exclusiveSearch bool,
) iter.Seq2[StreamedFeature, error] {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return func(yield func(StreamedFeature, error) bool) {
		for start := 0; start < len(items); start += batchSize {
			end := min(start+batchSize, len(items))
			batch := items[start:end]

			parsed, err := segmenter.Segment(ctx, batch)
			if err != nil {
				yield(StreamedFeature{}, err)
				return
			}

			for _, item := range batch {
				for _, sentence := range parsed[item.ID] {
					for feature := range m.KeyPhrases(sentence, exclusiveSearch) {
						if !yield(StreamedFeature{ItemID: item.ID, Feature: feature}, nil) {
							return
						}
					}
				}
			}
		}
	}
}

func (m *Matcher) matchWindow(
	sentence domain.ParsedSentence,
	lo, hi, subjectIdx int,
	exclusiveSearch bool,
	yield func(domain.Feature) bool,
) bool {
	window := sentence.Tokens[lo:hi]
	for _, rule := range m.rules {
		for _, sequence := range rule.Pattern {
			if len(sequence) == 0 || len(sequence) > len(window) {
				continue
			}
			for start := 0; start+len(sequence) <= len(window); start++ {
				if !sequenceMatches(sequence, window[start:start+len(sequence)]) {
					continue
				}
				spanLo := lo + start
				spanHi := spanLo + len(sequence)

				if exclusiveSearch {
					// phrases should stem from the subject directly
					if subjectIdx < spanLo || subjectIdx >= spanHi {
						continue
					}
					if strings.Contains(rule.Label, "VERB") && !hasParticiple(sentence.Tokens[spanLo:spanHi]) {
						continue
					}
				}

				if !yield(spanFeature(sentence, spanLo, spanHi, domain.EntityTypeNounPhrase, rule.Label)) {
					return false
				}
			}
		}
	}
	return true
}

func namedEntities(sentence domain.ParsedSentence, lo, hi int, yield func(domain.Feature) bool) bool {
	for _, ent := range sentence.Entities {
		if ent.Start < lo || ent.End > hi || ent.End <= ent.Start {
			continue
		}
		if !yield(spanFeature(sentence, ent.Start, ent.End, domain.EntityTypeNamedEntity, ent.Label)) {
			return false
		}
	}
	return true
}

func spanFeature(sentence domain.ParsedSentence, lo, hi int, entityType, label string) domain.Feature {
	tokens := sentence.Tokens[lo:hi]
	last := tokens[len(tokens)-1]
	startChar := tokens[0].StartChar
	endChar := last.StartChar + utf8.RuneCountInString(last.Text)

	return domain.Feature{
		EntityType:     entityType,
		Label:          label,
		Match:          runeSpan(sentence.Text, startChar, endChar),
		MatchProcessed: joinLemmas(tokens),
		Span:           [2]int{startChar, endChar},
	}
}

func sequenceMatches(sequence []TokenConstraint, tokens []domain.Token) bool {
	for i, constraint := range sequence {
		if !constraint.matches(tokens[i]) {
			return false
		}
	}
	return true
}

func isNominalSubject(dep string) bool {
	switch dep {
	case "nsubj", "nsubj:pass", "nsubjpass":
		return true
	}
	return false
}

func windowBounds(subject domain.Token, n int) (int, int) {
	lo := max(subject.LeftEdge, 0)
	hi := min(subject.RightEdge+1, n)
	if hi <= lo {
		lo, hi = subject.Index, subject.Index+1
	}
	return lo, hi
}

func hasParticiple(tokens []domain.Token) bool {
	for _, tok := range tokens {
		if IsVBG(tok) || IsVBN(tok) {
			return true
		}
	}
	return false
}

func joinLemmas(tokens []domain.Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.IsPunct {
			continue
		}
		parts = append(parts, strings.ToLower(tok.Lemma))
	}
	return strings.Join(parts, " ")
}

// runeSpan slices text by rune offsets; segmenter character offsets are
// rune-based, not byte-based.
func runeSpan(text string, start, end int) string {
	runes := []rune(text)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

package textstats

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
)

// ErrDegenerateInput is returned when a text contains no analyzable words;
// the caller omits the statistics record for such sentences.
var ErrDegenerateInput = errors.New("no words to analyze")

const (
	longWordLetters       = 6
	complexWordSyllables  = 4
	polysyllableThreshold = 3
	mattrWindow           = 50
)

var (
	wordExpr = regexp.MustCompile(`[\p{L}]+(?:-[\p{L}]+)*`)
	vowels   = "аеёиоуыэюяaeiouy"
)

// Calculator computes basic, readability, and lexical-diversity statistics
// for a single sentence. Readability coefficients are the Russian-calibrated
// variants.
type Calculator struct{}

var _ ports.StatsCalculator = (*Calculator)(nil)

// NewCalculator returns a stateless calculator safe for concurrent use.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate produces the statistics record for one sentence.
func (c *Calculator) Calculate(text string) (*domain.TextStats, error) {
	words := wordExpr.FindAllString(text, -1)
	if len(words) == 0 {
		return nil, ErrDegenerateInput
	}

	stats := &domain.TextStats{
		Chars: utf8.RuneCountInString(text),
		Words: len(words),
	}

	for _, r := range text {
		if unicode.IsLetter(r) {
			stats.Letters++
		}
	}

	freq := make(map[string]int, len(words))
	for _, word := range words {
		lower := strings.ToLower(word)
		freq[lower]++

		letters := utf8.RuneCountInString(word)
		if letters >= longWordLetters {
			stats.LongWords++
		}

		syl := syllables(lower)
		stats.Syllables += syl
		switch {
		case syl >= complexWordSyllables:
			stats.ComplexWords++
		default:
			stats.SimpleWords++
		}
		if syl == 1 {
			stats.MonosyllableWords++
		}
		if syl >= polysyllableThreshold {
			stats.PolysyllableWords++
		}
	}
	stats.UniqueWords = len(freq)

	c.readability(stats)
	c.diversity(stats, words, freq)
	return stats, nil
}

// readability fills the index fields; the unit of analysis is one sentence.
func (c *Calculator) readability(s *domain.TextStats) {
	words := float64(s.Words)
	letters := float64(s.Letters)
	chars := float64(s.Chars)
	syllables := float64(s.Syllables)
	sentences := 1.0

	asl := words / sentences       // average sentence length
	asw := syllables / words       // average syllables per word

	s.FleschReadingEasy = 206.836 - 1.52*asl - 65.14*asw
	s.FleschKincaidGrade = 0.5*asl + 8.4*asw - 15.59
	s.AutomatedReadabilityIndex = 6.26*(chars/words) + 0.2805*asl - 31.04
	s.ColemanLiauIndex = 0.055*(letters/words*100) - 0.35*(sentences/words*100) - 20.33
	s.SMOGIndex = 1.1*math.Sqrt(64.6/sentences*float64(s.ComplexWords)) + 0.05
	s.LIX = asl + 100*float64(s.LongWords)/words
}

func (c *Calculator) diversity(s *domain.TextStats, words []string, freq map[string]int) {
	n := float64(s.Words)
	unique := float64(s.UniqueWords)

	s.TTR = unique / n
	s.RTTR = unique / math.Sqrt(n)
	s.CTTR = unique / math.Sqrt(2*n)
	s.MATTR = movingAverageTTR(words, mattrWindow)

	if s.Words > 1 {
		var repeats float64
		for _, count := range freq {
			repeats += float64(count) * float64(count-1)
		}
		s.SimpsonIndex = 1 - repeats/(n*(n-1))
	}

	hapaxes := 0
	for _, count := range freq {
		if count == 1 {
			hapaxes++
		}
	}
	s.HapaxIndex = float64(hapaxes) / unique
}

// movingAverageTTR averages the type-token ratio over sliding windows;
// texts shorter than the window collapse to the plain TTR.
func movingAverageTTR(words []string, window int) float64 {
	if len(words) <= window {
		return windowTTR(words)
	}
	ratios := make([]float64, 0, len(words)-window+1)
	for start := 0; start+window <= len(words); start++ {
		ratios = append(ratios, windowTTR(words[start:start+window]))
	}
	return stat.Mean(ratios, nil)
}

func windowTTR(words []string) float64 {
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		seen[strings.ToLower(word)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func syllables(word string) int {
	count := 0
	for _, r := range word {
		if strings.ContainsRune(vowels, unicode.ToLower(r)) {
			count++
		}
	}
	return count
}

package transform

import (
	"regexp"
	"strings"
)

// speakerPatterns are the fixed declaration variants, tried in priority
// order: one to four capitalized name tokens ending with a colon, a fully
// quoted name, a name with a quoted part, and a parenthesized form. All are
// anchored to the paragraph start and matched case-insensitively.
var speakerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[\p{L}\p{N}_]+[\s.-][А-ЯA-Z][\p{L}\p{N}_]+:`),
	regexp.MustCompile(`(?i)^[\p{L}\p{N}_]+[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]+:`),
	regexp.MustCompile(`(?i)^[\p{L}\p{N}_]+[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]+:`),
	regexp.MustCompile(`(?i)^[\p{L}\p{N}_]+[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]*[\s.-][А-ЯA-Z][\p{L}\p{N}_]+:`),
	regexp.MustCompile(`(?i)^«.{2,50}»:`),
	regexp.MustCompile(`(?i)^.{2,40}«.{2,40}»:`),
	regexp.MustCompile(`(?i)^.{4,40}\(.+?\):`),
}

// speakerScanner carries the single piece of attribution state: the most
// recently declared speaker. Attribution is paragraph-scoped; every sentence
// of a paragraph inherits the paragraph's effective speaker.
type speakerScanner struct {
	current string
}

// attribute advances the scanner over one paragraph and returns the speaker
// effective for it: a newly declared one, or the carried-forward previous
// speaker, or empty if none has ever been declared.
func (s *speakerScanner) attribute(paragraph string) string {
	if name, ok := detectSpeaker(paragraph); ok {
		s.current = name
	}
	return s.current
}

// detectSpeaker tests the paragraph's leading text against the declaration
// variants. The first matching variant decides: its capture must contain a
// literal period (a real name/initial pattern rather than a false positive)
// for the paragraph to introduce a new speaker.
func detectSpeaker(paragraph string) (string, bool) {
	for _, re := range speakerPatterns {
		m := re.FindString(paragraph)
		if m == "" {
			continue
		}
		candidate := strings.TrimSpace(m)
		if !strings.Contains(candidate, ".") {
			return "", false
		}
		return strings.Trim(candidate, ":"), true
	}
	return "", false
}

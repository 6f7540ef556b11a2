package match

import (
	"strings"

	"SpeechCorpus/internal/domain"
)

// Penn-Treebank-style verb subtype tests over the segmenter's
// morphological attributes.

func morphEq(tok domain.Token, key, want string) bool {
	return strings.EqualFold(tok.Morph[key], want)
}

// IsVB reports a verb in base form: the surface equals the lemma.
func IsVB(tok domain.Token) bool {
	return tok.Text == tok.Lemma
}

// IsVBD reports a past-tense verb.
func IsVBD(tok domain.Token) bool {
	return morphEq(tok, "Tense", "past")
}

// IsVBG reports a gerund or present participle: converb verb form, or
// participle form in the present tense.
func IsVBG(tok domain.Token) bool {
	if morphEq(tok, "VerbForm", "conv") {
		return true
	}
	return morphEq(tok, "VerbForm", "part") && morphEq(tok, "Tense", "pres")
}

// IsVBN reports a past participle: participle verb form in the past tense.
func IsVBN(tok domain.Token) bool {
	return morphEq(tok, "VerbForm", "part") && morphEq(tok, "Tense", "past")
}

// IsVBP reports a non-3rd-person singular present verb.
func IsVBP(tok domain.Token) bool {
	return !morphEq(tok, "Person", "third") &&
		morphEq(tok, "Tense", "pres") &&
		morphEq(tok, "Number", "sing")
}

// IsVBZ reports a 3rd-person singular present verb.
func IsVBZ(tok domain.Token) bool {
	return morphEq(tok, "Person", "third") &&
		morphEq(tok, "Tense", "pres") &&
		morphEq(tok, "Number", "sing")
}

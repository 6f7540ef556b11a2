package domain

// Token is one token of a parsed sentence with the lexical, morphological,
// and dependency attributes the segmenter exposes.
type Token struct {
	Index     int
	Text      string
	Lemma     string
	POS       string // coarse UD tag: NOUN, VERB, ADJ, ...
	Dep       string // dependency label: nsubj, nsubj:pass, obj, ...
	Head      int    // index of the syntactic head within the sentence
	LeftEdge  int    // index of the left-most descendant
	RightEdge int    // index of the right-most descendant
	StartChar int    // rune offset of the token within the sentence text
	Morph     map[string]string
	IsAlpha   bool
	IsStop    bool
	IsPunct   bool
}

// EntitySpan marks a named entity as a [Start, End) token range.
type EntitySpan struct {
	Label string
	Start int
	End   int
}

// ParsedSentence is the segmenter output for a single sentence.
type ParsedSentence struct {
	Text     string
	Tokens   []Token
	Entities []EntitySpan
}

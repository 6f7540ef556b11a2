package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"SpeechCorpus/internal/domain"
)

// ErrConfiguration signals that the pattern asset is neither an existing
// file nor a non-empty directory of pattern files; fatal at startup.
var ErrConfiguration = errors.New("invalid matcher configuration")

// TokenConstraint maps a token attribute name to its required value,
// e.g. {"POS": "ADJ"}. Supported attributes: POS, DEP, LEMMA, TEXT.
type TokenConstraint map[string]string

// Rule is one named pattern: a label plus one or more ordered constraint
// sequences, each matching a contiguous token span.
type Rule struct {
	Label   string            `json:"label"`
	Pattern [][]TokenConstraint `json:"pattern"`
}

// LoadRules reads the pattern asset from a JSON file or from every *.json
// file under a directory.
func LoadRules(path string) ([]Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: patterns location should either be a non-empty dir or a file: %v", ErrConfiguration, err)
	}

	if !info.IsDir() {
		return readRuleFile(path)
	}

	var rules []Rule
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		fileRules, err := readRuleFile(p)
		if err != nil {
			return err
		}
		rules = append(rules, fileRules...)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, ErrConfiguration) {
			return nil, walkErr
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, walkErr)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no pattern files under %s", ErrConfiguration, path)
	}
	return rules, nil
}

func readRuleFile(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	return rules, nil
}

// matches reports whether the token satisfies every attribute constraint.
func (c TokenConstraint) matches(tok domain.Token) bool {
	for attr, want := range c {
		switch attr {
		case "POS":
			if tok.POS != want {
				return false
			}
		case "DEP":
			if tok.Dep != want {
				return false
			}
		case "LEMMA":
			if !strings.EqualFold(tok.Lemma, want) {
				return false
			}
		case "TEXT":
			if tok.Text != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

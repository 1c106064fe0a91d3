package score

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vigil-labs/vigil-core/internal/config"
)

// KeywordScorer matches transcribed text against ordered keyword tiers.
// Deterministic and allocation-light; it is the floor strategy and stays
// available when the classifier is not.
type KeywordScorer struct {
	terms map[string]Tier
}

func NewKeywordScorer(tiers []config.KeywordTier) *KeywordScorer {
	terms := make(map[string]Tier)
	for _, kt := range tiers {
		tier := ParseTier(kt.Tier)
		for _, term := range kt.Terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			// A term listed in two tiers keeps the higher one.
			if existing, ok := terms[term]; !ok || tier > existing {
				terms[term] = tier
			}
		}
	}
	return &KeywordScorer{terms: terms}
}

// Score returns the maximum tier of any matched keyword. Empty or
// whitespace-only text scores none.
func (k *KeywordScorer) Score(text string) Score {
	text = strings.TrimSpace(text)
	if text == "" {
		return Score{Tier: TierNone}
	}

	result := Score{Tier: TierNone}
	for _, word := range tokenize(text) {
		tier, ok := k.terms[word]
		if !ok || tier == TierNone {
			continue
		}
		if tier > result.Tier {
			result.Tier = tier
		}
		result.Evidence = append(result.Evidence, fmt.Sprintf("keyword:%s:%s", word, tier))
	}
	return result
}

// Terms reports the configured term set, used for transcript redaction.
func (k *KeywordScorer) Terms() []string {
	out := make([]string, 0, len(k.terms))
	for term := range k.terms {
		out = append(out, term)
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

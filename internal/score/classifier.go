package score

import (
	"context"
)

// Label is one classifier output head with its confidence.
type Label struct {
	Name       string  `json:"label"`
	Tier       string  `json:"tier"`
	Confidence float64 `json:"confidence"`
}

// Classifier is a pluggable ML text classifier. Implementations may
// abstain by returning no labels, for example on unrecognized-language
// input; the keyword floor still applies in that case.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Label, error)
}

// TierFromLabels folds classifier labels into a tier: the highest tier of
// any label at or above the confidence threshold, none when every label
// falls below it.
func TierFromLabels(labels []Label, threshold float64) (Tier, []string) {
	tier := TierNone
	var evidence []string
	for _, l := range labels {
		if l.Confidence < threshold {
			continue
		}
		lt := ParseTier(l.Tier)
		if lt == TierNone {
			continue
		}
		if lt > tier {
			tier = lt
		}
		evidence = append(evidence, "classifier:"+l.Name+":"+lt.String())
	}
	return tier, evidence
}

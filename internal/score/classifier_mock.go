package score

import (
	"context"
	"strings"
)

type mockClassifier struct{}

// NewMockClassifier flags text containing "hateful" as serious, useful in
// development configs without a model process.
func NewMockClassifier() Classifier {
	return mockClassifier{}
}

func (mockClassifier) Classify(_ context.Context, text string) ([]Label, error) {
	if strings.Contains(strings.ToLower(text), "hateful") {
		return []Label{{Name: "hate", Tier: "serious", Confidence: 0.9}}, nil
	}
	return nil, nil
}

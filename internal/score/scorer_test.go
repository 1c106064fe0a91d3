package score

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/vigil-labs/vigil-core/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultTiers() []config.KeywordTier {
	return []config.KeywordTier{
		{Tier: "serious", Terms: []string{"hate", "kill", "violence"}},
		{Tier: "mild", Terms: []string{"stupid", "idiot"}},
	}
}

type staticClassifier struct {
	labels []Label
	err    error
}

func (c staticClassifier) Classify(context.Context, string) ([]Label, error) {
	return c.labels, c.err
}

func TestKeywordScorer(t *testing.T) {
	k := NewKeywordScorer(defaultTiers())

	cases := []struct {
		name string
		text string
		want Tier
	}{
		{"clean", "what a lovely afternoon", TierNone},
		{"mild", "that was a stupid thing to say", TierMild},
		{"serious", "i hate everyone here", TierSerious},
		{"mixed takes max", "you stupid person, i will kill you", TierSerious},
		{"case insensitive", "I HATE this", TierSerious},
		{"substring does not match", "the whitewater rafting trip", TierNone},
		{"empty", "", TierNone},
		{"whitespace", "   \t\n", TierNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := k.Score(tc.text)
			if got.Tier != tc.want {
				t.Fatalf("Score(%q) tier = %s, want %s", tc.text, got.Tier, tc.want)
			}
			if tc.want != TierNone && len(got.Evidence) == 0 {
				t.Fatal("expected evidence for matched keywords")
			}
		})
	}
}

func TestKeywordScorerDuplicateTermKeepsHigherTier(t *testing.T) {
	k := NewKeywordScorer([]config.KeywordTier{
		{Tier: "mild", Terms: []string{"hate"}},
		{Tier: "serious", Terms: []string{"hate"}},
	})
	if got := k.Score("hate"); got.Tier != TierSerious {
		t.Fatalf("expected duplicate term to keep serious tier, got %s", got.Tier)
	}
}

func TestScorerKeywordFloor(t *testing.T) {
	// A classifier that confidently reports nothing must not lower a
	// keyword verdict.
	s := NewWithBackends(NewKeywordScorer(defaultTiers()),
		staticClassifier{labels: nil}, 0.5, testLogger())
	got := s.Score(context.Background(), "i hate this")
	if got.Tier != TierSerious {
		t.Fatalf("classifier abstention lowered keyword tier: got %s", got.Tier)
	}
}

func TestScorerClassifierRaisesTier(t *testing.T) {
	s := NewWithBackends(NewKeywordScorer(defaultTiers()),
		staticClassifier{labels: []Label{{Name: "hate", Tier: "serious", Confidence: 0.8}}},
		0.5, testLogger())
	got := s.Score(context.Background(), "coded language with no listed keyword")
	if got.Tier != TierSerious {
		t.Fatalf("expected classifier to raise tier to serious, got %s", got.Tier)
	}
}

func TestScorerClassifierBelowThresholdAbstains(t *testing.T) {
	s := NewWithBackends(NewKeywordScorer(defaultTiers()),
		staticClassifier{labels: []Label{{Name: "hate", Tier: "serious", Confidence: 0.3}}},
		0.5, testLogger())
	got := s.Score(context.Background(), "borderline text")
	if got.Tier != TierNone {
		t.Fatalf("expected below-threshold label to abstain, got %s", got.Tier)
	}
}

func TestScorerClassifierErrorDegradesToKeywords(t *testing.T) {
	s := NewWithBackends(NewKeywordScorer(defaultTiers()),
		staticClassifier{err: errors.New("model process gone")}, 0.5, testLogger())
	got := s.Score(context.Background(), "you are an idiot")
	if got.Tier != TierMild {
		t.Fatalf("expected keyword-only verdict on classifier failure, got %s", got.Tier)
	}
}

func TestScorerSkipsClassifierForEmptyText(t *testing.T) {
	s := NewWithBackends(NewKeywordScorer(defaultTiers()),
		staticClassifier{labels: []Label{{Name: "hate", Tier: "serious", Confidence: 0.9}}},
		0.5, testLogger())
	if got := s.Score(context.Background(), "   "); got.Tier != TierNone {
		t.Fatalf("expected whitespace-only text to score none, got %s", got.Tier)
	}
}

func TestTierFromLabelsTakesMax(t *testing.T) {
	tier, evidence := TierFromLabels([]Label{
		{Name: "insult", Tier: "mild", Confidence: 0.9},
		{Name: "hate", Tier: "serious", Confidence: 0.7},
		{Name: "noise", Tier: "serious", Confidence: 0.1},
	}, 0.5)
	if tier != TierSerious {
		t.Fatalf("expected serious, got %s", tier)
	}
	if len(evidence) != 2 {
		t.Fatalf("expected two qualifying labels in evidence, got %v", evidence)
	}
}

func TestParseTierUnknownMapsToNone(t *testing.T) {
	if got := ParseTier("catastrophic"); got != TierNone {
		t.Fatalf("expected unknown tier name to parse as none, got %s", got)
	}
}

package score

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vigil-labs/vigil-core/internal/config"
)

// Scorer combines the keyword floor with an optional ML classifier. The
// final tier is the maximum contributed tier: a classifier disagreement
// never suppresses a keyword hit.
type Scorer struct {
	keywords   *KeywordScorer
	classifier Classifier
	threshold  float64
	log        *slog.Logger
}

func New(cfg config.ScorerConfig, log *slog.Logger) (*Scorer, error) {
	s := &Scorer{
		keywords:  NewKeywordScorer(cfg.KeywordTiers),
		threshold: cfg.ClassifierThreshold,
		log:       log.With(slog.String("component", "scorer")),
	}

	if cfg.ClassifierEnabled {
		var err error
		switch cfg.ClassifierMode {
		case "mock":
			s.classifier = NewMockClassifier()
		case "exec":
			s.classifier, err = NewExecClassifier(cfg.ClassifierCommand)
		case "http":
			s.classifier = NewHTTPClassifier(cfg.ClassifierEndpoint)
		default:
			err = fmt.Errorf("unknown classifier mode %q", cfg.ClassifierMode)
		}
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewWithBackends wires explicit strategies, used by tests.
func NewWithBackends(keywords *KeywordScorer, classifier Classifier, threshold float64, log *slog.Logger) *Scorer {
	return &Scorer{keywords: keywords, classifier: classifier, threshold: threshold, log: log}
}

// Score evaluates text. Classifier failures degrade to keyword-only.
func (s *Scorer) Score(ctx context.Context, text string) Score {
	result := s.keywords.Score(text)

	if s.classifier == nil || strings.TrimSpace(text) == "" {
		return result
	}

	labels, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.log.Warn("classifier unavailable, keyword-only verdict", slog.String("error", err.Error()))
		return result
	}

	tier, evidence := TierFromLabels(labels, s.threshold)
	result.Tier = MaxTier(result.Tier, tier)
	result.Evidence = append(result.Evidence, evidence...)
	return result
}

// KeywordTerms exposes the configured terms for transcript redaction.
func (s *Scorer) KeywordTerms() []string {
	return s.keywords.Terms()
}

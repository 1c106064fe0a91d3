package transcribe

import (
	"fmt"
	"time"

	"github.com/vigil-labs/vigil-core/internal/config"
)

// Variant identifies one of the interchangeable recognizer builds.
type Variant string

const (
	VariantFast     Variant = "fast"
	VariantAccurate Variant = "accurate"
)

// Selector holds the fast and accurate recognizer pair and picks one per
// clip from the remaining deadline budget.
type Selector struct {
	fast        Recognizer
	accurate    Recognizer
	fastCutover time.Duration
}

// NewSelector builds the recognizer pair from config. In mock mode both
// variants are mocks; in exec mode the accurate variant falls back to the
// fast command when none is configured.
func NewSelector(cfg config.TranscriberConfig) (*Selector, error) {
	cutover := time.Duration(cfg.FastCutoverMS) * time.Millisecond

	switch cfg.Mode {
	case "mock":
		return &Selector{
			fast:        NewMockRecognizer(0),
			accurate:    NewMockRecognizer(0),
			fastCutover: cutover,
		}, nil
	case "exec":
		fast, err := NewExecRecognizer(cfg.FastCommand, cfg)
		if err != nil {
			return nil, err
		}
		accurate := fast
		if cfg.AccurateCommand != "" {
			accurate, err = NewExecRecognizer(cfg.AccurateCommand, cfg)
			if err != nil {
				return nil, err
			}
		}
		return &Selector{fast: fast, accurate: accurate, fastCutover: cutover}, nil
	default:
		return nil, fmt.Errorf("unknown transcriber mode %q", cfg.Mode)
	}
}

// NewSelectorFromRecognizers wires explicit backends, used by tests and
// library embedders.
func NewSelectorFromRecognizers(fast, accurate Recognizer, fastCutover time.Duration) *Selector {
	return &Selector{fast: fast, accurate: accurate, fastCutover: fastCutover}
}

// Pick chooses a variant for the remaining budget: the accurate build only
// when there is comfortably more time than the cutover, the fast build
// otherwise.
func (s *Selector) Pick(remaining time.Duration) (Recognizer, Variant) {
	if remaining >= s.fastCutover && s.accurate != nil {
		return s.accurate, VariantAccurate
	}
	return s.fast, VariantFast
}

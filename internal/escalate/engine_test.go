package escalate

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/score"
)

// testEngine returns an engine with a manually advanced clock.
func testEngine(t *testing.T) (*Engine, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewEngine(config.EscalationConfig{WindowMS: 30_000, CooldownMS: 60_000},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.clock = func() time.Time { return now }
	return e, &now
}

func TestSeriousTierEscalatesDirectly(t *testing.T) {
	e, _ := testEngine(t)
	obs := e.Observe("s1", score.TierSerious)
	if obs.From != StateQuiet || obs.To != StateSerious || !obs.AlertFired {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestTwoMildWithinWindowEscalate(t *testing.T) {
	e, now := testEngine(t)

	obs := e.Observe("s1", score.TierMild)
	if obs.To != StateMild || !obs.AlertFired {
		t.Fatalf("first mild: %+v", obs)
	}

	*now = now.Add(10 * time.Second)
	obs = e.Observe("s1", score.TierMild)
	if obs.From != StateMild || obs.To != StateSerious || !obs.AlertFired {
		t.Fatalf("second mild within window: %+v", obs)
	}
}

func TestMildOutsideWindowStaysMild(t *testing.T) {
	e, now := testEngine(t)

	e.Observe("s1", score.TierMild)
	*now = now.Add(45 * time.Second) // past the 30s window, within cooldown

	obs := e.Observe("s1", score.TierMild)
	if obs.From != StateMild || obs.To != StateMild || obs.AlertFired {
		t.Fatalf("stale mild should open a fresh window, not escalate: %+v", obs)
	}

	// The fresh window pairs with the next detection.
	*now = now.Add(10 * time.Second)
	if obs := e.Observe("s1", score.TierMild); obs.To != StateSerious {
		t.Fatalf("expected fresh window to pair up: %+v", obs)
	}
}

func TestNoneTierDoesNotTouchState(t *testing.T) {
	e, now := testEngine(t)
	e.Observe("s1", score.TierMild)

	*now = now.Add(5 * time.Second)
	obs := e.Observe("s1", score.TierNone)
	if obs.From != StateMild || obs.To != StateMild || obs.AlertFired {
		t.Fatalf("clean clip changed state: %+v", obs)
	}
}

func TestCooldownDecaysToQuiet(t *testing.T) {
	e, now := testEngine(t)
	e.Observe("s1", score.TierSerious)

	*now = now.Add(59 * time.Second)
	if got := e.State("s1"); got != StateSerious {
		t.Fatalf("decayed before cooldown elapsed: %s", got)
	}

	*now = now.Add(2 * time.Second)
	if got := e.State("s1"); got != StateQuiet {
		t.Fatalf("expected quiet after cooldown, got %s", got)
	}
}

func TestQualifyingDetectionResetsCooldown(t *testing.T) {
	e, now := testEngine(t)
	e.Observe("s1", score.TierSerious)

	*now = now.Add(50 * time.Second)
	obs := e.Observe("s1", score.TierMild) // keeps the session hot
	if obs.To != StateSerious || obs.AlertFired {
		t.Fatalf("detection during serious state: %+v", obs)
	}

	// 70s after the first detection but only 20s after the second.
	*now = now.Add(20 * time.Second)
	if got := e.State("s1"); got != StateSerious {
		t.Fatalf("cooldown was not reset by intervening detection: %s", got)
	}
}

func TestEscalationAfterDecayAlertsAgain(t *testing.T) {
	e, now := testEngine(t)
	e.Observe("s1", score.TierSerious)

	*now = now.Add(2 * time.Minute)
	obs := e.Observe("s1", score.TierSerious)
	if obs.From != StateQuiet || obs.To != StateSerious || !obs.AlertFired {
		t.Fatalf("expected a fresh alert after decay: %+v", obs)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	e, _ := testEngine(t)
	e.Observe("a", score.TierSerious)
	if got := e.State("b"); got != StateQuiet {
		t.Fatalf("session b inherited state from a: %s", got)
	}
}

func TestReset(t *testing.T) {
	e, _ := testEngine(t)
	e.Observe("s1", score.TierSerious)
	e.Reset("s1")
	if got := e.State("s1"); got != StateQuiet {
		t.Fatalf("expected quiet after reset, got %s", got)
	}

	// A mild detection after reset starts from scratch.
	if obs := e.Observe("s1", score.TierMild); obs.To != StateMild {
		t.Fatalf("post-reset observation: %+v", obs)
	}
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/escalate"
	"github.com/vigil-labs/vigil-core/internal/retention"
	"github.com/vigil-labs/vigil-core/internal/score"
	"github.com/vigil-labs/vigil-core/internal/transcribe"
	"github.com/vigil-labs/vigil-core/internal/vad"
)

type staticRecognizer struct {
	text string
}

func (r staticRecognizer) Transcribe(ctx context.Context, _ audio.Clip) (transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, err
	}
	return transcribe.Result{Text: r.text, Language: "en"}, nil
}

type orchestratorOptions struct {
	recognizer transcribe.Recognizer
	vadEnabled bool
	storeText  bool
}

func newTestOrchestrator(t *testing.T, opts orchestratorOptions) (*Orchestrator, retention.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.VAD.Enabled = opts.vadEnabled
	cfg.Retention.StoreTranscripts = opts.storeText

	recognizer := opts.recognizer
	if recognizer == nil {
		recognizer = transcribe.NewMockRecognizer(0)
	}
	selector := transcribe.NewSelectorFromRecognizers(recognizer, recognizer, 2*time.Second)

	scorer := score.NewWithBackends(score.NewKeywordScorer(cfg.Scorer.KeywordTiers), nil, 0.5, log)
	engine := escalate.NewEngine(cfg.Escalation, log)
	store := retention.NewMemoryStore(cfg.Retention.Capacity)

	o := NewOrchestrator(cfg, nil, vad.NewDetector(cfg.VAD), selector, scorer, engine, store, log)
	return o, store
}

// testClip builds a mono 16kHz clip of the given length; loud selects
// full-scale-ish samples so the speech detector fires, silent stays at zero.
func testClip(t *testing.T, d time.Duration, loud bool) audio.Clip {
	t.Helper()
	samples := int(d.Seconds() * 16000)
	pcm := make([]byte, samples*2)
	if loud {
		for i := 0; i < len(pcm); i += 2 {
			pcm[i] = 0x00
			pcm[i+1] = 0x20 // 8192
		}
	}
	clip, err := audio.NewClip("kitchen", pcm, 16000, 1, 0)
	if err != nil {
		t.Fatalf("build clip: %v", err)
	}
	return clip
}

func TestProcessRejectsInvalidClip(t *testing.T) {
	o, store := newTestOrchestrator(t, orchestratorOptions{})

	_, err := o.Process(context.Background(), audio.Clip{SessionID: "s1"})
	if !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("expected ErrInvalidClip, got %v", err)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("invalid input reached the retention store: %d entries", len(entries))
	}
}

func TestProcessRejectsClipShorterThanMargin(t *testing.T) {
	o, _ := newTestOrchestrator(t, orchestratorOptions{})
	clip := testClip(t, 500*time.Millisecond, false) // margin is 1s
	if _, err := o.Process(context.Background(), clip); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("expected ErrInvalidClip for sub-margin clip, got %v", err)
	}
}

func TestProcessNoSpeechShortCircuits(t *testing.T) {
	o, store := newTestOrchestrator(t, orchestratorOptions{vadEnabled: true})

	decision, err := o.Process(context.Background(), testClip(t, 3*time.Second, false))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if decision.Tier != score.TierNone || decision.AlertFired || decision.Incomplete {
		t.Fatalf("silent clip produced %+v", decision)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Tier != "none" {
		t.Fatalf("expected one none-tier audit entry, got %+v", entries)
	}
}

func TestProcessKeywordHitEscalatesAndRedacts(t *testing.T) {
	o, store := newTestOrchestrator(t, orchestratorOptions{
		recognizer: staticRecognizer{text: "i hate this place"},
		storeText:  true,
	})

	decision, err := o.Process(context.Background(), testClip(t, 3*time.Second, true))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if decision.Tier != score.TierSerious {
		t.Fatalf("expected serious tier, got %s", decision.Tier)
	}
	if !decision.AlertFired || decision.FromState != escalate.StateQuiet || decision.ToState != escalate.StateSerious {
		t.Fatalf("expected quiet→serious alert, got %+v", decision)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Transcript != "i **** this place" {
		t.Fatalf("transcript not redacted: %q", entries[0].Transcript)
	}
}

func TestProcessTranscriptionOverrunMarksIncomplete(t *testing.T) {
	o, store := newTestOrchestrator(t, orchestratorOptions{
		recognizer: transcribe.NewMockRecognizer(10 * time.Second),
	})

	clip := testClip(t, 2*time.Second, true) // 1s budget after the margin
	start := time.Now()
	decision, err := o.Process(context.Background(), clip)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !decision.Incomplete {
		t.Fatal("expected incomplete decision on transcription overrun")
	}
	if decision.Tier != score.TierNone || decision.AlertFired {
		t.Fatalf("aborted transcription leaked a verdict: %+v", decision)
	}
	// Must finish ahead of the clip's own duration, not after the
	// recognizer gives up.
	if elapsed >= clip.Duration {
		t.Fatalf("processing took %v, longer than the %v clip", elapsed, clip.Duration)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || !entries[0].Incomplete {
		t.Fatalf("expected one incomplete audit entry, got %+v", entries)
	}
}

func TestProcessTwoMildClipsEscalate(t *testing.T) {
	o, _ := newTestOrchestrator(t, orchestratorOptions{
		recognizer: staticRecognizer{text: "what a stupid idea"},
	})

	first, err := o.Process(context.Background(), testClip(t, 3*time.Second, true))
	if err != nil {
		t.Fatalf("first clip: %v", err)
	}
	if first.ToState != escalate.StateMild || !first.AlertFired {
		t.Fatalf("first mild clip: %+v", first)
	}

	second, err := o.Process(context.Background(), testClip(t, 3*time.Second, true))
	if err != nil {
		t.Fatalf("second clip: %v", err)
	}
	if second.ToState != escalate.StateSerious || !second.AlertFired {
		t.Fatalf("second mild clip within window: %+v", second)
	}
}

func TestRedactMasksCaseInsensitively(t *testing.T) {
	got := redact("I HATE hate Haters", []string{"hate"})
	want := "I **** **** ****rs"
	if got != want {
		t.Fatalf("redact = %q, want %q", got, want)
	}
}

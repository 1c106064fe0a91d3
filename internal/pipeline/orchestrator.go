package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/escalate"
	"github.com/vigil-labs/vigil-core/internal/retention"
	"github.com/vigil-labs/vigil-core/internal/score"
	"github.com/vigil-labs/vigil-core/internal/suppress"
	"github.com/vigil-labs/vigil-core/internal/transcribe"
	"github.com/vigil-labs/vigil-core/internal/vad"
)

// Decision is the per-clip verdict handed to display and alert layers.
type Decision struct {
	ClipID     string
	SessionID  string
	Tier       score.Tier
	AlertFired bool
	Incomplete bool
	Timestamp  time.Time
	Score      score.Score
	FromState  escalate.State
	ToState    escalate.State
}

// ErrInvalidClip rejects malformed input without touching session state
// or the retention store.
var ErrInvalidClip = errors.New("invalid audio clip")

// Orchestrator drives one clip through suppress → detect → transcribe →
// score → escalate under the clip's wall-clock budget. Stages that would
// blow the budget are skipped or degraded, never allowed to push the whole
// run past the deadline.
type Orchestrator struct {
	cfg         config.PipelineConfig
	suppressor  suppress.Suppressor
	minSuppress time.Duration
	detector    *vad.Detector
	selector    *transcribe.Selector
	scorer      *score.Scorer
	engine      *escalate.Engine
	store       retention.Store
	storeText   bool
	log         *slog.Logger
	clock       func() time.Time

	clipCounter    metric.Int64Counter
	timeoutCounter metric.Int64Counter
	stageLatency   metric.Float64Histogram
}

func NewOrchestrator(
	cfg config.Config,
	suppressor suppress.Suppressor,
	detector *vad.Detector,
	selector *transcribe.Selector,
	scorer *score.Scorer,
	engine *escalate.Engine,
	store retention.Store,
	log *slog.Logger,
) *Orchestrator {
	meter := otel.Meter("vigil/pipeline")
	clips, _ := meter.Int64Counter("vigil.pipeline.clips",
		metric.WithDescription("Clips processed, by resulting tier"))
	timeouts, _ := meter.Int64Counter("vigil.pipeline.stage_timeouts",
		metric.WithDescription("Stage deadline overruns"))
	latency, _ := meter.Float64Histogram("vigil.pipeline.stage_seconds",
		metric.WithDescription("Per-stage latency"))

	return &Orchestrator{
		cfg:         cfg.Pipeline,
		suppressor:  suppressor,
		minSuppress: time.Duration(cfg.Suppressor.MinBudgetMS) * time.Millisecond,
		detector:    detector,
		selector:    selector,
		scorer:      scorer,
		engine:      engine,
		store:       store,
		storeText:   cfg.Retention.StoreTranscripts,
		log:         log.With(slog.String("component", "pipeline")),
		clock:       time.Now,

		clipCounter:    clips,
		timeoutCounter: timeouts,
		stageLatency:   latency,
	}
}

// Process runs one clip to a decision. It returns before the clip's
// deadline (duration minus the configured margin) or not at all: a stage
// that cannot finish in time is cut off and the decision marked
// incomplete. Only malformed input produces an error.
func (o *Orchestrator) Process(ctx context.Context, clip audio.Clip) (Decision, error) {
	if len(clip.PCM) == 0 || len(clip.PCM)%2 != 0 || clip.SampleRate <= 0 || clip.Channels <= 0 {
		return Decision{}, fmt.Errorf("%w: %d bytes, rate %d, channels %d",
			ErrInvalidClip, len(clip.PCM), clip.SampleRate, clip.Channels)
	}

	margin := time.Duration(o.cfg.DeadlineMarginMS) * time.Millisecond
	budget := clip.Duration - margin
	if budget <= 0 {
		return Decision{}, fmt.Errorf("%w: clip shorter than deadline margin", ErrInvalidClip)
	}

	start := o.clock()
	deadline := start.Add(budget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// Noise suppression: optional, skipped when the remaining budget is
	// thin, degraded to identity on any failure.
	if o.suppressor != nil {
		if time.Until(deadline) >= o.minSuppress {
			stageStart := o.clock()
			cleaned, err := o.suppressor.Suppress(ctx, clip)
			o.recordStage(ctx, "suppress", stageStart)
			if err != nil {
				o.log.Warn("noise suppression failed, using raw clip",
					slog.String("clip", clip.ID), slog.String("error", err.Error()))
			} else {
				clip = cleaned
			}
		} else {
			o.log.Debug("skipping noise suppression, budget too thin", slog.String("clip", clip.ID))
		}
	}

	// Speech activity: the cheap short-circuit. No speech means no
	// transcription and no scoring.
	stageStart := o.clock()
	segments := o.detector.Detect(clip)
	o.recordStage(ctx, "vad", stageStart)
	if len(segments) == 0 {
		return o.finish(ctx, clip, score.Score{Tier: score.TierNone}, "", false)
	}

	// Transcription: variant chosen by remaining budget, hard-cancelled at
	// the deadline. An aborted transcription forwards nothing downstream.
	text, ok := o.transcribeSegments(ctx, clip, segments, deadline)
	if !ok {
		o.timeoutCounter.Add(ctx, 1)
		return o.finish(ctx, clip, score.Score{Tier: score.TierNone}, "", true)
	}

	// Scoring: the keyword floor is synchronous and always runs; the
	// classifier shares the deadline context and degrades on expiry.
	stageStart = o.clock()
	verdict := o.scorer.Score(ctx, text)
	o.recordStage(ctx, "score", stageStart)

	return o.finish(ctx, clip, verdict, text, false)
}

// transcribeSegments runs the speech-bearing sub-clips through the
// recognizer in order. Any overrun aborts the whole stage: partial
// transcripts are never forwarded.
func (o *Orchestrator) transcribeSegments(ctx context.Context, clip audio.Clip, segments []vad.Segment, deadline time.Time) (string, bool) {
	stageStart := o.clock()
	defer o.recordStage(ctx, "transcribe", stageStart)

	var parts []string
	for _, sub := range o.detector.Extract(clip, segments) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false
		}
		recognizer, variant := o.selector.Pick(remaining)
		result, err := recognizer.Transcribe(ctx, sub)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				o.log.Warn("transcription aborted at deadline",
					slog.String("clip", clip.ID), slog.String("variant", string(variant)))
				return "", false
			}
			o.log.Warn("transcription failed",
				slog.String("clip", clip.ID),
				slog.String("variant", string(variant)),
				slog.String("error", err.Error()))
			return "", false
		}
		if result.Text != "" {
			parts = append(parts, result.Text)
		}
	}
	return strings.Join(parts, " "), true
}

// finish applies the verdict to the session, records the bounded audit
// entry, and shapes the decision. Escalation updates and retention inserts
// happen here, in completion order, because Process runs serialized.
func (o *Orchestrator) finish(ctx context.Context, clip audio.Clip, verdict score.Score, text string, incomplete bool) (Decision, error) {
	obs := o.engine.Observe(clip.SessionID, verdict.Tier)

	decision := Decision{
		ClipID:     clip.ID,
		SessionID:  clip.SessionID,
		Tier:       verdict.Tier,
		AlertFired: obs.AlertFired,
		Incomplete: incomplete,
		Timestamp:  o.clock().UTC(),
		Score:      verdict,
		FromState:  obs.From,
		ToState:    obs.To,
	}

	entry := retention.Entry{
		ClipID:     clip.ID,
		SessionID:  clip.SessionID,
		Tier:       verdict.Tier.String(),
		AlertFired: obs.AlertFired,
		Incomplete: incomplete,
		CreatedAt:  decision.Timestamp,
	}
	if o.storeText && text != "" {
		entry.Transcript = redact(text, o.scorer.KeywordTerms())
	}
	// Recording happens outside the clip deadline: the decision is already
	// made and the audit write must not be cut off mid-insert.
	if err := o.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		if errors.Is(err, retention.ErrCapViolation) {
			return decision, err
		}
		o.log.Warn("retention record failed", slog.String("clip", clip.ID), slog.String("error", err.Error()))
	}

	o.clipCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", verdict.Tier.String()),
		attribute.Bool("incomplete", incomplete)))

	return decision, nil
}

func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time) {
	o.stageLatency.Record(ctx, o.clock().Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// redact masks configured keywords in a transcript before it is retained.
func redact(text string, terms []string) string {
	for _, term := range terms {
		if term == "" {
			continue
		}
		mask := strings.Repeat("*", len(term))
		text = replaceFold(text, term, mask)
	}
	return text
}

func replaceFold(s, old, new string) string {
	lower := strings.ToLower(s)
	old = strings.ToLower(old)
	var b strings.Builder
	for {
		i := strings.Index(lower, old)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(old):]
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vigil-labs/vigil-core/internal/alert"
	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/bus"
	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/escalate"
	"github.com/vigil-labs/vigil-core/internal/protocol"
)

// Service is the bus adapter over the orchestrator: clips arrive on the
// bus, pass one at a time through a single worker, and leave as decisions
// and alerts. Serializing the worker keeps escalation updates and
// retention inserts in clip order.
type Service struct {
	cfg     config.PipelineConfig
	bus     *bus.Client
	orch    *Orchestrator
	engine  *escalate.Engine
	emitter *alert.Emitter
	logger  *slog.Logger

	queue    chan audio.Clip
	ctx      context.Context
	cancel   context.CancelFunc
	subClips *nats.Subscription
	subReset *nats.Subscription
	wg       sync.WaitGroup
}

func NewService(parent context.Context, cfg config.PipelineConfig, busClient *bus.Client, orch *Orchestrator, engine *escalate.Engine, emitter *alert.Emitter, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:     cfg,
		bus:     busClient,
		orch:    orch,
		engine:  engine,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "pipeline-service")),
		queue:   make(chan audio.Clip, cfg.QueueDepth),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Subscribe(protocol.SubjectClipSubmitPrefix+".>", s.handleClip)
	if err != nil {
		return err
	}
	s.subClips = sub

	subReset, err := s.bus.Subscribe(protocol.SubjectSessionReset, s.handleReset)
	if err != nil {
		s.subClips.Drain()
		return err
	}
	s.subReset = subReset

	s.wg.Add(1)
	go s.worker()
	return nil
}

func (s *Service) Close() {
	if s.subClips != nil {
		_ = s.subClips.Drain()
	}
	if s.subReset != nil {
		_ = s.subReset.Drain()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.subClips != nil && s.subReset != nil
}

func (s *Service) handleClip(msg *nats.Msg) {
	var frame protocol.AudioClip
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("failed to decode clip submission", slogError(err))
		return
	}

	sessionID := frame.SessionID
	if sessionID == "" {
		sessionID = s.cfg.SessionDefault
	}
	duration := time.Duration(frame.DurationMS) * time.Millisecond
	clip, err := audio.NewClip(sessionID, frame.PCM, frame.SampleRate, frame.Channels, duration)
	if err != nil {
		s.logger.Warn("rejecting malformed clip", slogError(err))
		return
	}
	if frame.ClipID != "" {
		clip.ID = frame.ClipID
	}

	// A full queue rejects the newest clip rather than shedding an older
	// one: the escalation engine depends on ordered history.
	select {
	case s.queue <- clip:
	default:
		s.logger.Warn("pipeline queue full, rejecting clip",
			slog.String("clip", clip.ID), slog.String("session", clip.SessionID))
	}
}

func (s *Service) handleReset(msg *nats.Msg) {
	var reset protocol.SessionReset
	if err := json.Unmarshal(msg.Data, &reset); err != nil {
		s.logger.Warn("failed to decode session reset", slogError(err))
		return
	}
	if reset.SessionID == "" {
		return
	}
	s.engine.Reset(reset.SessionID)
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case clip := <-s.queue:
			s.processOne(clip)
		}
	}
}

func (s *Service) processOne(clip audio.Clip) {
	decision, err := s.orch.Process(s.ctx, clip)
	if err != nil {
		s.logger.Warn("clip processing failed",
			slog.String("clip", clip.ID), slogError(err))
		return
	}

	s.publishDecision(decision)
	if decision.AlertFired {
		a := protocol.Alert{
			SessionID: decision.SessionID,
			ClipID:    decision.ClipID,
			FromState: decision.FromState.String(),
			ToState:   decision.ToState.String(),
			Tier:      decision.Tier.String(),
			Timestamp: decision.Timestamp,
		}
		s.emitter.Emit(s.ctx, a)
		s.publishAlert(a)
	}
}

func (s *Service) publishDecision(decision Decision) {
	msg := protocol.Decision{
		ClipID:     decision.ClipID,
		SessionID:  decision.SessionID,
		Tier:       decision.Tier.String(),
		AlertFired: decision.AlertFired,
		Incomplete: decision.Incomplete,
		Timestamp:  decision.Timestamp,
		Evidence:   decision.Score.Evidence,
	}
	subject := protocol.SubjectDecisionPrefix + "." + decision.SessionID
	if err := s.bus.PublishJSON(subject, msg); err != nil {
		s.logger.Warn("failed to publish decision", slogError(err))
	}
}

func (s *Service) publishAlert(a protocol.Alert) {
	subject := protocol.SubjectAlertPrefix + "." + a.SessionID
	if err := s.bus.PublishJSON(subject, a); err != nil {
		s.logger.Warn("failed to publish alert", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

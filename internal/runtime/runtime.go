package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil-labs/vigil-core/internal/alert"
	"github.com/vigil-labs/vigil-core/internal/bus"
	"github.com/vigil-labs/vigil-core/internal/config"
	"github.com/vigil-labs/vigil-core/internal/escalate"
	"github.com/vigil-labs/vigil-core/internal/fleet"
	"github.com/vigil-labs/vigil-core/internal/natsserver"
	"github.com/vigil-labs/vigil-core/internal/pipeline"
	"github.com/vigil-labs/vigil-core/internal/retention"
	"github.com/vigil-labs/vigil-core/internal/score"
	"github.com/vigil-labs/vigil-core/internal/suppress"
	"github.com/vigil-labs/vigil-core/internal/transcribe"
	"github.com/vigil-labs/vigil-core/internal/vad"
)

// Runtime assembles the daemon: telemetry, bus, the detection pipeline,
// the fleet registry, and the HTTP surface for health and review.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	store    retention.Store
	engine   *escalate.Engine
	registry *fleet.Registry
	service  *pipeline.Service
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busCfg := r.cfg.Bus
	if url := embedded.ClientURL(); url != "" {
		busCfg.Servers = []string{url}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := retention.Open(ctx, r.cfg.Retention, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open retention store: %w", err)
	}
	defer store.Close()
	r.store = store

	scorer, err := score.New(r.cfg.Scorer, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build scorer: %w", err)
	}

	selector, err := transcribe.NewSelector(r.cfg.Transcriber)
	if err != nil {
		return fmt.Errorf("failed to build transcriber: %w", err)
	}

	suppressor, err := buildSuppressor(r.cfg.Suppressor)
	if err != nil {
		return fmt.Errorf("failed to build suppressor: %w", err)
	}

	emitter, err := alert.NewEmitter(r.cfg.Alerts, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build alert emitter: %w", err)
	}

	r.engine = escalate.NewEngine(r.cfg.Escalation, r.logger)
	detector := vad.NewDetector(r.cfg.VAD)

	orch := pipeline.NewOrchestrator(r.cfg, suppressor, detector, selector, scorer, r.engine, store, r.logger)

	r.service = pipeline.NewService(ctx, r.cfg.Pipeline, busClient, orch, r.engine, emitter, r.logger)
	if err := r.service.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline service: %w", err)
	}
	defer r.service.Close()

	registry, err := fleet.NewRegistry(ctx, r.cfg.Device, busClient, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start fleet registry: %w", err)
	}
	defer registry.Close()
	r.registry = registry

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/v1/decisions", r.handleDecisions)
	mux.HandleFunc("/v1/devices", r.handleDevices)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildSuppressor(cfg config.SuppressorConfig) (suppress.Suppressor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "exec":
		return suppress.NewExecSuppressor(cfg)
	default:
		return suppress.NewPassthrough(), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleDecisions serves the bounded audit log to review collaborators.
func (r *Runtime) handleDecisions(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		entries, err := r.store.List(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	case http.MethodDelete:
		if err := r.store.Clear(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Runtime) handleDevices(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.registry.Devices(nil))
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hushlabs/scribe/internal/bus"
	"github.com/hushlabs/scribe/internal/config"
	"github.com/hushlabs/scribe/internal/history"
	"github.com/hushlabs/scribe/internal/natsserver"
	"github.com/hushlabs/scribe/internal/transcriber"
)

// Runtime owns the process lifecycle: telemetry, bus, history store,
// transcriber service, and the health endpoints.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	service     *transcriber.Service
	busClient   *bus.Client
	ready       atomic.Bool
	wg          sync.WaitGroup
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

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()
	r.busClient = busClient

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	core, err := buildTranscriber(r.cfg.Transcriber, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build transcriber: %w", err)
	}

	service := transcriber.NewService(ctx, r.cfg.Transcriber, busClient, core, store, r.logger)
	if err := service.Start(); err != nil {
		return fmt.Errorf("failed to start transcriber service: %w", err)
	}
	defer service.Close()
	r.service = service

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
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
	r.ready.Store(false)
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

func buildTranscriber(cfg config.TranscriberConfig, logger *slog.Logger) (*transcriber.Transcriber, error) {
	var factory transcriber.RecognizerFactory
	switch cfg.Mode {
	case "exec":
		f, err := transcriber.NewExecFactory(cfg, logger)
		if err != nil {
			return nil, err
		}
		factory = f
	default:
		factory = transcriber.NewMockFactory()
	}

	var formatter transcriber.Formatter
	switch cfg.FormatMode {
	case "exec":
		f, err := transcriber.NewExecFormatter(cfg.FormatCommand)
		if err != nil {
			return nil, err
		}
		formatter = f
	default:
		formatter = transcriber.NewBasicFormatter()
	}

	auth := transcriber.NewStaticAuthorizer(transcriber.ParseAuthorizationState(cfg.Authorization))
	settings := transcriber.NewConfigSettings(cfg)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	return transcriber.New(auth, factory, formatter, settings, timeout, logger), nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() && r.service.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

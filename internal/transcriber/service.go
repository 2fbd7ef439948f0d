package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hushlabs/scribe/internal/bus"
	"github.com/hushlabs/scribe/internal/config"
	"github.com/hushlabs/scribe/internal/history"
	"github.com/hushlabs/scribe/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Service exposes the transcriber over the bus: one request message in,
// one result message out.
type Service struct {
	cfg         config.TranscriberConfig
	bus         *bus.Client
	transcriber *Transcriber
	history     *history.Store
	sub         *nats.Subscription
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *slog.Logger
	completed   metric.Int64Counter
	failed      metric.Int64Counter
}

func NewService(parent context.Context, cfg config.TranscriberConfig, busClient *bus.Client, t *Transcriber, hist *history.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:         cfg,
		bus:         busClient,
		transcriber: t,
		history:     hist,
		ctx:         ctx,
		cancel:      cancel,
		logger:      log.With(slog.String("component", "transcriber-service")),
	}

	meter := otel.Meter("github.com/hushlabs/scribe/transcriber")
	var err error
	if s.completed, err = meter.Int64Counter("scribe.transcriptions.completed",
		metric.WithDescription("Transcription requests resolved with a transcript")); err != nil {
		s.logger.Warn("failed to initialize metrics", slogError(err))
	}
	if s.failed, err = meter.Int64Counter("scribe.transcriptions.failed",
		metric.WithDescription("Transcription requests resolved with an error")); err != nil {
		s.logger.Warn("failed to initialize metrics", slogError(err))
	}

	return s
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTranscribeRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TranscribeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode transcribe request", slogError(err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(msg, req)
	}()
}

func (s *Service) process(msg *nats.Msg, req protocol.TranscribeRequest) {
	started := time.Now()
	text, err := s.transcriber.Transcribe(s.ctx, Request{AudioRef: req.AudioRef, Model: req.Model})
	elapsed := time.Since(started)

	locale := ResolveLocale(s.transcriber.settings.LanguageCode())
	result := protocol.TranscribeResult{
		RequestID:  req.RequestID,
		AudioRef:   req.AudioRef,
		Locale:     locale,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("transcription failed",
			slog.String("request_id", req.RequestID),
			slogError(err))
		s.count(s.failed, errorKind(err))
	} else {
		result.Text = text
		s.logger.Info("transcription completed",
			slog.String("request_id", req.RequestID),
			slog.Duration("elapsed", elapsed))
		s.count(s.completed, "")
	}

	s.record(req, result)
	s.publish(msg, result)
}

func (s *Service) record(req protocol.TranscribeRequest, result protocol.TranscribeResult) {
	if s.history == nil {
		return
	}
	rec := history.Record{
		RequestID:  result.RequestID,
		AudioRef:   req.AudioRef,
		Model:      req.Model,
		Locale:     result.Locale,
		Text:       result.Text,
		Error:      result.Error,
		DurationMS: result.DurationMS,
	}
	if err := s.history.Append(s.ctx, rec); err != nil {
		s.logger.Warn("failed to record transcription", slogError(err))
	}
}

func (s *Service) publish(msg *nats.Msg, result protocol.TranscribeResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal transcribe result", slogError(err))
		return
	}
	if msg.Reply != "" {
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("failed to reply with transcribe result", slogError(err))
		}
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectTranscribeResult, data); err != nil {
		s.logger.Warn("failed to publish transcribe result", slogError(err))
	}
}

func (s *Service) count(counter metric.Int64Counter, kind string) {
	if counter == nil {
		return
	}
	opts := []metric.AddOption{}
	if kind != "" {
		opts = append(opts, metric.WithAttributes(attribute.String("kind", kind)))
	}
	counter.Add(s.ctx, 1, opts...)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidModel):
		return "invalid_model"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrLocaleNotSupported):
		return "locale_not_supported"
	case errors.Is(err, ErrRecognizerUnavailable):
		return "recognizer_unavailable"
	case IsTimeout(err):
		return "timeout"
	default:
		return "transcription_failed"
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

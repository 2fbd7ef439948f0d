package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ModelNative tags the one backend this transcriber implements. Requests
// for any other model are rejected before touching a collaborator.
const ModelNative = "native"

// DefaultTimeout bounds the wait for a final recognition result.
const DefaultTimeout = 120 * time.Second

// Request asks for one audio resource to be transcribed. The audio
// reference is opaque here; its validity is the caller's problem.
type Request struct {
	AudioRef string
	Model    string
}

// Transcriber turns an audio reference into a single trimmed, optionally
// formatted transcript. One call, one result or one typed error.
type Transcriber struct {
	auth        Authorizer
	recognizers RecognizerFactory
	formatter   Formatter
	settings    Settings
	timeout     time.Duration
	logger      *slog.Logger
}

func New(auth Authorizer, recognizers RecognizerFactory, formatter Formatter, settings Settings, timeout time.Duration, logger *slog.Logger) *Transcriber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transcriber{
		auth:        auth,
		recognizers: recognizers,
		formatter:   formatter,
		settings:    settings,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "transcriber")),
	}
}

// Transcribe runs the pipeline: model gate, authorization, locale
// resolution, recognizer acquisition, bounded recognition, post-processing.
// Stages run strictly left to right; the first failure is terminal.
func (t *Transcriber) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.Model != ModelNative {
		return "", fmt.Errorf("%w: %q", ErrInvalidModel, req.Model)
	}

	state, err := t.auth.RequestAuthorization(ctx)
	if err != nil {
		return "", &TranscriptionError{Reason: err.Error()}
	}
	if state != AuthorizationGranted {
		return "", fmt.Errorf("%w: authorization state %s", ErrPermissionDenied, state)
	}

	locale := ResolveLocale(t.settings.LanguageCode())

	rec, err := t.recognizers.New(locale)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrLocaleNotSupported, locale)
	}
	if !rec.Available() {
		return "", fmt.Errorf("%w: %s", ErrRecognizerUnavailable, locale)
	}

	t.logger.Debug("submitting recognition",
		slog.String("audio_ref", req.AudioRef),
		slog.String("locale", locale))

	raw, err := t.runRecognition(ctx, rec, req.AudioRef)
	if err != nil {
		return "", err
	}

	return finalize(raw, t.settings.FormattingEnabled(), t.formatter), nil
}

type outcome struct {
	text string
	err  error
}

// runRecognition bridges the backend's callback stream into exactly one
// outcome. The first of {final result, error, deadline} wins; everything
// after the first resolution is dropped.
func (t *Transcriber) runRecognition(ctx context.Context, rec Recognizer, audioRef string) (string, error) {
	done := make(chan outcome, 1)
	var once sync.Once
	resolve := func(o outcome) {
		once.Do(func() { done <- o })
	}

	opts := RecognitionOptions{
		OnDevicePreferred: true,
		PartialResults:    false,
		TaskHint:          TaskHintDictation,
	}
	task, err := rec.Submit(audioRef, opts, func(u RecognitionUpdate) {
		switch {
		case u.Err != nil:
			resolve(outcome{err: &TranscriptionError{Reason: u.Err.Error()}})
		case u.Final:
			resolve(outcome{text: u.Text})
		default:
			// interim result, observed and discarded
			t.logger.Debug("interim result", slog.Int("len", len(u.Text)))
		}
	})
	if err != nil {
		return "", &TranscriptionError{Reason: err.Error()}
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.text, o.err
	case <-timer.C:
		task.Cancel()
		// A final result that resolved just before the timer drained
		// still wins: resolve is a no-op once the cell is filled.
		resolve(outcome{err: &TranscriptionError{Reason: timeoutReason}})
		o := <-done
		return o.text, o.err
	case <-ctx.Done():
		task.Cancel()
		resolve(outcome{err: &TranscriptionError{Reason: ctx.Err().Error()}})
		o := <-done
		return o.text, o.err
	}
}

// finalize trims the transcript and conditionally applies the formatting
// transform. Pure; never fails.
func finalize(raw string, formattingEnabled bool, formatter Formatter) string {
	text := strings.TrimSpace(raw)
	if formattingEnabled && formatter != nil {
		text = formatter.Format(text)
	}
	return text
}

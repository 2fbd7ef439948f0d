package transcriber

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingAuthorizer struct {
	state AuthorizationState
	err   error
	calls int32
}

func (a *countingAuthorizer) RequestAuthorization(_ context.Context) (AuthorizationState, error) {
	atomic.AddInt32(&a.calls, 1)
	return a.state, a.err
}

type stubFactory struct {
	recognizer Recognizer
	err        error
	calls      int32
	lastLocale string
}

func (f *stubFactory) New(locale string) (Recognizer, error) {
	atomic.AddInt32(&f.calls, 1)
	f.lastLocale = locale
	if f.err != nil {
		return nil, f.err
	}
	return f.recognizer, nil
}

type stubTask struct {
	cancelled atomic.Bool
	onCancel  func()
}

func (t *stubTask) Cancel() {
	t.cancelled.Store(true)
	if t.onCancel != nil {
		t.onCancel()
	}
}

// stubRecognizer replays scripted updates through the submission callback.
type stubRecognizer struct {
	available bool
	updates   []RecognitionUpdate
	submitErr error
	task      *stubTask
	submits   int32
	lastOpts  RecognitionOptions
}

func (r *stubRecognizer) Available() bool { return r.available }

func (r *stubRecognizer) Submit(_ string, opts RecognitionOptions, onUpdate func(RecognitionUpdate)) (RecognitionTask, error) {
	atomic.AddInt32(&r.submits, 1)
	r.lastOpts = opts
	if r.submitErr != nil {
		return nil, r.submitErr
	}
	if r.task == nil {
		r.task = &stubTask{}
	}
	go func() {
		for _, u := range r.updates {
			onUpdate(u)
		}
	}()
	return r.task, nil
}

type fixedSettings struct {
	lang       string
	formatting bool
}

func (s fixedSettings) LanguageCode() string    { return s.lang }
func (s fixedSettings) FormattingEnabled() bool { return s.formatting }

func newTranscriber(auth Authorizer, factory RecognizerFactory, formatter Formatter, settings Settings, timeout time.Duration) *Transcriber {
	return New(auth, factory, formatter, settings, timeout, newTestLogger())
}

func TestInvalidModelShortCircuits(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	factory := &stubFactory{recognizer: &stubRecognizer{available: true}}
	tr := newTranscriber(auth, factory, nil, fixedSettings{lang: "en"}, time.Second)

	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: "cloud"})
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatalf("authorizer must not be called for invalid model, got %d calls", auth.calls)
	}
	if factory.calls != 0 {
		t.Fatalf("recognizer factory must not be called for invalid model, got %d calls", factory.calls)
	}
}

func TestPermissionDenied(t *testing.T) {
	for _, state := range []AuthorizationState{AuthorizationDenied, AuthorizationRestricted, AuthorizationUndetermined} {
		auth := &countingAuthorizer{state: state}
		rec := &stubRecognizer{available: true}
		factory := &stubFactory{recognizer: rec}
		tr := newTranscriber(auth, factory, nil, fixedSettings{lang: "en"}, time.Second)

		_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("state %s: expected ErrPermissionDenied, got %v", state, err)
		}
		if auth.calls != 1 {
			t.Fatalf("state %s: expected exactly one authorization call, got %d", state, auth.calls)
		}
		if rec.submits != 0 {
			t.Fatalf("state %s: no recognition request may be submitted, got %d", state, rec.submits)
		}
	}
}

func TestAuthorizerFailureWrapped(t *testing.T) {
	auth := &countingAuthorizer{err: errors.New("prompt dismissed")}
	tr := newTranscriber(auth, &stubFactory{}, nil, fixedSettings{lang: "en"}, time.Second)

	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if !strings.Contains(te.Reason, "prompt dismissed") {
		t.Fatalf("expected original diagnostic preserved, got %q", te.Reason)
	}
}

func TestLocaleNotSupportedDistinctFromUnavailable(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}

	unsupported := &stubFactory{err: errors.New("no recognizer for locale")}
	tr := newTranscriber(auth, unsupported, nil, fixedSettings{lang: "yue"}, time.Second)
	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if !errors.Is(err, ErrLocaleNotSupported) {
		t.Fatalf("expected ErrLocaleNotSupported, got %v", err)
	}
	if errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatal("locale and availability failures must stay distinct")
	}

	offline := &stubFactory{recognizer: &stubRecognizer{available: false}}
	tr = newTranscriber(auth, offline, nil, fixedSettings{lang: "yue"}, time.Second)
	_, err = tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("expected ErrRecognizerUnavailable, got %v", err)
	}
	if errors.Is(err, ErrLocaleNotSupported) {
		t.Fatal("locale and availability failures must stay distinct")
	}
}

func TestSubmissionOptions(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	rec := &stubRecognizer{available: true, updates: []RecognitionUpdate{{Text: "ok", Final: true}}}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, time.Second)

	if _, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.lastOpts.OnDevicePreferred {
		t.Fatal("expected on-device preference")
	}
	if rec.lastOpts.PartialResults {
		t.Fatal("partial results must not be requested")
	}
	if rec.lastOpts.TaskHint != TaskHintDictation {
		t.Fatalf("expected dictation task hint, got %q", rec.lastOpts.TaskHint)
	}
}

func TestExactlyOnceResolution(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	rec := &stubRecognizer{
		available: true,
		updates: []RecognitionUpdate{
			{Text: "partial one"},
			{Text: "first final", Final: true},
			{Text: "second final", Final: true},
			{Err: errors.New("late failure")},
		},
	}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, time.Second)

	got, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first final" {
		t.Fatalf("expected first final result to win, got %q", got)
	}
}

func TestErrorBeforeFinalWins(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	rec := &stubRecognizer{
		available: true,
		updates: []RecognitionUpdate{
			{Err: errors.New("decoder blew up")},
			{Text: "too late", Final: true},
		},
	}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, time.Second)

	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if !strings.Contains(te.Reason, "decoder blew up") {
		t.Fatalf("expected underlying message preserved, got %q", te.Reason)
	}
}

func TestTimeoutCancelsTask(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	task := &stubTask{}
	rec := &stubRecognizer{available: true, task: task} // never emits
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, 50*time.Millisecond)

	started := time.Now()
	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Fatalf("timeout fired too early after %v", elapsed)
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	var te *TranscriptionError
	if !errors.As(err, &te) || te.Reason != "Timed out waiting for final result" {
		t.Fatalf("expected fixed timeout reason, got %v", err)
	}
	if !task.cancelled.Load() {
		t.Fatal("expected cancellation to be issued to the task")
	}
}

func TestFinalArrivingDuringCancellationWins(t *testing.T) {
	// The final result lands after cancellation was requested but before
	// it takes effect; first resolution still wins.
	auth := &countingAuthorizer{state: AuthorizationGranted}
	var emit func(RecognitionUpdate)
	task := &stubTask{}
	task.onCancel = func() {
		emit(RecognitionUpdate{Text: "made it", Final: true})
	}
	rec := &hookRecognizer{task: task, hook: func(onUpdate func(RecognitionUpdate)) { emit = onUpdate }}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, 20*time.Millisecond)

	got, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if err != nil {
		t.Fatalf("expected the final result to win the race, got %v", err)
	}
	if got != "made it" {
		t.Fatalf("unexpected text %q", got)
	}
}

// hookRecognizer hands the test direct control over the update callback.
type hookRecognizer struct {
	task *stubTask
	hook func(onUpdate func(RecognitionUpdate))
}

func (r *hookRecognizer) Available() bool { return true }

func (r *hookRecognizer) Submit(_ string, _ RecognitionOptions, onUpdate func(RecognitionUpdate)) (RecognitionTask, error) {
	r.hook(onUpdate)
	return r.task, nil
}

func TestContextCancellationCancelsTask(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	task := &stubTask{}
	rec := &stubRecognizer{available: true, task: task}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := tr.Transcribe(ctx, Request{AudioRef: "a.wav", Model: ModelNative})
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if !task.cancelled.Load() {
		t.Fatal("expected cancellation to be issued to the task")
	}
}

func TestSubmitFailureWrapped(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	rec := &stubRecognizer{available: true, submitErr: errors.New("audio unreadable")}
	tr := newTranscriber(auth, &stubFactory{recognizer: rec}, nil, fixedSettings{lang: "en"}, time.Second)

	_, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	var te *TranscriptionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranscriptionError, got %v", err)
	}
	if !strings.Contains(te.Reason, "audio unreadable") {
		t.Fatalf("expected original diagnostic, got %q", te.Reason)
	}
}

func TestFinalizeTrimsAndFormats(t *testing.T) {
	if got := finalize("  hello world \n", false, NewBasicFormatter()); got != "hello world" {
		t.Fatalf("expected trim only, got %q", got)
	}
	if got := finalize("  hello world \n", true, NewBasicFormatter()); got != "Hello world." {
		t.Fatalf("expected formatted text, got %q", got)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	formatter := NewBasicFormatter()
	for _, input := range []string{" hello there ", "\n\tBonjour le monde.\n", "ok?", ""} {
		once := finalize(input, true, formatter)
		twice := finalize(once, true, formatter)
		if once != twice {
			t.Fatalf("finalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestEndToEndFrenchTrimOnly(t *testing.T) {
	auth := &countingAuthorizer{state: AuthorizationGranted}
	rec := &stubRecognizer{
		available: true,
		updates:   []RecognitionUpdate{{Text: " bonjour le monde  ", Final: true}},
	}
	factory := &stubFactory{recognizer: rec}
	tr := newTranscriber(auth, factory, NewBasicFormatter(), fixedSettings{lang: "fr", formatting: false}, time.Second)

	got, err := tr.Transcribe(context.Background(), Request{AudioRef: "a.wav", Model: ModelNative})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if factory.lastLocale != "fr-FR" {
		t.Fatalf("expected locale fr-FR, got %q", factory.lastLocale)
	}
	if got != "bonjour le monde" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
	if auth.calls != 1 {
		t.Fatalf("expected one authorization call, got %d", auth.calls)
	}
}

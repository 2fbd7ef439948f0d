package transcriber

// TaskHintDictation asks the backend to optimize for long-form free
// speech rather than short commands.
const TaskHintDictation = "dictation"

// RecognitionOptions carries the submission preferences handed to the
// recognizer backend.
type RecognitionOptions struct {
	OnDevicePreferred bool
	PartialResults    bool
	TaskHint          string
}

// RecognitionUpdate is one callback invocation from the backend. Either
// Err is set, or Text carries a transcription that may still be interim.
type RecognitionUpdate struct {
	Text  string
	Final bool
	Err   error
}

// RecognitionTask is an in-flight recognition request. Cancel is
// best-effort; the backend may still deliver updates after it returns.
type RecognitionTask interface {
	Cancel()
}

// Recognizer is a validated handle onto the speech backend for one locale.
// Submit may invoke the callback zero or more times, from any goroutine,
// and makes no promise to stop after a final update.
type Recognizer interface {
	Available() bool
	Submit(audioRef string, opts RecognitionOptions, onUpdate func(RecognitionUpdate)) (RecognitionTask, error)
}

// RecognizerFactory constructs recognizers. New fails when the backend
// cannot serve the requested locale.
type RecognizerFactory interface {
	New(locale string) (Recognizer, error)
}

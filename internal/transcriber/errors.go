package transcriber

import "errors"

var (
	// ErrInvalidModel means the caller asked for a backend this
	// transcriber does not implement.
	ErrInvalidModel = errors.New("requested transcription model is not supported")

	// ErrPermissionDenied means authorization resolved to anything other
	// than granted.
	ErrPermissionDenied = errors.New("speech recognition permission denied")

	// ErrLocaleNotSupported means the backend refused to construct a
	// recognizer for the resolved locale.
	ErrLocaleNotSupported = errors.New("locale not supported by recognizer")

	// ErrRecognizerUnavailable means a recognizer was constructed but is
	// not currently usable.
	ErrRecognizerUnavailable = errors.New("recognizer is not currently available")
)

// timeoutReason is the fixed diagnostic for the recognition deadline.
const timeoutReason = "Timed out waiting for final result"

// TranscriptionError wraps failures surfaced during recognition itself,
// preserving the backend's original diagnostic text.
type TranscriptionError struct {
	Reason string
}

func (e *TranscriptionError) Error() string {
	return "transcription failed: " + e.Reason
}

// IsTimeout reports whether err is the recognition deadline expiring.
func IsTimeout(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te) && te.Reason == timeoutReason
}

package protocol

import "time"

// TranscribeRequest asks the transcriber service to process one audio file.
type TranscribeRequest struct {
	RequestID string `json:"request_id"`
	AudioRef  string `json:"audio_ref"`
	Model     string `json:"model"`
}

// TranscribeResult carries the outcome back on the bus. Exactly one of
// Text or Error is meaningful.
type TranscribeResult struct {
	RequestID  string    `json:"request_id"`
	AudioRef   string    `json:"audio_ref"`
	Text       string    `json:"text,omitempty"`
	Error      string    `json:"error,omitempty"`
	Locale     string    `json:"locale,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectTranscribeRequest = "transcribe.request"
	SubjectTranscribeResult  = "transcribe.result"
)

package transcriber

import (
	"fmt"
	"sync"
	"time"
)

type mockFactory struct{}

// NewMockFactory returns a factory whose recognizers emit one interim and
// one final canned transcript. Useful for wiring tests and demo setups.
func NewMockFactory() RecognizerFactory {
	return &mockFactory{}
}

func (f *mockFactory) New(locale string) (Recognizer, error) {
	return &mockRecognizer{locale: locale}, nil
}

type mockRecognizer struct {
	locale string
}

func (m *mockRecognizer) Available() bool { return true }

func (m *mockRecognizer) Submit(audioRef string, _ RecognitionOptions, onUpdate func(RecognitionUpdate)) (RecognitionTask, error) {
	stop := make(chan struct{})
	go func() {
		select {
		case <-stop:
			return
		case <-time.After(10 * time.Millisecond):
		}
		onUpdate(RecognitionUpdate{Text: fmt.Sprintf("[interim %s %s]", m.locale, audioRef)})
		select {
		case <-stop:
			return
		case <-time.After(10 * time.Millisecond):
		}
		onUpdate(RecognitionUpdate{Text: fmt.Sprintf("[mock transcript %s %s]", m.locale, audioRef), Final: true})
	}()
	return &mockTask{stop: stop}, nil
}

type mockTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *mockTask) Cancel() {
	t.once.Do(func() { close(t.stop) })
}

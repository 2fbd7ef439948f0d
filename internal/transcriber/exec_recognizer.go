package transcriber

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hushlabs/scribe/internal/config"
	"github.com/mattn/go-shellwords"
)

type execFactory struct {
	cmd     []string
	cfg     config.TranscriberConfig
	locales map[string]struct{}
	logger  *slog.Logger
}

type execUpdate struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	Error string `json:"error,omitempty"`
}

// NewExecFactory builds recognizers around an external command that reads
// an audio file and streams NDJSON updates {"text":..., "final":...} on
// stdout until the final one.
func NewExecFactory(cfg config.TranscriberConfig, logger *slog.Logger) (RecognizerFactory, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognizer command is empty")
	}

	locales := make(map[string]struct{})
	if len(cfg.Locales) > 0 {
		for _, l := range cfg.Locales {
			locales[l] = struct{}{}
		}
	} else {
		for _, l := range localeTable {
			locales[l] = struct{}{}
		}
	}

	return &execFactory{
		cmd:     args,
		cfg:     cfg,
		locales: locales,
		logger:  logger.With(slog.String("component", "exec-recognizer")),
	}, nil
}

func (f *execFactory) New(locale string) (Recognizer, error) {
	if _, ok := f.locales[locale]; !ok {
		return nil, fmt.Errorf("recognizer cannot be constructed for locale %s", locale)
	}
	return &execRecognizer{factory: f, locale: locale}, nil
}

type execRecognizer struct {
	factory *execFactory
	locale  string
}

// Available checks that the configured model is actually on disk. A
// recognizer for a supported locale can still be unusable when the model
// file has not been installed yet.
func (r *execRecognizer) Available() bool {
	if r.factory.cfg.ModelPath == "" {
		return true
	}
	info, err := os.Stat(r.factory.cfg.ModelPath)
	return err == nil && !info.IsDir()
}

func (r *execRecognizer) Submit(audioRef string, opts RecognitionOptions, onUpdate func(RecognitionUpdate)) (RecognitionTask, error) {
	r.probeAudio(audioRef)

	args := append([]string{}, r.factory.cmd[1:]...)
	args = append(args, "--audio", audioRef, "--locale", r.locale)
	if r.factory.cfg.ModelPath != "" {
		args = append(args, "--model", r.factory.cfg.ModelPath)
	}
	if opts.OnDevicePreferred {
		args = append(args, "--on-device")
	}
	if opts.PartialResults {
		args = append(args, "--partial")
	}
	if opts.TaskHint != "" {
		args = append(args, "--task", opts.TaskHint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	command := exec.CommandContext(ctx, r.factory.cmd[0], args...)
	stdout, err := command.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("recognizer stdout: %w", err)
	}
	var stderr strings.Builder
	command.Stderr = &stderr

	if err := command.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start recognizer: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var u execUpdate
			if err := json.Unmarshal([]byte(line), &u); err != nil {
				onUpdate(RecognitionUpdate{Err: fmt.Errorf("decode recognizer update: %w", err)})
				break
			}
			if u.Error != "" {
				onUpdate(RecognitionUpdate{Err: fmt.Errorf("%s", u.Error)})
				continue
			}
			onUpdate(RecognitionUpdate{Text: u.Text, Final: u.Final})
		}
		if err := command.Wait(); err != nil && ctx.Err() == nil {
			onUpdate(RecognitionUpdate{Err: fmt.Errorf("recognizer command failed: %w: %s", err, stderr.String())})
		}
	}()

	return &execTask{cancel: cancel}, nil
}

// probeAudio peeks at WAV inputs for diagnostics. Failures are logged and
// ignored; audio validity stays the caller's responsibility.
func (r *execRecognizer) probeAudio(audioRef string) {
	file, err := os.Open(audioRef)
	if err != nil {
		r.factory.logger.Debug("audio probe skipped", slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return
	}
	dur, err := dec.Duration()
	if err != nil {
		return
	}
	r.factory.logger.Debug("audio probed",
		slog.String("audio_ref", audioRef),
		slog.Duration("duration", dur),
		slog.Int("sample_rate", int(dec.SampleRate)),
		slog.Int("channels", int(dec.NumChans)))
}

type execTask struct {
	cancel context.CancelFunc
}

func (t *execTask) Cancel() {
	t.cancel()
}

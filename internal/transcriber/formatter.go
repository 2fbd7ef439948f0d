package transcriber

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-shellwords"
)

// Formatter applies the external text-formatting transform. Format must be
// total: implementations return their input unchanged when they cannot
// improve it.
type Formatter interface {
	Format(text string) string
}

type basicFormatter struct{}

// NewBasicFormatter returns the built-in transform: capitalize the first
// letter and close the sentence with a period. Idempotent.
func NewBasicFormatter() Formatter {
	return &basicFormatter{}
}

func (f *basicFormatter) Format(text string) string {
	if text == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(text)
	out := string(unicode.ToUpper(r)) + text[size:]
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "?") && !strings.HasSuffix(out, "!") {
		out += "."
	}
	return out
}

type execFormatter struct {
	cmd []string
	mu  sync.Mutex
}

// NewExecFormatter wraps an external command that reads raw text on stdin
// and writes formatted text to stdout.
func NewExecFormatter(command string) (Formatter, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse format command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("format command is empty")
	}
	return &execFormatter{cmd: args}, nil
}

func (f *execFormatter) Format(text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	command := exec.Command(f.cmd[0], f.cmd[1:]...)
	command.Stdin = strings.NewReader(text)
	var stdout bytes.Buffer
	command.Stdout = &stdout
	if err := command.Run(); err != nil {
		return text
	}
	out := strings.TrimRight(stdout.String(), "\n")
	if out == "" {
		return text
	}
	return out
}

package transcriber

import "testing"

func TestBasicFormatter(t *testing.T) {
	f := NewBasicFormatter()
	cases := map[string]string{
		"hello world":       "Hello world.",
		"Hello world.":      "Hello world.",
		"is it done?":       "Is it done?",
		"stop!":             "Stop!",
		"":                  "",
		"bonjour le monde":  "Bonjour le monde.",
		"Bonjour le monde.": "Bonjour le monde.",
	}
	for in, want := range cases {
		if got := f.Format(in); got != want {
			t.Fatalf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExecFormatterPassthrough(t *testing.T) {
	f, err := NewExecFormatter("cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Format("hello world"); got != "hello world" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestExecFormatterFallsBackOnFailure(t *testing.T) {
	f, err := NewExecFormatter("/bin/false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.Format("unchanged"); got != "unchanged" {
		t.Fatalf("expected input back on command failure, got %q", got)
	}
}

func TestExecFormatterRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecFormatter(""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

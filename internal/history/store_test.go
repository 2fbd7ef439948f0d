package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/hushlabs/scribe/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg config.HistoryConfig) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "history.db")
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openStore(t, config.HistoryConfig{})

	if err := s.Append(context.Background(), Record{
		RequestID:  "req-1",
		AudioRef:   "/tmp/a.wav",
		Model:      "native",
		Locale:     "fr-FR",
		Text:       "bonjour le monde",
		DurationMS: 1200,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Record{
		RequestID: "req-2",
		AudioRef:  "/tmp/b.wav",
		Model:     "native",
		Locale:    "en-US",
		Error:     "transcription failed: boom",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RequestID != "req-2" {
		t.Fatalf("expected newest first, got %q", records[0].RequestID)
	}
	if records[1].Text != "bonjour le monde" {
		t.Fatalf("unexpected text: %q", records[1].Text)
	}
}

func TestPruneByDaysAndRecords(t *testing.T) {
	s := openStore(t, config.HistoryConfig{RetentionDays: 1, MaxRecords: 2})

	old := time.Now().Add(-48 * time.Hour).UTC()
	if err := s.Append(context.Background(), Record{AudioRef: "old.wav", CreatedAt: old}); err != nil {
		t.Fatalf("append old: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Append(context.Background(), Record{AudioRef: "new.wav"}); err != nil {
			t.Fatalf("append new: %v", err)
		}
	}

	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records after prune, got %d", len(records))
	}
	for _, r := range records {
		if r.AudioRef == "old.wav" {
			t.Fatal("expected aged-out record to be pruned")
		}
	}
}

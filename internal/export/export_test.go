// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/confidant/internal/model"
)

func sampleTranscript() *Transcript {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &Transcript{
		Persona:        model.Persona{ID: "kai", Name: "Kai", Title: "The Tech Wizard"},
		User:           model.User{ID: 7, Username: "ann"},
		ConversationID: "42",
		ExportedAt:     at.Add(time.Hour),
		Messages: []model.Message{
			{ID: "1", Sender: model.SenderUser, Text: "How do goroutines work?", CreatedAt: at, Status: model.StatusConfirmed},
			{ID: "2", Sender: model.SenderPersona, Text: "```go\ngo f()\n```", CreatedAt: at.Add(time.Minute), Status: model.StatusConfirmed},
			{ID: "3", Sender: model.SenderUser, Text: "never sent", CreatedAt: at.Add(2 * time.Minute), Status: model.StatusFailed, Failure: "offline"},
			{ID: "4", Sender: model.SenderUser, Text: "in flight", CreatedAt: at.Add(3 * time.Minute), Status: model.StatusPending},
		},
	}
}

func TestMarkdownExport(t *testing.T) {
	data, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"title: Conversation with Kai",
		"persona: kai",
		"conversation_id: 42",
		"messages: 2",
		"# Conversation with Kai",
		"### ann <sub>",
		"### Kai <sub>",
		"```go\ngo f()\n```",
		"generator: confidant",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(out, "never sent") || strings.Contains(out, "in flight") {
		t.Error("undelivered messages must be left out by default")
	}
}

func TestMarkdownExport_IncludeFailed(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeFailed = true
	opts.IncludeTimestamps = false

	data, err := NewMarkdownExporter(opts).Export(sampleTranscript())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "Not delivered: offline") {
		t.Error("failed message should carry its reason")
	}
	if strings.Contains(out, "in flight") {
		t.Error("pending messages are never exported")
	}
	if strings.Contains(out, "<sub>10:") {
		t.Error("timestamps were disabled")
	}
}

func TestJSONExport(t *testing.T) {
	data, err := NewJSONExporter(nil).Export(sampleTranscript())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var got Transcript
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Persona.ID != "kai" || got.ConversationID != "42" {
		t.Errorf("unexpected header: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("want 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].Sender != model.SenderPersona {
		t.Errorf("sender lost: %q", got.Messages[1].Sender)
	}
}

func TestExport_Empty(t *testing.T) {
	tr := sampleTranscript()
	tr.Messages = tr.Messages[3:]

	for _, e := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		if _, err := e.Export(tr); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("%T: want ErrEmptyTranscript, got %v", e, err)
		}
	}
	if _, err := NewMarkdownExporter(nil).Export(nil); err == nil {
		t.Error("nil transcript should fail")
	}
}

func TestForFormat(t *testing.T) {
	tests := map[string]string{"": ".md", "md": ".md", "Markdown": ".md", ".json": ".json"}
	for name, ext := range tests {
		e, err := ForFormat(name, nil)
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", name, err)
		}
		if e.FileExtension() != ext {
			t.Errorf("ForFormat(%q) = %s, want %s", name, e.FileExtension(), ext)
		}
	}
	if _, err := ForFormat("html", nil); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("want ErrUnknownFormat, got %v", err)
	}
}

func TestToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "exports")

	path, err := ToFile(sampleTranscript(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	if filepath.Base(path) != "kai_"+sampleTranscript().ExportedAt.Format("20060102_150405")+".md" {
		t.Errorf("unexpected file name %s", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("want 0600, got %o", perm)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"kai":          "kai",
		"a/b\\c:d":     "a-b-c-d",
		"two words":    "two_words",
		"":             "conversation",
		"bell\x07ring": "bell-ring",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeYAML(t *testing.T) {
	if got := escapeYAML("plain"); got != "plain" {
		t.Errorf("plain value changed: %q", got)
	}
	if got := escapeYAML("a: b\nc"); got != `"a: b\nc"` {
		t.Errorf("newline must be escaped inside quotes, got %q", got)
	}
	if got := escapeYAML(`back\slash`); got != `"back\\slash"` {
		t.Errorf("backslash must be doubled, got %q", got)
	}
}

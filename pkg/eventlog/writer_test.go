package eventlog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"toolflow/pkg/pipeline"
)

func TestAppendAndReadEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close() //nolint:errcheck

	events := []pipeline.Event{
		{Timestamp: time.Now().UTC(), Type: pipeline.EventWorkflowStart, Entities: 2},
		{Timestamp: time.Now().UTC(), Type: pipeline.EventStepSuccess, Entity: "pi+", StepID: "search", Tool: "search_particle"},
		{Timestamp: time.Now().UTC(), Type: pipeline.EventWorkflowEnd, Succeeded: 2},
	}
	for _, ev := range events {
		if err := w.Append(ev); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := ReadEvents(w.CurrentFile())
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	if got[0].Type != pipeline.EventWorkflowStart {
		t.Errorf("first event type = %s, want %s", got[0].Type, pipeline.EventWorkflowStart)
	}
	if got[1].Entity != "pi+" || got[1].StepID != "search" {
		t.Errorf("second event = %+v, missing entity/step fields", got[1])
	}
	if got[2].Succeeded != 2 {
		t.Errorf("final event succeeded = %d, want 2", got[2].Succeeded)
	}
}

func TestCurrentFileUsesDateNaming(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	defer w.Close() //nolint:errcheck

	want := filepath.Join(dir, fmt.Sprintf("events-%s.jsonl", time.Now().Format("2006-01-02")))
	if got := w.CurrentFile(); got != want {
		t.Errorf("CurrentFile = %s, want %s", got, want)
	}
}

func TestListLogFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Append(pipeline.Event{Type: pipeline.EventWorkflowStart}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	files, err := ListLogFiles(dir)
	if err != nil {
		t.Fatalf("ListLogFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("found %d log files, want 1", len(files))
	}
}

func TestAppendAfterClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Append reopens the day's file via rotation.
	if err := w.Append(pipeline.Event{Type: pipeline.EventWorkflowEnd}); err != nil {
		t.Fatalf("Append after close failed: %v", err)
	}
	_ = w.Close()
}

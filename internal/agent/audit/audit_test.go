package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func readEvents(t *testing.T, logPath string) []Event {
	t.Helper()

	file, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var events []Event
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Errorf("failed to unmarshal event: %v", err)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning log file: %v", err)
	}
	return events
}

func TestLogger_WriteEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	logger, err := NewLogger(logPath, "test-session-123")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	if err := logger.LogSessionStart("Acme", "gemini", "gemini-2.5-flash"); err != nil {
		t.Errorf("LogSessionStart failed: %v", err)
	}
	if err := logger.LogModelRequest(1, 120, 40, "tool_use", []string{"get_jobs"}); err != nil {
		t.Errorf("LogModelRequest failed: %v", err)
	}
	if err := logger.LogToolStart("get_jobs", json.RawMessage(`{"company":"Acme"}`)); err != nil {
		t.Errorf("LogToolStart failed: %v", err)
	}
	if err := logger.LogToolComplete("get_jobs", true, 100, "Found 3 job postings."); err != nil {
		t.Errorf("LogToolComplete failed: %v", err)
	}
	if err := logger.LogMetricsComputed("Computed metrics for Acme"); err != nil {
		t.Errorf("LogMetricsComputed failed: %v", err)
	}
	if err := logger.LogReportViolations([]string{"company: must be set"}, true); err != nil {
		t.Errorf("LogReportViolations failed: %v", err)
	}
	if err := logger.LogError(errors.New("test error")); err != nil {
		t.Errorf("LogError failed: %v", err)
	}
	if err := logger.LogSessionEnd("completed", 3, 500, 200); err != nil {
		t.Errorf("LogSessionEnd failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	events := readEvents(t, logPath)

	expectedTypes := []EventType{
		EventTypeSessionStart,
		EventTypeModelRequest,
		EventTypeToolStart,
		EventTypeToolComplete,
		EventTypeMetricsComputed,
		EventTypeReportViolations,
		EventTypeError,
		EventTypeSessionEnd,
	}

	if len(events) != len(expectedTypes) {
		t.Fatalf("expected %d events, got %d", len(expectedTypes), len(events))
	}

	for i, expected := range expectedTypes {
		if events[i].Type != expected {
			t.Errorf("event %d: expected type %s, got %s", i, expected, events[i].Type)
		}
		if events[i].SessionID != "test-session-123" {
			t.Errorf("event %d: expected session ID test-session-123, got %s", i, events[i].SessionID)
		}
	}

	if events[0].Data["company"] != "Acme" {
		t.Errorf("session start: expected company Acme, got %v", events[0].Data["company"])
	}
	if events[1].Data["total_tokens"] != float64(160) {
		t.Errorf("model request: expected total_tokens 160, got %v", events[1].Data["total_tokens"])
	}
	if events[2].Data["tool_name"] != "get_jobs" {
		t.Errorf("tool start: expected tool_name get_jobs, got %v", events[2].Data["tool_name"])
	}
	if events[3].Data["success"] != true {
		t.Errorf("tool complete: expected success true, got %v", events[3].Data["success"])
	}
	if events[6].Data["error"] != "test error" {
		t.Errorf("error: expected error 'test error', got %v", events[6].Data["error"])
	}
	if events[7].Data["outcome"] != "completed" {
		t.Errorf("session end: expected outcome completed, got %v", events[7].Data["outcome"])
	}
}

func TestLogger_NilReceiverDiscardsEvents(t *testing.T) {
	var logger *Logger

	if err := logger.LogSessionStart("Acme", "gemini", "gemini-2.5-flash"); err != nil {
		t.Errorf("LogSessionStart on nil logger: %v", err)
	}
	if err := logger.LogModelRequest(1, 120, 40, "tool_use", []string{"get_jobs"}); err != nil {
		t.Errorf("LogModelRequest on nil logger: %v", err)
	}
	if err := logger.LogToolStart("get_jobs", json.RawMessage(`{"company":"Acme"}`)); err != nil {
		t.Errorf("LogToolStart on nil logger: %v", err)
	}
	if err := logger.LogToolComplete("get_jobs", true, 100, "Found 3 job postings."); err != nil {
		t.Errorf("LogToolComplete on nil logger: %v", err)
	}
	if err := logger.LogMetricsComputed("Computed metrics for Acme"); err != nil {
		t.Errorf("LogMetricsComputed on nil logger: %v", err)
	}
	if err := logger.LogReportViolations([]string{"company: must be set"}, false); err != nil {
		t.Errorf("LogReportViolations on nil logger: %v", err)
	}
	if err := logger.LogError(errors.New("test error")); err != nil {
		t.Errorf("LogError on nil logger: %v", err)
	}
	if err := logger.LogSessionEnd("completed", 3, 500, 200); err != nil {
		t.Errorf("LogSessionEnd on nil logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

func TestLogger_Append(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	logger1, err := NewLogger(logPath, "session-1")
	if err != nil {
		t.Fatalf("failed to create logger 1: %v", err)
	}
	if err := logger1.LogSessionStart("Acme", "gemini", "gemini-2.5-flash"); err != nil {
		t.Errorf("LogSessionStart failed: %v", err)
	}
	if err := logger1.Close(); err != nil {
		t.Fatalf("failed to close logger 1: %v", err)
	}

	logger2, err := NewLogger(logPath, "session-2")
	if err != nil {
		t.Fatalf("failed to create logger 2: %v", err)
	}
	if err := logger2.LogSessionStart("Globex", "gemini", "gemini-2.5-flash"); err != nil {
		t.Errorf("LogSessionStart failed: %v", err)
	}
	if err := logger2.Close(); err != nil {
		t.Fatalf("failed to close logger 2: %v", err)
	}

	events := readEvents(t, logPath)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].SessionID != "session-1" {
		t.Errorf("first event: expected session-1, got %s", events[0].SessionID)
	}
	if events[1].SessionID != "session-2" {
		t.Errorf("second event: expected session-2, got %s", events[1].SessionID)
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	logger, err := NewLogger(logPath, "test-session")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				_ = logger.LogToolComplete("get_news", true, 5, "Found 1 news articles.")
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	events := readEvents(t, logPath)
	if len(events) != 100 {
		t.Errorf("expected 100 events, got %d", len(events))
	}
}

// Package audit provides audit logging for analysis sessions. It captures
// session events (model requests, tool calls, report outcomes) to a JSONL
// file for debugging, analysis, and reproducibility.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeSessionStart marks the start of a new session.
	EventTypeSessionStart EventType = "session_start"
	// EventTypeModelRequest logs each model request with token usage.
	EventTypeModelRequest EventType = "model_request"
	// EventTypeToolStart marks the start of a tool call.
	EventTypeToolStart EventType = "tool_start"
	// EventTypeToolComplete marks the completion of a tool call.
	EventTypeToolComplete EventType = "tool_complete"
	// EventTypeMetricsComputed logs the correlation metrics digest.
	EventTypeMetricsComputed EventType = "metrics_computed"
	// EventTypeReportViolations logs structural problems in a final answer.
	EventTypeReportViolations EventType = "report_violations"
	// EventTypeError marks an error during processing.
	EventTypeError EventType = "error"
	// EventTypeSessionEnd marks the end of a session with its outcome.
	EventTypeSessionEnd EventType = "session_end"
)

// Event represents a single audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	// Data contains event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file. A nil *Logger is valid and
// discards every event, so sessions without an audit destination skip the
// concern entirely.
type Logger struct {
	file      *os.File
	writer    *bufio.Writer
	mutex     sync.Mutex
	sessionID string
}

// NewLogger creates a new audit logger that writes to the specified file
// path. If the file exists, new events are appended.
func NewLogger(filePath, sessionID string) (*Logger, error) {
	// #nosec G304 -- Audit log path is intentionally configurable by user
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:      file,
		writer:    bufio.NewWriter(file),
		sessionID: sessionID,
	}, nil
}

// write writes an event to the audit log.
func (l *Logger) write(event Event) error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately for crash safety
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}

	return nil
}

// LogSessionStart logs the start of a new session.
func (l *Logger) LogSessionStart(company, providerName, model string) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionStart,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"company":  company,
			"provider": providerName,
			"model":    model,
		},
	})
}

// LogModelRequest logs an individual model request with token usage.
func (l *Logger) LogModelRequest(iteration, inputTokens, outputTokens int, stopReason string, toolCalls []string) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeModelRequest,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"iteration":     iteration,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
			"stop_reason":   stopReason,
			"tool_calls":    toolCalls,
		},
	})
}

// LogToolStart logs the start of a tool call.
func (l *Logger) LogToolStart(toolName string, input json.RawMessage) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolStart,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"tool_name": toolName,
			"input":     json.RawMessage(input),
		},
	})
}

// LogToolComplete logs the completion of a tool call.
func (l *Logger) LogToolComplete(toolName string, success bool, durationMs int64, summary string) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolComplete,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"tool_name":   toolName,
			"success":     success,
			"duration_ms": durationMs,
			"summary":     summary,
		},
	})
}

// LogMetricsComputed logs the correlation digest handed to the model.
func (l *Logger) LogMetricsComputed(digest string) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeMetricsComputed,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"digest": truncateString(digest, 2000),
		},
	})
}

// LogReportViolations logs structural problems in a final answer.
func (l *Logger) LogReportViolations(violations []string, corrected bool) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeReportViolations,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"violations":        violations,
			"correction_issued": corrected,
		},
	})
}

// LogError logs an error during processing.
func (l *Logger) LogError(err error) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeError,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

// LogSessionEnd logs the end of a session with its outcome.
func (l *Logger) LogSessionEnd(outcome string, iterations, totalInputTokens, totalOutputTokens int) error {
	if l == nil {
		return nil
	}
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeSessionEnd,
		SessionID: l.sessionID,
		Data: map[string]interface{}{
			"outcome":             outcome,
			"iterations":          iterations,
			"total_input_tokens":  totalInputTokens,
			"total_output_tokens": totalOutputTokens,
			"total_tokens":        totalInputTokens + totalOutputTokens,
		},
	})
}

// Close closes the audit logger and flushes any pending writes.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var errs []error
	if err := l.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit log: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log file: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing audit log: %v", errs)
	}
	return nil
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}

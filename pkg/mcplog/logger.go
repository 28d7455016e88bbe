// Package mcplog records MCP tool calls as JSONL, one line per call.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// LogEntry is the schema for one JSONL line.
type LogEntry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	TokensEst     int            `json:"tokens_est"`
	ToolError     bool           `json:"tool_error,omitempty"`
	Error         *string        `json:"error"`
}

// NewEntry builds the entry for a finished call. ToolError marks results the
// handler returned as errors, which mcp-go does not surface as a Go error.
func NewEntry(req mcp.CallToolRequest, start time.Time, result *mcp.CallToolResult, err error) LogEntry {
	size := ResponseBytes(result)

	entry := LogEntry{
		Ts:            start.UTC().Format(time.RFC3339),
		Tool:          req.Params.Name,
		Params:        SanitizeParams(req.GetArguments()),
		DurationMs:    Now().Sub(start).Milliseconds(),
		ResponseBytes: size,
		TokensEst:     size / 4,
		ToolError:     result != nil && result.IsError,
	}
	if err != nil {
		msg := err.Error()
		entry.Error = &msg
	}
	return entry
}

// Logger appends entries to a file. It is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewLogger opens path for appending, creating parent directories. An empty
// path returns nil, nil; callers treat a nil Logger as disabled.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one entry. Callers usually ignore the error so logging never
// changes a tool result.
func (l *Logger) Write(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// SanitizeParams returns a copy of args safe for logging. Strings longer
// than 64 bytes, typically source code, are replaced by a "<key>_len" entry.
func SanitizeParams(args map[string]any) map[string]any {
	const shortStringMax = 64
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && len(s) > shortStringMax {
			out[k+"_len"] = len(s)
		} else {
			out[k] = v
		}
	}
	return out
}

// ResponseBytes is the serialized size of a result's content, 0 for nil.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is a replaceable clock for testing.
var Now = time.Now

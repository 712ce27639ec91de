// Package trafficlog records MCP traffic as append-only JSONL files.
//
// Every file has exactly one zerolog writer behind a SyncWriter, so lines
// from concurrent requests never interleave.
package trafficlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Kind names one of the traffic log files.
type Kind string

const (
	KindRequests  Kind = "requests"
	KindResponses Kind = "responses"
	KindToolCalls Kind = "tool_calls"
	KindErrors    Kind = "errors"
)

// Kinds lists every log kind in display order.
var Kinds = []Kind{KindRequests, KindResponses, KindToolCalls, KindErrors}

// FileName returns the JSONL file name for a kind.
func (k Kind) FileName() string {
	return "mcp_" + string(k) + ".jsonl"
}

// ParseKind accepts a kind name with or without the mcp_ prefix.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == string(k) || s == k.FileName() || s == "mcp_"+string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown log kind %q", s)
}

// Stats is the /logs/stats payload.
type Stats struct {
	RequestsLogged  int64  `json:"requests_logged"`
	ResponsesLogged int64  `json:"responses_logged"`
	ErrorsLogged    int64  `json:"errors_logged"`
	LogDirectory    string `json:"log_directory"`
	Timestamp       string `json:"timestamp"`
}

type sink struct {
	file *os.File
	log  zerolog.Logger
}

// Logger owns the four traffic files in a directory.
type Logger struct {
	dir string

	// writers hold the read side; Clear and Prune take it exclusively
	mu    sync.RWMutex
	sinks map[Kind]*sink

	requests  atomic.Int64
	responses atomic.Int64
	errors    atomic.Int64

	now func() time.Time
}

// New opens (or creates) the traffic files under dir.
func New(dir string) (*Logger, error) {
	if dir == "" {
		dir = "mcp_logs"
	}
	l := &Logger{dir: dir, now: time.Now}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// Dir returns the log directory.
func (l *Logger) Dir() string {
	return l.dir
}

func (l *Logger) open() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	sinks := make(map[Kind]*sink, len(Kinds))
	for _, k := range Kinds {
		f, err := os.OpenFile(filepath.Join(l.dir, k.FileName()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			for _, s := range sinks {
				s.file.Close()
			}
			return fmt.Errorf("failed to open %s: %w", k.FileName(), err)
		}
		sinks[k] = &sink{file: f, log: zerolog.New(zerolog.SyncWriter(f))}
	}
	l.sinks = sinks
	return nil
}

func (l *Logger) closeFiles() error {
	var firstErr error
	for _, s := range l.sinks {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.sinks = nil
	return firstErr
}

func (l *Logger) timestamp() string {
	return l.now().Format(time.RFC3339Nano)
}

func (l *Logger) event(k Kind) *zerolog.Event {
	s, ok := l.sinks[k]
	if !ok {
		return nil
	}
	return s.log.Log()
}

// LogRequest appends a request line. data must be JSON; anything else is stored as a string.
func (l *Logger) LogRequest(requestID string, data []byte) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.event(KindRequests); e != nil {
		e.Str("timestamp", l.timestamp()).
			Str("type", "request").
			Str("request_id", requestID).
			RawJSON("data", asJSON(data)).
			Send()
		l.requests.Add(1)
	}
}

// LogResponse appends a response line.
func (l *Logger) LogResponse(requestID string, data []byte) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.event(KindResponses); e != nil {
		e.Str("timestamp", l.timestamp()).
			Str("type", "response").
			Str("request_id", requestID).
			RawJSON("data", asJSON(data)).
			Send()
		l.responses.Add(1)
	}
}

// LogToolCall appends a tool call with its arguments and result.
func (l *Logger) LogToolCall(name string, args map[string]any, result any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.event(KindToolCalls); e != nil {
		e.Str("timestamp", l.timestamp()).
			Str("type", "tool_call").
			Str("tool_name", name).
			Interface("arguments", args).
			Interface("result", result).
			Send()
	}
}

// LogError appends an error line. context names where it happened.
func (l *Logger) LogError(errType, message, context string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e := l.event(KindErrors); e != nil {
		n := l.errors.Add(1)
		e.Str("timestamp", l.timestamp()).
			Str("type", "error").
			Int64("error_count", n).
			Str("error_type", errType).
			Str("error_message", message).
			Str("context", context).
			Send()
	}
}

// Stats returns the counters.
func (l *Logger) Stats() Stats {
	return Stats{
		RequestsLogged:  l.requests.Load(),
		ResponsesLogged: l.responses.Load(),
		ErrorsLogged:    l.errors.Load(),
		LogDirectory:    l.dir,
		Timestamp:       l.timestamp(),
	}
}

// Clear removes every log file and starts fresh ones. Counters are kept.
func (l *Logger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.closeFiles(); err != nil {
		return err
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return err
	}
	return l.open()
}

// Prune drops lines whose timestamp is before cutoff and returns how many were removed.
// Lines without a parsable timestamp are kept.
func (l *Logger) Prune(cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.closeFiles(); err != nil {
		return 0, err
	}

	removed := 0
	var pruneErr error
	for _, k := range Kinds {
		n, err := pruneFile(filepath.Join(l.dir, k.FileName()), cutoff)
		removed += n
		if err != nil && pruneErr == nil {
			pruneErr = err
		}
	}

	if err := l.open(); err != nil {
		return removed, err
	}
	return removed, pruneErr
}

func pruneFile(path string, cutoff time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var kept bytes.Buffer
	removed := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, gjson.GetBytes(line, "timestamp").String()); err == nil && ts.Before(cutoff) {
			removed++
			continue
		}
		kept.Write(line)
		kept.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, kept.Bytes(), 0644); err != nil {
		return 0, err
	}
	return removed, os.Rename(tmp, path)
}

// Close flushes and closes the files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFiles()
}

func asJSON(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

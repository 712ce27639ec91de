package trafficlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

// RequestSummary is one logged request as shown by the viewer.
type RequestSummary struct {
	Timestamp string
	RequestID string
	Method    string
	Tool      string
	Arguments string
}

// ResponseSummary is one logged response.
type ResponseSummary struct {
	Timestamp string
	RequestID string
	Content   string
}

// ToolCallSummary is one logged tool invocation.
type ToolCallSummary struct {
	Timestamp string
	Tool      string
	Arguments string
	Results   int
}

// ErrorSummary is one logged error.
type ErrorSummary struct {
	Timestamp string
	Type      string
	Message   string
	Context   string
}

// Viewer reads the traffic files without holding them open.
type Viewer struct {
	dir          string
	pollInterval time.Duration
}

// NewViewer creates a viewer over dir.
func NewViewer(dir string) *Viewer {
	return &Viewer{dir: dir, pollInterval: time.Second}
}

// Read returns every valid JSON line of a kind. Malformed lines are skipped.
func (v *Viewer) Read(kind Kind) ([]gjson.Result, error) {
	f, err := os.Open(filepath.Join(v.dir, kind.FileName()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []gjson.Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		entries = append(entries, gjson.ParseBytes(append([]byte(nil), line...)))
	}
	return entries, scanner.Err()
}

func (v *Viewer) recent(kind Kind, n int) ([]gjson.Result, error) {
	entries, err := v.Read(kind)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// RecentRequests returns the last n requests.
func (v *Viewer) RecentRequests(n int) ([]RequestSummary, error) {
	entries, err := v.recent(KindRequests, n)
	if err != nil {
		return nil, err
	}
	out := make([]RequestSummary, 0, len(entries))
	for _, e := range entries {
		data := e.Get("data")
		s := RequestSummary{
			Timestamp: e.Get("timestamp").String(),
			RequestID: e.Get("request_id").String(),
			Method:    data.Get("method").String(),
			Tool:      data.Get("params.name").String(),
			Arguments: data.Get("params.arguments").Raw,
		}
		// direct bodies carry the arguments at the top level
		if s.Method == "" && data.IsObject() {
			s.Arguments = data.Raw
		}
		out = append(out, s)
	}
	return out, nil
}

// RecentResponses returns the last n responses.
func (v *Viewer) RecentResponses(n int) ([]ResponseSummary, error) {
	entries, err := v.recent(KindResponses, n)
	if err != nil {
		return nil, err
	}
	out := make([]ResponseSummary, 0, len(entries))
	for _, e := range entries {
		data := e.Get("data")
		content := data.Get("result.content.0.text")
		if !content.Exists() {
			content = data.Get("error.message")
		}
		if !content.Exists() {
			content = data
		}
		out = append(out, ResponseSummary{
			Timestamp: e.Get("timestamp").String(),
			RequestID: e.Get("request_id").String(),
			Content:   content.String(),
		})
	}
	return out, nil
}

// RecentToolCalls returns the last n tool calls.
func (v *Viewer) RecentToolCalls(n int) ([]ToolCallSummary, error) {
	entries, err := v.recent(KindToolCalls, n)
	if err != nil {
		return nil, err
	}
	out := make([]ToolCallSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToolCallSummary{
			Timestamp: e.Get("timestamp").String(),
			Tool:      e.Get("tool_name").String(),
			Arguments: e.Get("arguments").Raw,
			Results:   int(e.Get("result.#").Int()),
		})
	}
	return out, nil
}

// RecentErrors returns the last n errors.
func (v *Viewer) RecentErrors(n int) ([]ErrorSummary, error) {
	entries, err := v.recent(KindErrors, n)
	if err != nil {
		return nil, err
	}
	out := make([]ErrorSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, ErrorSummary{
			Timestamp: e.Get("timestamp").String(),
			Type:      e.Get("error_type").String(),
			Message:   e.Get("error_message").String(),
			Context:   e.Get("context").String(),
		})
	}
	return out, nil
}

// Counts returns the number of valid lines per file.
func (v *Viewer) Counts() (map[Kind]int, error) {
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		entries, err := v.Read(k)
		if err != nil {
			return nil, err
		}
		counts[k] = len(entries)
	}
	return counts, nil
}

// Tail copies a log file to w. With follow it keeps polling for new lines
// until ctx is done.
func (v *Viewer) Tail(ctx context.Context, kind Kind, follow bool, w io.Writer) error {
	return v.tail(ctx, filepath.Join(v.dir, kind.FileName()), 0, follow, w)
}

// Follow prints only lines appended after the call, until ctx is done.
func (v *Viewer) Follow(ctx context.Context, kind Kind, w io.Writer) error {
	path := filepath.Join(v.dir, kind.FileName())
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	} else if !os.IsNotExist(err) {
		return err
	}
	return v.tail(ctx, path, offset, true, w)
}

func (v *Viewer) tail(ctx context.Context, path string, offset int64, follow bool, w io.Writer) error {
	for {
		next, err := copyFrom(path, offset, w)
		if err != nil {
			return err
		}
		offset = next

		if !follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(v.pollInterval):
		}
	}
}

// copyFrom writes complete lines after offset and returns the new offset.
// A truncated or removed file restarts from the beginning.
func copyFrom(path string, offset int64, w io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return offset, err
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return offset, nil
	}
	if _, err := w.Write(data[:end+1]); err != nil {
		return offset, fmt.Errorf("failed to write tail output: %w", err)
	}
	return offset + int64(end+1), nil
}

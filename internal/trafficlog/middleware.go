package trafficlog

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hession/llmseo/internal/logger"
)

// RequestIDHeader carries the id that ties a request line to its response line.
const RequestIDHeader = "X-Request-ID"

// recorder tees the response body into a buffer.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Flush keeps streaming handlers working behind the middleware.
func (r *recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware logs every non-empty request and response body.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set(RequestIDHeader, requestID)
		}
		w.Header().Set(RequestIDHeader, requestID)

		if r.Body != nil {
			body, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				l.LogError("request_read", err.Error(), "request_parsing")
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(bytes.TrimSpace(body)) > 0 {
				if !json.Valid(body) {
					l.LogError("json_decode", "request body is not valid JSON", "request_parsing")
				}
				l.LogRequest(requestID, body)
			}
		}

		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.body.Len() > 0 {
			streamed := strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream")
			if !streamed && !json.Valid(rec.body.Bytes()) {
				l.LogError("json_decode", "response body is not valid JSON", "response_parsing")
			}
			l.LogResponse(requestID, rec.body.Bytes())
		}

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request processed")
	})
}

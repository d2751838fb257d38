package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/payroll-ledger/pkg/logger"
	"github.com/go-chi/chi/middleware"
)

const (
	redacted = "[FILTERED]"

	// bodies are logged up to this size
	maxLoggedBody = 4 << 10
)

// sensitiveKeys are matched as substrings of lower-cased header names and
// JSON keys.
var sensitiveKeys = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"key",
	"session",
	"credential",
	"auth",
	"iban",
}

// quietPrefixes are paths whose bodies are never logged.
var quietPrefixes = []string{"/openapi.yml", "/swagger/"}

// LoggingMiddleware writes one line per request and one per response. The
// response line uses the request's context logger, so it carries trace_id,
// and appends whatever the handlers recorded with logger.Annotate.
func LoggingMiddleware(base *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, fields := logger.WithFields(r.Context())
			lg := logger.FromOr(ctx, base).With("request_id", middleware.GetReqID(ctx))
			withBody := !quiet(r.URL.Path)

			var reqBody []byte
			if withBody && r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}
			lg.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header),
				"body", redactBody(reqBody),
			)

			rec := &recorder{ResponseWriter: w, keepBody: withBody}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			respBody := redactBody(rec.body.Bytes())
			if rec.size > maxLoggedBody {
				respBody = "[TRUNCATED]"
			}
			args := []any{
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
				"body", respBody,
			}
			lg.Log(ctx, level, "response", append(args, fields.Args()...)...)
		})
	}
}

func quiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type recorder struct {
	http.ResponseWriter
	status   int
	size     int
	keepBody bool
	body     bytes.Buffer
}

func (rw *recorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if rw.keepBody && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b[:min(len(b), maxLoggedBody-rw.body.Len())])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func sensitive(name string) bool {
	name = strings.ToLower(name)
	for _, key := range sensitiveKeys {
		if strings.Contains(name, key) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if sensitive(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxLoggedBody {
		return "[TRUNCATED]"
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		if sensitive(string(body)) {
			return redacted
		}
		return string(body)
	}

	out, err := json.Marshal(redactJSON(doc))
	if err != nil {
		return redacted
	}
	return string(out)
}

func redactJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if sensitive(k) {
				out[k] = redacted
				continue
			}
			out[k] = redactJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactJSON(item)
		}
		return out
	}
	return v
}

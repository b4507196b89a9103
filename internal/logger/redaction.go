package logger

import (
	"io"
	"regexp"
)

// Redactor masks credentials in log output
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// OpenAI style keys
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Authorization headers echoed in provider errors
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// api_key=..., "apiKey": "..."
			regexp.MustCompile(`(?i)api[_-]?key["\s:=]+[^\s",}]+`),
		},
	}
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

// redactingWriter is an io.Writer that redacts sensitive information
type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (n int, err error) {
	redacted := w.redactor.Redact(string(p))
	return w.writer.Write([]byte(redacted))
}

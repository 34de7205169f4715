// Package sselines scans a text/event-stream body into individual "data:"
// payloads, the same bufio.Scanner-over-response-body technique
// lifthrasiir-angel/src/internal/llm/openai.go uses to consume an OpenAI
// SSE stream, generalized for a multi-field gradio queue frame instead of
// a single always-JSON chunk per line.
package sselines

import (
	"bufio"
	"io"
	"strings"
)

// Scanner yields one decoded event body per call to Next, joining
// continuation "data:" lines the way the SSE spec requires (a field may
// be split across multiple "data:" lines, each appended with a newline).
type Scanner struct {
	sc  *bufio.Scanner
	buf strings.Builder
}

// New wraps body. Callers must still Close body themselves.
func New(body io.Reader) *Scanner {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &Scanner{sc: sc}
}

// Next returns the next complete event's data payload, or ok=false at
// EOF or on a scan error (check Err after a false return).
func (s *Scanner) Next() (data string, ok bool) {
	s.buf.Reset()
	sawData := false

	for s.sc.Scan() {
		line := s.sc.Text()

		switch {
		case line == "":
			if sawData {
				return strings.TrimSuffix(s.buf.String(), "\n"), true
			}
			continue
		case strings.HasPrefix(line, "data:"):
			sawData = true
			payload := strings.TrimPrefix(line, "data:")
			payload = strings.TrimPrefix(payload, " ")
			s.buf.WriteString(payload)
			s.buf.WriteByte('\n')
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive line, ignore
		default:
			// event:, id:, retry: — this core never needs them
		}
	}

	if sawData {
		return strings.TrimSuffix(s.buf.String(), "\n"), true
	}
	return "", false
}

// Err returns the underlying scanner's error, if any.
func (s *Scanner) Err() error { return s.sc.Err() }

package safety

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrNilWriter is returned by AuditLogger.Log when the logger was constructed
// with a nil writer.
var ErrNilWriter = errors.New("audit logger: writer is nil")

// Outcomes recorded on audit entries.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePending = "pending"
)

// Redacted replaces the value of every redacted parameter.
const Redacted = "[redacted]"

// DefaultRedactedParams are the tool parameters never written in clear.
var DefaultRedactedParams = []string{"confirmation_token", "token", "api_key"}

// AuditEntry captures a single tool invocation for the audit log. User is the
// signed-in caller, empty when the call was rejected before a session existed.
// Outcome is derived from Result when left empty.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user,omitempty"`
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Outcome   string         `json:"outcome"`
	Result    string         `json:"result"`
	Duration  time.Duration  `json:"duration_ns"`
}

// OutcomeOf classifies a tool result string: "ok" is OutcomeOK, anything
// starting with "error" is OutcomeError, and everything else (a pending
// confirmation, for example) is OutcomePending.
func OutcomeOf(result string) string {
	switch {
	case result == OutcomeOK:
		return OutcomeOK
	case strings.HasPrefix(result, OutcomeError):
		return OutcomeError
	default:
		return OutcomePending
	}
}

// AuditLogger writes AuditEntry records as newline-delimited JSON to an
// io.Writer. It is safe for concurrent use.
type AuditLogger struct {
	mu     sync.Mutex
	w      io.Writer
	redact map[string]bool
}

// NewAuditLogger returns an AuditLogger that writes to w. Parameters named in
// DefaultRedactedParams or redact are written as Redacted. If w is nil the
// returned logger is also nil; callers must check for nil before use.
func NewAuditLogger(w io.Writer, redact ...string) *AuditLogger {
	if w == nil {
		return nil
	}
	l := &AuditLogger{w: w, redact: make(map[string]bool)}
	for _, k := range DefaultRedactedParams {
		l.redact[k] = true
	}
	for _, k := range redact {
		l.redact[k] = true
	}
	return l
}

// scrub returns params with redacted values replaced. The caller's map is
// never modified.
func (l *AuditLogger) scrub(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if l.redact[k] {
			if s, ok := v.(string); ok && s == "" {
				out[k] = v
				continue
			}
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

// Log serialises entry as a single JSON line and writes it to the underlying
// writer. It returns an error if the writer is nil or if serialisation or
// writing fails.
func (l *AuditLogger) Log(entry AuditEntry) error {
	if l == nil || l.w == nil {
		return ErrNilWriter
	}

	entry.Params = l.scrub(entry.Params)
	if entry.Outcome == "" {
		entry.Outcome = OutcomeOf(entry.Result)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	data = append(data, '\n')

	l.mu.Lock()
	_, err = l.w.Write(data)
	l.mu.Unlock()

	return err
}

package logger

import (
	"log/slog"
	"time"
)

// Field keys shared by all components so log queries stay stable.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyComponent = "component"
	KeyStep      = "step"
	KeyState     = "state"
	KeyTask      = "task"
	KeyPlugin    = "plugin"
	KeyPath      = "path"
	KeyPattern   = "pattern"

	KeyChatID    = "chat_id"
	KeyMessageID = "message_id"
	KeyUsername  = "username"
	KeyCommand   = "command"

	KeyWait       = "wait"
	KeyAttempt    = "attempt"
	KeyInterval   = "interval"
	KeyDurationMs = "duration_ms"
	KeyCount      = "count"
	KeyQueueDepth = "queue_depth"

	KeyAddress = "address"
	KeyPort    = "port"
	KeyURL     = "url"

	KeyError = "error"
)

// Step returns a slog.Attr for a startup step name.
func Step(name string) slog.Attr { return slog.String(KeyStep, name) }

// State returns a slog.Attr for a state machine state.
func State(name string) slog.Attr { return slog.String(KeyState, name) }

// Task returns a slog.Attr for a supervised task label.
func Task(label string) slog.Attr { return slog.String(KeyTask, label) }

// Plugin returns a slog.Attr for a plugin name.
func Plugin(name string) slog.Attr { return slog.String(KeyPlugin, name) }

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// ChatID returns a slog.Attr for a chat identifier.
func ChatID(id int64) slog.Attr { return slog.Int64(KeyChatID, id) }

// MessageID returns a slog.Attr for a message identifier.
func MessageID(id int64) slog.Attr { return slog.Int64(KeyMessageID, id) }

// Wait returns a slog.Attr for a provider-imposed backoff.
func Wait(d time.Duration) slog.Attr { return slog.Duration(KeyWait, d) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DurationMs returns a slog.Attr for an elapsed time in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Count returns a slog.Attr for a generic count.
func Count(n int64) slog.Attr { return slog.Int64(KeyCount, n) }

// Err returns a slog.Attr for an error. A nil error renders as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

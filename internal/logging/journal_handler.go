package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by camwatch.
const SyslogIdentifier = "camwatch"

// JournalHandler is a slog.Handler that writes records to the systemd journal.
// Attribute keys become upper-case journal fields, groups are joined with "_".
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewJournalHandler creates a journal handler gated by level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	for _, attr := range h.attrs {
		addJournalField(fields, "", attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addJournalField(fields, h.prefix, attr)
		return true
	})

	if err := journal.Send(r.Message, priority(r.Level), fields); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	prefixed = append(prefixed, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		prefixed = append(prefixed, a)
	}
	return &JournalHandler{level: h.level, attrs: prefixed, prefix: h.prefix}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{level: h.level, attrs: h.attrs, prefix: h.prefix + name + "_"}
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func addJournalField(fields map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := prefix + attr.Key
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			addJournalField(fields, key+"_", member)
		}
		return
	}

	key = strings.ToUpper(key)
	switch attr.Value.Kind() {
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(attr.Value.Float64(), 'f', -1, 64)
	case slog.KindBool:
		fields[key] = strconv.FormatBool(attr.Value.Bool())
	case slog.KindTime:
		fields[key] = attr.Value.Time().Format("2006-01-02T15:04:05.000Z07:00")
	default:
		fields[key] = attr.Value.String()
	}
}

// IsJournalAvailable checks if the systemd journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

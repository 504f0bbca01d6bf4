package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the subset of *slog.Logger the capture and broadcast layers depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`

	// Output overrides stdout. Used by tests.
	Output io.Writer `toml:"-"`
}

type registry struct {
	mu          sync.RWMutex
	config      Config
	initialized bool
	global      slog.LevelVar
	loggers     map[string]*slog.Logger
	levels      map[string]*slog.LevelVar
}

var state = &registry{
	loggers: make(map[string]*slog.Logger),
	levels:  make(map[string]*slog.LevelVar),
}

// Initialize sets up the logging system. Loggers obtained through GetLogger
// before Initialize are rebuilt so they pick up the configured format and sinks.
func Initialize(config Config) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.config = config
	state.initialized = true
	state.global.Set(parseLevelOr(config.Level, slog.LevelInfo))

	for module, levelVar := range state.levels {
		levelVar.Set(state.moduleLevelLocked(module))
		state.loggers[module] = slog.New(state.handlerLocked(levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(state.handlerLocked(&state.global)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	state.mu.RLock()
	logger, ok := state.loggers[module]
	state.mu.RUnlock()
	if ok {
		return logger
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if logger, ok = state.loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(state.moduleLevelLocked(module))

	logger = slog.New(state.handlerLocked(levelVar)).With("module", module)
	state.loggers[module] = logger
	state.levels[module] = levelVar
	return logger
}

// SetLevel changes a module's level at runtime. Unknown level strings are ignored.
func SetLevel(module, level string) bool {
	parsed, ok := parseLevel(level)
	if !ok {
		return false
	}

	GetLogger(module)

	state.mu.RLock()
	defer state.mu.RUnlock()
	state.levels[module].Set(parsed)
	return true
}

// moduleLevelLocked resolves the effective level of a module. Caller holds mu.
func (r *registry) moduleLevelLocked(module string) slog.Level {
	if !r.initialized {
		return slog.LevelInfo
	}
	level := parseLevelOr(r.config.Level, slog.LevelInfo)
	if override, ok := r.config.Modules[module]; ok {
		level = parseLevelOr(override, level)
	}
	return level
}

// handlerLocked builds the handler chain for the current configuration.
// Logs go to stdout (or Config.Output) and to the systemd journal when present.
func (r *registry) handlerLocked(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	out := r.config.Output
	if out == nil {
		out = os.Stdout
	}

	var primary slog.Handler
	if r.initialized && r.config.Format == "json" {
		primary = slog.NewJSONHandler(out, opts)
	} else {
		primary = slog.NewTextHandler(out, opts)
	}

	if r.config.Output != nil || !IsJournalAvailable() {
		return primary
	}

	journal := NewJournalHandler(level)
	if !isStdoutAvailable() {
		return journal
	}
	return NewMultiHandler(primary, journal)
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevelOr(level string, fallback slog.Level) slog.Level {
	if parsed, ok := parseLevel(level); ok {
		return parsed
	}
	return fallback
}

// parseLevel converts a level name to slog.Level.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

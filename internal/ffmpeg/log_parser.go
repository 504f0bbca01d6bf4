package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLine splits an ffmpeg stderr line written with -loglevel level+...
// into a slog level and the message. Lines look like "[warning] msg" or
// "[rtsp @ 0x55d0] [error] msg"; the component prefix is kept in the message.
func ParseLogLine(line string) (slog.Level, string) {
	if len(line) < 3 || line[0] != '[' {
		return slog.LevelInfo, line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return slog.LevelInfo, line
	}

	if level, ok := levelOf(line[1:end]); ok {
		return level, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 {
			if level, ok := levelOf(rest[1:next]); ok {
				return level, component + rest[next+2:]
			}
		}
	}
	return slog.LevelInfo, line
}

func levelOf(s string) (slog.Level, bool) {
	switch s {
	case "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "info":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace", "quiet":
		return slog.LevelDebug, true
	}
	return slog.LevelInfo, false
}

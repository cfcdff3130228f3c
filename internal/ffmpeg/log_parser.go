package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from a line printed with
// -loglevel level+X. Lines look like "[info] message" or
// "[component @ 0x...] [level] message". The level tag is stripped and
// the component kept. Levels are normalised to fatal, error, warning,
// info or debug.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if lvl, ok := normalizeLevel(line[1:end]); ok {
		return lvl, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if lvl, ok := normalizeLevel(rest[1:nextEnd]); ok {
				return lvl, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func normalizeLevel(s string) (string, bool) {
	switch s {
	case "panic", "fatal":
		return "fatal", true
	case "error", "warning", "info", "debug":
		return s, true
	case "verbose", "trace":
		return "debug", true
	case "quiet":
		return "info", true
	}
	return "", false
}

package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace sits below [slog.LevelDebug] and carries full wire
// payloads: completion request/response JSON and gateway frames. The
// value -8 keeps one level of headroom under Debug, matching how other
// slog users slot in a Trace level.
//
// Trace logs include whatever users typed, so leave it off outside of
// local debugging sessions.
const LevelTrace = slog.Level(-8)

// ParseLogLevel maps the config file's log_level string to an
// [slog.Level]. Matching ignores case and surrounding whitespace; the
// empty string means Info. "trace" selects [LevelTrace], and both
// "warn" and "warning" are accepted. Anything else is an error naming
// the valid choices.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// ReplaceLogLevelNames is a ReplaceAttr function for
// [slog.HandlerOptions] that prints [LevelTrace] as "TRACE". slog only
// names its four built-in levels and would otherwise render ours as
// "DEBUG-4". Wire it into the handler main constructs:
//
//	slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
//	    Level:       level,
//	    ReplaceAttr: config.ReplaceLogLevelNames,
//	})
func ReplaceLogLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, ok := a.Value.Any().(slog.Level)
		if ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

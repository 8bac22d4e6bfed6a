package logger

import (
	"log/slog"
	"strings"
)

// levelName maps slog levels onto the four names the log pipeline accepts.
// Custom levels in between round down.
func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// enumValues lists the accepted values of enumerated fields. An unknown status is
// kept lowercased; an unknown outcome is dropped.
var enumValues = map[string]map[string]struct{}{
	"status": {
		"ok": {}, "fail": {}, "skip": {}, "retry": {}, "rate_limited": {}, "cancelled": {}, "denied": {},
	},
	"outcome": {
		"ok": {}, "fail": {}, "cancelled": {}, "rate_limited": {}, "denied": {},
	},
}

func normalizeEnums(fields map[string]any) {
	for key, allowed := range enumValues {
		raw, ok := fields[key].(string)
		if !ok || raw == "" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		if _, known := allowed[v]; !known && key == "outcome" {
			delete(fields, key)
			continue
		}
		fields[key] = v
	}
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"kind",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"status_code",
	"db",
	"host",
	"port",
	"section_id",
	"direction",
	"action",
	"is_new",
	"member_status",
	"sections",
	"err",
	"err_kind",
	"err_code",
	"cause",
	"attempt",
	"attempts",
	"delay_ms",
}

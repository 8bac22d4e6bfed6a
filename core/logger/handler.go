package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	// errWriter additionally receives records at error level and above.
	errWriter *asyncWriter
	format    logFormat
	keyOrder  []string
}

// structuredHandler renders every record as one flat line. Groups become dotted
// keys, durations become *_ms integers and request metadata comes from ctx.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	line, err := h.render(ctx, r)
	if err != nil {
		return err
	}
	if h.cfg.errWriter != nil && r.Level >= slog.LevelError {
		if err := h.cfg.errWriter.Write(line); err != nil {
			return err
		}
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) render(ctx context.Context, r slog.Record) ([]byte, error) {
	fields := make(map[string]any, 16)
	for _, a := range h.attrs {
		flatten(h.prefix, a, fields)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, fields)
		return true
	})
	metaFrom(ctx).fields(fields)

	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = levelName(r.Level)
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	h.fillDefaults(fields, r.Message)
	normalizeEnums(fields)
	for k, v := range fields {
		if v == nil || v == "" {
			delete(fields, k)
		}
	}

	keys := orderedKeys(fields, h.cfg.keyOrder)
	if h.cfg.format == formatJSON {
		return jsonLine(fields, keys)
	}
	return kvLine(fields, keys), nil
}

// fillDefaults compacts the rid and guarantees event and component are present.
// The full rid is kept only in JSON output where line length does not matter.
func (h *structuredHandler) fillDefaults(fields map[string]any, msg string) {
	if rid, _ := fields["rid"].(string); rid != "" {
		if compact := CompactRID(rid); compact != "" && compact != rid {
			if _, seen := fields["rid_full"]; !seen && h.cfg.format == formatJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if ev, _ := fields["event"].(string); ev == "" {
		if msg == "" {
			msg = "unknown"
		}
		fields["event"] = msg
	}
	if comp, _ := fields["component"].(string); comp == "" {
		fields["component"] = "app"
	}
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func flatten(prefix string, a slog.Attr, fields map[string]any) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, fields)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		fields[k] = val
	}
}

// durationKey renames a duration attribute so its unit is explicit.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := fields[key]; ok {
			if _, dup := seen[key]; !dup {
				keys = append(keys, key)
				seen[key] = struct{}{}
			}
		}
	}
	head := len(keys)
	for key := range fields {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

func jsonLine(fields map[string]any, keys []string) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, key := range keys {
		data, err := json.Marshal(fields[key])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", key, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, key)
		buf = append(buf, ':')
		buf = append(buf, data...)
	}
	return append(buf, '}', '\n'), nil
}

func kvLine(fields map[string]any, keys []string) []byte {
	buf := make([]byte, 0, 256)
	for i, key := range keys {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, key...)
		buf = append(buf, '=')
		buf = append(buf, kvValue(fields[key])...)
	}
	return append(buf, '\n')
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

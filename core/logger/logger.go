package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/cpabot/core/buildinfo"
	coreconfig "github.com/m3rciful/cpabot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	sinks   []*asyncWriter
	closers []io.Closer

	levelVar slog.LevelVar
	sampler  = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceAll bool

	// L is the root logger. Request-scoped code should prefer FromContext.
	L *slog.Logger

	DB           *slog.Logger
	MIG          *slog.Logger
	SEED         *slog.Logger
	TG           *slog.Logger
	TWire        *slog.Logger
	SVCContent   *slog.Logger
	SVCAnalytics *slog.Logger
	SVCAccess    *slog.Logger
	SVCWorkflow  *slog.Logger
)

// components binds each package-level logger to its component attribute.
var components = []struct {
	name string
	dst  **slog.Logger
}{
	{"db", &DB},
	{"db.migrate", &MIG},
	{"db.seed", &SEED},
	{"tg", &TG},
	{"tg.wire", &TWire},
	{"service.content", &SVCContent},
	{"service.analytics", &SVCAnalytics},
	{"service.access", &SVCAccess},
	{"service.workflow", &SVCWorkflow},
}

// Component loggers work before InitLogger; they write through slog.Default until then.
func init() {
	L = slog.Default()
	wireComponents()
}

func wireComponents() {
	for _, c := range components {
		*c.dst = L.With("component", c.name)
	}
}

// settings is the logging section of the config after defaults are applied.
type settings struct {
	format   logFormat
	level    slog.Level
	keyOrder []string
	num, den int
	profile  string
	dir      string
	botFile  string
	errFile  string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		format:   formatJSON,
		level:    slog.LevelInfo,
		keyOrder: append([]string(nil), defaultKeyOrder...),
		num:      defaultSampleNum,
		den:      defaultSampleDen,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	s.profile = strings.ToLower(strings.TrimSpace(lc.Profile))
	if s.profile == "" {
		s.profile = "prod"
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}
	s.num, s.den = sampleRatio(lc.DebugSample)
	s.dir = strings.TrimSpace(lc.Dir)
	s.botFile = strings.TrimSpace(lc.BotFile)
	s.errFile = strings.TrimSpace(lc.ErrorsFile)
	return s
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// InitLogger installs the structured handler as slog's default and rebuilds the
// component loggers. Only the first call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		sampler.Set(s.num, s.den)
		traceAll = envFlag("TRACE") || envFlag("LOG_TRACE")

		out := newAsyncWriter(append([]io.Writer{os.Stdout}, openSinks(s.dir, s.botFile)...), 64*1024)
		sinks = append(sinks, out)
		var errSink *asyncWriter
		if files := openSinks(s.dir, s.errFile); len(files) > 0 {
			errSink = newAsyncWriter(files, 16*1024)
			sinks = append(sinks, errSink)
		}

		L = slog.New(newStructuredHandler(handlerConfig{
			level:     &levelVar,
			writer:    out,
			errWriter: errSink,
			format:    s.format,
			keyOrder:  s.keyOrder,
		}))
		slog.SetDefault(L)
		wireComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

// openSinks opens name inside dir for appending. Failures are reported on the
// standard logger and leave the file out; stdout keeps working regardless.
func openSinks(dir, name string) []io.Writer {
	if dir == "" || name == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create log dir %s: %v", dir, err)
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return nil
	}
	closers = append(closers, f)
	return []io.Writer{f}
}

// Shutdown drains the async writers and closes log files. Safe to call twice.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	for _, w := range sinks {
		errs = append(errs, w.Flush(), w.Close())
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes one record with the event attribute first. A nil logg falls back
// to the logger stored in ctx, then to L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		logg = L
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name; an empty name returns L itself.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
// TRACE=1 in the environment lets every event through.
func ShouldSampleDebug() bool {
	return traceAll || sampler.Allow()
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

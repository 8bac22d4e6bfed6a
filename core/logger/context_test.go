package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/cpabot/core/config"
)

func TestUpdateMetaAccumulates(t *testing.T) {
	ctx := WithRID(context.Background(), "1:2:3")
	ctx = WithUpdateMeta(ctx, 1, 3, 2)
	ctx = WithHandler(ctx, "callback.view")

	assert.Equal(t, "1:2:3", RIDFrom(ctx))
	assert.Equal(t, 1, UpdateIDFrom(ctx))
	assert.Equal(t, int64(3), UserIDFrom(ctx))
	assert.Equal(t, int64(2), ChatIDFrom(ctx))

	fields := map[string]any{"user_id": int64(99)}
	metaFrom(ctx).fields(fields)
	assert.Equal(t, int64(99), fields["user_id"], "explicit attributes win")
	assert.Equal(t, "callback.view", fields["handler"])
	assert.Equal(t, 1, fields["update_id"])
}

func TestMetaFromEmptyContext(t *testing.T) {
	fields := map[string]any{}
	metaFrom(context.Background()).fields(fields)
	assert.Empty(t, fields)
	assert.Same(t, L, FromContext(context.Background()))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "1.2.3", CompactRID("1:2:3"))
	assert.Equal(t, "10:28", CompactRID("10:28"), "two segments are left alone")
	assert.Equal(t, "z.10.0", CompactRID("35:36:0"))
	assert.Equal(t, "abc", CompactRID("abc"))

	assert.Equal(t, "ab\tc\n", Sanitize("a\x00b\tc\u200b\n"))
	assert.Equal(t, "привет", SanitizeLimit("привет мир", 6))
	assert.Empty(t, SanitizeLimit("x", 0))

	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	n, d := parseRatioSpec("2/5")
	assert.Equal(t, []int{2, 5}, []int{n, d})
	n, d = parseRatioSpec("10")
	assert.Equal(t, []int{1, 10}, []int{n, d})
	n, d = parseRatioSpec("x/5")
	assert.Equal(t, []int{0, 0}, []int{n, d})
}

func TestSettingsFromConfig(t *testing.T) {
	def := settingsFrom(nil)
	assert.Equal(t, formatJSON, def.format)
	assert.Equal(t, slog.LevelInfo, def.level)
	assert.Equal(t, defaultKeyOrder, def.keyOrder)

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = " ts, event ,,level"
	cfg.Logging.DebugSample = "0/0"
	s := settingsFrom(cfg)
	assert.Equal(t, "dev", s.profile)
	assert.Equal(t, formatKV, s.format, "dev profile defaults to kv")
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, []string{"ts", "event", "level"}, s.keyOrder)
	assert.Equal(t, []int{0, 0}, []int{s.num, s.den})

	cfg.Logging.Format = "json"
	cfg.Logging.DebugSample = "-1/4"
	s = settingsFrom(cfg)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, []int{defaultSampleNum, defaultSampleDen}, []int{s.num, s.den})
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	// AdminIDs lists users with elevated privileges. Entries from ADMIN_ID are merged in by Normalize.
	AdminIDs []int64 `yaml:"admin_ids" ignored:"true"`
	// AdminIDsRaw is the comma separated ADMIN_ID value; malformed entries are dropped.
	AdminIDsRaw string `yaml:"-" envconfig:"ADMIN_ID"`
	RunMode     string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// ChannelConfig describes the community a user must belong to before content is served.
// An empty ID disables the requirement.
type ChannelConfig struct {
	ID         string `yaml:"id" envconfig:"REQUIRED_CHANNEL_ID"`
	InviteLink string `yaml:"invite_link" envconfig:"CHANNEL_INVITE_LINK"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`

	// SecretToken is sent back by Telegram with every webhook request. Requests without it are dropped.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Channel   ChannelConfig   `yaml:"channel"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Decode fills dst from the YAML file at path, then applies environment
// overrides. A missing file is not an error so deployments can configure the bot
// from the environment alone. dst must be a pointer to a struct.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: env overrides: %w", err)
	}
	return nil
}

// ParseAdminIDs splits a comma separated list of Telegram user IDs.
// Entries that are empty or not integers are skipped.
func ParseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Normalize validates cfg in place: it requires a token, merges admin ids,
// canonicalizes the run mode and lowercases rate limit exclusions.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("config: telegram token is required (TELEGRAM_BOT_TOKEN)")
	}
	cfg.Telegram.AdminIDs = mergeAdminIDs(cfg.Telegram.AdminIDs, ParseAdminIDs(cfg.Telegram.AdminIDsRaw))
	cfg.Channel.ID = strings.TrimSpace(cfg.Channel.ID)
	cfg.Channel.InviteLink = strings.TrimSpace(cfg.Channel.InviteLink)

	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	return normalizeExcludes(&cfg.RateLimit)
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("config: telegram.longpoll_timeout_seconds must be >= 0")
		}
		cfg.Telegram.RunMode = RunModeLongpoll
		return nil
	case RunModeWebhook:
	default:
		return fmt.Errorf("config: invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}

	var missing []string
	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		missing = append(missing, "webhook.url")
	}
	if strings.TrimSpace(cfg.Webhook.Listen) == "" {
		missing = append(missing, "webhook.listen")
	}
	if cfg.Webhook.Port <= 0 {
		missing = append(missing, "webhook.port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: webhook mode needs %s", strings.Join(missing, ", "))
	}
	cfg.Telegram.RunMode = RunModeWebhook
	return nil
}

var excludableUpdates = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

func normalizeExcludes(rl *RateLimitConfig) error {
	for i, v := range rl.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind != "" && !slices.Contains(excludableUpdates, kind) {
			return fmt.Errorf("config: invalid rate_limit.exclude_updates value %q; allowed: %s",
				v, strings.Join(excludableUpdates, ", "))
		}
		rl.ExcludeUpdates[i] = kind
	}
	return nil
}

func mergeAdminIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range lists {
		for _, id := range list {
			if _, dup := seen[id]; dup || id == 0 {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

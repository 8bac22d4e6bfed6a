package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/cpabot/core/config"

	tele "gopkg.in/telebot.v4"
)

// DefaultAllowedUpdates lists the update kinds the bot reacts to. Channel posts are
// included so operators can discover the numeric id of the required channel.
var DefaultAllowedUpdates = []string{"message", "callback_query", "channel_post"}

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen      string
	Port        int
	URL         string
	SecretToken string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	AllowedUpdates         []string
	Webhook                WebhookOptions
}

// PollerOptionsFromConfig maps the telegram and webhook sections of cfg.
func PollerOptionsFromConfig(cfg *coreconfig.Config) PollerOptions {
	return PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		AllowedUpdates:         DefaultAllowedUpdates,
		Webhook: WebhookOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			URL:         cfg.Webhook.URL,
			SecretToken: cfg.Webhook.SecretToken,
		},
	}
}

// BuildPoller returns a webhook listener in webhook mode and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			SecretToken:    opts.Webhook.SecretToken,
			AllowedUpdates: opts.AllowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}

	timeout := time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultLongPollTimeout
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: opts.AllowedUpdates}
}

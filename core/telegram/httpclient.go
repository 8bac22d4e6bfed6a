package telegram

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/netutil"
)

// HTTPClientOptions tunes the client used for Bot API calls. Zero fields take defaults.
type HTTPClientOptions struct {
	Timeout  time.Duration
	Retries  int
	Backoff  time.Duration
	Base     http.RoundTripper
	MaxDelay time.Duration
}

func (o HTTPClientOptions) withDefaults() HTTPClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 8 * time.Second
	}
	if o.Base == nil {
		o.Base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	return o
}

// BuildHTTPClient returns a client that retries transient transport failures
// and gateway errors with linear backoff.
func BuildHTTPClient(opts ...HTTPClientOptions) *http.Client {
	var o HTTPClientOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	o = o.withDefaults()
	return &http.Client{
		Timeout: o.Timeout,
		Transport: &retryTransport{
			base:     o.Base,
			retries:  o.Retries,
			backoff:  o.Backoff,
			maxDelay: o.MaxDelay,
		},
	}
}

type retryTransport struct {
	base     http.RoundTripper
	retries  int
	backoff  time.Duration
	maxDelay time.Duration
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		curr := req
		if attempt > 0 {
			curr = req.Clone(ctx)
			if req.Body != nil {
				if req.GetBody == nil {
					return nil, errNotReplayable
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := t.base.RoundTrip(curr)
		last := attempt >= t.retries
		switch {
		case err != nil:
			if last || !netutil.ShouldRetry(err) {
				return nil, err
			}
		case retryableStatus(resp.StatusCode) && !last:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		default:
			return resp, nil
		}

		delay := min(t.backoff*time.Duration(attempt+1), t.maxDelay)
		attrs := []slog.Attr{
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("url", netutil.RedactString(req.URL.Path)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err_kind", netutil.Kind(err)))
		} else {
			attrs = append(attrs, slog.Int("status_code", resp.StatusCode))
		}
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "http.retry", attrs...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type transportError string

func (e transportError) Error() string { return string(e) }

const errNotReplayable = transportError("telegram: request body cannot be replayed")

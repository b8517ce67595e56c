package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-arena/internal/turn"
)

// Webhook POSTs session events as JSON to a single URL.
type Webhook struct {
	url  string
	http *fasthttp.Client

	timeout time.Duration
	retries int
	headers map[string]string
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithRetries sets how many times a failed delivery is retried.
func WithRetries(n int) Option {
	return func(w *Webhook) {
		if n >= 0 {
			w.retries = n
		}
	}
}

func WithHeader(k, v string) Option {
	return func(w *Webhook) { w.headers[k] = v }
}

// WithDial replaces the client dialer. Tests use it with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(w *Webhook) { w.http.Dial = dial }
}

func NewWebhook(url string, opts ...Option) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("webhook url must be http(s): %q", url)
	}
	w := &Webhook{
		url:     url,
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		timeout: 5 * time.Second,
		retries: 2,
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Webhook) Send(ctx context.Context, ev turn.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Arena-Event", string(ev.Kind))
	for k, v := range w.headers {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	req.SetBody(payload)

	attempts := w.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoffDuration(attempt-1)); err != nil {
				return lastErr
			}
		}
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("webhook request failed: %w", err)
			continue
		}
		status := resp.StatusCode()
		if status >= 200 && status < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 256))
		if !shouldRetryStatus(status) {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("webhook: no attempt made")
	}
	return lastErr
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

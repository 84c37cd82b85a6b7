// Package poller decides when asynchronously generated outputs are ready.
// Readiness is probed with HEAD; a 200 answer means ready, anything else
// (including transport errors) means still pending. There is no failed
// state: a URL that never answers 200 simply stays pending.
package poller

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"studio/internal/infra"
	"studio/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Prober reports whether a single URL is ready.
type Prober interface {
	Ready(ctx context.Context, url string) bool
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Poller. MaxAttempts <= 0 uses DefaultMaxAttempts;
// a zero Delay probes without waiting.
type Options struct {
	MaxAttempts int
	Delay       time.Duration
	Prober      Prober
	Sleep       SleepFunc
	Logger      *infra.Logger
}

// Poller runs bounded readiness checks over pending URLs.
type Poller struct {
	maxAttempts int
	delay       time.Duration
	prober      Prober
	sleep       SleepFunc
	logger      *infra.Logger
}

// Outcome is the result of a bounded Run.
type Outcome struct {
	Ready    []string
	Pending  []string
	Attempts int
}

func New(opts Options) *Poller {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	prober := opts.Prober
	if prober == nil {
		prober = NewHTTPProber(nil)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	return &Poller{
		maxAttempts: maxAttempts,
		delay:       delay,
		prober:      prober,
		sleep:       sleep,
		logger:      infra.LoggerOrDiscard(opts.Logger),
	}
}

// MaxAttempts returns the configured pass cap.
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Check probes every URL once, in order. It never fails.
func (p *Poller) Check(ctx context.Context, urls []string) (ready, pending []string) {
	for _, u := range urls {
		if p.prober.Ready(ctx, u) {
			ready = append(ready, u)
			continue
		}
		pending = append(pending, u)
	}
	metrics.RecordPollPass(len(ready))
	return ready, pending
}

// Run waits Delay before each pass and stops after MaxAttempts passes or
// once nothing is pending. Ready URLs are reported in discovery order. A
// cancelled context ends the loop early with whatever was found so far.
func (p *Poller) Run(ctx context.Context, urls []string) Outcome {
	out := Outcome{Pending: append([]string(nil), urls...)}
	for out.Attempts < p.maxAttempts && len(out.Pending) > 0 {
		if err := p.sleep(ctx, p.delay); err != nil {
			p.logger.Debug().Err(err).Int("attempts", out.Attempts).Msg("poller: stopped waiting")
			break
		}
		out.Attempts++
		ready, pending := p.Check(ctx, out.Pending)
		out.Ready = append(out.Ready, ready...)
		out.Pending = pending
		p.logger.Debug().
			Int("attempt", out.Attempts).
			Int("ready", len(ready)).
			Int("pending", len(pending)).
			Msg("poller: pass complete")
	}
	return out
}

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTPProber issues HEAD requests through resty.
type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber wraps client; nil builds a client with a short timeout.
func NewHTTPProber(client *resty.Client) *HTTPProber {
	if client == nil {
		client = resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(0)
	}
	return &HTTPProber{client: client}
}

func (h *HTTPProber) Ready(ctx context.Context, url string) bool {
	resp, err := h.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return false
	}
	return resp.StatusCode() == http.StatusOK
}

var _ Prober = (*HTTPProber)(nil)

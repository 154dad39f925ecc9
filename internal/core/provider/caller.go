package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/observability/metrics"
)

const maxErrorBody = 4 << 10

// Options configures a Caller. Zero values fall back to sensible defaults.
type Options struct {
	Name               string
	Timeout            time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
	HTTPClient         *http.Client
	Metrics            *metrics.Metrics
}

// Caller performs outbound HTTP calls to one provider with an explicit timeout
// and a circuit breaker. Calls are never retried.
type Caller struct {
	name    string
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*http.Response]
	metrics *metrics.Metrics
}

// RequestBuilder builds the request for a single attempt using the supplied context.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

func NewCaller(opts Options) *Caller {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	failures := opts.BreakerFailures
	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var perr *core.Error
			if errors.As(err, &perr) && perr.StatusCode > 0 && perr.StatusCode < 500 {
				return true
			}
			return false
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &Caller{
		name:    opts.Name,
		client:  client,
		timeout: opts.Timeout,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		metrics: opts.Metrics,
	}
}

// JSON performs the call and decodes a 2xx body into out.
func (c *Caller) JSON(ctx context.Context, op string, build RequestBuilder, out any) error {
	raw, err := c.Raw(ctx, op, build)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &core.Error{Kind: core.KindProvider, Op: c.opName(op), Message: "malformed response", Err: err}
	}
	return nil
}

// Raw performs the call and returns the complete 2xx body.
func (c *Caller) Raw(ctx context.Context, op string, build RequestBuilder) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, op, build)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, op, err)
	}
	return body, nil
}

// Stream performs the call and hands back the open 2xx response body.
// The timeout bounds the wait for response headers only; closing the body
// releases the request.
func (c *Caller) Stream(ctx context.Context, op string, build RequestBuilder) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(c.timeout, cancel)

	resp, err := c.do(ctx, op, build)
	stopped := timer.Stop()
	if !stopped {
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, &core.Error{Kind: core.KindProvider, Op: c.opName(op), Message: "timed out waiting for response", Err: context.DeadlineExceeded}
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (c *Caller) do(ctx context.Context, op string, build RequestBuilder) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, &core.Error{Kind: core.KindProvider, Op: c.opName(op), Message: "build request", Err: err}
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, c.transportError(ctx, op, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &core.Error{
				Kind:       core.KindProvider,
				Op:         c.opName(op),
				Message:    fmt.Sprintf("%s returned an error", c.name),
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		err = &core.Error{Kind: core.KindProvider, Op: c.opName(op), Message: c.name + " is unavailable", Err: err}
	}
	c.metrics.RecordProviderCall(c.name, op, metrics.Outcome(err))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("provider", c.name).Str("op", op).Msg("provider call failed")
		return nil, err
	}
	return resp, nil
}

func (c *Caller) transportError(ctx context.Context, op string, err error) error {
	msg := "request failed"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &core.Error{Kind: core.KindProvider, Op: c.opName(op), Message: msg, Err: err}
}

func (c *Caller) opName(op string) string {
	return c.name + "." + op
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

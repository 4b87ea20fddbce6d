package poller

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 5
)

var ErrMissingSessionID = errors.New("no checkout session id to poll")

var tracer = otel.Tracer("github.com/GrishaDaradjanovv/Dani/internal/poller")

type State string

const (
	StateChecking State = "checking"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
)

func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Result is where a poll run ended. Attempts counts status requests made,
// including ones that failed on the network. Last is the last status the
// backend returned, nil if none arrived. Err is the last poll error.
type Result struct {
	State    State
	Attempts int
	Last     *domain.CheckoutStatus
	Err      error
}

// StatusSource answers "is this checkout session paid yet".
type StatusSource interface {
	Status(ctx context.Context, sessionID string) (domain.CheckoutStatus, error)
}

// CheckoutStatusSource polls single video and shop item purchases.
type CheckoutStatusSource struct {
	API *client.Client
}

func (s CheckoutStatusSource) Status(ctx context.Context, sessionID string) (domain.CheckoutStatus, error) {
	var st domain.CheckoutStatus
	err := s.API.Get(ctx, "/checkout/status/"+url.PathEscape(sessionID), &st)
	return st, err
}

// CartOrderSource polls whole-cart purchases.
type CartOrderSource struct {
	API *client.Client
}

func (s CartOrderSource) Status(ctx context.Context, sessionID string) (domain.CheckoutStatus, error) {
	var st domain.CheckoutStatus
	err := s.API.Get(ctx, "/cart/order/"+url.PathEscape(sessionID), &st)
	return st, err
}

// Timer waits between polls. Wait returns early with ctx.Err() when ctx is
// done.
type Timer interface {
	Wait(ctx context.Context, d time.Duration) error
}

type realTimer struct{}

func (realTimer) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Timer       Timer
	// OnTransition is called once when the run leaves StateChecking.
	OnTransition func(from, to State, attempts int)
	Logger       *slog.Logger
}

type Poller struct {
	interval     time.Duration
	maxAttempts  int
	timer        Timer
	onTransition func(from, to State, attempts int)
	logger       *slog.Logger
}

func New(cfg Config) *Poller {
	p := &Poller{
		interval:     cfg.Interval,
		maxAttempts:  cfg.MaxAttempts,
		timer:        cfg.Timer,
		onTransition: cfg.OnTransition,
		logger:       cfg.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.timer == nil {
		p.timer = realTimer{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Run polls src until the session is paid, expired or the attempt budget is
// spent. A network error uses up an attempt like a pending answer does. If
// ctx ends first, the result stays StateChecking.
func (p *Poller) Run(ctx context.Context, sessionID string, src StatusSource) Result {
	res := Result{State: StateChecking}
	if sessionID == "" {
		res.Err = ErrMissingSessionID
		return p.finish(res, StateFailed)
	}

	ctx, span := tracer.Start(ctx, "payment.poll",
		trace.WithAttributes(attribute.String("checkout.session_id", sessionID)))
	defer span.End()

	for {
		st, err := src.Status(ctx, sessionID)
		res.Attempts++

		if err != nil {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return res
			}
			res.Err = err
			p.logger.Warn("payment status check failed", "session_id", sessionID, "attempt", res.Attempts, "error", err)
		} else {
			res.Err = nil
			res.Last = &st
			switch {
			case st.IsPaid():
				span.SetAttributes(attribute.Int("poll.attempts", res.Attempts))
				return p.finish(res, StateSuccess)
			case st.IsExpired():
				span.SetAttributes(attribute.Int("poll.attempts", res.Attempts))
				span.SetStatus(codes.Error, "checkout session expired")
				return p.finish(res, StateFailed)
			}
		}

		if res.Attempts >= p.maxAttempts {
			span.SetAttributes(attribute.Int("poll.attempts", res.Attempts))
			span.SetStatus(codes.Error, "attempt budget exhausted")
			return p.finish(res, StateFailed)
		}

		if err := p.timer.Wait(ctx, p.interval); err != nil {
			res.Err = err
			return res
		}
	}
}

// Start runs the poll in its own goroutine. The channel receives exactly one
// Result and is then closed.
func (p *Poller) Start(ctx context.Context, sessionID string, src StatusSource) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- p.Run(ctx, sessionID, src)
	}()
	return out
}

func (p *Poller) finish(res Result, to State) Result {
	from := res.State
	res.State = to
	p.logger.Info("payment poll finished", "state", to, "attempts", res.Attempts)
	if p.onTransition != nil {
		p.onTransition(from, to, res.Attempts)
	}
	return res
}

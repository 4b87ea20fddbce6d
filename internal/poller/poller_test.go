package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	unpaid  = domain.CheckoutStatus{PaymentStatus: "unpaid", Status: "open"}
	paid    = domain.CheckoutStatus{PaymentStatus: "paid", Status: "complete"}
	expired = domain.CheckoutStatus{PaymentStatus: "unpaid", Status: "expired"}
)

type step struct {
	status domain.CheckoutStatus
	err    error
}

// mockSource replays steps in order and repeats the last one.
type mockSource struct {
	m     sync.Mutex
	steps []step
	calls int
}

func (s *mockSource) Status(context.Context, string) (domain.CheckoutStatus, error) {
	s.m.Lock()
	defer s.m.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].status, s.steps[i].err
}

func (s *mockSource) Calls() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.calls
}

// mockTimer returns immediately and records requested waits.
type mockTimer struct {
	m     sync.Mutex
	waits []time.Duration
}

func (t *mockTimer) Wait(ctx context.Context, d time.Duration) error {
	t.m.Lock()
	t.waits = append(t.waits, d)
	t.m.Unlock()
	return ctx.Err()
}

func newTestPoller(timer Timer) *Poller {
	return New(Config{Timer: timer})
}

func TestRun_FivePendingFails(t *testing.T) {
	timer := &mockTimer{}
	src := &mockSource{steps: []step{{status: unpaid}}}

	res := newTestPoller(timer).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, 5, src.Calls())
	assert.Len(t, timer.waits, 4)
	for _, d := range timer.waits {
		assert.Equal(t, DefaultInterval, d)
	}
}

func TestRun_PendingThenPaid(t *testing.T) {
	src := &mockSource{steps: []step{{status: unpaid}, {status: paid}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 2, res.Attempts)
	require.NotNil(t, res.Last)
	assert.True(t, res.Last.IsPaid())
}

func TestRun_ExpiredFailsImmediately(t *testing.T) {
	src := &mockSource{steps: []step{{status: expired}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_PaidWinsOverExpired(t *testing.T) {
	src := &mockSource{steps: []step{{status: domain.CheckoutStatus{PaymentStatus: "paid", Status: "expired"}}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateSuccess, res.State)
}

func TestRun_NetworkErrorsUseBudget(t *testing.T) {
	netErr := errors.New("connection reset")
	src := &mockSource{steps: []step{{err: netErr}, {err: netErr}, {status: paid}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateSuccess, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Err)
}

func TestRun_OnlyNetworkErrorsFailAfterBudget(t *testing.T) {
	netErr := errors.New("connection reset")
	src := &mockSource{steps: []step{{err: netErr}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "cs_1", src)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 5, res.Attempts)
	assert.ErrorIs(t, res.Err, netErr)
	assert.Nil(t, res.Last)
}

func TestRun_MissingSessionID(t *testing.T) {
	src := &mockSource{steps: []step{{status: paid}}}

	res := newTestPoller(&mockTimer{}).Run(context.Background(), "", src)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 0, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrMissingSessionID)
	assert.Equal(t, 0, src.Calls())
}

func TestRun_CancelledStaysChecking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &mockSource{steps: []step{{status: unpaid}}}

	var transitions int
	p := New(Config{
		Timer: &cancelTimer{cancel: cancel},
		OnTransition: func(from, to State, attempts int) {
			transitions++
		},
	})

	res := p.Run(ctx, "cs_1", src)

	assert.Equal(t, StateChecking, res.State)
	assert.False(t, res.State.IsTerminal())
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, transitions)
}

// cancelTimer cancels the run the first time it is asked to wait.
type cancelTimer struct {
	cancel context.CancelFunc
}

func (t *cancelTimer) Wait(ctx context.Context, _ time.Duration) error {
	t.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_OnTransitionCalledOnce(t *testing.T) {
	type transition struct {
		from, to State
		attempts int
	}
	var got []transition
	p := New(Config{
		Timer: &mockTimer{},
		OnTransition: func(from, to State, attempts int) {
			got = append(got, transition{from, to, attempts})
		},
	})

	p.Run(context.Background(), "cs_1", &mockSource{steps: []step{{status: unpaid}, {status: paid}}})

	require.Len(t, got, 1)
	assert.Equal(t, transition{StateChecking, StateSuccess, 2}, got[0])
}

func TestRun_CustomBudget(t *testing.T) {
	p := New(Config{MaxAttempts: 2, Interval: time.Millisecond, Timer: &mockTimer{}})

	res := p.Run(context.Background(), "cs_1", &mockSource{steps: []step{{status: unpaid}}})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 2, res.Attempts)
}

func TestRealTimer(t *testing.T) {
	require.NoError(t, realTimer{}.Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := realTimer{}.Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStart_DeliversOneResult(t *testing.T) {
	p := newTestPoller(&mockTimer{})

	ch := p.Start(context.Background(), "cs_1", &mockSource{steps: []step{{status: paid}}})

	select {
	case res := <-ch:
		assert.Equal(t, StateSuccess, res.State)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestSources_HitTheirEndpoints(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/checkout/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"payment_status":"paid","status":"complete","amount_total":49.99,"currency":"usd"}`))
	})
	r.Get("/api/cart/order/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"payment_status":"unpaid","status":"expired"}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	api, err := client.New(client.Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	p := newTestPoller(&mockTimer{})

	res := p.Run(context.Background(), "cs_1", CheckoutStatusSource{API: api})
	assert.Equal(t, StateSuccess, res.State)
	assert.InDelta(t, 49.99, res.Last.AmountTotal, 1e-9)

	res = p.Run(context.Background(), "cs_2", CartOrderSource{API: api})
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 1, res.Attempts)
}

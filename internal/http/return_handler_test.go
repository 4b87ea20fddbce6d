package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/GrishaDaradjanovv/Dani/internal/poller"
	"github.com/GrishaDaradjanovv/Dani/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	m           sync.Mutex
	user        *domain.UserProfile
	err         error
	callbackURL string
	requestID   string
}

func (s *mockSessions) ExchangeOAuthSession(ctx context.Context, callbackURL string) (service.CallbackResult, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.callbackURL = callbackURL
	s.requestID = client.RequestIDFromContext(ctx)
	if s.err != nil {
		next := service.LoginPath
		if errors.Is(s.err, service.ErrDuplicateExchange) {
			next = ""
		}
		return service.CallbackResult{Next: next}, s.err
	}
	return service.CallbackResult{User: s.user, Next: service.DashboardPath}, nil
}

func (s *mockSessions) lastCallback() string {
	s.m.Lock()
	defer s.m.Unlock()
	return s.callbackURL
}

func (s *mockSessions) User() *domain.UserProfile {
	s.m.Lock()
	defer s.m.Unlock()
	return s.user
}

type mockPoller struct {
	result  poller.Result
	gotID   string
	gotSrc  poller.StatusSource
	blockOn bool
}

func (p *mockPoller) Run(ctx context.Context, sessionID string, src poller.StatusSource) poller.Result {
	p.gotID = sessionID
	p.gotSrc = src
	if p.blockOn {
		<-ctx.Done()
		return poller.Result{State: poller.StateChecking, Attempts: 1, Err: ctx.Err()}
	}
	return p.result
}

type namedSource string

func (namedSource) Status(context.Context, string) (domain.CheckoutStatus, error) {
	return domain.CheckoutStatus{}, nil
}

func setupTestHandler(sessions *mockSessions, p *mockPoller) (*ReturnHandler, http.Handler) {
	h := NewReturnHandler(sessions, p, namedSource("checkout"), namedSource("cart"), 5*time.Second, nil)
	return h, NewRouter(h)
}

func noRedirect(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

func TestHealth_EchoesRequestID(t *testing.T) {
	_, router := setupTestHandler(&mockSessions{}, &mockPoller{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-7", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthCallback_ServesForwardingPage(t *testing.T) {
	_, router := setupTestHandler(&mockSessions{}, &mockPoller{})

	for _, path := range []string{"/auth/callback", "/dashboard"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "location.replace")
		assert.Contains(t, rec.Body.String(), "exchange")
		assert.Contains(t, rec.Body.String(), "Not signed in.")
	}
}

func TestDashboard_ShowsSignedInUser(t *testing.T) {
	sessions := &mockSessions{user: &domain.UserProfile{ID: "user_1", Name: "Ana", Email: "ana@example.com"}}
	_, router := setupTestHandler(sessions, &mockPoller{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Contains(t, rec.Body.String(), "Signed in as Ana")
}

func TestExchangeSession_Success(t *testing.T) {
	user := &domain.UserProfile{ID: "user_1", Name: "Ana"}
	sessions := &mockSessions{user: user}
	h, router := setupTestHandler(sessions, &mockPoller{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback/exchange?session_id=abc", nil)
	req.Host = "localhost:8765"
	req.Header.Set("X-Request-ID", "req-login")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, "http://localhost:8765/dashboard#session_id=abc", sessions.callbackURL)
	assert.Equal(t, "req-login", sessions.requestID)

	select {
	case ev := <-h.Events():
		assert.Equal(t, EventLogin, ev.Kind)
		assert.Equal(t, "abc", ev.SessionID)
		assert.Equal(t, user, ev.User)
		assert.NoError(t, ev.Err)
	default:
		t.Fatal("expected a login event")
	}
}

func TestExchangeSession_FailureRedirectsToLogin(t *testing.T) {
	sessions := &mockSessions{err: service.ErrOAuthExchange}
	h, router := setupTestHandler(sessions, &mockPoller{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback/exchange?session_id=bad", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	ev := <-h.Events()
	assert.ErrorIs(t, ev.Err, service.ErrOAuthExchange)
}

func TestExchangeSession_Duplicate(t *testing.T) {
	sessions := &mockSessions{err: service.ErrDuplicateExchange}
	h, router := setupTestHandler(sessions, &mockPoller{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback/exchange?session_id=abc", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, h.Events())
}

func TestLoginPage(t *testing.T) {
	_, router := setupTestHandler(&mockSessions{}, &mockPoller{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPollRoutes(t *testing.T) {
	tests := []struct {
		path    string
		kind    EventKind
		wantSrc poller.StatusSource
	}{
		{"/payment-success", EventPayment, namedSource("checkout")},
		{"/shop-order-success", EventShopOrder, namedSource("checkout")},
		{"/cart-success", EventCart, namedSource("cart")},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := &mockPoller{result: poller.Result{
				State:    poller.StateSuccess,
				Attempts: 2,
				Last:     &domain.CheckoutStatus{PaymentStatus: "paid", Status: "complete"},
			}}
			h, router := setupTestHandler(&mockSessions{}, p)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path+"?session_id=cs_1", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp PollResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, PollResponse{SessionID: "cs_1", State: poller.StateSuccess, Attempts: 2, PaymentStatus: "paid", Status: "complete"}, resp)
			assert.Equal(t, "cs_1", p.gotID)
			assert.Equal(t, tt.wantSrc, p.gotSrc)

			ev := <-h.Events()
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, poller.StateSuccess, ev.Result.State)
		})
	}
}

func TestPaymentSuccess_FailedState(t *testing.T) {
	p := &mockPoller{result: poller.Result{State: poller.StateFailed, Err: poller.ErrMissingSessionID}}
	h, router := setupTestHandler(&mockSessions{}, p)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payment-success", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"failed"`)
	ev := <-h.Events()
	assert.ErrorIs(t, ev.Err, poller.ErrMissingSessionID)
}

func TestPaymentSuccess_ClientGoneNoEvent(t *testing.T) {
	p := &mockPoller{blockOn: true}
	h, router := setupTestHandler(&mockSessions{}, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/payment-success?session_id=cs_1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Empty(t, h.Events())
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	_, router := setupTestHandler(&mockSessions{}, &mockPoller{})
	srv := NewServer(ServerConfig{ShutdownTimeout: time.Second}, router, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, ln) }()

	httpClient := &http.Client{CheckRedirect: noRedirect, Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := httpClient.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_EndToEndLoginRedirect(t *testing.T) {
	sessions := &mockSessions{user: &domain.UserProfile{ID: "user_1", Name: "Ana"}}
	_, router := setupTestHandler(sessions, &mockPoller{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	httpClient := &http.Client{CheckRedirect: noRedirect}
	resp, err := httpClient.Get(srv.URL + "/auth/callback/exchange?session_id=xyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasSuffix(sessions.lastCallback(), "/dashboard#session_id=xyz"))
}

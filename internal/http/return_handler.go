package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/GrishaDaradjanovv/Dani/internal/poller"
	"github.com/GrishaDaradjanovv/Dani/internal/service"
)

type EventKind string

const (
	EventLogin     EventKind = "login"
	EventPayment   EventKind = "payment"
	EventShopOrder EventKind = "shop-order"
	EventCart      EventKind = "cart"
)

// ReturnEvent is published whenever a browser redirect has been handled.
type ReturnEvent struct {
	Kind      EventKind
	SessionID string
	User      *domain.UserProfile
	Result    poller.Result
	Err       error
}

type SessionExchanger interface {
	ExchangeOAuthSession(ctx context.Context, callbackURL string) (service.CallbackResult, error)
	User() *domain.UserProfile
}

type PaymentPoller interface {
	Run(ctx context.Context, sessionID string, src poller.StatusSource) poller.Result
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type PollResponse struct {
	SessionID     string       `json:"session_id"`
	State         poller.State `json:"state"`
	Attempts      int          `json:"attempts"`
	PaymentStatus string       `json:"payment_status,omitempty"`
	Status        string       `json:"status,omitempty"`
}

// ReturnHandler serves the pages the identity provider and the payment
// processor redirect the browser to.
type ReturnHandler struct {
	sessions   SessionExchanger
	poller     PaymentPoller
	checkouts  poller.StatusSource
	cartOrders poller.StatusSource
	timeout    time.Duration
	events     chan ReturnEvent
	logger     *slog.Logger
}

func NewReturnHandler(sessions SessionExchanger, p PaymentPoller, checkouts, cartOrders poller.StatusSource, timeout time.Duration, logger *slog.Logger) *ReturnHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReturnHandler{
		sessions:   sessions,
		poller:     p,
		checkouts:  checkouts,
		cartOrders: cartOrders,
		timeout:    timeout,
		events:     make(chan ReturnEvent, 16),
		logger:     logger,
	}
}

// Events delivers one event per handled redirect.
func (h *ReturnHandler) Events() <-chan ReturnEvent {
	return h.events
}

func (h *ReturnHandler) publish(ev ReturnEvent) {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("return event dropped, nobody is listening", "kind", ev.Kind, "session_id", ev.SessionID)
	}
}

type callbackView struct {
	ExchangePath string
	User         *domain.UserProfile
}

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Wellness</title></head>
<body>
<p id="msg">{{if .User}}Signed in as {{.User.Name}} &lt;{{.User.Email}}&gt;. You can close this window.{{else}}Not signed in.{{end}}</p>
<script>
var params = new URLSearchParams(window.location.hash.substring(1));
var id = params.get("session_id");
if (id) {
  document.getElementById("msg").textContent = "Signing you in...";
  window.location.replace({{.ExchangePath}} + "?session_id=" + encodeURIComponent(id));
}
</script>
</body></html>
`))

const exchangePath = "/auth/callback/exchange"

// GET /auth/callback and GET /dashboard
// The identity provider puts the session id in the URL fragment, which
// browsers never send, so the page forwards it as a query parameter.
// location.replace drops the fragment from history.
func (h *ReturnHandler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	view := callbackView{ExchangePath: exchangePath, User: h.sessions.User()}
	if err := callbackPage.Execute(w, view); err != nil {
		h.logger.Error("failed to render callback page", "error", err)
	}
}

// GET /auth/callback/exchange?session_id=
func (h *ReturnHandler) ExchangeSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := r.URL.Query().Get("session_id")
	callbackURL := "http://" + r.Host + service.DashboardPath
	if sessionID != "" {
		callbackURL += "#session_id=" + url.QueryEscape(sessionID)
	}

	res, err := h.sessions.ExchangeOAuthSession(ctx, callbackURL)
	if errors.Is(err, service.ErrDuplicateExchange) {
		respondError(w, http.StatusConflict, "duplicate_exchange", "this sign-in link was already used")
		return
	}

	h.publish(ReturnEvent{Kind: EventLogin, SessionID: sessionID, User: res.User, Err: err})
	if err != nil {
		h.logger.Warn("oauth exchange failed", "error", err)
	}
	http.Redirect(w, r, res.Next, http.StatusSeeOther)
}

// GET /login
func (h *ReturnHandler) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintln(w, "Sign-in failed. Run `wellness login` to try again.")
}

// GET /payment-success?session_id=
func (h *ReturnHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	h.poll(w, r, EventPayment, h.checkouts)
}

// GET /shop-order-success?session_id=
func (h *ReturnHandler) ShopOrderSuccess(w http.ResponseWriter, r *http.Request) {
	h.poll(w, r, EventShopOrder, h.checkouts)
}

// GET /cart-success?session_id=
func (h *ReturnHandler) CartSuccess(w http.ResponseWriter, r *http.Request) {
	h.poll(w, r, EventCart, h.cartOrders)
}

func (h *ReturnHandler) poll(w http.ResponseWriter, r *http.Request, kind EventKind, src poller.StatusSource) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := r.URL.Query().Get("session_id")
	res := h.poller.Run(ctx, sessionID, src)
	if !res.State.IsTerminal() {
		h.logger.Warn("payment poll interrupted", "kind", kind, "session_id", sessionID, "error", res.Err)
		respondError(w, http.StatusGatewayTimeout, "poll_interrupted", "payment status is still being checked")
		return
	}

	h.publish(ReturnEvent{Kind: kind, SessionID: sessionID, Result: res, Err: res.Err})

	resp := PollResponse{SessionID: sessionID, State: res.State, Attempts: res.Attempts}
	if res.Last != nil {
		resp.PaymentStatus = res.Last.PaymentStatus
		resp.Status = res.Last.Status
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /health
func (h *ReturnHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

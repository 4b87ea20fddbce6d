package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/GrishaDaradjanovv/Dani/internal/service")

// Redirector sends the user to the payment page.
type Redirector func(url string) error

type CartConfig struct {
	// OriginURL is where the payment processor sends the user back to.
	OriginURL string
	Redirect  Redirector
}

// CheckoutResult is either a request to collect shipping (NeedsShipping) or
// the payment page to go to.
type CheckoutResult struct {
	NeedsShipping bool
	URL           string
	SessionID     string
}

type addItemRequest struct {
	ItemType domain.ItemType `json:"item_type"`
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
}

type cartCheckoutRequest struct {
	ShippingAddress *domain.ShippingAddress `json:"shipping_address,omitempty"`
	OriginURL       string                  `json:"origin_url"`
}

// CartService is the local copy of the signed-in user's cart. The backend is
// the source of truth: local state only changes after the backend confirmed.
type CartService struct {
	api    *client.Client
	cfg    CartConfig
	logger *slog.Logger

	mu               sync.RWMutex
	items            []domain.CartItem
	shippingRevealed bool
}

func NewCartService(api *client.Client, cfg CartConfig, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartService{
		api:    api,
		cfg:    cfg,
		logger: logger,
	}
}

// FetchCart replaces local state with what the backend holds.
func (s *CartService) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	var items []domain.CartItem
	if err := s.api.Get(ctx, "/cart", &items); err != nil {
		s.logger.Error("failed to fetch cart", "error", err)
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return s.Items(), nil
}

func (s *CartService) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartService) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

func (s *CartService) HasPhysicalItems() bool {
	return hasType(s.Items(), domain.ItemTypeShop)
}

func (s *CartService) HasVideoItems() bool {
	return hasType(s.Items(), domain.ItemTypeVideo)
}

// ShippingRequired is true when checkout must collect a shipping address.
func (s *CartService) ShippingRequired() bool {
	return s.HasPhysicalItems()
}

// ShippingFormVisible is true once a checkout attempt asked for shipping.
func (s *CartService) ShippingFormVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shippingRevealed
}

func (s *CartService) Subtotal() float64 {
	return Subtotal(s.Items())
}

// Subtotal is the sum of price*quantity. No rounding happens here.
func Subtotal(items []domain.CartItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Subtotal()
	}
	return sum
}

func hasType(items []domain.CartItem, t domain.ItemType) bool {
	for _, it := range items {
		if it.ItemType == t {
			return true
		}
	}
	return false
}

// AddItem puts a video or shop item in the cart and reloads the cart.
// Videos always go in with quantity 1.
func (s *CartService) AddItem(ctx context.Context, itemType domain.ItemType, itemID string, quantity int) error {
	if !itemType.Valid() {
		return ErrInvalidItemType
	}
	if itemType == domain.ItemTypeVideo {
		quantity = 1
	}
	if quantity < 1 {
		quantity = 1
	}

	req := addItemRequest{ItemType: itemType, ItemID: itemID, Quantity: quantity}
	if err := s.api.Post(ctx, "/cart/add", req, nil); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	_, err := s.FetchCart(ctx)
	return err
}

// UpdateQuantity sets a line item's quantity. Zero or less removes the item.
func (s *CartService) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) error {
	item, ok := s.find(cartItemID)
	if !ok {
		return ErrItemNotInCart
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, cartItemID)
	}
	if item.ItemType == domain.ItemTypeVideo && quantity != 1 {
		return ErrVideoQuantity
	}

	err := s.api.Do(ctx, client.Request{
		Method: http.MethodPut,
		Path:   "/cart/" + url.PathEscape(cartItemID),
		Query:  url.Values{"quantity": {strconv.Itoa(quantity)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("update cart item %s: %w", cartItemID, err)
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].CartItemID == cartItemID {
			s.items[i].Quantity = quantity
		}
	}
	s.mu.Unlock()
	return nil
}

// RemoveItem deletes the line item on the backend, then locally.
func (s *CartService) RemoveItem(ctx context.Context, cartItemID string) error {
	if err := s.api.Delete(ctx, "/cart/"+url.PathEscape(cartItemID), nil); err != nil {
		return fmt.Errorf("remove cart item %s: %w", cartItemID, err)
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, it := range s.items {
		if it.CartItemID != cartItemID {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.mu.Unlock()
	return nil
}

// Clear empties the cart on the backend and locally.
func (s *CartService) Clear(ctx context.Context) error {
	if err := s.api.Delete(ctx, "/cart", nil); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.mu.Lock()
	s.items = nil
	s.shippingRevealed = false
	s.mu.Unlock()
	return nil
}

// Checkout starts payment for the whole cart. With physical items the first
// call only reveals the shipping form; the next call validates the address
// and submits. Validation failures never reach the backend.
func (s *CartService) Checkout(ctx context.Context, address *domain.ShippingAddress) (CheckoutResult, error) {
	items := s.Items()
	if len(items) == 0 {
		return CheckoutResult{}, ErrEmptyCart
	}

	physical := hasType(items, domain.ItemTypeShop)
	if physical && s.revealShipping() {
		return CheckoutResult{NeedsShipping: true}, nil
	}

	req := cartCheckoutRequest{OriginURL: s.cfg.OriginURL}
	if physical {
		if address == nil {
			return CheckoutResult{}, &ValidationError{Missing: domain.ShippingAddress{}.MissingFields()}
		}
		if missing := address.MissingFields(); len(missing) > 0 {
			return CheckoutResult{}, &ValidationError{Missing: missing}
		}
		addr := *address
		req.ShippingAddress = &addr
	}
	if req.OriginURL == "" {
		return CheckoutResult{}, ErrNoOriginURL
	}

	ctx, span := tracer.Start(ctx, "cart.checkout", trace.WithAttributes(
		attribute.Int("cart.items", len(items)),
		attribute.Bool("cart.physical", physical),
	))
	defer span.End()

	var session domain.CheckoutSession
	err := s.api.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/cart/checkout",
		Body:   req,
		Header: http.Header{"Idempotency-Key": {uuid.NewString()}},
	}, &session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}
	if session.URL == "" {
		return CheckoutResult{}, errors.New("checkout: backend returned no payment URL")
	}

	s.logger.Info("checkout session created", "session_id", session.SessionID, "items", len(items))

	if s.cfg.Redirect != nil {
		if err := s.cfg.Redirect(session.URL); err != nil {
			return CheckoutResult{URL: session.URL, SessionID: session.SessionID}, fmt.Errorf("redirect to payment page: %w", err)
		}
	}
	return CheckoutResult{URL: session.URL, SessionID: session.SessionID}, nil
}

// revealShipping flips the form on and reports whether this call did it.
func (s *CartService) revealShipping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shippingRevealed {
		return false
	}
	s.shippingRevealed = true
	return true
}

func (s *CartService) find(cartItemID string) (domain.CartItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.CartItemID == cartItemID {
			return it, true
		}
	}
	return domain.CartItem{}, false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GrishaDaradjanovv/Dani/internal/cache"
	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Cache keys of public reads. Videos are never cached because the listing
// carries the caller's is_purchased flag.
const (
	shopItemsKey = "/shop/items"
	blogPostsKey = "/blog"
	pagesKey     = "/pages"
)

type videoCheckoutRequest struct {
	VideoID   string `json:"video_id"`
	OriginURL string `json:"origin_url"`
}

type shopCheckoutRequest struct {
	ItemID          string                 `json:"item_id"`
	Quantity        int                    `json:"quantity"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	OriginURL       string                 `json:"origin_url"`
}

// CatalogService wraps the catalog, blog, order and page endpoints.
type CatalogService struct {
	api       *client.Client
	cache     cache.CatalogCache
	originURL string
	logger    *slog.Logger
	sfg       singleflight.Group
}

func NewCatalogService(api *client.Client, c cache.CatalogCache, originURL string, logger *slog.Logger) *CatalogService {
	if c == nil {
		c = cache.NoopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		api:       api,
		cache:     c,
		originURL: originURL,
		logger:    logger,
	}
}

// cachedGet reads path through the cache. Concurrent misses for the same
// path share one backend call.
func cachedGet[T any](ctx context.Context, s *CatalogService, path string) (T, error) {
	v, err, _ := s.sfg.Do(path, func() (interface{}, error) {
		var cached T
		err := s.cache.Get(ctx, path, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", "key", path, "error", err)
		}

		var fresh T
		if err := s.api.Get(ctx, path, &fresh); err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, path, fresh); err != nil {
				s.logger.Warn("cache set error", "key", path, "error", err)
			}
		}()
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *CatalogService) invalidate(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidate error", "keys", keys, "error", err)
	}
}

func (s *CatalogService) checkoutOrigin() (string, error) {
	if s.originURL == "" {
		return "", ErrNoOriginURL
	}
	return s.originURL, nil
}

func (s *CatalogService) ListVideos(ctx context.Context) ([]domain.Video, error) {
	var videos []domain.Video
	if err := s.api.Get(ctx, "/videos", &videos); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

func (s *CatalogService) GetVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	var v domain.Video
	if err := s.api.Get(ctx, "/videos/"+url.PathEscape(videoID), &v); err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return &v, nil
}

// MyVideos lists the videos the signed-in user has bought.
func (s *CatalogService) MyVideos(ctx context.Context) ([]domain.Video, error) {
	var videos []domain.Video
	if err := s.api.Get(ctx, "/my-videos", &videos); err != nil {
		return nil, fmt.Errorf("list purchased videos: %w", err)
	}
	return videos, nil
}

func (s *CatalogService) CreateVideo(ctx context.Context, in domain.VideoInput) (*domain.Video, error) {
	var v domain.Video
	if err := s.api.Post(ctx, "/videos", in, &v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return &v, nil
}

func (s *CatalogService) DeleteVideo(ctx context.Context, videoID string) error {
	if err := s.api.Delete(ctx, "/videos/"+url.PathEscape(videoID), nil); err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}
	return nil
}

// BuyVideo opens a payment session for a single video. The result is polled
// on /checkout/status/{session_id}.
func (s *CatalogService) BuyVideo(ctx context.Context, videoID string) (*domain.CheckoutSession, error) {
	origin, err := s.checkoutOrigin()
	if err != nil {
		return nil, err
	}

	var session domain.CheckoutSession
	req := videoCheckoutRequest{VideoID: videoID, OriginURL: origin}
	if err := s.api.Post(ctx, "/checkout/create", req, &session); err != nil {
		return nil, fmt.Errorf("buy video %s: %w", videoID, err)
	}
	return &session, nil
}

func (s *CatalogService) ListShopItems(ctx context.Context) ([]domain.ShopItem, error) {
	items, err := cachedGet[[]domain.ShopItem](ctx, s, shopItemsKey)
	if err != nil {
		return nil, fmt.Errorf("list shop items: %w", err)
	}
	return items, nil
}

func (s *CatalogService) GetShopItem(ctx context.Context, itemID string) (*domain.ShopItem, error) {
	var item domain.ShopItem
	if err := s.api.Get(ctx, "/shop/items/"+url.PathEscape(itemID), &item); err != nil {
		return nil, fmt.Errorf("get shop item %s: %w", itemID, err)
	}
	return &item, nil
}

func (s *CatalogService) CreateShopItem(ctx context.Context, in domain.ShopItemInput) (*domain.ShopItem, error) {
	var item domain.ShopItem
	if err := s.api.Post(ctx, "/shop/items", in, &item); err != nil {
		return nil, fmt.Errorf("create shop item: %w", err)
	}
	s.invalidate(shopItemsKey)
	return &item, nil
}

func (s *CatalogService) UpdateShopItem(ctx context.Context, itemID string, in domain.ShopItemInput) (*domain.ShopItem, error) {
	var item domain.ShopItem
	if err := s.api.Put(ctx, "/shop/items/"+url.PathEscape(itemID), in, &item); err != nil {
		return nil, fmt.Errorf("update shop item %s: %w", itemID, err)
	}
	s.invalidate(shopItemsKey)
	return &item, nil
}

func (s *CatalogService) DeleteShopItem(ctx context.Context, itemID string) error {
	if err := s.api.Delete(ctx, "/shop/items/"+url.PathEscape(itemID), nil); err != nil {
		return fmt.Errorf("delete shop item %s: %w", itemID, err)
	}
	s.invalidate(shopItemsKey)
	return nil
}

// BuyShopItem opens a payment session for one shop item outside the cart.
// The address is checked before any request is made.
func (s *CatalogService) BuyShopItem(ctx context.Context, itemID string, quantity int, address domain.ShippingAddress) (*domain.CheckoutSession, error) {
	if missing := address.MissingFields(); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}
	if quantity < 1 {
		quantity = 1
	}
	origin, err := s.checkoutOrigin()
	if err != nil {
		return nil, err
	}

	var session domain.CheckoutSession
	req := shopCheckoutRequest{ItemID: itemID, Quantity: quantity, ShippingAddress: address, OriginURL: origin}
	if err := s.api.Post(ctx, "/shop/checkout", req, &session); err != nil {
		return nil, fmt.Errorf("buy shop item %s: %w", itemID, err)
	}
	return &session, nil
}

// MyOrders lists the signed-in user's shop orders.
func (s *CatalogService) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.api.Get(ctx, "/shop/orders", &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *CatalogService) ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error) {
	posts, err := cachedGet[[]domain.BlogPost](ctx, s, blogPostsKey)
	if err != nil {
		return nil, fmt.Errorf("list blog posts: %w", err)
	}
	return posts, nil
}

func (s *CatalogService) GetBlogPost(ctx context.Context, postID string) (*domain.BlogPost, error) {
	var post domain.BlogPost
	if err := s.api.Get(ctx, "/blog/"+url.PathEscape(postID), &post); err != nil {
		return nil, fmt.Errorf("get blog post %s: %w", postID, err)
	}
	return &post, nil
}

func (s *CatalogService) CreateBlogPost(ctx context.Context, in domain.BlogPostInput) (*domain.BlogPost, error) {
	var post domain.BlogPost
	if err := s.api.Post(ctx, "/blog", in, &post); err != nil {
		return nil, fmt.Errorf("create blog post: %w", err)
	}
	s.invalidate(blogPostsKey)
	return &post, nil
}

func (s *CatalogService) DeleteBlogPost(ctx context.Context, postID string) error {
	if err := s.api.Delete(ctx, "/blog/"+url.PathEscape(postID), nil); err != nil {
		return fmt.Errorf("delete blog post %s: %w", postID, err)
	}
	s.invalidate(blogPostsKey)
	return nil
}

func (s *CatalogService) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := s.api.Get(ctx, "/blog/"+url.PathEscape(postID)+"/comments", &comments); err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", postID, err)
	}
	return comments, nil
}

// AddComment posts a comment. The blog listing is invalidated since it
// carries comment counts.
func (s *CatalogService) AddComment(ctx context.Context, postID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}

	var c domain.Comment
	body := map[string]string{"content": content}
	if err := s.api.Post(ctx, "/blog/"+url.PathEscape(postID)+"/comments", body, &c); err != nil {
		return nil, fmt.Errorf("add comment to %s: %w", postID, err)
	}
	s.invalidate(blogPostsKey)
	return &c, nil
}

func (s *CatalogService) DeleteComment(ctx context.Context, commentID string) error {
	if err := s.api.Delete(ctx, "/comments/"+url.PathEscape(commentID), nil); err != nil {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	s.invalidate(blogPostsKey)
	return nil
}

func (s *CatalogService) AdminOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.api.Get(ctx, "/admin/orders", &orders); err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}

func (s *CatalogService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrderStatus, status)
	}

	err := s.api.Do(ctx, client.Request{
		Method: http.MethodPut,
		Path:   "/admin/orders/" + url.PathEscape(orderID) + "/status",
		Query:  url.Values{"status": {string(status)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("update order %s: %w", orderID, err)
	}
	return nil
}

func (s *CatalogService) ListPages(ctx context.Context) ([]domain.Page, error) {
	pages, err := cachedGet[[]domain.Page](ctx, s, pagesKey)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (s *CatalogService) GetPage(ctx context.Context, pageID string) (*domain.Page, error) {
	page, err := cachedGet[domain.Page](ctx, s, pagesKey+"/"+url.PathEscape(pageID))
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return &page, nil
}

// UpdatePage merges fields into a service page.
func (s *CatalogService) UpdatePage(ctx context.Context, pageID string, fields map[string]any) (*domain.Page, error) {
	key := pagesKey + "/" + url.PathEscape(pageID)
	var page domain.Page
	if err := s.api.Put(ctx, key, fields, &page); err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	s.invalidate(pagesKey, key)
	return &page, nil
}

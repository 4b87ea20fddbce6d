package domain

import "time"

type Video struct {
	ID           string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	VideoURL     string    `json:"video_url,omitempty"`
	Price        float64   `json:"price"`
	Duration     string    `json:"duration"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	IsPurchased  bool      `json:"is_purchased"`
}

type VideoInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL string  `json:"thumbnail_url"`
	VideoURL     string  `json:"video_url"`
	Price        float64 `json:"price"`
	Duration     string  `json:"duration"`
	Category     string  `json:"category"`
}

type ShopItem struct {
	ID          string    `json:"item_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

type ShopItemInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
}

type BlogPost struct {
	ID            string    `json:"post_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Excerpt       string    `json:"excerpt"`
	CoverImage    string    `json:"cover_image"`
	Category      string    `json:"category"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	CreatedAt     time.Time `json:"created_at"`
	CommentsCount int       `json:"comments_count"`
}

type BlogPostInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Excerpt    string `json:"excerpt"`
	CoverImage string `json:"cover_image"`
	Category   string `json:"category"`
}

type Comment struct {
	ID        string    `json:"comment_id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

type Order struct {
	ID              string          `json:"order_id"`
	ItemID          string          `json:"item_id"`
	ItemName        string          `json:"item_name"`
	Quantity        int             `json:"quantity"`
	TotalAmount     float64         `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

type PageFeature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Page struct {
	ID       string        `json:"page_id"`
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle"`
	Content  string        `json:"content"`
	ImageURL string        `json:"image_url"`
	Features []PageFeature `json:"features"`
}

package domain

import "strings"

type ItemType string

const (
	ItemTypeVideo ItemType = "video"
	ItemTypeShop  ItemType = "shop"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeVideo || t == ItemTypeShop
}

// IsPhysical reports whether the item ships and therefore needs an address.
func (t ItemType) IsPhysical() bool {
	return t == ItemTypeShop
}

type CartItem struct {
	CartItemID string   `json:"cart_item_id"`
	ItemType   ItemType `json:"item_type"`
	ItemID     string   `json:"item_id"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Price      float64  `json:"price"`
	Quantity   int      `json:"quantity"`
	ImageURL   string   `json:"image_url"`
}

func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

type ShippingAddress struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

// MissingFields returns the JSON names of required fields that are blank,
// in form order.
func (a ShippingAddress) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"full_name", a.FullName},
		{"address_line1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
		{"phone", a.Phone},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

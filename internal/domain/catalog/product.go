// Package catalog contains the product catalog domain: products, the hero
// selection shown on the landing page, and the rules that keep them consistent.
package catalog

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// MaxHeroProducts is the maximum number of products in the hero selection.
const MaxHeroProducts = 6

// Sentinel errors for catalog operations.
var (
	// ErrProductNotFound is returned when no product has the requested id.
	ErrProductNotFound = errors.New("product not found")
	// ErrCorruptSnapshot is returned when the persisted catalog cannot be decoded or validated.
	ErrCorruptSnapshot = errors.New("corrupt catalog snapshot")
	// ErrStaleSnapshot is returned when another writer changed the persisted
	// catalog since it was last read. Callers should reload and retry.
	ErrStaleSnapshot = errors.New("catalog changed in storage, reload required")
	// ErrInvalidProduct wraps schema violations of a product or snapshot.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a single catalog entry.
type Product struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Name          string   `json:"name" yaml:"name" validate:"required"`
	Price         float64  `json:"price" yaml:"price" validate:"gte=0"`
	OriginalPrice *float64 `json:"originalPrice,omitempty" yaml:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	Image         string   `json:"image" yaml:"image"`
	Category      string   `json:"category" yaml:"category" validate:"required"`
	Subcategory   string   `json:"subcategory" yaml:"subcategory"`
	Description   string   `json:"description" yaml:"description"`
	Sizes         []string `json:"sizes" yaml:"sizes"`
	Colors        []string `json:"colors" yaml:"colors"`
	InStock       bool     `json:"inStock" yaml:"inStock"`
	Rating        float64  `json:"rating" yaml:"rating" validate:"gte=0,lte=5"`
	Reviews       int      `json:"reviews" yaml:"reviews" validate:"gte=0"`
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	c := p
	c.Sizes = slices.Clone(p.Sizes)
	c.Colors = slices.Clone(p.Colors)
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		c.OriginalPrice = &op
	}
	return c
}

// Matches reports whether the lowercased query is a substring of the name,
// description, category or subcategory. An empty query matches everything.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q) ||
		strings.Contains(strings.ToLower(p.Subcategory), q)
}

// NewProduct holds every product field except the id, which the store assigns.
type NewProduct struct {
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Image         string   `json:"image"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Description   string   `json:"description"`
	Sizes         []string `json:"sizes"`
	Colors        []string `json:"colors"`
	InStock       bool     `json:"inStock"`
	Rating        float64  `json:"rating"`
	Reviews       int      `json:"reviews"`
}

// WithID builds a Product from n.
func (n NewProduct) WithID(id string) Product {
	return Product{
		ID:            id,
		Name:          n.Name,
		Price:         n.Price,
		OriginalPrice: n.OriginalPrice,
		Image:         n.Image,
		Category:      n.Category,
		Subcategory:   n.Subcategory,
		Description:   n.Description,
		Sizes:         n.Sizes,
		Colors:        n.Colors,
		InStock:       n.InStock,
		Rating:        n.Rating,
		Reviews:       n.Reviews,
	}.Clone()
}

// ProductPatch is a partial update. Nil fields are left unchanged.
// The id is not patchable.
type ProductPatch struct {
	Name          *string   `json:"name,omitempty"`
	Price         *float64  `json:"price,omitempty"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Image         *string   `json:"image,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Subcategory   *string   `json:"subcategory,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Sizes         *[]string `json:"sizes,omitempty"`
	Colors        *[]string `json:"colors,omitempty"`
	InStock       *bool     `json:"inStock,omitempty"`
	Rating        *float64  `json:"rating,omitempty"`
	Reviews       *int      `json:"reviews,omitempty"`
}

// Apply returns p with the non-nil patch fields merged in.
func (patch ProductPatch) Apply(p Product) Product {
	out := p.Clone()
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Price != nil {
		out.Price = *patch.Price
	}
	if patch.OriginalPrice != nil {
		op := *patch.OriginalPrice
		out.OriginalPrice = &op
	}
	if patch.Image != nil {
		out.Image = *patch.Image
	}
	if patch.Category != nil {
		out.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		out.Subcategory = *patch.Subcategory
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.Sizes != nil {
		out.Sizes = slices.Clone(*patch.Sizes)
	}
	if patch.Colors != nil {
		out.Colors = slices.Clone(*patch.Colors)
	}
	if patch.InStock != nil {
		out.InStock = *patch.InStock
	}
	if patch.Rating != nil {
		out.Rating = *patch.Rating
	}
	if patch.Reviews != nil {
		out.Reviews = *patch.Reviews
	}
	return out
}

// Snapshot is the persisted form of the whole catalog.
type Snapshot struct {
	Products     []Product `json:"products" yaml:"products"`
	HeroProducts []string  `json:"heroProducts" yaml:"heroProducts"`
	LastUpdated  time.Time `json:"lastUpdated" yaml:"lastUpdated"`
}

// Clone returns a deep copy of s. Nil slices become empty slices.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Products:     make([]Product, len(s.Products)),
		HeroProducts: make([]string, len(s.HeroProducts)),
		LastUpdated:  s.LastUpdated,
	}
	for i, p := range s.Products {
		out.Products[i] = p.Clone()
	}
	copy(out.HeroProducts, s.HeroProducts)
	return out
}

// IndexOf returns the index of the product with id, or -1.
func IndexOf(products []Product, id string) int {
	return slices.IndexFunc(products, func(p Product) bool { return p.ID == id })
}

// FilterHero returns ids restricted to existing products, without duplicates,
// in their original order, capped at MaxHeroProducts.
func FilterHero(ids []string, products []Product) []string {
	exists := make(map[string]struct{}, len(products))
	for _, p := range products {
		exists[p.ID] = struct{}{}
	}
	out := make([]string, 0, min(len(ids), MaxHeroProducts))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if len(out) == MaxHeroProducts {
			break
		}
		if _, ok := exists[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package catalog

import (
	"errors"
	"time"

	"altessa/internal/gallery"
	"altessa/internal/media"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrCategoryExists      = errors.New("category already exists")
	ErrSubcategoryExists   = errors.New("subcategory already exists")
	ErrRevalidateTarget    = errors.New("path or tag is required")
)

// ValidationError is returned for rejected admin input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Product is a watch listed in the storefront.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	Images      []string  `json:"images"`
	CardURL     string    `json:"card_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryName returns the category or "".
func (p *Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}

// Media resolves the product's gallery against its cover image.
func (p *Product) Media() []gallery.MediaItem {
	return gallery.ResolveMediaList(p.Images, p.ImageURL)
}

type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories"`
}

type Subcategory struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
}

// ProductFilters for listing products.
type ProductFilters struct {
	Categories  []string `json:"categories,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Search      string   `json:"search,omitempty"`
	Page        int      `json:"page"`
	PageSize    int      `json:"page_size"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items      []*Product     `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	HasMore    bool           `json:"has_more"`
	Categories map[string]int `json:"categories"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Images      []string `json:"images"`
}

// ProductDetail is everything the product page needs in one response.
type ProductDetail struct {
	Product  *Product            `json:"product"`
	Media    []gallery.MediaItem `json:"media"`
	Variants []media.VariantSet  `json:"variants"`
	Lens     gallery.LensConfig  `json:"lens"`
	Related  []*Product          `json:"related"`
}

// GalleryView is the resolved media list of a product.
type GalleryView struct {
	ProductID int64               `json:"product_id"`
	Media     []gallery.MediaItem `json:"media"`
	Variants  []media.VariantSet  `json:"variants"`
	Lens      gallery.LensConfig  `json:"lens"`
}

type CategoryInput struct {
	Name string `json:"name"`
}

type SubcategoryInput struct {
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
}

type RevalidateRequest struct {
	Path string `json:"path" query:"path"`
	Tag  string `json:"tag" query:"tag"`
}

// LensRequest carries one pointer sample from a thin client.
type LensRequest struct {
	ContainerW float64 `json:"container_width"`
	ContainerH float64 `json:"container_height"`
	NaturalW   float64 `json:"natural_width"`
	NaturalH   float64 `json:"natural_height"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ZoomScale  float64 `json:"zoom_scale,omitempty"`
	LensSize   float64 `json:"lens_size,omitempty"`
	URI        string  `json:"uri,omitempty"`
}

type LensResponse struct {
	Visible    bool                `json:"visible"`
	Geometry   *gallery.Geometry   `json:"geometry,omitempty"`
	Projection *gallery.Projection `json:"projection,omitempty"`
}

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	RelatedLimit    = 4
	// RelatedFallbackPool is how many other products are considered when the
	// category alone yields too few related products.
	RelatedFallbackPool = 20
	MaxNameLength       = 200
)

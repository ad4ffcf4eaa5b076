package catalog

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"altessa/internal/events"
	"altessa/internal/gallery"
	"altessa/internal/media"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MediaCleaner removes stored media by public URL.
type MediaCleaner interface {
	DeleteMany(ctx context.Context, urls []string) bool
}

// Options tune the catalog service.
type Options struct {
	PageSize     int
	MaxPageSize  int
	RelatedLimit int
	CacheTTL     time.Duration
	Lens         gallery.LensConfig
}

// Service implements catalog reads (cached) and admin writes.
type Service struct {
	store     Store
	cache     Cache
	publisher events.Publisher
	cleaner   MediaCleaner
	log       *zap.Logger
	opts      Options
	shuffle   func(n int, swap func(i, j int))
}

func NewService(store Store, cache Cache, publisher events.Publisher, cleaner MediaCleaner, log *zap.Logger, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = RelatedLimit
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	opts.Lens = opts.Lens.Normalize()
	if cache == nil {
		cache = NoopCache()
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}

	return &Service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		cleaner:   cleaner,
		log:       log,
		opts:      opts,
		shuffle:   rand.Shuffle,
	}
}

// LensConfig is the magnifier configuration handed to clients.
func (s *Service) LensConfig() gallery.LensConfig {
	return s.opts.Lens
}

// normalizeFilters applies pagination defaults and trims filter values.
func (s *Service) normalizeFilters(f ProductFilters) ProductFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = s.opts.PageSize
	}
	if f.PageSize > s.opts.MaxPageSize {
		f.PageSize = s.opts.MaxPageSize
	}

	var categories []string
	seen := map[string]bool{}
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c != "" && !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}
	f.Categories = categories
	f.Subcategory = strings.TrimSpace(f.Subcategory)
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func listCacheKey(f ProductFilters) string {
	return fmt.Sprintf("products:c=%s:s=%s:q=%s:p=%d:n=%d",
		strings.Join(f.Categories, ","), f.Subcategory, strings.ToLower(f.Search), f.Page, f.PageSize)
}

// ListProducts returns one page of products plus per-category counts.
func (s *Service) ListProducts(ctx context.Context, f ProductFilters) (*ProductPage, error) {
	f = s.normalizeFilters(f)
	key := listCacheKey(f)

	var page ProductPage
	if s.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	var (
		items  []*Product
		total  int
		counts map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.store.ListProducts(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.CategoryCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range items {
		decorate(p)
	}

	totalPages := int(math.Ceil(float64(total) / float64(f.PageSize)))
	page = ProductPage{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages,
		HasMore:    total > f.Page*f.PageSize,
		Categories: counts,
	}

	s.cacheSet(ctx, key, &page, TagProducts)
	return &page, nil
}

// GetProduct returns a single product with its gallery.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	key := "product:" + strconv.FormatInt(id, 10)

	var p Product
	if s.cacheGet(ctx, key, &p) {
		return &p, nil
	}

	found, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	decorate(found)

	s.cacheSet(ctx, key, found, ProductTag(id))
	return found, nil
}

// Gallery resolves the product media list and the variant URLs per item.
func (s *Service) Gallery(ctx context.Context, id int64) (*GalleryView, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	items := p.Media()
	return &GalleryView{
		ProductID: p.ID,
		Media:     items,
		Variants:  variantsFor(items),
		Lens:      s.opts.Lens,
	}, nil
}

// ProductDetail bundles the product, its resolved gallery and related
// products.
func (s *Service) ProductDetail(ctx context.Context, id int64) (*ProductDetail, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	related, err := s.RelatedProducts(ctx, p)
	if err != nil {
		// Related products are decoration; the page still renders without them.
		s.log.Warn("failed to load related products", zap.Int64("product_id", id), zap.Error(err))
		related = []*Product{}
	}

	items := p.Media()
	return &ProductDetail{
		Product:  p,
		Media:    items,
		Variants: variantsFor(items),
		Lens:     s.opts.Lens,
		Related:  related,
	}, nil
}

// RelatedProducts picks up to RelatedLimit other products: same category
// first, topped up from a wider pool when the category is too small, then
// shuffled.
func (s *Service) RelatedProducts(ctx context.Context, p *Product) ([]*Product, error) {
	pool, err := s.store.ProductsInCategory(ctx, p.CategoryName(), p.ID)
	if err != nil {
		return nil, err
	}

	if len(pool) < s.opts.RelatedLimit {
		extra, err := s.store.OtherProducts(ctx, p.ID, RelatedFallbackPool)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]bool, len(pool))
		for _, item := range pool {
			seen[item.ID] = true
		}
		for _, item := range extra {
			if !seen[item.ID] {
				seen[item.ID] = true
				pool = append(pool, item)
			}
		}
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > s.opts.RelatedLimit {
		pool = pool[:s.opts.RelatedLimit]
	}

	for _, item := range pool {
		decorate(item)
	}
	return pool, nil
}

// ListCategories returns categories with their subcategories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if s.cacheGet(ctx, "categories", &categories) {
		return categories, nil
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "categories", categories, TagCategories)
	return categories, nil
}

// ListSubcategories returns the subcategories of one category, or all.
func (s *Service) ListSubcategories(ctx context.Context, categoryID int64) ([]Subcategory, error) {
	return s.store.ListSubcategories(ctx, categoryID)
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in, err := s.validateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	p, err := s.store.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}
	decorate(p)

	s.invalidate(ctx, TagProducts, TagCategories)
	s.publish(ctx, events.New(events.ProductCreated, "product", idString(p.ID), p))
	return p, nil
}

// UpdateProduct replaces a product and removes media it no longer uses.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	in, err := s.validateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	p, previous, err := s.store.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}
	decorate(p)

	s.cleanup(ctx, removedMedia(previous, in.Images))
	s.invalidate(ctx, TagProducts, TagCategories, ProductTag(id))
	s.publish(ctx, events.New(events.ProductUpdated, "product", idString(id), p))
	return p, nil
}

// DeleteProduct removes a product and its stored media.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}

	s.cleanup(ctx, gallery.URIs(p.Media()))
	s.invalidate(ctx, TagProducts, TagCategories, ProductTag(id))
	s.publish(ctx, events.New(events.ProductDeleted, "product", idString(id), nil))
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if len(name) > MaxNameLength {
		return nil, &ValidationError{Field: "name", Message: "is too long"}
	}

	c, err := s.store.CreateCategory(ctx, name)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, TagCategories)
	s.publish(ctx, events.New(events.CategoryCreated, "category", idString(c.ID), c))
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	c, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return err
	}

	s.invalidate(ctx, TagCategories, TagProducts)
	s.publish(ctx, events.New(events.CategoryDeleted, "category", idString(id), c))
	return nil
}

func (s *Service) CreateSubcategory(ctx context.Context, in SubcategoryInput) (*Subcategory, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	if in.CategoryID <= 0 {
		return nil, &ValidationError{Field: "category_id", Message: "is required"}
	}

	sub, err := s.store.CreateSubcategory(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, TagCategories)
	s.publish(ctx, events.New(events.SubcategoryCreated, "subcategory", idString(sub.ID), sub))
	return sub, nil
}

func (s *Service) DeleteSubcategory(ctx context.Context, id int64) error {
	sub, err := s.store.DeleteSubcategory(ctx, id)
	if err != nil {
		return err
	}

	s.invalidate(ctx, TagCategories)
	s.publish(ctx, events.New(events.SubcategoryDeleted, "subcategory", idString(id), sub))
	return nil
}

// Revalidate drops cached responses for a storefront path and/or tag.
func (s *Service) Revalidate(ctx context.Context, req RevalidateRequest) (int, error) {
	req.Path = strings.TrimSpace(req.Path)
	req.Tag = strings.TrimSpace(req.Tag)
	if req.Path == "" && req.Tag == "" {
		return 0, ErrRevalidateTarget
	}

	var tags []string
	if req.Path != "" {
		tags = append(tags, TagsForPath(req.Path)...)
	}
	if req.Tag != "" {
		tags = append(tags, req.Tag)
	}

	removed, err := s.cache.InvalidateTags(ctx, tags...)
	if err != nil {
		return 0, fmt.Errorf("failed to revalidate: %w", err)
	}

	s.publish(ctx, events.New(events.CacheRevalidated, "cache", strings.Join(tags, ","), req))
	return removed, nil
}

func (s *Service) validateProduct(ctx context.Context, in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Subcategory = strings.TrimSpace(in.Subcategory)

	if in.Name == "" {
		return in, &ValidationError{Field: "name", Message: "is required"}
	}
	if len(in.Name) > MaxNameLength {
		return in, &ValidationError{Field: "name", Message: "is too long"}
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return in, &ValidationError{Field: "price", Message: "must be zero or greater"}
	}
	if in.Subcategory != "" && in.Category == "" {
		return in, &ValidationError{Field: "subcategory", Message: "requires a category"}
	}

	if in.Category != "" {
		exists, err := s.store.CategoryExists(ctx, in.Category)
		if err != nil {
			return in, err
		}
		if !exists {
			return in, &ValidationError{Field: "category", Message: "does not exist"}
		}
	}

	// The gallery is stored as resolved: blanks and duplicates dropped.
	in.Images = gallery.URIs(gallery.ResolveMediaList(in.Images, ""))
	return in, nil
}

// removedMedia lists previous URLs that are no longer referenced.
func removedMedia(previous, current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, u := range current {
		keep[u] = true
	}
	var removed []string
	seen := map[string]bool{}
	for _, u := range previous {
		if u != "" && !keep[u] && !seen[u] {
			seen[u] = true
			removed = append(removed, u)
		}
	}
	return removed
}

func (s *Service) cleanup(ctx context.Context, urls []string) {
	if s.cleaner == nil || len(urls) == 0 {
		return
	}
	if !s.cleaner.DeleteMany(ctx, urls) {
		s.log.Warn("some product media could not be deleted", zap.Strings("urls", urls))
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dst interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}, tags ...string) {
	if err := s.cache.Set(ctx, key, value, s.opts.CacheTTL, tags...); err != nil {
		s.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, tags ...string) {
	if _, err := s.cache.InvalidateTags(ctx, tags...); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("failed to publish catalog event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// decorate fills fields derived from the stored gallery.
func decorate(p *Product) {
	if p.Images == nil {
		p.Images = []string{}
	}
	items := p.Media()
	if len(items) > 0 {
		p.CardURL = media.Variants(items[0]).Card
	}
}

func variantsFor(items []gallery.MediaItem) []media.VariantSet {
	out := make([]media.VariantSet, len(items))
	for i, item := range items {
		out[i] = media.Variants(item)
	}
	return out
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

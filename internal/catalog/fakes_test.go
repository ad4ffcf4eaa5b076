package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"altessa/internal/events"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu            sync.Mutex
	nextID        int64
	products      map[int64]*Product
	categories    map[int64]Category
	subcategories map[int64]Subcategory
	listCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:      map[int64]*Product{},
		categories:    map[int64]Category{},
		subcategories: map[int64]Subcategory{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func clone(p *Product) *Product {
	cp := *p
	cp.Images = append([]string{}, p.Images...)
	return &cp
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *fakeStore) addProduct(name, category string, images ...string) *Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Product{ID: s.id(), Name: name, Category: strPtr(category), Images: images, CreatedAt: time.Now()}
	if len(images) > 0 {
		p.ImageURL = images[0]
	}
	s.products[p.ID] = p
	return clone(p)
}

func (s *fakeStore) addCategory(name string) Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Category{ID: s.id(), Name: name, Subcategories: []Subcategory{}}
	s.categories[c.ID] = c
	return c
}

func (s *fakeStore) sorted(match func(*Product) bool) []*Product {
	out := []*Product{}
	for _, p := range s.products {
		if match(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListProducts(_ context.Context, f ProductFilters) ([]*Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	all := s.sorted(func(p *Product) bool {
		if len(f.Categories) > 0 {
			found := false
			for _, c := range f.Categories {
				if p.CategoryName() == c {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			return false
		}
		return true
	})

	start := (f.Page - 1) * f.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *fakeStore) CategoryCounts(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, p := range s.products {
		if c := p.CategoryName(); c != "" {
			counts[c]++
		}
	}
	return counts, nil
}

func (s *fakeStore) GetProduct(_ context.Context, id int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return clone(p), nil
}

func (s *fakeStore) ProductsInCategory(_ context.Context, category string, excludeID int64) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(p *Product) bool {
		return p.ID != excludeID && (category == "" || p.CategoryName() == category)
	}), nil
}

func (s *fakeStore) OtherProducts(_ context.Context, excludeID int64, limit int) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(func(p *Product) bool { return p.ID != excludeID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CreateProduct(_ context.Context, in ProductInput) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Product{
		ID: s.id(), Name: in.Name, Description: in.Description, Price: in.Price,
		Category: strPtr(in.Category), Subcategory: strPtr(in.Subcategory),
		Images: append([]string{}, in.Images...),
	}
	if len(in.Images) > 0 {
		p.ImageURL = in.Images[0]
	}
	s.products[p.ID] = p
	return clone(p), nil
}

func (s *fakeStore) UpdateProduct(_ context.Context, id int64, in ProductInput) (*Product, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil, ErrProductNotFound
	}
	previous := append([]string{}, p.Images...)
	if p.ImageURL != "" {
		previous = append(previous, p.ImageURL)
	}
	p.Name, p.Description, p.Price = in.Name, in.Description, in.Price
	p.Category, p.Subcategory = strPtr(in.Category), strPtr(in.Subcategory)
	p.Images = append([]string{}, in.Images...)
	p.ImageURL = ""
	if len(in.Images) > 0 {
		p.ImageURL = in.Images[0]
	}
	return clone(p), previous, nil
}

func (s *fakeStore) DeleteProduct(_ context.Context, id int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	delete(s.products, id)
	return clone(p), nil
}

func (s *fakeStore) ListCategories(context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Category{}
	for _, c := range s.categories {
		c.Subcategories = []Subcategory{}
		for _, sub := range s.subcategories {
			if sub.CategoryID == c.ID {
				c.Subcategories = append(c.Subcategories, sub)
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) CategoryExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateCategory(ctx context.Context, name string) (*Category, error) {
	if exists, _ := s.CategoryExists(ctx, name); exists {
		return nil, ErrCategoryExists
	}
	c := s.addCategory(name)
	return &c, nil
}

func (s *fakeStore) DeleteCategory(_ context.Context, id int64) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	delete(s.categories, id)
	return &c, nil
}

func (s *fakeStore) ListSubcategories(_ context.Context, categoryID int64) ([]Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Subcategory{}
	for _, sub := range s.subcategories {
		if categoryID == 0 || sub.CategoryID == categoryID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) CreateSubcategory(_ context.Context, in SubcategoryInput) (*Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[in.CategoryID]; !ok {
		return nil, ErrCategoryNotFound
	}
	sub := Subcategory{ID: s.id(), Name: in.Name, CategoryID: in.CategoryID}
	s.subcategories[sub.ID] = sub
	return &sub, nil
}

func (s *fakeStore) DeleteSubcategory(_ context.Context, id int64) (*Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subcategories[id]
	if !ok {
		return nil, ErrSubcategoryNotFound
	}
	delete(s.subcategories, id)
	return &sub, nil
}

// memCache is an in-memory tagged Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	tags    map[string][]string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, tags: map[string][]string{}}
}

func (c *memCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	for _, t := range tags {
		c.tags[t] = append(c.tags[t], key)
	}
	return nil
}

func (c *memCache) InvalidateTags(_ context.Context, tags ...string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range tags {
		for _, key := range c.tags[t] {
			if _, ok := c.entries[key]; ok {
				delete(c.entries, key)
				n++
			}
		}
		delete(c.tags, t)
	}
	return n, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingCleaner struct {
	mu   sync.Mutex
	urls []string
}

func (c *recordingCleaner) DeleteMany(_ context.Context, urls []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, urls...)
	return true
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Store is the persistence the catalog service depends on.
type Store interface {
	ListProducts(ctx context.Context, f ProductFilters) ([]*Product, int, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ProductsInCategory(ctx context.Context, category string, excludeID int64) ([]*Product, error)
	OtherProducts(ctx context.Context, excludeID int64, limit int) ([]*Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, []string, error)
	DeleteProduct(ctx context.Context, id int64) (*Product, error)

	ListCategories(ctx context.Context) ([]Category, error)
	CategoryExists(ctx context.Context, name string) (bool, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) (*Category, error)
	ListSubcategories(ctx context.Context, categoryID int64) ([]Subcategory, error)
	CreateSubcategory(ctx context.Context, in SubcategoryInput) (*Subcategory, error)
	DeleteSubcategory(ctx context.Context, id int64) (*Subcategory, error)
}

// PostgresStore implements Store with database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, name, description, price, image_url, category, subcategory, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var category, subcategory sql.NullString

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL,
		&category, &subcategory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c := strings.TrimSpace(category.String); category.Valid && c != "" {
		p.Category = &c
	}
	if sc := strings.TrimSpace(subcategory.String); subcategory.Valid && sc != "" {
		p.Subcategory = &sc
	}
	p.Images = []string{}
	return &p, nil
}

func (s *PostgresStore) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachImages(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attachImages loads product_images for all products in one query.
func (s *PostgresStore) attachImages(ctx context.Context, products []*Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	byID := make(map[int64]*Product, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, url
		FROM product_images
		WHERE product_id = ANY($1) AND url <> ''
		ORDER BY product_id, position ASC, id ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var url string
		if err := rows.Scan(&productID, &url); err != nil {
			return err
		}
		if p, ok := byID[productID]; ok {
			p.Images = append(p.Images, url)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) ListProducts(ctx context.Context, f ProductFilters) ([]*Product, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if len(f.Categories) > 0 {
		where += fmt.Sprintf(" AND TRIM(category) = ANY($%d)", argCount)
		args = append(args, pq.Array(f.Categories))
		argCount++
	}

	if f.Subcategory != "" {
		where += fmt.Sprintf(" AND TRIM(subcategory) = $%d", argCount)
		args = append(args, f.Subcategory)
		argCount++
	}

	if f.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, argCount, argCount)
		args = append(args, containsPattern(f.Search))
		argCount++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products" + where +
		fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	products, err := s.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches term literally anywhere, with ESCAPE '\'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (s *PostgresStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TRIM(category), COUNT(*)
		FROM products
		WHERE category IS NOT NULL AND TRIM(category) <> ''
		GROUP BY TRIM(category)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if err := s.attachImages(ctx, []*Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ProductsInCategory returns every other product of category. An empty
// category matches all other products.
func (s *PostgresStore) ProductsInCategory(ctx context.Context, category string, excludeID int64) ([]*Product, error) {
	if category == "" {
		return s.queryProducts(ctx,
			"SELECT "+productColumns+" FROM products WHERE id <> $1 ORDER BY id ASC LIMIT 200", excludeID)
	}
	return s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE id <> $1 AND TRIM(category) = $2 ORDER BY id ASC LIMIT 200",
		excludeID, category)
}

func (s *PostgresStore) OtherProducts(ctx context.Context, excludeID int64, limit int) ([]*Product, error) {
	return s.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE id <> $1 ORDER BY id ASC LIMIT $2", excludeID, limit)
}

func (s *PostgresStore) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cover := ""
	if len(in.Images) > 0 {
		cover = in.Images[0]
	}

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, image_url, category, subcategory)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		in.Name, in.Description, in.Price, cover, nullString(in.Category), nullString(in.Subcategory),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	if err := insertImages(ctx, tx, p.ID, in.Images); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	p.Images = append(p.Images, in.Images...)
	return p, nil
}

// UpdateProduct replaces the product fields and its gallery. The previous
// gallery is returned so callers can clean up storage.
func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, []string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var previousCover string
	err = tx.QueryRowContext(ctx, "SELECT image_url FROM products WHERE id = $1 FOR UPDATE", id).Scan(&previousCover)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, err
	}

	previous, err := imagesTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if previousCover != "" {
		previous = append(previous, previousCover)
	}

	cover := ""
	if len(in.Images) > 0 {
		cover = in.Images[0]
	}

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, image_url = $4,
		    category = $5, subcategory = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING `+productColumns,
		in.Name, in.Description, in.Price, cover, nullString(in.Category), nullString(in.Subcategory), id,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_images WHERE product_id = $1", id); err != nil {
		return nil, nil, err
	}
	if err := insertImages(ctx, tx, id, in.Images); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	p.Images = append(p.Images, in.Images...)
	return p, previous, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	// product_images rows go with the product (ON DELETE CASCADE).
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, TRIM(name) FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		if c.ID <= 0 || c.Name == "" {
			continue
		}
		c.Subcategories = []Subcategory{}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs, err := s.ListSubcategories(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		for _, sub := range subs {
			if sub.CategoryID == categories[i].ID {
				categories[i].Subcategories = append(categories[i].Subcategories, sub)
			}
		}
	}
	return categories, nil
}

func (s *PostgresStore) CategoryExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM categories WHERE TRIM(name) = $1)", name,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CreateCategory(ctx context.Context, name string) (*Category, error) {
	c := Category{Subcategories: []Subcategory{}}
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO categories (name) VALUES ($1) RETURNING id, name", name,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		if isPQCode(err, "23505") {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx,
		"DELETE FROM categories WHERE id = $1 RETURNING id, name", id,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}
	return &c, nil
}

// ListSubcategories lists subcategories of categoryID, or all of them for 0.
func (s *PostgresStore) ListSubcategories(ctx context.Context, categoryID int64) ([]Subcategory, error) {
	query := "SELECT id, TRIM(name), category_id FROM subcategories"
	args := []interface{}{}
	if categoryID > 0 {
		query += " WHERE category_id = $1"
		args = append(args, categoryID)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []Subcategory{}
	for rows.Next() {
		var sub Subcategory
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.CategoryID); err != nil {
			return nil, err
		}
		if sub.ID <= 0 || sub.Name == "" || sub.CategoryID <= 0 {
			continue
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) CreateSubcategory(ctx context.Context, in SubcategoryInput) (*Subcategory, error) {
	var sub Subcategory
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO subcategories (name, category_id) VALUES ($1, $2) RETURNING id, name, category_id",
		in.Name, in.CategoryID,
	).Scan(&sub.ID, &sub.Name, &sub.CategoryID)
	if err != nil {
		switch {
		case isPQCode(err, "23505"):
			return nil, ErrSubcategoryExists
		case isPQCode(err, "23503"):
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to create subcategory: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) DeleteSubcategory(ctx context.Context, id int64) (*Subcategory, error) {
	var sub Subcategory
	err := s.db.QueryRowContext(ctx,
		"DELETE FROM subcategories WHERE id = $1 RETURNING id, name, category_id", id,
	).Scan(&sub.ID, &sub.Name, &sub.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubcategoryNotFound
		}
		return nil, fmt.Errorf("failed to delete subcategory: %w", err)
	}
	return &sub, nil
}

func insertImages(ctx context.Context, tx *sql.Tx, productID int64, urls []string) error {
	for i, url := range urls {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO product_images (product_id, url, position) VALUES ($1, $2, $3)",
			productID, url, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product image: %w", err)
		}
	}
	return nil
}

func imagesTx(ctx context.Context, tx *sql.Tx, productID int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT url FROM product_images WHERE product_id = $1 ORDER BY position ASC, id ASC", productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

package catalog

import (
	"errors"
	"strings"

	"altessa/internal/gallery"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// ListProducts handles GET /api/v1/products
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	filters := ProductFilters{
		Categories:  splitList(c.Query("category")),
		Subcategory: c.Query("subcategory"),
		Search:      c.Query("search"),
		Page:        c.QueryInt("page", 1),
		PageSize:    c.QueryInt("page_size", 0),
	}

	page, err := h.service.ListProducts(c.UserContext(), filters)
	if err != nil {
		return h.handleError(c, err, "Failed to fetch products")
	}
	return c.JSON(page)
}

// GetProduct handles GET /api/v1/products/:id and returns the full product
// page payload: product, resolved media, variants, lens config and related
// products.
func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	detail, err := h.service.ProductDetail(c.UserContext(), int64(id))
	if err != nil {
		return h.handleError(c, err, "Failed to fetch product")
	}
	return c.JSON(detail)
}

// GetGallery handles GET /api/v1/products/:id/gallery
func (h *Handler) GetGallery(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	view, err := h.service.Gallery(c.UserContext(), int64(id))
	if err != nil {
		return h.handleError(c, err, "Failed to fetch gallery")
	}
	return c.JSON(view)
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return h.handleError(c, err, "Failed to fetch categories")
	}
	return c.JSON(fiber.Map{
		"items": categories,
	})
}

// ListSubcategories handles GET /api/v1/subcategories?category_id=
func (h *Handler) ListSubcategories(c *fiber.Ctx) error {
	subs, err := h.service.ListSubcategories(c.UserContext(), int64(c.QueryInt("category_id", 0)))
	if err != nil {
		return h.handleError(c, err, "Failed to fetch subcategories")
	}
	return c.JSON(fiber.Map{
		"items": subs,
	})
}

// CreateProduct handles POST /api/v1/admin/products
func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	var in ProductInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	p, err := h.service.CreateProduct(c.UserContext(), in)
	if err != nil {
		return h.handleError(c, err, "Failed to create product")
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// UpdateProduct handles PUT /api/v1/admin/products/:id
func (h *Handler) UpdateProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	var in ProductInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	p, err := h.service.UpdateProduct(c.UserContext(), int64(id), in)
	if err != nil {
		return h.handleError(c, err, "Failed to update product")
	}
	return c.JSON(p)
}

// DeleteProduct handles DELETE /api/v1/admin/products/:id
func (h *Handler) DeleteProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid product id",
		})
	}

	if err := h.service.DeleteProduct(c.UserContext(), int64(id)); err != nil {
		return h.handleError(c, err, "Failed to delete product")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateCategory handles POST /api/v1/admin/categories
func (h *Handler) CreateCategory(c *fiber.Ctx) error {
	var in CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	category, err := h.service.CreateCategory(c.UserContext(), in)
	if err != nil {
		return h.handleError(c, err, "Failed to create category")
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// DeleteCategory handles DELETE /api/v1/admin/categories/:id
func (h *Handler) DeleteCategory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid category id",
		})
	}

	if err := h.service.DeleteCategory(c.UserContext(), int64(id)); err != nil {
		return h.handleError(c, err, "Failed to delete category")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateSubcategory handles POST /api/v1/admin/subcategories
func (h *Handler) CreateSubcategory(c *fiber.Ctx) error {
	var in SubcategoryInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sub, err := h.service.CreateSubcategory(c.UserContext(), in)
	if err != nil {
		return h.handleError(c, err, "Failed to create subcategory")
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// DeleteSubcategory handles DELETE /api/v1/admin/subcategories/:id
func (h *Handler) DeleteSubcategory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subcategory id",
		})
	}

	if err := h.service.DeleteSubcategory(c.UserContext(), int64(id)); err != nil {
		return h.handleError(c, err, "Failed to delete subcategory")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Revalidate handles POST and GET /api/v1/revalidate. The target comes from
// the JSON body or the query string.
func (h *Handler) Revalidate(c *fiber.Ctx) error {
	var req RevalidateRequest
	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid request body",
			})
		}
	}
	if req.Path == "" && req.Tag == "" {
		req.Path, req.Tag = c.Query("path"), c.Query("tag")
	}

	removed, err := h.service.Revalidate(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, ErrRevalidateTarget) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "path or tag is required",
			})
		}
		h.log.Error("revalidate failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": "Failed to revalidate",
		})
	}

	return c.JSON(fiber.Map{
		"ok":          true,
		"revalidated": req,
		"removed":     removed,
	})
}

// Lens handles POST /api/v1/gallery/lens for clients that delegate the lens
// geometry to the server.
func (h *Handler) Lens(c *fiber.Ctx) error {
	var req LensRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.URI != "" && gallery.Classify(req.URI) == gallery.KindVideo {
		return c.JSON(LensResponse{Visible: false})
	}

	container := gallery.Size{W: req.ContainerW, H: req.ContainerH}
	geometry, ok := gallery.Fit(gallery.Size{W: req.NaturalW, H: req.NaturalH}, container)
	if !ok {
		return c.JSON(LensResponse{Visible: false})
	}

	cfg := h.service.LensConfig()
	if req.ZoomScale > 0 {
		cfg.ZoomScale = req.ZoomScale
	}
	if req.LensSize > 0 {
		cfg.LensSize = req.LensSize
	}

	x, y := gallery.ClampPointer(req.X, req.Y, container)
	projection := gallery.Project(x, y, geometry, cfg)

	return c.JSON(LensResponse{
		Visible:    true,
		Geometry:   &geometry,
		Projection: &projection,
	})
}

func (h *Handler) handleError(c *fiber.Ctx, err error, fallback string) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCategoryNotFound),
		errors.Is(err, ErrSubcategoryNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, ErrCategoryExists), errors.Is(err, ErrSubcategoryExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.log.Error(fallback, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package media

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves stored media, rendered variants and the admin upload API.
type Handler struct {
	store    Store
	renderer *Renderer
	uploader *Uploader
	buckets  map[string]bool
	log      *zap.Logger
	warm     bool
}

// NewHandler exposes the given public buckets. When warm is set, image
// presets are rendered in the background after each upload.
func NewHandler(store Store, renderer *Renderer, uploader *Uploader, log *zap.Logger, warm bool, publicBuckets ...string) *Handler {
	buckets := make(map[string]bool, len(publicBuckets))
	for _, b := range publicBuckets {
		buckets[b] = true
	}
	return &Handler{
		store:    store,
		renderer: renderer,
		uploader: uploader,
		buckets:  buckets,
		log:      log,
		warm:     warm,
	}
}

// ServeObject streams a public object.
// GET /storage/v1/object/public/:bucket/*
func (h *Handler) ServeObject(c *fiber.Ctx) error {
	bucket, key := c.Params("bucket"), c.Params("*")
	if !h.buckets[bucket] || key == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Object not found",
		})
	}

	obj, info, err := h.store.Get(c.UserContext(), bucket, key)
	if err != nil {
		return h.objectError(c, err)
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	if info.ETag != "" {
		c.Set(fiber.HeaderETag, strconv.Quote(info.ETag))
	}
	return c.SendStream(obj, int(info.Size))
}

// RenderImage serves a resized variant of a public image.
// GET /storage/v1/render/image/public/:bucket/*
func (h *Handler) RenderImage(c *fiber.Ctx) error {
	bucket, key := c.Params("bucket"), c.Params("*")
	if !h.buckets[bucket] || key == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Object not found",
		})
	}

	opts := ParseTransformOptions(func(k string) string { return c.Query(k) })
	out, err := h.renderer.Render(c.UserContext(), bucket, key, opts)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) {
			// Not something we can resize; hand out the original.
			return h.ServeObject(c)
		}
		return h.objectError(c, err)
	}

	c.Set(fiber.HeaderContentType, out.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	if out.Cached {
		c.Set("X-Render-Cache", "HIT")
	} else {
		c.Set("X-Render-Cache", "MISS")
	}
	return c.Send(out.Data)
}

// Upload stores the multipart "files" field and returns their public URLs.
// POST /api/v1/admin/media
func (h *Handler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files provided",
		})
	}

	files := make([]UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read file " + fh.Filename,
			})
		}
		defer f.Close()
		files = append(files, UploadFile{Name: fh.Filename, Size: fh.Size, Reader: f})
	}

	results, err := h.uploader.UploadMany(c.UserContext(), files)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, ErrInvalidFileType):
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.log.Error("upload failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload files",
		})
	}

	urls := make([]string, len(results))
	for i, res := range results {
		urls[i] = res.URL
		if h.warm && res.Kind == "image" {
			go h.warmVariants(res.Key)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"urls":  urls,
		"items": results,
	})
}

// Delete removes media by public URL.
// DELETE /api/v1/admin/media
func (h *Handler) Delete(c *fiber.Ctx) error {
	var req DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.URLs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "urls is required",
		})
	}

	ok := h.uploader.DeleteMany(c.UserContext(), req.URLs)
	status := fiber.StatusOK
	if !ok {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{
		"success": ok,
	})
}

func (h *Handler) warmVariants(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := h.renderer.WarmVariants(ctx, h.uploader.Bucket(), key); err != nil {
		h.log.Warn("variant warm-up failed", zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) objectError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrObjectNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Object not found",
		})
	}
	h.log.Error("storage error", zap.Error(err))
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Storage unavailable",
	})
}

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Rendered is an encoded image variant.
type Rendered struct {
	Data        []byte
	ContentType string
	Cached      bool
}

// Renderer produces resized variants of stored images and caches them in a
// dedicated bucket.
type Renderer struct {
	store         Store
	rendersBucket string
	log           *zap.Logger
	group         singleflight.Group
}

func NewRenderer(store Store, rendersBucket string, log *zap.Logger) *Renderer {
	return &Renderer{
		store:         store,
		rendersBucket: rendersBucket,
		log:           log,
	}
}

// CacheKey is the object key of a rendered variant inside the renders bucket.
func CacheKey(bucket, key string, opts TransformOptions) string {
	format := opts.Format
	if format == "" {
		format = "auto"
	}
	return fmt.Sprintf("%s/%s/w%d-h%d-q%d-%s.%s", bucket, key, opts.Width, opts.Height, opts.Quality, opts.Resize, format)
}

// Render returns the variant of bucket/key described by opts, rendering and
// caching it on first use. Concurrent requests for the same variant share
// one render.
func (r *Renderer) Render(ctx context.Context, bucket, key string, opts TransformOptions) (*Rendered, error) {
	opts = opts.Normalize()
	cacheKey := CacheKey(bucket, key, opts)

	// Renders outlive their source in the cache bucket; a deleted original
	// must stop being served and its stale variant is dropped.
	if _, err := r.store.Stat(ctx, bucket, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			r.dropCached(ctx, cacheKey)
		}
		return nil, err
	}

	if cached, err := r.cached(ctx, cacheKey); err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrObjectNotFound) {
		r.log.Warn("render cache read failed", zap.String("key", cacheKey), zap.Error(err))
	}

	v, err, _ := r.group.Do(cacheKey, func() (interface{}, error) {
		out, err := r.render(ctx, bucket, key, opts)
		if err != nil {
			return nil, err
		}
		if _, err := r.store.Put(ctx, r.rendersBucket, cacheKey, bytes.NewReader(out.Data), int64(len(out.Data)), out.ContentType); err != nil {
			r.log.Warn("render cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Rendered), nil
}

func (r *Renderer) dropCached(ctx context.Context, cacheKey string) {
	if err := r.store.Remove(ctx, r.rendersBucket, cacheKey); err != nil && !errors.Is(err, ErrObjectNotFound) {
		r.log.Warn("failed to drop stale render", zap.String("key", cacheKey), zap.Error(err))
	}
}

func (r *Renderer) cached(ctx context.Context, cacheKey string) (*Rendered, error) {
	obj, info, err := r.store.Get(ctx, r.rendersBucket, cacheKey)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached render: %w", err)
	}
	return &Rendered{Data: data, ContentType: info.ContentType, Cached: true}, nil
}

func (r *Renderer) render(ctx context.Context, bucket, key string, opts TransformOptions) (*Rendered, error) {
	obj, _, err := r.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	src, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read original image: %w", err)
	}

	start := time.Now()
	data, contentType, err := RenderBytes(src, opts)
	if err != nil {
		return nil, err
	}

	r.log.Debug("rendered variant",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Duration("took", time.Since(start)),
	)
	return &Rendered{Data: data, ContentType: contentType}, nil
}

// RenderBytes decodes src, resizes it per opts and encodes the result.
// Sources are never upscaled.
func RenderBytes(src []byte, opts TransformOptions) ([]byte, string, error) {
	mt := mimetype.Detect(src)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img = resize(img, opts)

	format, contentType := imaging.JPEG, "image/jpeg"
	if opts.Format == "png" || (opts.Format == "" && mt.Is("image/png")) {
		format, contentType = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(opts.Quality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode variant: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

func resize(img image.Image, opts TransformOptions) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	w, h := opts.Width, opts.Height

	switch {
	case w == 0 && h == 0:
		return img
	case w == 0 || h == 0:
		// Single dimension keeps the aspect ratio.
		if (w > 0 && w >= srcW) || (h > 0 && h >= srcH) {
			return img
		}
		return imaging.Resize(img, w, h, imaging.Lanczos)
	case opts.Resize == ResizeContain:
		// Fit never enlarges.
		return imaging.Fit(img, w, h, imaging.Lanczos)
	default:
		scale := math.Min(1, math.Min(float64(srcW)/float64(w), float64(srcH)/float64(h)))
		w = int(math.Max(1, math.Round(float64(w)*scale)))
		h = int(math.Max(1, math.Round(float64(h)*scale)))
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	}
}

// WarmVariants renders every preset of bucket/key concurrently so the first
// storefront visitor gets cached variants.
func (r *Renderer) WarmVariants(ctx context.Context, bucket, key string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	for _, name := range PresetOrder {
		opts := Presets[name]
		g.Go(func() error {
			if _, err := r.Render(ctx, bucket, key, opts); err != nil {
				return fmt.Errorf("preset %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

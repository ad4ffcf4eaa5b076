package media

import (
	"net/url"
	"strconv"
	"strings"
)

// Resize modes understood by the renderer.
const (
	ResizeCover   = "cover"
	ResizeContain = "contain"
)

// TransformOptions are the render parameters carried in a variant URL.
// Zero values are omitted.
type TransformOptions struct {
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Quality int    `json:"quality,omitempty"`
	Format  string `json:"format,omitempty"` // webp, jpg, png, avif
	Resize  string `json:"resize,omitempty"` // cover, contain
}

// Transform rewrites a public object URL into its render URL with opts as
// query parameters. Anything that is not a public object URL, or that does
// not parse, is returned unchanged.
func Transform(rawURL string, opts TransformOptions) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(u.Path, ObjectPathPrefix) {
		return rawURL
	}

	render := url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   strings.Replace(u.Path, ObjectPathPrefix, RenderPathPrefix, 1),
	}

	q := url.Values{}
	if opts.Width > 0 {
		q.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("height", strconv.Itoa(opts.Height))
	}
	if opts.Quality > 0 {
		q.Set("quality", strconv.Itoa(opts.Quality))
	}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if opts.Resize != "" {
		q.Set("resize", opts.Resize)
	}
	render.RawQuery = q.Encode()

	return render.String()
}

// ParseTransformOptions reads render parameters from a query lookup and
// normalises them into the range the renderer supports.
func ParseTransformOptions(get func(key string) string) TransformOptions {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(get(key)))
		return n
	}
	return TransformOptions{
		Width:   atoi("width"),
		Height:  atoi("height"),
		Quality: atoi("quality"),
		Format:  get("format"),
		Resize:  get("resize"),
	}.Normalize()
}

// Normalize clamps dimensions and quality and canonicalises format and resize.
func (o TransformOptions) Normalize() TransformOptions {
	o.Width = clampInt(o.Width, 0, MaxRenderDimension)
	o.Height = clampInt(o.Height, 0, MaxRenderDimension)

	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	o.Quality = clampInt(o.Quality, MinRenderQuality, MaxRenderQuality)

	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "png":
		o.Format = "png"
	case "":
		o.Format = ""
	default:
		// jpg, jpeg, webp and avif are all served as JPEG
		o.Format = "jpeg"
	}

	if strings.ToLower(strings.TrimSpace(o.Resize)) == ResizeContain {
		o.Resize = ResizeContain
	} else {
		o.Resize = ResizeCover
	}
	return o
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ObjectURL is the public URL of key in bucket below base.
func ObjectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + ObjectPathPrefix + bucket + "/" + strings.TrimLeft(key, "/")
}

// ObjectKeyFromURL extracts the object key of rawURL inside bucket.
//
// The bucket specific marker is tried first, then the generic public marker
// when it names the same bucket, and finally the last two path segments
// (folder/file) of any URL served from "/storage/".
func ObjectKeyFromURL(rawURL, bucket string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	if u, err := url.Parse(rawURL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		rawURL = u.String()
	}

	marker := ObjectPathPrefix + bucket + "/"
	if _, after, ok := strings.Cut(rawURL, marker); ok && after != "" {
		return after, true
	}

	if _, after, ok := strings.Cut(rawURL, ObjectPathPrefix); ok {
		name, key, _ := strings.Cut(after, "/")
		if name == bucket && key != "" {
			return key, true
		}
	}

	if !strings.Contains(rawURL, "/storage/") {
		return "", false
	}
	parts := strings.Split(rawURL, "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return "", false
	}
	return strings.Join(parts[len(parts)-2:], "/"), true
}

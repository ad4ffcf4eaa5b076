package gallery

import "math"

// Lens defaults used by the storefront.
const (
	DefaultZoomScale = 1.6
	DefaultLensSize  = 100
)

// LensConfig holds the fixed lens parameters.
type LensConfig struct {
	ZoomScale float64 `json:"zoom_scale"`
	LensSize  float64 `json:"lens_size"`
}

// DefaultLensConfig returns the storefront lens settings.
func DefaultLensConfig() LensConfig {
	return LensConfig{ZoomScale: DefaultZoomScale, LensSize: DefaultLensSize}
}

// Normalize replaces non-positive values with the defaults.
func (c LensConfig) Normalize() LensConfig {
	if !(c.ZoomScale > 0) {
		c.ZoomScale = DefaultZoomScale
	}
	if !(c.LensSize > 0) {
		c.LensSize = DefaultLensSize
	}
	return c
}

// Projection is everything needed to draw the lens overlay: its position in
// the container and the size/offset of the magnified background inside it.
// Background positions are positive distances; CSS consumers negate them.
type Projection struct {
	LensLeft            float64 `json:"lens_left"`
	LensTop             float64 `json:"lens_top"`
	LensSize            float64 `json:"lens_size"`
	BackgroundWidth     float64 `json:"background_width"`
	BackgroundHeight    float64 `json:"background_height"`
	BackgroundPositionX float64 `json:"background_position_x"`
	BackgroundPositionY float64 `json:"background_position_y"`
}

// Project maps a container-local pointer position to the lens overlay.
//
// x and y must already be clamped to the container (see ClampPointer). The
// lens never leaves the container and the crop window never leaves the
// magnified image.
func Project(x, y float64, g Geometry, cfg LensConfig) Projection {
	cfg = cfg.Normalize()
	half := cfg.LensSize / 2

	width, height := g.RenderedW, g.RenderedH
	if !(width > 0) || !(height > 0) {
		width, height = g.ContainerW, g.ContainerH
	}

	bgW := width * cfg.ZoomScale
	bgH := height * cfg.ZoomScale

	return Projection{
		LensLeft:            clamp(x-half, 0, g.ContainerW-cfg.LensSize),
		LensTop:             clamp(y-half, 0, g.ContainerH-cfg.LensSize),
		LensSize:            cfg.LensSize,
		BackgroundWidth:     bgW,
		BackgroundHeight:    bgH,
		BackgroundPositionX: clamp((x+g.OffsetX)*cfg.ZoomScale-half, 0, bgW-cfg.LensSize),
		BackgroundPositionY: clamp((y+g.OffsetY)*cfg.ZoomScale-half, 0, bgH-cfg.LensSize),
	}
}

// ClampPointer bounds a pointer position to [0, container].
func ClampPointer(x, y float64, container Size) (float64, float64) {
	return clamp(x, 0, container.W), clamp(y, 0, container.H)
}

// clamp bounds v to [lo, hi]. A negative range collapses to lo and NaN maps
// to lo.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo || math.IsNaN(v) {
		v = lo
	}
	return v
}

package gallery

// Size is a width/height pair in CSS pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.W > 0 && s.H > 0
}

// Geometry describes how the active media is laid out inside the viewport.
//
// The rendered box always covers the container; OffsetX/OffsetY are the
// amounts clipped on each side of the respective axis.
type Geometry struct {
	ContainerW float64 `json:"container_w"`
	ContainerH float64 `json:"container_h"`
	NaturalW   float64 `json:"natural_w"`
	NaturalH   float64 `json:"natural_h"`
	RenderedW  float64 `json:"rendered_w"`
	RenderedH  float64 `json:"rendered_h"`
	OffsetX    float64 `json:"offset_x"`
	OffsetY    float64 `json:"offset_y"`
}

// Fit computes the cover-fit geometry of natural inside container.
// It returns false while either size is unknown; the lens must not be shown
// until geometry is available.
func Fit(natural, container Size) (Geometry, bool) {
	if !natural.Known() || !container.Known() {
		return Geometry{}, false
	}

	imageRatio := natural.W / natural.H
	containerRatio := container.W / container.H

	g := Geometry{
		ContainerW: container.W,
		ContainerH: container.H,
		NaturalW:   natural.W,
		NaturalH:   natural.H,
	}

	if imageRatio > containerRatio {
		g.RenderedH = container.H
		g.RenderedW = g.RenderedH * imageRatio
		g.OffsetX = (g.RenderedW - container.W) / 2
	} else {
		g.RenderedW = container.W
		g.RenderedH = g.RenderedW / imageRatio
		g.OffsetY = (g.RenderedH - container.H) / 2
	}

	return g, true
}

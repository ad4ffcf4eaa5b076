package media

import "altessa/internal/gallery"

// Preset names used by the storefront.
const (
	PresetCard  = "card"
	PresetThumb = "thumb"
	PresetMid   = "mid"
	PresetZoom  = "zoom"
)

// Presets are the fixed variants requested by product cards, the thumbnail
// strip, the main viewport and the magnifier lens.
var Presets = map[string]TransformOptions{
	PresetCard:  {Width: 800, Height: 800, Quality: 70, Resize: ResizeCover},
	PresetThumb: {Width: 300, Height: 300, Quality: 65, Resize: ResizeCover},
	PresetMid:   {Width: 1200, Height: 1200, Quality: 72, Resize: ResizeContain},
	PresetZoom:  {Width: 2000, Height: 2000, Quality: 80, Resize: ResizeContain},
}

// PresetOrder lists preset names in a stable order.
var PresetOrder = []string{PresetCard, PresetThumb, PresetMid, PresetZoom}

// ApplyPreset transforms uri with the named preset. Unknown presets return uri.
func ApplyPreset(name, uri string) string {
	opts, ok := Presets[name]
	if !ok {
		return uri
	}
	return Transform(uri, opts)
}

// VariantSet holds every preset URL for one media item.
type VariantSet struct {
	Original string `json:"original"`
	Card     string `json:"card"`
	Thumb    string `json:"thumb"`
	Mid      string `json:"mid"`
	Zoom     string `json:"zoom"`
}

// Variants builds the variant set for item. Videos are never transformed.
func Variants(item gallery.MediaItem) VariantSet {
	if item.IsVideo() {
		return VariantSet{Original: item.URI, Card: item.URI, Thumb: item.URI, Mid: item.URI, Zoom: item.URI}
	}
	return VariantSet{
		Original: item.URI,
		Card:     ApplyPreset(PresetCard, item.URI),
		Thumb:    ApplyPreset(PresetThumb, item.URI),
		Mid:      ApplyPreset(PresetMid, item.URI),
		Zoom:     ApplyPreset(PresetZoom, item.URI),
	}
}

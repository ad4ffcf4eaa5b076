// Package gallery implements the product media viewer: media list resolution,
// cover-fit layout and the magnifying lens projection.
//
// Everything here is synchronous and side-effect free except Viewer, which
// holds the per-session state and is driven by discrete input events.
package gallery

import (
	"regexp"
	"strings"
)

// MediaKind classifies a media URI.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

var videoPattern = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|mov|m4v)(\?.*)?$`)

// MediaItem is a media URI together with its classification.
type MediaItem struct {
	URI  string    `json:"uri"`
	Kind MediaKind `json:"kind"`
}

// IsVideo reports whether the item is a video.
func (m MediaItem) IsVideo() bool {
	return m.Kind == KindVideo
}

// Classify returns KindVideo for URIs with a known video extension (optionally
// followed by a query string) or an inline data:video payload, and KindImage
// for anything else, including the empty string.
func Classify(uri string) MediaKind {
	if strings.HasPrefix(uri, "data:video") || videoPattern.MatchString(uri) {
		return KindVideo
	}
	return KindImage
}

// NewMediaItem classifies uri.
func NewMediaItem(uri string) MediaItem {
	return MediaItem{URI: uri, Kind: Classify(uri)}
}

// ResolveMediaList builds the ordered list of media to show for a product.
//
// A non-empty gallery is used in its stored order with blank entries dropped
// and duplicates removed (first occurrence wins). When nothing remains the
// cover is used on its own. An empty result is valid: callers render a
// placeholder.
func ResolveMediaList(gallery []string, cover string) []MediaItem {
	items := make([]MediaItem, 0, len(gallery))
	seen := make(map[string]struct{}, len(gallery))

	for _, uri := range gallery {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		items = append(items, NewMediaItem(uri))
	}

	if len(items) > 0 {
		return items
	}

	cover = strings.TrimSpace(cover)
	if cover == "" {
		return items
	}
	return []MediaItem{NewMediaItem(cover)}
}

// URIs returns the URIs of items in order.
func URIs(items []MediaItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.URI
	}
	return out
}

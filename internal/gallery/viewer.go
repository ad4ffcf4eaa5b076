package gallery

// PointerKind describes the primary input device of the client.
type PointerKind int

const (
	// PointerFine is a mouse or trackpad; the lens is available.
	PointerFine PointerKind = iota
	// PointerCoarse is a touch screen; the lens is never rendered.
	PointerCoarse
)

// Point is a container-local pointer position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PreloadTicket identifies a hi-res preload started for a specific active
// media item. Completions carrying a stale ticket are discarded.
type PreloadTicket struct {
	Index      int
	URI        string
	Generation uint64
}

// Viewer is the state of one gallery session.
//
// Every input (thumbnail click, pointer enter/move/leave, resize, media load)
// is a method call; derived values are recomputed synchronously. A Viewer is
// owned by a single goroutine. Asynchronous preloads report back through a
// Preloader channel and are applied by the owner with Apply.
type Viewer struct {
	items  []MediaItem
	active int
	lens   LensConfig
	input  PointerKind

	hovering bool
	pointer  *Point

	container Size
	natural   Size
	geometry  Geometry
	hasLayout bool
	failed    bool

	hiRes      string
	generation uint64
}

// NewViewer creates a viewer positioned on the first item.
func NewViewer(items []MediaItem, lens LensConfig, input PointerKind) *Viewer {
	v := &Viewer{lens: lens.Normalize(), input: input}
	v.items = append([]MediaItem(nil), items...)
	return v
}

// Items returns the media list.
func (v *Viewer) Items() []MediaItem {
	return append([]MediaItem(nil), v.items...)
}

// ActiveIndex returns the selected position. It is 0 for an empty list.
func (v *Viewer) ActiveIndex() int {
	return v.active
}

// Active returns the selected item.
func (v *Viewer) Active() (MediaItem, bool) {
	if len(v.items) == 0 {
		return MediaItem{}, false
	}
	return v.items[v.active], true
}

// SetMedia replaces the media list and clamps the active index into range.
// Per-media state is reset when the active URI changes.
func (v *Viewer) SetMedia(items []MediaItem) {
	prev, hadPrev := v.Active()

	v.items = append([]MediaItem(nil), items...)
	if v.active >= len(v.items) {
		v.active = len(v.items) - 1
	}
	if v.active < 0 {
		v.active = 0
	}

	cur, hasCur := v.Active()
	if hadPrev != hasCur || prev.URI != cur.URI {
		v.resetActive()
	}
}

// Select makes index i active. Out-of-range indexes are ignored.
func (v *Viewer) Select(i int) bool {
	if i < 0 || i >= len(v.items) {
		return false
	}
	if i == v.active {
		return true
	}
	v.active = i
	v.resetActive()
	return true
}

// Next selects the following item, wrapping around.
func (v *Viewer) Next() {
	if len(v.items) < 2 {
		return
	}
	v.Select((v.active + 1) % len(v.items))
}

// Prev selects the preceding item, wrapping around.
func (v *Viewer) Prev() {
	if len(v.items) < 2 {
		return
	}
	v.Select((v.active - 1 + len(v.items)) % len(v.items))
}

func (v *Viewer) resetActive() {
	v.hovering = false
	v.pointer = nil
	v.natural = Size{}
	v.hasLayout = false
	v.geometry = Geometry{}
	v.failed = false
	v.hiRes = ""
	v.generation++
}

// Resize records a new container size. The pointer is re-clamped so the
// projection precondition keeps holding.
func (v *Viewer) Resize(w, h float64) {
	v.container = Size{W: w, H: h}
	if v.pointer != nil {
		x, y := ClampPointer(v.pointer.X, v.pointer.Y, v.container)
		v.pointer = &Point{X: x, Y: y}
	}
	v.relayout()
}

// MediaLoaded records the intrinsic size of the active media. Zero sizes are
// ignored; they mean the metadata is not available yet.
func (v *Viewer) MediaLoaded(w, h float64) {
	if !(w > 0) || !(h > 0) {
		return
	}
	v.natural = Size{W: w, H: h}
	v.failed = false
	v.relayout()
}

// MediaFailed marks the active media as unavailable. The item stays in the
// list and other items are unaffected.
func (v *Viewer) MediaFailed() {
	v.failed = true
	v.hovering = false
}

// Unavailable reports whether the active media failed to load.
func (v *Viewer) Unavailable() bool {
	return v.failed
}

func (v *Viewer) relayout() {
	v.geometry, v.hasLayout = Fit(v.natural, v.container)
}

// Geometry returns the current layout, or false while it is pending.
func (v *Viewer) Geometry() (Geometry, bool) {
	return v.geometry, v.hasLayout
}

// PointerEnter starts hovering.
func (v *Viewer) PointerEnter() {
	if len(v.items) == 0 || v.failed {
		return
	}
	v.hovering = true
}

// PointerMove records a pointer position, clamped to the container.
func (v *Viewer) PointerMove(x, y float64) {
	if len(v.items) == 0 {
		return
	}
	cx, cy := ClampPointer(x, y, v.container)
	v.pointer = &Point{X: cx, Y: cy}
}

// PointerLeave hides the lens. The active item is kept.
func (v *Viewer) PointerLeave() {
	v.hovering = false
	v.pointer = nil
}

// Hovering reports whether the pointer is over the viewport.
func (v *Viewer) Hovering() bool {
	return v.hovering
}

// Pointer returns the last pointer position while one is known.
func (v *Viewer) Pointer() (Point, bool) {
	if v.pointer == nil {
		return Point{}, false
	}
	return *v.pointer, true
}

// LensEnabled reports whether the active media supports the lens at all.
func (v *Viewer) LensEnabled() bool {
	item, ok := v.Active()
	return ok && v.input == PointerFine && !item.IsVideo() && !v.failed
}

// Lens returns the lens projection when the lens should be drawn.
func (v *Viewer) Lens() (Projection, bool) {
	if !v.LensEnabled() || !v.hovering || v.pointer == nil || !v.hasLayout {
		return Projection{}, false
	}
	return Project(v.pointer.X, v.pointer.Y, v.geometry, v.lens), true
}

// LensSource is the image used as the magnified background: the preloaded
// hi-res variant once available, otherwise the on-screen URI.
func (v *Viewer) LensSource() string {
	if v.hiRes != "" {
		return v.hiRes
	}
	item, _ := v.Active()
	return item.URI
}

// Placeholder reports whether there is nothing to show.
func (v *Viewer) Placeholder() bool {
	return len(v.items) == 0
}

// ShowThumbnails reports whether the thumbnail strip is needed.
func (v *Viewer) ShowThumbnails() bool {
	return len(v.items) > 1
}

// ShowNavigation reports whether previous/next controls are needed.
func (v *Viewer) ShowNavigation() bool {
	return len(v.items) > 1
}

// BeginPreload issues a ticket for preloading a hi-res source of the active
// image. Videos and empty lists get no ticket.
func (v *Viewer) BeginPreload() (PreloadTicket, bool) {
	item, ok := v.Active()
	if !ok || item.IsVideo() {
		return PreloadTicket{}, false
	}
	return PreloadTicket{Index: v.active, URI: item.URI, Generation: v.generation}, true
}

// CompletePreload applies a finished preload if its ticket still refers to
// the active media. Late results for media the user navigated away from are
// dropped and false is returned.
func (v *Viewer) CompletePreload(t PreloadTicket, hiRes string) bool {
	if hiRes == "" || t.Generation != v.generation || t.Index != v.active {
		return false
	}
	item, ok := v.Active()
	if !ok || item.URI != t.URI {
		return false
	}
	v.hiRes = hiRes
	return true
}

// Apply feeds a preload result into the viewer.
func (v *Viewer) Apply(r PreloadResult) bool {
	if r.Err != nil {
		return false
	}
	return v.CompletePreload(r.Ticket, r.URI)
}

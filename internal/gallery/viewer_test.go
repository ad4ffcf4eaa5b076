package gallery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViewer(uris ...string) *Viewer {
	v := NewViewer(ResolveMediaList(uris, ""), DefaultLensConfig(), PointerFine)
	v.Resize(400, 400)
	return v
}

func TestViewerEmptyList(t *testing.T) {
	v := NewViewer(ResolveMediaList(nil, ""), DefaultLensConfig(), PointerFine)
	v.Resize(400, 400)
	v.PointerEnter()
	v.PointerMove(10, 10)

	assert.True(t, v.Placeholder())
	assert.False(t, v.ShowThumbnails())
	_, ok := v.Active()
	assert.False(t, ok)
	_, ok = v.Lens()
	assert.False(t, ok)
	_, ok = v.BeginPreload()
	assert.False(t, ok)
}

func TestViewerSingleItem(t *testing.T) {
	v := newTestViewer("a.jpg")
	v.MediaLoaded(1000, 500)
	v.PointerEnter()
	v.PointerMove(200, 200)

	assert.False(t, v.ShowThumbnails())
	assert.False(t, v.ShowNavigation())
	_, ok := v.Lens()
	assert.True(t, ok)
}

func TestViewerLensWaitsForGeometry(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg")
	v.PointerEnter()
	v.PointerMove(100, 100)

	_, ok := v.Lens()
	assert.False(t, ok, "lens must stay hidden until natural size is known")

	v.MediaLoaded(0, 0)
	_, ok = v.Lens()
	assert.False(t, ok)

	v.MediaLoaded(800, 800)
	p, ok := v.Lens()
	require.True(t, ok)
	assert.Equal(t, 50.0, p.LensLeft)
}

func TestViewerHiddenContainer(t *testing.T) {
	v := NewViewer(ResolveMediaList([]string{"a.jpg"}, ""), DefaultLensConfig(), PointerFine)
	v.Resize(0, 0)
	v.MediaLoaded(800, 600)
	v.PointerEnter()
	v.PointerMove(10, 10)

	_, ok := v.Lens()
	assert.False(t, ok)

	v.Resize(400, 300)
	v.PointerMove(10, 10)
	_, ok = v.Lens()
	assert.True(t, ok)
}

func TestViewerActiveIndexClamp(t *testing.T) {
	v := newTestViewer("1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg")
	require.True(t, v.Select(4))

	v.SetMedia(ResolveMediaList([]string{"1.jpg", "2.jpg"}, ""))

	assert.LessOrEqual(t, v.ActiveIndex(), 1)
	assert.GreaterOrEqual(t, v.ActiveIndex(), 0)
	item, ok := v.Active()
	require.True(t, ok)
	assert.Equal(t, "2.jpg", item.URI)

	v.SetMedia(nil)
	assert.Equal(t, 0, v.ActiveIndex())
	assert.True(t, v.Placeholder())
}

func TestViewerSelectResetsPointer(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg")
	v.MediaLoaded(400, 400)
	v.PointerEnter()
	v.PointerMove(100, 100)

	require.True(t, v.Select(1))

	assert.False(t, v.Hovering())
	_, ok := v.Pointer()
	assert.False(t, ok)
	_, ok = v.Geometry()
	assert.False(t, ok, "natural size belongs to the previous media")

	assert.False(t, v.Select(2))
	assert.False(t, v.Select(-1))
	assert.Equal(t, 1, v.ActiveIndex())
}

func TestViewerNavigationWraps(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg", "c.jpg")

	v.Prev()
	assert.Equal(t, 2, v.ActiveIndex())
	v.Next()
	assert.Equal(t, 0, v.ActiveIndex())
	v.Next()
	assert.Equal(t, 1, v.ActiveIndex())
}

func TestViewerPointerLeaveKeepsIndex(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg")
	v.Select(1)
	v.MediaLoaded(400, 400)
	v.PointerEnter()
	v.PointerMove(50, 50)

	v.PointerLeave()

	assert.Equal(t, 1, v.ActiveIndex())
	_, ok := v.Lens()
	assert.False(t, ok)
}

func TestViewerPointerIsClamped(t *testing.T) {
	v := newTestViewer("a.jpg")
	v.MediaLoaded(400, 400)
	v.PointerEnter()
	v.PointerMove(-30, 900)

	pt, ok := v.Pointer()
	require.True(t, ok)
	assert.Equal(t, Point{X: 0, Y: 400}, pt)
}

func TestViewerResizeWhileHovering(t *testing.T) {
	v := newTestViewer("a.jpg")
	v.MediaLoaded(1000, 500)
	v.PointerEnter()
	v.PointerMove(380, 380)

	v.Resize(300, 300)

	p, ok := v.Lens()
	require.True(t, ok)
	g, _ := v.Geometry()
	assert.Equal(t, 300.0, g.ContainerW)
	assert.Equal(t, 600.0, g.RenderedW)
	assert.Equal(t, 150.0, g.OffsetX)
	assert.LessOrEqual(t, p.LensLeft, 200.0)
	assert.LessOrEqual(t, p.BackgroundPositionX, p.BackgroundWidth-p.LensSize)
}

func TestViewerTouchHasNoLens(t *testing.T) {
	v := NewViewer(ResolveMediaList([]string{"a.jpg"}, ""), DefaultLensConfig(), PointerCoarse)
	v.Resize(400, 400)
	v.MediaLoaded(400, 400)
	v.PointerEnter()
	v.PointerMove(100, 100)

	assert.False(t, v.LensEnabled())
	_, ok := v.Lens()
	assert.False(t, ok)
}

func TestViewerMediaFailure(t *testing.T) {
	v := newTestViewer("broken.jpg", "b.jpg")
	v.PointerEnter()
	v.MediaFailed()

	assert.True(t, v.Unavailable())
	assert.Len(t, v.Items(), 2, "failed media stays in the list")
	_, ok := v.Lens()
	assert.False(t, ok)

	v.Select(1)
	assert.False(t, v.Unavailable())
}

// A product with a duplicated cover and one video: two thumbnails, and the
// lens switches off when the video is selected.
func TestViewerEndToEnd(t *testing.T) {
	items := ResolveMediaList([]string{"a.jpg", "b.mp4", "a.jpg"}, "a.jpg")
	require.Equal(t, []string{"a.jpg", "b.mp4"}, URIs(items))

	v := NewViewer(items, DefaultLensConfig(), PointerFine)
	v.Resize(400, 400)
	assert.True(t, v.ShowThumbnails())
	assert.Len(t, v.Items(), 2)

	v.MediaLoaded(1000, 500)
	v.PointerEnter()
	v.PointerMove(200, 200)
	_, ok := v.Lens()
	require.True(t, ok)

	require.True(t, v.Select(1))
	v.MediaLoaded(1920, 1080)
	v.PointerEnter()
	v.PointerMove(200, 200)

	assert.False(t, v.LensEnabled())
	_, ok = v.Lens()
	assert.False(t, ok)
	_, ok = v.BeginPreload()
	assert.False(t, ok, "videos are not preloaded")
}

func TestViewerPreloadApplied(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg")
	ticket, ok := v.BeginPreload()
	require.True(t, ok)

	assert.Equal(t, "a.jpg", v.LensSource())
	assert.True(t, v.CompletePreload(ticket, "a-hi.jpg"))
	assert.Equal(t, "a-hi.jpg", v.LensSource())
}

func TestViewerStalePreloadDiscarded(t *testing.T) {
	v := newTestViewer("a.jpg", "b.jpg")
	ticket, ok := v.BeginPreload()
	require.True(t, ok)

	v.Select(1)
	assert.False(t, v.CompletePreload(ticket, "a-hi.jpg"))
	assert.Equal(t, "b.jpg", v.LensSource())

	// Navigating back does not revive the old ticket either.
	v.Select(0)
	assert.False(t, v.CompletePreload(ticket, "a-hi.jpg"))
	assert.Equal(t, "a.jpg", v.LensSource())
}

func TestPreloaderNavigateAwayBeforeResolve(t *testing.T) {
	release := make(chan struct{})
	p := NewPreloader(func(ctx context.Context, uri string) (string, error) {
		<-release
		return uri + "?width=2000", nil
	}, 1)

	v := newTestViewer("a.jpg", "b.jpg")
	ticket, ok := v.BeginPreload()
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, ticket)

	v.Select(1)
	close(release)

	select {
	case r := <-p.Results():
		assert.False(t, v.Apply(r), "late result must not overwrite the new media")
		assert.Equal(t, "b.jpg", v.LensSource())
	case <-time.After(2 * time.Second):
		t.Fatal("preload result not delivered")
	}
}

func TestPreloaderErrorIgnored(t *testing.T) {
	p := NewPreloader(func(ctx context.Context, uri string) (string, error) {
		return "", errors.New("boom")
	}, 1)

	v := newTestViewer("a.jpg")
	ticket, _ := v.BeginPreload()
	p.Start(context.Background(), ticket)

	select {
	case r := <-p.Results():
		assert.False(t, v.Apply(r))
		assert.Equal(t, "a.jpg", v.LensSource())
	case <-time.After(2 * time.Second):
		t.Fatal("preload result not delivered")
	}
}

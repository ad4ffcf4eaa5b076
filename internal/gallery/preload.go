package gallery

import "context"

// FetchFunc resolves and warms a hi-res source for uri.
type FetchFunc func(ctx context.Context, uri string) (string, error)

// PreloadResult is delivered once a preload finishes.
type PreloadResult struct {
	Ticket PreloadTicket
	URI    string
	Err    error
}

// Preloader runs hi-res fetches in the background and hands results back on
// a channel, leaving it to the Viewer owner to apply them.
type Preloader struct {
	fetch   FetchFunc
	results chan PreloadResult
}

// NewPreloader creates a preloader with a result buffer of size buffer.
func NewPreloader(fetch FetchFunc, buffer int) *Preloader {
	if buffer < 1 {
		buffer = 1
	}
	return &Preloader{
		fetch:   fetch,
		results: make(chan PreloadResult, buffer),
	}
}

// Results delivers finished preloads.
func (p *Preloader) Results() <-chan PreloadResult {
	return p.results
}

// Start fetches in a new goroutine. The result is dropped if ctx is done
// before it can be delivered.
func (p *Preloader) Start(ctx context.Context, t PreloadTicket) {
	go func() {
		uri, err := p.fetch(ctx, t.URI)
		select {
		case p.results <- PreloadResult{Ticket: t, URI: uri, Err: err}:
		case <-ctx.Done():
		}
	}()
}

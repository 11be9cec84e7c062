package ports

import (
	"context"
	"time"

	"track17-scrapper/internal/features/tracking/domain"
)

// TrackingService is the primary port for tracking lookups.
type TrackingService interface {
	Track(ctx context.Context, trackingNumber domain.TrackingNumber) (*domain.TrackingResult, error)
}

// BrowserLauncher starts one isolated browser per call. Driven port.
type BrowserLauncher interface {
	// Launch starts a browser process and opens a single page in it.
	// The caller owns the returned session and must Close it.
	Launch(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is an exclusive handle to one browser process and its page.
type BrowserSession interface {
	// Navigate loads url and waits for the configured readiness signal.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Reload reloads the current page with the same readiness wait.
	Reload(ctx context.Context, timeout time.Duration) error
	// WaitElement blocks until selector matches an element or timeout elapses.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// Close tears down the page and the browser process. It is idempotent.
	Close() error
}

// PageParser owns all knowledge of the aggregator's markup.
type PageParser interface {
	// AnchorSelector matches the results container; its absence means no tracking data.
	AnchorSelector() string
	// DetailSelector matches the populated event list.
	DetailSelector() string
	// Parse turns a rendered document into a result. Missing nodes become placeholders.
	Parse(html string) (*domain.TrackingResult, error)
}

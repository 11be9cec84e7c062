package domain

import (
	"errors"
	"strings"
)

// Placeholders returned when the page lacks a field.
const (
	UnknownCourier = "Unknown"
	NoStatus       = "No information"
	NoDate         = "No date"
	NoDescription  = "No description"
	NoLocation     = "No location"
)

var (
	// ErrInvalidTrackingNumber is returned for a missing, non-string or blank tracking number.
	ErrInvalidTrackingNumber = errors.New("tracking number is required")
	// ErrSessionUnavailable is returned when no browser session slot frees up before the deadline.
	ErrSessionUnavailable = errors.New("no browser session available")
	// ErrBrowserLaunch is returned when the browser process could not be started or reached.
	ErrBrowserLaunch = errors.New("browser launch failed")
	// ErrNavigationTimeout is returned when the page did not become ready in time.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrNavigationFailed is returned for any other navigation error.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrContentNotFound is returned when the results container never rendered.
	ErrContentNotFound = errors.New("no trackable elements found")
	// ErrExtraction is returned when the page snapshot could not be read or parsed.
	ErrExtraction = errors.New("extraction failed")
)

// TrackingNumber is a validated, trimmed tracking number.
type TrackingNumber string

// NewTrackingNumber trims raw and rejects blank input.
func NewTrackingNumber(raw string) (TrackingNumber, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidTrackingNumber
	}
	return TrackingNumber(trimmed), nil
}

// String returns the tracking number as given.
func (n TrackingNumber) String() string {
	return string(n)
}

// TrackingResult is the normalized answer for one tracking number.
type TrackingResult struct {
	// Courier is the provider name shown by the aggregator.
	Courier string `json:"courier"`
	// Status is the headline shipment status.
	Status string `json:"status"`
	// Events are ordered as rendered, most recent first.
	Events []TrackingEvent `json:"events"`
}

// TrackingEvent is one checkpoint of the shipment.
type TrackingEvent struct {
	Date        string `json:"date"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// NewTrackingResult builds a result, substituting placeholders for blank fields.
func NewTrackingResult(courier, status string, events []TrackingEvent) *TrackingResult {
	if events == nil {
		events = make([]TrackingEvent, 0)
	}
	return &TrackingResult{
		Courier: orDefault(courier, UnknownCourier),
		Status:  orDefault(status, NoStatus),
		Events:  events,
	}
}

// NewTrackingEvent builds an event and derives its location from the description.
func NewTrackingEvent(date, description string) TrackingEvent {
	description = orDefault(description, NoDescription)
	return TrackingEvent{
		Date:        orDefault(date, NoDate),
		Location:    ExtractLocation(description),
		Description: description,
	}
}

// LimitEvents keeps at most max events. A max of zero or less keeps all of them.
func (r *TrackingResult) LimitEvents(max int) {
	if max > 0 && len(r.Events) > max {
		r.Events = r.Events[:max]
	}
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

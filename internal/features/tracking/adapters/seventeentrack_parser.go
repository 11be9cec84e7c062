package adapter

import (
	"fmt"
	"strings"

	"track17-scrapper/internal/features/tracking/domain"

	"github.com/PuerkitoBio/goquery"
)

// Markup of t.17track.net. The site changes these without notice; this block
// and the parse helpers below are the only places that know about them.
const (
	seventeenAnchorSelector = ".track-container, .tracklist-item"
	seventeenDetailSelector = ".trn-block"

	seventeenCourierSelector        = ".provider-name"
	seventeenStatusSelector         = ".text-capitalize[title]"
	seventeenFallbackStatusSelector = ".trn-block dd:first-child p"
	seventeenEventSelector          = ".trn-block dd"
	seventeenEventDateSelector      = "time"
	seventeenEventTextSelector      = "p"
)

// SeventeenTrackParser extracts tracking results from rendered 17track pages.
type SeventeenTrackParser struct{}

// NewSeventeenTrackParser creates a new SeventeenTrackParser.
func NewSeventeenTrackParser() *SeventeenTrackParser {
	return &SeventeenTrackParser{}
}

// AnchorSelector implements ports.PageParser.
func (p *SeventeenTrackParser) AnchorSelector() string {
	return seventeenAnchorSelector
}

// DetailSelector implements ports.PageParser.
func (p *SeventeenTrackParser) DetailSelector() string {
	return seventeenDetailSelector
}

// Parse implements ports.PageParser.
func (p *SeventeenTrackParser) Parse(html string) (*domain.TrackingResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return domain.NewTrackingResult(
		firstText(doc.Selection, seventeenCourierSelector),
		p.status(doc),
		p.events(doc),
	), nil
}

// status prefers the titled status badge and falls back to the first event text.
func (p *SeventeenTrackParser) status(doc *goquery.Document) string {
	if s := firstText(doc.Selection, seventeenStatusSelector); s != "" {
		return s
	}
	return firstText(doc.Selection, seventeenFallbackStatusSelector)
}

func (p *SeventeenTrackParser) events(doc *goquery.Document) []domain.TrackingEvent {
	nodes := doc.Find(seventeenEventSelector)
	events := make([]domain.TrackingEvent, 0, nodes.Length())

	nodes.Each(func(_ int, s *goquery.Selection) {
		events = append(events, domain.NewTrackingEvent(
			firstText(s, seventeenEventDateSelector),
			firstText(s, seventeenEventTextSelector),
		))
	})

	return events
}

// firstText returns the trimmed text of the first match, or "".
func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

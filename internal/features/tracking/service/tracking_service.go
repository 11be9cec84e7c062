package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"track17-scrapper/internal/core/config"
	"track17-scrapper/internal/core/logger"
	"track17-scrapper/internal/core/metrics"
	"track17-scrapper/internal/features/tracking/domain"
	"track17-scrapper/internal/features/tracking/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// TrackingService scrapes one tracking number per call, each in its own browser session.
type TrackingService struct {
	launcher ports.BrowserLauncher
	parser   ports.PageParser
	cfg      config.ScrapeConfig
	sessions *semaphore.Weighted
	logger   *zap.Logger
}

// NewTrackingService creates a TrackingService allowing at most cfg.MaxSessions
// concurrent browser sessions.
func NewTrackingService(launcher ports.BrowserLauncher, parser ports.PageParser, cfg config.ScrapeConfig) *TrackingService {
	maxSessions := cfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}

	return &TrackingService{
		launcher: launcher,
		parser:   parser,
		cfg:      cfg,
		sessions: semaphore.NewWeighted(int64(maxSessions)),
		logger:   logger.Named("tracking.service"),
	}
}

// Track scrapes the aggregator page for trackingNumber. Errors wrap one of the
// domain sentinels; the browser session never outlives the call.
func (s *TrackingService) Track(ctx context.Context, trackingNumber domain.TrackingNumber) (*domain.TrackingResult, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.track(ctx, trackingNumber)
	metrics.ObserveScrape(outcome(err), time.Since(start))

	return result, err
}

func (s *TrackingService) track(ctx context.Context, trackingNumber domain.TrackingNumber) (*domain.TrackingResult, error) {
	if err := s.sessions.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionUnavailable, err)
	}
	defer s.sessions.Release(1)

	log := s.logger.With(zap.String("tracking_number", trackingNumber.String()))

	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserLaunch, err)
	}
	metrics.ActiveSessions.Inc()
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("Browser session closed with errors", zap.Error(err))
		}
		metrics.ActiveSessions.Dec()
	}()

	pageURL := BuildTrackingURL(s.cfg.TrackingURL, trackingNumber)
	log.Debug("Navigating", zap.String("url", pageURL))

	if err := session.Navigate(ctx, pageURL, s.cfg.NavigationTimeout); err != nil {
		return nil, navigationError(err)
	}

	if s.cfg.ForceReload {
		log.Debug("Forcing reload")
		if err := session.Reload(ctx, s.cfg.NavigationTimeout); err != nil {
			return nil, navigationError(err)
		}
	}

	if title, err := session.Title(ctx); err == nil {
		log.Debug("Page loaded", zap.String("title", title))
	}

	if err := session.WaitElement(ctx, s.parser.AnchorSelector(), s.cfg.AnchorTimeout); err != nil {
		log.Info("Tracking container never rendered", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrContentNotFound, err)
	}

	s.waitForDetail(ctx, session, log)

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading page: %v", domain.ErrExtraction, err)
	}

	result, err := s.parser.Parse(html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	total := len(result.Events)
	result.LimitEvents(s.cfg.MaxEvents)

	log.Info("Tracking extracted",
		zap.String("courier", result.Courier),
		zap.String("status", result.Status),
		zap.Int("events", len(result.Events)),
		zap.Int("events_on_page", total),
	)

	return result, nil
}

// waitForDetail gives the event list DetailTimeout to appear but never waits
// longer than DetailFallback; a partially populated page is still extracted.
func (s *TrackingService) waitForDetail(ctx context.Context, session ports.BrowserSession, log *zap.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan error, 1)
	go func() {
		found <- session.WaitElement(ctx, s.parser.DetailSelector(), s.cfg.DetailTimeout)
	}()

	fallback := time.NewTimer(s.cfg.DetailFallback)
	defer fallback.Stop()

	select {
	case err := <-found:
		if err != nil {
			log.Debug("Event details not found, extracting what rendered", zap.Error(err))
		}
	case <-fallback.C:
		log.Debug("Event details still pending after fallback delay")
	case <-ctx.Done():
	}
}

// BuildTrackingURL places the escaped tracking number into template, either at
// a %s verb or appended to the end.
func BuildTrackingURL(template string, trackingNumber domain.TrackingNumber) string {
	escaped := url.QueryEscape(trackingNumber.String())
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, escaped)
	}
	return template + escaped
}

func navigationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNavigationFailed, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrSessionUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, domain.ErrBrowserLaunch):
		return metrics.OutcomeLaunchFailure
	case errors.Is(err, domain.ErrNavigationTimeout):
		return metrics.OutcomeNavigationTimeout
	case errors.Is(err, domain.ErrNavigationFailed):
		return metrics.OutcomeNavigationFailure
	case errors.Is(err, domain.ErrContentNotFound):
		return metrics.OutcomeContentNotFound
	default:
		return metrics.OutcomeError
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"track17-scrapper/internal/core/config"
	"track17-scrapper/internal/features/tracking/domain"
	"track17-scrapper/internal/features/tracking/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	anchorSelector = ".anchor"
	detailSelector = ".detail"
	pageHTML       = "<html><body>rendered</body></html>"
)

// MockLauncher is a mock implementation of ports.BrowserLauncher
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context) (ports.BrowserSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.BrowserSession), args.Error(1)
}

// MockSession is a mock implementation of ports.BrowserSession
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return m.Called(ctx, url, timeout).Error(0)
}

func (m *MockSession) Reload(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockSession) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	return m.Called(ctx, selector, timeout).Error(0)
}

func (m *MockSession) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Close() error {
	return m.Called().Error(0)
}

// MockParser is a mock implementation of ports.PageParser
type MockParser struct {
	mock.Mock
}

func (m *MockParser) AnchorSelector() string { return anchorSelector }

func (m *MockParser) DetailSelector() string { return detailSelector }

func (m *MockParser) Parse(html string) (*domain.TrackingResult, error) {
	args := m.Called(html)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrackingResult), args.Error(1)
}

func testConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		TrackingURL:       "https://t.17track.net/es#nums=",
		MaxSessions:       2,
		ForceReload:       true,
		NavigationTimeout: time.Second,
		AnchorTimeout:     time.Second,
		DetailTimeout:     time.Second,
		DetailFallback:    time.Second,
		RequestTimeout:    5 * time.Second,
		MaxEvents:         5,
	}
}

func resultWithEvents(n int) *domain.TrackingResult {
	events := make([]domain.TrackingEvent, n)
	for i := range events {
		events[i] = domain.NewTrackingEvent(fmt.Sprintf("day %d", i), fmt.Sprintf("Hub %d, scanned", i))
	}
	return domain.NewTrackingResult("China Post", "In transit", events)
}

// expectLoadedPage wires a session that navigates and renders both selectors.
func expectLoadedPage(session *MockSession, url string) {
	session.On("Navigate", mock.Anything, url, time.Second).Return(nil).Once()
	session.On("Reload", mock.Anything, time.Second).Return(nil).Once()
	session.On("Title", mock.Anything).Return("17TRACK", nil).Once()
	session.On("WaitElement", mock.Anything, anchorSelector, time.Second).Return(nil).Once()
	session.On("WaitElement", mock.Anything, detailSelector, time.Second).Return(nil).Once()
	session.On("HTML", mock.Anything).Return(pageHTML, nil).Once()
	session.On("Close").Return(nil).Once()
}

func TestTrackingService_Track_Success(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	expectLoadedPage(session, "https://t.17track.net/es#nums=LX123456789CN")
	parser.On("Parse", pageHTML).Return(resultWithEvents(3), nil).Once()

	svc := NewTrackingService(launcher, parser, testConfig())
	result, err := svc.Track(context.Background(), "LX123456789CN")

	require.NoError(t, err)
	assert.Equal(t, "China Post", result.Courier)
	assert.Equal(t, "In transit", result.Status)
	assert.Len(t, result.Events, 3)
	launcher.AssertExpectations(t)
	session.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func TestTrackingService_Track_LimitsEvents(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	expectLoadedPage(session, "https://t.17track.net/es#nums=N1")
	parser.On("Parse", pageHTML).Return(resultWithEvents(9), nil).Once()

	svc := NewTrackingService(launcher, parser, testConfig())
	result, err := svc.Track(context.Background(), "N1")

	require.NoError(t, err)
	require.Len(t, result.Events, 5)
	assert.Equal(t, "day 0", result.Events[0].Date)
	assert.Equal(t, "day 4", result.Events[4].Date)
}

func TestTrackingService_Track_WithoutReload(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	cfg := testConfig()
	cfg.ForceReload = false

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
	session.On("Title", mock.Anything).Return("", errors.New("no title")).Once()
	session.On("WaitElement", mock.Anything, anchorSelector, time.Second).Return(nil).Once()
	session.On("WaitElement", mock.Anything, detailSelector, time.Second).Return(nil).Once()
	session.On("HTML", mock.Anything).Return(pageHTML, nil).Once()
	session.On("Close").Return(nil).Once()
	parser.On("Parse", pageHTML).Return(resultWithEvents(1), nil).Once()

	svc := NewTrackingService(launcher, parser, cfg)
	_, err := svc.Track(context.Background(), "N1")

	require.NoError(t, err)
	session.AssertNotCalled(t, "Reload", mock.Anything, mock.Anything)
	session.AssertExpectations(t)
}

// TestTrackingService_Track_DetailFallback verifies extraction proceeds when the event list never shows up.
func TestTrackingService_Track_DetailFallback(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	cfg := testConfig()
	cfg.DetailTimeout = time.Minute
	cfg.DetailFallback = 20 * time.Millisecond

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
	session.On("Reload", mock.Anything, time.Second).Return(nil).Once()
	session.On("Title", mock.Anything).Return("17TRACK", nil).Once()
	session.On("WaitElement", mock.Anything, anchorSelector, time.Second).Return(nil).Once()
	session.On("WaitElement", mock.Anything, detailSelector, time.Minute).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.Canceled).Once()
	session.On("HTML", mock.Anything).Return(pageHTML, nil).Once()
	session.On("Close").Return(nil).Once()
	parser.On("Parse", pageHTML).Return(resultWithEvents(0), nil).Once()

	svc := NewTrackingService(launcher, parser, cfg)

	start := time.Now()
	result, err := svc.Track(context.Background(), "N1")

	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTrackingService_Track_ContentNotFound(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
	session.On("Reload", mock.Anything, time.Second).Return(nil).Once()
	session.On("Title", mock.Anything).Return("17TRACK", nil).Once()
	session.On("WaitElement", mock.Anything, anchorSelector, time.Second).Return(context.DeadlineExceeded).Once()
	session.On("Close").Return(nil).Once()

	svc := NewTrackingService(launcher, parser, testConfig())
	result, err := svc.Track(context.Background(), "N1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
	session.AssertExpectations(t)
	session.AssertNotCalled(t, "HTML", mock.Anything)
	parser.AssertNotCalled(t, "Parse", mock.Anything)
}

func TestTrackingService_Track_LaunchFailure(t *testing.T) {
	launcher := new(MockLauncher)
	parser := new(MockParser)

	launcher.On("Launch", mock.Anything).Return(nil, errors.New("chromium not found")).Once()

	svc := NewTrackingService(launcher, parser, testConfig())
	result, err := svc.Track(context.Background(), "N1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrBrowserLaunch)
	assert.Contains(t, err.Error(), "chromium not found")
	launcher.AssertExpectations(t)
}

func TestTrackingService_Track_NavigationErrors(t *testing.T) {
	tests := []struct {
		name    string
		navErr  error
		wantErr error
	}{
		{"Timeout", fmt.Errorf("waiting for networkAlmostIdle: %w", context.DeadlineExceeded), domain.ErrNavigationTimeout},
		{"Failure", errors.New("net::ERR_NAME_NOT_RESOLVED"), domain.ErrNavigationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := new(MockLauncher)
			session := new(MockSession)

			launcher.On("Launch", mock.Anything).Return(session, nil).Once()
			session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(tt.navErr).Once()
			session.On("Close").Return(nil).Once()

			svc := NewTrackingService(launcher, new(MockParser), testConfig())
			result, err := svc.Track(context.Background(), "N1")

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			session.AssertExpectations(t)
		})
	}
}

func TestTrackingService_Track_ReloadTimeout(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
	session.On("Reload", mock.Anything, time.Second).Return(context.DeadlineExceeded).Once()
	session.On("Close").Return(nil).Once()

	svc := NewTrackingService(launcher, new(MockParser), testConfig())
	_, err := svc.Track(context.Background(), "N1")

	assert.ErrorIs(t, err, domain.ErrNavigationTimeout)
	session.AssertExpectations(t)
}

func TestTrackingService_Track_ExtractionFailure(t *testing.T) {
	t.Run("HTML", func(t *testing.T) {
		launcher := new(MockLauncher)
		session := new(MockSession)

		launcher.On("Launch", mock.Anything).Return(session, nil).Once()
		session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
		session.On("Reload", mock.Anything, time.Second).Return(nil).Once()
		session.On("Title", mock.Anything).Return("17TRACK", nil).Once()
		session.On("WaitElement", mock.Anything, mock.Anything, time.Second).Return(nil).Twice()
		session.On("HTML", mock.Anything).Return("", errors.New("target closed")).Once()
		session.On("Close").Return(nil).Once()

		svc := NewTrackingService(launcher, new(MockParser), testConfig())
		_, err := svc.Track(context.Background(), "N1")

		assert.ErrorIs(t, err, domain.ErrExtraction)
		session.AssertExpectations(t)
	})

	t.Run("Parse", func(t *testing.T) {
		launcher := new(MockLauncher)
		session := new(MockSession)
		parser := new(MockParser)

		launcher.On("Launch", mock.Anything).Return(session, nil).Once()
		expectLoadedPage(session, "https://t.17track.net/es#nums=N1")
		parser.On("Parse", pageHTML).Return(nil, errors.New("bad document")).Once()

		svc := NewTrackingService(launcher, parser, testConfig())
		_, err := svc.Track(context.Background(), "N1")

		assert.ErrorIs(t, err, domain.ErrExtraction)
		session.AssertExpectations(t)
	})
}

// TestTrackingService_Track_CloseErrorIgnored verifies a teardown failure does not fail a good scrape.
func TestTrackingService_Track_CloseErrorIgnored(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)
	parser := new(MockParser)

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).Return(nil).Once()
	session.On("Reload", mock.Anything, time.Second).Return(nil).Once()
	session.On("Title", mock.Anything).Return("17TRACK", nil).Once()
	session.On("WaitElement", mock.Anything, mock.Anything, time.Second).Return(nil).Twice()
	session.On("HTML", mock.Anything).Return(pageHTML, nil).Once()
	session.On("Close").Return(errors.New("process already gone")).Once()
	parser.On("Parse", pageHTML).Return(resultWithEvents(2), nil).Once()

	svc := NewTrackingService(launcher, parser, testConfig())
	result, err := svc.Track(context.Background(), "N1")

	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
}

// TestTrackingService_Track_SessionLimit verifies callers beyond the cap give up at their deadline.
func TestTrackingService_Track_SessionLimit(t *testing.T) {
	launcher := new(MockLauncher)
	session := new(MockSession)

	cfg := testConfig()
	cfg.MaxSessions = 1
	cfg.RequestTimeout = 200 * time.Millisecond

	entered := make(chan struct{})
	release := make(chan struct{})

	launcher.On("Launch", mock.Anything).Return(session, nil).Once()
	session.On("Navigate", mock.Anything, mock.Anything, time.Second).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(errors.New("aborted")).Once()
	session.On("Close").Return(nil).Once()

	svc := NewTrackingService(launcher, new(MockParser), cfg)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Track(context.Background(), "FIRST")
		firstDone <- err
	}()
	<-entered

	_, err := svc.Track(context.Background(), "SECOND")
	assert.ErrorIs(t, err, domain.ErrSessionUnavailable)

	close(release)
	assert.ErrorIs(t, <-firstDone, domain.ErrNavigationFailed)
	launcher.AssertNumberOfCalls(t, "Launch", 1)
}

func TestBuildTrackingURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		number   domain.TrackingNumber
		want     string
	}{
		{"Append", "https://t.17track.net/es#nums=", "LX123", "https://t.17track.net/es#nums=LX123"},
		{"Verb", "https://t.17track.net/en#nums=%s&fc=0", "LX123", "https://t.17track.net/en#nums=LX123&fc=0"},
		{"Escaped", "https://t.17track.net/es#nums=", "AB 12/3&x", "https://t.17track.net/es#nums=AB+12%2F3%26x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTrackingURL(tt.template, tt.number))
		})
	}
}

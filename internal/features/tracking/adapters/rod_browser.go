package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"track17-scrapper/internal/core/config"
	"track17-scrapper/internal/core/logger"
	"track17-scrapper/internal/core/proxy"
	"track17-scrapper/internal/features/tracking/ports"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

const closeTimeout = 5 * time.Second

// RodLauncher starts one Chromium process per session using go-rod.
type RodLauncher struct {
	cfg    config.BrowserConfig
	proxy  proxy.Settings
	logger *zap.Logger
}

// NewRodLauncher creates a RodLauncher. Stealth and resource blocking are
// fixed here for the lifetime of the process.
func NewRodLauncher(cfg config.BrowserConfig, proxySettings proxy.Settings) *RodLauncher {
	return &RodLauncher{
		cfg:    cfg,
		proxy:  proxySettings,
		logger: logger.Named("tracking.browser"),
	}
}

// Launch implements ports.BrowserLauncher. On error everything started so far
// is torn down before returning.
func (l *RodLauncher) Launch(ctx context.Context) (ports.BrowserSession, error) {
	s := &rodSession{
		lifecycle: lifecycleEvent(l.cfg.ReadinessMode),
		logger:    l.logger,
	}

	if err := l.start(ctx, s); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (l *RodLauncher) start(ctx context.Context, s *rodSession) error {
	proxyAddr, err := l.startProxy(s)
	if err != nil {
		return err
	}

	l.logger.Debug("Launching browser...",
		zap.Bool("headless", l.cfg.Headless),
		zap.Bool("stealth", l.cfg.Stealth),
		zap.Bool("proxy_enabled", proxyAddr != ""),
	)

	s.launcher = l.newLauncher(ctx, proxyAddr)
	u, err := s.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	s.launched = true

	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	page, err := l.newPage(browser)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	s.page = page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("failed to enable network domain: %w", err)
	}
	if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(page); err != nil {
		return fmt.Errorf("failed to disable cache: %w", err)
	}

	if l.cfg.BlockResources {
		router := page.HijackRequests()
		if err := router.Add("*", "", blockNonEssential); err != nil {
			return fmt.Errorf("failed to install request filter: %w", err)
		}
		go router.Run()
		s.router = router
	}

	return nil
}

// startProxy returns the proxy address Chromium should use, starting a local
// forwarder when the upstream requires credentials.
func (l *RodLauncher) startProxy(s *rodSession) (string, error) {
	if !l.proxy.HasProxy() {
		return "", nil
	}
	if !l.proxy.NeedsAuth() {
		return l.proxy.HostPort(), nil
	}

	fwd, err := proxy.NewForwarder(l.proxy.FullURL())
	if err != nil {
		return "", fmt.Errorf("failed to create proxy forwarder: %w", err)
	}
	addr, err := fwd.Start()
	if err != nil {
		return "", fmt.Errorf("failed to start proxy forwarder: %w", err)
	}
	s.forwarder = fwd

	return addr, nil
}

// newLauncher configures a Chromium process trimmed down to what a single
// scrape needs and without the usual automation markers.
func (l *RodLauncher) newLauncher(ctx context.Context, proxyAddr string) *launcher.Launcher {
	ln := launcher.New().
		Context(ctx).
		Headless(l.cfg.Headless).
		NoSandbox(true).
		Delete("enable-automation").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-component-update").
		Set("disable-default-apps").
		Set("disable-sync").
		Set("disable-breakpad").
		Set("disable-domain-reliability").
		Set("metrics-recording-only").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("no-zygote").
		Set("mute-audio").
		Set("disk-cache-size", "0")

	if l.cfg.Bin != "" {
		ln = ln.Bin(l.cfg.Bin)
	}

	if proxyAddr != "" {
		ln = ln.Proxy(proxyAddr)
	}

	return ln
}

func (l *RodLauncher) newPage(browser *rod.Browser) (*rod.Page, error) {
	if l.cfg.Stealth {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{})
}

// blockNonEssential aborts requests the extraction never looks at.
func blockNonEssential(h *rod.Hijack) {
	switch h.Request.Type() {
	case proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeMedia,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeStylesheet:
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		return
	}
	h.ContinueRequest(&proto.FetchContinueRequest{})
}

func lifecycleEvent(mode string) proto.PageLifecycleEventName {
	if mode == config.ReadinessDOMContentLoaded {
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
	// networkAlmostIdle: at most two open connections for 500ms.
	return proto.PageLifecycleEventNameNetworkAlmostIdle
}

// rodSession implements ports.BrowserSession.
type rodSession struct {
	lifecycle proto.PageLifecycleEventName
	logger    *zap.Logger

	forwarder *proxy.Forwarder
	launcher  *launcher.Launcher
	launched  bool
	browser   *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter

	closeOnce sync.Once
	closeErr  error
}

// Navigate implements ports.BrowserSession.
func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.loadAndWait(ctx, timeout, func(p *rod.Page) error {
		return p.Navigate(url)
	})
}

// Reload implements ports.BrowserSession.
func (s *rodSession) Reload(ctx context.Context, timeout time.Duration) error {
	return s.loadAndWait(ctx, timeout, func(p *rod.Page) error {
		return p.Reload()
	})
}

func (s *rodSession) loadAndWait(ctx context.Context, timeout time.Duration, load func(*rod.Page) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(ctx)
	wait := p.WaitNavigation(s.lifecycle)

	if err := load(p); err != nil {
		return err
	}

	wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for %s: %w", s.lifecycle, err)
	}
	return nil
}

// WaitElement implements ports.BrowserSession.
func (s *rodSession) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.page.Context(ctx).Element(selector)
	return err
}

// Title implements ports.BrowserSession.
func (s *rodSession) Title(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

// HTML implements ports.BrowserSession.
func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close implements ports.BrowserSession. It runs on a fresh context so an
// expired request deadline cannot prevent teardown.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		var errs []error

		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop request filter: %w", err))
			}
		}

		if s.page != nil {
			if err := s.page.Context(ctx).Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}

		if s.browser != nil {
			if err := s.browser.Context(ctx).Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}

		// Kill is a no-op for an exited process; Cleanup waits for the exit and
		// removes the temporary profile. Cleanup blocks forever if nothing launched.
		if s.launched {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}

		if s.forwarder != nil {
			if err := s.forwarder.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop proxy forwarder: %w", err))
			}
		}

		s.closeErr = errors.Join(errs...)
		s.logger.Debug("Browser session closed", zap.Error(s.closeErr))
	})

	return s.closeErr
}

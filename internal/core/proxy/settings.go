package proxy

import (
	"fmt"
	"net/url"

	"track17-scrapper/internal/core/config"
)

// Settings describes the upstream proxy a browser session should use.
type Settings struct {
	Enabled  bool
	Hostname string
	Port     int
	Username string
	Password string
}

// FromConfig maps the PROXY_* configuration onto Settings.
func FromConfig(cfg config.ProxyConfig) Settings {
	return Settings{
		Enabled:  cfg.Enabled,
		Hostname: cfg.Hostname,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
	}
}

// HasProxy returns true if proxy is enabled and configured.
func (p Settings) HasProxy() bool {
	return p.Enabled && p.Hostname != "" && p.Port > 0
}

// NeedsAuth reports whether Chromium cannot use the proxy directly.
// Chromium ignores credentials passed through --proxy-server.
func (p Settings) NeedsAuth() bool {
	return p.HasProxy() && p.Username != "" && p.Password != ""
}

// HostPort returns the proxy address without credentials, e.g. "http://proxy:3128".
func (p Settings) HostPort() string {
	if !p.HasProxy() {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", p.Hostname, p.Port)
}

// FullURL returns the proxy URL including credentials when present.
func (p Settings) FullURL() string {
	if !p.NeedsAuth() {
		return p.HostPort()
	}
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Hostname, p.Port),
	}
	return u.String()
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Readiness modes accepted by READINESS_MODE.
const (
	ReadinessNetworkIdle      = "network_idle"
	ReadinessDOMContentLoaded = "dom_content_loaded"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: environment key, used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
// - oneof: "|" separated list of accepted string values
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"PORT" default:"3000"`
	// CORSAllowOrigins is passed verbatim to the CORS middleware.
	CORSAllowOrigins string `mapstructure:"CORS_ALLOW_ORIGINS" default:"*"`
	// MetricsEnabled exposes GET /metrics when true.
	MetricsEnabled bool `mapstructure:"METRICS_ENABLED" default:"true"`

	// Browser holds the headless browser launch options.
	Browser BrowserConfig `mapstructure:",squash"`

	// Scrape holds the per-request scraping bounds.
	Scrape ScrapeConfig `mapstructure:",squash"`

	// Proxy holds the optional upstream proxy used by the browser.
	Proxy ProxyConfig `mapstructure:",squash"`
}

// BrowserConfig controls how each browser session is launched.
type BrowserConfig struct {
	// Bin is the path to a preinstalled Chrome/Chromium. Empty lets rod download or discover one.
	Bin string `mapstructure:"BROWSER_BIN"`
	// Headless runs the browser without a window.
	Headless bool `mapstructure:"BROWSER_HEADLESS" default:"true"`
	// Stealth applies automation-detection countermeasures to every page.
	Stealth bool `mapstructure:"BROWSER_STEALTH" default:"true"`
	// BlockResources aborts image, media, font and stylesheet requests.
	BlockResources bool `mapstructure:"BROWSER_BLOCK_RESOURCES" default:"true"`
	// ReadinessMode selects the lifecycle event a navigation waits for.
	ReadinessMode string `mapstructure:"READINESS_MODE" default:"network_idle" oneof:"network_idle|dom_content_loaded"`
}

// ScrapeConfig bounds a single scrape.
type ScrapeConfig struct {
	// TrackingURL is the page template. It either contains a %s verb or ends where the number goes.
	TrackingURL string `mapstructure:"TRACKING_URL" default:"https://t.17track.net/es#nums=" required:"true"`
	// MaxSessions caps the number of browser sessions alive at once.
	MaxSessions int `mapstructure:"BROWSER_MAX_SESSIONS" default:"3" required:"true"`
	// ForceReload reloads the page once after the first navigation.
	ForceReload bool `mapstructure:"FORCE_RELOAD" default:"true"`
	// NavigationTimeout bounds each navigation or reload.
	NavigationTimeout time.Duration `mapstructure:"NAVIGATION_TIMEOUT" default:"60s"`
	// AnchorTimeout bounds the wait for the results container.
	AnchorTimeout time.Duration `mapstructure:"ANCHOR_TIMEOUT" default:"30s"`
	// DetailTimeout bounds the wait for populated event data.
	DetailTimeout time.Duration `mapstructure:"DETAIL_TIMEOUT" default:"10s"`
	// DetailFallback is the flat delay raced against DetailTimeout.
	DetailFallback time.Duration `mapstructure:"DETAIL_FALLBACK" default:"5s"`
	// RequestTimeout is the overall deadline of one scrape, queueing included.
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT" default:"120s"`
	// MaxEvents caps the returned events. Zero or negative disables the cap.
	MaxEvents int `mapstructure:"MAX_EVENTS" default:"5"`
}

// ProxyConfig describes an upstream HTTP proxy.
type ProxyConfig struct {
	Enabled  bool   `mapstructure:"PROXY_ENABLED" default:"false"`
	Hostname string `mapstructure:"PROXY_HOST"`
	Port     int    `mapstructure:"PROXY_PORT"`
	Username string `mapstructure:"PROXY_USERNAME"`
	Password string `mapstructure:"PROXY_PASSWORD"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags binds every tagged key to the environment and registers its default.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}

		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}

		if def := field.Tag.Get("default"); def != "" {
			v.SetDefault(key, def)
		}
	}
	return nil
}

// validate enforces the required and oneof tags.
func validate(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := val.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validate(value.Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")

		if field.Tag.Get("required") == "true" && isZero(value) {
			return fmt.Errorf("missing required configuration: %s", key)
		}

		if allowed := field.Tag.Get("oneof"); allowed != "" && value.Kind() == reflect.String {
			if !contains(strings.Split(allowed, "|"), value.String()) {
				return fmt.Errorf("invalid configuration %s=%q: expected one of %s", key, value.String(), allowed)
			}
		}
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

package httpclient

import (
	"net/http"
	"time"

	"track17-scrapper/internal/core/logger"

	"go.uber.org/zap"
)

const userAgent = "track17-scrapper"

// LoggingRoundTripper logs every outgoing request and stamps it with the client's User-Agent.
type LoggingRoundTripper struct {
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
	logger  *zap.Logger
}

// RoundTrip executes the request and logs details.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	}

	resp, err := lrt.Proxied.RoundTrip(req)
	fields = append(fields, zap.Duration("duration", time.Since(start)))

	if err != nil {
		lrt.logger.Error("HTTP request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	lrt.logger.Debug("HTTP request completed", append(fields,
		zap.Int("status_code", resp.StatusCode),
		zap.String("ray_id", resp.Header.Get("X-Ray-ID")),
	)...)

	return resp, nil
}

// NewClient returns an http.Client with logging middleware.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: http.DefaultTransport,
			logger:  logger.Named("httpclient"),
		},
		Timeout: timeout,
	}
}

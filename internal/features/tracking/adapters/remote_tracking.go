package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"track17-scrapper/internal/core/httpclient"
	"track17-scrapper/internal/features/tracking/domain"
)

// RemoteTrackingService implements ports.TrackingService against a running
// instance of this API.
type RemoteTrackingService struct {
	baseURL string
	client  *http.Client
}

// NewRemoteTrackingService creates a client for the API listening at baseURL.
func NewRemoteTrackingService(baseURL string, timeout time.Duration) *RemoteTrackingService {
	return &RemoteTrackingService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(timeout),
	}
}

type remoteRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

type remoteError struct {
	Error string `json:"error"`
	RayID string `json:"ray_id"`
}

// Track implements ports.TrackingService.
func (r *RemoteTrackingService) Track(ctx context.Context, trackingNumber domain.TrackingNumber) (*domain.TrackingResult, error) {
	body, err := json.Marshal(remoteRequest{TrackingNumber: trackingNumber.String()})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/track", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach tracking API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var result domain.TrackingResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode tracking result: %w", err)
		}
		if result.Events == nil {
			result.Events = make([]domain.TrackingEvent, 0)
		}
		return &result, nil
	}

	var apiErr remoteError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTrackingNumber, apiErr.Error)
	case strings.HasPrefix(apiErr.Error, "no tracking information"):
		return nil, fmt.Errorf("%w (ray %s)", domain.ErrContentNotFound, apiErr.RayID)
	default:
		return nil, fmt.Errorf("tracking API responded %d: %s (ray %s)", resp.StatusCode, apiErr.Error, apiErr.RayID)
	}
}

package handler

import (
	"errors"

	"track17-scrapper/internal/core/logger"
	"track17-scrapper/internal/features/tracking/domain"
	"track17-scrapper/internal/features/tracking/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	msgInvalidBody     = "invalid request body"
	msgRequired        = "tracking number is required"
	msgNotString       = "tracking number must be a string"
	msgNotFound        = "no tracking information found for this number"
	msgBusy            = "tracking service is busy, try again later"
	msgTrackingFailure = "failed to retrieve tracking information"
)

// TrackingHandler handles HTTP requests for tracking operations.
type TrackingHandler struct {
	service ports.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(service ports.TrackingService) *TrackingHandler {
	return &TrackingHandler{
		service: service,
	}
}

// TrackRequest is the body of POST /track.
type TrackRequest struct {
	// TrackingNumber must be a non-blank string.
	TrackingNumber any `json:"trackingNumber" swaggertype:"string" example:"LX123456789CN"`
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Error is a message safe to show to the caller.
	Error string `json:"error"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// Track godoc
// @Summary Scrape tracking information
// @Description Opens the tracking number on 17track in a fresh headless browser and returns the courier, status and most recent events.
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body TrackRequest true "Tracking number"
// @Success 200 {object} domain.TrackingResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /track [post]
func (h *TrackingHandler) Track(c *fiber.Ctx) error {
	var req TrackRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.StatusBadRequest, msgInvalidBody)
	}

	raw, ok := req.TrackingNumber.(string)
	if !ok {
		if req.TrackingNumber == nil {
			return h.fail(c, fiber.StatusBadRequest, msgRequired)
		}
		return h.fail(c, fiber.StatusBadRequest, msgNotString)
	}

	trackingNumber, err := domain.NewTrackingNumber(raw)
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, msgRequired)
	}

	result, err := h.service.Track(c.Context(), trackingNumber)
	if err != nil {
		logger.Get().Error("Tracking failed",
			zap.String("tracking_number", trackingNumber.String()),
			zap.String("ray_id", rayID(c)),
			zap.Error(err),
		)
		return h.fail(c, fiber.StatusInternalServerError, failureMessage(err))
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *TrackingHandler) fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: message,
		RayID: rayID(c),
	})
}

// failureMessage hides internal detail from the caller.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrContentNotFound):
		return msgNotFound
	case errors.Is(err, domain.ErrSessionUnavailable):
		return msgBusy
	default:
		return msgTrackingFailure
	}
}

func rayID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// BookingHandler exposes the payment view of a booking.
type BookingHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewBookingHandler(repos *Repos, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{repos: repos, logger: logger}
}

// Get returns a booking with its payment status.
// GET /api/bookings/:id
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, "id is required")
	}

	booking, err := h.repos.Booking.FindByID(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, "Booking not found")
	}
	return successResponse(c, "Successful", booking)
}

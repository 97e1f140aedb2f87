package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"academypay/internal/repository"
)

// PaymentHandler serves payment lookups for administrators.
type PaymentHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewPaymentHandler(repos *Repos, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{repos: repos, logger: logger}
}

// List returns a page of payments, newest first.
// GET /api/payments?limit=&page=&q=
func (h *PaymentHandler) List(c echo.Context) error {
	limit, page := pageParams(c)
	q := c.QueryParam("q")

	payments, total, err := h.repos.Payment.FindAll(c.Request().Context(), limit, page, q)
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		return errorResponse(c, "Failed to retrieve payments")
	}

	return successResponse(c, "Successful", paginatedResponse(payments, total, page, limit))
}

// Get returns one payment by its reference.
// GET /api/payments/:reference
func (h *PaymentHandler) Get(c echo.Context) error {
	ref := c.Param("reference")
	if ref == "" {
		return errorResponse(c, "reference is required")
	}

	payment, err := h.repos.Payment.FindByReference(c.Request().Context(), ref)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("Failed to load payment", zap.String("reference", ref), zap.Error(err))
		}
		return errorResponse(c, "Payment not found")
	}

	return successResponse(c, "Successful", payment)
}

// Stats returns the number of payments per status.
// GET /api/payments/stats
func (h *PaymentHandler) Stats(c echo.Context) error {
	counts, err := h.repos.Payment.CountByStatus(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to count payments", zap.Error(err))
		return errorResponse(c, "Failed to retrieve statistics")
	}
	return successResponse(c, "Successful", counts)
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"academypay/internal/models"
	"academypay/internal/pkg/utils"
)

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// queryInt reads an integer query parameter, falling back to defaultVal.
func queryInt(c echo.Context, key string, defaultVal int) int {
	if v := c.QueryParam(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// pageParams reads and clamps limit and page.
func pageParams(c echo.Context) (limit, page int) {
	limit = queryInt(c, "limit", 50)
	page = queryInt(c, "page", 1)
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if page <= 0 {
		page = 1
	}
	return limit, page
}

// paramID parses the :id path parameter.
func paramID(c echo.Context) (uint, bool) {
	id := utils.ParseUint(c.Param("id"), 0)
	return id, id != 0
}

// PaymentReader is the read side of the payment repository.
type PaymentReader interface {
	FindAll(ctx context.Context, limit, page int, query string) ([]models.Payment, int64, error)
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// BookingReader is the read side of the booking repository.
type BookingReader interface {
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
}

// MandateStore is the mandate repository surface used by the API.
type MandateStore interface {
	Create(ctx context.Context, m *models.DebitOrderMandate) error
	FindByID(ctx context.Context, id uint) (*models.DebitOrderMandate, error)
	FindByUserID(ctx context.Context, userID uint) ([]models.DebitOrderMandate, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

// Repos bundles all repositories needed by API handlers.
type Repos struct {
	Payment PaymentReader
	Booking BookingReader
	Mandate MandateStore
	Now     func() time.Time
}

func (r *Repos) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

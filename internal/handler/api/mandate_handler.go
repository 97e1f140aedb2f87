package api

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"academypay/internal/debitorder"
	"academypay/internal/models"
	"academypay/internal/pkg/utils"
	"academypay/internal/repository"
)

// MandateHandler manages debit-order mandates.
type MandateHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewMandateHandler(repos *Repos, logger *zap.Logger) *MandateHandler {
	return &MandateHandler{repos: repos, logger: logger}
}

// Create validates bank details and stores an active mandate.
// POST /api/mandates
func (h *MandateHandler) Create(c echo.Context) error {
	var req models.MandateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, "Invalid request body")
	}

	m, msg := h.buildMandate(&req)
	if msg != "" {
		return errorResponse(c, msg)
	}

	if err := h.repos.Mandate.Create(c.Request().Context(), m); err != nil {
		h.logger.Error("Failed to create mandate", zap.Uint("user_id", req.UserID), zap.Error(err))
		return errorResponse(c, "Failed to create mandate")
	}

	h.logger.Info("Mandate created",
		zap.String("reference", m.Reference),
		zap.Uint("user_id", m.UserID),
		zap.String("account", m.MaskedAccount()),
	)
	return successResponse(c, "Mandate created", mandateView(m))
}

func (h *MandateHandler) buildMandate(req *models.MandateRequest) (*models.DebitOrderMandate, string) {
	if req.UserID == 0 || req.OrganizationID == 0 {
		return nil, "user_id and organization_id are required"
	}
	if strings.TrimSpace(req.AccountHolder) == "" || strings.TrimSpace(req.BankName) == "" {
		return nil, "bank_name and account_holder are required"
	}

	account := strings.TrimSpace(req.AccountNumber)
	branch := strings.TrimSpace(req.BranchCode)
	if err := debitorder.ValidateBankAccount(account, branch); err != nil {
		return nil, err.Error()
	}

	accountType := strings.ToLower(strings.TrimSpace(req.AccountType))
	if accountType == "" {
		accountType = "current"
	}
	if !debitorder.ValidAccountType(accountType) {
		return nil, "account_type must be one of " + strings.Join(debitorder.AccountTypes, ", ")
	}

	frequency := strings.ToLower(strings.TrimSpace(req.Frequency))
	if frequency == "" {
		frequency = debitorder.FrequencyMonthly
	}
	if !debitorder.ValidFrequency(frequency) {
		return nil, "frequency must be weekly, bi-weekly or monthly"
	}

	maxAmount, err := utils.ParseAmount(req.MaxAmount)
	if err != nil || !maxAmount.IsPositive() {
		return nil, "max_amount must be a positive amount"
	}

	now := h.repos.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if req.StartDate != "" {
		today := start
		start, err = time.ParseInLocation("2006-01-02", req.StartDate, now.Location())
		if err != nil {
			return nil, "start_date must be YYYY-MM-DD"
		}
		if start.Before(today) {
			return nil, "start_date must not be in the past"
		}
	}

	var end *time.Time
	if req.EndDate != "" {
		e, err := time.ParseInLocation("2006-01-02", req.EndDate, now.Location())
		if err != nil {
			return nil, "end_date must be YYYY-MM-DD"
		}
		if !e.After(start) {
			return nil, "end_date must be after start_date"
		}
		end = &e
	}

	return &models.DebitOrderMandate{
		UserID:          req.UserID,
		OrganizationID:  req.OrganizationID,
		Reference:       debitorder.MandateReference(now),
		BankName:        strings.TrimSpace(req.BankName),
		AccountHolder:   strings.TrimSpace(req.AccountHolder),
		AccountNumber:   account,
		BranchCode:      branch,
		AccountType:     accountType,
		MaxAmount:       maxAmount,
		Frequency:       frequency,
		Status:          models.MandateActive,
		PayerEmail:      strings.TrimSpace(req.PayerEmail),
		StartDate:       start,
		EndDate:         end,
		NextProcessDate: start,
	}, ""
}

// List returns the mandates of a user.
// GET /api/mandates?user_id=
func (h *MandateHandler) List(c echo.Context) error {
	userID := utils.ParseUint(c.QueryParam("user_id"), 0)
	if userID == 0 {
		return errorResponse(c, "user_id is required")
	}

	mandates, err := h.repos.Mandate.FindByUserID(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list mandates", zap.Uint("user_id", userID), zap.Error(err))
		return errorResponse(c, "Failed to retrieve mandates")
	}

	items := make([]map[string]interface{}, 0, len(mandates))
	for i := range mandates {
		items = append(items, mandateView(&mandates[i]))
	}
	return successResponse(c, "Successful", items)
}

// Cancel stops further debits on a mandate.
// POST /api/mandates/:id/cancel
func (h *MandateHandler) Cancel(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return errorResponse(c, "id is required")
	}

	err := h.repos.Mandate.UpdateStatus(c.Request().Context(), id, models.MandateCancelled)
	if errors.Is(err, repository.ErrNotFound) {
		return errorResponse(c, "Mandate not found")
	}
	if err != nil {
		h.logger.Error("Failed to cancel mandate", zap.Uint("id", id), zap.Error(err))
		return errorResponse(c, "Failed to cancel mandate")
	}

	m, err := h.repos.Mandate.FindByID(c.Request().Context(), id)
	if err != nil {
		return successResponse(c, "Mandate cancelled", nil)
	}
	return successResponse(c, "Mandate cancelled", mandateView(m))
}

func mandateView(m *models.DebitOrderMandate) map[string]interface{} {
	return map[string]interface{}{
		"id":                m.ID,
		"mandate_reference": m.Reference,
		"user_id":           m.UserID,
		"organization_id":   m.OrganizationID,
		"bank_name":         m.BankName,
		"account_holder":    m.AccountHolder,
		"account_number":    m.MaskedAccount(),
		"branch_code":       m.BranchCode,
		"account_type":      m.AccountType,
		"max_amount":        m.MaxAmount.StringFixed(2),
		"frequency":         m.Frequency,
		"status":            m.Status,
		"start_date":        m.StartDate.Format("2006-01-02"),
		"next_process_date": m.NextProcessDate.Format("2006-01-02"),
	}
}

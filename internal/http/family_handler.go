package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hapo/internal/service"
)

const dateLayout = "2006-01-02"

// FamilyHandler expone el panel del padre. Todas las rutas requieren rol parent.
type FamilyHandler struct {
	logger *zap.Logger
	family *service.FamilyService
}

func NewFamilyHandler(logger *zap.Logger, family *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{logger: logger, family: family}
}

type paymentRequest struct {
	Merchant    string  `json:"merchant"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// Dashboard maneja GET /parent/dashboard.
func (h *FamilyHandler) Dashboard(c *gin.Context) {
	dash, err := h.family.Dashboard(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dashboard": dash})
}

// ListChildren maneja GET /parent/children.
func (h *FamilyHandler) ListChildren(c *gin.Context) {
	children, err := h.family.ListChildren(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load children", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "children": children})
}

// AddChild maneja POST /parent/children.
func (h *FamilyHandler) AddChild(c *gin.Context) {
	var req struct {
		FirstName   string   `json:"first_name"`
		LastName    string   `json:"last_name"`
		Username    string   `json:"username"`
		Password    string   `json:"password"`
		WeeklyLimit *float64 `json:"weekly_limit"`
		DailyLimit  *float64 `json:"daily_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.family.AddChild(c.Request.Context(), mustClaims(c).UserID, service.AddChildInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Password:    req.Password,
		WeeklyLimit: req.WeeklyLimit,
		DailyLimit:  req.DailyLimit,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Could not add child", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":            true,
		"child":              res.Child,
		"temporary_password": res.TemporaryPassword,
	})
}

// UpdateLimits maneja PATCH /parent/children/:id/limits.
func (h *FamilyHandler) UpdateLimits(c *gin.Context) {
	var req struct {
		DailyLimit  *float64 `json:"daily_limit"`
		WeeklyLimit *float64 `json:"weekly_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	child, err := h.family.UpdateSpendingLimits(c.Request.Context(), mustClaims(c).UserID, c.Param("id"), req.DailyLimit, req.WeeklyLimit)
	if err != nil {
		writeServiceError(c, h.logger, "Could not update limits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "child": child})
}

// AwardPoints maneja POST /parent/children/:id/points.
func (h *FamilyHandler) AwardPoints(c *gin.Context) {
	var req struct {
		Points int `json:"points"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	total, err := h.family.AwardPoints(c.Request.Context(), mustClaims(c).UserID, c.Param("id"), req.Points)
	if err != nil {
		writeServiceError(c, h.logger, "Could not award points", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reward_points": total})
}

// Transfer maneja POST /parent/transfers (enviar dinero, fondo de emergencia, recarga).
func (h *FamilyHandler) Transfer(c *gin.Context) {
	var req struct {
		ChildID string  `json:"child_id" binding:"required"`
		Amount  float64 `json:"amount"`
		Type    string  `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	entry, err := h.family.Transfer(c.Request.Context(), mustClaims(c).UserID, service.TransferInput{
		ChildID: req.ChildID,
		Amount:  req.Amount,
		Type:    req.Type,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Transfer failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": entry})
}

// PayQR maneja POST /parent/payments/qr.
func (h *FamilyHandler) PayQR(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	entry, err := h.family.PayQR(c.Request.Context(), mustClaims(c).UserID, service.PaymentInput{
		Merchant:    req.Merchant,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Payment failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": entry})
}

// Activity maneja GET /parent/activity?period=all|week|month|custom&from=&to=.
func (h *FamilyHandler) Activity(c *gin.Context) {
	filter := service.ActivityFilter{Period: c.DefaultQuery("period", service.PeriodAll)}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(c.Query(q.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Dates must use YYYY-MM-DD")
			return
		}
		*q.dst = &t
	}

	txs, err := h.family.Activity(c.Request.Context(), mustClaims(c).UserID, filter)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load activity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txs})
}

// ListRequests maneja GET /parent/requests.
func (h *FamilyHandler) ListRequests(c *gin.Context) {
	reqs, err := h.family.ListRequests(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "requests": reqs})
}

// ListRecurring maneja GET /parent/recurring.
func (h *FamilyHandler) ListRecurring(c *gin.Context) {
	payments, err := h.family.ListRecurringPayments(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load recurring payments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recurring_payments": payments})
}

// CreateRecurring maneja POST /parent/recurring.
func (h *FamilyHandler) CreateRecurring(c *gin.Context) {
	var req struct {
		ChildID     string     `json:"child_id" binding:"required"`
		Amount      float64    `json:"amount"`
		Frequency   string     `json:"frequency" binding:"required"`
		Description string     `json:"description"`
		StartAt     *time.Time `json:"start_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	payment, err := h.family.CreateRecurringPayment(c.Request.Context(), mustClaims(c).UserID, service.RecurringPaymentInput{
		ChildID:     req.ChildID,
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		Description: req.Description,
		StartAt:     req.StartAt,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Could not schedule payment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "recurring_payment": payment})
}

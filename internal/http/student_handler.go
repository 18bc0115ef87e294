package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hapo/internal/service"
)

// StudentHandler expone el login y el panel del estudiante.
type StudentHandler struct {
	logger   *zap.Logger
	students *service.StudentService
}

func NewStudentHandler(logger *zap.Logger, students *service.StudentService) *StudentHandler {
	return &StudentHandler{logger: logger, students: students}
}

// Login maneja POST /student/login.
func (h *StudentHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.students.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(c, h.logger, "Student sign in failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Dashboard maneja GET /student/dashboard.
func (h *StudentHandler) Dashboard(c *gin.Context) {
	dash, err := h.students.Dashboard(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		writeServiceError(c, h.logger, "Could not load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dashboard": dash})
}

// SubmitRequest maneja POST /student/requests.
func (h *StudentHandler) SubmitRequest(c *gin.Context) {
	var req struct {
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	created, err := h.students.SubmitRequest(c.Request.Context(), mustClaims(c).UserID, service.RequestInput{
		Type:   req.Type,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Could not send request", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "request": created})
}

// PayQR maneja POST /student/payments/qr.
func (h *StudentHandler) PayQR(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.students.PayQR(c.Request.Context(), mustClaims(c).UserID, service.PaymentInput{
		Merchant:    req.Merchant,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Payment failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": res.Transaction, "balance": res.Balance})
}

// RedeemReward maneja POST /student/rewards/redeem.
func (h *StudentHandler) RedeemReward(c *gin.Context) {
	var req struct {
		Reward string `json:"reward" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.students.RedeemReward(c.Request.Context(), mustClaims(c).UserID, req.Reward)
	if err != nil {
		writeServiceError(c, h.logger, "Could not redeem reward", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "redemption": res})
}

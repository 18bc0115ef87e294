package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hapo/internal/service"
)

type errorResponse struct {
	err    error
	status int
	msg    string
}

// errorResponses traduce errores de servicio a status y mensaje visible.
var errorResponses = []errorResponse{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{service.ErrEmailNotVerified, http.StatusForbidden, "Please verify your email address before signing in"},
	{service.ErrEmailTaken, http.StatusConflict, "An account with this email already exists"},
	{service.ErrNoPendingVerification, http.StatusNotFound, "No pending email verification"},
	{service.ErrNoPendingResend, http.StatusNotFound, "No pending verification found"},
	{service.ErrNoPendingMFA, http.StatusNotFound, "No pending MFA verification"},
	{service.ErrCodeExpired, http.StatusGone, "Verification code has expired"},
	{service.ErrMFAExpired, http.StatusGone, "MFA code has expired"},
	{service.ErrCodeInvalid, http.StatusBadRequest, "Invalid verification code"},
	{service.ErrCodeAttemptsExceeded, http.StatusTooManyRequests, "Too many invalid attempts, please request a new code"},
	{service.ErrOAuthInvalid, http.StatusBadRequest, "Invalid OAuth data"},
	{service.ErrEmailSendFailure, http.StatusServiceUnavailable, "Email delivery unavailable, please try again"},
	{service.ErrRateLimited, http.StatusTooManyRequests, "Too many requests, please try again later"},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{service.ErrChildNotFound, http.StatusNotFound, "Child not found"},
	{service.ErrUsernameTaken, http.StatusConflict, "Username already taken"},
	{service.ErrStudentNotFound, http.StatusUnauthorized, "Student account not found"},
	{service.ErrInvalidPassword, http.StatusUnauthorized, "Invalid password"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "Please enter a valid amount"},
	{service.ErrInsufficientBalance, http.StatusUnprocessableEntity, "Insufficient balance for this payment."},
	{service.ErrSpendingLimit, http.StatusUnprocessableEntity, "This payment exceeds your spending limit."},
	{service.ErrInsufficientPoints, http.StatusUnprocessableEntity, "Not enough points to redeem this reward"},
	{service.ErrUnknownReward, http.StatusBadRequest, "Unknown reward"},
	{service.ErrJWTInvalid, http.StatusUnauthorized, "invalid token"},
	{service.ErrJWTExpired, http.StatusUnauthorized, "token expired"},
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func respondInvalidRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	respondError(c, http.StatusBadRequest, "invalid request")
}

// writeServiceError responde segun el error; lo desconocido se loguea y devuelve fallback.
func writeServiceError(c *gin.Context, logger *zap.Logger, fallback string, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		msg := "Please fix the highlighted fields"
		if len(verr.Fields) == 1 {
			for _, m := range verr.Fields {
				msg = m
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg, "errors": verr.Fields})
		return
	}
	for _, r := range errorResponses {
		if errors.Is(err, r.err) {
			respondError(c, r.status, r.msg)
			return
		}
	}
	logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	respondError(c, http.StatusInternalServerError, fallback+", please try again")
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hapo/internal/service"
)

// AuthHandler expone registro, verificacion de email, login con MFA y manejo de tokens.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{logger: logger, auth: auth}
}

type emailCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type emailOnlyRequest struct {
	Email string `json:"email" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SignUp maneja POST /signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		FullName        string `json:"full_name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		Terms           bool   `json:"terms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}

	res, err := h.auth.SignUp(c.Request.Context(), service.SignUpInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Terms:           req.Terms,
	})
	if err != nil {
		writeServiceError(c, h.logger, "Sign up failed", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// VerifyEmail maneja POST /signup/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req emailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	user, err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(c, h.logger, "Verification failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// ResendEmail maneja POST /signup/resend.
func (h *AuthHandler) ResendEmail(c *gin.Context) {
	var req emailOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	if err := h.auth.ResendEmailVerification(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "Resend failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Login maneja POST /login. Con MFA responde requires_mfa sin tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(c, h.logger, "Sign in failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// VerifyMFA maneja POST /login/mfa.
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req emailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	res, err := h.auth.VerifyMFA(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(c, h.logger, "MFA verification failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResendMFA maneja POST /login/mfa/resend.
func (h *AuthHandler) ResendMFA(c *gin.Context) {
	var req emailOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	if err := h.auth.ResendMFA(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "Resend failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// OAuthLogin maneja POST /auth/oauth. Con id_token o code valida contra el
// proveedor OIDC configurado; sin ellos usa provider+subject directos.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	var req struct {
		Provider string `json:"provider" binding:"required"`
		IDToken  string `json:"id_token"`
		Code     string `json:"code"`
		Subject  string `json:"subject"`
		Email    string `json:"email" binding:"omitempty,email"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}

	var (
		res service.LoginResult
		err error
	)
	if req.IDToken != "" || req.Code != "" {
		res, err = h.auth.OAuthCredentialLogin(c.Request.Context(), req.Provider, req.IDToken, req.Code)
	} else {
		res, err = h.auth.OAuthLogin(c.Request.Context(), service.OAuthInput{
			Provider: req.Provider,
			Subject:  req.Subject,
			Email:    req.Email,
			FullName: req.FullName,
		})
	}
	if err != nil {
		writeServiceError(c, h.logger, "OAuth login failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	tokens, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": tokens})
}

// Logout maneja POST /auth/logout. Siempre responde 204.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, h.logger, err)
		return
	}
	_ = h.auth.Logout(req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /me con la sesion vigente.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), mustClaims(c))
	if err != nil {
		writeServiceError(c, h.logger, "Could not load session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

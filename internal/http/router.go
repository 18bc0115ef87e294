package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	healthH *HealthHandler,
	authH *AuthHandler,
	familyH *FamilyHandler,
	studentH *StudentHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/", healthH.Landing)
	r.GET("/healthz", healthH.Healthz)

	signup := r.Group("/signup")
	signup.POST("", authH.SignUp)
	signup.POST("/verify-email", authH.VerifyEmail)
	signup.POST("/resend", authH.ResendEmail)

	login := r.Group("/login")
	login.POST("", authH.Login)
	login.POST("/mfa", authH.VerifyMFA)
	login.POST("/mfa/resend", authH.ResendMFA)

	auth := r.Group("/auth")
	auth.POST("/oauth", authH.OAuthLogin)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)

	authenticated := JWTAuthMiddleware(jwtSvc)
	r.GET("/me", authenticated, authH.Me)

	parent := r.Group("/parent", authenticated, RequireRole(domain.RoleParent))
	parent.GET("/dashboard", familyH.Dashboard)
	parent.GET("/children", familyH.ListChildren)
	parent.POST("/children", familyH.AddChild)
	parent.PATCH("/children/:id/limits", familyH.UpdateLimits)
	parent.POST("/children/:id/points", familyH.AwardPoints)
	parent.POST("/transfers", familyH.Transfer)
	parent.POST("/payments/qr", familyH.PayQR)
	parent.GET("/activity", familyH.Activity)
	parent.GET("/requests", familyH.ListRequests)
	parent.GET("/recurring", familyH.ListRecurring)
	parent.POST("/recurring", familyH.CreateRecurring)

	r.POST("/student/login", studentH.Login)
	student := r.Group("/student", authenticated, RequireRole(domain.RoleStudent))
	student.GET("/dashboard", studentH.Dashboard)
	student.POST("/requests", studentH.SubmitRequest)
	student.POST("/payments/qr", studentH.PayQR)
	student.POST("/rewards/redeem", studentH.RedeemReward)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

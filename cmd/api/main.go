package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hapo/internal/config"
	"hapo/internal/db"
	"hapo/internal/email"
	apihttp "hapo/internal/http"
	"hapo/internal/repository"
	"hapo/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if cfg.IsDev() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	childRepo := repository.NewPgChildRepository(pool)
	ledgerRepo := repository.NewPgLedgerRepository(pool)
	requestRepo := repository.NewPgRequestRepository(pool)
	recurringRepo := repository.NewPgRecurringPaymentRepository(pool)

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	switch {
	case cfg.SMTPHost != "":
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	case cfg.EmailDemoMode:
		logger.Warn("email demo mode: verification codes are written to the log")
		emailSender = email.NewLogSender(logger)
	}

	var (
		otpLimiter   = service.NewOTPRateLimiter(cfg.CodeResendWindow, cfg.CodeResendLimit)
		pendingStore = service.NewMemoryVerificationStore()
		tokenStore   service.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.CodeResendWindow, cfg.CodeResendLimit)
			pendingStore = service.NewRedisVerificationStore(redisClient)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	oauthProviders := make(map[string]service.OAuthProvider)
	for name, pc := range map[string]service.OIDCProviderConfig{
		"google":    {Issuer: cfg.GoogleIssuer, ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret, RedirectURL: cfg.OAuthRedirectURL},
		"microsoft": {Issuer: cfg.MicrosoftIssuer, ClientID: cfg.MicrosoftClientID, ClientSecret: cfg.MicrosoftClientSecret, RedirectURL: cfg.OAuthRedirectURL},
	} {
		if pc.ClientID == "" {
			continue
		}
		provider, err := service.NewOIDCProvider(ctx, pc)
		if err != nil {
			logger.Warn("oidc provider disabled", zap.String("provider", name), zap.Error(err))
			continue
		}
		oauthProviders[name] = provider
	}

	authSvc := service.NewAuthService(logger, userRepo, pendingStore, emailSender, otpLimiter, jwtSvc,
		service.WithCodeTTLs(cfg.EmailCodeTTL, cfg.MFACodeTTL),
		service.WithOAuthProviders(oauthProviders),
		service.WithTrustedOAuthIdentity(cfg.OAuthTrustClientIdentity),
	)
	if cfg.OAuthTrustClientIdentity {
		logger.Warn("oauth accepts client supplied identities; never enable outside development")
	}
	familySvc := service.NewFamilyService(logger, userRepo, childRepo, ledgerRepo, requestRepo, recurringRepo)
	studentSvc := service.NewStudentService(logger, childRepo, ledgerRepo, requestRepo, jwtSvc, cfg.EnforceSpendingLimits)

	// RECURRING_INTERVAL=0 desactiva el runner.
	go service.NewRecurringRunner(logger, familySvc, recurringRepo, cfg.RecurringInterval).Start(ctx)

	router := apihttp.NewRouter(logger, jwtSvc,
		apihttp.NewHealthHandler(logger, pool),
		apihttp.NewAuthHandler(logger, authSvc),
		apihttp.NewFamilyHandler(logger, familySvc),
		apihttp.NewStudentHandler(logger, studentSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

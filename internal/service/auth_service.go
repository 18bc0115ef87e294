package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/email"
	"hapo/internal/repository"
)

const (
	emailCodeTTL    = 10 * time.Minute
	mfaCodeTTL      = 5 * time.Minute
	maxCodeAttempts = 5
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// AuthService coordina registro, verificacion de email, login con MFA y emision de sesion.
type AuthService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	pending      VerificationStore
	emailSender  email.Sender
	otpLimiter   OTPRateLimiter
	tokens       *JWTService
	oauth        map[string]OAuthProvider
	trustOAuth   bool
	emailCodeTTL time.Duration
	mfaCodeTTL   time.Duration
	now          func() time.Time
}

type AuthOption func(*AuthService)

func WithCodeTTLs(emailTTL, mfaTTL time.Duration) AuthOption {
	return func(s *AuthService) {
		if emailTTL > 0 {
			s.emailCodeTTL = emailTTL
		}
		if mfaTTL > 0 {
			s.mfaCodeTTL = mfaTTL
		}
	}
}

// WithOAuthProviders registra proveedores OIDC por nombre ("google", "microsoft").
// Un proveedor registrado solo acepta credenciales verificables.
func WithOAuthProviders(providers map[string]OAuthProvider) AuthOption {
	return func(s *AuthService) {
		for name, p := range providers {
			if p == nil {
				continue
			}
			if s.oauth == nil {
				s.oauth = make(map[string]OAuthProvider)
			}
			s.oauth[strings.ToLower(name)] = p
		}
	}
}

// WithTrustedOAuthIdentity habilita provider+subject sin credencial verificable.
// Solo para desarrollo: nunca vincula ni verifica cuentas existentes.
func WithTrustedOAuthIdentity(trust bool) AuthOption {
	return func(s *AuthService) {
		s.trustOAuth = trust
	}
}

// WithNowFunc reemplaza el reloj (tests).
func WithNowFunc(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	pending VerificationStore,
	emailSender email.Sender,
	otpLimiter OTPRateLimiter,
	tokens *JWTService,
	opts ...AuthOption,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pending == nil {
		pending = NewMemoryVerificationStore()
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(emailCodeTTL, 3)
	}
	s := &AuthService{
		logger:       logger,
		users:        users,
		pending:      pending,
		emailSender:  emailSender,
		otpLimiter:   otpLimiter,
		tokens:       tokens,
		emailCodeTTL: emailCodeTTL,
		mfaCodeTTL:   mfaCodeTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SignUpInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	Terms           bool
}

type SignUpResult struct {
	Success                   bool   `json:"success"`
	RequiresEmailVerification bool   `json:"requires_email_verification"`
	Email                     string `json:"email"`
}

// LoginResult es el resultado de cualquier paso de login. Tokens y User solo
// estan presentes cuando la sesion quedo emitida.
type LoginResult struct {
	Success     bool                `json:"success"`
	RequiresMFA bool                `json:"requires_mfa"`
	Message     string              `json:"message,omitempty"`
	User        *domain.SessionUser `json:"user,omitempty"`
	Tokens      *TokenPair          `json:"tokens,omitempty"`
}

type OAuthInput struct {
	Provider string
	Subject  string
	Email    string
	FullName string
}

// SignUp valida el formulario, deja la cuenta sin verificar y envia el codigo de email.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	if s.users == nil {
		return SignUpResult{}, errors.New("auth service not configured")
	}

	emailAddr := normalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	verr := &ValidationError{}
	if fullName == "" {
		verr.add("full_name", "Full name is required")
	}
	if emailAddr == "" {
		verr.add("email", "Email is required")
	} else if !emailPattern.MatchString(emailAddr) {
		verr.add("email", "Please enter a valid email address")
	}
	if in.Password != in.ConfirmPassword {
		verr.add("confirm_password", "Passwords do not match")
	}
	if !in.Terms {
		verr.add("terms", "You must agree to the terms")
	}
	if CheckPasswordStrength(in.Password).Score < minPasswordScore {
		verr.add("password", "Password is too weak")
	}
	if err := verr.orNil(); err != nil {
		return SignUpResult{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        emailAddr,
		PasswordHash: hash,
		MFAEnabled:   true,
		CreatedAt:    s.now(),
	}

	existing, err := s.users.GetByEmail(ctx, emailAddr)
	replacing := false
	switch {
	case err == nil && existing.EmailVerified():
		return SignUpResult{}, ErrEmailTaken
	case err == nil:
		replacing = true
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return SignUpResult{}, err
	}

	// El codigo se emite antes de persistir: un registro limitado o sin email no pisa la cuenta pendiente.
	if err := s.issueCode(ctx, domain.PurposeEmail, emailAddr, s.emailCodeTTL); err != nil {
		return SignUpResult{}, err
	}
	if replacing {
		if err := s.users.ReplaceUnverified(ctx, user); err != nil {
			s.clearPending(ctx, domain.PurposeEmail, emailAddr)
			return SignUpResult{}, fmt.Errorf("replace unverified user: %w", err)
		}
	} else if err := s.users.Create(ctx, user); err != nil {
		s.clearPending(ctx, domain.PurposeEmail, emailAddr)
		if errors.Is(err, repository.ErrDuplicate) {
			return SignUpResult{}, ErrEmailTaken
		}
		return SignUpResult{}, fmt.Errorf("create user: %w", err)
	}
	return SignUpResult{Success: true, RequiresEmailVerification: true, Email: emailAddr}, nil
}

// VerifyEmail confirma el codigo de registro. Un codigo vencido borra el pendiente.
func (s *AuthService) VerifyEmail(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if err := s.checkPending(ctx, domain.PurposeEmail, emailAddr, code); err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.clearPending(ctx, domain.PurposeEmail, emailAddr)
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	verifiedAt := s.now()
	if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, fmt.Errorf("verify email: %w", err)
	}
	s.clearPending(ctx, domain.PurposeEmail, emailAddr)

	user.EmailVerifiedAt = &verifiedAt
	return user, nil
}

// ResendEmailVerification genera un codigo nuevo y extiende el vencimiento.
func (s *AuthService) ResendEmailVerification(ctx context.Context, emailAddr string) error {
	return s.resend(ctx, domain.PurposeEmail, normalizeEmail(emailAddr), s.emailCodeTTL)
}

// SignIn verifica credenciales; si la cuenta tiene MFA envia un codigo y no emite sesion.
func (s *AuthService) SignIn(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	if s.users == nil {
		return LoginResult{}, errors.New("auth service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !ComparePassword(user.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.EmailVerified() {
		return LoginResult{}, ErrEmailNotVerified
	}

	if user.MFAEnabled {
		if err := s.issueCode(ctx, domain.PurposeMFA, emailAddr, s.mfaCodeTTL); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Success:     true,
			RequiresMFA: true,
			Message:     "Verification code sent to " + emailAddr,
		}, nil
	}
	return s.completeLogin(user)
}

// VerifyMFA completa el login pendiente. Un codigo incorrecto deja el pendiente intacto.
func (s *AuthService) VerifyMFA(ctx context.Context, emailAddr, code string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if err := s.checkPending(ctx, domain.PurposeMFA, emailAddr, code); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.clearPending(ctx, domain.PurposeMFA, emailAddr)
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, err
	}
	s.clearPending(ctx, domain.PurposeMFA, emailAddr)
	return s.completeLogin(user)
}

func (s *AuthService) ResendMFA(ctx context.Context, emailAddr string) error {
	return s.resend(ctx, domain.PurposeMFA, normalizeEmail(emailAddr), s.mfaCodeTTL)
}

// OAuthLogin acepta provider+subject declarados por el cliente. Esta apagado salvo
// WithTrustedOAuthIdentity, y solo crea cuentas nuevas: un email ya registrado se rechaza.
func (s *AuthService) OAuthLogin(ctx context.Context, input OAuthInput) (LoginResult, error) {
	if !s.trustOAuth {
		return LoginResult{}, ErrOAuthInvalid
	}
	if _, ok := s.oauth[strings.ToLower(strings.TrimSpace(input.Provider))]; ok {
		return LoginResult{}, ErrOAuthInvalid
	}
	user, err := s.upsertOAuthUser(ctx, input, false)
	if err != nil {
		return LoginResult{}, err
	}
	return s.completeLogin(user)
}

// OAuthCredentialLogin valida un id_token o un authorization code contra el
// proveedor registrado y continua como OAuthLogin con la identidad verificada.
func (s *AuthService) OAuthCredentialLogin(ctx context.Context, providerName, idToken, code string) (LoginResult, error) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	provider, ok := s.oauth[name]
	if !ok {
		return LoginResult{}, ErrOAuthInvalid
	}

	var (
		identity OAuthIdentity
		err      error
	)
	switch {
	case idToken != "":
		identity, err = provider.VerifyIDToken(ctx, idToken)
	case code != "":
		identity, err = provider.ExchangeCode(ctx, code)
	default:
		return LoginResult{}, ErrOAuthInvalid
	}
	if err != nil {
		s.logger.Warn("oauth credential rejected", zap.String("provider", name), zap.Error(err))
		return LoginResult{}, fmt.Errorf("%w: %v", ErrOAuthInvalid, err)
	}

	// un email sin verificar por el proveedor no sirve para vincular cuentas
	if !identity.EmailVerified {
		identity.Email = ""
	}
	user, err := s.upsertOAuthUser(ctx, OAuthInput{
		Provider: name,
		Subject:  identity.Subject,
		Email:    identity.Email,
		FullName: identity.FullName,
	}, true)
	if err != nil {
		return LoginResult{}, err
	}
	return s.completeLogin(user)
}

func (s *AuthService) Refresh(refreshToken string) (TokenPair, error) {
	if s.tokens == nil {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.tokens.RefreshPair(refreshToken)
}

func (s *AuthService) Logout(refreshToken string) error {
	if s.tokens == nil {
		return ErrJWTInvalid
	}
	return s.tokens.RevokeRefresh(refreshToken)
}

// CurrentUser devuelve la sesion vigente. Para padres relee la cuenta, asi un
// usuario borrado deja de ser valido aunque su token no haya vencido.
func (s *AuthService) CurrentUser(ctx context.Context, claims Claims) (domain.SessionUser, error) {
	if claims.Role != domain.RoleParent {
		return claims.SessionUser(), nil
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionUser{}, ErrUserNotFound
	}
	if err != nil {
		return domain.SessionUser{}, err
	}
	return user.SessionUser(), nil
}

// completeLogin es el unico camino que emite tokens para un padre.
func (s *AuthService) completeLogin(user domain.User) (LoginResult, error) {
	if s.tokens == nil {
		return LoginResult{}, errors.New("jwt not configured")
	}
	session := user.SessionUser()
	pair, err := s.tokens.GeneratePair(session)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return LoginResult{Success: true, User: &session, Tokens: &pair}, nil
}

// upsertOAuthUser busca por provider+subject. linkByEmail solo va en true cuando el
// proveedor firmo el email como verificado.
func (s *AuthService) upsertOAuthUser(ctx context.Context, input OAuthInput, linkByEmail bool) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("auth service not configured")
	}

	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	subject := strings.TrimSpace(input.Subject)
	emailAddr := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)

	if provider == "" || subject == "" {
		return domain.User{}, ErrOAuthInvalid
	}

	user, err := s.users.GetByAuth(ctx, provider, subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	verifiedAt := s.now()
	if emailAddr != "" {
		existing, err := s.users.GetByEmail(ctx, emailAddr)
		if err == nil && !linkByEmail {
			return domain.User{}, ErrOAuthInvalid
		}
		if err == nil {
			if err := s.users.LinkOAuth(ctx, existing.ID, provider, subject); err != nil {
				return domain.User{}, err
			}
			if !existing.EmailVerified() {
				if err := s.users.VerifyEmail(ctx, existing.ID, verifiedAt); err != nil {
					return domain.User{}, err
				}
				existing.EmailVerifiedAt = &verifiedAt
			}
			existing.AuthProvider = provider
			existing.AuthSubject = subject
			if fullName != "" && existing.FullName == "" {
				existing.FullName = fullName
			}
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
	}

	if emailAddr == "" {
		return domain.User{}, ErrOAuthInvalid
	}
	user = domain.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        emailAddr,
		AuthProvider: provider,
		AuthSubject:  subject,
		CreatedAt:    verifiedAt,
	}
	if linkByEmail {
		user.EmailVerifiedAt = &verifiedAt
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// checkPending valida el codigo contra el registro pendiente: primero existencia,
// luego vencimiento (que borra el registro) y por ultimo el valor. Tras maxCodeAttempts
// codigos incorrectos el registro se borra y hay que pedir uno nuevo.
func (s *AuthService) checkPending(ctx context.Context, purpose domain.VerificationPurpose, emailAddr, code string) error {
	notFound, expired := ErrNoPendingVerification, ErrCodeExpired
	if purpose == domain.PurposeMFA {
		notFound, expired = ErrNoPendingMFA, ErrMFAExpired
	}
	if emailAddr == "" {
		return notFound
	}

	pending, err := s.pending.Get(ctx, purpose, emailAddr)
	if err != nil {
		if errors.Is(err, errPendingNotFound) {
			return notFound
		}
		return fmt.Errorf("load pending %s verification: %w", purpose, err)
	}
	if pending.Expired(s.now()) {
		s.clearPending(ctx, purpose, emailAddr)
		return expired
	}
	code = strings.TrimSpace(code)
	if !isValidCode(code) || !verifyCode(code, pending.CodeHash) {
		pending.Attempts++
		if pending.Attempts >= maxCodeAttempts {
			s.clearPending(ctx, purpose, emailAddr)
			return ErrCodeAttemptsExceeded
		}
		if err := s.pending.Save(ctx, pending); err != nil {
			return fmt.Errorf("save pending %s verification: %w", purpose, err)
		}
		return ErrCodeInvalid
	}
	return nil
}

func (s *AuthService) resend(ctx context.Context, purpose domain.VerificationPurpose, emailAddr string, ttl time.Duration) error {
	if emailAddr == "" {
		return ErrNoPendingResend
	}
	if _, err := s.pending.Get(ctx, purpose, emailAddr); err != nil {
		if errors.Is(err, errPendingNotFound) {
			return ErrNoPendingResend
		}
		return fmt.Errorf("load pending %s verification: %w", purpose, err)
	}
	return s.issueCode(ctx, purpose, emailAddr, ttl)
}

// issueCode reemplaza el pendiente de (purpose, email) con un codigo nuevo y lo envia.
func (s *AuthService) issueCode(ctx context.Context, purpose domain.VerificationPurpose, emailAddr string, ttl time.Duration) error {
	if s.otpLimiter != nil && !s.otpLimiter.Allow(rateLimitKey(string(purpose), emailAddr)) {
		return ErrRateLimited
	}

	code, err := GenerateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := hashCode(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	now := s.now()
	pending := domain.PendingVerification{
		Purpose:   purpose,
		Email:     emailAddr,
		CodeHash:  hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.pending.Save(ctx, pending); err != nil {
		return fmt.Errorf("save pending %s verification: %w", purpose, err)
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationCode(ctx, emailAddr, purpose, code, pending.ExpiresAt); err != nil {
		s.logger.Warn("send verification code failed",
			zap.Error(err),
			zap.String("email", emailAddr),
			zap.String("purpose", string(purpose)),
		)
		return ErrEmailSendFailure
	}
	return nil
}

func (s *AuthService) clearPending(ctx context.Context, purpose domain.VerificationPurpose, emailAddr string) {
	if err := s.pending.Delete(ctx, purpose, emailAddr); err != nil {
		s.logger.Warn("clear pending verification failed",
			zap.Error(err),
			zap.String("email", emailAddr),
			zap.String("purpose", string(purpose)),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

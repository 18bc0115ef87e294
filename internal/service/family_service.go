package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/repository"
)

const (
	defaultWeeklyLimit    = 50.0
	defaultDailyLimit     = 10.0
	childUsernameDomain   = "@hapo.com"
	maxUsernameAttempts   = 50
	temporaryPasswordSize = 12
	recentActivityLimit   = 20
)

const (
	PeriodAll    = "all"
	PeriodWeek   = "week"
	PeriodMonth  = "month"
	PeriodCustom = "custom"
)

var recurringFrequencies = map[string]bool{
	"daily":   true,
	"weekly":  true,
	"monthly": true,
}

// FamilyService agrupa las operaciones del panel del padre sobre sus hijos y el saldo familiar.
type FamilyService struct {
	logger    *zap.Logger
	users     repository.UserRepository
	children  repository.ChildRepository
	ledger    repository.LedgerRepository
	requests  repository.RequestRepository
	recurring repository.RecurringPaymentRepository
	now       func() time.Time
}

func NewFamilyService(
	logger *zap.Logger,
	users repository.UserRepository,
	children repository.ChildRepository,
	ledger repository.LedgerRepository,
	requests repository.RequestRepository,
	recurring repository.RecurringPaymentRepository,
) *FamilyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{
		logger:    logger,
		users:     users,
		children:  children,
		ledger:    ledger,
		requests:  requests,
		recurring: recurring,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type AddChildInput struct {
	FirstName   string
	LastName    string
	Username    string
	Password    string
	WeeklyLimit *float64
	DailyLimit  *float64
}

// AddChildResult lleva la contraseña temporal solo cuando fue generada por el servidor.
type AddChildResult struct {
	Child             domain.Child `json:"child"`
	TemporaryPassword string       `json:"temporary_password,omitempty"`
}

type TransferInput struct {
	ChildID string
	Amount  float64
	Type    string
}

type PaymentInput struct {
	Merchant    string
	Amount      float64
	Description string
}

type ActivityFilter struct {
	Period string
	From   *time.Time
	To     *time.Time
}

type RecurringPaymentInput struct {
	ChildID     string
	Amount      float64
	Frequency   string
	Description string
	StartAt     *time.Time
}

type ParentDashboard struct {
	FamilyBalance  float64              `json:"family_balance"`
	Children       []domain.Child       `json:"children"`
	RecentActivity []domain.Transaction `json:"recent_activity"`
}

func (s *FamilyService) AddChild(ctx context.Context, parentID string, in AddChildInput) (AddChildResult, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)

	verr := &ValidationError{}
	if firstName == "" {
		verr.add("first_name", "First name is required")
	}
	if lastName == "" {
		verr.add("last_name", "Last name is required")
	}
	weekly := limitOrDefault(in.WeeklyLimit, defaultWeeklyLimit)
	daily := limitOrDefault(in.DailyLimit, defaultDailyLimit)
	if weekly < 0 {
		verr.add("weekly_limit", "Weekly limit cannot be negative")
	}
	if daily < 0 {
		verr.add("daily_limit", "Daily limit cannot be negative")
	}
	if err := verr.orNil(); err != nil {
		return AddChildResult{}, err
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	generatedUsername := username == ""
	base := strings.ToLower(strings.Join(strings.Fields(firstName), ""))
	if generatedUsername {
		username = base + childUsernameDomain
	}

	var result AddChildResult
	password := in.Password
	if password == "" {
		generated, err := generateTemporaryPassword(temporaryPasswordSize)
		if err != nil {
			return AddChildResult{}, fmt.Errorf("generate password: %w", err)
		}
		password = generated
		result.TemporaryPassword = generated
	}
	hash, err := HashPassword(password)
	if err != nil {
		return AddChildResult{}, fmt.Errorf("hash password: %w", err)
	}

	child := domain.Child{
		ID:           uuid.NewString(),
		ParentID:     parentID,
		FirstName:    firstName,
		LastName:     lastName,
		Username:     username,
		PasswordHash: hash,
		WeeklyLimit:  roundCents(weekly),
		DailyLimit:   roundCents(daily),
		Active:       true,
		CreatedAt:    s.now(),
	}
	// Un username generado que ya existe se reintenta como <nombre>2@hapo.com, <nombre>3@hapo.com...
	for attempt := 2; ; attempt++ {
		err := s.children.Create(ctx, child)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return AddChildResult{}, fmt.Errorf("create child: %w", err)
		}
		if !generatedUsername || attempt > maxUsernameAttempts {
			return AddChildResult{}, ErrUsernameTaken
		}
		child.Username = fmt.Sprintf("%s%d%s", base, attempt, childUsernameDomain)
	}

	s.logger.Info("child added", zap.String("parent_id", parentID), zap.String("child_id", child.ID))
	result.Child = child
	return result, nil
}

func (s *FamilyService) ListChildren(ctx context.Context, parentID string) ([]domain.Child, error) {
	children, err := s.children.ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []domain.Child{}
	}
	return children, nil
}

// GetChild devuelve el hijo solo si pertenece al padre.
func (s *FamilyService) GetChild(ctx context.Context, parentID, childID string) (domain.Child, error) {
	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, ErrChildNotFound
		}
		return domain.Child{}, err
	}
	if child.ParentID != parentID {
		return domain.Child{}, ErrChildNotFound
	}
	return child, nil
}

func (s *FamilyService) UpdateSpendingLimits(ctx context.Context, parentID, childID string, daily, weekly *float64) (domain.Child, error) {
	verr := &ValidationError{}
	if daily == nil && weekly == nil {
		verr.add("limits", "Provide a daily or weekly limit")
	}
	if daily != nil && *daily < 0 {
		verr.add("daily_limit", "Daily limit cannot be negative")
	}
	if weekly != nil && *weekly < 0 {
		verr.add("weekly_limit", "Weekly limit cannot be negative")
	}
	if err := verr.orNil(); err != nil {
		return domain.Child{}, err
	}

	child, err := s.GetChild(ctx, parentID, childID)
	if err != nil {
		return domain.Child{}, err
	}
	if daily != nil {
		child.DailyLimit = roundCents(*daily)
	}
	if weekly != nil {
		child.WeeklyLimit = roundCents(*weekly)
	}
	if err := s.children.UpdateLimits(ctx, child.ID, child.DailyLimit, child.WeeklyLimit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, ErrChildNotFound
		}
		return domain.Child{}, err
	}
	return child, nil
}

// Transfer mueve dinero del saldo familiar al hijo. El saldo familiar no se valida.
func (s *FamilyService) Transfer(ctx context.Context, parentID string, in TransferInput) (domain.Transaction, error) {
	amount := roundCents(in.Amount)
	if amount <= 0 {
		return domain.Transaction{}, ErrInvalidAmount
	}
	kind := strings.ToLower(strings.TrimSpace(in.Type))
	if kind == "" {
		kind = domain.TransactionTransfer
	}

	child, err := s.GetChild(ctx, parentID, in.ChildID)
	if err != nil {
		return domain.Transaction{}, err
	}

	var parentTitle, childTitle string
	switch kind {
	case domain.TransactionTransfer:
		parentTitle, childTitle = "Sent to "+child.FirstName, "Received from parent"
	case domain.TransactionEmergency:
		parentTitle, childTitle = "Emergency fund for "+child.FirstName, "Emergency fund"
	case domain.TransactionWallet:
		parentTitle, childTitle = "Wallet top-up for "+child.FirstName, "Wallet top-up"
	default:
		verr := &ValidationError{}
		verr.add("type", "Unknown transfer type")
		return domain.Transaction{}, verr
	}

	now := s.now()
	parentEntry := domain.Transaction{
		ID:        uuid.NewString(),
		OwnerType: domain.OwnerParent,
		OwnerID:   parentID,
		ChildID:   child.ID,
		Type:      kind,
		Category:  "transfer",
		Title:     parentTitle,
		Amount:    -amount,
		CreatedAt: now,
	}
	childEntry := domain.Transaction{
		ID:        uuid.NewString(),
		OwnerType: domain.OwnerChild,
		OwnerID:   child.ID,
		ChildID:   child.ID,
		Type:      kind,
		Category:  "transfer",
		Title:     childTitle,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := s.ledger.Transfer(ctx, parentID, child.ID, amount, parentEntry, childEntry); err != nil {
		return domain.Transaction{}, fmt.Errorf("transfer: %w", err)
	}

	s.logger.Info("transfer recorded",
		zap.String("parent_id", parentID),
		zap.String("child_id", child.ID),
		zap.String("type", kind),
		zap.Float64("amount", amount),
	)
	return parentEntry, nil
}

// PayQR registra un pago QR del padre contra el saldo familiar.
func (s *FamilyService) PayQR(ctx context.Context, parentID string, in PaymentInput) (domain.Transaction, error) {
	amount := roundCents(in.Amount)
	if amount <= 0 {
		return domain.Transaction{}, ErrInvalidAmount
	}
	entry := domain.Transaction{
		ID:        uuid.NewString(),
		OwnerType: domain.OwnerParent,
		OwnerID:   parentID,
		Type:      domain.TransactionPayment,
		Category:  "qr",
		Title:     paymentTitle(in),
		Amount:    -amount,
		CreatedAt: s.now(),
	}
	if err := s.ledger.ParentPayment(ctx, parentID, amount, entry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, ErrUserNotFound
		}
		return domain.Transaction{}, fmt.Errorf("parent payment: %w", err)
	}
	return entry, nil
}

func (s *FamilyService) Dashboard(ctx context.Context, parentID string) (ParentDashboard, error) {
	user, err := s.users.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ParentDashboard{}, ErrUserNotFound
		}
		return ParentDashboard{}, err
	}
	children, err := s.ListChildren(ctx, parentID)
	if err != nil {
		return ParentDashboard{}, err
	}
	recent, err := s.ledger.List(ctx, repository.TransactionFilter{
		OwnerType: domain.OwnerParent,
		OwnerID:   parentID,
		Limit:     recentActivityLimit,
	})
	if err != nil {
		return ParentDashboard{}, err
	}
	if recent == nil {
		recent = []domain.Transaction{}
	}
	return ParentDashboard{
		FamilyBalance:  user.FamilyBalance,
		Children:       children,
		RecentActivity: recent,
	}, nil
}

// Activity filtra el historial del padre por periodo; custom exige from y to.
func (s *FamilyService) Activity(ctx context.Context, parentID string, filter ActivityFilter) ([]domain.Transaction, error) {
	query := repository.TransactionFilter{OwnerType: domain.OwnerParent, OwnerID: parentID}
	now := s.now()

	switch strings.ToLower(strings.TrimSpace(filter.Period)) {
	case "", PeriodAll:
	case PeriodWeek:
		from := now.AddDate(0, 0, -7)
		query.From = &from
	case PeriodMonth:
		from := now.AddDate(0, -1, 0)
		query.From = &from
	case PeriodCustom:
		verr := &ValidationError{}
		if filter.From == nil || filter.To == nil {
			verr.add("period", "Custom range requires from and to dates")
		} else if filter.To.Before(*filter.From) {
			verr.add("period", "End date must be after start date")
		}
		if err := verr.orNil(); err != nil {
			return nil, err
		}
		// to es inclusivo: se incluye el dia completo.
		to := filter.To.Add(24 * time.Hour)
		query.From, query.To = filter.From, &to
	default:
		verr := &ValidationError{}
		verr.add("period", "Unknown period")
		return nil, verr
	}

	out, err := s.ledger.List(ctx, query)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Transaction{}
	}
	return out, nil
}

func (s *FamilyService) CreateRecurringPayment(ctx context.Context, parentID string, in RecurringPaymentInput) (domain.RecurringPayment, error) {
	amount := roundCents(in.Amount)
	if amount <= 0 {
		return domain.RecurringPayment{}, ErrInvalidAmount
	}
	frequency := strings.ToLower(strings.TrimSpace(in.Frequency))
	if !recurringFrequencies[frequency] {
		verr := &ValidationError{}
		verr.add("frequency", "Frequency must be daily, weekly or monthly")
		return domain.RecurringPayment{}, verr
	}
	child, err := s.GetChild(ctx, parentID, in.ChildID)
	if err != nil {
		return domain.RecurringPayment{}, err
	}

	now := s.now()
	nextRun := now
	if in.StartAt != nil && in.StartAt.After(now) {
		nextRun = in.StartAt.UTC()
	}
	payment := domain.RecurringPayment{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		ChildID:     child.ID,
		Amount:      amount,
		Frequency:   frequency,
		Description: strings.TrimSpace(in.Description),
		NextRunAt:   nextRun,
		Active:      true,
		CreatedAt:   now,
	}
	if err := s.recurring.Create(ctx, payment); err != nil {
		return domain.RecurringPayment{}, fmt.Errorf("create recurring payment: %w", err)
	}
	return payment, nil
}

func (s *FamilyService) ListRecurringPayments(ctx context.Context, parentID string) ([]domain.RecurringPayment, error) {
	out, err := s.recurring.ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.RecurringPayment{}
	}
	return out, nil
}

func (s *FamilyService) ListRequests(ctx context.Context, parentID string) ([]domain.StudentRequest, error) {
	out, err := s.requests.ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.StudentRequest{}
	}
	return out, nil
}

// AwardPoints suma puntos de recompensa a un hijo y devuelve el total nuevo.
func (s *FamilyService) AwardPoints(ctx context.Context, parentID, childID string, points int) (int, error) {
	if points <= 0 {
		verr := &ValidationError{}
		verr.add("points", "Points must be greater than zero")
		return 0, verr
	}
	child, err := s.GetChild(ctx, parentID, childID)
	if err != nil {
		return 0, err
	}
	total, err := s.children.AddRewardPoints(ctx, child.ID, points)
	if err != nil {
		return 0, fmt.Errorf("award points: %w", err)
	}
	return total, nil
}

func paymentTitle(in PaymentInput) string {
	merchant := strings.TrimSpace(in.Merchant)
	if merchant == "" {
		merchant = "QR merchant"
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		return merchant + " - " + desc
	}
	return merchant
}

func limitOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

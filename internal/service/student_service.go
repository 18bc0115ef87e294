package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/repository"
)

const weeklyWindow = 7 * 24 * time.Hour

type Reward struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Cost  int    `json:"cost"`
}

var rewardCatalog = []Reward{
	{ID: "allowance", Title: "Extra allowance", Cost: 500},
	{ID: "curfew", Title: "Later curfew", Cost: 750},
}

func findReward(id string) (Reward, bool) {
	for _, r := range rewardCatalog {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

// StudentService atiende el panel del estudiante.
type StudentService struct {
	logger        *zap.Logger
	children      repository.ChildRepository
	ledger        repository.LedgerRepository
	requests      repository.RequestRepository
	tokens        *JWTService
	enforceLimits bool
	now           func() time.Time
}

func NewStudentService(
	logger *zap.Logger,
	children repository.ChildRepository,
	ledger repository.LedgerRepository,
	requests repository.RequestRepository,
	tokens *JWTService,
	enforceLimits bool,
) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		logger:        logger,
		children:      children,
		ledger:        ledger,
		requests:      requests,
		tokens:        tokens,
		enforceLimits: enforceLimits,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type RewardSummary struct {
	TotalPoints int      `json:"total_points"`
	Catalog     []Reward `json:"catalog"`
}

type StudentDashboard struct {
	Profile      domain.Child         `json:"profile"`
	Balance      float64              `json:"balance"`
	WeeklyLimit  float64              `json:"weekly_limit"`
	DailyLimit   float64              `json:"daily_limit"`
	WeeklySpent  float64              `json:"weekly_spent"`
	Transactions []domain.Transaction `json:"transactions"`
	Rewards      RewardSummary        `json:"rewards"`
}

type RequestInput struct {
	Type   string
	Amount float64
	Reason string
}

type StudentPaymentResult struct {
	Transaction domain.Transaction `json:"transaction"`
	Balance     float64            `json:"balance"`
}

type RedeemResult struct {
	Reward          Reward                `json:"reward"`
	RemainingPoints int                   `json:"remaining_points"`
	Request         domain.StudentRequest `json:"request"`
}

// Login autentica al estudiante por username o <nombre>@hapo.com y emite un par con rol student.
func (s *StudentService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	login := strings.ToLower(strings.TrimSpace(username))
	if login == "" {
		return LoginResult{}, ErrStudentNotFound
	}
	child, err := s.children.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrStudentNotFound
		}
		return LoginResult{}, err
	}
	if !child.Active {
		return LoginResult{}, ErrStudentNotFound
	}
	if !ComparePassword(child.PasswordHash, password) {
		return LoginResult{}, ErrInvalidPassword
	}
	if s.tokens == nil {
		return LoginResult{}, errors.New("jwt not configured")
	}

	session := child.SessionUser()
	pair, err := s.tokens.GeneratePair(session)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return LoginResult{Success: true, User: &session, Tokens: &pair}, nil
}

func (s *StudentService) Dashboard(ctx context.Context, childID string) (StudentDashboard, error) {
	child, err := s.child(ctx, childID)
	if err != nil {
		return StudentDashboard{}, err
	}
	spent, err := s.ledger.SumSpent(ctx, child.ID, s.now().Add(-weeklyWindow))
	if err != nil {
		return StudentDashboard{}, err
	}
	txs, err := s.ledger.List(ctx, repository.TransactionFilter{
		OwnerType: domain.OwnerChild,
		OwnerID:   child.ID,
	})
	if err != nil {
		return StudentDashboard{}, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return StudentDashboard{
		Profile:      child,
		Balance:      child.Balance,
		WeeklyLimit:  child.WeeklyLimit,
		DailyLimit:   child.DailyLimit,
		WeeklySpent:  roundCents(spent),
		Transactions: txs,
		Rewards: RewardSummary{
			TotalPoints: child.RewardPoints,
			Catalog:     rewardCatalog,
		},
	}, nil
}

// SubmitRequest registra un pedido de dinero o de emergencia para el padre.
func (s *StudentService) SubmitRequest(ctx context.Context, childID string, in RequestInput) (domain.StudentRequest, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Type))
	if kind == "" {
		kind = domain.RequestMoney
	}
	if kind != domain.RequestMoney && kind != domain.RequestEmergency {
		verr := &ValidationError{}
		verr.add("type", "Request type must be money or emergency")
		return domain.StudentRequest{}, verr
	}
	amount := roundCents(in.Amount)
	if amount <= 0 {
		return domain.StudentRequest{}, ErrInvalidAmount
	}
	child, err := s.child(ctx, childID)
	if err != nil {
		return domain.StudentRequest{}, err
	}
	return s.fileRequest(ctx, child, kind, amount, strings.TrimSpace(in.Reason))
}

// PayQR descuenta del saldo del estudiante. Los limites solo se aplican si enforceLimits.
func (s *StudentService) PayQR(ctx context.Context, childID string, in PaymentInput) (StudentPaymentResult, error) {
	amount := roundCents(in.Amount)
	if amount <= 0 {
		return StudentPaymentResult{}, ErrInvalidAmount
	}
	child, err := s.child(ctx, childID)
	if err != nil {
		return StudentPaymentResult{}, err
	}
	if child.Balance < amount {
		return StudentPaymentResult{}, ErrInsufficientBalance
	}
	if s.enforceLimits {
		if err := s.checkLimits(ctx, child, amount); err != nil {
			return StudentPaymentResult{}, err
		}
	}

	entry := domain.Transaction{
		ID:        uuid.NewString(),
		OwnerType: domain.OwnerChild,
		OwnerID:   child.ID,
		ChildID:   child.ID,
		Type:      domain.TransactionPayment,
		Category:  "qr",
		Title:     paymentTitle(in),
		Amount:    -amount,
		CreatedAt: s.now(),
	}
	balance, err := s.ledger.ChildPayment(ctx, child.ID, amount, entry)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return StudentPaymentResult{}, ErrInsufficientBalance
		}
		return StudentPaymentResult{}, fmt.Errorf("child payment: %w", err)
	}
	return StudentPaymentResult{Transaction: entry, Balance: balance}, nil
}

// RedeemReward descuenta los puntos y deja un pedido de tipo reward para el padre,
// ambos en la misma transaccion.
func (s *StudentService) RedeemReward(ctx context.Context, childID, rewardID string) (RedeemResult, error) {
	reward, ok := findReward(strings.ToLower(strings.TrimSpace(rewardID)))
	if !ok {
		return RedeemResult{}, ErrUnknownReward
	}
	child, err := s.child(ctx, childID)
	if err != nil {
		return RedeemResult{}, err
	}
	if child.RewardPoints < reward.Cost {
		return RedeemResult{}, ErrInsufficientPoints
	}

	req := s.newRequest(child, domain.RequestReward, 0, reward.Title)
	remaining, err := s.ledger.RedeemPoints(ctx, child.ID, reward.Cost, req)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return RedeemResult{}, ErrInsufficientPoints
		}
		return RedeemResult{}, fmt.Errorf("redeem points: %w", err)
	}
	s.logger.Info("reward redeemed",
		zap.String("student_id", child.ID),
		zap.String("reward", reward.ID),
		zap.Int("remaining_points", remaining),
	)
	return RedeemResult{Reward: reward, RemainingPoints: remaining, Request: req}, nil
}

func (s *StudentService) checkLimits(ctx context.Context, child domain.Child, amount float64) error {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	daily, err := s.ledger.SumSpent(ctx, child.ID, dayStart)
	if err != nil {
		return err
	}
	if daily+amount > child.DailyLimit {
		return ErrSpendingLimit
	}
	weekly, err := s.ledger.SumSpent(ctx, child.ID, now.Add(-weeklyWindow))
	if err != nil {
		return err
	}
	if weekly+amount > child.WeeklyLimit {
		return ErrSpendingLimit
	}
	return nil
}

func (s *StudentService) newRequest(child domain.Child, kind string, amount float64, reason string) domain.StudentRequest {
	return domain.StudentRequest{
		ID:          uuid.NewString(),
		StudentID:   child.ID,
		ParentID:    child.ParentID,
		StudentName: child.FullName(),
		Type:        kind,
		Amount:      amount,
		Reason:      reason,
		Status:      domain.RequestStatusPending,
		CreatedAt:   s.now(),
	}
}

func (s *StudentService) fileRequest(ctx context.Context, child domain.Child, kind string, amount float64, reason string) (domain.StudentRequest, error) {
	req := s.newRequest(child, kind, amount, reason)
	if err := s.requests.Create(ctx, req); err != nil {
		return domain.StudentRequest{}, fmt.Errorf("create request: %w", err)
	}
	s.logger.Info("student request filed",
		zap.String("student_id", child.ID),
		zap.String("type", kind),
	)
	return req, nil
}

func (s *StudentService) child(ctx context.Context, childID string) (domain.Child, error) {
	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Child{}, ErrStudentNotFound
		}
		return domain.Child{}, err
	}
	if !child.Active {
		return domain.Child{}, ErrStudentNotFound
	}
	return child, nil
}

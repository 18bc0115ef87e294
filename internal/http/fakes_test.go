package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/repository"
	"hapo/internal/service"
)

// memStore implementa todos los repositorios en memoria para tests de handlers.
type memStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	children  map[string]domain.Child
	txs       []domain.Transaction
	requests  []domain.StudentRequest
	recurring []domain.RecurringPayment
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]domain.User),
		children: make(map[string]domain.Child),
	}
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if user.Email != "" && u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.s.users[user.ID] = user
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r memUsers) GetByAuth(_ context.Context, provider, subject string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.AuthProvider == provider && u.AuthSubject == subject {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r memUsers) ReplaceUnverified(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok || existing.EmailVerified() {
		return pgx.ErrNoRows
	}
	r.s.users[user.ID] = user
	return nil
}

func (r memUsers) VerifyEmail(_ context.Context, id string, verifiedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.EmailVerifiedAt = &verifiedAt
	r.s.users[id] = u
	return nil
}

func (r memUsers) LinkOAuth(_ context.Context, id, provider, subject string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.AuthProvider, u.AuthSubject = provider, subject
	r.s.users[id] = u
	return nil
}

type memChildren struct{ s *memStore }

func (r memChildren) Create(_ context.Context, child domain.Child) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.children {
		if strings.EqualFold(c.Username, child.Username) {
			return repository.ErrDuplicate
		}
	}
	r.s.children[child.ID] = child
	return nil
}

func (r memChildren) GetByID(_ context.Context, id string) (domain.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok {
		return domain.Child{}, pgx.ErrNoRows
	}
	return c, nil
}

func (r memChildren) GetByLogin(_ context.Context, login string) (domain.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.children {
		if c.Active && strings.EqualFold(c.Username, login) {
			return c, nil
		}
	}
	for _, c := range r.s.children {
		if c.Active && strings.EqualFold(c.FirstName+"@hapo.com", login) {
			return c, nil
		}
	}
	return domain.Child{}, pgx.ErrNoRows
}

func (r memChildren) ListByParent(_ context.Context, parentID string) ([]domain.Child, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Child
	for _, c := range r.s.children {
		if c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memChildren) UpdateLimits(_ context.Context, id string, daily, weekly float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.DailyLimit, c.WeeklyLimit = daily, weekly
	r.s.children[id] = c
	return nil
}

func (r memChildren) AddRewardPoints(_ context.Context, id string, delta int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[id]
	if !ok || c.RewardPoints+delta < 0 {
		return 0, repository.ErrInsufficientFunds
	}
	c.RewardPoints += delta
	r.s.children[id] = c
	return c.RewardPoints, nil
}

type memLedger struct{ s *memStore }

func (r memLedger) Transfer(_ context.Context, parentID, childID string, amount float64, parentEntry, childEntry domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[parentID]
	c, okChild := r.s.children[childID]
	if !ok || !okChild {
		return pgx.ErrNoRows
	}
	u.FamilyBalance -= amount
	c.Balance += amount
	r.s.users[parentID], r.s.children[childID] = u, c
	r.s.txs = append(r.s.txs, parentEntry, childEntry)
	return nil
}

func (r memLedger) ParentPayment(_ context.Context, parentID string, amount float64, entry domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[parentID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.FamilyBalance -= amount
	r.s.users[parentID] = u
	r.s.txs = append(r.s.txs, entry)
	return nil
}

func (r memLedger) ChildPayment(_ context.Context, childID string, amount float64, entry domain.Transaction) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok || c.Balance < amount {
		return 0, repository.ErrInsufficientFunds
	}
	c.Balance -= amount
	r.s.children[childID] = c
	r.s.txs = append(r.s.txs, entry)
	return c.Balance, nil
}

func (r memLedger) RedeemPoints(_ context.Context, childID string, cost int, req domain.StudentRequest) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.children[childID]
	if !ok || c.RewardPoints < cost {
		return 0, repository.ErrInsufficientFunds
	}
	c.RewardPoints -= cost
	r.s.children[childID] = c
	r.s.requests = append(r.s.requests, req)
	return c.RewardPoints, nil
}

func (r memLedger) List(_ context.Context, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Transaction
	for i := len(r.s.txs) - 1; i >= 0; i-- {
		t := r.s.txs[i]
		if t.OwnerType != filter.OwnerType || t.OwnerID != filter.OwnerID {
			continue
		}
		if filter.From != nil && t.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !t.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r memLedger) SumSpent(_ context.Context, childID string, since time.Time) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var spent float64
	for _, t := range r.s.txs {
		if t.OwnerType == domain.OwnerChild && t.OwnerID == childID && t.Amount < 0 && !t.CreatedAt.Before(since) {
			spent -= t.Amount
		}
	}
	return spent, nil
}

type memRequests struct{ s *memStore }

func (r memRequests) Create(_ context.Context, req domain.StudentRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.requests = append(r.s.requests, req)
	return nil
}

func (r memRequests) ListByParent(_ context.Context, parentID string) ([]domain.StudentRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StudentRequest
	for _, req := range r.s.requests {
		if req.ParentID == parentID {
			out = append(out, req)
		}
	}
	return out, nil
}

type memRecurring struct{ s *memStore }

func (r memRecurring) Create(_ context.Context, p domain.RecurringPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recurring = append(r.s.recurring, p)
	return nil
}

func (r memRecurring) ListByParent(_ context.Context, parentID string) ([]domain.RecurringPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.RecurringPayment
	for _, p := range r.s.recurring {
		if p.ParentID == parentID {
			out = append(out, p)
		}
	}
	return out, nil
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (s *captureSender) SendVerificationCode(_ context.Context, toEmail string, purpose domain.VerificationPurpose, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[string(purpose)+":"+toEmail] = code
	return s.err
}

func (s *captureSender) code(purpose domain.VerificationPurpose, email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[string(purpose)+":"+email]
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

type testServer struct {
	store  *memStore
	sender *captureSender
	jwt    *service.JWTService
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	sender := &captureSender{}
	jwtSvc := service.NewJWTService("secret", 15*time.Minute, time.Hour)
	logger := zap.NewNop()

	users := memUsers{store}
	children := memChildren{store}
	ledger := memLedger{store}
	requests := memRequests{store}

	authSvc := service.NewAuthService(logger, users, service.NewMemoryVerificationStore(), sender,
		service.NewOTPRateLimiter(10*time.Minute, 10), jwtSvc)
	familySvc := service.NewFamilyService(logger, users, children, ledger, requests, memRecurring{store})
	studentSvc := service.NewStudentService(logger, children, ledger, requests, jwtSvc, false)

	router := NewRouter(logger, jwtSvc,
		NewHealthHandler(logger, pingStub{}),
		NewAuthHandler(logger, authSvc),
		NewFamilyHandler(logger, familySvc),
		NewStudentHandler(logger, studentSvc),
	)
	return &testServer{store: store, sender: sender, jwt: jwtSvc, router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

// parentToken registra, verifica y completa MFA para a@b.com y devuelve el access token.
func (s *testServer) parentToken(t *testing.T) string {
	t.Helper()
	rec, _ := s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"terms":            true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(t, http.MethodPost, "/signup/verify-email", "", map[string]any{
		"email": "a@b.com",
		"code":  s.sender.code(domain.PurposeEmail, "a@b.com"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "a@b.com", "password": "Abcdef1!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, body := s.do(t, http.MethodPost, "/login/mfa", "", map[string]any{
		"email": "a@b.com",
		"code":  s.sender.code(domain.PurposeMFA, "a@b.com"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mfa: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return accessToken(t, body)
}

func accessToken(t *testing.T, body map[string]any) string {
	t.Helper()
	tokens, ok := body["tokens"].(map[string]any)
	if !ok {
		t.Fatalf("expected tokens in %v", body)
	}
	token, _ := tokens["access_token"].(string)
	if token == "" {
		t.Fatalf("expected access token in %v", body)
	}
	return token
}

package http

import (
	"errors"
	"net/http"
	"testing"

	"hapo/internal/domain"
)

func TestAuthHandler_SignUpValidation(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1?",
		"terms":            true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["success"] != false || body["error"] != "Passwords do not match" {
		t.Fatalf("unexpected body: %v", body)
	}
	fields, ok := body["errors"].(map[string]any)
	if !ok || fields["confirm_password"] != "Passwords do not match" {
		t.Fatalf("expected field errors, got %v", body["errors"])
	}
	if len(s.store.users) != 0 {
		t.Fatalf("expected no user persisted")
	}
}

func TestAuthHandler_SignUpResponse(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"terms":            true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true || body["requires_email_verification"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
	if code := s.sender.code(domain.PurposeEmail, "a@b.com"); len(code) != 6 {
		t.Fatalf("expected 6 digit code sent, got %q", code)
	}
}

func TestAuthHandler_LoginBeforeVerification(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"terms":            true,
	})

	rec, body := s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "a@b.com", "password": "Abcdef1!"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body["error"] != "Please verify your email address before signing in" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	if _, ok := body["tokens"]; ok {
		t.Fatalf("expected no tokens")
	}
}

func TestAuthHandler_VerifyEmailWrongCode(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"terms":            true,
	})
	wrong := "100000"
	if s.sender.code(domain.PurposeEmail, "a@b.com") == wrong {
		wrong = "100001"
	}

	rec, body := s.do(t, http.MethodPost, "/signup/verify-email", "", map[string]any{"email": "a@b.com", "code": wrong})
	if rec.Code != http.StatusBadRequest || body["error"] != "Invalid verification code" {
		t.Fatalf("expected invalid code, got %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodPost, "/signup/verify-email", "", map[string]any{"email": "x@b.com", "code": "123456"})
	if rec.Code != http.StatusNotFound || body["error"] != "No pending email verification" {
		t.Fatalf("expected no pending, got %d %v", rec.Code, body)
	}
}

func TestAuthHandler_FullLoginFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.parentToken(t)

	rec, body := s.do(t, http.MethodGet, "/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["email"] != "a@b.com" || user["role"] != domain.RoleParent {
		t.Fatalf("unexpected session user: %v", body["user"])
	}
}

func TestAuthHandler_LoginRequiresMFA(t *testing.T) {
	s := newTestServer(t)
	s.parentToken(t)

	rec, body := s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "a@b.com", "password": "Abcdef1!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["requires_mfa"] != true || body["message"] != "Verification code sent to a@b.com" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["tokens"]; ok {
		t.Fatalf("expected no tokens before mfa")
	}

	rec, body = s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "a@b.com", "password": "nope"})
	if rec.Code != http.StatusUnauthorized || body["error"] != "Invalid email or password" {
		t.Fatalf("expected invalid credentials, got %d %v", rec.Code, body)
	}
}

func TestAuthHandler_ResendWithoutPending(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/login/mfa/resend", "", map[string]any{"email": "a@b.com"})
	if rec.Code != http.StatusNotFound || body["error"] != "No pending verification found" {
		t.Fatalf("expected no pending, got %d %v", rec.Code, body)
	}
}

func TestAuthHandler_EmailUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.sender.err = errors.New("smtp down")

	rec, _ := s.do(t, http.MethodPost, "/signup", "", map[string]any{
		"full_name":        "A B",
		"email":            "a@b.com",
		"password":         "Abcdef1!",
		"confirm_password": "Abcdef1!",
		"terms":            true,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAuthHandler_RefreshAndLogout(t *testing.T) {
	s := newTestServer(t)
	s.parentToken(t)
	s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "a@b.com", "password": "Abcdef1!"})
	_, body := s.do(t, http.MethodPost, "/login/mfa", "", map[string]any{
		"email": "a@b.com",
		"code":  s.sender.code(domain.PurposeMFA, "a@b.com"),
	})
	refresh, _ := body["tokens"].(map[string]any)["refresh_token"].(string)

	rec, body := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rotated, _ := body["tokens"].(map[string]any)["refresh_token"].(string)

	rec, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]any{"refresh_token": refresh})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh rejected, got %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/auth/logout", "", map[string]any{"refresh_token": rotated})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]any{"refresh_token": rotated})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked refresh rejected, got %d", rec.Code)
	}
}

func TestAuthHandler_OAuthLogin(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/auth/oauth", "", map[string]any{
		"provider":  "google",
		"subject":   "sub-1",
		"email":     "o@b.com",
		"full_name": "O Auth",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected client supplied identity rejected, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(t, http.MethodPost, "/auth/oauth", "", map[string]any{"provider": "google"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// sin proveedor OIDC configurado un id_token no se puede validar
	rec, _ = s.do(t, http.MethodPost, "/auth/oauth", "", map[string]any{"provider": "google", "id_token": "eyJ.x.y"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unverifiable id_token, got %d", rec.Code)
	}
}

func TestAuthHandler_OAuthCannotClaimExistingParent(t *testing.T) {
	s := newTestServer(t)
	s.parentToken(t)

	rec, body := s.do(t, http.MethodPost, "/auth/oauth", "", map[string]any{
		"provider": "google",
		"subject":  "attacker",
		"email":    "a@b.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := body["tokens"]; ok {
		t.Fatalf("expected no tokens")
	}
	for _, u := range s.store.users {
		if u.AuthSubject == "attacker" {
			t.Fatalf("expected account left unlinked")
		}
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("expected ok, got %d %v", rec.Code, body)
	}
	rec, body = s.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || body["name"] != "Hapo" {
		t.Fatalf("unexpected landing: %d %v", rec.Code, body)
	}
}

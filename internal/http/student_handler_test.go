package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentSession(t *testing.T, s *testServer) (parentToken, studentToken, childID string) {
	t.Helper()
	parentToken = s.parentToken(t)
	childID, password := addChildViaAPI(t, s, parentToken)
	rec, body := s.do(t, http.MethodPost, "/student/login", "", map[string]any{"username": "EMMA@hapo.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return parentToken, accessToken(t, body), childID
}

func TestStudentHandler_LoginErrors(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/student/login", "", map[string]any{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Student account not found", body["error"])

	token := s.parentToken(t)
	addChildViaAPI(t, s, token)
	rec, body = s.do(t, http.MethodPost, "/student/login", "", map[string]any{"username": "emma@hapo.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", body["error"])
}

func TestStudentHandler_PayQR(t *testing.T) {
	s := newTestServer(t)
	parentToken, studentToken, childID := studentSession(t, s)

	rec, body := s.do(t, http.MethodPost, "/student/payments/qr", studentToken, map[string]any{"merchant": "Canteen", "amount": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Insufficient balance for this payment.", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/parent/transfers", parentToken, map[string]any{"child_id": childID, "amount": 10})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/student/payments/qr", studentToken, map[string]any{"merchant": "Canteen", "amount": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 7.0, body["balance"])

	rec, body = s.do(t, http.MethodGet, "/student/dashboard", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := body["dashboard"].(map[string]any)
	assert.Equal(t, 7.0, dash["balance"])
	assert.Equal(t, 3.0, dash["weekly_spent"])
	assert.NotContains(t, dash["profile"], "password_hash")
}

func TestStudentHandler_RequestsAndRewards(t *testing.T) {
	s := newTestServer(t)
	parentToken, studentToken, childID := studentSession(t, s)

	rec, _ := s.do(t, http.MethodPost, "/student/requests", studentToken, map[string]any{"type": "money", "amount": 15, "reason": "books"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, body := s.do(t, http.MethodPost, "/student/rewards/redeem", studentToken, map[string]any{"reward": "allowance"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Not enough points to redeem this reward", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/parent/children/"+childID+"/points", parentToken, map[string]any{"points": 500})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/student/rewards/redeem", studentToken, map[string]any{"reward": "allowance"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.0, body["redemption"].(map[string]any)["remaining_points"])

	rec, body = s.do(t, http.MethodGet, "/parent/requests", parentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["requests"].([]any), 2)

	rec, _ = s.do(t, http.MethodGet, "/student/dashboard", parentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

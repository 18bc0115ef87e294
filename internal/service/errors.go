package service

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("please verify your email address before signing in")
	ErrNoPendingVerification = errors.New("no pending email verification")
	ErrNoPendingResend       = errors.New("no pending verification found")
	ErrNoPendingMFA          = errors.New("no pending mfa verification")
	ErrCodeExpired           = errors.New("verification code has expired")
	ErrMFAExpired            = errors.New("mfa code has expired")
	ErrCodeInvalid           = errors.New("invalid verification code")
	ErrCodeAttemptsExceeded  = errors.New("too many invalid verification attempts")
	ErrOAuthInvalid          = errors.New("oauth data invalid")
	ErrEmailSendFailure      = errors.New("email send failed")
	ErrRateLimited           = errors.New("rate limited")

	ErrChildNotFound       = errors.New("child not found")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrStudentNotFound     = errors.New("student account not found")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance for this payment")
	ErrSpendingLimit       = errors.New("payment exceeds spending limit")
	ErrInsufficientPoints  = errors.New("not enough reward points")
	ErrUnknownReward       = errors.New("unknown reward")
)

// ValidationError agrupa errores por campo de formulario.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

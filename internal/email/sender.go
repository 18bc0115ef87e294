package email

import (
	"context"
	"errors"
	"time"

	"hapo/internal/domain"
)

// Sender define la interfaz para envio de codigos de verificacion (registro y MFA).
type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail string, purpose domain.VerificationPurpose, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationCode(_ context.Context, _ string, _ domain.VerificationPurpose, _ string, _ time.Time) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func subjectFor(purpose domain.VerificationPurpose) string {
	if purpose == domain.PurposeMFA {
		return "Your Hapo sign-in code"
	}
	return "Verify your Hapo email"
}

package email

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hapo/internal/domain"
)

// LogSender no envia correos: escribe el codigo en el log. Solo para modo demo.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(_ context.Context, toEmail string, purpose domain.VerificationPurpose, code string, expiresAt time.Time) error {
	s.logger.Info("demo verification code",
		zap.String("to", toEmail),
		zap.String("purpose", string(purpose)),
		zap.String("subject", subjectFor(purpose)),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

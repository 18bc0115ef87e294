package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hapo/internal/domain"
	"hapo/internal/repository"
)

const recurringBatchSize = 50

// RecurringRunner ejecuta los pagos programados vencidos como transferencias.
type RecurringRunner struct {
	logger   *zap.Logger
	family   *FamilyService
	schedule repository.RecurringScheduleRepository
	interval time.Duration
	now      func() time.Time
}

func NewRecurringRunner(logger *zap.Logger, family *FamilyService, schedule repository.RecurringScheduleRepository, interval time.Duration) *RecurringRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurringRunner{
		logger:   logger,
		family:   family,
		schedule: schedule,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start corre RunDue en cada tick hasta que ctx se cancele.
func (r *RecurringRunner) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunDue(ctx); err != nil {
				r.logger.Warn("recurring run failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunDue toma cada pago vencido, avanza su proxima fecha y recien entonces transfiere.
// Los periodos perdidos mientras el servicio estuvo caido no se recuperan.
func (r *RecurringRunner) RunDue(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.schedule.ListDue(ctx, now, recurringBatchSize)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, p := range due {
		next := nextRunAfter(p.NextRunAt, p.Frequency, now)
		claimed, err := r.schedule.Advance(ctx, p.ID, p.NextRunAt, next)
		if err != nil {
			return executed, err
		}
		if !claimed {
			continue
		}

		_, err = r.family.Transfer(ctx, p.ParentID, TransferInput{
			ChildID: p.ChildID,
			Amount:  p.Amount,
			Type:    domain.TransactionTransfer,
		})
		if err != nil {
			r.logger.Warn("recurring transfer failed",
				zap.String("recurring_id", p.ID),
				zap.String("child_id", p.ChildID),
				zap.Error(err),
			)
			continue
		}
		executed++
	}
	if executed > 0 {
		r.logger.Info("recurring payments executed", zap.Int("count", executed))
	}
	return executed, nil
}

// nextRunAfter avanza desde prev por la frecuencia hasta quedar despues de now.
func nextRunAfter(prev time.Time, frequency string, now time.Time) time.Time {
	next := prev
	for !next.After(now) {
		switch frequency {
		case "daily":
			next = next.AddDate(0, 0, 1)
		case "weekly":
			next = next.AddDate(0, 0, 7)
		default:
			next = next.AddDate(0, 1, 0)
		}
	}
	return next
}

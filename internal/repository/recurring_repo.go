package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hapo/internal/domain"
)

type RecurringPaymentRepository interface {
	Create(ctx context.Context, payment domain.RecurringPayment) error
	ListByParent(ctx context.Context, parentID string) ([]domain.RecurringPayment, error)
}

// RecurringScheduleRepository es lo que necesita el runner de pagos programados.
type RecurringScheduleRepository interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.RecurringPayment, error)
	// Advance mueve next_run_at solo si sigue en prev; false si otra instancia ya lo tomo.
	Advance(ctx context.Context, id string, prev, next time.Time) (bool, error)
}

type PgRecurringPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPgRecurringPaymentRepository(pool *pgxpool.Pool) *PgRecurringPaymentRepository {
	return &PgRecurringPaymentRepository{pool: pool}
}

func (r *PgRecurringPaymentRepository) Create(ctx context.Context, p domain.RecurringPayment) error {
	const query = `
		INSERT INTO recurring_payments (id, parent_id, child_id, amount, frequency, description, next_run_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.ParentID,
		p.ChildID,
		p.Amount,
		p.Frequency,
		p.Description,
		p.NextRunAt,
		p.Active,
		p.CreatedAt,
	)
	return err
}

func (r *PgRecurringPaymentRepository) ListByParent(ctx context.Context, parentID string) ([]domain.RecurringPayment, error) {
	const query = `
		SELECT id, parent_id, child_id, amount, frequency, description, next_run_at, active, created_at
		FROM recurring_payments
		WHERE parent_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurringPayment
	for rows.Next() {
		var p domain.RecurringPayment
		if err := rows.Scan(
			&p.ID,
			&p.ParentID,
			&p.ChildID,
			&p.Amount,
			&p.Frequency,
			&p.Description,
			&p.NextRunAt,
			&p.Active,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRecurringPaymentRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.RecurringPayment, error) {
	const query = `
		SELECT id, parent_id, child_id, amount, frequency, description, next_run_at, active, created_at
		FROM recurring_payments
		WHERE active AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurringPayment
	for rows.Next() {
		var p domain.RecurringPayment
		if err := rows.Scan(
			&p.ID,
			&p.ParentID,
			&p.ChildID,
			&p.Amount,
			&p.Frequency,
			&p.Description,
			&p.NextRunAt,
			&p.Active,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRecurringPaymentRepository) Advance(ctx context.Context, id string, prev, next time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recurring_payments SET next_run_at = $3 WHERE id = $1 AND next_run_at = $2`,
		id, prev, next,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

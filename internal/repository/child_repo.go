package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hapo/internal/domain"
)

type ChildRepository interface {
	Create(ctx context.Context, child domain.Child) error
	GetByID(ctx context.Context, id string) (domain.Child, error)
	// GetByLogin busca por username o por el alias <nombre>@hapo.com, sin distinguir mayusculas.
	GetByLogin(ctx context.Context, login string) (domain.Child, error)
	ListByParent(ctx context.Context, parentID string) ([]domain.Child, error)
	UpdateLimits(ctx context.Context, id string, dailyLimit, weeklyLimit float64) error
	AddRewardPoints(ctx context.Context, id string, delta int) (int, error)
}

type PgChildRepository struct {
	pool *pgxpool.Pool
}

func NewPgChildRepository(pool *pgxpool.Pool) *PgChildRepository {
	return &PgChildRepository{pool: pool}
}

const childColumns = `id, parent_id, first_name, last_name, username, password_hash,
	weekly_limit, daily_limit, balance, reward_points, active, created_at`

func (r *PgChildRepository) Create(ctx context.Context, child domain.Child) error {
	const query = `
		INSERT INTO children (id, parent_id, first_name, last_name, username, password_hash,
			weekly_limit, daily_limit, balance, reward_points, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		child.ID,
		child.ParentID,
		child.FirstName,
		child.LastName,
		child.Username,
		child.PasswordHash,
		child.WeeklyLimit,
		child.DailyLimit,
		child.Balance,
		child.RewardPoints,
		child.Active,
		child.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgChildRepository) GetByID(ctx context.Context, id string) (domain.Child, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+childColumns+` FROM children WHERE id = $1`, id)
	return scanChild(row)
}

func (r *PgChildRepository) GetByLogin(ctx context.Context, login string) (domain.Child, error) {
	const query = `
		SELECT ` + childColumns + `
		FROM children
		WHERE active AND (lower(username) = lower($1) OR lower(first_name) || '@hapo.com' = lower($1))
		ORDER BY (lower(username) = lower($1)) DESC, created_at ASC
		LIMIT 1
	`
	return scanChild(r.pool.QueryRow(ctx, query, login))
}

func (r *PgChildRepository) ListByParent(ctx context.Context, parentID string) ([]domain.Child, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+childColumns+` FROM children WHERE parent_id = $1 ORDER BY created_at ASC`,
		parentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []domain.Child
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

func (r *PgChildRepository) UpdateLimits(ctx context.Context, id string, dailyLimit, weeklyLimit float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE children SET daily_limit = $2, weekly_limit = $3 WHERE id = $1`,
		id, dailyLimit, weeklyLimit,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AddRewardPoints suma delta (puede ser negativo) sin dejar el saldo de puntos bajo cero.
func (r *PgChildRepository) AddRewardPoints(ctx context.Context, id string, delta int) (int, error) {
	const query = `
		UPDATE children SET reward_points = reward_points + $2
		WHERE id = $1 AND reward_points + $2 >= 0
		RETURNING reward_points
	`
	var points int
	err := r.pool.QueryRow(ctx, query, id, delta).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientFunds
	}
	return points, err
}

func scanChild(row pgx.Row) (domain.Child, error) {
	var c domain.Child
	err := row.Scan(
		&c.ID,
		&c.ParentID,
		&c.FirstName,
		&c.LastName,
		&c.Username,
		&c.PasswordHash,
		&c.WeeklyLimit,
		&c.DailyLimit,
		&c.Balance,
		&c.RewardPoints,
		&c.Active,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Child{}, err
	}
	return c, err
}

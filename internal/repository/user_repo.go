package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hapo/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByAuth(ctx context.Context, provider, subject string) (domain.User, error)
	ReplaceUnverified(ctx context.Context, user domain.User) error
	VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error
	LinkOAuth(ctx context.Context, id, provider, subject string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, full_name, email, auth_provider, auth_subject, password_hash,
	email_verified_at, mfa_enabled, family_balance, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, full_name, email, auth_provider, auth_subject, password_hash,
			email_verified_at, mfa_enabled, family_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.AuthProvider,
		user.AuthSubject,
		user.PasswordHash,
		user.EmailVerifiedAt,
		user.MFAEnabled,
		user.FamilyBalance,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByAuth(ctx context.Context, provider, subject string) (domain.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE auth_provider = $1 AND auth_subject = $2`,
		provider, subject,
	)
}

// ReplaceUnverified sobrescribe los datos de una cuenta que todavia no verifico su email.
func (r *PgUserRepository) ReplaceUnverified(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET full_name = $2, password_hash = $3, mfa_enabled = $4
		WHERE id = $1 AND email_verified_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, user.ID, user.FullName, user.PasswordHash, user.MFAEnabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email_verified_at = $2 WHERE id = $1`, id, verifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) LinkOAuth(ctx context.Context, id, provider, subject string) error {
	const query = `
		UPDATE users SET auth_provider = $2, auth_subject = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, provider, subject)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.AuthProvider,
		&u.AuthSubject,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&u.MFAEnabled,
		&u.FamilyBalance,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}

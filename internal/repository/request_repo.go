package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"hapo/internal/domain"
)

type RequestRepository interface {
	Create(ctx context.Context, req domain.StudentRequest) error
	ListByParent(ctx context.Context, parentID string) ([]domain.StudentRequest, error)
}

type PgRequestRepository struct {
	pool *pgxpool.Pool
}

func NewPgRequestRepository(pool *pgxpool.Pool) *PgRequestRepository {
	return &PgRequestRepository{pool: pool}
}

func (r *PgRequestRepository) Create(ctx context.Context, req domain.StudentRequest) error {
	return insertRequest(ctx, r.pool, req)
}

func insertRequest(ctx context.Context, db dbtx, req domain.StudentRequest) error {
	const query = `
		INSERT INTO student_requests (id, student_id, parent_id, student_name, type, amount, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Exec(ctx, query,
		req.ID,
		req.StudentID,
		req.ParentID,
		req.StudentName,
		req.Type,
		req.Amount,
		req.Reason,
		req.Status,
		req.CreatedAt,
	)
	return err
}

func (r *PgRequestRepository) ListByParent(ctx context.Context, parentID string) ([]domain.StudentRequest, error) {
	const query = `
		SELECT id, student_id, parent_id, student_name, type, amount, reason, status, created_at
		FROM student_requests
		WHERE parent_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StudentRequest
	for rows.Next() {
		var req domain.StudentRequest
		if err := rows.Scan(
			&req.ID,
			&req.StudentID,
			&req.ParentID,
			&req.StudentName,
			&req.Type,
			&req.Amount,
			&req.Reason,
			&req.Status,
			&req.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

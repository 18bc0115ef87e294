package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hapo/internal/domain"
)

// TransactionFilter acota el historial por dueño y rango de fechas.
type TransactionFilter struct {
	OwnerType string
	OwnerID   string
	From      *time.Time
	To        *time.Time
	Limit     int
}

// LedgerRepository mueve saldos y registra el historial en una misma transaccion.
type LedgerRepository interface {
	// Transfer descuenta del saldo familiar, acredita al hijo y registra ambos movimientos.
	Transfer(ctx context.Context, parentID, childID string, amount float64, parentEntry, childEntry domain.Transaction) error
	// ParentPayment descuenta del saldo familiar sin control de suficiencia.
	ParentPayment(ctx context.Context, parentID string, amount float64, entry domain.Transaction) error
	// ChildPayment descuenta del saldo del hijo; devuelve ErrInsufficientFunds si no alcanza.
	ChildPayment(ctx context.Context, childID string, amount float64, entry domain.Transaction) (float64, error)
	// RedeemPoints descuenta cost puntos y registra el pedido de canje juntos; devuelve los puntos restantes.
	RedeemPoints(ctx context.Context, childID string, cost int, req domain.StudentRequest) (int, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
	SumSpent(ctx context.Context, childID string, since time.Time) (float64, error)
}

type PgLedgerRepository struct {
	pool *pgxpool.Pool
}

func NewPgLedgerRepository(pool *pgxpool.Pool) *PgLedgerRepository {
	return &PgLedgerRepository{pool: pool}
}

// dbtx es el subconjunto comun de *pgxpool.Pool y pgx.Tx que usan los inserts.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *PgLedgerRepository) Transfer(ctx context.Context, parentID, childID string, amount float64, parentEntry, childEntry domain.Transaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := execOne(ctx, tx,
			`UPDATE users SET family_balance = family_balance - $2 WHERE id = $1`,
			parentID, amount,
		); err != nil {
			return fmt.Errorf("debit family balance: %w", err)
		}
		if err := execOne(ctx, tx,
			`UPDATE children SET balance = balance + $2 WHERE id = $1 AND parent_id = $3`,
			childID, amount, parentID,
		); err != nil {
			return fmt.Errorf("credit child balance: %w", err)
		}
		if err := insertTransaction(ctx, tx, parentEntry); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, childEntry)
	})
}

func (r *PgLedgerRepository) ParentPayment(ctx context.Context, parentID string, amount float64, entry domain.Transaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := execOne(ctx, tx,
			`UPDATE users SET family_balance = family_balance - $2 WHERE id = $1`,
			parentID, amount,
		); err != nil {
			return fmt.Errorf("debit family balance: %w", err)
		}
		return insertTransaction(ctx, tx, entry)
	})
}

func (r *PgLedgerRepository) ChildPayment(ctx context.Context, childID string, amount float64, entry domain.Transaction) (float64, error) {
	var balance float64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE children SET balance = balance - $2 WHERE id = $1 AND balance >= $2 RETURNING balance`,
			childID, amount,
		).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("debit child balance: %w", err)
		}
		return insertTransaction(ctx, tx, entry)
	})
	return balance, err
}

func (r *PgLedgerRepository) RedeemPoints(ctx context.Context, childID string, cost int, req domain.StudentRequest) (int, error) {
	var remaining int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE children SET reward_points = reward_points - $2 WHERE id = $1 AND reward_points >= $2 RETURNING reward_points`,
			childID, cost,
		).Scan(&remaining)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("debit reward points: %w", err)
		}
		if err := insertRequest(ctx, tx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
	return remaining, err
}

func (r *PgLedgerRepository) List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error) {
	var (
		conds = []string{"owner_type = $1", "owner_id = $2"}
		args  = []any{filter.OwnerType, filter.OwnerID}
	)
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := `
		SELECT id, owner_type, owner_id, child_id, type, category, title, amount, created_at
		FROM transactions
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.OwnerType,
			&t.OwnerID,
			&t.ChildID,
			&t.Type,
			&t.Category,
			&t.Title,
			&t.Amount,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PgLedgerRepository) SumSpent(ctx context.Context, childID string, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(-amount), 0)::float8
		FROM transactions
		WHERE owner_type = $1 AND owner_id = $2 AND amount < 0 AND created_at >= $3
	`
	var spent float64
	err := r.pool.QueryRow(ctx, query, domain.OwnerChild, childID, since).Scan(&spent)
	return spent, err
}

func insertTransaction(ctx context.Context, db dbtx, t domain.Transaction) error {
	const query = `
		INSERT INTO transactions (id, owner_type, owner_id, child_id, type, category, title, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Exec(ctx, query,
		t.ID,
		t.OwnerType,
		t.OwnerID,
		t.ChildID,
		t.Type,
		t.Category,
		t.Title,
		t.Amount,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func execOne(ctx context.Context, db dbtx, query string, args ...any) error {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"coins-catcher/internal/model"
)

// WithdrawalRepository persists withdrawal/purchase requests. The priced
// payload and resolution are stored as JSONB next to indexed columns.
type WithdrawalRepository struct {
	q Querier
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(q Querier) *WithdrawalRepository {
	return &WithdrawalRepository{q: q}
}

const withdrawalColumns = `id, status, payload, resolution, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	err := row.Scan(&w.ID, &w.Status, &w.Payload, &w.Resolution, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// CreateWithdrawal inserts a pending request.
func (r *WithdrawalRepository) CreateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) error {
	const query = `
		INSERT INTO withdrawal_requests (id, account_id, kind, status, amount_pkr, payload, resolution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		w.ID, w.Payload.AccountID, w.Payload.Kind, w.Status, w.Payload.AmountPKR,
		w.Payload, w.Resolution, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// GetWithdrawal retrieves a request by id.
func (r *WithdrawalRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return w, err
}

// GetWithdrawalForUpdate retrieves a request and locks its row.
func (r *WithdrawalRepository) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to lock withdrawal request: %w", err)
	}
	return w, err
}

// UpdateWithdrawal stores a status transition.
func (r *WithdrawalRepository) UpdateWithdrawal(ctx context.Context, w *model.WithdrawalRequest) error {
	const query = `
		UPDATE withdrawal_requests
		SET status = $2, resolution = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, w.ID, w.Status, w.Resolution, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithdrawals returns requests matching f, newest first.
func (r *WithdrawalRepository) ListWithdrawals(ctx context.Context, f WithdrawalFilter) ([]*model.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`

	rows, err := r.q.Query(ctx, query, f.AccountID, string(f.Status), limitOrDefault(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	requests := []*model.WithdrawalRequest{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		requests = append(requests, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal requests: %w", err)
	}
	return requests, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coins-catcher/internal/model"
)

// TransactionRepository handles ledger records. Records are append-only.
type TransactionRepository struct {
	q Querier
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(q Querier) *TransactionRepository {
	return &TransactionRepository{q: q}
}

// AppendTransaction inserts a ledger record. CreatedAt defaults to now.
func (r *TransactionRepository) AppendTransaction(ctx context.Context, t *model.Transaction) error {
	const query = `
		INSERT INTO transactions (id, account_id, coin_delta, pkr_delta, type, description, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx, query,
		t.ID, t.AccountID, t.CoinDelta, t.PKRDelta, t.Type, t.Description, t.RequestID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactions returns an account's records, newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, accountID string, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, account_id, coin_delta, pkr_delta, type, description, request_id, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, accountID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.CoinDelta,
			&t.PKRDelta,
			&t.Type,
			&t.Description,
			&t.RequestID,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// SumTransactions totals every record of an account.
func (r *TransactionRepository) SumTransactions(ctx context.Context, accountID string) (Totals, error) {
	const query = `
		SELECT COALESCE(SUM(coin_delta), 0)::BIGINT, COALESCE(SUM(pkr_delta), 0), COUNT(*)
		FROM transactions
		WHERE account_id = $1
	`

	var totals Totals
	var pkr decimal.Decimal
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&totals.Coins, &pkr, &totals.Count); err != nil {
		return Totals{}, fmt.Errorf("failed to sum transactions: %w", err)
	}
	totals.PKR = pkr
	return totals, nil
}

// TopEarners ranks accounts by coins earned from the given transaction
// types since a point in time.
func (r *TransactionRepository) TopEarners(ctx context.Context, since time.Time, types []string, limit int) ([]*model.LeaderboardEntry, error) {
	const query = `
		SELECT t.account_id, a.display_name, SUM(t.coin_delta)::BIGINT AS earned
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.type = ANY($1)
		  AND t.coin_delta > 0
		  AND t.created_at >= $2
		  AND NOT a.is_blocked
		GROUP BY t.account_id, a.display_name
		ORDER BY earned DESC, t.account_id
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, types, since, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top earners: %w", err)
	}
	defer rows.Close()

	return scanLeaderboard(rows)
}

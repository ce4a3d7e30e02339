package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
)

// FriendRepository persists friend requests.
type FriendRepository struct {
	q Querier
}

// NewFriendRepository creates a new FriendRepository instance.
func NewFriendRepository(q Querier) *FriendRepository {
	return &FriendRepository{q: q}
}

const friendColumns = `id, status, from_id, to_id, pair_key, resolution, created_at, updated_at`

func scanFriendRequest(row pgx.Row) (*model.FriendRequest, error) {
	var f model.FriendRequest
	err := row.Scan(
		&f.ID,
		&f.Status,
		&f.Payload.FromID,
		&f.Payload.ToID,
		&f.Payload.PairKey,
		&f.Resolution,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// CreateFriendRequest inserts a pending request. A second pending request
// for the same pair violates a partial unique index and yields ErrConflict.
func (r *FriendRepository) CreateFriendRequest(ctx context.Context, f *model.FriendRequest) error {
	const query = `
		INSERT INTO friend_requests (id, status, from_id, to_id, pair_key, resolution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		f.ID, f.Status, f.Payload.FromID, f.Payload.ToID, f.Payload.PairKey, f.Resolution, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

// GetFriendRequestForUpdate retrieves a request and locks its row.
func (r *FriendRepository) GetFriendRequestForUpdate(ctx context.Context, id uuid.UUID) (*model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests WHERE id = $1 FOR UPDATE`

	f, err := scanFriendRequest(r.q.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to lock friend request: %w", err)
	}
	return f, err
}

// UpdateFriendRequest stores a status transition.
func (r *FriendRepository) UpdateFriendRequest(ctx context.Context, f *model.FriendRequest) error {
	const query = `
		UPDATE friend_requests
		SET status = $2, resolution = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, f.ID, f.Status, f.Resolution, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasPendingFriendRequest reports whether the pair already has a pending request.
func (r *FriendRepository) HasPendingFriendRequest(ctx context.Context, pairKey string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM friend_requests WHERE pair_key = $1 AND status = $2)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, pairKey, lifecycle.StatusPending).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check friend requests: %w", err)
	}
	return exists, nil
}

// ListFriendRequests returns requests addressed to f.AccountID, newest first.
func (r *FriendRepository) ListFriendRequests(ctx context.Context, f FriendFilter) ([]*model.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests
		WHERE to_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`

	rows, err := r.q.Query(ctx, query, f.AccountID, string(f.Status), limitOrDefault(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	requests := []*model.FriendRequest{}
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}
	return requests, nil
}

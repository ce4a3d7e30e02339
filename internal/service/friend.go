package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coins-catcher/internal/model"
	"coins-catcher/internal/pkg/lifecycle"
	"coins-catcher/internal/repository"
)

// FriendService manages friend requests between accounts.
type FriendService struct {
	clock
	store repository.Store
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(store repository.Store) *FriendService {
	return &FriendService{store: store}
}

// Send creates a pending request from the caller to another account. Only
// one request per pair of accounts may be pending, in either direction.
func (s *FriendService) Send(ctx context.Context, sess model.Session, toAccountID string) (*model.FriendRequest, error) {
	if toAccountID == sess.AccountID {
		return nil, ErrSelfRequest
	}

	var created *model.FriendRequest
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		from, err := tx.GetAccount(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		if from.IsBlocked {
			return ErrAccountBlocked
		}
		if _, err := tx.GetAccount(ctx, toAccountID); err != nil {
			return err
		}

		f := model.NewFriendRequest(from.ID, toAccountID)
		pending, err := tx.HasPendingFriendRequest(ctx, f.Payload.PairKey)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateRequest
		}

		now := s.Now()
		f.CreatedAt, f.UpdatedAt = now, now
		if err := tx.CreateFriendRequest(ctx, f); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrDuplicateRequest
			}
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("from_id", sess.AccountID).Str("to_id", toAccountID).Msg("Friend request sent")
	return created, nil
}

// Respond accepts or declines a pending request addressed to the caller.
func (s *FriendService) Respond(ctx context.Context, sess model.Session, id uuid.UUID, accept bool) (*model.FriendRequest, error) {
	outcome := lifecycle.StatusDeclined
	if accept {
		outcome = lifecycle.StatusAccepted
	}

	var resolved *model.FriendRequest
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		f, err := tx.GetFriendRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if f.Payload.ToID != sess.AccountID {
			return ErrPermission
		}
		if err := f.Resolve(lifecycle.FriendPolicy, outcome, "", sess.AccountID, s.Now()); err != nil {
			return err
		}
		if err := tx.UpdateFriendRequest(ctx, f); err != nil {
			return err
		}
		resolved = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ListIncoming lists requests addressed to the caller, pending ones by
// default.
func (s *FriendService) ListIncoming(ctx context.Context, sess model.Session, status lifecycle.Status) ([]*model.FriendRequest, error) {
	if status == "" {
		status = lifecycle.StatusPending
	}
	return s.store.ListFriendRequests(ctx, repository.FriendFilter{AccountID: sess.AccountID, Status: status})
}

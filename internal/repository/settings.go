package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coins-catcher/internal/model"
)

// walletKey is the settings row holding the WalletConfig document.
const walletKey = "wallet"

// SettingsRepository stores process-wide JSON documents keyed by name.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new SettingsRepository instance.
func NewSettingsRepository(q Querier) *SettingsRepository {
	return &SettingsRepository{q: q}
}

// GetWalletConfig returns the wallet document, or nil when unset.
func (r *SettingsRepository) GetWalletConfig(ctx context.Context) (*model.WalletConfig, error) {
	const query = `SELECT value, updated_at FROM settings WHERE key = $1`

	var cfg model.WalletConfig
	var updatedAt time.Time
	err := r.q.QueryRow(ctx, query, walletKey).Scan(&cfg, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet config: %w", err)
	}
	cfg.UpdatedAt = updatedAt
	return &cfg, nil
}

// SetWalletConfig replaces the wallet document.
func (r *SettingsRepository) SetWalletConfig(ctx context.Context, cfg *model.WalletConfig) error {
	const query = `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.q.Exec(ctx, query, walletKey, cfg, cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to set wallet config: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coins-catcher/internal/model"
)

func TestTopByCoins(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.user(t, "alice")
	e.user(t, "bob")
	_, err := e.svc.Admin.GiveBonus(ctx, e.admin, "bob", 1000, "")
	require.NoError(t, err)

	top, err := e.svc.Ranking.TopByCoins(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "bob", top[0].AccountID)
	assert.Equal(t, int64(1100), top[0].Coins)
}

func TestTopEarnersToday_CountsRewardsSinceLocalMidnight(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	// Yesterday in Karachi.
	e.clock.Set(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	_, err := e.svc.Rewards.Claim(ctx, bob, model.RewardDaily)
	require.NoError(t, err)

	e.clock.Set(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	_, err = e.svc.Rewards.Claim(ctx, alice, model.RewardHourly)
	require.NoError(t, err)
	_, err = e.svc.Rewards.Claim(ctx, bob, model.RewardFaucet)
	require.NoError(t, err)
	// Bonuses are not rewards.
	_, err = e.svc.Admin.GiveBonus(ctx, e.admin, "bob", 10000, "")
	require.NoError(t, err)

	top, err := e.svc.Ranking.TopEarnersToday(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].AccountID)
	assert.Equal(t, int64(50), top[0].Coins)
	assert.Equal(t, "bob", top[1].AccountID)
	assert.Equal(t, int64(10), top[1].Coins)
}

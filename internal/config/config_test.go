package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Database.TxRetries)
	assert.Equal(t, int64(100), cfg.Rewards.StartingBonus)
	assert.Equal(t, time.Hour, cfg.Rewards.Hourly.Cooldown)
	assert.Equal(t, 5*time.Minute, cfg.Rewards.Faucet.Cooldown)
	assert.Equal(t, []int64{15, 30, 45, 60, 75, 90, 120}, cfg.Rewards.DailySchedule)
	assert.Equal(t, "Asia/Karachi", cfg.Location().String())
	assert.Equal(t, 10*time.Second, cfg.Bot.PollTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  driver: memory
rewards:
  hourly:
    amount: 75
    cooldown: 30m
admin:
  bootstrap_ids: ["tg:42"]
bot:
  allowed_chats: [-1001]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, int64(75), cfg.Rewards.Hourly.Amount)
	assert.Equal(t, 30*time.Minute, cfg.Rewards.Hourly.Cooldown)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Admin.IsBootstrapAdmin("tg:42"))
	assert.False(t, cfg.Admin.IsBootstrapAdmin("tg:43"))
	assert.True(t, cfg.IsChatAllowed(-1001))
	assert.False(t, cfg.IsChatAllowed(-1002))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "memory"},
			Rewards: RewardsConfig{
				Timezone:      "UTC",
				Hourly:        TimedReward{Amount: 50, Cooldown: time.Hour},
				Faucet:        TimedReward{Amount: 10, Cooldown: time.Minute},
				DailySchedule: []int64{1, 2, 3, 4, 5, 6, 7},
				Game:          GameConfig{PointsPerCoin: 10},
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short schedule", func(c *Config) { c.Rewards.DailySchedule = []int64{1, 2} }},
		{"zero cooldown", func(c *Config) { c.Rewards.Faucet.Cooldown = 0 }},
		{"zero points per coin", func(c *Config) { c.Rewards.Game.PointsPerCoin = 0 }},
		{"bad timezone", func(c *Config) { c.Rewards.Timezone = "Mars/Olympus" }},
		{"bad driver", func(c *Config) { c.Database.Driver = "sqlite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestIsChatAllowed_EmptyAllowsAll(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsChatAllowed(-123))
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}

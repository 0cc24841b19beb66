// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "AVOID_SAME_GUEST", "ROOM_IDLE_TIMEOUT", "ROOM_IDLE_MODES", "REDIS_ADDR", "DATABASE_URL", "PG_HOST"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, logrus.InfoLevel, c.Level())
	assert.True(t, c.AvoidSameGuest)
	assert.False(t, c.AutoRequeueSurvivor)
	assert.Equal(t, 30*time.Minute, c.RoomIdleTimeout)
	assert.Equal(t, []models.Mode{models.ModeGame}, c.RoomIdleModes)
	assert.Empty(t, c.RedisAddr)
	assert.Empty(t, c.DatabaseURL)
	assert.Equal(t, DefaultLifecycleQueue, c.LifecycleQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org ,")
	t.Setenv("AUTO_REQUEUE_SURVIVOR", "true")
	t.Setenv("MAX_TEXT_LEN", "500")
	t.Setenv("ROOM_IDLE_TIMEOUT", "never")
	t.Setenv("ROOM_IDLE_MODES", "game, text")
	t.Setenv("HISTORIAN_FLUSH_MS", "250")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_DATABASE", "pairline")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.Addr())
	assert.Equal(t, logrus.DebugLevel, c.Level())
	assert.Equal(t, []string{"example.com", "*.example.org"}, c.AllowedOrigins)
	assert.Zero(t, c.RoomIdleTimeout)
	assert.Equal(t, 250*time.Millisecond, c.HistorianFlush)
	assert.Equal(t, "postgres://u:p@db:5432/pairline", c.DatabaseURL)

	sc := c.Session()
	assert.True(t, sc.AutoRequeueSurvivor)
	assert.Equal(t, 500, sc.Limits.MaxTextLen)
	assert.Equal(t, []models.Mode{models.ModeGame, models.ModeText}, sc.IdleModes)
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("AVOID_SAME_GUEST", "sometimes")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("ROOM_IDLE_MODES", "game,chess")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "AVOID_SAME_GUEST")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), `ROOM_IDLE_MODES: unknown mode "chess"`)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", "MEMORY")
	t.Setenv("REALTIME_BROKER", "Redis")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("TYPING_IDLE", "")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "redis", cfg.RealtimeBroker)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.TypingIdle)
	assert.Equal(t, 5*time.Minute, cfg.GrantTTL)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("GRANT_TTL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("GRANT_TTL", time.Minute))

	t.Setenv("GRANT_TTL", "soon")
	assert.Equal(t, time.Minute, getDuration("GRANT_TTL", time.Minute))

	t.Setenv("GRANT_TTL", "-1s")
	assert.Equal(t, time.Minute, getDuration("GRANT_TTL", time.Minute))
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := LoadConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)

	cfg.JWTSecret = "   "
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)

	t.Setenv("JWT_SECRET", "s3cret")
	assert.NoError(t, LoadConfig().Validate())
}

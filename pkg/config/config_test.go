package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("STORE_TIMEOUT", "not-a-duration")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("MONGO_DATABASE", "")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, "barrierfree", cfg.MongoDatabase)
}

func TestGormTranslatesDriverErrors(t *testing.T) {
	assert.True(t, gormConfig().TranslateError)
}

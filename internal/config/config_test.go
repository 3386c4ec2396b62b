package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_URL", "UPLOAD_DIR", "MAX_UPLOAD_MB", "VOTE_MAX_RETRIES", "MARKDOWN_CACHE_SIZE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, 5, cfg.VoteRetries)
	assert.Equal(t, 500, cfg.MarkdownCache)
	assert.Equal(t, int64(25<<20), cfg.MaxUploadBytes())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("VOTE_MAX_RETRIES", "abc")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 5, cfg.VoteRetries)
}

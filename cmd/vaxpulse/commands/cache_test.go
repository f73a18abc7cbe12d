package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vaxpulse/internal/source"
	"github.com/wonny/vaxpulse/pkg/config"
	"github.com/wonny/vaxpulse/pkg/logger"
	"github.com/wonny/vaxpulse/pkg/redis"
)

func TestCacheClear_WithoutRedis(t *testing.T) {
	a := &app{
		cfg:   &config.Config{Source: config.SourceConfig{ExternalURL: "https://example.org/vaccinations.csv"}},
		log:   logger.Nop(),
		redis: redis.NewDisabled(),
		cache: source.NewPayloadCache(time.Minute, nil, logger.Nop()),
	}

	require.NoError(t, runCacheClear(context.Background(), a, nil))
}

func TestCacheClear_HelpNamesInMemoryLimit(t *testing.T) {
	sub, _, err := cacheCmd.Find([]string{"clear"})
	require.NoError(t, err)
	require.Equal(t, "clear", sub.Name())

	// a separate process cannot reach a running server's in-memory level
	assert.Contains(t, sub.Short, "Redis")
	assert.Contains(t, sub.Long, "in-memory")
	assert.Contains(t, sub.Long, "FALLBACK_CACHE_TTL_SECONDS")
}

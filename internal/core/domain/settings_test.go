package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "X-User-ID", cfg.Server.UserHeader)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, 4*time.Second, cfg.Sync.InitialDelay.Std())
	assert.Equal(t, 60*time.Second, cfg.Sync.MaxDelay.Std())
	assert.Equal(t, 1000, cfg.Index.ChunkSize)
	assert.Equal(t, 200, cfg.Index.ChunkOverlap)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.False(t, cfg.Storage.Ephemeral)
	assert.Equal(t, DefaultQAConfig(), cfg.QA)
}

func TestDefaultQAConfig_Thresholds(t *testing.T) {
	qa := DefaultQAConfig()

	assert.Equal(t, 5, qa.TopK)
	assert.Less(t, qa.LowConfidence, qa.HighConfidence)
	assert.InDelta(t, 0.6, qa.TopWeight, 1e-9)
	assert.InDelta(t, 0.5, qa.SpreadPenalty, 1e-9)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}

func TestDuration_InvalidText(t *testing.T) {
	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Zero(t, d)
}

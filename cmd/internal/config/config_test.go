package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Port)
	assert.Equal(t, 10, cfg.DefaultCapacity)
	assert.Equal(t, 180, cfg.LookupWindowDays)
	assert.Equal(t, 3, cfg.DefaultSlotLimit)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 180*24*time.Hour, cfg.LookupWindow())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DEFAULT_MEETING_CAPACITY", "4")
	t.Setenv("MEETING_LOOKUP_WINDOW_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.DefaultCapacity)
	assert.Equal(t, 30*24*time.Hour, cfg.LookupWindow())
}

func TestLoad_RejectsNonNumeric(t *testing.T) {
	t.Setenv("DEFAULT_MEETING_CAPACITY", "lots")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsZeroCapacity(t *testing.T) {
	t.Setenv("DEFAULT_MEETING_CAPACITY", "0")

	_, err := Load()
	assert.Error(t, err)
}

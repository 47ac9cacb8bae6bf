package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryConfig(t *testing.T) {
	now := time.Date(2023, 3, 15, 13, 0, 0, 0, time.UTC)

	cfg, err := historyConfig("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), cfg.From)
	assert.Equal(t, time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC), cfg.To)

	cfg, err = historyConfig("2023-01-01", "2023-01-31", now)
	require.NoError(t, err)
	assert.True(t, cfg.From.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cfg.To.Equal(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)))

	_, err = historyConfig("01/01/2023", "", now)
	assert.Error(t, err)
}

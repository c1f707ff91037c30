package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benomayebu/Farmily-Docs/internal/models/m_action_event"
)

func TestExpired_SelectsByStatusAndAge(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	cfg := config{completedRetained: 30 * 24 * time.Hour, failedRetained: 90 * 24 * time.Hour}

	sel := expired(cfg, now)
	require.Len(t, sel, 2)

	completed := sel[m_action_event.StatusCompleted].Delete().Build()
	assert.Equal(t, "DELETE FROM action_events WHERE status = @p0 AND processed_at < @p1", completed.SQL)
	assert.Equal(t, "completed", completed.Params["p0"])
	assert.Equal(t, now.AddDate(0, 0, -30), completed.Params["p1"])

	failed := sel[m_action_event.StatusFailed].Count().Build()
	assert.Equal(t, "SELECT COUNT(*) FROM action_events WHERE status = @p0 AND processed_at < @p1", failed.SQL)
	assert.Equal(t, now.AddDate(0, 0, -90), failed.Params["p1"])
}

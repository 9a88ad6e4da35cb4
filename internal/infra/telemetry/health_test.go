package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTracker_Report(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tracker := NewHealthTracker()
	tracker.now = func() time.Time { return now }

	sync := tracker.Register("sync", time.Minute)
	reload := tracker.Register("config-reload", time.Minute)

	report := tracker.Report()
	assert.Equal(t, "unhealthy", report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "config-reload", report.Checks[0].Name)
	assert.Equal(t, "stale", report.Checks[0].Status)

	sync.Beat()
	reload.Fail(errors.New("parse config: bad yaml"))
	report = tracker.Report()
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "degraded", report.Checks[0].Status)
	assert.Equal(t, "parse config: bad yaml", report.Checks[0].LastError)
	assert.Equal(t, "ok", report.Checks[1].Status)

	reload.Beat()
	assert.Empty(t, tracker.Report().Checks[0].LastError)

	now = now.Add(2 * time.Minute)
	report = tracker.Report()
	assert.Equal(t, "unhealthy", report.Status)
	assert.Equal(t, "stale", report.Checks[1].Status)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, "info", level.String())

	level, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, "debug", level.String())

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cardsort/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cardsort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 40*time.Millisecond, cfg.Feed.StableWindow)
	assert.Equal(t, 8*time.Second, cfg.Feed.EntryTimeout)
	assert.Equal(t, 1200*time.Millisecond, cfg.Feed.ExtraFeed)
	assert.Equal(t, 2*time.Second, cfg.Dispense.Settle)
	assert.Equal(t, 5*time.Second, cfg.Sorter.StopTimeout)
	assert.Len(t, cfg.Dispense.Gates, 9)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
feed:
  entry_motor: [2, 3, 0, 1]
  motor2_extra_feed: 1.5
  entry_timeout: 12s
  sensor_active_low: false
dispense:
  gates:
    4: {pin: 18, open_degrees: 30, close_degrees: 100}
  settle: 500ms
storage:
  counters: redis
  redis:
    addr: "redis:6379"
    db: "2"
metrics:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 0, 1}, cfg.Feed.EntryMotor)
	assert.Equal(t, 1500*time.Millisecond, cfg.Feed.ExtraFeed)
	assert.Equal(t, 12*time.Second, cfg.Feed.EntryTimeout)
	assert.False(t, cfg.Feed.SensorActiveLow)
	assert.Equal(t, 30.0, cfg.Dispense.Gates[4].OpenDegrees)
	assert.Equal(t, 100.0, cfg.Dispense.Gates[4].CloseDegrees)
	assert.Len(t, cfg.Dispense.Gates, 9, "untouched gates keep their defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Dispense.Settle)
	assert.Equal(t, BackendRedis, cfg.Storage.Counters)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "cardsort:", cfg.Storage.Redis.Prefix)
	assert.False(t, cfg.Metrics.Enabled)

	// untouched sections keep defaults
	assert.Equal(t, Default().Feed.PinchMotor, cfg.Feed.PinchMotor)
	assert.Equal(t, Default().HTTP, cfg.HTTP)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "feed:\n  warp_speed: 9\n", "warp_speed"},
		{"bad yaml", "feed: [\n", "invalid yaml"},
		{"angle out of range", "dispense:\n  gates:\n    2: {pin: 15, open_degrees: 181, close_degrees: 90}\n", "gate 2"},
		{"gate for bin 10", "dispense:\n  gates:\n    10: {pin: 2, open_degrees: 10, close_degrees: 90}\n", "bin 10"},
		{"zero poll", "feed:\n  poll_interval: 0s\n", "poll interval"},
		{"negative timeout", "feed:\n  exit_timeout: -1s\n", "exit timeout"},
		{"duplicate motor pins", "feed:\n  pinch_motor: [19, 22, 10, 9]\n", "already used"},
		{"unknown backend", "storage:\n  counters: etcd\n", "etcd"},
		{"servo on coil", "dispense:\n  card_servo: {pin: 19, open_degrees: 120, close_degrees: 60}\n", "motor coil"},
		{"bad pull", "board:\n  pull: sideways\n", "sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MissingGate(t *testing.T) {
	cfg := Default()
	delete(cfg.Dispense.Gates, 7)

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidBin)
}

func TestConverters(t *testing.T) {
	cfg := Default()

	assert.Equal(t, cfg.Feed.ExtraFeed, cfg.FeedTiming().ExtraFeed)
	assert.Equal(t, cfg.Feed.TransportMotor, cfg.Motors().Transport)
	assert.Equal(t, 8, cfg.FeedSensors().Entry)
	assert.True(t, cfg.FeedSensors().ActiveLow)
	assert.Equal(t, cfg.Sorter.CyclePause, cfg.SorterTiming().CyclePause)
	assert.Equal(t, cfg.Dispense.Hold, cfg.DispenseTiming().Hold)

	table, err := cfg.DispenseTable()
	require.NoError(t, err)
	assert.Equal(t, 18, table.Gates[4].Pin)

	assert.Len(t, cfg.OutputPins(), 12+1+9)
	assert.Equal(t, []int{8, 14}, cfg.InputPins())
}

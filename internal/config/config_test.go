package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://kpi@localhost:5432/kpi?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 7090, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.KPI.RealtimeWindow)
	assert.Equal(t, 24*time.Hour, cfg.KPI.HistoryWindow)
	assert.Equal(t, int64(300), cfg.KPI.IdleDwellSeconds)
	assert.Equal(t, 50.0, cfg.KPI.IdleMovementMeters)
	assert.Equal(t, int64(2), cfg.KPI.RepositionGapThreshold)
	assert.Equal(t, []string{"Z1", "Z2", "Z3", "Z4", "Z5"}, cfg.Producer.Zones)
	assert.False(t, cfg.Producer.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://kpi@localhost:5432/kpi")
	t.Setenv("KPI_SURGE_WINDOW", "30m")
	t.Setenv("KPI_TOP_ZONES_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.KPI.SurgeWindow)
	assert.Equal(t, 3, cfg.KPI.TopZonesLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{"missing dsn", map[string]any{}, "DB_DSN is required"},
		{"zero window", map[string]any{"DB_DSN": "x", "KPI_TREND_WINDOW": "0s"}, "KPI_TREND_WINDOW"},
		{"negative limit", map[string]any{"DB_DSN": "x", "KPI_TOP_ZONES_LIMIT": -1}, "KPI_TOP_ZONES_LIMIT"},
		{"producer without zones", map[string]any{"DB_DSN": "x", "PRODUCER_ENABLED": true, "PRODUCER_ZONES": " , "}, "PRODUCER_ZONES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}

			_, err := fromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Empty(t, splitList(""))
}

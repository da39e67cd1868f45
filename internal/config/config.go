package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type KPIConfig struct {
	RealtimeWindow         time.Duration
	UtilizationWindow      time.Duration
	TrendWindow            time.Duration
	HistoryWindow          time.Duration
	SurgeWindow            time.Duration
	TopZonesLimit          int
	RepositionGapThreshold int64
	IdleDwellSeconds       int64
	IdleMovementMeters     float64
	ActiveSpeedMps         float64
}

type ProducerConfig struct {
	Enabled       bool
	Seed          uint64
	Zones         []string
	Riders        int
	OrderInterval time.Duration
	PingInterval  time.Duration
	BatchSize     int
	FlushInterval time.Duration
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	KPI         KPIConfig
	Producer    ProducerConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()
	setDefaults(v)

	_ = v.ReadInConfig()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("KPI_REALTIME_WINDOW", "5m")
	v.SetDefault("KPI_UTILIZATION_WINDOW", "15m")
	v.SetDefault("KPI_TREND_WINDOW", "1h")
	v.SetDefault("KPI_HISTORY_WINDOW", "24h")
	v.SetDefault("KPI_SURGE_WINDOW", "10m")
	v.SetDefault("KPI_TOP_ZONES_LIMIT", 10)
	v.SetDefault("KPI_REPOSITION_GAP_THRESHOLD", 2)
	v.SetDefault("KPI_IDLE_DWELL_SECONDS", 300)
	v.SetDefault("KPI_IDLE_MOVEMENT_METERS", 50.0)
	v.SetDefault("KPI_ACTIVE_SPEED_MPS", 3.0)

	v.SetDefault("PRODUCER_ENABLED", false)
	v.SetDefault("PRODUCER_SEED", 1)
	v.SetDefault("PRODUCER_ZONES", "Z1,Z2,Z3,Z4,Z5")
	v.SetDefault("PRODUCER_RIDERS", 50)
	v.SetDefault("PRODUCER_ORDER_INTERVAL", "500ms")
	v.SetDefault("PRODUCER_PING_INTERVAL", "2s")
	v.SetDefault("PRODUCER_BATCH_SIZE", 200)
	v.SetDefault("PRODUCER_FLUSH_INTERVAL", "5s")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		KPI: KPIConfig{
			RealtimeWindow:         v.GetDuration("KPI_REALTIME_WINDOW"),
			UtilizationWindow:      v.GetDuration("KPI_UTILIZATION_WINDOW"),
			TrendWindow:            v.GetDuration("KPI_TREND_WINDOW"),
			HistoryWindow:          v.GetDuration("KPI_HISTORY_WINDOW"),
			SurgeWindow:            v.GetDuration("KPI_SURGE_WINDOW"),
			TopZonesLimit:          v.GetInt("KPI_TOP_ZONES_LIMIT"),
			RepositionGapThreshold: v.GetInt64("KPI_REPOSITION_GAP_THRESHOLD"),
			IdleDwellSeconds:       v.GetInt64("KPI_IDLE_DWELL_SECONDS"),
			IdleMovementMeters:     v.GetFloat64("KPI_IDLE_MOVEMENT_METERS"),
			ActiveSpeedMps:         v.GetFloat64("KPI_ACTIVE_SPEED_MPS"),
		},
		Producer: ProducerConfig{
			Enabled:       v.GetBool("PRODUCER_ENABLED"),
			Seed:          v.GetUint64("PRODUCER_SEED"),
			Zones:         splitList(v.GetString("PRODUCER_ZONES")),
			Riders:        v.GetInt("PRODUCER_RIDERS"),
			OrderInterval: v.GetDuration("PRODUCER_ORDER_INTERVAL"),
			PingInterval:  v.GetDuration("PRODUCER_PING_INTERVAL"),
			BatchSize:     v.GetInt("PRODUCER_BATCH_SIZE"),
			FlushInterval: v.GetDuration("PRODUCER_FLUSH_INTERVAL"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	windows := map[string]time.Duration{
		"KPI_REALTIME_WINDOW":    cfg.KPI.RealtimeWindow,
		"KPI_UTILIZATION_WINDOW": cfg.KPI.UtilizationWindow,
		"KPI_TREND_WINDOW":       cfg.KPI.TrendWindow,
		"KPI_HISTORY_WINDOW":     cfg.KPI.HistoryWindow,
		"KPI_SURGE_WINDOW":       cfg.KPI.SurgeWindow,
	}
	for key, d := range windows {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	if cfg.KPI.TopZonesLimit < 0 {
		return fmt.Errorf("KPI_TOP_ZONES_LIMIT must not be negative")
	}
	if cfg.Producer.Enabled {
		if len(cfg.Producer.Zones) == 0 {
			return fmt.Errorf("PRODUCER_ZONES is required when PRODUCER_ENABLED is set")
		}
		if cfg.Producer.Riders <= 0 || cfg.Producer.BatchSize <= 0 {
			return fmt.Errorf("PRODUCER_RIDERS and PRODUCER_BATCH_SIZE must be positive")
		}
		if cfg.Producer.OrderInterval <= 0 || cfg.Producer.PingInterval <= 0 || cfg.Producer.FlushInterval <= 0 {
			return fmt.Errorf("producer intervals must be positive durations")
		}
	}
	return nil
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ApplyEnv overrides cfg from the environment, reading a .env file in the
// working directory first when one exists.
func ApplyEnv(cfg *Config, logger zerolog.Logger) {
	_ = godotenv.Load()
	e := env{logger: logger}

	cfg.Model = e.str("WASMSIM_MODEL", cfg.Model)
	cfg.StartTime = e.float("WASMSIM_START_TIME", cfg.StartTime)
	cfg.StopTime = e.float("WASMSIM_STOP_TIME", cfg.StopTime)
	cfg.Steps = e.int("WASMSIM_STEPS", cfg.Steps)
	cfg.Tolerance = e.float("WASMSIM_TOLERANCE", cfg.Tolerance)
	cfg.LogLevel = e.str("WASMSIM_LOG_LEVEL", cfg.LogLevel)
	cfg.StepMode = e.str("WASMSIM_STEP_MODE", cfg.StepMode)
	cfg.Output.StoreDir = e.str("WASMSIM_STORE_DIR", cfg.Output.StoreDir)

	cfg.MQTT.Enabled = e.bool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.Broker = e.str("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = e.str("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = e.str("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = e.str("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.Topic = e.str("MQTT_TOPIC", cfg.MQTT.Topic)

	cfg.ClickHouse.Enabled = e.bool("CLICKHOUSE_ENABLED", cfg.ClickHouse.Enabled)
	cfg.ClickHouse.Addr = e.str("CLICKHOUSE_ADDR", cfg.ClickHouse.Addr)
	cfg.ClickHouse.Database = e.str("CLICKHOUSE_DB", cfg.ClickHouse.Database)
	cfg.ClickHouse.Username = e.str("CLICKHOUSE_USER", cfg.ClickHouse.Username)
	cfg.ClickHouse.Password = e.str("CLICKHOUSE_PASS", cfg.ClickHouse.Password)
	cfg.ClickHouse.Table = e.str("CLICKHOUSE_TABLE", cfg.ClickHouse.Table)
}

type env struct {
	logger zerolog.Logger
}

func (e env) str(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (e env) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("failed to parse float, using default")
		return defaultValue
	}
	return f
}

func (e env) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("failed to parse int, using default")
		return defaultValue
	}
	return n
}

func (e env) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("failed to parse bool, using default")
		return defaultValue
	}
	return b
}

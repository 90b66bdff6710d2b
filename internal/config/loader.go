package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file (optional)
// 3. SAFENET_* environment variables
func Load() (*Config, error) {
	setDefaults()

	if err := readConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// readConfigFile initializes viper and reads the optional config file.
func readConfigFile() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SAFENET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults plus env apply.
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", true)

	viper.SetDefault("database.path", "safenet.db")

	viper.SetDefault("server.addr", ":8001")
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("safe182.base_url", "https://www.safe182.go.kr/api/lcm/findChildList.do")
	viper.SetDefault("safe182.region", "대전")
	viper.SetDefault("safe182.row_size", 100)
	viper.SetDefault("safe182.lookback_days", 90)
	viper.SetDefault("safe182.timeout", 30*time.Second)
	viper.SetDefault("safe182.min_interval", 300*time.Second)
	viper.SetDefault("safe182.cache_duration", 3600*time.Second)
	viper.SetDefault("safe182.fresh_sleep", 300*time.Second)
	viper.SetDefault("safe182.gate_sleep", 60*time.Second)
	viper.SetDefault("safe182.backoff", 300*time.Second)
	viper.SetDefault("safe182.idle_sleep", 900*time.Second)

	viper.SetDefault("enrich.base_url", "http://localhost:8000")
	viper.SetDefault("enrich.timeout", 60*time.Second)

	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gemini.temperature", 0.2)
	viper.SetDefault("gemini.max_retries", 2)
	viper.SetDefault("gemini.retry_delay", 5*time.Second)

	viper.SetDefault("kakao.base_url", "https://dapi.kakao.com")
	viper.SetDefault("kakao.timeout", 10*time.Second)
	viper.SetDefault("kakao.min_query_len", 2)

	viper.SetDefault("cleanup.api_request_age", 7*24*time.Hour)
	viper.SetDefault("cleanup.driver_location_age", 30*24*time.Hour)
	viper.SetDefault("cleanup.notification_age", 30*24*time.Hour)

	viper.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"cleanup":   {Schedule: "0 0 * * * *", Enabled: true},
		"analytics": {Schedule: "0 */30 * * * *", Enabled: true},
	})
}

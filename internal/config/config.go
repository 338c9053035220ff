package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Presence  PresenceConfig  `yaml:"presence"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // уровень консоли: trace, debug, info, warn, error
	Files bool   `yaml:"files"` // писать файлы logs/<component>_<timestamp>.log
	Dir   string `yaml:"dir"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type PresenceConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type ServerConfig struct {
	GamePort    int    `yaml:"game_port"`
	AdminPort   int    `yaml:"admin_port"`
	MetricsPort int    `yaml:"metrics_port"`
	SaveDir     string `yaml:"save_dir"`
	Workers     int    `yaml:"workers"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SaveDir: "save",
			Workers: 4,
		},
		EventBus: EventBusConfig{
			Stream:    "BLOCKBYTE",
			Retention: 24,
		},
		Presence: PresenceConfig{
			TTLSeconds: 30,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "blockbyte-server",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// GetGamePort возвращает порт WebSocket сервера с поддержкой fallback значений
func (s *ServerConfig) GetGamePort() int {
	return getPortWithEnvFallback(s.GamePort, "GAME_PORT", 4321)
}

// GetAdminPort возвращает порт REST API с поддержкой fallback значений
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "GAME_ADMIN_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// GetWorkers возвращает число воркеров пула задач
func (s *ServerConfig) GetWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return 4
}

// GetSaveDir возвращает каталог сохранений
func (s *ServerConfig) GetSaveDir() string {
	if s.SaveDir != "" {
		return s.SaveDir
	}
	return "save"
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	return cfg, nil
}

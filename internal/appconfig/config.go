// Package appconfig loads process configuration via viper, following
// SoySergo-location_microservice/internal/config/config.go's
// nested-struct-of-sub-configs pattern, adapted to this domain's study
// area / router / cache / database / log sections.
package appconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	StudyArea StudyAreaConfig
	Router    RouterConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Log       LogConfig
}

// ServerConfig configures the HTTP surface (pkg/api).
type ServerConfig struct {
	Host          string
	Port          int
	CORSOrigin    string
	MaxConcurrent int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// StudyAreaConfig locates the OSM extract and boundary data a MapModel is
// built from (Component A inputs, §4.1).
type StudyAreaConfig struct {
	Name        string
	OSMPath     string
	BoundaryPath string
	GraphPath   string // serialized MapModel binary, written by cmd/ltn-build and read by cmd/ltn-server
}

// RouterConfig tunes Component C.
type RouterConfig struct {
	MainRoadPenalty float64
}

// CacheConfig configures pkg/cache's redis-backed memoization.
type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// DatabaseConfig configures pkg/contextstore's population/demand persistence.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level string
}

// Load reads configuration from a .env-style file plus the process
// environment (environment variables always win, matching viper's
// AutomaticEnv precedence).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("appconfig: read config: %w", err)
		}
		// Missing file is fine; defaults + environment still apply.
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          v.GetString("SERVER_HOST"),
			Port:          v.GetInt("SERVER_PORT"),
			CORSOrigin:    v.GetString("SERVER_CORS_ORIGIN"),
			MaxConcurrent: v.GetInt("SERVER_MAX_CONCURRENT"),
			ReadTimeout:   v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:  v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		StudyArea: StudyAreaConfig{
			Name:         v.GetString("STUDY_AREA_NAME"),
			OSMPath:      v.GetString("STUDY_AREA_OSM_PATH"),
			BoundaryPath: v.GetString("STUDY_AREA_BOUNDARY_PATH"),
			GraphPath:    v.GetString("STUDY_AREA_GRAPH_PATH"),
		},
		Router: RouterConfig{
			MainRoadPenalty: v.GetFloat64("ROUTER_MAIN_ROAD_PENALTY"),
		},
		Cache: CacheConfig{
			Host:     v.GetString("CACHE_HOST"),
			Port:     v.GetInt("CACHE_PORT"),
			Password: v.GetString("CACHE_PASSWORD"),
			DB:       v.GetInt("CACHE_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxConns:        v.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_MAX_CONCURRENT", 32)
	v.SetDefault("SERVER_READ_TIMEOUT", 5*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("ROUTER_MAIN_ROAD_PENALTY", 1.0)
	v.SetDefault("CACHE_HOST", "localhost")
	v.SetDefault("CACHE_PORT", 6379)
	v.SetDefault("CACHE_DB", 0)
	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
}

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Upload    UploadConfig    `mapstructure:"upload"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RequestsPerIP int  `mapstructure:"requests_per_ip"`
	WindowSeconds int  `mapstructure:"window_seconds"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json or console
	Output   string `mapstructure:"output"` // stdout or file
	FilePath string `mapstructure:"file_path"`
}

type UploadConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int64  `mapstructure:"max_size_mb"`
	PublicPath string `mapstructure:"public_path"`
	StaticRoot string `mapstructure:"static_root"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("ratelimit.requests_per_ip", 100)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.max_size_mb", 500)
	v.SetDefault("upload.public_path", "/uploads")
	v.SetDefault("upload.static_root", "./public")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

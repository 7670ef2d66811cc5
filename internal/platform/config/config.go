package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// BridgeConfig controls the agent bridge endpoint. LegacyAgentKey is the
// pre-API-key shared secret; leaving it empty disables the legacy path
// entirely. LegacyWorkspaceID optionally pins legacy callers to a single
// workspace instead of granting an unscoped view.
type BridgeConfig struct {
	LegacyAgentKey    string `mapstructure:"legacy_agent_key"`
	LegacyWorkspaceID string `mapstructure:"legacy_workspace_id"`
}

type DirectoryConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ServiceToken string        `mapstructure:"service_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	MemberWorkers     int    `mapstructure:"member_workers"`
	SweepSchedule     string `mapstructure:"sweep_schedule"`
	KeyExpirySchedule string `mapstructure:"key_expiry_schedule"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

package commands

import (
	"fmt"
	"os"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

// Config is the avra CLI config file. See example-config.yaml in the
// repository root for a commented starting point.
type Config struct {
	Agent     AgentConfig       `yaml:"agent"`
	Directory DirectoryConfig   `yaml:"directory"`
	Database  dbutil.Config     `yaml:"database"`
	Logging   zeroconfig.Config `yaml:"logging"`
}

type AgentConfig struct {
	// ServiceID pins the local agent when the database holds more than
	// one. With a single agent it can stay empty.
	ServiceID string `yaml:"service_id"`
	DeviceID  int    `yaml:"device_id"`
}

type DirectoryConfig struct {
	URL string `yaml:"url"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig holds everything the worker needs at startup (spec.md §4.4).
type WorkerConfig struct {
	CoordinatorURL    string        `mapstructure:"coordinator_url"`
	TempDir           string        `mapstructure:"temp_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	TranscoderBin     string        `mapstructure:"transcoder_bin"`
	ProbeBin          string        `mapstructure:"probe_bin"`
}

// LoadWorkerConfig reads worker configuration from a config file under path
// plus environment variables prefixed WORKER_, mirroring the teacher's
// Load function.
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	v := viper.New()

	v.SetDefault("temp_dir", "/tmp/distrip-worker")
	v.SetDefault("heartbeat_interval", "5s")
	v.SetDefault("transcoder_bin", "HandBrakeCLI")
	v.SetDefault("probe_bin", "HandBrakeCLI")

	v.SetConfigName("worker")
	v.SetConfigType("json")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading worker config file: %w", err)
		}
	}

	v.SetEnvPrefix("WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode worker config: %w", err)
	}

	if err := validateWorkerConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateWorkerConfig(cfg *WorkerConfig) error {
	if cfg.CoordinatorURL == "" {
		return errors.New("configuration 'coordinator_url' is required")
	}
	return os.MkdirAll(cfg.TempDir, 0o755)
}

// Package config loads coordinator and worker configuration, following the
// teacher's viper-based defaults -> file -> env -> unmarshal -> validate
// pipeline (internal/config/config.go in the original worker).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"distrip/internal/jobspec"
)

// CoordinatorConfig holds everything the coordinator needs at startup
// (spec.md §3, §4.1): the input directory to scan for source images, the
// output directory Result Intake moves finished files into, the listen
// address, and the rip/transcode defaults applied to every job.
type CoordinatorConfig struct {
	InPath       string        `mapstructure:"in_path"`
	OutPath      string        `mapstructure:"out_path"`
	TempDir      string        `mapstructure:"temp_dir"`
	ListenAddr   string        `mapstructure:"listen_addr"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`

	RipConfig jobspec.RipConfig
	HBConfig  jobspec.HandbrakeConfig
	Fixes     jobspec.FixSet
}

// LoadCoordinatorConfig reads coordinator configuration from a config file
// under path plus environment variables prefixed COORDINATOR_.
func LoadCoordinatorConfig(path string) (*CoordinatorConfig, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("temp_dir", "/tmp/distrip-coordinator")
	v.SetDefault("scan_interval", "10s")
	v.SetDefault("job_timeout", "30s")

	v.SetConfigName("coordinator")
	v.SetConfigType("json")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading coordinator config file: %w", err)
		}
	}

	v.SetEnvPrefix("COORDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg CoordinatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode coordinator config: %w", err)
	}

	if raw := v.Get("rip_config"); raw != nil {
		ripConfig, err := decodeRipConfigFile(raw)
		if err != nil {
			return nil, fmt.Errorf("rip_config: %w", err)
		}
		cfg.RipConfig = ripConfig
	}
	if err := unmarshalSub(v, "hb_config", &cfg.HBConfig); err != nil {
		return nil, fmt.Errorf("hb_config: %w", err)
	}

	if raw := v.Get("fixes"); raw != nil {
		fixesMap, err := toRawMessageMap(raw)
		if err != nil {
			return nil, fmt.Errorf("fixes: %w", err)
		}
		fixes, err := jobspec.ParseConfigFixes(fixesMap)
		if err != nil {
			return nil, fmt.Errorf("fixes: %w", err)
		}
		cfg.Fixes = fixes
	}

	if err := validateCoordinatorConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateCoordinatorConfig(cfg *CoordinatorConfig) error {
	if cfg.InPath == "" {
		return errors.New("configuration 'in_path' is required")
	}
	if cfg.OutPath == "" {
		return errors.New("configuration 'out_path' is required")
	}
	return cfg.HBConfig.Validate()
}

// ripConfigFile is the on-disk coordinator.json shape for rip_config
// (spec.md §6): {a_tracks, s_tracks, min_dur, max_dur}. This is a different
// key set from the dispatch-API wire format RipConfig.UnmarshalJSON decodes
// (jobspec/wire.go's {a_lang, s_lang, len_range}) — the config file and the
// HTTP protocol just happen to name the same fields differently.
type ripConfigFile struct {
	ATracks []string `json:"a_tracks"`
	STracks []string `json:"s_tracks"`
	MinDur  int      `json:"min_dur"`
	MaxDur  int      `json:"max_dur"`
}

// decodeRipConfigFile decodes a rip_config section read from coordinator.json
// into a jobspec.RipConfig, using the config file's a_tracks/s_tracks/
// min_dur/max_dur keys rather than the wire protocol's a_lang/s_lang/
// len_range keys.
func decodeRipConfigFile(raw interface{}) (jobspec.RipConfig, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return jobspec.RipConfig{}, err
	}
	var f ripConfigFile
	if err := json.Unmarshal(data, &f); err != nil {
		return jobspec.RipConfig{}, err
	}
	return jobspec.RipConfig{
		AudioLangs:    f.ATracks,
		SubtitleLangs: f.STracks,
		MinMinutes:    f.MinDur,
		MaxMinutes:    f.MaxDur,
	}, nil
}

// unmarshalSub decodes a nested config section by round-tripping it through
// JSON, since HandbrakeConfig's wire-format MarshalJSON/UnmarshalJSON
// (jobspec/wire.go) is also the natural config-file shape for that type —
// unlike RipConfig, whose config-file schema differs from its wire schema
// (see decodeRipConfigFile).
func unmarshalSub(v *viper.Viper, key string, out interface{ UnmarshalJSON([]byte) error }) error {
	raw := v.Get(key)
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return out.UnmarshalJSON(data)
}

func toRawMessageMap(raw interface{}) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

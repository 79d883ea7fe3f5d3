package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"btc-prover/pkg/node"
)

type DBConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type LoggerOptions struct {
	Level string `toml:"level"`
}

type ProverConfig struct {
	CommitmentPolicy string   `toml:"commitment_policy"`
	FallbackQuota    int      `toml:"fallback_quota"`
	FallbackWindow   Duration `toml:"fallback_window"`
}

type Config struct {
	Node   node.Config   `toml:"node"`
	DB     DBConfig      `toml:"db"`
	Logger LoggerOptions `toml:"logger"`
	Prover ProverConfig  `toml:"prover"`
}

// Duration lets toml carry values like "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func LoadConfig(path string) (*Config, error) {

	var config Config
	metaData, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, err
	}

	if len(metaData.Undecoded()) > 0 {
		return nil, (fmt.Errorf("undecoded fields: %v", metaData.Undecoded()))
	}

	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Prover.CommitmentPolicy == "" {
		config.Prover.CommitmentPolicy = "strict"
	}

	return &config, nil
}

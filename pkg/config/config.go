package config

import (
	"os"

	"github.com/lintang-b-s/chroute/pkg/contractor"
	"github.com/lintang-b-s/chroute/pkg/server"

	"gopkg.in/yaml.v3"
)

// Config carries the tunables of the preprocessing and the engine. Every
// field has a default; a missing config file is not an error.
type Config struct {
	Contraction struct {
		NumWorkers             int     `yaml:"num-workers"`
		HopLimit               int     `yaml:"hop-limit"`
		SimulationSettleLimit  int     `yaml:"simulation-settle-limit"`
		ContractionSettleLimit int     `yaml:"contraction-settle-limit"`
		CompactionFraction     float64 `yaml:"compaction-fraction"`
	} `yaml:"contraction"`

	Alternatives struct {
		Alpha   float64 `yaml:"alpha"`
		Epsilon float64 `yaml:"epsilon"`
		Gamma   float64 `yaml:"gamma"`
	} `yaml:"alternatives"`

	Server struct {
		ListenAddr string `yaml:"listen-addr"`
	} `yaml:"server"`
}

func Default() Config {
	var cfg Config
	opts := contractor.DefaultOptions()
	cfg.Contraction.NumWorkers = opts.NumWorkers
	cfg.Contraction.HopLimit = opts.HopLimit
	cfg.Contraction.SimulationSettleLimit = opts.SimulationSettleLimit
	cfg.Contraction.ContractionSettleLimit = opts.ContractionSettleLimit
	cfg.Contraction.CompactionFraction = opts.CompactionFraction
	cfg.Alternatives.Alpha = 0.10
	cfg.Alternatives.Epsilon = 0.15
	cfg.Alternatives.Gamma = 0.75
	cfg.Server.ListenAddr = ":5000"
	return cfg
}

// Read loads the yaml file at path over the defaults. An empty path or a
// missing file returns the defaults unchanged.
func Read(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, server.WrapErrorf(err, server.ErrResourceFailure, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, server.WrapErrorf(err, server.ErrInvalidInput, "parsing config %s", path)
	}
	return cfg, nil
}

// ContractorOptions maps the contraction section onto contractor.Options.
func (cfg Config) ContractorOptions() contractor.Options {
	opts := contractor.DefaultOptions()
	if cfg.Contraction.NumWorkers > 0 {
		opts.NumWorkers = cfg.Contraction.NumWorkers
	}
	if cfg.Contraction.HopLimit > 0 {
		opts.HopLimit = cfg.Contraction.HopLimit
	}
	if cfg.Contraction.SimulationSettleLimit > 0 {
		opts.SimulationSettleLimit = cfg.Contraction.SimulationSettleLimit
	}
	if cfg.Contraction.ContractionSettleLimit > 0 {
		opts.ContractionSettleLimit = cfg.Contraction.ContractionSettleLimit
	}
	if cfg.Contraction.CompactionFraction > 0 {
		opts.CompactionFraction = cfg.Contraction.CompactionFraction
	}
	return opts
}

// Package config loads the allocation core's configuration the way the
// teacher's internal/config package does: a nested struct unmarshalled by
// viper from a YAML file plus environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for an auctioneer or bidder process.
type Config struct {
	Node     NodeConfig     `yaml:"node" mapstructure:"node"`
	Bus      BusConfig      `yaml:"bus" mapstructure:"bus"`
	Round    RoundConfig    `yaml:"round" mapstructure:"round"`
	Bidding  BiddingConfig  `yaml:"bidding_rule" mapstructure:"bidding_rule"`
	STN      STNConfig      `yaml:"stn" mapstructure:"stn"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// NodeConfig identifies the process: an auctioneer has no RobotID, a bidder
// does.
type NodeConfig struct {
	RobotID string `yaml:"robot_id" mapstructure:"robot_id"`
}

// BusConfig addresses the external pub/sub transport (§6 of the spec; the
// transport itself is out of scope, this is only the dial address).
type BusConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
}

// RoundConfig configures round timing and the alternative-timeslot
// escalation path.
type RoundConfig struct {
	RoundTime             time.Duration `yaml:"round_time" mapstructure:"round_time"`
	AlternativeTimeslots  bool          `yaml:"alternative_timeslots" mapstructure:"alternative_timeslots"`
}

// BiddingConfig names the bidding-rule policy pair (§4.3, §6).
type BiddingConfig struct {
	Robustness string `yaml:"robustness" mapstructure:"robustness"`
	Temporal   string `yaml:"temporal" mapstructure:"temporal"`
}

// STNConfig names the STN solver variant and its confidence width.
type STNConfig struct {
	Solver  string  `yaml:"stp_solver" mapstructure:"stp_solver"`
	KSigma  float64 `yaml:"k_sigma" mapstructure:"k_sigma"`
}

// StoreConfig is the DSN for the persistence store (§6).
type StoreConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration defaults named in spec.md §6:
// round_time=5s, alternative_timeslots=false, k_sigma=2.
func Default() *Config {
	return &Config{
		Round: RoundConfig{
			RoundTime:            5 * time.Second,
			AlternativeTimeslots: false,
		},
		Bidding: BiddingConfig{
			Robustness: "srea",
			Temporal:   "completion_time",
		},
		STN: STNConfig{
			Solver: "fpc",
			KSigma: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configFile (if non-empty) and environment variables prefixed
// MRTA_ (e.g. MRTA_NODE_ROBOT_ID) over the defaults, mirroring the teacher's
// viper.Unmarshal bootstrap in internal/config/config.go. Every key is
// registered with viper as a default so its environment variable is read
// even when the config file does not set it.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MRTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, val := range map[string]any{
		"node.robot_id":               cfg.Node.RobotID,
		"bus.address":                 cfg.Bus.Address,
		"round.round_time":            cfg.Round.RoundTime,
		"round.alternative_timeslots": cfg.Round.AlternativeTimeslots,
		"bidding_rule.robustness":     cfg.Bidding.Robustness,
		"bidding_rule.temporal":       cfg.Bidding.Temporal,
		"stn.stp_solver":              cfg.STN.Solver,
		"stn.k_sigma":                 cfg.STN.KSigma,
		"store.dsn":                   cfg.Store.DSN,
		"logging.level":               cfg.Logging.Level,
		"logging.format":              cfg.Logging.Format,
	} {
		v.SetDefault(key, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Package dmclockconfig loads and validates the configuration for the
// dmclockbench demo binary via viper and struct-tag validation.
package dmclockconfig

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ClientConfig is one statically-configured client's (reservation,
// weight, limit) triple, expressed in requests/second; zero means
// "unset" for that dimension (spec §2's ClientInfo semantics).
type ClientConfig struct {
	Reservation float64
	Weight      float64
	Limit       float64
}

// CleanerConfig mirrors dmclock.CleanerConfig for config-file loading.
type CleanerConfig struct {
	IdleAge   time.Duration `validate:"required"`
	EraseAge  time.Duration `validate:"required"`
	CheckTime time.Duration `validate:"required"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool
	ListenAddress string `validate:"required_if=Enabled true"`
}

// Configuration is the dmclockbench demo binary's top-level config,
// loaded from config/dmclockbench/config.yaml, or, when user-specified
// config files are given, from those files instead, layered in order
// (spec §1.1 ambient config section).
type Configuration struct {
	// Facade selects which façade the demo drives: "pull" or "push".
	Facade string `validate:"required,oneof=pull push"`
	// UseHeap selects the indexed-heap selector; otherwise the indexed
	// vector selector is used (spec §4.3).
	UseHeap bool
	// AllowLimitBreak enables spec §4.2 step 5.
	AllowLimitBreak bool
	// Clients maps a client id to its static (reservation, weight,
	// limit) triple.
	Clients map[string]ClientConfig `validate:"required,dive"`
	Cleaner CleanerConfig
	Metrics MetricsConfig
	LogLevel string `validate:"omitempty,oneof=trace debug info warn error"`
}

// Validate runs struct-tag validation over the loaded configuration.
func (c Configuration) Validate() error {
	return validator.New().Struct(c)
}

// Load reads config/dmclockbench/config.yaml (or any paths in
// userSpecifiedConfigs) via viper, unmarshals into a Configuration and
// validates it. Multiple userSpecifiedConfigs layer in order, later
// files overriding earlier ones.
func Load(defaultPath string, userSpecifiedConfigs []string) (Configuration, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetEnvPrefix("DMCLOCK")
	v.AutomaticEnv()

	var config Configuration
	if len(userSpecifiedConfigs) == 0 {
		v.AddConfigPath(defaultPath)
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
				return config, err
			}
			log.WithField("path", defaultPath).Warn("dmclockbench: no config file found, using defaults and environment")
		}
	} else {
		// Later paths override earlier ones.
		for i, p := range userSpecifiedConfigs {
			v.SetConfigFile(p)
			var err error
			if i == 0 {
				err = v.ReadInConfig()
			} else {
				err = v.MergeInConfig()
			}
			if err != nil {
				return config, err
			}
		}
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// MustLoad is Load, exiting the process on failure, for callers (cmd/)
// that have no recovery path of their own.
func MustLoad(defaultPath string, userSpecifiedConfigs []string) Configuration {
	config, err := Load(defaultPath, userSpecifiedConfigs)
	if err != nil {
		log.WithError(err).Error("dmclockbench: failed to load configuration")
		os.Exit(1)
	}
	return config
}

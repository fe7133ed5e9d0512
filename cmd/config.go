package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the server settings and the configured integration instances.
type Config struct {
	HTTPAddress string

	// UpstreamTimeout bounds every outbound call to an integrated service.
	UpstreamTimeout time.Duration

	// CredentialSafetyBuffer is subtracted from credential lifetimes so a
	// session is never used right at its server-side expiry.
	CredentialSafetyBuffer time.Duration

	Instances []InstanceConfig
}

// InstanceConfig is the on-disk shape of one integration instance.
type InstanceConfig struct {
	ID   string `mapstructure:"id"`
	Type string `mapstructure:"type"`

	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	TLS       bool   `mapstructure:"tls"`
	VerifyTLS bool   `mapstructure:"verify_tls"`

	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`

	Extra map[string]string `mapstructure:"extra"`
}

// LoadConfig loads configuration from files and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("CredentialSafetyBuffer", "30s")

	v.AutomaticEnv()
	v.SetEnvPrefix("PULSEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("pulseboard_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.pulseboard")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	seen := map[string]bool{}

	for _, instance := range config.Instances {
		if instance.ID == "" {
			return fmt.Errorf("every instance needs an id")
		}

		if seen[instance.ID] {
			return fmt.Errorf("duplicate instance id %q", instance.ID)
		}
		seen[instance.ID] = true

		if instance.Type == "" {
			return fmt.Errorf("instance %q has no type", instance.ID)
		}
	}

	return nil
}

// DomainConfig converts the on-disk instance shape into the adapter config.
func (c InstanceConfig) DomainConfig() domain.IntegrationConfig {
	return domain.IntegrationConfig{
		ID:           c.ID,
		Type:         domain.IntegrationType(c.Type),
		Host:         c.Host,
		Port:         c.Port,
		TLS:          c.TLS,
		VerifyTLS:    c.VerifyTLS,
		APIKey:       c.APIKey,
		ClientSecret: c.APISecret,
		Username:     c.Username,
		Password:     c.Password,
		Extra:        c.Extra,
	}
}

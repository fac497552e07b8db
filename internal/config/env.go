package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all configuration parameters for the application.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`
	// ServerSalt is mixed into password-derived signing keys. Changing it
	// invalidates every previously derived authentication public key.
	ServerSalt string `envconfig:"SERVER_SALT" default:"stellarid"`
	// TrustedOrigin is the origin the confirmation surface is served from.
	TrustedOrigin string `envconfig:"TRUSTED_ORIGIN" default:"https://id.stellar.expert"`
	DataDir       string `envconfig:"DATA_DIR" default:"./data"`
	// HorizonURL overrides the default Horizon server for the public network.
	HorizonURL        string `envconfig:"HORIZON_URL" default:"https://horizon.stellar.org"`
	MinPasswordLength int    `envconfig:"MIN_PASSWORD_LENGTH" default:"8"`
	// DemoAccount enables the permanently unlocked demo account at startup.
	DemoAccount bool `envconfig:"DEMO_ACCOUNT" default:"true"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetServerSalt returns the signing-key derivation salt
func GetServerSalt() string {
	return Get().ServerSalt
}

// GetTrustedOrigin returns the confirmation surface origin
func GetTrustedOrigin() string {
	return Get().TrustedOrigin
}

// GetDataDir returns the local store directory
func GetDataDir() string {
	return Get().DataDir
}

// GetHorizonURL returns the default Horizon server URL
func GetHorizonURL() string {
	return Get().HorizonURL
}

// GetMinPasswordLength returns the account password policy minimum
func GetMinPasswordLength() int {
	return Get().MinPasswordLength
}

// GetDemoAccount reports whether the demo account is enabled
func GetDemoAccount() bool {
	return Get().DemoAccount
}

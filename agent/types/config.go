package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/transport"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. ADL_OUTPUTDIR or
	// ADL_TRANSPORT_TIMEOUT.
	EnvPrefix = "ADL"

	DefaultConfigName = "config.yaml"
	defaultDataDir    = ".adl"
	defaultRetries    = 2
)

// Config struct
type Config struct {
	DataDir              string          `mapstructure:"dataDir" validate:"required"`
	OutputDir            string          `mapstructure:"outputDir" validate:"required"`
	ActivationServiceURL string          `mapstructure:"activationServiceUrl" validate:"required,url"`
	LicenseServiceURL    string          `mapstructure:"licenseServiceUrl" validate:"required,url"`
	Transport            TransportConfig `mapstructure:"transport"`
	Client               ClientConfig    `mapstructure:"client"`
}

type TransportConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries int           `mapstructure:"retries" validate:"gte=0,lte=10"`
}

// ClientConfig is what the agent reports about itself on activation.
type ClientConfig struct {
	OS      string `mapstructure:"os" validate:"required"`
	Locale  string `mapstructure:"locale" validate:"required"`
	Version string `mapstructure:"version" validate:"required"`
}

func (c ClientConfig) Info() adept.ClientInfo {
	return adept.ClientInfo{OS: c.OS, Locale: c.Locale, Version: c.Version}
}

// ConfigManager interface
type ConfigManager interface {
	LoadAndValidateConfig() (*Config, error)
}

// configManager implementation
type configManager struct {
	validator      *validator.Validate
	configFilePath string
	optional       bool
}

// NewConfigManager creates a new ConfigManager. An empty path selects
// ~/.adl/config.yaml, which may be absent.
func NewConfigManager(completeFilePath string) ConfigManager {
	cm := &configManager{
		validator:      validator.New(),
		configFilePath: completeFilePath,
	}
	if completeFilePath == "" {
		cm.configFilePath = filepath.Join(DefaultDataDir(), DefaultConfigName)
		cm.optional = true
	}
	return cm
}

// DefaultDataDir is ~/.adl, or ./.adl when no home directory is known.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDir
	}
	return filepath.Join(home, defaultDataDir)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataDir", DefaultDataDir())
	v.SetDefault("outputDir", ".")
	v.SetDefault("activationServiceUrl", adept.DefaultBaseURL)
	v.SetDefault("licenseServiceUrl", adept.DefaultBaseURL)
	v.SetDefault("transport.timeout", transport.DefaultTimeout)
	v.SetDefault("transport.retries", defaultRetries)
	v.SetDefault("client.os", adept.DefaultClientInfo.OS)
	v.SetDefault("client.locale", adept.DefaultClientInfo.Locale)
	v.SetDefault("client.version", adept.DefaultClientInfo.Version)
}

// LoadAndValidateConfig loads the configuration
func (cm *configManager) LoadAndValidateConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := cm.readConfigFile(v); err != nil {
		return nil, ConfigError(AgentOperationReadingConfig, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, ConfigError(AgentOperationReadingConfig, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	// Validate Config
	if err := cm.validateConfig(&config); err != nil {
		return nil, ConfigError(AgentOperationReadingValidatingConfig, err)
	}

	return &config, nil
}

func (cm *configManager) readConfigFile(v *viper.Viper) error {
	if _, err := os.Stat(cm.configFilePath); err != nil {
		if cm.optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetConfigFile(cm.configFilePath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// validateConfig validates the configuration
func (cm *configManager) validateConfig(config *Config) error {
	err := cm.validator.Struct(config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/KimApps/ether/pkg/logger"
)

const (
	// Environment constants
	Production  = "production"
	Development = "development"

	defaultListenAddr        = ":8480"
	defaultStorageType       = "badger"
	defaultBadgerDBPath      = "."
	defaultQuoteTimeoutSecs  = 10
	defaultQuoteRetries      = 3
	defaultWCNamespace       = "eip155:1"
	defaultWCAccount         = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	defaultWCSubjectPrefix   = "wc"

	EnvConfigFile = "ETHER_CONFIG_FILE"
)

type Config struct {
	Consul *ConsulConfig `mapstructure:"consul"`
	NATs   *NATsConfig   `mapstructure:"nats"`

	Environment string `mapstructure:"environment"`

	// HTTP API
	ListenAddr string `mapstructure:"listen_addr"`

	// External wallet backend issuing quotations and accepting submissions
	BackendURL       string `mapstructure:"backend_url"`
	BackendAPIKey    string `mapstructure:"backend_api_key"`
	QuoteTimeoutSecs int    `mapstructure:"quote_timeout_seconds"`
	QuoteRetries     int    `mapstructure:"quote_retries"`

	// Session store
	StorageType    string `mapstructure:"storage_type"`
	DBPath         string `mapstructure:"db_path"`
	BadgerPassword string `mapstructure:"badger_password"`

	// WalletConnect relay
	WCSubjectPrefix string `mapstructure:"wc_subject_prefix"`
	WCNamespace     string `mapstructure:"wc_namespace"`
	WCAccount       string `mapstructure:"wc_account"`
}

type ConsulConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

type NATsConfig struct {
	URL      string     `mapstructure:"url"`
	Username string     `mapstructure:"username"`
	Password string     `mapstructure:"password"`
	TLS      *TLSConfig `mapstructure:"tls"`
}

type TLSConfig struct {
	ClientCert string `mapstructure:"client_cert"`
	ClientKey  string `mapstructure:"client_key"`
	CACert     string `mapstructure:"ca_cert"`
}

var (
	app *Config
	mu  sync.RWMutex
)

func initConfig() error {
	viper.SetEnvPrefix("ETHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("environment", Development)
	viper.SetDefault("listen_addr", defaultListenAddr)
	viper.SetDefault("storage_type", defaultStorageType)
	viper.SetDefault("db_path", defaultBadgerDBPath)
	viper.SetDefault("quote_timeout_seconds", defaultQuoteTimeoutSecs)
	viper.SetDefault("quote_retries", defaultQuoteRetries)
	viper.SetDefault("wc_subject_prefix", defaultWCSubjectPrefix)
	viper.SetDefault("wc_namespace", defaultWCNamespace)
	viper.SetDefault("wc_account", defaultWCAccount)

	configFile := os.Getenv(EnvConfigFile)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/ether/")
		viper.AddConfigPath("$HOME/.ether/")
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("viper read config: %w", err)
	}

	return nil
}

func SetEnvConfigPath(configPath string) {
	if configPath != "" {
		os.Setenv(EnvConfigFile, configPath)
	}
}

func LoadConfig() (*Config, error) {
	var cfg Config
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateEnvironment(cfg.Environment); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := validateStorageType(cfg.StorageType); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	setConfig(&cfg)
	return &cfg, nil
}

func Load() (*Config, error) {
	if err := initConfig(); err != nil {
		return nil, err
	}
	return LoadConfig()
}

func validateEnvironment(environment string) error {
	validEnvironments := []string{Production, Development}

	if !slices.Contains(validEnvironments, environment) {
		return fmt.Errorf("invalid environment '%s'. Must be one of: %s", environment, strings.Join(validEnvironments, ", "))
	}
	return nil
}

func validateStorageType(storageType string) error {
	validTypes := []string{"badger", "consul"}

	if !slices.Contains(validTypes, storageType) {
		return fmt.Errorf("invalid storage_type '%s'. Must be one of: %s", storageType, strings.Join(validTypes, ", "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = Development
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.StorageType == "" {
		cfg.StorageType = defaultStorageType
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultBadgerDBPath
	}
	if cfg.QuoteTimeoutSecs == 0 {
		cfg.QuoteTimeoutSecs = defaultQuoteTimeoutSecs
	}
	if cfg.QuoteRetries == 0 {
		cfg.QuoteRetries = defaultQuoteRetries
	}
	if cfg.WCSubjectPrefix == "" {
		cfg.WCSubjectPrefix = defaultWCSubjectPrefix
	}
	if cfg.WCNamespace == "" {
		cfg.WCNamespace = defaultWCNamespace
	}
	if cfg.WCAccount == "" {
		cfg.WCAccount = defaultWCAccount
	}
}

func setConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	app = cfg
}

// GetConfig returns the in-memory application configuration.
// It exits if the configuration has not been loaded yet.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if app == nil {
		logger.Fatal("configuration not loaded", nil)
	}
	return app
}

// Update applies the provided function while holding the configuration write lock.
func Update(fn func(cfg *Config)) {
	mu.Lock()
	defer mu.Unlock()
	if app == nil {
		panic("configuration not loaded")
	}
	fn(app)
}

func Environment() string {
	return GetConfig().Environment
}

func IsProduction() bool {
	return strings.EqualFold(Environment(), Production)
}

func ListenAddr() string {
	return GetConfig().ListenAddr
}

func BackendURL() string {
	return GetConfig().BackendURL
}

func NATs() *NATsConfig {
	return GetConfig().NATs
}

func StorageType() string {
	return GetConfig().StorageType
}

func DBPath() string {
	return GetConfig().DBPath
}

func BadgerPassword() string {
	return GetConfig().BadgerPassword
}

func SetBadgerPassword(password string) {
	Update(func(cfg *Config) {
		cfg.BadgerPassword = password
	})
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsulConfig(t *testing.T) {
	config := ConsulConfig{
		Address:  "consul.example.com:8500",
		Username: "consul_user",
		Password: "consul_pass",
		Token:    "consul_token",
	}

	assert.Equal(t, "consul.example.com:8500", config.Address)
	assert.Equal(t, "consul_user", config.Username)
	assert.Equal(t, "consul_pass", config.Password)
	assert.Equal(t, "consul_token", config.Token)
}

func TestNATsConfig(t *testing.T) {
	config := NATsConfig{
		URL:      "nats://nats.example.com:4222",
		Username: "nats_user",
		Password: "nats_pass",
	}

	assert.Equal(t, "nats://nats.example.com:4222", config.URL)
	assert.Equal(t, "nats_user", config.Username)
	assert.Equal(t, "nats_pass", config.Password)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, Development, config.Environment)
	assert.Equal(t, defaultListenAddr, config.ListenAddr)
	assert.Equal(t, defaultStorageType, config.StorageType)
	assert.Equal(t, defaultBadgerDBPath, config.DBPath)
	assert.Equal(t, defaultQuoteTimeoutSecs, config.QuoteTimeoutSecs)
	assert.Equal(t, defaultQuoteRetries, config.QuoteRetries)
	assert.Equal(t, defaultWCSubjectPrefix, config.WCSubjectPrefix)
	assert.Equal(t, defaultWCNamespace, config.WCNamespace)
	assert.Equal(t, defaultWCAccount, config.WCAccount)
}

func TestConfig_ApplyDefaults_PreservesExisting(t *testing.T) {
	config := &Config{
		Environment: Production,
		ListenAddr:  ":9000",
		StorageType: "consul",
	}
	applyDefaults(config)

	assert.Equal(t, Production, config.Environment)
	assert.Equal(t, ":9000", config.ListenAddr)
	assert.Equal(t, "consul", config.StorageType)
}

func TestValidateEnvironment(t *testing.T) {
	assert.NoError(t, validateEnvironment(Production))
	assert.NoError(t, validateEnvironment(Development))
	assert.Error(t, validateEnvironment("staging"))
	assert.Error(t, validateEnvironment(""))
}

func TestValidateStorageType(t *testing.T) {
	assert.NoError(t, validateStorageType("badger"))
	assert.NoError(t, validateStorageType("consul"))
	assert.Error(t, validateStorageType("postgres"))
}

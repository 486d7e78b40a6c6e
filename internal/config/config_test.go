package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "paygen_db", cfg.Database.Database)
				assert.Equal(t, "paygen_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "webhook_events", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "https://sepolia.base.org", cfg.Chain.RPCURL)
				assert.Equal(t, int64(10), cfg.Chain.AmountToleranceBps)
				assert.Equal(t, 30*time.Second, cfg.Providers.Text.Timeout)
				assert.Equal(t, 60*time.Second, cfg.Providers.Image.Timeout)
				assert.Equal(t, "configs/catalog.yaml", cfg.Catalog.Path)
				assert.Equal(t, 3, cfg.Notifier.MaxAttempts)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "paygen_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "paygen_events"},
			Queue:    QueueConfig{Name: "webhook_events"},
		},
		Chain: ChainConfig{
			RPCURL:             "https://sepolia.base.org",
			TokenContract:      "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			RecipientAddress:   "0x1111111111111111111111111111111111111111",
			AmountToleranceBps: 10,
		},
		Providers: ProvidersConfig{
			Text:  TextProviderConfig{BaseURL: "https://api.openai.com"},
			Image: ImageProviderConfig{BaseURL: "https://api.openai.com"},
		},
		Catalog: CatalogConfig{Path: "configs/catalog.yaml"},
		Notifier: NotifierConfig{
			Concurrency:    5,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			AttemptTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "missing rabbitmq exchange",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing rpc url",
			mutate:    func(c *Config) { c.Chain.RPCURL = "" },
			wantErr:   true,
			errString: "chain rpc_url is required",
		},
		{
			name:      "missing token contract",
			mutate:    func(c *Config) { c.Chain.TokenContract = "" },
			wantErr:   true,
			errString: "chain token_contract is required",
		},
		{
			name:      "missing recipient address",
			mutate:    func(c *Config) { c.Chain.RecipientAddress = "" },
			wantErr:   true,
			errString: "chain recipient_address is required",
		},
		{
			name:      "negative tolerance",
			mutate:    func(c *Config) { c.Chain.AmountToleranceBps = -1 },
			wantErr:   true,
			errString: "amount_tolerance_bps must not be negative",
		},
		{
			name:      "missing text provider",
			mutate:    func(c *Config) { c.Providers.Text.BaseURL = "" },
			wantErr:   true,
			errString: "text provider base_url is required",
		},
		{
			name:      "missing catalog path",
			mutate:    func(c *Config) { c.Catalog.Path = "" },
			wantErr:   true,
			errString: "catalog path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateNotifierConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Notifier.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency must be greater than 0",
		},
		{
			name:      "zero max attempts",
			mutate:    func(c *Config) { c.Notifier.MaxAttempts = 0 },
			wantErr:   true,
			errString: "max_attempts must be greater than 0",
		},
		{
			name:      "zero initial backoff",
			mutate:    func(c *Config) { c.Notifier.InitialBackoff = 0 },
			wantErr:   true,
			errString: "initial_backoff must be greater than 0",
		},
		{
			name:      "zero attempt timeout",
			mutate:    func(c *Config) { c.Notifier.AttemptTimeout = 0 },
			wantErr:   true,
			errString: "attempt_timeout must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateNotifierConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

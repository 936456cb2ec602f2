package config

import (
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	layout, err := cfg.TransparentLayout()
	require.NoError(t, err)
	assert.Equal(t, address.DefaultTransparentLayout(), layout)
}

func Test_Config_TransparentLayout(t *testing.T) {
	t.Run("hex tag with prefix position", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TransparentTag = "0x65766d3a"
		cfg.TransparentTagPosition = "PREFIX"

		layout, err := cfg.TransparentLayout()
		require.NoError(t, err)
		assert.Equal(t, []byte("evm:"), layout.Tag)
		assert.Equal(t, address.TagPrefix, layout.Position)
	})

	t.Run("unknown position", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TransparentTagPosition = "middle"
		_, err := cfg.TransparentLayout()
		assert.Error(t, err)
	})

	t.Run("tag too long", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TransparentTag = "@evm_address_too_long"
		_, err := cfg.TransparentLayout()
		assert.Error(t, err)
	})
}

func Test_Config_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing node url",
			mutate:  func(c *Config) { c.NodeUrl = "" },
			wantErr: "nodeUrl",
		},
		{
			name:    "unsupported protocol version",
			mutate:  func(c *Config) { c.ProtocolVersion = "3" },
			wantErr: "protocolVersion",
		},
		{
			name:    "ss58 prefix out of range",
			mutate:  func(c *Config) { c.SS58Prefix = 20000 },
			wantErr: "ss58Prefix",
		},
		{
			name:    "invalid wallet account",
			mutate:  func(c *Config) { c.Signer.WalletAccount = "not-an-address" },
			wantErr: "signer.walletAccount",
		},
		{
			name: "two sponsor sources",
			mutate: func(c *Config) {
				c.Sponsor.SecretUri = "//Alice"
				c.Sponsor.PrivateKey = "0x01"
			},
			wantErr: "sponsor",
		},
		{
			name:    "kms sponsor without environment",
			mutate:  func(c *Config) { c.Sponsor.KmsKeyId = "alias/sponsor" },
			wantErr: "sponsor.environment",
		},
		{
			name:    "badger without path",
			mutate:  func(c *Config) { c.Persistence.Type = PersistenceTypeBadger },
			wantErr: "persistence.badgerPath",
		},
		{
			name: "redis db out of range",
			mutate: func(c *Config) {
				c.Persistence.Type = PersistenceTypeRedis
				c.Persistence.RedisAddress = "localhost:6379"
				c.Persistence.RedisDB = 16
			},
			wantErr: "persistence.redisDb",
		},
		{
			name:    "unknown persistence type",
			mutate:  func(c *Config) { c.Persistence.Type = "postgres" },
			wantErr: "persistence.type",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("full configuration", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ProtocolVersion = ProtocolVersionTransparent
		cfg.Signer.PrivateKey = tests.DemoPrivateKeyHex
		cfg.Sponsor.SecretUri = tests.DemoSponsorMnemonic
		cfg.Persistence = PersistenceConfig{
			Type:         PersistenceTypeRedis,
			RedisAddress: "localhost:6379",
			RedisDB:      15,
		}
		assert.NoError(t, cfg.Validate())
		assert.True(t, cfg.Sponsor.IsSet())
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NodeUrl = ""
		cfg.Persistence.Type = PersistenceTypeBadger
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nodeUrl")
		assert.Contains(t, err.Error(), "persistence.badgerPath")
	})
}

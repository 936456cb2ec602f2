package config

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the evm-mapping CLI
const (
	EnvNodeUrl                = "EVM_MAPPING_NODE_URL"
	EnvSS58Prefix             = "EVM_MAPPING_SS58_PREFIX"
	EnvProtocolVersion        = "EVM_MAPPING_PROTOCOL_VERSION"
	EnvTransparentTag         = "EVM_MAPPING_TRANSPARENT_TAG"
	EnvTransparentTagPosition = "EVM_MAPPING_TRANSPARENT_TAG_POSITION"
	EnvRequestsPerSecond      = "EVM_MAPPING_REQUESTS_PER_SECOND"
	EnvDebug                  = "EVM_MAPPING_DEBUG"

	EnvPrivateKey      = "EVM_MAPPING_PRIVATE_KEY"
	EnvWalletUrl       = "EVM_MAPPING_WALLET_URL"
	EnvWalletAccount   = "EVM_MAPPING_WALLET_ACCOUNT"
	EnvTypedDataMethod = "EVM_MAPPING_TYPED_DATA_METHOD"

	EnvSponsorSecretUri   = "EVM_MAPPING_SPONSOR_SECRET_URI"
	EnvSponsorKmsKeyId    = "EVM_MAPPING_SPONSOR_KMS_KEY_ID"
	EnvSponsorPrivateKey  = "EVM_MAPPING_SPONSOR_PRIVATE_KEY"
	EnvSponsorEnvironment = "EVM_MAPPING_SPONSOR_ENVIRONMENT"
	EnvAwsRegion          = "EVM_MAPPING_AWS_REGION"

	EnvPersistenceType = "EVM_MAPPING_PERSISTENCE_TYPE"
	EnvBadgerPath      = "EVM_MAPPING_BADGER_PATH"
	EnvRedisAddress    = "EVM_MAPPING_REDIS_ADDRESS"
	EnvRedisPassword   = "EVM_MAPPING_REDIS_PASSWORD"
	EnvRedisDB         = "EVM_MAPPING_REDIS_DB"
	EnvRedisKeyPrefix  = "EVM_MAPPING_REDIS_KEY_PREFIX"
)

type ProtocolVersion string

func (p ProtocolVersion) String() string {
	return string(p)
}

const (
	// ProtocolVersionAuto defers to the version reported by the chain module
	ProtocolVersionAuto        ProtocolVersion = ""
	ProtocolVersionHashBased   ProtocolVersion = address.ProtocolVersionHashBased
	ProtocolVersionTransparent ProtocolVersion = address.ProtocolVersionTransparent
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

const (
	TagPositionSuffix = "suffix"
	TagPositionPrefix = "prefix"
)

// SignerConfig selects the EVM key that signs meta-calls. A private key wins
// over a wallet when both are set.
type SignerConfig struct {
	PrivateKey      string `json:"privateKey" yaml:"privateKey"`
	WalletUrl       string `json:"walletUrl" yaml:"walletUrl"`
	WalletAccount   string `json:"walletAccount" yaml:"walletAccount"`
	TypedDataMethod string `json:"typedDataMethod" yaml:"typedDataMethod"`
}

// SponsorConfig selects the key that issues cheques. Exactly one source may be
// set: an sr25519 secret URI, an AWS KMS key id or a raw secp256k1 key.
type SponsorConfig struct {
	SecretUri   string `json:"secretUri" yaml:"secretUri"`
	KmsKeyId    string `json:"kmsKeyId" yaml:"kmsKeyId"`
	PrivateKey  string `json:"privateKey" yaml:"privateKey"`
	Environment string `json:"environment" yaml:"environment"`
	AwsRegion   string `json:"awsRegion" yaml:"awsRegion"`
}

func (s *SponsorConfig) IsSet() bool {
	return s.SecretUri != "" || s.KmsKeyId != "" || s.PrivateKey != ""
}

type PersistenceConfig struct {
	Type           PersistenceType `json:"type" yaml:"type"`
	BadgerPath     string          `json:"badgerPath" yaml:"badgerPath"`
	RedisAddress   string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string          `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int             `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string          `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

type Config struct {
	NodeUrl         string          `json:"nodeUrl" yaml:"nodeUrl"`
	SS58Prefix      uint16          `json:"ss58Prefix" yaml:"ss58Prefix"`
	ProtocolVersion ProtocolVersion `json:"protocolVersion" yaml:"protocolVersion"`

	// TransparentTag is the raw tag, or 0x-prefixed hex for non-printable tags
	TransparentTag         string `json:"transparentTag" yaml:"transparentTag"`
	TransparentTagPosition string `json:"transparentTagPosition" yaml:"transparentTagPosition"`

	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Debug             bool    `json:"debug" yaml:"debug"`

	Signer      SignerConfig      `json:"signer" yaml:"signer"`
	Sponsor     SponsorConfig     `json:"sponsor" yaml:"sponsor"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
}

func DefaultConfig() *Config {
	return &Config{
		NodeUrl:                "ws://127.0.0.1:9944",
		SS58Prefix:             address.DefaultSS58Prefix,
		TransparentTag:         address.DefaultTransparentTag,
		TransparentTagPosition: TagPositionSuffix,
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
	}
}

// TransparentLayout converts the configured tag into the byte layout used for
// transparent account ids
func (c *Config) TransparentLayout() (address.TransparentLayout, error) {
	tag := []byte(c.TransparentTag)
	if strings.HasPrefix(c.TransparentTag, "0x") {
		decoded, err := hexutil.Decode(c.TransparentTag)
		if err != nil {
			return address.TransparentLayout{}, fmt.Errorf("invalid transparent tag hex: %w", err)
		}
		tag = decoded
	}

	var position address.TagPosition
	switch strings.ToLower(c.TransparentTagPosition) {
	case "", TagPositionSuffix:
		position = address.TagSuffix
	case TagPositionPrefix:
		position = address.TagPrefix
	default:
		return address.TransparentLayout{}, fmt.Errorf("unknown tag position %q", c.TransparentTagPosition)
	}

	layout := address.TransparentLayout{Tag: tag, Position: position}
	if err := layout.Validate(); err != nil {
		return address.TransparentLayout{}, err
	}
	return layout, nil
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var allErrors field.ErrorList

	if c.NodeUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("nodeUrl"), "nodeUrl is required"))
	}
	if c.SS58Prefix >= 16384 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("ss58Prefix"), c.SS58Prefix, "ss58Prefix must be below 16384"))
	}
	switch c.ProtocolVersion {
	case ProtocolVersionAuto, ProtocolVersionHashBased, ProtocolVersionTransparent:
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("protocolVersion"), c.ProtocolVersion,
			[]string{ProtocolVersionHashBased.String(), ProtocolVersionTransparent.String()}))
	}
	if _, err := c.TransparentLayout(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("transparentTag"), c.TransparentTag, err.Error()))
	}
	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "requestsPerSecond cannot be negative"))
	}

	allErrors = append(allErrors, c.Signer.validate(field.NewPath("signer"))...)
	allErrors = append(allErrors, c.Sponsor.validate(field.NewPath("sponsor"))...)
	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (s *SignerConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if s.PrivateKey != "" {
		if _, err := hexutil.Decode(ensureHexPrefix(s.PrivateKey)); err != nil {
			allErrors = append(allErrors, field.Invalid(path.Child("privateKey"), "<redacted>", "privateKey must be hex"))
		}
	}
	if s.WalletAccount != "" && !common.IsHexAddress(s.WalletAccount) {
		allErrors = append(allErrors, field.Invalid(path.Child("walletAccount"), s.WalletAccount, "walletAccount must be an EVM address"))
	}
	return allErrors
}

func (s *SponsorConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	sources := 0
	for _, v := range []string{s.SecretUri, s.KmsKeyId, s.PrivateKey} {
		if v != "" {
			sources++
		}
	}
	if sources > 1 {
		allErrors = append(allErrors, field.Forbidden(path, "only one of secretUri, kmsKeyId and privateKey may be set"))
	}
	if s.KmsKeyId != "" && s.Environment == "" {
		allErrors = append(allErrors, field.Required(path.Child("environment"), "environment is required for KMS sponsor keys"))
	}
	return allErrors
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch p.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if p.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if p.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if p.RedisDB < 0 || p.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), p.RedisDB, "redisDb must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type,
			[]string{PersistenceTypeMemory.String(), PersistenceTypeBadger.String(), PersistenceTypeRedis.String()}))
	}
	return allErrors
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") {
		return s
	}
	return "0x" + s
}

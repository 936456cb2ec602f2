package localKeyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/keyGenerator"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sponsorKey struct {
	privateKey *ecdsa.PrivateKey
	name       string
	alias      string
}

// LocalKeyGenerator keeps sponsor keys in process memory. Keys are addressed
// by id or by alias, like their KMS counterparts.
type LocalKeyGenerator struct {
	logger *zap.Logger

	mu   sync.RWMutex
	keys map[string]*sponsorKey
}

var _ keyGenerator.IKeyGenerator = (*LocalKeyGenerator)(nil)

func NewLocalKeyGenerator(logger *zap.Logger) *LocalKeyGenerator {
	return &LocalKeyGenerator{
		logger: logger,
		keys:   make(map[string]*sponsorKey),
	}
}

func (l *LocalKeyGenerator) GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedECDSAKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate sponsor key: %w", err)
	}

	keyId := "local-key-" + uuid.New().String()
	if err := l.LoadPrivateKey(keyId, privateKey, keyName, aliasName); err != nil {
		return nil, err
	}
	return l.GetECDSAKeyById(ctx, keyId)
}

// resolve finds a key by id first and by alias second
func (l *LocalKeyGenerator) resolve(keyIdOrAlias string) (string, *sponsorKey, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if key, ok := l.keys[keyIdOrAlias]; ok {
		return keyIdOrAlias, key, nil
	}
	for id, key := range l.keys {
		if key.alias != "" && key.alias == keyIdOrAlias {
			return id, key, nil
		}
	}
	return "", nil, fmt.Errorf("sponsor key %s not found", keyIdOrAlias)
}

func (l *LocalKeyGenerator) GetECDSAKeyById(ctx context.Context, keyId string) (*keyGenerator.GeneratedECDSAKey, error) {
	id, key, err := l.resolve(keyId)
	if err != nil {
		return nil, err
	}
	return &keyGenerator.GeneratedECDSAKey{
		PublicKey: &key.privateKey.PublicKey,
		Address:   crypto.PubkeyToAddress(key.privateKey.PublicKey).String(),
		KeyId:     id,
	}, nil
}

func (l *LocalKeyGenerator) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}
	id, key, err := l.resolve(keyId)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, key.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", id, err)
	}
	l.logger.Debug("Signed digest with sponsor key", zap.String("keyId", id))
	return sig, nil
}

// LoadPrivateKey registers an existing key under keyId
func (l *LocalKeyGenerator) LoadPrivateKey(keyId string, privateKey *ecdsa.PrivateKey, keyName string, aliasName string) error {
	if privateKey == nil {
		return fmt.Errorf("%w: private key cannot be nil", types.ErrInvalidKeyMaterial)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.keys[keyId]; exists {
		return fmt.Errorf("sponsor key %s already exists", keyId)
	}
	l.keys[keyId] = &sponsorKey{privateKey: privateKey, name: keyName, alias: aliasName}

	l.logger.Info("Loaded sponsor key",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("address", crypto.PubkeyToAddress(privateKey.PublicKey).String()),
	)
	return nil
}

// LoadPrivateKeyFromHex is LoadPrivateKey for a hex key with optional 0x prefix
func (l *LocalKeyGenerator) LoadPrivateKeyFromHex(keyId string, privateKeyHex string, keyName string, aliasName string) error {
	privateKeyHex = strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidKeyMaterial, err)
	}
	return l.LoadPrivateKey(keyId, privateKey, keyName, aliasName)
}

// KeyIds lists the ids of every loaded key in order
func (l *LocalKeyGenerator) KeyIds() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.keys))
	for id := range l.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

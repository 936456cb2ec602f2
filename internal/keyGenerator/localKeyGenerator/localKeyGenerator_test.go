package localKeyGenerator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/internal/tests"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/logger"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*LocalKeyGenerator, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: true,
	})
	if err != nil {
		return nil, err
	}

	return NewLocalKeyGenerator(l), nil
}

func Test_LocalKeyGenerator(t *testing.T) {
	generator, err := setup()
	if err != nil {
		t.Fatalf("Failed to setup test: %v", err)
	}

	t.Run("Should generate ECDSA key successfully", func(t *testing.T) {
		result, err := generator.GenerateECDSAKey(context.Background(), "test-key-1", "test-alias-1")
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.NotNil(t, result.PublicKey)
		assert.True(t, strings.HasPrefix(result.KeyId, "local-key-"))
		assert.True(t, strings.HasPrefix(result.Address, "0x"))
		assert.Equal(t, 42, len(result.Address))

		compressed, err := result.GetCompressedPublicKey()
		require.NoError(t, err)
		assert.Contains(t, []byte{0x02, 0x03}, compressed[0])
	})

	t.Run("Should generate unique key IDs", func(t *testing.T) {
		keyIds := make(map[string]bool)
		for i := 0; i < 5; i++ {
			result, err := generator.GenerateECDSAKey(context.Background(), "test-key", "test-alias")
			require.NoError(t, err)
			assert.False(t, keyIds[result.KeyId], "Duplicate key ID generated: %s", result.KeyId)
			keyIds[result.KeyId] = true
		}
	})

	t.Run("Should sign digests recoverably", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(context.Background(), "signer", "signer")
		require.NoError(t, err)

		digest := crypto.Keccak256([]byte("cheque"))
		sig, err := generator.SignDigest(context.Background(), key.KeyId, digest)
		require.NoError(t, err)
		require.Len(t, sig, 65)
		assert.LessOrEqual(t, sig[64], byte(1))

		recovered, err := crypto.SigToPub(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, key.Address, crypto.PubkeyToAddress(*recovered).String())
	})

	t.Run("Should reject non-digest input", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(context.Background(), "signer", "signer")
		require.NoError(t, err)
		_, err = generator.SignDigest(context.Background(), key.KeyId, []byte("short"))
		require.Error(t, err)
	})

	t.Run("Should fail for unknown key", func(t *testing.T) {
		_, err := generator.GetECDSAKeyById(context.Background(), "missing")
		require.Error(t, err)
		_, err = generator.SignDigest(context.Background(), "missing", make([]byte, 32))
		require.Error(t, err)
	})

	t.Run("Should sign concurrently", func(t *testing.T) {
		key, err := generator.GenerateECDSAKey(context.Background(), "concurrent", "concurrent")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := generator.SignDigest(context.Background(), key.KeyId, crypto.Keccak256([]byte{byte(i)}))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})
}

func Test_HelperFunctions(t *testing.T) {
	generator, err := setup()
	require.NoError(t, err)

	t.Run("LoadPrivateKeyFromHex", func(t *testing.T) {
		require.NoError(t, generator.LoadPrivateKeyFromHex("demo", tests.DemoPrivateKeyHex, "demo", "demo-alias"))

		key, err := generator.GetECDSAKeyById(context.Background(), "demo")
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(tests.DemoEvmAddressHex), strings.ToLower(key.Address))

		compressed, err := key.GetCompressedPublicKey()
		require.NoError(t, err)
		assert.Equal(t, tests.DemoCompressedPublicKeyHex, compressed.Hex())

		byAlias, err := generator.GetECDSAKeyById(context.Background(), "demo-alias")
		require.NoError(t, err)
		assert.Equal(t, "demo", byAlias.KeyId)

		sig, err := generator.SignDigest(context.Background(), "demo-alias", crypto.Keccak256([]byte("cheque")))
		require.NoError(t, err)
		assert.Len(t, sig, 65)
	})

	t.Run("Duplicate key id is rejected", func(t *testing.T) {
		err := generator.LoadPrivateKeyFromHex("demo", tests.DemoPrivateKeyHex, "demo", "demo-alias")
		require.Error(t, err)
	})

	t.Run("Invalid key material is rejected", func(t *testing.T) {
		assert.ErrorIs(t, generator.LoadPrivateKeyFromHex("bad", "0xzz", "bad", "bad"), types.ErrInvalidKeyMaterial)
		assert.ErrorIs(t, generator.LoadPrivateKey("nil", nil, "nil", "nil"), types.ErrInvalidKeyMaterial)
	})

	t.Run("Key ids", func(t *testing.T) {
		assert.Equal(t, []string{"demo"}, generator.KeyIds())
	})
}

func Benchmark_SignDigest(b *testing.B) {
	generator, err := setup()
	if err != nil {
		b.Fatal(err)
	}
	key, err := generator.GenerateECDSAKey(context.Background(), "bench", "bench")
	if err != nil {
		b.Fatal(err)
	}
	digest := crypto.Keccak256([]byte("bench"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := generator.SignDigest(context.Background(), key.KeyId, digest); err != nil {
			b.Fatal(err)
		}
	}
}

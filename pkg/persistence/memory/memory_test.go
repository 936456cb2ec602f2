package memory

import (
	"sync"
	"testing"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/testutil"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence_PutAndGetCheque(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	psc := testutil.NewSignedCheque(1000, 0x22)

	key, err := mp.PutCheque(psc)
	require.NoError(t, err)

	expected, err := cheque.ContentKey(psc)
	require.NoError(t, err)
	assert.Equal(t, expected, key)

	loaded, err := mp.GetCheque(key)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, psc.Signer, loaded.Signer)
	assert.Equal(t, uint32(1000), loaded.Deadline)
	require.NotNil(t, loaded.Cheque)
	assert.True(t, psc.Cheque.Equal(&loaded.Cheque.Cheque))
}

func TestMemoryPersistence_GetCheque_NotFound(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	loaded, err := mp.GetCheque(types.Hash{0x01})
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryPersistence_PutCheque_Nil(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	_, err := mp.PutCheque(nil)
	require.Error(t, err)
}

func TestMemoryPersistence_PutCheque_Idempotent(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	psc := testutil.NewSignedCheque(50, 0x01)
	first, err := mp.PutCheque(psc)
	require.NoError(t, err)
	second, err := mp.PutCheque(psc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := mp.ListCheques()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryPersistence_ListCheques(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	for _, deadline := range []uint32{300, 100, 200} {
		_, err := mp.PutCheque(testutil.NewSignedCheque(deadline, 0x01))
		require.NoError(t, err)
	}
	_, err := mp.PutCheque(testutil.NewSignedCheque(150, 0x02))
	require.NoError(t, err)

	all, err := mp.ListCheques()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, uint32(100), all[0].Deadline)
	assert.Equal(t, uint32(150), all[1].Deadline)
	assert.Equal(t, uint32(300), all[3].Deadline)

	var signer types.AccountId
	for i := range signer {
		signer[i] = 0x01
	}
	bySigner, err := mp.ListChequesBySigner(signer)
	require.NoError(t, err)
	require.Len(t, bySigner, 3)
	for _, sc := range bySigner {
		assert.Equal(t, signer, sc.Signer)
	}
}

func TestMemoryPersistence_ListCheques_Empty(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	all, err := mp.ListCheques()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryPersistence_PruneExpired(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	for _, deadline := range []uint32{10, 20, 30} {
		_, err := mp.PutCheque(testutil.NewSignedCheque(deadline, 0x01))
		require.NoError(t, err)
	}

	removed, err := mp.PruneExpired(20)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := mp.ListCheques()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint32(20), all[0].Deadline)
}

func TestMemoryPersistence_Close(t *testing.T) {
	mp := NewMemoryPersistence()
	require.NoError(t, mp.HealthCheck())

	require.NoError(t, mp.Close())
	require.NoError(t, mp.Close())

	assert.Error(t, mp.HealthCheck())
	_, err := mp.PutCheque(testutil.NewSignedCheque(1, 0x01))
	assert.Error(t, err)
	_, err = mp.GetCheque(types.Hash{})
	assert.Error(t, err)
	_, err = mp.ListCheques()
	assert.Error(t, err)
	_, err = mp.PruneExpired(1)
	assert.Error(t, err)
}

func TestMemoryPersistence_ThreadSafety(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			psc := testutil.NewSignedCheque(uint32(i), byte(i))
			key, err := mp.PutCheque(psc)
			assert.NoError(t, err)
			_, err = mp.GetCheque(key)
			assert.NoError(t, err)
			_, err = mp.ListCheques()
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := mp.ListCheques()
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestMemoryPersistence_DeepCopy_Mutation(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	key, err := mp.PutCheque(testutil.NewSignedCheque(99, 0x01))
	require.NoError(t, err)

	loaded, err := mp.GetCheque(key)
	require.NoError(t, err)
	loaded.Encoded[0] = 0xff
	loaded.Deadline = 0

	again, err := mp.GetCheque(key)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), again.Deadline)
	assert.Equal(t, byte(99), again.Encoded[0])
}

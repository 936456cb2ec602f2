package recovery

import (
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// PersonalMessageHash is keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
func PersonalMessageHash(message []byte) types.Hash {
	return types.Hash(common.BytesToHash(accounts.TextHash(message)))
}

// RecoverFromPersonalMessage recovers the compressed key that produced sig over
// the personal-message form of message.
func RecoverFromPersonalMessage(message []byte, sig types.EvmSignature) (types.PublicKey, error) {
	return recoverDigest(PersonalMessageHash(message), sig)
}

// RecoverFromTypedDataSignature recovers the signer of an already computed
// typed-data digest.
func RecoverFromTypedDataSignature(digest types.Hash, sig types.EvmSignature) (types.PublicKey, error) {
	return recoverDigest(digest, sig)
}

func recoverDigest(digest types.Hash, sig types.EvmSignature) (types.PublicKey, error) {
	recid, err := sig.RecoveryBit()
	if err != nil {
		return types.PublicKey{}, err
	}
	raw := make([]byte, crypto.SignatureLength)
	copy(raw[0:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = recid

	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return types.PublicKey{}, errors.Wrapf(types.ErrRecoveryFailed, "%v", err)
	}
	compressed, err := address.PublicKeyFromECDSA(pub)
	if err != nil {
		return types.PublicKey{}, errors.Wrapf(types.ErrRecoveryFailed, "%v", err)
	}
	return compressed, nil
}

// VerifyAccount checks that pub maps to expected under the deriver's strategy
func VerifyAccount(pub types.PublicKey, deriver *address.Deriver, expected types.AccountId) error {
	got, err := deriver.AccountId(pub)
	if err != nil {
		return err
	}
	if got != expected {
		return errors.Wrapf(types.ErrSignatureMismatch, "recovered account %s, expected %s", got.Hex(), expected.Hex())
	}
	return nil
}

// VerifyEvmAddress checks that pub is the key behind the EVM address expected
func VerifyEvmAddress(pub types.PublicKey, expected common.Address) error {
	got, err := address.EvmAddress(pub)
	if err != nil {
		return err
	}
	if got != expected {
		return errors.Wrapf(types.ErrSignatureMismatch, "recovered address %s, expected %s", got.Hex(), expected.Hex())
	}
	return nil
}

// CallDataMessage is the personal message a wallet signs to authorize callData
// through the account abstraction module: the 0x-prefixed hex of the call.
func CallDataMessage(callData []byte) []byte {
	return []byte(hexutil.Encode(callData))
}

// RecoverEvmAddressFromCallData recovers the EVM address that authorized callData
func RecoverEvmAddressFromCallData(callData []byte, sig types.EvmSignature) (common.Address, error) {
	pub, err := RecoverFromPersonalMessage(CallDataMessage(callData), sig)
	if err != nil {
		return common.Address{}, err
	}
	return address.EvmAddress(pub)
}

// VerifyCallData checks that the owner of expected signed callData
func VerifyCallData(callData []byte, sig types.EvmSignature, expected common.Address) error {
	pub, err := RecoverFromPersonalMessage(CallDataMessage(callData), sig)
	if err != nil {
		return err
	}
	return VerifyEvmAddress(pub, expected)
}

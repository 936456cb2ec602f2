package sponsor

import (
	"context"

	"github.com/Layr-Labs/evm-account-mapping-go/pkg/address"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/cheque"
	"github.com/Layr-Labs/evm-account-mapping-go/pkg/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vedhavyas/go-subkey/v2/ed25519"
	"github.com/vedhavyas/go-subkey/v2/sr25519"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Issuer signs cheques on behalf of a sponsor
type Issuer struct {
	signer ISigner
	logger *zap.Logger
}

func NewIssuer(signer ISigner, logger *zap.Logger) *Issuer {
	return &Issuer{signer: signer, logger: logger}
}

func (i *Issuer) Signer() types.AccountId {
	return i.signer.AccountId()
}

// Issue signs the canonical encoding of c and wraps it as a PreSignedCheque
func (i *Issuer) Issue(ctx context.Context, c *cheque.Cheque) (*cheque.PreSignedCheque, error) {
	encoded, err := cheque.EncodeCheque(c)
	if err != nil {
		return nil, err
	}

	sig, err := i.signer.Sign(ctx, encoded)
	if err != nil {
		return nil, errors.Wrap(err, "sponsor failed to sign cheque")
	}
	multi, err := types.NewMultiSignature(i.signer.Scheme(), sig)
	if err != nil {
		return nil, err
	}

	psc := &cheque.PreSignedCheque{
		Cheque:    *c,
		Signature: multi,
		Signer:    i.signer.AccountId(),
	}
	i.logger.Sugar().Infow("Issued pre-signed cheque",
		"signer", psc.Signer.Hex(),
		"scheme", multi.Scheme.String(),
		"deadline", c.Deadline,
	)
	return psc, nil
}

// Verify checks the sponsor signature of psc against its signer the same way
// the runtime does. A bad signature wraps ErrSignatureMismatch.
func Verify(psc *cheque.PreSignedCheque) error {
	encoded, err := cheque.EncodeCheque(&psc.Cheque)
	if err != nil {
		return err
	}

	sig := []byte(psc.Signature.Signature)
	switch psc.Signature.Scheme {
	case types.SchemeEcdsa:
		return verifyEcdsa(encoded, sig, psc.Signer)
	case types.SchemeSr25519:
		pub, err := sr25519.Scheme{}.FromPublicKey(psc.Signer[:])
		if err != nil {
			return errors.Wrapf(types.ErrInvalidKeyMaterial, "sr25519 signer: %v", err)
		}
		if !pub.Verify(encoded, sig) {
			return errors.Wrap(types.ErrSignatureMismatch, "sr25519 cheque signature")
		}
		return nil
	case types.SchemeEd25519:
		pub, err := ed25519.Scheme{}.FromPublicKey(psc.Signer[:])
		if err != nil {
			return errors.Wrapf(types.ErrInvalidKeyMaterial, "ed25519 signer: %v", err)
		}
		if !pub.Verify(encoded, sig) {
			return errors.Wrap(types.ErrSignatureMismatch, "ed25519 cheque signature")
		}
		return nil
	default:
		return errors.Wrapf(types.ErrRecoveryFailed, "unknown signature scheme %d", psc.Signature.Scheme)
	}
}

func verifyEcdsa(message, sig []byte, signer types.AccountId) error {
	if len(sig) != types.EcdsaSignatureLength {
		return errors.Wrapf(types.ErrRecoveryFailed, "ecdsa signature must be %d bytes", types.EcdsaSignatureLength)
	}
	raw := append([]byte(nil), sig...)
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	digest := blake2b.Sum256(message)
	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return errors.Wrapf(types.ErrRecoveryFailed, "%v", err)
	}
	compressed, err := address.PublicKeyFromECDSA(pub)
	if err != nil {
		return err
	}
	recovered, err := address.DeriveAccountId(compressed, address.StrategyHashBased, address.TransparentLayout{})
	if err != nil {
		return err
	}
	if recovered != signer {
		return errors.Wrapf(types.ErrSignatureMismatch, "cheque signed by %s, expected %s", recovered.Hex(), signer.Hex())
	}
	return nil
}

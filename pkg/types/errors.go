package types

import "github.com/pkg/errors"

// Error taxonomy shared by every stage of a meta-call. Callers should match with
// errors.Is; the concrete error carries context wrapped around one of these.
var (
	ErrInvalidKeyMaterial         = errors.New("invalid key material")
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
	ErrEncodingMismatch           = errors.New("encoding mismatch")
	ErrRecoveryFailed             = errors.New("signature recovery failed")
	ErrSignatureMismatch          = errors.New("signature mismatch")
	ErrCancelled                  = errors.New("cancelled")
	ErrSubmissionRejected         = errors.New("submission rejected")
	ErrChequeNotApplicable        = errors.New("cheque not applicable")
)

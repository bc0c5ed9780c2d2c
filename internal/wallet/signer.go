// Package wallet abstracts transaction signing. Signing is an externally
// mediated suspension: a signer may block on a human approving the request
// in a wallet UI, and a rejection is a normal failure path, not a fault.
package wallet

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrRejected is returned when the signing authority declines to sign. The
// swap executor treats it like any other step failure.
var ErrRejected = errors.New("wallet rejected the signing request")

// Signer signs transactions on behalf of one public key. Implementations
// decide their own approval flow; no timeout is imposed here, the context
// lets a caller bound the wait if it wants one.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(ctx context.Context, tx *solana.Transaction) error
}

package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/nonce"
)

// Result is the outcome of a verification request. Immutable once produced.
//
// Two error regimes coexist by design: a structurally invalid proof is a
// legitimate (if adversarial) input and resolves to Verified=false, while a
// transport failure on the on-chain path means the system could not
// determine an answer and is returned as an error.
type Result struct {
	Verified bool           `json:"verified"`
	Method   Method         `json:"method"`
	Details  map[string]any `json:"details,omitempty"`
}

// ErrChainCall marks on-chain transport failures. Use errors.Is to detect.
var ErrChainCall = errors.New("verifier: chain call failed")

// ReplayError reports a request rejected by the replay guard before any
// verification work was attempted.
type ReplayError struct {
	Code    nonce.ReasonCode
	Message string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("verifier: replay guard rejected request: %s: %s", e.Code, e.Message)
}

// AsReplayError unwraps a ReplayError from err, if any.
func AsReplayError(err error) (*ReplayError, bool) {
	var re *ReplayError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// VerificationKey is the key material for the key-based pathway. Data is
// the serialized key in the scheme's binary encoding.
type VerificationKey struct {
	Scheme string `json:"scheme"`
	Curve  string `json:"curve"`
	Data   []byte `json:"data"`
}

// wellFormed reports whether the key carries enough material to attempt
// verification. Shape only; cryptographic validity is the capability's job.
func (k *VerificationKey) wellFormed() bool {
	return k != nil && k.Scheme != "" && k.Curve != "" && len(k.Data) > 0
}

// CryptoVerifier is the pluggable cryptographic verification capability.
// Implementations perform the actual pairing arithmetic; the gateway never
// reimplements it.
type CryptoVerifier interface {
	VerifyProof(ctx context.Context, proof *envelope.Proof, publicSignals []string, key *VerificationKey) (bool, error)
}

// ChainCaller is the chain-query capability used only by the on-chain
// backend.
type ChainCaller interface {
	CallContract(ctx context.Context, contract string, payload []byte) ([]byte, error)
}

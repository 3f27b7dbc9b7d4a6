// Package groth16 adapts the gnark Groth16 verifier to the gateway's
// pluggable CryptoVerifier capability. It consumes proofs and verifying
// keys in gnark's binary encoding and builds a generic public-input witness
// from the decimal-string signals.
package groth16

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/verifier"
)

// Scheme is the proof scheme this adapter serves.
const Scheme = "groth16"

// genericCircuit binds a flat list of public inputs into a gnark witness.
// The constraint system is already fixed in the verifying key; this struct
// exists only so public inputs can be shaped into a witness without knowing
// the concrete circuit, the identity constraint carries no meaning.
type genericCircuit struct {
	PublicInputs []frontend.Variable `gnark:",public"`
}

func (c *genericCircuit) Define(api frontend.API) error {
	for _, in := range c.PublicInputs {
		api.AssertIsEqual(in, in)
	}
	return nil
}

// Verifier verifies Groth16 proofs via gnark.
type Verifier struct {
	logger *zap.Logger
	curves map[string]ecc.ID
}

// Compile-time interface compliance check
var _ verifier.CryptoVerifier = (*Verifier)(nil)

// NewVerifier creates a gnark-backed Groth16 verifier supporting the BN254
// and BLS12-381 curves.
func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		logger: logger,
		curves: map[string]ecc.ID{
			"bn254":     ecc.BN254,
			"bls12-381": ecc.BLS12_381,
		},
	}
}

// VerifyProof checks a proof against the supplied verifying key and public
// signals. It returns false with a nil error when the proof fails the
// pairing check; errors are reserved for inputs the adapter cannot consume.
func (v *Verifier) VerifyProof(ctx context.Context, proof *envelope.Proof, publicSignals []string, key *verifier.VerificationKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key.Scheme != Scheme {
		return false, fmt.Errorf("groth16: unsupported scheme %q", key.Scheme)
	}
	curveID, ok := v.curves[key.Curve]
	if !ok {
		return false, fmt.Errorf("groth16: unsupported curve %q", key.Curve)
	}
	if len(proof.Raw) == 0 {
		return false, fmt.Errorf("groth16: proof carries no binary encoding")
	}

	// gnark logs verbosely during verification; silence it for the call.
	prev := gnarklogger.Logger()
	gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	defer gnarklogger.Set(prev)

	proofObj := groth16.NewProof(curveID)
	if _, err := proofObj.ReadFrom(bytes.NewReader(proof.Raw)); err != nil {
		return false, fmt.Errorf("groth16: decode proof: %w", err)
	}

	vk := groth16.NewVerifyingKey(curveID)
	if _, err := vk.ReadFrom(bytes.NewReader(key.Data)); err != nil {
		return false, fmt.Errorf("groth16: decode verifying key: %w", err)
	}

	publicWitness, err := buildPublicWitness(publicSignals, curveID)
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(proofObj, vk, publicWitness); err != nil {
		v.logger.Debug("groth16 proof rejected", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// buildPublicWitness shapes decimal-string public signals into a
// public-only gnark witness.
func buildPublicWitness(publicSignals []string, curveID ecc.ID) (witness.Witness, error) {
	if len(publicSignals) == 0 {
		return nil, fmt.Errorf("groth16: at least one public signal required")
	}

	values := make([]frontend.Variable, len(publicSignals))
	for i, sig := range publicSignals {
		n, ok := new(big.Int).SetString(sig, 10)
		if !ok {
			return nil, fmt.Errorf("groth16: public signal %d is not a decimal integer", i)
		}
		values[i] = n
	}

	circuit := genericCircuit{PublicInputs: values}
	w, err := frontend.NewWitness(&circuit, curveID.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("groth16: build public witness: %w", err)
	}
	return w, nil
}

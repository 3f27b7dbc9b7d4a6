package verifier

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
)

// verifySelector is the 4-byte function selector for the verifier contract
// entry point used by the on-chain pathway.
var verifySelector = crypto.Keccak256([]byte("verifyProof(bytes,bytes32)"))[:4]

// Fingerprint derives a stable proof identifier from the proof body and its
// public signals. Together with the method it forms the cache key.
func Fingerprint(proof *envelope.Proof, publicSignals []string) string {
	h := crypto.NewKeccakState()
	if proof != nil {
		// Marshal of the proof struct is deterministic: fixed field
		// order, string slices.
		if raw, err := json.Marshal(proof); err == nil {
			h.Write(raw)
		}
	}
	for _, sig := range publicSignals {
		h.Write([]byte(sig))
		h.Write([]byte{0})
	}
	sum := make([]byte, 32)
	h.Read(sum)
	return hex.EncodeToString(sum)
}

// verifyWithKey runs the key-based pathway. A structurally malformed proof,
// an empty public-signal list, or an absent verification key are legitimate
// adversarial inputs, so they resolve to unverified rather than an error.
func (d *Dispatcher) verifyWithKey(ctx context.Context, req Request) Result {
	if reason, ok := keyInputsComplete(req); !ok {
		return unverified(MethodKey, reason)
	}
	if d.crypto == nil {
		return unverified(MethodKey, "no cryptographic verifier configured")
	}

	valid, err := d.crypto.VerifyProof(ctx, req.Proof, req.PublicSignals, req.VerificationKey)
	if err != nil {
		// The capability failing to consume the input still means the
		// proof did not verify; it is not an infrastructure fault.
		d.logger.Debug("crypto verifier rejected input",
			zap.String("scheme", req.VerificationKey.Scheme),
			zap.Error(err),
		)
		return unverified(MethodKey, err.Error())
	}
	if !valid {
		return unverified(MethodKey, "proof does not satisfy verification key")
	}
	return verified(MethodKey, map[string]any{
		"scheme": req.VerificationKey.Scheme,
		"curve":  req.VerificationKey.Curve,
	})
}

// keyInputsComplete checks the structural shape required by the key
// pathway: the three proof components, at least one public signal, and a
// well-formed verification key.
func keyInputsComplete(req Request) (string, bool) {
	p := req.Proof
	if p == nil {
		return "proof missing", false
	}
	if len(p.A) == 0 || len(p.B) == 0 || len(p.C) == 0 {
		return "proof missing pi_a, pi_b or pi_c component", false
	}
	if len(req.PublicSignals) == 0 {
		return "public signals missing", false
	}
	if !req.VerificationKey.wellFormed() {
		return "verification key missing or malformed", false
	}
	return "", true
}

// verifyLocal compares the envelope's embedded principal claim against the
// caller-supplied principal and applies the proof-type business rule to the
// claimed amount. Mismatches resolve to unverified, never an error.
func (d *Dispatcher) verifyLocal(req Request) Result {
	env := req.Envelope
	if env == nil {
		return unverified(MethodLocal, "envelope with embedded claims required")
	}

	claim := env.Metadata.PrincipalAddress
	if !common.IsHexAddress(claim) || !common.IsHexAddress(req.Principal) {
		return unverified(MethodLocal, "principal is not a valid address")
	}
	if !strings.EqualFold(claim, req.Principal) {
		return unverified(MethodLocal, "principal does not match envelope claim")
	}

	amount, err := strconv.ParseUint(env.Metadata.Amount, 10, 64)
	if err != nil {
		return unverified(MethodLocal, "envelope amount is not numeric")
	}

	switch req.ProofType {
	case ProofStandard:
		if amount == 0 {
			return unverified(MethodLocal, "standard proof requires a positive amount")
		}
	case ProofThreshold:
		if amount < d.cfg.ThresholdAmount {
			return unverified(MethodLocal,
				fmt.Sprintf("amount below threshold %d", d.cfg.ThresholdAmount))
		}
	case ProofMaximum:
		if d.cfg.MaximumAmount > 0 && amount > d.cfg.MaximumAmount {
			return unverified(MethodLocal,
				fmt.Sprintf("amount above maximum %d", d.cfg.MaximumAmount))
		}
	default:
		return unverified(MethodLocal, fmt.Sprintf("unsupported proof type %s", req.ProofType))
	}

	return verified(MethodLocal, map[string]any{
		"proof_type": req.ProofType.String(),
		"principal":  strings.ToLower(req.Principal),
	})
}

// verifyOnChain delegates to the chain-call capability. This is the one
// pathway whose failure is propagated: an unreachable RPC endpoint is an
// infrastructure fault, not an invalid-input outcome. The call is bounded
// by the configured timeout so a stalled endpoint cannot hold the request.
func (d *Dispatcher) verifyOnChain(ctx context.Context, req Request) (Result, error) {
	if d.chain == nil {
		return Result{}, fmt.Errorf("%w: no chain caller configured", ErrChainCall)
	}
	if req.Proof == nil || len(req.Proof.Raw) == 0 {
		return unverified(MethodOnChain, "proof carries no binary encoding"), nil
	}
	if req.Contract == "" {
		return Result{}, fmt.Errorf("%w: verifier contract address missing", ErrChainCall)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()

	out, err := d.chain.CallContract(callCtx, req.Contract, onChainPayload(req.Proof, req.PublicSignals))
	if err != nil {
		d.logger.Error("on-chain verification call failed",
			zap.String("contract", req.Contract),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: %v", ErrChainCall, err)
	}

	// The verifier contract returns a single ABI-encoded bool.
	ok := len(out) > 0 && out[len(out)-1] == 1
	if !ok {
		return unverified(MethodOnChain, "contract reported proof invalid"), nil
	}
	return verified(MethodOnChain, map[string]any{"contract": req.Contract}), nil
}

// onChainPayload assembles the calldata for the verifier contract: the
// selector, the raw proof bytes, and a digest of the public signals.
func onChainPayload(proof *envelope.Proof, publicSignals []string) []byte {
	sigDigest := crypto.Keccak256([]byte(strings.Join(publicSignals, ",")))

	payload := make([]byte, 0, len(verifySelector)+len(proof.Raw)+len(sigDigest))
	payload = append(payload, verifySelector...)
	payload = append(payload, proof.Raw...)
	payload = append(payload, sigDigest...)
	return payload
}

func verified(m Method, details map[string]any) Result {
	return Result{Verified: true, Method: m, Details: details}
}

func unverified(m Method, reason string) Result {
	return Result{Verified: false, Method: m, Details: map[string]any{"reason": reason}}
}

// Package verifier implements the verification dispatcher: given a request
// it consults the replay guard, then the result cache, and only on a miss
// invokes the backend for the requested method, caching whatever outcome the
// backend produced.
package verifier

import "fmt"

// Method is the closed set of verification pathways. Dispatch switches over
// it exhaustively, so adding a method is a compile-time-checked change.
type Method uint8

const (
	// MethodKey verifies against a caller-supplied verification key.
	MethodKey Method = iota
	// MethodLocal checks the envelope's embedded claims against local
	// business rules.
	MethodLocal
	// MethodOnChain delegates to a verifier contract over RPC.
	MethodOnChain
)

// String returns the wire name of the method.
func (m Method) String() string {
	switch m {
	case MethodKey:
		return "key"
	case MethodLocal:
		return "local"
	case MethodOnChain:
		return "onChain"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// ParseMethod maps a wire name to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "key":
		return MethodKey, nil
	case "local":
		return MethodLocal, nil
	case "onChain":
		return MethodOnChain, nil
	default:
		return 0, fmt.Errorf("unknown verification method %q", s)
	}
}

// ProofType is the closed set of proof kinds the local backend applies
// business rules to.
type ProofType uint8

const (
	// ProofStandard attests a positive balance.
	ProofStandard ProofType = iota
	// ProofThreshold attests an amount at or above a configured floor.
	ProofThreshold
	// ProofMaximum attests an amount at or below a configured ceiling.
	ProofMaximum
)

// String returns the wire name of the proof type.
func (p ProofType) String() string {
	switch p {
	case ProofStandard:
		return "standard"
	case ProofThreshold:
		return "threshold"
	case ProofMaximum:
		return "maximum"
	default:
		return fmt.Sprintf("ProofType(%d)", uint8(p))
	}
}

// ParseProofType maps a wire name to a ProofType.
func ParseProofType(s string) (ProofType, error) {
	switch s {
	case "standard":
		return ProofStandard, nil
	case "threshold":
		return ProofThreshold, nil
	case "maximum":
		return ProofMaximum, nil
	default:
		return 0, fmt.Errorf("unknown proof type %q", s)
	}
}

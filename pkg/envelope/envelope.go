// Package envelope implements the versioned container format used to
// transport a zero-knowledge proof, its public signals, and request metadata
// as a single blob.
//
// The codec is intentionally fail-fast: a malformed envelope indicates
// corrupted storage or a protocol mismatch, which callers must handle
// explicitly rather than silently coerce to "unverified".
package envelope

import (
	"errors"
	"time"
)

const (
	// FormatVersion tags every envelope produced by this codec version.
	// Envelopes from a higher major version are rejected on read.
	FormatVersion = "1.0"

	// EnvelopeType identifies the container kind in the format header.
	EnvelopeType = "zk-proof-envelope"

	// LibraryVersion is embedded in metadata as a provenance marker.
	LibraryVersion = "1.2.0"

	// DefaultEnvironment is used when serialization options carry no
	// environment tag.
	DefaultEnvironment = "production"
)

// Error definitions
var (
	ErrInvalidProofData       = errors.New("envelope: proof or public signals missing")
	ErrInvalidOptions         = errors.New("envelope: options missing required type or version")
	ErrInvalidSerializedProof = errors.New("envelope: serialized proof is empty")
	ErrDeserialization        = errors.New("envelope: blob does not decode to an envelope")
	ErrUnsupportedVersion     = errors.New("envelope: format version newer than supported")
	ErrInvalidProofContainer  = errors.New("envelope: container missing proof data or public signals")
)

// Proof is the transportable proof body. A, B and C carry the Groth16 curve
// points in their JSON (decimal string) encoding; Raw optionally carries the
// same proof in the prover's binary encoding for backends that consume it.
type Proof struct {
	A        []string   `json:"pi_a"`
	B        [][]string `json:"pi_b"`
	C        []string   `json:"pi_c"`
	Protocol string     `json:"protocol,omitempty"`
	Curve    string     `json:"curve,omitempty"`
	Raw      []byte     `json:"raw,omitempty"`
}

// Format is the self-describing header of an envelope.
type Format struct {
	Version string `json:"version"`
	Type    string `json:"type"`
}

// Circuit identifies the circuit the proof was generated against.
type Circuit struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// Body pairs the proof with its public signals.
type Body struct {
	Data          *Proof   `json:"data"`
	PublicSignals []string `json:"publicSignals"`
}

// Metadata carries request-level context embedded at serialization time.
type Metadata struct {
	PrincipalAddress string    `json:"principalAddress,omitempty"`
	Amount           string    `json:"amount,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	Environment      string    `json:"environment"`
	LibraryVersion   string    `json:"libraryVersion"`
}

// Envelope is the versioned, self-describing proof container. Envelopes are
// immutable once produced; consumers read, never mutate.
type Envelope struct {
	Format   Format   `json:"format"`
	Circuit  Circuit  `json:"circuit"`
	Proof    Body     `json:"proof"`
	Metadata Metadata `json:"metadata"`
}

// Options parameterize Serialize. Type and Version describe the circuit and
// are required; the rest is metadata passed through verbatim.
type Options struct {
	Type             string
	Version          string
	PrincipalAddress string
	Amount           string
	Environment      string
}

// VerificationInput is the normalized extraction handed to verification
// backends.
type VerificationInput struct {
	Proof          *Proof
	PublicSignals  []string
	CircuitType    string
	CircuitVersion string
}

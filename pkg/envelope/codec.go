package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zkgate/proof-verification-gateway/pkg/clock"
)

// Codec serializes and deserializes proof envelopes. The zero value is not
// usable; construct with NewCodec.
type Codec struct {
	clk clock.Clock
}

// NewCodec creates a codec. A nil clock falls back to the system clock.
func NewCodec(clk clock.Clock) *Codec {
	if clk == nil {
		clk = clock.System()
	}
	return &Codec{clk: clk}
}

// Serialize packs a proof, its public signals, and metadata into a single
// versioned blob. It fails with ErrInvalidProofData if proof or publicSignals
// is absent and ErrInvalidOptions if the circuit type or version is missing.
func (c *Codec) Serialize(proof *Proof, publicSignals []string, opts Options) ([]byte, error) {
	if proof == nil || publicSignals == nil {
		return nil, ErrInvalidProofData
	}
	if opts.Type == "" || opts.Version == "" {
		return nil, ErrInvalidOptions
	}

	env := Envelope{
		Format: Format{
			Version: FormatVersion,
			Type:    EnvelopeType,
		},
		Circuit: Circuit{
			Type:    opts.Type,
			Version: opts.Version,
		},
		Proof: Body{
			Data:          proof,
			PublicSignals: publicSignals,
		},
		Metadata: Metadata{
			PrincipalAddress: opts.PrincipalAddress,
			Amount:           opts.Amount,
			CreatedAt:        c.clk.Now().UTC(),
			Environment:      opts.Environment,
			LibraryVersion:   LibraryVersion,
		},
	}
	if env.Metadata.Environment == "" {
		env.Metadata.Environment = DefaultEnvironment
	}

	blob, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal failed: %w", err)
	}
	return blob, nil
}

// Deserialize decodes a blob produced by Serialize and validates its
// structural shape. Structural validation is best-effort transport
// correctness, not semantic proof validation.
func (c *Codec) Deserialize(blob []byte) (*Envelope, error) {
	if len(blob) == 0 {
		return nil, ErrInvalidSerializedProof
	}

	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}

	if env.Format.Version == "" || env.Format.Type != EnvelopeType {
		return nil, fmt.Errorf("%w: missing or unrecognized format header", ErrDeserialization)
	}
	newer, err := versionNewer(env.Format.Version, FormatVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed format version %q", ErrDeserialization, env.Format.Version)
	}
	if newer {
		return nil, fmt.Errorf("%w: got %s, supported up to %s",
			ErrUnsupportedVersion, env.Format.Version, FormatVersion)
	}
	if env.Proof.Data == nil {
		return nil, fmt.Errorf("%w: missing proof body", ErrDeserialization)
	}

	return &env, nil
}

// ExtractForVerification accepts either a serialized blob or an already
// deserialized envelope and returns the fields the verification backends
// need. It fails with ErrInvalidProofContainer if the required proof data or
// public signals are missing after normalization.
func (c *Codec) ExtractForVerification(v any) (*VerificationInput, error) {
	env, err := c.normalize(v)
	if err != nil {
		return nil, err
	}
	if err := containerComplete(env); err != nil {
		return nil, err
	}
	return &VerificationInput{
		Proof:          env.Proof.Data,
		PublicSignals:  env.Proof.PublicSignals,
		CircuitType:    env.Circuit.Type,
		CircuitVersion: env.Circuit.Version,
	}, nil
}

// IsValidProof reports whether the input is a structurally valid envelope.
// It never fails; every error kind collapses to false.
func (c *Codec) IsValidProof(v any) bool {
	_, err := c.ExtractForVerification(v)
	return err == nil
}

// Metadata returns the metadata block of a blob or envelope. It applies the
// same structural check as ExtractForVerification: metadata from a container
// with no proof body is meaningless.
func (c *Codec) Metadata(v any) (*Metadata, error) {
	env, err := c.normalize(v)
	if err != nil {
		return nil, err
	}
	if err := containerComplete(env); err != nil {
		return nil, err
	}
	md := env.Metadata
	return &md, nil
}

// containerComplete checks that a normalized envelope carries the proof body
// and public signals.
func containerComplete(env *Envelope) error {
	if env.Proof.Data == nil || env.Proof.PublicSignals == nil {
		return ErrInvalidProofContainer
	}
	return nil
}

// normalize coerces the accepted input shapes to an *Envelope.
func (c *Codec) normalize(v any) (*Envelope, error) {
	switch in := v.(type) {
	case []byte:
		return c.Deserialize(in)
	case string:
		return c.Deserialize([]byte(in))
	case *Envelope:
		if in == nil {
			return nil, ErrInvalidProofContainer
		}
		return in, nil
	case Envelope:
		return &in, nil
	default:
		return nil, ErrInvalidProofContainer
	}
}

// versionNewer reports whether a is a strictly newer version than b.
// Versions are dotted integers; comparison is component-wise.
func versionNewer(a, b string) (bool, error) {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		var err error
		if i < len(as) {
			if av, err = strconv.Atoi(as[i]); err != nil {
				return false, err
			}
		}
		if i < len(bs) {
			if bv, err = strconv.Atoi(bs[i]); err != nil {
				return false, err
			}
		}
		if av != bv {
			return av > bv, nil
		}
	}
	return false, nil
}

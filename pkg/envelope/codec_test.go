package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkgate/proof-verification-gateway/pkg/clock"
)

func sampleProof() *Proof {
	return &Proof{
		A:        []string{"11", "12", "1"},
		B:        [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
		C:        []string{"31", "32", "1"},
		Protocol: "groth16",
		Curve:    "bn254",
		Raw:      []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func sampleOptions() Options {
	return Options{
		Type:             "balance",
		Version:          "2.1",
		PrincipalAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Amount:           "1500",
	}
}

func newTestCodec() (*Codec, *clock.Manual) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewCodec(clk), clk
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	codec, clk := newTestCodec()
	signals := []string{"100", "200", "300"}

	blob, err := codec.Serialize(sampleProof(), signals, sampleOptions())
	require.NoError(t, err)

	env, err := codec.Deserialize(blob)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, env.Format.Version)
	assert.Equal(t, EnvelopeType, env.Format.Type)
	assert.Equal(t, "balance", env.Circuit.Type)
	assert.Equal(t, "2.1", env.Circuit.Version)
	assert.Equal(t, sampleProof(), env.Proof.Data)
	assert.Equal(t, signals, env.Proof.PublicSignals)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", env.Metadata.PrincipalAddress)
	assert.Equal(t, "1500", env.Metadata.Amount)
	assert.Equal(t, clk.Now().UTC(), env.Metadata.CreatedAt)
	assert.Equal(t, DefaultEnvironment, env.Metadata.Environment)
	assert.Equal(t, LibraryVersion, env.Metadata.LibraryVersion)

	assert.True(t, codec.IsValidProof(blob))
}

func TestSerializeRejectsMissingInputs(t *testing.T) {
	codec, _ := newTestCodec()

	_, err := codec.Serialize(nil, []string{"1"}, sampleOptions())
	assert.ErrorIs(t, err, ErrInvalidProofData)

	_, err = codec.Serialize(sampleProof(), nil, sampleOptions())
	assert.ErrorIs(t, err, ErrInvalidProofData)

	_, err = codec.Serialize(sampleProof(), []string{"1"}, Options{Version: "1.0"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = codec.Serialize(sampleProof(), []string{"1"}, Options{Type: "balance"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestDeserializeRejectsBadBlobs(t *testing.T) {
	codec, _ := newTestCodec()

	_, err := codec.Deserialize(nil)
	assert.ErrorIs(t, err, ErrInvalidSerializedProof)

	_, err = codec.Deserialize([]byte{})
	assert.ErrorIs(t, err, ErrInvalidSerializedProof)

	_, err = codec.Deserialize([]byte("{not json"))
	assert.ErrorIs(t, err, ErrDeserialization)

	// Decodes, but has no recognizable format header.
	_, err = codec.Deserialize([]byte(`{"hello":"world"}`))
	assert.ErrorIs(t, err, ErrDeserialization)
}

func TestDeserializeRejectsNewerFormatVersion(t *testing.T) {
	codec, _ := newTestCodec()

	blob, err := codec.Serialize(sampleProof(), []string{"1"}, sampleOptions())
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(blob, &env))
	env.Format.Version = "2.0"
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = codec.Deserialize(tampered)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestExtractForVerification(t *testing.T) {
	codec, _ := newTestCodec()
	signals := []string{"42"}

	blob, err := codec.Serialize(sampleProof(), signals, sampleOptions())
	require.NoError(t, err)

	// From a raw blob.
	input, err := codec.ExtractForVerification(blob)
	require.NoError(t, err)
	assert.Equal(t, sampleProof(), input.Proof)
	assert.Equal(t, signals, input.PublicSignals)
	assert.Equal(t, "balance", input.CircuitType)
	assert.Equal(t, "2.1", input.CircuitVersion)

	// From an already deserialized envelope.
	env, err := codec.Deserialize(blob)
	require.NoError(t, err)
	input2, err := codec.ExtractForVerification(env)
	require.NoError(t, err)
	assert.Equal(t, input, input2)
}

func TestExtractRejectsIncompleteContainers(t *testing.T) {
	codec, _ := newTestCodec()

	_, err := codec.ExtractForVerification(42)
	assert.ErrorIs(t, err, ErrInvalidProofContainer)

	_, err = codec.ExtractForVerification((*Envelope)(nil))
	assert.ErrorIs(t, err, ErrInvalidProofContainer)

	// Proof body present but the signal list is absent.
	env := &Envelope{
		Format:  Format{Version: FormatVersion, Type: EnvelopeType},
		Circuit: Circuit{Type: "balance", Version: "1.0"},
		Proof:   Body{Data: sampleProof()},
	}
	_, err = codec.ExtractForVerification(env)
	assert.ErrorIs(t, err, ErrInvalidProofContainer)
}

func TestIsValidProofNeverErrors(t *testing.T) {
	codec, _ := newTestCodec()

	assert.False(t, codec.IsValidProof(nil))
	assert.False(t, codec.IsValidProof([]byte("garbage")))
	assert.False(t, codec.IsValidProof(3.14))
	assert.False(t, codec.IsValidProof(""))
}

func TestMetadata(t *testing.T) {
	codec, _ := newTestCodec()

	blob, err := codec.Serialize(sampleProof(), []string{"1"}, Options{
		Type:        "balance",
		Version:     "1.0",
		Amount:      "77",
		Environment: "staging",
	})
	require.NoError(t, err)

	md, err := codec.Metadata(blob)
	require.NoError(t, err)
	assert.Equal(t, "77", md.Amount)
	assert.Equal(t, "staging", md.Environment)

	_, err = codec.Metadata([]byte("junk"))
	assert.ErrorIs(t, err, ErrDeserialization)

	// An envelope without a proof body has no meaningful metadata, even
	// when handed over already deserialized.
	_, err = codec.Metadata(&Envelope{
		Format:   Format{Version: FormatVersion, Type: EnvelopeType},
		Metadata: Metadata{Amount: "77"},
	})
	assert.ErrorIs(t, err, ErrInvalidProofContainer)
}

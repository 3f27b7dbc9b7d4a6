package verification

import (
	"encoding/json"

	"github.com/zkgate/proof-verification-gateway/pkg/nonce"
	"github.com/zkgate/proof-verification-gateway/pkg/proofcache"
)

// ============================================================================
// Request DTOs
// ============================================================================

// VerifyRequest represents the request body for proof verification
type VerifyRequest struct {
	// Envelope is the serialized proof envelope produced by the codec.
	Envelope json.RawMessage `json:"envelope" binding:"required"`

	Method    string `json:"method" binding:"required,oneof=key local onChain"`
	ProofType string `json:"proof_type,omitempty" binding:"omitempty,oneof=standard threshold maximum"`

	// ProofID overrides the computed proof fingerprint when set.
	ProofID string `json:"proof_id,omitempty"`

	// Replay-guard fields. Timestamp is unix milliseconds.
	Nonce     string `json:"nonce" binding:"required,min=8,max=64"`
	Principal string `json:"principal" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required,gt=0"`

	// VerificationKey is required for method "key".
	VerificationKey *VerificationKeyRequest `json:"verification_key,omitempty"`

	// Contract is the verifier contract address for method "onChain";
	// falls back to the configured default when empty.
	Contract string `json:"contract,omitempty"`
}

// VerificationKeyRequest carries key material for the key-based pathway.
// Data is base64 in JSON.
type VerificationKeyRequest struct {
	Scheme string `json:"scheme" binding:"required"`
	Curve  string `json:"curve" binding:"required"`
	Data   []byte `json:"data" binding:"required"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// VerifyResponse represents the verification outcome in API responses
type VerifyResponse struct {
	Verified bool           `json:"verified"`
	Method   string         `json:"method"`
	Details  map[string]any `json:"details,omitempty"`
}

// StatsResponse aggregates cache and replay-guard statistics
type StatsResponse struct {
	Cache proofcache.Stats `json:"cache"`
	Nonce nonce.Stats      `json:"nonce"`
}

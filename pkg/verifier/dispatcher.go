package verifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/nonce"
	"github.com/zkgate/proof-verification-gateway/pkg/proofcache"
)

// DefaultCallTimeout bounds the on-chain backend call when no timeout is
// configured, so a stalled RPC endpoint cannot hold requests indefinitely.
const DefaultCallTimeout = 15 * time.Second

// Config holds dispatcher parameters.
type Config struct {
	// CallTimeout bounds each on-chain contract call.
	CallTimeout time.Duration

	// ThresholdAmount is the floor applied to threshold proofs by the
	// local backend.
	ThresholdAmount uint64

	// MaximumAmount is the ceiling applied to maximum proofs by the local
	// backend. Zero means no ceiling.
	MaximumAmount uint64
}

// Request carries one verification request through the dispatcher.
type Request struct {
	// ProofID keys the result cache together with Method. When empty, a
	// fingerprint is computed from the proof and public signals.
	ProofID string

	// Envelope supplies the embedded claims the local pathway checks.
	Envelope *envelope.Envelope

	Proof         *envelope.Proof
	PublicSignals []string

	Method    Method
	ProofType ProofType

	// VerificationKey is required by the key pathway.
	VerificationKey *VerificationKey

	// Contract is the verifier contract address for the on-chain pathway.
	Contract string

	// Replay-guard inputs. Timestamp is unix milliseconds.
	Nonce     string
	Principal string
	Timestamp int64
}

// Dispatcher orchestrates the replay guard, the result cache, and the
// verification backends. It is the only component permitted to use the
// guard and the cache together.
type Dispatcher struct {
	cfg    Config
	guard  *nonce.Guard
	cache  *proofcache.Cache
	crypto CryptoVerifier
	chain  ChainCaller
	logger *zap.Logger
}

// NewDispatcher wires a dispatcher. crypto and chain may be nil when the
// corresponding pathway is not deployed; requests for a missing capability
// resolve to unverified (key) or a transport error (on-chain).
func NewDispatcher(cfg Config, guard *nonce.Guard, cache *proofcache.Cache, crypto CryptoVerifier, chain ChainCaller, logger *zap.Logger) *Dispatcher {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		guard:  guard,
		cache:  cache,
		crypto: crypto,
		chain:  chain,
		logger: logger,
	}
}

// Verify runs the calling contract: validate the nonce first (fail fast and
// cheap, no cache interaction on reject), consult the cache, invoke the
// backend only on a miss, then populate the cache with the fresh result.
// Negative results are cached on purpose: repeated invalid-proof
// submissions must not re-trigger expensive verification.
func (d *Dispatcher) Verify(ctx context.Context, req Request) (Result, error) {
	if res := d.guard.Validate(req.Nonce, req.Principal, req.Timestamp); !res.Accepted {
		return Result{}, &ReplayError{Code: res.Code, Message: res.Message}
	}

	proofID := req.ProofID
	if proofID == "" {
		proofID = Fingerprint(req.Proof, req.PublicSignals)
	}

	if out, ok := d.cache.Get(proofID, req.Method.String()); ok {
		d.logger.Debug("verification served from cache",
			zap.String("proof_id", proofID),
			zap.String("method", req.Method.String()),
			zap.Bool("verified", out.Verified),
		)
		return Result{
			Verified: out.Verified,
			Method:   req.Method,
			Details:  withCachedFlag(out.Details),
		}, nil
	}

	var (
		result Result
		err    error
	)
	switch req.Method {
	case MethodKey:
		result = d.verifyWithKey(ctx, req)
	case MethodLocal:
		result = d.verifyLocal(req)
	case MethodOnChain:
		result, err = d.verifyOnChain(ctx, req)
	default:
		return Result{}, fmt.Errorf("verifier: unsupported method %s", req.Method)
	}
	if err != nil {
		// Transport failure means no answer was determined; nothing to
		// cache.
		return Result{}, err
	}

	d.cache.Set(proofID, req.Method.String(), proofcache.Outcome{
		Verified: result.Verified,
		Method:   req.Method.String(),
		Details:  result.Details,
	})

	d.logger.Info("verification completed",
		zap.String("proof_id", proofID),
		zap.String("method", req.Method.String()),
		zap.Bool("verified", result.Verified),
	)
	return result, nil
}

// CacheStats exposes the result cache snapshot for observability surfaces.
func (d *Dispatcher) CacheStats() proofcache.Stats {
	return d.cache.Stats()
}

// GuardStats exposes the replay guard snapshot for observability surfaces.
func (d *Dispatcher) GuardStats() nonce.Stats {
	return d.guard.Stats()
}

func withCachedFlag(details map[string]any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["cached"] = true
	return out
}

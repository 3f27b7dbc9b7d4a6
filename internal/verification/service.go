package verification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/zkgate/proof-verification-gateway/internal/common/errors"
	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/verifier"
)

// Service translates API requests into dispatcher calls and maps the
// dispatcher's two error regimes onto the HTTP error surface.
type Service struct {
	codec           *envelope.Codec
	dispatcher      *verifier.Dispatcher
	defaultContract string
	logger          *zap.Logger
}

// NewService creates a verification service
func NewService(codec *envelope.Codec, dispatcher *verifier.Dispatcher, defaultContract string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		codec:           codec,
		dispatcher:      dispatcher,
		defaultContract: defaultContract,
		logger:          logger,
	}
}

// Verify deserializes the envelope, dispatches verification, and converts
// failures to AppErrors.
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	method, err := verifier.ParseMethod(req.Method)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	proofType := verifier.ProofStandard
	if req.ProofType != "" {
		if proofType, err = verifier.ParseProofType(req.ProofType); err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
	}

	env, err := s.codec.Deserialize(req.Envelope)
	if err != nil {
		// Codec failures are typed; all of them mean the caller shipped
		// a broken container.
		return nil, apperrors.InvalidEnvelope(err.Error()).WithError(err)
	}
	input, err := s.codec.ExtractForVerification(env)
	if err != nil {
		return nil, apperrors.InvalidEnvelope(err.Error()).WithError(err)
	}

	contract := req.Contract
	if contract == "" {
		contract = s.defaultContract
	}

	dreq := verifier.Request{
		ProofID:       req.ProofID,
		Envelope:      env,
		Proof:         input.Proof,
		PublicSignals: input.PublicSignals,
		Method:        method,
		ProofType:     proofType,
		Contract:      contract,
		Nonce:         req.Nonce,
		Principal:     req.Principal,
		Timestamp:     req.Timestamp,
	}
	if req.VerificationKey != nil {
		dreq.VerificationKey = &verifier.VerificationKey{
			Scheme: req.VerificationKey.Scheme,
			Curve:  req.VerificationKey.Curve,
			Data:   req.VerificationKey.Data,
		}
	}

	result, err := s.dispatcher.Verify(ctx, dreq)
	if err != nil {
		if re, ok := verifier.AsReplayError(err); ok {
			return nil, apperrors.ReplayRejected(string(re.Code), re.Message)
		}
		if errors.Is(err, verifier.ErrChainCall) {
			return nil, apperrors.ChainError(err.Error()).WithError(err)
		}
		s.logger.Error("verification dispatch failed", zap.Error(err))
		return nil, apperrors.Internal("verification failed").WithError(err)
	}

	return &VerifyResponse{
		Verified: result.Verified,
		Method:   result.Method.String(),
		Details:  result.Details,
	}, nil
}

// Stats returns cache and replay-guard statistics.
func (s *Service) Stats() *StatsResponse {
	return &StatsResponse{
		Cache: s.dispatcher.CacheStats(),
		Nonce: s.dispatcher.GuardStats(),
	}
}

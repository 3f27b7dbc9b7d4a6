package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkgate/proof-verification-gateway/internal/common/middleware"
	"github.com/zkgate/proof-verification-gateway/pkg/clock"
	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/nonce"
	"github.com/zkgate/proof-verification-gateway/pkg/proofcache"
	"github.com/zkgate/proof-verification-gateway/pkg/verifier"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCrypto struct {
	verified bool
	err      error
}

func (s *stubCrypto) VerifyProof(_ context.Context, _ *envelope.Proof, _ []string, _ *verifier.VerificationKey) (bool, error) {
	return s.verified, s.err
}

type apiFixture struct {
	router *gin.Engine
	codec  *envelope.Codec

	nonceSeq int
}

// newAPIFixture wires a real codec, guard, cache, and dispatcher behind the
// HTTP handler; only the crypto backend is stubbed. No chain caller is
// configured, so the on-chain pathway fails with a transport error.
func newAPIFixture(t *testing.T, crypto verifier.CryptoVerifier) *apiFixture {
	t.Helper()

	clk := clock.System()
	guard := nonce.NewGuard(nonce.Config{TTL: 5 * time.Minute}, clk, nil)
	t.Cleanup(guard.Shutdown)
	cache := proofcache.New(proofcache.Config{}, clk)

	dispatcher := verifier.NewDispatcher(verifier.Config{
		CallTimeout:     time.Second,
		ThresholdAmount: 1000,
	}, guard, cache, crypto, nil, nil)

	codec := envelope.NewCodec(clk)
	service := NewService(codec, dispatcher, "", nil)

	router := gin.New()
	router.Use(middleware.RequestID())
	v1 := router.Group("/api/v1")
	NewHandler(service).RegisterRoutes(v1)

	return &apiFixture{router: router, codec: codec}
}

func (f *apiFixture) envelopeBlob(t *testing.T) json.RawMessage {
	t.Helper()
	proof := &envelope.Proof{
		A:        []string{"11", "12", "1"},
		B:        [][]string{{"21", "22"}, {"23", "24"}, {"1", "0"}},
		C:        []string{"31", "32", "1"},
		Protocol: "groth16",
		Curve:    "bn254",
		Raw:      []byte{0x01, 0x02},
	}
	blob, err := f.codec.Serialize(proof, []string{"100"}, envelope.Options{
		Type:             "balance",
		Version:          "1.0",
		PrincipalAddress: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Amount:           "1500",
	})
	require.NoError(t, err)
	return blob
}

func (f *apiFixture) verifyBody(t *testing.T, mutate func(map[string]any)) []byte {
	t.Helper()
	f.nonceSeq++
	body := map[string]any{
		"envelope":  f.envelopeBlob(t),
		"method":    "key",
		"nonce":     fmt.Sprintf("api-nonce-%04d", f.nonceSeq),
		"principal": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"timestamp": time.Now().UnixMilli(),
		"verification_key": map[string]any{
			"scheme": "groth16",
			"curve":  "bn254",
			"data":   []byte{0xaa, 0xbb},
		},
	}
	if mutate != nil {
		mutate(body)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func (f *apiFixture) post(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestVerifyEndpointSuccess(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	w := f.post(t, f.verifyBody(t, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data VerifyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Verified)
	assert.Equal(t, "key", resp.Data.Method)
}

func TestVerifyEndpointReplayRejected(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	body := f.verifyBody(t, nil)
	require.Equal(t, http.StatusOK, f.post(t, body).Code)

	w := f.post(t, body)
	require.Equal(t, http.StatusConflict, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "REPLAY_REJECTED", resp.Error.Code)
	assert.Equal(t, "ALREADY_USED", resp.Error.Details["reason"])
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestVerifyEndpointStaleTimestamp(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	w := f.post(t, f.verifyBody(t, func(body map[string]any) {
		body["timestamp"] = time.Now().Add(-time.Hour).UnixMilli()
	}))
	require.Equal(t, http.StatusConflict, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "REPLAY_REJECTED", resp.Error.Code)
	assert.Equal(t, "EXPIRED", resp.Error.Details["reason"])
}

func TestVerifyEndpointRejectsBadEnvelope(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	w := f.post(t, f.verifyBody(t, func(body map[string]any) {
		body["envelope"] = json.RawMessage(`{"hello":"world"}`)
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ENVELOPE", decodeError(t, w).Error.Code)
}

func TestVerifyEndpointRejectsBadBinding(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	// Nonce below the minimum length never reaches the service.
	w := f.post(t, f.verifyBody(t, func(body map[string]any) {
		body["nonce"] = "short"
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Error.Code)

	w = f.post(t, f.verifyBody(t, func(body map[string]any) {
		body["method"] = "quantum"
	}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Error.Code)
}

func TestVerifyEndpointChainUnavailable(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	w := f.post(t, f.verifyBody(t, func(body map[string]any) {
		body["method"] = "onChain"
		body["contract"] = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	}))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "CHAIN_RPC_ERROR", decodeError(t, w).Error.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t, &stubCrypto{verified: true})

	require.Equal(t, http.StatusOK, f.post(t, f.verifyBody(t, nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verify/stats", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Cache.Size)
	assert.Equal(t, uint64(1), resp.Data.Nonce.Accepted)
}

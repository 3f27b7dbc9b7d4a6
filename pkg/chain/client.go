// Package chain implements the chain-query capability over a JSON-RPC
// Ethereum endpoint. Only the on-chain verification pathway uses it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/pkg/verifier"
)

// ErrInvalidContract rejects call targets that are not hex addresses.
var ErrInvalidContract = errors.New("chain: contract is not a valid address")

// Client wraps an ethclient connection.
type Client struct {
	ec     *ethclient.Client
	logger *zap.Logger
}

// Compile-time interface compliance check
var _ verifier.ChainCaller = (*Client)(nil)

// Dial connects to the RPC endpoint.
func Dial(rpcURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return &Client{ec: ec, logger: logger}, nil
}

// CallContract executes a read-only call against the contract with the
// given calldata and returns the raw return bytes. The caller bounds the
// wait through ctx.
func (c *Client) CallContract(ctx context.Context, contract string, payload []byte) ([]byte, error) {
	if !common.IsHexAddress(contract) {
		return nil, ErrInvalidContract
	}
	addr := common.HexToAddress(contract)

	start := time.Now()
	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		c.logger.Error("contract call failed",
			zap.String("contract", contract),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("chain: call %s: %w", contract, err)
	}

	c.logger.Debug("contract call completed",
		zap.String("contract", contract),
		zap.Int("payload_bytes", len(payload)),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// Ping checks endpoint reachability, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.ec.ChainID(ctx); err != nil {
		return fmt.Errorf("chain: ping: %w", err)
	}
	return nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`
	allowanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	isApprovedForAllABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"name":"isApprovedForAll","outputs":[{"name":"","type":"bool"}],"type":"function"}]`
)

// Client reads stable-token balances and exchange allowances for the risk
// gate and the approval flow.
type Client struct {
	rpcURL      string
	stableToken common.Address
	logger      *zap.Logger
}

// NewClient creates a wallet client bound to one stable-token contract.
func NewClient(rpcURL, stableToken string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Client{
		rpcURL:      rpcURL,
		stableToken: common.HexToAddress(stableToken),
		logger:      logger,
	}, nil
}

// StableBalance returns the owner's stable-token balance in base units.
func (c *Client) StableBalance(ctx context.Context, owner common.Address) (int64, error) {
	result, err := c.call(ctx, balanceOfABI, "balanceOf", owner)
	if err != nil {
		return 0, fmt.Errorf("get stable balance: %w", err)
	}
	return clampInt64(result), nil
}

// Allowance returns the stable-token allowance granted to spender.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (int64, error) {
	result, err := c.call(ctx, allowanceABI, "allowance", owner, spender)
	if err != nil {
		return 0, fmt.Errorf("get allowance: %w", err)
	}
	return clampInt64(result), nil
}

// OutcomeApproved reports whether operator may move the owner's outcome
// tokens on the given ERC-1155 contract.
func (c *Client) OutcomeApproved(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	result, err := c.callAt(ctx, token, isApprovedForAllABI, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, fmt.Errorf("get outcome approval: %w", err)
	}
	return result.Sign() != 0, nil
}

// PendingNonce returns the next transaction nonce for owner.
func (c *Client) PendingNonce(ctx context.Context, owner common.Address) (uint64, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	nonce, err := client.PendingNonceAt(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("get pending nonce: %w", err)
	}

	return nonce, nil
}

// NativeBalance returns the gas-token balance in wei.
func (c *Client) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	balance, err := client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("get native balance: %w", err)
	}

	return balance, nil
}

func (c *Client) call(ctx context.Context, rawABI, method string, args ...interface{}) (*big.Int, error) {
	return c.callAt(ctx, c.stableToken, rawABI, method, args...)
}

func (c *Client) callAt(ctx context.Context, target common.Address, rawABI, method string, args ...interface{}) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	msg := ethereum.CallMsg{
		To:   &target,
		Data: data,
	}

	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// clampInt64 saturates oversized uint256 values; stable balances fit into
// int64 base units for any realistic account.
func clampInt64(v *big.Int) int64 {
	if !v.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return v.Int64()
}

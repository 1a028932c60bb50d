package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
)

// Local is an in-process Signer backed by a raw ECDSA key. Production
// deployments construct it from the decrypted vault entry of one user.
type Local struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	rpcURL       string
	orderBuilder builder.ExchangeOrderBuilder
}

// NewLocal creates a Local signer from a hex private key.
// rpcURL may be empty when on-chain transactions are not needed (dry-run).
func NewLocal(privateKeyHex string, chainID int64, rpcURL string) (*Local, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	id := big.NewInt(chainID)

	return &Local{
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      id,
		rpcURL:       rpcURL,
		orderBuilder: builder.NewExchangeOrderBuilderImpl(id, nil),
	}, nil
}

// Address returns the signing address.
func (l *Local) Address() common.Address {
	return l.address
}

// SignMessage signs an EIP-191 personal message. The recovery byte is
// shifted to the 27/28 convention venues expect.
func (l *Local) SignMessage(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), l.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignTypedData signs EIP-712 typed data.
func (l *Local) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, l.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignOrder builds and signs an exchange order.
func (l *Local) SignOrder(order *model.OrderData, contract model.VerifyingContract) (*model.SignedOrder, error) {
	signed, err := l.orderBuilder.BuildSignedOrder(l.key, order, contract)
	if err != nil {
		return nil, fmt.Errorf("build signed order: %w", err)
	}
	return signed, nil
}

// SendTransaction signs and broadcasts a transaction.
func (l *Local) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	if l.rpcURL == "" {
		return common.Hash{}, errors.New("signer has no RPC endpoint configured")
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(l.chainID), l.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	client, err := ethclient.DialContext(ctx, l.rpcURL)
	if err != nil {
		return common.Hash{}, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	err = client.SendTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	return signed.Hash(), nil
}

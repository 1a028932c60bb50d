package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/polymarket/go-order-utils/pkg/model"
)

// Signer holds one user's key material and produces signatures for venue
// authentication, order submission and on-chain transactions. Private-key
// material never leaves the implementation.
type Signer interface {
	// Address returns the signing address.
	Address() common.Address

	// SignMessage signs an EIP-191 personal message.
	SignMessage(msg []byte) ([]byte, error)

	// SignTypedData signs EIP-712 typed data.
	SignTypedData(data apitypes.TypedData) ([]byte, error)

	// SignOrder builds and signs an exchange order for the given verifying
	// contract.
	SignOrder(order *model.OrderData, contract model.VerifyingContract) (*model.SignedOrder, error)

	// SendTransaction signs and broadcasts a transaction, returning its hash.
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error)
}

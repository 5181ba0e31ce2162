package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DispatchParams describes a point-to-point message send through a mailbox.
type DispatchParams struct {
	Mailbox           common.Address
	DestinationDomain uint32
	Recipient         common.Address
	Body              []byte
	// Hook, when non-zero, routes post-dispatch processing through the
	// given hook instead of the mailbox default. Used by self-relay to pin
	// the merkle tree hook.
	Hook common.Address
}

// TransferParams describes a warp route token transfer.
type TransferParams struct {
	Router            common.Address
	DestinationDomain uint32
	Recipient         common.Address
	Amount            *big.Int
}

// DispatchResult is the outcome of a dispatching transaction.
type DispatchResult struct {
	TxHash    common.Hash
	MessageID common.Hash
	// Message is the raw dispatched message from the Dispatch event,
	// needed for self-relay.
	Message []byte
}

// Provider is the per-chain SDK surface the transfer engine depends on.
// Implementations own the RPC connection and the signing key.
type Provider interface {
	ChainName() string
	SignerAddress() common.Address
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)

	DispatchMessage(ctx context.Context, params DispatchParams) (*DispatchResult, error)
	TransferRemote(ctx context.Context, params TransferParams) (*DispatchResult, error)
	// ProcessMessage delivers a dispatched message on this (destination)
	// chain, bypassing the external relayer.
	ProcessMessage(ctx context.Context, mailbox common.Address, metadata, message []byte) (common.Hash, error)
	// Delivered reports whether the mailbox has processed the message.
	Delivered(ctx context.Context, mailbox common.Address, messageID common.Hash) (bool, error)

	Close()
}

// Factory resolves a Provider for a chain by name.
type Factory interface {
	Provider(ctx context.Context, chainName string) (Provider, error)
}

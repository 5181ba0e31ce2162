package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// EVMProvider implements Provider for EVM chains over a single RPC endpoint.
type EVMProvider struct {
	name    string
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	signer  common.Address
	chainID *big.Int
	logger  *zap.Logger
}

// NewEVMProvider dials the RPC endpoint and derives the signer address from
// the hex-encoded private key.
func NewEVMProvider(ctx context.Context, name, rpcURL, hexKey string, logger *zap.Logger) (*EVMProvider, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("chain %s: rpc url is required", name)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("chain %s: parse private key: %w", name, err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial %s: %w", name, rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain %s: query chain id: %w", name, err)
	}

	return &EVMProvider{
		name:    name,
		client:  client,
		key:     key,
		signer:  crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		logger:  logger.With(zap.String("chain", name)),
	}, nil
}

func (p *EVMProvider) ChainName() string             { return p.name }
func (p *EVMProvider) SignerAddress() common.Address { return p.signer }

func (p *EVMProvider) Close() {
	p.client.Close()
}

func (p *EVMProvider) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.client.BalanceAt(ctx, account, nil)
}

func (p *EVMProvider) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := TokenRouterABI.Pack("balanceOf", account)
	if err != nil {
		return nil, err
	}
	out, err := p.client.CallContract(ctx, geth.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	results, err := TokenRouterABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(results[0], new(big.Int)).(*big.Int), nil
}

func (p *EVMProvider) DispatchMessage(ctx context.Context, params DispatchParams) (*DispatchResult, error) {
	var (
		data []byte
		err  error
	)
	recipient := AddressToBytes32(params.Recipient)
	if params.Hook != (common.Address{}) {
		data, err = HookDispatchABI.Pack("dispatch", params.DestinationDomain, recipient, params.Body, []byte{}, params.Hook)
	} else {
		data, err = MailboxABI.Pack("dispatch", params.DestinationDomain, recipient, params.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("pack dispatch: %w", err)
	}

	receipt, err := p.sendTx(ctx, params.Mailbox, data, nil)
	if err != nil {
		return nil, err
	}
	return p.dispatchResult(receipt)
}

func (p *EVMProvider) TransferRemote(ctx context.Context, params TransferParams) (*DispatchResult, error) {
	quoteData, err := TokenRouterABI.Pack("quoteGasPayment", params.DestinationDomain)
	if err != nil {
		return nil, err
	}
	quoteOut, err := p.client.CallContract(ctx, geth.CallMsg{To: &params.Router, Data: quoteData}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote gas payment: %w", err)
	}
	quoted, err := TokenRouterABI.Unpack("quoteGasPayment", quoteOut)
	if err != nil {
		return nil, err
	}
	payment := abi.ConvertType(quoted[0], new(big.Int)).(*big.Int)

	data, err := TokenRouterABI.Pack("transferRemote",
		params.DestinationDomain, AddressToBytes32(params.Recipient), params.Amount)
	if err != nil {
		return nil, fmt.Errorf("pack transferRemote: %w", err)
	}

	receipt, err := p.sendTx(ctx, params.Router, data, payment)
	if err != nil {
		return nil, err
	}
	return p.dispatchResult(receipt)
}

func (p *EVMProvider) ProcessMessage(ctx context.Context, mailbox common.Address, metadata, message []byte) (common.Hash, error) {
	if metadata == nil {
		metadata = []byte{}
	}
	data, err := MailboxABI.Pack("process", metadata, message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack process: %w", err)
	}
	receipt, err := p.sendTx(ctx, mailbox, data, nil)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

func (p *EVMProvider) Delivered(ctx context.Context, mailbox common.Address, messageID common.Hash) (bool, error) {
	data, err := MailboxABI.Pack("delivered", [32]byte(messageID))
	if err != nil {
		return false, err
	}
	out, err := p.client.CallContract(ctx, geth.CallMsg{To: &mailbox, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("delivered call: %w", err)
	}
	results, err := MailboxABI.Unpack("delivered", out)
	if err != nil {
		return false, err
	}
	return results[0].(bool), nil
}

// sendTx signs, submits and waits for inclusion of a contract call. The
// context bounds every step, including the receipt wait, so a timed-out hop
// cancels the in-flight request rather than leaking it.
func (p *EVMProvider) sendTx(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	nonce, err := p.client.PendingNonceAt(ctx, p.signer)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := p.client.EstimateGas(ctx, geth.CallMsg{
		From:  p.signer,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	p.logger.Debug("transaction submitted",
		zap.String("to", to.Hex()),
		zap.String("txHash", signed.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, p.client, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}

// dispatchResult extracts the message ID and raw message from the mailbox
// events in a receipt.
func (p *EVMProvider) dispatchResult(receipt *types.Receipt) (*DispatchResult, error) {
	result := &DispatchResult{TxHash: receipt.TxHash}
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case DispatchIDTopic:
			if len(log.Topics) > 1 {
				result.MessageID = log.Topics[1]
			}
		case DispatchTopic:
			unpacked, err := MailboxABI.Events["Dispatch"].Inputs.NonIndexed().Unpack(log.Data)
			if err != nil {
				return nil, fmt.Errorf("unpack Dispatch event: %w", err)
			}
			result.Message = unpacked[0].([]byte)
		}
	}
	if result.MessageID == (common.Hash{}) {
		return nil, fmt.Errorf("transaction %s emitted no DispatchId event", receipt.TxHash.Hex())
	}
	return result, nil
}

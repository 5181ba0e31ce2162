package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// MailboxABI covers the mailbox calls used for point-to-point messaging.
	MailboxABI abi.ABI
	// HookDispatchABI is the dispatch overload taking a custom hook, used
	// for self-relayed sends.
	HookDispatchABI abi.ABI
	// TokenRouterABI covers the warp route token router surface.
	TokenRouterABI abi.ABI

	// DispatchTopic is the topic hash of the mailbox Dispatch event.
	DispatchTopic = crypto.Keccak256Hash([]byte("Dispatch(address,uint32,bytes32,bytes)"))
	// DispatchIDTopic is the topic hash of the mailbox DispatchId event.
	DispatchIDTopic = crypto.Keccak256Hash([]byte("DispatchId(bytes32)"))
)

func init() {
	for _, entry := range []struct {
		dst *abi.ABI
		raw string
	}{
		{&MailboxABI, rawMailboxABI},
		{&HookDispatchABI, rawHookDispatchABI},
		{&TokenRouterABI, rawTokenRouterABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(entry.raw))
		if err != nil {
			panic(err)
		}
		*entry.dst = parsed
	}
}

const rawMailboxABI = `[
    {
        "inputs": [
            {"internalType": "uint32",  "name": "destinationDomain", "type": "uint32"},
            {"internalType": "bytes32", "name": "recipientAddress", "type": "bytes32"},
            {"internalType": "bytes",   "name": "messageBody", "type": "bytes"}
        ],
        "name": "dispatch",
        "outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
        "stateMutability": "payable",
        "type": "function"
    },
    {
        "inputs": [
            {"internalType": "bytes", "name": "metadata", "type": "bytes"},
            {"internalType": "bytes", "name": "message", "type": "bytes"}
        ],
        "name": "process",
        "outputs": [],
        "stateMutability": "payable",
        "type": "function"
    },
    {
        "inputs": [{"internalType": "bytes32", "name": "messageId", "type": "bytes32"}],
        "name": "delivered",
        "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "anonymous": false,
        "inputs": [
            {"indexed": true,  "internalType": "address", "name": "sender", "type": "address"},
            {"indexed": true,  "internalType": "uint32",  "name": "destination", "type": "uint32"},
            {"indexed": true,  "internalType": "bytes32", "name": "recipient", "type": "bytes32"},
            {"indexed": false, "internalType": "bytes",   "name": "message", "type": "bytes"}
        ],
        "name": "Dispatch",
        "type": "event"
    },
    {
        "anonymous": false,
        "inputs": [
            {"indexed": true, "internalType": "bytes32", "name": "messageId", "type": "bytes32"}
        ],
        "name": "DispatchId",
        "type": "event"
    }
]`

const rawHookDispatchABI = `[
    {
        "inputs": [
            {"internalType": "uint32",  "name": "destinationDomain", "type": "uint32"},
            {"internalType": "bytes32", "name": "recipientAddress", "type": "bytes32"},
            {"internalType": "bytes",   "name": "messageBody", "type": "bytes"},
            {"internalType": "bytes",   "name": "metadata", "type": "bytes"},
            {"internalType": "contract IPostDispatchHook", "name": "hook", "type": "address"}
        ],
        "name": "dispatch",
        "outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
        "stateMutability": "payable",
        "type": "function"
    }
]`

const rawTokenRouterABI = `[
    {
        "inputs": [
            {"internalType": "uint32",  "name": "destination", "type": "uint32"},
            {"internalType": "bytes32", "name": "recipient", "type": "bytes32"},
            {"internalType": "uint256", "name": "amountOrId", "type": "uint256"}
        ],
        "name": "transferRemote",
        "outputs": [{"internalType": "bytes32", "name": "messageId", "type": "bytes32"}],
        "stateMutability": "payable",
        "type": "function"
    },
    {
        "inputs": [{"internalType": "uint32", "name": "destinationDomain", "type": "uint32"}],
        "name": "quoteGasPayment",
        "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
        "stateMutability": "view",
        "type": "function"
    },
    {
        "inputs": [
            {"internalType": "uint32",  "name": "domain", "type": "uint32"},
            {"internalType": "bytes32", "name": "router", "type": "bytes32"}
        ],
        "name": "enrollRemoteRouter",
        "outputs": [],
        "stateMutability": "nonpayable",
        "type": "function"
    },
    {
        "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
        "name": "balanceOf",
        "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
        "stateMutability": "view",
        "type": "function"
    }
]`

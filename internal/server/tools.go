package server

import (
	mcpschema "github.com/viant/mcp-protocol/schema"
)

// Tool names exposed over MCP.
const (
	toolDeployChain     = "deploy-chain"
	toolSendMessage     = "send-message"
	toolTransferAsset   = "transfer-asset"
	toolDeployWarpRoute = "deploy-warp-route"
	toolRunValidator    = "run-validator"
	toolRunRelayer      = "run-relayer"
)

// warpRouteScheme is the resource URI scheme for warp route lookups:
// hyperlane-warp-route:///{symbol}/{chain}.
const warpRouteScheme = "hyperlane-warp-route"

type deployChainInput struct {
	ChainName string `json:"chainName"`
	ChainID   uint64 `json:"chainId"`
	DomainID  uint32 `json:"domainId"`
	RpcURL    string `json:"rpcUrl"`
	IsTestnet bool   `json:"isTestnet"`
}

type sendMessageInput struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Recipient   string `json:"recipient"`
	Body        string `json:"body"`
	SelfRelay   bool   `json:"selfRelay"`
}

type transferAssetInput struct {
	Symbol    string   `json:"symbol"`
	Amount    string   `json:"amount"`
	Chains    []string `json:"chains"`
	Recipient string   `json:"recipient"`
}

type warpTokenInput struct {
	ChainName string `json:"chainName"`
	Type      string `json:"type"`
	Owner     string `json:"owner"`
	Token     string `json:"token"`
}

type deployWarpRouteInput struct {
	Symbol string           `json:"symbol"`
	Tokens []warpTokenInput `json:"tokens"`
}

type runValidatorInput struct {
	Chain string `json:"chain"`
}

type runRelayerInput struct {
	Chains []string `json:"chains"`
}

func strPtr(s string) *string { return &s }

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

func arrayProp(itemType, desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": desc,
		"items":       map[string]interface{}{"type": itemType},
	}
}

func toolDefinitions() []mcpschema.Tool {
	return []mcpschema.Tool{
		{
			Name:        toolDeployChain,
			Description: strPtr("Register an EVM chain and deploy the Hyperlane core contracts (mailbox, ISM, hooks) to it."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"chainName": prop("string", "Unique chain name, e.g. basesepolia"),
					"chainId":   prop("integer", "EVM chain ID"),
					"domainId":  prop("integer", "Hyperlane domain ID, usually equal to the chain ID"),
					"rpcUrl":    prop("string", "HTTP JSON-RPC endpoint"),
					"isTestnet": prop("boolean", "Whether the chain is a testnet"),
				},
				Required: []string{"chainName", "chainId", "domainId", "rpcUrl"},
			},
		},
		{
			Name:        toolSendMessage,
			Description: strPtr("Dispatch an arbitrary message from one chain's mailbox to a recipient contract on another chain, optionally self-relaying the delivery."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"origin":      prop("string", "Origin chain name"),
					"destination": prop("string", "Destination chain name"),
					"recipient":   prop("string", "Recipient contract address on the destination chain"),
					"body":        prop("string", "Message body"),
					"selfRelay":   prop("boolean", "Deliver the message by calling process() directly instead of waiting for a relayer"),
				},
				Required: []string{"origin", "destination", "recipient", "body"},
			},
		},
		{
			Name:        toolTransferAsset,
			Description: strPtr("Transfer tokens along an ordered chain path over warp routes, one hop per consecutive chain pair."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"symbol":    prop("string", "Token symbol, e.g. USDC"),
					"amount":    prop("string", "Decimal token amount, e.g. 1.5"),
					"chains":    arrayProp("string", "Ordered chain path; each consecutive pair is one hop"),
					"recipient": prop("string", "Final recipient address; defaults to the signer on the last chain"),
				},
				Required: []string{"symbol", "amount", "chains"},
			},
		},
		{
			Name:        toolDeployWarpRoute,
			Description: strPtr("Deploy a warp route (token bridge) across chains and register it under its derived route ID."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"symbol": prop("string", "Token symbol the route bridges"),
					"tokens": map[string]interface{}{
						"type":        "array",
						"description": "One entry per participating chain",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"chainName": map[string]interface{}{"type": "string"},
								"type":      map[string]interface{}{"type": "string", "description": "Token type: native, collateral or synthetic"},
								"owner":     map[string]interface{}{"type": "string"},
								"token":     map[string]interface{}{"type": "string", "description": "Collateral token address, required for collateral type"},
							},
							"required": []string{"chainName", "type"},
						},
					},
				},
				Required: []string{"symbol", "tokens"},
			},
		},
		{
			Name:        toolRunValidator,
			Description: strPtr("Launch a validator container signing checkpoints for one chain."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"chain": prop("string", "Chain to validate"),
				},
				Required: []string{"chain"},
			},
		},
		{
			Name:        toolRunRelayer,
			Description: strPtr("Launch a relayer container delivering messages between the given chains."),
			InputSchema: mcpschema.ToolInputSchema{
				Type: "object",
				Properties: mcpschema.ToolInputSchemaProperties{
					"chains": arrayProp("string", "Chains the relayer connects"),
				},
				Required: []string{"chains"},
			},
		},
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/viant/jsonrpc"
	mcpschema "github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/interchainlabs/hypermcp/internal/agent"
	"github.com/interchainlabs/hypermcp/internal/registry"
	"github.com/interchainlabs/hypermcp/internal/transfer"
)

// TransferEngine is the transfer surface the handler depends on.
type TransferEngine interface {
	Transfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)
	SendMessage(ctx context.Context, req transfer.MessageRequest) (*transfer.MessageResult, error)
}

// AgentManager launches validator and relayer containers.
type AgentManager interface {
	StartValidator(ctx context.Context, chainName string) (*agent.Agent, error)
	StartRelayer(ctx context.Context, chainNames []string) (*agent.Agent, error)
}

// Deployer deploys hyperlane contracts.
type Deployer interface {
	DeployCore(ctx context.Context, chainName string) (registry.ChainAddresses, error)
	DeployWarpRoute(ctx context.Context, symbol string, deploy registry.WarpDeployConfig) (registry.WarpRouteConfig, error)
}

// Handler serves the MCP tool and resource surface.
type Handler struct {
	reg      *registry.LocalRegistry
	engine   TransferEngine
	agents   AgentManager
	deployer Deployer
	logger   *zap.Logger
}

func NewHandler(reg *registry.LocalRegistry, engine TransferEngine, agents AgentManager, deployer Deployer, logger *zap.Logger) *Handler {
	return &Handler{
		reg:      reg,
		engine:   engine,
		agents:   agents,
		deployer: deployer,
		logger:   logger,
	}
}

func (h *Handler) Initialize(_ context.Context, _ *mcpschema.InitializeRequestParams, _ *mcpschema.InitializeResult) {
}

func (h *Handler) ListTools(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListToolsRequest]) (*mcpschema.ListToolsResult, *jsonrpc.Error) {
	return &mcpschema.ListToolsResult{Tools: toolDefinitions()}, nil
}

func (h *Handler) CallTool(ctx context.Context, req *jsonrpc.TypedRequest[*mcpschema.CallToolRequest]) (*mcpschema.CallToolResult, *jsonrpc.Error) {
	if req == nil || req.Request == nil {
		return nil, jsonrpc.NewInvalidRequest("missing request", nil)
	}
	name := strings.TrimSpace(req.Request.Params.Name)
	if name == "" {
		return nil, jsonrpc.NewInvalidRequest("missing tool name", nil)
	}

	args, err := json.Marshal(req.Request.Params.Arguments)
	if err != nil {
		return nil, jsonrpc.NewInvalidParamsError(err.Error(), nil)
	}

	var (
		out     interface{}
		callErr error
	)
	switch name {
	case toolDeployChain:
		out, callErr = callTyped(ctx, args, h.deployChain)
	case toolSendMessage:
		out, callErr = callTyped(ctx, args, h.sendMessage)
	case toolTransferAsset:
		out, callErr = callTyped(ctx, args, h.transferAsset)
	case toolDeployWarpRoute:
		out, callErr = callTyped(ctx, args, h.deployWarpRoute)
	case toolRunValidator:
		out, callErr = callTyped(ctx, args, h.runValidator)
	case toolRunRelayer:
		out, callErr = callTyped(ctx, args, h.runRelayer)
	default:
		return nil, mcpschema.NewUnknownTool(name)
	}

	if callErr != nil {
		h.logger.Warn("tool call failed", zap.String("tool", name), zap.Error(callErr))
		isErr := true
		return &mcpschema.CallToolResult{
			IsError: &isErr,
			Content: []mcpschema.CallToolResultContentElem{
				mcpschema.TextContent{Type: "text", Text: callErr.Error()},
			},
		}, nil
	}
	return toolResult(out), nil
}

// callTyped decodes raw tool arguments into the handler's input type before
// invoking it.
func callTyped[T any](ctx context.Context, args []byte, fn func(context.Context, T) (interface{}, error)) (interface{}, error) {
	var in T
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return fn(ctx, in)
}

func toolResult(out interface{}) *mcpschema.CallToolResult {
	data, err := json.Marshal(out)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", out))
	}
	res := &mcpschema.CallToolResult{
		Content: []mcpschema.CallToolResultContentElem{
			mcpschema.TextContent{Type: "text", Text: string(data)},
		},
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(data, &structured); err == nil {
		res.StructuredContent = structured
	}
	return res
}

func (h *Handler) deployChain(ctx context.Context, in deployChainInput) (interface{}, error) {
	if in.ChainName == "" || in.RpcURL == "" {
		return nil, fmt.Errorf("chainName and rpcUrl are required")
	}
	meta := &registry.ChainMetadata{
		Name:      in.ChainName,
		ChainID:   in.ChainID,
		DomainID:  in.DomainID,
		Protocol:  "ethereum",
		IsTestnet: in.IsTestnet,
		RpcURLs:   []registry.Endpoint{{HTTP: in.RpcURL}},
	}
	if err := h.reg.AddChain(ctx, registry.AddChainParams{Metadata: meta}); err != nil {
		return nil, err
	}

	addrs, err := h.deployer.DeployCore(ctx, in.ChainName)
	if err != nil {
		return nil, err
	}
	if err := h.reg.UpdateChain(ctx, registry.UpdateChainParams{
		Name:            in.ChainName,
		DeployAddresses: addrs,
	}); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"chainName": in.ChainName,
		"domainId":  in.DomainID,
		"addresses": addrs,
	}, nil
}

func (h *Handler) sendMessage(ctx context.Context, in sendMessageInput) (interface{}, error) {
	if !common.IsHexAddress(in.Recipient) {
		return nil, fmt.Errorf("recipient %q is not a valid address", in.Recipient)
	}
	result, err := h.engine.SendMessage(ctx, transfer.MessageRequest{
		Origin:      in.Origin,
		Destination: in.Destination,
		Recipient:   common.HexToAddress(in.Recipient),
		Body:        []byte(in.Body),
		SelfRelay:   in.SelfRelay,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handler) transferAsset(ctx context.Context, in transferAssetInput) (interface{}, error) {
	req := transfer.Request{
		Symbol: in.Symbol,
		Amount: in.Amount,
		Chains: in.Chains,
	}
	if in.Recipient != "" {
		if !common.IsHexAddress(in.Recipient) {
			return nil, fmt.Errorf("recipient %q is not a valid address", in.Recipient)
		}
		req.Recipient = common.HexToAddress(in.Recipient)
	}

	result, err := h.engine.Transfer(ctx, req)
	if err != nil {
		// Completed hops moved funds; the caller needs them even when
		// the path aborted partway.
		partial, _ := json.Marshal(result)
		return nil, fmt.Errorf("%w (completed hops: %s)", err, partial)
	}
	return result, nil
}

func (h *Handler) deployWarpRoute(ctx context.Context, in deployWarpRouteInput) (interface{}, error) {
	if in.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if len(in.Tokens) < 2 {
		return nil, fmt.Errorf("warp route needs at least two chains, got %d", len(in.Tokens))
	}

	deploy := make(registry.WarpDeployConfig, len(in.Tokens))
	chains := make([]string, 0, len(in.Tokens))
	for _, token := range in.Tokens {
		if token.ChainName == "" || token.Type == "" {
			return nil, fmt.Errorf("every token needs chainName and type")
		}
		deploy[token.ChainName] = registry.WarpDeployChainConfig{
			Type:  token.Type,
			Owner: token.Owner,
			Token: token.Token,
		}
		chains = append(chains, token.ChainName)
	}

	// An existing route covering the same symbol and chains makes the
	// deployment a no-op.
	if existing := h.reg.WarpRoutesBySymbolAndChains(ctx, in.Symbol, chains); len(existing) > 0 {
		return map[string]interface{}{
			"routeId":  existing[0].ID,
			"existing": true,
			"tokens":   existing[0].Config.Tokens,
		}, nil
	}

	cfg, err := h.deployer.DeployWarpRoute(ctx, in.Symbol, deploy)
	if err != nil {
		return nil, err
	}

	id := registry.RouteID(cfg, in.Symbol)
	if !h.reg.Store().RouteFileExists(id) {
		if _, err := h.reg.AddWarpRoute(cfg, in.Symbol); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{
		"routeId": id,
		"tokens":  cfg.Tokens,
	}, nil
}

func (h *Handler) runValidator(ctx context.Context, in runValidatorInput) (interface{}, error) {
	if in.Chain == "" {
		return nil, fmt.Errorf("chain is required")
	}
	return h.agents.StartValidator(ctx, in.Chain)
}

func (h *Handler) runRelayer(ctx context.Context, in runRelayerInput) (interface{}, error) {
	if len(in.Chains) < 2 {
		return nil, fmt.Errorf("relayer needs at least two chains, got %d", len(in.Chains))
	}
	return h.agents.StartRelayer(ctx, in.Chains)
}

func (h *Handler) ListResources(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListResourcesRequest]) (*mcpschema.ListResourcesResult, *jsonrpc.Error) {
	return &mcpschema.ListResourcesResult{Resources: []mcpschema.Resource{}}, nil
}

func (h *Handler) ListResourceTemplates(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListResourceTemplatesRequest]) (*mcpschema.ListResourceTemplatesResult, *jsonrpc.Error) {
	return &mcpschema.ListResourceTemplatesResult{
		ResourceTemplates: []mcpschema.ResourceTemplate{
			{
				Name:        "warp-routes",
				UriTemplate: warpRouteScheme + ":///{symbol}{/chain*}",
				Description: strPtr("Warp route configs matching a token symbol and one or more participating chains, as a JSON array."),
			},
		},
	}, nil
}

// ReadResource serves warp route lookups. Lookups never fail: a malformed
// URI or an internal error yields an empty JSON array.
func (h *Handler) ReadResource(ctx context.Context, req *jsonrpc.TypedRequest[*mcpschema.ReadResourceRequest]) (*mcpschema.ReadResourceResult, *jsonrpc.Error) {
	if req == nil || req.Request == nil {
		return nil, jsonrpc.NewInvalidRequest("missing request", nil)
	}
	uri := req.Request.Params.Uri
	configs := h.lookupWarpRoutes(ctx, uri)

	text, err := json.Marshal(configs)
	if err != nil {
		text = []byte("[]")
	}
	return &mcpschema.ReadResourceResult{
		Contents: []mcpschema.ReadResourceResultContentsElem{
			{Uri: uri, Text: string(text)},
		},
	}, nil
}

func (h *Handler) lookupWarpRoutes(ctx context.Context, rawURI string) []registry.WarpRouteConfig {
	parsed, err := url.Parse(rawURI)
	if err != nil || parsed.Scheme != warpRouteScheme {
		h.logger.Warn("unsupported resource uri", zap.String("uri", rawURI))
		return []registry.WarpRouteConfig{}
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 {
		h.logger.Warn("malformed warp route uri", zap.String("uri", rawURI))
		return []registry.WarpRouteConfig{}
	}
	for _, part := range parts {
		if part == "" {
			h.logger.Warn("malformed warp route uri", zap.String("uri", rawURI))
			return []registry.WarpRouteConfig{}
		}
	}
	symbol, chainNames := parts[0], parts[1:]

	matches := h.reg.WarpRoutesBySymbolAndChains(ctx, symbol, chainNames)
	configs := make([]registry.WarpRouteConfig, 0, len(matches))
	for _, m := range matches {
		configs = append(configs, m.Config)
	}
	return configs
}

func (h *Handler) Subscribe(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.SubscribeRequest]) (*mcpschema.SubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("subscribe not implemented", nil)
}

func (h *Handler) Unsubscribe(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.UnsubscribeRequest]) (*mcpschema.UnsubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("unsubscribe not implemented", nil)
}

func (h *Handler) ListPrompts(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListPromptsRequest]) (*mcpschema.ListPromptsResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("prompts/list not implemented", nil)
}

func (h *Handler) GetPrompt(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.GetPromptRequest]) (*mcpschema.GetPromptResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("prompts/get not implemented", nil)
}

func (h *Handler) Complete(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.CompleteRequest]) (*mcpschema.CompleteResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("complete not implemented", nil)
}

func (h *Handler) OnNotification(_ context.Context, _ *jsonrpc.Notification) {}

func (h *Handler) Implements(method string) bool {
	switch method {
	case mcpschema.MethodToolsList, mcpschema.MethodToolsCall,
		"resources/list", "resources/read", "resources/templates/list":
		return true
	default:
		return false
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	mcpschema "github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap/zaptest"

	"github.com/interchainlabs/hypermcp/internal/agent"
	"github.com/interchainlabs/hypermcp/internal/registry"
	"github.com/interchainlabs/hypermcp/internal/transfer"
)

type mockEngine struct {
	transferResult *transfer.Result
	transferErr    error
	messageResult  *transfer.MessageResult
	messageErr     error

	transferReqs []transfer.Request
	messageReqs  []transfer.MessageRequest
}

func (m *mockEngine) Transfer(_ context.Context, req transfer.Request) (*transfer.Result, error) {
	m.transferReqs = append(m.transferReqs, req)
	if m.transferErr != nil {
		return &transfer.Result{TransferID: "partial", Hops: []transfer.HopResult{}}, m.transferErr
	}
	return m.transferResult, nil
}

func (m *mockEngine) SendMessage(_ context.Context, req transfer.MessageRequest) (*transfer.MessageResult, error) {
	m.messageReqs = append(m.messageReqs, req)
	return m.messageResult, m.messageErr
}

type mockAgents struct {
	validators []string
	relayers   [][]string
}

func (m *mockAgents) StartValidator(_ context.Context, chainName string) (*agent.Agent, error) {
	m.validators = append(m.validators, chainName)
	return &agent.Agent{ID: "v1", Type: agent.TypeValidator, Chains: []string{chainName}}, nil
}

func (m *mockAgents) StartRelayer(_ context.Context, chainNames []string) (*agent.Agent, error) {
	m.relayers = append(m.relayers, chainNames)
	return &agent.Agent{ID: "r1", Type: agent.TypeRelayer, Chains: chainNames}, nil
}

type mockDeployer struct {
	coreAddrs  registry.ChainAddresses
	coreErr    error
	warpConfig registry.WarpRouteConfig
	warpErr    error

	coreDeploys []string
	warpDeploys []string
}

func (m *mockDeployer) DeployCore(_ context.Context, chainName string) (registry.ChainAddresses, error) {
	m.coreDeploys = append(m.coreDeploys, chainName)
	return m.coreAddrs, m.coreErr
}

func (m *mockDeployer) DeployWarpRoute(_ context.Context, symbol string, _ registry.WarpDeployConfig) (registry.WarpRouteConfig, error) {
	m.warpDeploys = append(m.warpDeploys, symbol)
	return m.warpConfig, m.warpErr
}

func testHandler(t *testing.T) (*Handler, *registry.LocalRegistry, *mockEngine, *mockAgents, *mockDeployer) {
	t.Helper()
	store, err := registry.NewStore(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	reg := registry.New(store, registry.NullSource{}, zaptest.NewLogger(t))

	engine := &mockEngine{}
	agents := &mockAgents{}
	deployer := &mockDeployer{}
	h := NewHandler(reg, engine, agents, deployer, zaptest.NewLogger(t))
	return h, reg, engine, agents, deployer
}

func callTool(t *testing.T, h *Handler, name string, args map[string]interface{}) *mcpschema.CallToolResult {
	t.Helper()
	req := &jsonrpc.TypedRequest[*mcpschema.CallToolRequest]{
		Request: &mcpschema.CallToolRequest{
			Params: mcpschema.CallToolRequestParams{
				Name:      name,
				Arguments: args,
			},
		},
	}
	res, jerr := h.CallTool(context.Background(), req)
	require.Nil(t, jerr)
	require.NotNil(t, res)
	return res
}

func isError(res *mcpschema.CallToolResult) bool {
	return res.IsError != nil && *res.IsError
}

func resultText(t *testing.T, res *mcpschema.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcpschema.TextContent)
	require.True(t, ok, "content element is %T, not TextContent", res.Content[0])
	require.Equal(t, "text", tc.Type)
	return tc.Text
}

func TestListTools(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	res, jerr := h.ListTools(context.Background(), nil)
	require.Nil(t, jerr)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotNil(t, tool.Description)
		require.Equal(t, "object", tool.InputSchema.Type)
	}
	require.ElementsMatch(t, []string{
		toolDeployChain, toolSendMessage, toolTransferAsset,
		toolDeployWarpRoute, toolRunValidator, toolRunRelayer,
	}, names)
}

func TestCallToolUnknown(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	req := &jsonrpc.TypedRequest[*mcpschema.CallToolRequest]{
		Request: &mcpschema.CallToolRequest{
			Params: mcpschema.CallToolRequestParams{Name: "no-such-tool"},
		},
	}
	_, jerr := h.CallTool(context.Background(), req)
	require.NotNil(t, jerr)
}

func TestDeployChainTool(t *testing.T) {
	h, reg, _, _, deployer := testHandler(t)
	deployer.coreAddrs = registry.ChainAddresses{
		"mailbox":        "0x0000000000000000000000000000000000000001",
		"merkleTreeHook": "0x0000000000000000000000000000000000000002",
	}

	res := callTool(t, h, toolDeployChain, map[string]interface{}{
		"chainName": "localeth",
		"chainId":   31337,
		"domainId":  31337,
		"rpcUrl":    "http://localhost:8545",
	})
	require.False(t, isError(res))
	require.Equal(t, []string{"localeth"}, deployer.coreDeploys)

	// The chain is registered and its deployed addresses resolvable.
	meta, err := reg.ChainMetadata(context.Background(), "localeth")
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, uint32(31337), meta.DomainID)

	addrs, err := reg.ChainAddresses(context.Background(), "localeth")
	require.NoError(t, err)
	require.Equal(t, deployer.coreAddrs, addrs)
}

func TestDeployChainToolMissingArgs(t *testing.T) {
	h, _, _, _, deployer := testHandler(t)

	res := callTool(t, h, toolDeployChain, map[string]interface{}{"chainName": "x"})
	require.True(t, isError(res))
	require.Empty(t, deployer.coreDeploys)
}

func TestSendMessageTool(t *testing.T) {
	h, _, engine, _, _ := testHandler(t)
	engine.messageResult = &transfer.MessageResult{Delivered: true}

	res := callTool(t, h, toolSendMessage, map[string]interface{}{
		"origin":      "chaina",
		"destination": "chainb",
		"recipient":   "0x00000000000000000000000000000000000000CC",
		"body":        "ping",
		"selfRelay":   true,
	})
	require.False(t, isError(res))
	require.Len(t, engine.messageReqs, 1)
	require.True(t, engine.messageReqs[0].SelfRelay)
	require.Equal(t, []byte("ping"), engine.messageReqs[0].Body)
}

func TestSendMessageToolBadRecipient(t *testing.T) {
	h, _, engine, _, _ := testHandler(t)

	res := callTool(t, h, toolSendMessage, map[string]interface{}{
		"origin":      "chaina",
		"destination": "chainb",
		"recipient":   "not-an-address",
		"body":        "ping",
	})
	require.True(t, isError(res))
	require.Empty(t, engine.messageReqs)
}

func TestTransferAssetTool(t *testing.T) {
	h, _, engine, _, _ := testHandler(t)
	engine.transferResult = &transfer.Result{
		TransferID: "t1",
		Hops: []transfer.HopResult{
			{Origin: "chaina", Destination: "chainb", Delivered: true},
		},
	}

	res := callTool(t, h, toolTransferAsset, map[string]interface{}{
		"symbol": "USDC",
		"amount": "1.5",
		"chains": []interface{}{"chaina", "chainb"},
	})
	require.False(t, isError(res))
	require.Len(t, engine.transferReqs, 1)
	require.Equal(t, "1.5", engine.transferReqs[0].Amount)
	require.Equal(t, []string{"chaina", "chainb"}, engine.transferReqs[0].Chains)

	require.NotNil(t, res.StructuredContent)
	require.Equal(t, "t1", res.StructuredContent["transferId"])
}

func TestTransferAssetToolPartialFailure(t *testing.T) {
	h, _, engine, _, _ := testHandler(t)
	engine.transferErr = fmt.Errorf("hop chainb -> chainc: rpc unavailable")

	res := callTool(t, h, toolTransferAsset, map[string]interface{}{
		"symbol": "USDC",
		"amount": "1",
		"chains": []interface{}{"chaina", "chainb", "chainc"},
	})
	require.True(t, isError(res))
	// Partial hop results ride along in the error content.
	require.Contains(t, resultText(t, res), "completed hops")
}

func TestDeployWarpRouteTool(t *testing.T) {
	h, reg, _, _, deployer := testHandler(t)
	deployer.warpConfig = registry.WarpRouteConfig{Tokens: []registry.WarpToken{
		{ChainName: "chaina", Standard: "EvmHypCollateral", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000901"},
		{ChainName: "chainb", Standard: "EvmHypSynthetic", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000902"},
	}}

	args := map[string]interface{}{
		"symbol": "USDC",
		"tokens": []interface{}{
			map[string]interface{}{"chainName": "chaina", "type": "collateral", "token": "0x0000000000000000000000000000000000000903"},
			map[string]interface{}{"chainName": "chainb", "type": "synthetic"},
		},
	}

	res := callTool(t, h, toolDeployWarpRoute, args)
	require.False(t, isError(res))
	require.Equal(t, []string{"USDC"}, deployer.warpDeploys)

	wantID := registry.RouteID(deployer.warpConfig, "USDC")
	require.Equal(t, wantID, res.StructuredContent["routeId"])
	require.True(t, reg.Store().RouteFileExists(wantID))

	// Re-deploying the same route is a no-op that returns the stored config.
	res = callTool(t, h, toolDeployWarpRoute, args)
	require.False(t, isError(res))
	require.Equal(t, true, res.StructuredContent["existing"])
	require.Equal(t, wantID, res.StructuredContent["routeId"])
	tokens, ok := res.StructuredContent["tokens"].([]interface{})
	require.True(t, ok)
	require.Len(t, tokens, 2)
	require.Len(t, deployer.warpDeploys, 1)
}

func TestRunAgentTools(t *testing.T) {
	h, _, _, agents, _ := testHandler(t)

	res := callTool(t, h, toolRunValidator, map[string]interface{}{"chain": "chaina"})
	require.False(t, isError(res))
	require.Equal(t, []string{"chaina"}, agents.validators)

	res = callTool(t, h, toolRunRelayer, map[string]interface{}{
		"chains": []interface{}{"chaina", "chainb"},
	})
	require.False(t, isError(res))
	require.Equal(t, [][]string{{"chaina", "chainb"}}, agents.relayers)

	res = callTool(t, h, toolRunRelayer, map[string]interface{}{
		"chains": []interface{}{"chaina"},
	})
	require.True(t, isError(res))
}

func TestReadWarpRouteResource(t *testing.T) {
	h, reg, _, _, _ := testHandler(t)
	cfg := registry.WarpRouteConfig{Tokens: []registry.WarpToken{
		{ChainName: "chaina", Standard: "EvmHypSynthetic", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000901"},
		{ChainName: "chainb", Standard: "EvmHypSynthetic", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000902"},
	}}
	_, err := reg.AddWarpRoute(cfg, "USDC")
	require.NoError(t, err)

	req := &jsonrpc.TypedRequest[*mcpschema.ReadResourceRequest]{
		Request: &mcpschema.ReadResourceRequest{
			Params: mcpschema.ReadResourceRequestParams{Uri: "hyperlane-warp-route:///USDC/chaina"},
		},
	}
	res, jerr := h.ReadResource(context.Background(), req)
	require.Nil(t, jerr)
	require.Len(t, res.Contents, 1)

	var configs []registry.WarpRouteConfig
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &configs))
	require.Len(t, configs, 1)
	require.Equal(t, cfg.Tokens[0].AddressOrDenom, configs[0].Tokens[0].AddressOrDenom)
}

func TestReadWarpRouteResourceMultiChain(t *testing.T) {
	h, reg, _, _, _ := testHandler(t)
	cfg := registry.WarpRouteConfig{Tokens: []registry.WarpToken{
		{ChainName: "chaina", Standard: "EvmHypSynthetic", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000901"},
		{ChainName: "chainb", Standard: "EvmHypSynthetic", Symbol: "USDC", Decimals: 6, AddressOrDenom: "0x0000000000000000000000000000000000000902"},
	}}
	_, err := reg.AddWarpRoute(cfg, "USDC")
	require.NoError(t, err)

	read := func(uri string) []registry.WarpRouteConfig {
		req := &jsonrpc.TypedRequest[*mcpschema.ReadResourceRequest]{
			Request: &mcpschema.ReadResourceRequest{
				Params: mcpschema.ReadResourceRequestParams{Uri: uri},
			},
		}
		res, jerr := h.ReadResource(context.Background(), req)
		require.Nil(t, jerr, uri)
		require.Len(t, res.Contents, 1, uri)
		var configs []registry.WarpRouteConfig
		require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &configs), uri)
		return configs
	}

	// Every listed chain must participate in the route.
	require.Len(t, read("hyperlane-warp-route:///USDC/chaina/chainb"), 1)
	require.Len(t, read("hyperlane-warp-route:///USDC/chainb"), 1)
	require.Empty(t, read("hyperlane-warp-route:///USDC/chaina/chainc"))
}

func TestReadWarpRouteResourceNeverErrors(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	for _, uri := range []string{
		"hyperlane-warp-route:///NOPE/chaina", // no match
		"hyperlane-warp-route:///onlyone",     // malformed path
		"other-scheme:///USDC/chaina",         // wrong scheme
	} {
		req := &jsonrpc.TypedRequest[*mcpschema.ReadResourceRequest]{
			Request: &mcpschema.ReadResourceRequest{
				Params: mcpschema.ReadResourceRequestParams{Uri: uri},
			},
		}
		res, jerr := h.ReadResource(context.Background(), req)
		require.Nil(t, jerr, uri)
		require.Len(t, res.Contents, 1, uri)
		require.JSONEq(t, "[]", res.Contents[0].Text, uri)
	}
}

func TestListResourceTemplates(t *testing.T) {
	h, _, _, _, _ := testHandler(t)

	res, jerr := h.ListResourceTemplates(context.Background(), nil)
	require.Nil(t, jerr)
	require.Len(t, res.ResourceTemplates, 1)
	require.Contains(t, res.ResourceTemplates[0].UriTemplate, warpRouteScheme)
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func twoChainRoute() WarpRouteConfig {
	return WarpRouteConfig{
		Tokens: []WarpToken{
			{ChainName: "eth", AddressOrDenom: "0xAAA", Symbol: "USDC"},
			{ChainName: "polygon", AddressOrDenom: "0xBBB", Symbol: "USDC"},
		},
	}
}

func TestRouteID_Deterministic(t *testing.T) {
	cfg := twoChainRoute()
	require.Equal(t, RouteID(cfg, "USDC"), RouteID(cfg, "USDC"))
}

func TestRouteID_TokenOrderIndependent(t *testing.T) {
	cfg := twoChainRoute()
	permuted := WarpRouteConfig{Tokens: []WarpToken{cfg.Tokens[1], cfg.Tokens[0]}}
	require.Equal(t, RouteID(cfg, "USDC"), RouteID(permuted, "USDC"))
}

func TestRouteID_BaseLabel(t *testing.T) {
	cfg := twoChainRoute()

	require.Regexp(t, `^USDC-[0-9a-f]{8}$`, RouteID(cfg, ""))
	require.Regexp(t, `^TIA-[0-9a-f]{8}$`, RouteID(cfg, "TIA"))
	require.Regexp(t, `^unknown-[0-9a-f]{8}$`, RouteID(WarpRouteConfig{}, ""))
}

func TestRouteID_SensitiveToAddressChange(t *testing.T) {
	cfg := twoChainRoute()
	changed := twoChainRoute()
	changed.Tokens[1].AddressOrDenom = "0xCCC"

	require.NotEqual(t, RouteID(cfg, "USDC"), RouteID(changed, "USDC"))
}

func TestRouteID_SensitiveToChainChange(t *testing.T) {
	cfg := twoChainRoute()
	changed := twoChainRoute()
	changed.Tokens[1].ChainName = "arbitrum"

	require.NotEqual(t, RouteID(cfg, "USDC"), RouteID(changed, "USDC"))
}

func TestRouteID_SymbolDoesNotAffectHash(t *testing.T) {
	cfg := twoChainRoute()
	a := RouteID(cfg, "USDC")
	b := RouteID(cfg, "OTHER")
	require.Equal(t, a[len(a)-8:], b[len(b)-8:])
}

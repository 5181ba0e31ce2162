package registry

// ChainMetadata describes a single chain in the registry. The shape mirrors
// the on-disk metadata file format used by the Hyperlane registry.
type ChainMetadata struct {
	Name        string       `yaml:"name" json:"name"`
	DisplayName string       `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	ChainID     uint64       `yaml:"chainId" json:"chainId"`
	DomainID    uint32       `yaml:"domainId" json:"domainId"`
	Protocol    string       `yaml:"protocol" json:"protocol"`
	IsTestnet   bool         `yaml:"isTestnet,omitempty" json:"isTestnet,omitempty"`
	RpcURLs     []Endpoint   `yaml:"rpcUrls,omitempty" json:"rpcUrls,omitempty"`
	NativeToken *NativeToken `yaml:"nativeToken,omitempty" json:"nativeToken,omitempty"`
	Blocks      *BlockConfig `yaml:"blocks,omitempty" json:"blocks,omitempty"`

	// Addresses is the legacy embedded contract address map. Deployment
	// artifacts belong in the dedicated deploy file; this field is only
	// consulted when that file is absent.
	Addresses map[string]string `yaml:"addresses,omitempty" json:"addresses,omitempty"`
}

// NativeToken describes the gas token of a chain.
type NativeToken struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// Endpoint is a single RPC endpoint entry.
type Endpoint struct {
	HTTP string `yaml:"http" json:"http"`
}

// BlockConfig carries block timing hints consumed by agents.
type BlockConfig struct {
	Confirmations     int `yaml:"confirmations" json:"confirmations"`
	EstimateBlockTime int `yaml:"estimateBlockTime" json:"estimateBlockTime"`
	ReorgPeriod       int `yaml:"reorgPeriod" json:"reorgPeriod"`
}

// ChainAddresses maps a contract role name (mailbox, interchainSecurityModule,
// merkleTreeHook, ...) to its deployed address. It is stored strictly apart
// from chain metadata so deployment artifacts and static config stay
// independently versioned.
type ChainAddresses map[string]string

// WarpRouteConfig is a set of token descriptors, one per participating chain,
// forming a fully connected bridging graph.
type WarpRouteConfig struct {
	Tokens []WarpToken `yaml:"tokens" json:"tokens"`
}

// WarpToken describes one chain's representation of a warp route token.
type WarpToken struct {
	ChainName                string            `yaml:"chainName" json:"chainName"`
	Standard                 string            `yaml:"standard" json:"standard"`
	Decimals                 int               `yaml:"decimals" json:"decimals"`
	Symbol                   string            `yaml:"symbol" json:"symbol"`
	Name                     string            `yaml:"name" json:"name"`
	AddressOrDenom           string            `yaml:"addressOrDenom" json:"addressOrDenom"`
	CollateralAddressOrDenom string            `yaml:"collateralAddressOrDenom,omitempty" json:"collateralAddressOrDenom,omitempty"`
	Connections              []TokenConnection `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// TokenConnection references another token in the same route, in
// "<chain>|<address>" form.
type TokenConnection struct {
	Token string `yaml:"token" json:"token"`
}

// WarpDeployConfig maps chain name to the token type deployed there, as
// produced by a warp route deployment.
type WarpDeployConfig map[string]WarpDeployChainConfig

// WarpDeployChainConfig is the per-chain portion of a warp deploy config.
type WarpDeployChainConfig struct {
	Type  string `yaml:"type" json:"type"`
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
	IsNft bool   `yaml:"isNft,omitempty" json:"isNft,omitempty"`
}

// RouteFilter narrows warp route queries. Zero-value fields are ignored; a
// route matches when at least one of its tokens satisfies every set field.
type RouteFilter struct {
	Symbol    string
	ChainName string
}

// Matches reports whether the route has at least one token satisfying every
// set filter field.
func (f *RouteFilter) Matches(cfg WarpRouteConfig) bool {
	if f == nil || (f.Symbol == "" && f.ChainName == "") {
		return true
	}
	for _, token := range cfg.Tokens {
		if f.Symbol != "" && token.Symbol != f.Symbol {
			continue
		}
		if f.ChainName != "" && token.ChainName != f.ChainName {
			continue
		}
		return true
	}
	return false
}

// Chains returns the set of chain names participating in the route.
func (c WarpRouteConfig) Chains() map[string]struct{} {
	chains := make(map[string]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		chains[t.ChainName] = struct{}{}
	}
	return chains
}

// TokenFor returns the route token for the given chain, if any.
func (c WarpRouteConfig) TokenFor(chainName string) (WarpToken, bool) {
	for _, t := range c.Tokens {
		if t.ChainName == chainName {
			return t, true
		}
	}
	return WarpToken{}, false
}

package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RouteID derives the identifier for a warp route configuration. The ID is a
// pure function of the route contents: the "<chainName>:<addressOrDenom>"
// pairs of all tokens are sorted, joined and hashed, and the first 8 hex
// characters of the digest are appended to a human readable base label.
//
// Token insertion order does not affect the result. Uniqueness is
// probabilistic only (32 bits of hash); there is no separate collision check.
func RouteID(cfg WarpRouteConfig, symbol string) string {
	pairs := make([]string, 0, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		pairs = append(pairs, fmt.Sprintf("%s:%s", token.ChainName, token.AddressOrDenom))
	}
	sort.Strings(pairs)

	digest := sha256.Sum256([]byte(strings.Join(pairs, "-")))
	hash8 := hex.EncodeToString(digest[:])[:8]

	base := symbol
	if base == "" && len(cfg.Tokens) > 0 {
		base = cfg.Tokens[0].Symbol
	}
	if base == "" {
		base = "unknown"
	}

	return fmt.Sprintf("%s-%s", base, hash8)
}

package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Source is the remote registry this process overlays. It is read-only from
// the local registry's perspective except for the chain-add passthrough.
type Source interface {
	Chains(ctx context.Context) ([]string, error)
	Metadata(ctx context.Context) (map[string]ChainMetadata, error)
	ChainMetadata(ctx context.Context, name string) (*ChainMetadata, error)
	Addresses(ctx context.Context) (map[string]ChainAddresses, error)
	ChainAddresses(ctx context.Context, name string) (ChainAddresses, error)
	// WarpRoutes returns routes keyed by route ID. The source is trusted to
	// apply the filter itself; results are not re-filtered locally.
	WarpRoutes(ctx context.Context, filter *RouteFilter) (map[string]WarpRouteConfig, error)
	WarpDeployConfigs(ctx context.Context) (map[string]WarpDeployConfig, error)
	AddChain(ctx context.Context, meta ChainMetadata) error
}

// HTTPSource fetches registry files from a canonical registry served over
// HTTP (e.g. a raw git host or the registry proxy).
type HTTPSource struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSource returns a source reading from baseURL.
func NewHTTPSource(baseURL string, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (s *HTTPSource) fetchYAML(ctx context.Context, path string, out any) error {
	url := s.baseURL + "/" + path
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("%s: not found", path))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("%s: status %d", path, resp.StatusCode)
			}
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(b, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("unmarshal %s: %w", path, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
}

func (s *HTTPSource) Chains(ctx context.Context) ([]string, error) {
	metadata, err := s.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	chains := make([]string, 0, len(metadata))
	for name := range metadata {
		chains = append(chains, name)
	}
	return chains, nil
}

func (s *HTTPSource) Metadata(ctx context.Context) (map[string]ChainMetadata, error) {
	out := make(map[string]ChainMetadata)
	if err := s.fetchYAML(ctx, "chains/metadata.yaml", &out); err != nil {
		return nil, fmt.Errorf("fetch chain metadata: %w", err)
	}
	return out, nil
}

func (s *HTTPSource) ChainMetadata(ctx context.Context, name string) (*ChainMetadata, error) {
	var meta ChainMetadata
	if err := s.fetchYAML(ctx, fmt.Sprintf("chains/%s/metadata.yaml", name), &meta); err != nil {
		return nil, nil // absence, not an error
	}
	return &meta, nil
}

func (s *HTTPSource) Addresses(ctx context.Context) (map[string]ChainAddresses, error) {
	out := make(map[string]ChainAddresses)
	if err := s.fetchYAML(ctx, "chains/addresses.yaml", &out); err != nil {
		return nil, fmt.Errorf("fetch chain addresses: %w", err)
	}
	return out, nil
}

func (s *HTTPSource) ChainAddresses(ctx context.Context, name string) (ChainAddresses, error) {
	var addrs ChainAddresses
	if err := s.fetchYAML(ctx, fmt.Sprintf("chains/%s/addresses.yaml", name), &addrs); err != nil {
		return nil, nil
	}
	return addrs, nil
}

func (s *HTTPSource) WarpRoutes(ctx context.Context, filter *RouteFilter) (map[string]WarpRouteConfig, error) {
	routes := make(map[string]WarpRouteConfig)
	if err := s.fetchYAML(ctx, "deployments/warp_routes/routes.yaml", &routes); err != nil {
		return nil, fmt.Errorf("fetch warp routes: %w", err)
	}
	if filter == nil {
		return routes, nil
	}
	matched := make(map[string]WarpRouteConfig, len(routes))
	for id, cfg := range routes {
		if filter.Matches(cfg) {
			matched[id] = cfg
		}
	}
	return matched, nil
}

func (s *HTTPSource) WarpDeployConfigs(ctx context.Context) (map[string]WarpDeployConfig, error) {
	out := make(map[string]WarpDeployConfig)
	if err := s.fetchYAML(ctx, "deployments/warp_routes/deploys.yaml", &out); err != nil {
		return nil, fmt.Errorf("fetch warp deploy configs: %w", err)
	}
	return out, nil
}

// AddChain is a passthrough to the canonical registry, which only accepts
// chains via its own contribution flow.
func (s *HTTPSource) AddChain(ctx context.Context, meta ChainMetadata) error {
	return fmt.Errorf("remote registry is read-only; submit %s upstream instead", meta.Name)
}

// NullSource is an always-empty source for offline operation.
type NullSource struct{}

func (NullSource) Chains(context.Context) ([]string, error) { return nil, nil }
func (NullSource) Metadata(context.Context) (map[string]ChainMetadata, error) {
	return map[string]ChainMetadata{}, nil
}
func (NullSource) ChainMetadata(context.Context, string) (*ChainMetadata, error) { return nil, nil }
func (NullSource) Addresses(context.Context) (map[string]ChainAddresses, error) {
	return map[string]ChainAddresses{}, nil
}
func (NullSource) ChainAddresses(context.Context, string) (ChainAddresses, error) { return nil, nil }
func (NullSource) WarpRoutes(context.Context, *RouteFilter) (map[string]WarpRouteConfig, error) {
	return map[string]WarpRouteConfig{}, nil
}
func (NullSource) WarpDeployConfigs(context.Context) (map[string]WarpDeployConfig, error) {
	return map[string]WarpDeployConfig{}, nil
}
func (NullSource) AddChain(context.Context, ChainMetadata) error {
	return fmt.Errorf("no remote registry configured")
}

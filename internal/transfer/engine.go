package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/interchainlabs/hypermcp/internal/chain"
	"github.com/interchainlabs/hypermcp/internal/registry"
)

var (
	// ErrNoRoute is returned when no warp route covers a hop's chain pair.
	ErrNoRoute = errors.New("no warp route found")
	// ErrAmbiguousRoute is returned when more than one route covers a hop's
	// chain pair and the caller gave no way to disambiguate.
	ErrAmbiguousRoute = errors.New("multiple warp routes match")
)

const (
	defaultHopTimeout   = 120 * time.Second
	defaultPollInterval = 10 * time.Second
	defaultMaxPolls     = 60
)

// Request describes a token transfer along an ordered chain path. Each
// consecutive pair of chains is one hop over a warp route.
type Request struct {
	Symbol string
	// Amount is a human-readable decimal amount; it is scaled to base
	// units per hop using that hop's origin token decimals.
	Amount string
	Chains []string
	// Recipient receives the tokens on the final chain. When zero, each
	// hop pays out to the signer on its destination chain.
	Recipient common.Address
}

// HopResult records the outcome of a single completed hop.
type HopResult struct {
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	RouteID     string      `json:"routeId"`
	TxHash      common.Hash `json:"txHash"`
	MessageID   common.Hash `json:"messageId"`
	Delivered   bool        `json:"delivered"`
}

// Result carries the transfer identifier and whatever hops completed. On
// failure the hops preceding the failed one are preserved.
type Result struct {
	TransferID string      `json:"transferId"`
	Hops       []HopResult `json:"hops"`
}

// MessageRequest describes a point-to-point mailbox message send.
type MessageRequest struct {
	Origin      string
	Destination string
	Recipient   common.Address
	Body        []byte
	// SelfRelay delivers the message by calling process() on the
	// destination mailbox directly instead of waiting for an external
	// relayer. The dispatch is pinned to the origin merkle tree hook so
	// the default ISM accepts the unproven delivery.
	SelfRelay bool
}

// MessageResult is the outcome of a mailbox message send.
type MessageResult struct {
	TxHash        common.Hash `json:"txHash"`
	MessageID     common.Hash `json:"messageId"`
	Delivered     bool        `json:"delivered"`
	ProcessTxHash common.Hash `json:"processTxHash,omitempty"`
}

// Engine executes transfers and message sends against registered chains.
type Engine struct {
	reg     *registry.LocalRegistry
	factory chain.Factory
	logger  *zap.Logger

	hopTimeout   time.Duration
	pollInterval time.Duration
	maxPolls     uint
}

// Option adjusts engine timing.
type Option func(*Engine)

// WithHopTimeout bounds each hop's transaction phase.
func WithHopTimeout(d time.Duration) Option {
	return func(e *Engine) { e.hopTimeout = d }
}

// WithDeliveryPolling configures the delivery wait loop.
func WithDeliveryPolling(interval time.Duration, maxPolls uint) Option {
	return func(e *Engine) {
		e.pollInterval = interval
		e.maxPolls = maxPolls
	}
}

func NewEngine(reg *registry.LocalRegistry, factory chain.Factory, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		reg:          reg,
		factory:      factory,
		logger:       logger,
		hopTimeout:   defaultHopTimeout,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer moves tokens along the requested chain path, one hop at a time.
// Hops run sequentially: each hop's output balance funds the next. A failed
// hop aborts the path but the result keeps every hop that completed.
func (e *Engine) Transfer(ctx context.Context, req Request) (*Result, error) {
	result := &Result{TransferID: uuid.NewString(), Hops: []HopResult{}}

	if req.Symbol == "" {
		return result, fmt.Errorf("token symbol is required")
	}
	if req.Amount == "" {
		return result, fmt.Errorf("transfer amount is required")
	}
	if len(req.Chains) < 2 {
		return result, fmt.Errorf("transfer path needs at least two chains, got %d", len(req.Chains))
	}

	logger := e.logger.With(zap.String("transferId", result.TransferID), zap.String("symbol", req.Symbol))
	logger.Info("starting transfer", zap.Strings("path", req.Chains))

	// Validate every chain on the path up front so a misregistered chain
	// fails the transfer before any tokens move.
	if err := e.prefetchMetadata(ctx, req.Chains); err != nil {
		return result, err
	}

	for i := 0; i < len(req.Chains)-1; i++ {
		origin, destination := req.Chains[i], req.Chains[i+1]
		final := i == len(req.Chains)-2

		recipient := req.Recipient
		if !final || recipient == (common.Address{}) {
			// Intermediate hops always land on our own signer so the
			// next hop can spend the balance.
			recipient = common.Address{}
		}

		hop, err := e.executeHop(ctx, req.Symbol, req.Amount, origin, destination, recipient)
		if err != nil {
			return result, fmt.Errorf("hop %s -> %s: %w", origin, destination, err)
		}
		result.Hops = append(result.Hops, *hop)
		logger.Info("hop complete",
			zap.String("origin", origin),
			zap.String("destination", destination),
			zap.String("messageId", hop.MessageID.Hex()))
	}

	if len(result.Hops) != len(req.Chains)-1 {
		return result, fmt.Errorf("transfer incomplete: %d of %d hops executed", len(result.Hops), len(req.Chains)-1)
	}
	return result, nil
}

func (e *Engine) prefetchMetadata(ctx context.Context, chains []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range chains {
		g.Go(func() error {
			_, err := e.reg.RequireChainMetadata(gctx, name)
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) executeHop(ctx context.Context, symbol, amount, origin, destination string, recipient common.Address) (*HopResult, error) {
	matches := e.reg.WarpRoutesBySymbolAndChains(ctx, symbol, []string{origin, destination})
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoRoute, symbol, origin, destination)
	case len(matches) > 1:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, fmt.Errorf("%w for %s between %s and %s: %v", ErrAmbiguousRoute, symbol, origin, destination, ids)
	}
	route := matches[0]

	token, ok := route.Config.TokenFor(origin)
	if !ok {
		return nil, fmt.Errorf("route %s has no token on %s", route.ID, origin)
	}
	router := common.HexToAddress(token.AddressOrDenom)

	baseAmount, err := ParseAmount(amount, token.Decimals)
	if err != nil {
		return nil, err
	}

	originProvider, err := e.factory.Provider(ctx, origin)
	if err != nil {
		return nil, err
	}
	destProvider, err := e.factory.Provider(ctx, destination)
	if err != nil {
		return nil, err
	}
	if recipient == (common.Address{}) {
		recipient = destProvider.SignerAddress()
	}

	destMeta, err := e.reg.RequireChainMetadata(ctx, destination)
	if err != nil {
		return nil, err
	}

	if err := e.checkBalance(ctx, originProvider, token, router, baseAmount); err != nil {
		return nil, err
	}

	hopCtx, cancel := context.WithTimeout(ctx, e.hopTimeout)
	defer cancel()

	dispatch, err := originProvider.TransferRemote(hopCtx, chain.TransferParams{
		Router:            router,
		DestinationDomain: destMeta.DomainID,
		Recipient:         recipient,
		Amount:            baseAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer remote: %w", err)
	}

	hop := &HopResult{
		Origin:      origin,
		Destination: destination,
		RouteID:     route.ID,
		TxHash:      dispatch.TxHash,
		MessageID:   dispatch.MessageID,
	}

	destMailbox, err := e.mailboxAddress(ctx, destination)
	if err != nil {
		return nil, err
	}
	if err := e.waitDelivered(ctx, destProvider, destMailbox, dispatch.MessageID); err != nil {
		return nil, err
	}
	hop.Delivered = true
	return hop, nil
}

// checkBalance verifies the signer can fund the hop before submitting the
// transfer. Native-token routes spend the gas token directly; everything else
// holds a balance on the router contract.
func (e *Engine) checkBalance(ctx context.Context, p chain.Provider, token registry.WarpToken, router common.Address, amount *big.Int) error {
	var (
		balance *big.Int
		err     error
	)
	if token.Standard == "EvmHypNative" {
		balance, err = p.Balance(ctx, p.SignerAddress())
	} else {
		balance, err = p.TokenBalance(ctx, router, p.SignerAddress())
	}
	if err != nil {
		return fmt.Errorf("query balance on %s: %w", p.ChainName(), err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance on %s: have %s, need %s",
			token.Symbol, p.ChainName(), balance, amount)
	}
	return nil
}

// SendMessage dispatches an arbitrary mailbox message from origin to
// destination and either self-relays it or waits for relayer delivery.
func (e *Engine) SendMessage(ctx context.Context, req MessageRequest) (*MessageResult, error) {
	if req.Origin == "" || req.Destination == "" {
		return nil, fmt.Errorf("origin and destination chains are required")
	}

	originProvider, err := e.factory.Provider(ctx, req.Origin)
	if err != nil {
		return nil, err
	}
	destProvider, err := e.factory.Provider(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	originMailbox, err := e.mailboxAddress(ctx, req.Origin)
	if err != nil {
		return nil, err
	}
	destMailbox, err := e.mailboxAddress(ctx, req.Destination)
	if err != nil {
		return nil, err
	}
	destMeta, err := e.reg.RequireChainMetadata(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	params := chain.DispatchParams{
		Mailbox:           originMailbox,
		DestinationDomain: destMeta.DomainID,
		Recipient:         req.Recipient,
		Body:              req.Body,
	}
	if req.SelfRelay {
		hook, err := e.contractAddress(ctx, req.Origin, "merkleTreeHook")
		if err != nil {
			return nil, err
		}
		params.Hook = hook
	}

	hopCtx, cancel := context.WithTimeout(ctx, e.hopTimeout)
	defer cancel()

	dispatch, err := originProvider.DispatchMessage(hopCtx, params)
	if err != nil {
		return nil, fmt.Errorf("dispatch on %s: %w", req.Origin, err)
	}
	result := &MessageResult{TxHash: dispatch.TxHash, MessageID: dispatch.MessageID}

	if req.SelfRelay {
		if len(dispatch.Message) == 0 {
			return result, fmt.Errorf("dispatch emitted no message payload, cannot self-relay")
		}
		processTx, err := destProvider.ProcessMessage(hopCtx, destMailbox, nil, dispatch.Message)
		if err != nil {
			return result, fmt.Errorf("self-relay process on %s: %w", req.Destination, err)
		}
		result.ProcessTxHash = processTx
		result.Delivered = true
		return result, nil
	}

	if err := e.waitDelivered(ctx, destProvider, destMailbox, dispatch.MessageID); err != nil {
		return result, err
	}
	result.Delivered = true
	return result, nil
}

// waitDelivered polls the destination mailbox until it reports the message
// as processed.
func (e *Engine) waitDelivered(ctx context.Context, p chain.Provider, mailbox common.Address, messageID common.Hash) error {
	err := retry.Do(
		func() error {
			delivered, err := p.Delivered(ctx, mailbox, messageID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !delivered {
				return fmt.Errorf("message %s not yet delivered", messageID.Hex())
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.maxPolls),
		retry.Delay(e.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("wait for delivery on %s: %w", p.ChainName(), err)
	}
	return nil
}

func (e *Engine) mailboxAddress(ctx context.Context, chainName string) (common.Address, error) {
	return e.contractAddress(ctx, chainName, "mailbox")
}

func (e *Engine) contractAddress(ctx context.Context, chainName, role string) (common.Address, error) {
	addrs, err := e.reg.ChainAddresses(ctx, chainName)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve %s addresses: %w", chainName, err)
	}
	raw, ok := addrs[role]
	if !ok || raw == "" {
		return common.Address{}, fmt.Errorf("chain %s has no %s address", chainName, role)
	}
	return common.HexToAddress(raw), nil
}

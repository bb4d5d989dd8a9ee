package mevshare

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flashbots/mev-share-client/jsonrpcclient"
	"github.com/flashbots/mev-share-client/metrics"
	"github.com/flashbots/mev-share-client/spike"
)

const historyInfoCacheTTL = 5 * time.Minute

// Client is the MEV-Share entry point: authenticated bundle and private
// transaction submission, simulation, the hint event stream, and the public
// event history. Safe for concurrent use.
type Client struct {
	log     *zap.Logger
	network Network
	backend ChainBackend
	waiter  *Waiter
	rpc     *jsonrpcclient.Client
	history *HistoryClient

	simBackend SimulationBackend
	simLimiter *rate.Limiter
	infoCache  *spike.Manager[*EventHistoryInfo]
}

type Option func(*config)

type config struct {
	log        *zap.Logger
	network    *Network
	httpClient *http.Client
	simBackend SimulationBackend
	simRate    rate.Limit
}

func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithNetwork overrides chain-id based endpoint resolution, for relays not in
// the builtin set.
func WithNetwork(network Network) Option {
	return func(c *config) { c.network = &network }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) { c.httpClient = httpClient }
}

// WithSimulationBackend routes SimulateBundle through a local node instead of
// the authenticated relay endpoint.
func WithSimulationBackend(backend SimulationBackend) Option {
	return func(c *config) { c.simBackend = backend }
}

// WithSimulationRateLimit caps simulations per second. Zero means unlimited.
func WithSimulationRateLimit(perSecond float64) Option {
	return func(c *config) { c.simRate = rate.Limit(perSecond) }
}

// New creates a client for the chain the backend is connected to, resolving
// relay endpoints from the chain id.
func New(ctx context.Context, signer jsonrpcclient.Signer, backend ChainBackend, opts ...Option) (*Client, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.network == nil {
		chainID, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve chain id: %w", err)
		}
		network, err := NetworkForChainID(chainID)
		if err != nil {
			return nil, err
		}
		cfg.network = &network
	}
	return newClient(signer, backend, cfg), nil
}

// NewWithChainID is New without the chain id round trip, for callers that
// already know the chain they are on.
func NewWithChainID(chainID *big.Int, signer jsonrpcclient.Signer, backend ChainBackend, opts ...Option) (*Client, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.network == nil {
		network, err := NetworkForChainID(chainID)
		if err != nil {
			return nil, err
		}
		cfg.network = &network
	}
	return newClient(signer, backend, cfg), nil
}

func newClient(signer jsonrpcclient.Signer, backend ChainBackend, cfg *config) *Client {
	log := cfg.log
	if log == nil {
		log = zap.NewNop()
	}
	var simLimiter *rate.Limiter
	if cfg.simRate > 0 {
		simLimiter = rate.NewLimiter(cfg.simRate, 1)
	}
	client := &Client{
		log:        log,
		network:    *cfg.network,
		backend:    backend,
		waiter:     NewWaiter(backend, log),
		rpc:        jsonrpcclient.New(cfg.network.APIURL, signer, cfg.httpClient, log),
		history:    NewHistoryClient(cfg.network.HistoryURL(), cfg.httpClient),
		simBackend: cfg.simBackend,
		simLimiter: simLimiter,
	}
	client.infoCache = spike.NewManager(func(ctx context.Context, _ string) (*EventHistoryInfo, error) {
		return client.history.Info(ctx)
	}, historyInfoCacheTTL)
	return client
}

// SendPrivateTransaction submits a signed raw transaction for private relay
// inclusion. The returned handle waits up to maxBlockNumber, or the default
// window when no bound was set.
func (c *Client) SendPrivateTransaction(ctx context.Context, args SendPrivateTxArgs) (*PendingTransaction, error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordRPCCallDuration(SendPrivateTxEndpointName, time.Since(startAt).Milliseconds())
	}()

	maxBlock, err := c.privateTxMaxBlock(ctx, args.MaxBlockNumber)
	if err != nil {
		return nil, err
	}

	var hash common.Hash
	if err := c.call(ctx, &hash, SendPrivateTxEndpointName, []any{args}); err != nil {
		return nil, err
	}
	c.log.Debug("private transaction accepted", zap.String("tx", hash.Hex()))
	return &PendingTransaction{Hash: hash, MaxBlock: maxBlock, waiter: c.waiter}, nil
}

// SendBundle validates and submits a bundle. A zero target block defaults to
// the block after the current head; a zero max block leaves the inclusion
// window open relay-side while the returned handle waits the default window.
func (c *Client) SendBundle(ctx context.Context, bundle *SendMevBundleArgs) (*PendingBundle, error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordRPCCallDuration(SendBundleEndpointName, time.Since(startAt).Milliseconds())
	}()

	if bundle != nil && bundle.Inclusion.BlockNumber == 0 {
		block, err := c.backend.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch block number: %w", err)
		}
		bundle.Inclusion.BlockNumber = hexutil.Uint64(block + 1)
	}
	if err := ValidateBundle(bundle); err != nil {
		return nil, err
	}

	var response SendMevBundleResponse
	if err := c.call(ctx, &response, SendBundleEndpointName, []any{bundle}); err != nil {
		return nil, err
	}
	c.log.Debug("bundle accepted", zap.String("bundle", response.BundleHash.Hex()))
	return &PendingBundle{Hash: response.BundleHash, Args: bundle, waiter: c.waiter}, nil
}

// SimulateBundle simulates a bundle against recent state. A bundle whose
// first item is a hash reference cannot be simulated until that transaction
// lands, so the call waits for it, splices in the raw transaction, and pins
// the simulation to the block before inclusion unless overrides already pin
// one.
func (c *Client) SimulateBundle(ctx context.Context, bundle *SendMevBundleArgs, overrides *SimBundleOverrides) (*SimMevBundleResponse, error) {
	startAt := time.Now()
	defer func() {
		metrics.RecordRPCCallDuration(SimBundleEndpointName, time.Since(startAt).Milliseconds())
	}()

	if err := ValidateBundle(bundle); err != nil {
		return nil, err
	}

	bundle, overrides, err := c.resolveLeadingHash(ctx, bundle, overrides)
	if err != nil {
		return nil, err
	}

	if c.simLimiter != nil {
		if err := c.simLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.simBackend != nil {
		return c.simBackend.SimulateBundle(ctx, bundle, overrides)
	}

	var response SimMevBundleResponse
	if err := c.call(ctx, &response, SimBundleEndpointName, []any{bundle, overrides}); err != nil {
		return nil, err
	}
	return &response, nil
}

// Subscribe opens the hint event stream of the client's network.
func (c *Client) Subscribe(ctx context.Context) (*EventStream, error) {
	return SubscribeEvents(ctx, c.network.StreamURL, c.log)
}

// GetEventHistoryInfo returns the queryable history window. Responses are
// cached briefly and concurrent lookups share one fetch.
func (c *Client) GetEventHistoryInfo(ctx context.Context) (*EventHistoryInfo, error) {
	return c.infoCache.GetResult(ctx, "history-info")
}

// GetEventHistory fetches one page of historical hint events.
func (c *Client) GetEventHistory(ctx context.Context, params *EventHistoryParams) ([]EventHistoryEntry, error) {
	return c.history.Events(ctx, params)
}

func (c *Client) call(ctx context.Context, result any, method string, params []any) error {
	err := c.rpc.Call(ctx, result, method, params...)
	if err != nil {
		metrics.IncRPCCallFailure(method)
		c.log.Warn("rpc call failed", zap.String("method", method), zap.Error(err))
	}
	return err
}

func (c *Client) privateTxMaxBlock(ctx context.Context, bound *hexutil.Uint64) (uint64, error) {
	if bound != nil && *bound != 0 {
		return uint64(*bound), nil
	}
	block, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch block number: %w", err)
	}
	return block + TxMaxWaitBlocks, nil
}

// resolveLeadingHash replaces a leading hash reference with the mined raw
// transaction. The rest of the body is left untouched; only the first item
// may legitimately reference a transaction the bundle backruns.
func (c *Client) resolveLeadingHash(ctx context.Context, bundle *SendMevBundleArgs, overrides *SimBundleOverrides) (*SendMevBundleArgs, *SimBundleOverrides, error) {
	if len(bundle.Body) == 0 || bundle.Body[0].Hash == nil {
		return bundle, overrides, nil
	}

	target := *bundle.Body[0].Hash
	maxBlock := uint64(bundle.Inclusion.MaxBlock)
	if maxBlock == 0 {
		maxBlock = uint64(bundle.Inclusion.BlockNumber) + TxMaxWaitBlocks
	}
	c.log.Debug("waiting for referenced transaction before simulating",
		zap.String("tx", target.Hex()))
	tx, block, err := c.waiter.WaitForTransaction(ctx, target, maxBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve referenced transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("encode referenced transaction: %w", err)
	}

	patched := *bundle
	patched.Body = append([]MevBundleBody(nil), bundle.Body...)
	rawBytes := hexutil.Bytes(raw)
	patched.Body[0] = MevBundleBody{Tx: &rawBytes}

	var patchedOverrides SimBundleOverrides
	if overrides != nil {
		patchedOverrides = *overrides
	}
	if patchedOverrides.ParentBlock == nil && block > 0 {
		parent := hexutil.Uint64(block - 1)
		patchedOverrides.ParentBlock = &parent
	}
	return &patched, &patchedOverrides, nil
}

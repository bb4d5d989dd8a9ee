package mevshare

import (
	"context"

	"github.com/ybbus/jsonrpc/v3"
)

// SimulationBackend simulates bundles. The default client routes simulations
// through the authenticated relay endpoint, but a locally operated node can
// serve them unauthenticated through JSONRPCSimulationBackend instead.
type SimulationBackend interface {
	SimulateBundle(ctx context.Context, bundle *SendMevBundleArgs, overrides *SimBundleOverrides) (*SimMevBundleResponse, error)
}

type JSONRPCSimulationBackend struct {
	client jsonrpc.RPCClient
}

func NewJSONRPCSimulationBackend(url string) *JSONRPCSimulationBackend {
	return &JSONRPCSimulationBackend{
		client: jsonrpc.NewClient(url),
	}
}

func (b *JSONRPCSimulationBackend) SimulateBundle(ctx context.Context, bundle *SendMevBundleArgs, overrides *SimBundleOverrides) (*SimMevBundleResponse, error) {
	var result SimMevBundleResponse
	err := b.client.CallFor(ctx, &result, "mev_simBundle", bundle, overrides)
	return &result, err
}

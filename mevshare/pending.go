package mevshare

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/flashbots/mev-share-client/metrics"
)

// PendingTransaction is a handle to a private transaction accepted by the
// relay. Inclusion is meant to be called once per handle; the wait itself
// carries no state, so calling it again simply starts a fresh wait with the
// same window.
type PendingTransaction struct {
	Hash     common.Hash
	MaxBlock uint64

	waiter *Waiter
}

// Inclusion blocks until the transaction lands or its wait window closes.
func (p *PendingTransaction) Inclusion(ctx context.Context) (*types.Receipt, error) {
	receipt, _, err := p.waiter.WaitForTransactionReceipt(ctx, p.Hash, p.MaxBlock)
	return receipt, err
}

// PendingBundle is a handle to a bundle accepted by the relay. It keeps the
// submitted args so the flattened hash set can be recovered for the wait.
type PendingBundle struct {
	Hash common.Hash
	Args *SendMevBundleArgs

	waiter *Waiter
}

// Inclusion blocks until every transaction of the bundle lands, the bundle is
// observed broken apart, or the wait window closes. A bundle without a max
// block is only valid for its target block, so that is where the window
// closes. Receipts come back in flattened bundle order.
func (p *PendingBundle) Inclusion(ctx context.Context) ([]*types.Receipt, error) {
	hashes := BodyHashes(p.Args.Body)
	maxBlock := uint64(p.Args.Inclusion.MaxBlock)
	if maxBlock == 0 {
		maxBlock = uint64(p.Args.Inclusion.BlockNumber)
	}
	receipts, _, err := p.waiter.WaitForBundle(ctx, hashes, maxBlock)
	switch err.(type) {
	case nil:
		metrics.IncBundlesIncluded()
	case *BundleDiscardError:
		metrics.IncBundlesDiscarded()
	case *BundleTimeoutError:
		metrics.IncBundlesTimedOut()
	}
	return receipts, err
}

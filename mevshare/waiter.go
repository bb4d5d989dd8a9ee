package mevshare

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ChainBackend is the part of a chain RPC provider the client consumes.
// *ethclient.Client satisfies it. Header subscriptions must deliver headers
// in increasing block-number order; the waiter's timeout detection relies on
// that and does not re-validate it.
type ChainBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Waiter resolves the on-chain outcome of submitted transactions and bundles.
// It polls receipts on every new head, so a wait is bounded in blocks but not
// in wall-clock time. Provider failures abort the wait immediately; the
// waiter never retries on its own.
type Waiter struct {
	backend ChainBackend
	log     *zap.Logger
}

func NewWaiter(backend ChainBackend, log *zap.Logger) *Waiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Waiter{backend: backend, log: log}
}

// WaitForTransactionReceipt blocks until hash has a receipt or a block at or
// past maxBlock is observed without one. A receipt with a failed status
// resolves to TxRevertError, a missed window to TxTimeoutError.
func (w *Waiter) WaitForTransactionReceipt(ctx context.Context, hash common.Hash, maxBlock uint64) (*types.Receipt, uint64, error) {
	receipt, err := w.receipt(ctx, hash)
	if err != nil {
		return nil, 0, err
	}
	if receipt != nil {
		return finishReceipt(receipt)
	}

	headers := make(chan *types.Header)
	sub, err := w.backend.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, 0, fmt.Errorf("subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case err := <-sub.Err():
			return nil, 0, fmt.Errorf("head subscription failed: %w", err)
		case head := <-headers:
			receipt, err := w.receipt(ctx, hash)
			if err != nil {
				return nil, 0, err
			}
			if receipt != nil {
				return finishReceipt(receipt)
			}
			if head.Number.Uint64() >= maxBlock {
				w.log.Debug("transaction wait window closed",
					zap.String("tx", hash.Hex()), zap.Uint64("block", head.Number.Uint64()))
				return nil, 0, &TxTimeoutError{Hash: hash, Block: head.Number.Uint64()}
			}
		}
	}
}

// WaitForTransaction is like WaitForTransactionReceipt but resolves to the
// mined transaction itself, which is needed when a hash reference must be
// spliced back into a bundle body as raw bytes.
func (w *Waiter) WaitForTransaction(ctx context.Context, hash common.Hash, maxBlock uint64) (*types.Transaction, uint64, error) {
	tx, block, err := w.minedTransaction(ctx, hash)
	if err != nil {
		return nil, 0, err
	}
	if tx != nil {
		return tx, block, nil
	}

	headers := make(chan *types.Header)
	sub, err := w.backend.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, 0, fmt.Errorf("subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case err := <-sub.Err():
			return nil, 0, fmt.Errorf("head subscription failed: %w", err)
		case head := <-headers:
			tx, block, err := w.minedTransaction(ctx, hash)
			if err != nil {
				return nil, 0, err
			}
			if tx != nil {
				return tx, block, nil
			}
			if head.Number.Uint64() >= maxBlock {
				return nil, 0, &TxTimeoutError{Hash: hash, Block: head.Number.Uint64()}
			}
		}
	}
}

// WaitForBundle blocks until every flattened hash of a bundle has a receipt,
// the bundle is observed broken apart, or the wait window closes.
//
// Outcome precedence, applied to every poll: a complete receipt set always
// resolves the wait (success, or BundleRevertError if any receipt failed),
// even on the poll at the deadline block. An incomplete set at a block at or
// past maxBlock is BundleTimeoutError. A partial set observed strictly before
// the deadline is BundleDiscardError: the bundle was broken apart and the
// missing parts will not land as part of it.
func (w *Waiter) WaitForBundle(ctx context.Context, hashes []common.Hash, maxBlock uint64) ([]*types.Receipt, uint64, error) {
	if len(hashes) == 0 {
		return nil, 0, ErrInvalidBundleBody
	}

	found, err := w.fetchReceipts(ctx, hashes)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case len(found) == len(hashes):
		return finishBundle(found)
	case len(found) > 0:
		return nil, 0, &BundleDiscardError{Receipts: found}
	}

	headers := make(chan *types.Header)
	sub, err := w.backend.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, 0, fmt.Errorf("subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case err := <-sub.Err():
			return nil, 0, fmt.Errorf("head subscription failed: %w", err)
		case head := <-headers:
			found, err := w.fetchReceipts(ctx, hashes)
			if err != nil {
				return nil, 0, err
			}
			if len(found) == len(hashes) {
				return finishBundle(found)
			}
			block := head.Number.Uint64()
			if block >= maxBlock {
				w.log.Debug("bundle wait window closed",
					zap.Int("landed", len(found)), zap.Uint64("block", block))
				return nil, 0, &BundleTimeoutError{Hashes: hashes, Block: block}
			}
			if len(found) > 0 {
				return nil, 0, &BundleDiscardError{Receipts: found}
			}
		}
	}
}

// fetchReceipts fetches receipts for all hashes concurrently and returns the
// ones that exist, in flattened order. A missing receipt is not an error, any
// other provider failure is.
func (w *Waiter) fetchReceipts(ctx context.Context, hashes []common.Hash) ([]*types.Receipt, error) {
	receipts := make([]*types.Receipt, len(hashes))
	errs := make([]error, len(hashes))

	var wg sync.WaitGroup
	for i, hash := range hashes {
		wg.Add(1)
		go func(i int, hash common.Hash) {
			defer wg.Done()
			receipt, err := w.backend.TransactionReceipt(ctx, hash)
			if errors.Is(err, ethereum.NotFound) {
				return
			}
			if err != nil {
				errs[i] = err
				return
			}
			receipts[i] = receipt
		}(i, hash)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch receipts: %w", err)
		}
	}

	found := make([]*types.Receipt, 0, len(hashes))
	for _, receipt := range receipts {
		if receipt != nil {
			found = append(found, receipt)
		}
	}
	return found, nil
}

func (w *Waiter) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := w.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	return receipt, nil
}

func (w *Waiter) minedTransaction(ctx context.Context, hash common.Hash) (*types.Transaction, uint64, error) {
	tx, pending, err := w.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("fetch transaction: %w", err)
	}
	if pending {
		return nil, 0, nil
	}
	receipt, err := w.receipt(ctx, hash)
	if err != nil || receipt == nil {
		return nil, 0, err
	}
	return tx, receipt.BlockNumber.Uint64(), nil
}

func finishReceipt(receipt *types.Receipt) (*types.Receipt, uint64, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, 0, &TxRevertError{Receipt: receipt}
	}
	return receipt, receipt.BlockNumber.Uint64(), nil
}

// finishBundle resolves a complete receipt set: any failed status classifies
// the whole bundle as reverted, the success block is the block of the first
// receipt in flattened order.
func finishBundle(receipts []*types.Receipt) ([]*types.Receipt, uint64, error) {
	for _, receipt := range receipts {
		if receipt.Status != types.ReceiptStatusSuccessful {
			return nil, 0, &BundleRevertError{Receipts: receipts}
		}
	}
	return receipts, receipts[0].BlockNumber.Uint64(), nil
}

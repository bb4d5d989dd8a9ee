package mevshare

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type stubSubscription struct {
	errs chan error
}

func (s *stubSubscription) Unsubscribe() {}

func (s *stubSubscription) Err() <-chan error {
	return s.errs
}

// stubChainBackend serves receipts from a mutable map and forwards headers
// pushed by the test to whoever subscribed.
type stubChainBackend struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
	block    uint64

	heads      chan *types.Header
	subscribed chan struct{}
	subOnce    sync.Once
}

func newStubChainBackend() *stubChainBackend {
	return &stubChainBackend{
		receipts:   make(map[common.Hash]*types.Receipt),
		txs:        make(map[common.Hash]*types.Transaction),
		heads:      make(chan *types.Header),
		subscribed: make(chan struct{}),
	}
}

func (b *stubChainBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *stubChainBackend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block, nil
}

func (b *stubChainBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, ok := b.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (b *stubChainBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	receipt, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *stubChainBackend) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	go func() {
		for {
			select {
			case head := <-b.heads:
				select {
				case ch <- head:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	b.subOnce.Do(func() { close(b.subscribed) })
	return &stubSubscription{errs: make(chan error)}, nil
}

// awaitSubscription blocks until the waiter finished its initial poll and
// subscribed, so the test can mutate receipt state without racing it.
func (b *stubChainBackend) awaitSubscription(t *testing.T) {
	t.Helper()
	select {
	case <-b.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never subscribed")
	}
}

func (b *stubChainBackend) setReceipt(hash common.Hash, receipt *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = receipt
}

func (b *stubChainBackend) pushHead(t *testing.T, number uint64) {
	t.Helper()
	select {
	case b.heads <- &types.Header{Number: new(big.Int).SetUint64(number)}:
	case <-time.After(5 * time.Second):
		t.Fatal("no subscriber consumed the header")
	}
}

func successReceipt(hash common.Hash, block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

func failedReceipt(hash common.Hash, block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

func testHashes(n int) []common.Hash {
	hashes := make([]common.Hash, n)
	for i := range hashes {
		hashes[i] = common.BytesToHash([]byte{byte(i + 1)})
	}
	return hashes
}

func TestWaitForTransactionReceiptImmediate(t *testing.T) {
	backend := newStubChainBackend()
	hash := common.BytesToHash([]byte{1})
	backend.setReceipt(hash, successReceipt(hash, 100))

	waiter := NewWaiter(backend, nil)
	receipt, block, err := waiter.WaitForTransactionReceipt(context.Background(), hash, 110)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block)
	require.Equal(t, hash, receipt.TxHash)
}

func TestWaitForTransactionReceiptAfterHeads(t *testing.T) {
	backend := newStubChainBackend()
	hash := common.BytesToHash([]byte{1})
	waiter := NewWaiter(backend, nil)

	done := make(chan struct{})
	var receipt *types.Receipt
	var err error
	go func() {
		defer close(done)
		receipt, _, err = waiter.WaitForTransactionReceipt(context.Background(), hash, 110)
	}()

	backend.pushHead(t, 101)
	backend.setReceipt(hash, successReceipt(hash, 102))
	backend.pushHead(t, 102)

	<-done
	require.NoError(t, err)
	require.Equal(t, uint64(102), receipt.BlockNumber.Uint64())
}

func TestWaitForTransactionReceiptTimeout(t *testing.T) {
	backend := newStubChainBackend()
	hash := common.BytesToHash([]byte{1})
	waiter := NewWaiter(backend, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := waiter.WaitForTransactionReceipt(context.Background(), hash, 110)
		done <- err
	}()

	backend.pushHead(t, 109)
	backend.pushHead(t, 110)

	err := <-done
	var timeout *TxTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, hash, timeout.Hash)
	require.Equal(t, uint64(110), timeout.Block)
}

func TestWaitForTransactionReceiptRevert(t *testing.T) {
	backend := newStubChainBackend()
	hash := common.BytesToHash([]byte{1})
	backend.setReceipt(hash, failedReceipt(hash, 100))

	waiter := NewWaiter(backend, nil)
	_, _, err := waiter.WaitForTransactionReceipt(context.Background(), hash, 110)
	var reverted *TxRevertError
	require.ErrorAs(t, err, &reverted)
	require.Equal(t, hash, reverted.Receipt.TxHash)
}

func TestWaitForBundleAllLanded(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(3)
	waiter := NewWaiter(backend, nil)

	done := make(chan struct{})
	var receipts []*types.Receipt
	var block uint64
	var err error
	go func() {
		defer close(done)
		receipts, block, err = waiter.WaitForBundle(context.Background(), hashes, 110)
	}()

	backend.awaitSubscription(t)
	for _, hash := range hashes {
		backend.setReceipt(hash, successReceipt(hash, 103))
	}
	backend.pushHead(t, 103)

	<-done
	require.NoError(t, err)
	require.Equal(t, uint64(103), block)
	require.Len(t, receipts, 3)
	// receipts come back in flattened bundle order
	for i, hash := range hashes {
		require.Equal(t, hash, receipts[i].TxHash)
	}
}

func TestWaitForBundleRevert(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(3)
	backend.setReceipt(hashes[0], successReceipt(hashes[0], 103))
	backend.setReceipt(hashes[1], failedReceipt(hashes[1], 103))
	backend.setReceipt(hashes[2], successReceipt(hashes[2], 103))

	waiter := NewWaiter(backend, nil)
	_, _, err := waiter.WaitForBundle(context.Background(), hashes, 110)
	var reverted *BundleRevertError
	require.ErrorAs(t, err, &reverted)
	require.Len(t, reverted.Receipts, 3)
}

func TestWaitForBundlePartialDiscard(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(3)
	waiter := NewWaiter(backend, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := waiter.WaitForBundle(context.Background(), hashes, 110)
		done <- err
	}()

	backend.awaitSubscription(t)
	backend.setReceipt(hashes[1], successReceipt(hashes[1], 102))
	backend.pushHead(t, 102)

	err := <-done
	var discarded *BundleDiscardError
	require.ErrorAs(t, err, &discarded)
	require.Len(t, discarded.Receipts, 1)
	require.Equal(t, hashes[1], discarded.Receipts[0].TxHash)
}

func TestWaitForBundleTimeout(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(2)
	waiter := NewWaiter(backend, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := waiter.WaitForBundle(context.Background(), hashes, 110)
		done <- err
	}()

	backend.pushHead(t, 109)
	backend.pushHead(t, 110)

	err := <-done
	var timeout *BundleTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, uint64(110), timeout.Block)
}

func TestWaitForBundlePartialAtDeadlineIsTimeout(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(3)
	waiter := NewWaiter(backend, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := waiter.WaitForBundle(context.Background(), hashes, 110)
		done <- err
	}()

	// Two of three land, but only observed once the window is already
	// closed: timeout wins over discard.
	backend.awaitSubscription(t)
	backend.setReceipt(hashes[0], successReceipt(hashes[0], 110))
	backend.setReceipt(hashes[1], successReceipt(hashes[1], 110))
	backend.pushHead(t, 110)

	err := <-done
	var timeout *BundleTimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestWaitForBundleCompleteAtDeadlineStillResolves(t *testing.T) {
	backend := newStubChainBackend()
	hashes := testHashes(2)
	waiter := NewWaiter(backend, nil)

	done := make(chan struct{})
	var receipts []*types.Receipt
	var err error
	go func() {
		defer close(done)
		receipts, _, err = waiter.WaitForBundle(context.Background(), hashes, 110)
	}()

	backend.awaitSubscription(t)
	backend.setReceipt(hashes[0], successReceipt(hashes[0], 110))
	backend.setReceipt(hashes[1], successReceipt(hashes[1], 110))
	backend.pushHead(t, 110)

	<-done
	require.NoError(t, err)
	require.Len(t, receipts, 2)
}

func TestWaitForBundleEmptyBody(t *testing.T) {
	waiter := NewWaiter(newStubChainBackend(), nil)
	_, _, err := waiter.WaitForBundle(context.Background(), nil, 110)
	require.ErrorIs(t, err, ErrInvalidBundleBody)
}

func TestWaitForTransactionReceiptContextCancel(t *testing.T) {
	backend := newStubChainBackend()
	waiter := NewWaiter(backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := waiter.WaitForTransactionReceipt(ctx, common.BytesToHash([]byte{1}), 110)
		done <- err
	}()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

package mevshare

import (
	"context"
	"testing"

	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestPendingTransactionInclusion(t *testing.T) {
	backend := newStubChainBackend()
	hash := testHashes(1)[0]
	backend.setReceipt(hash, successReceipt(hash, 105))

	pending := &PendingTransaction{Hash: hash, MaxBlock: 110, waiter: NewWaiter(backend, nil)}
	receipt, err := pending.Inclusion(context.Background())
	require.NoError(t, err)
	require.Equal(t, hash, receipt.TxHash)
}

func TestPendingBundleInclusionFlattensBody(t *testing.T) {
	backend := newStubChainBackend()

	refHash := testHashes(1)[0]
	raw := rawTx('a')
	txHash := crypto.Keccak256Hash(raw)
	backend.setReceipt(refHash, successReceipt(refHash, 103))
	backend.setReceipt(txHash, successReceipt(txHash, 103))

	args := &SendMevBundleArgs{
		Version: VersionV1,
		Inclusion: MevBundleInclusion{
			BlockNumber: 100,
			MaxBlock:    110,
		},
		Body: []MevBundleBody{hashBody(refHash), {Tx: &raw}},
	}
	pending := &PendingBundle{Args: args, waiter: NewWaiter(backend, nil)}

	receipts, err := pending.Inclusion(context.Background())
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.Equal(t, refHash, receipts[0].TxHash)
	require.Equal(t, txHash, receipts[1].TxHash)
}

func TestPendingBundleDefaultWindow(t *testing.T) {
	backend := newStubChainBackend()
	hash := testHashes(1)[0]
	waiter := NewWaiter(backend, nil)

	args := &SendMevBundleArgs{
		Version:   VersionV1,
		Inclusion: MevBundleInclusion{BlockNumber: 100},
		Body:      []MevBundleBody{hashBody(hash)},
	}
	pending := &PendingBundle{Args: args, waiter: waiter}

	done := make(chan error, 1)
	go func() {
		_, err := pending.Inclusion(context.Background())
		done <- err
	}()

	// a bundle without a max block is only valid for its target block, so
	// the first head at the target closes the window
	backend.pushHead(t, 100)

	err := <-done
	var timeout *BundleTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, uint64(100), timeout.Block)
}

func TestPendingBundleExplicitWindowIsHonored(t *testing.T) {
	backend := newStubChainBackend()
	hash := testHashes(1)[0]

	args := &SendMevBundleArgs{
		Version: VersionV1,
		Inclusion: MevBundleInclusion{
			BlockNumber: 100,
			MaxBlock:    102,
		},
		Body: []MevBundleBody{hashBody(hash)},
	}
	pending := &PendingBundle{Args: args, waiter: NewWaiter(backend, nil)}

	done := make(chan error, 1)
	go func() {
		_, err := pending.Inclusion(context.Background())
		done <- err
	}()

	// heads inside the window keep the wait alive past the target block
	backend.pushHead(t, 100)
	backend.pushHead(t, 101)
	backend.pushHead(t, 102)

	err := <-done
	var timeout *BundleTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, uint64(102), timeout.Block)
}

func TestPendingBundleInclusionRecordsOutcomes(t *testing.T) {
	included := vmetrics.GetOrCreateCounter("mevshare_bundles_included_total")
	timedOut := vmetrics.GetOrCreateCounter("mevshare_bundles_timed_out_total")

	backend := newStubChainBackend()
	hash := testHashes(1)[0]
	backend.setReceipt(hash, successReceipt(hash, 100))

	args := &SendMevBundleArgs{
		Version:   VersionV1,
		Inclusion: MevBundleInclusion{BlockNumber: 100},
		Body:      []MevBundleBody{hashBody(hash)},
	}
	pending := &PendingBundle{Args: args, waiter: NewWaiter(backend, nil)}

	before := included.Get()
	_, err := pending.Inclusion(context.Background())
	require.NoError(t, err)
	require.Equal(t, before+1, included.Get())

	missing := testHashes(2)[1]
	args = &SendMevBundleArgs{
		Version:   VersionV1,
		Inclusion: MevBundleInclusion{BlockNumber: 100},
		Body:      []MevBundleBody{hashBody(missing)},
	}
	pending = &PendingBundle{Args: args, waiter: NewWaiter(backend, nil)}

	done := make(chan error, 1)
	before = timedOut.Get()
	go func() {
		_, err := pending.Inclusion(context.Background())
		done <- err
	}()
	backend.pushHead(t, 100)

	var timeout *BundleTimeoutError
	require.ErrorAs(t, <-done, &timeout)
	require.Equal(t, before+1, timedOut.Get())
}

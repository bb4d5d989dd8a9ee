package mevshare

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnsupportedNetwork       = errors.New("unsupported network")
	ErrInvalidInclusion         = errors.New("invalid inclusion")
	ErrInvalidBundleBody        = errors.New("invalid bundle body")
	ErrInvalidBundleConstraints = errors.New("invalid bundle constraints")
	// ErrInvalidBundlePrivacy: the relay rejects privacy settings on bundles
	// that reference transactions by hash, so the client rejects them before
	// the network trip.
	ErrInvalidBundlePrivacy = errors.New("bundle with hash references cannot carry privacy settings")
)

// TxTimeoutError is returned when the transaction did not appear on chain
// before the wait window closed. Resubmitting is the caller's decision.
type TxTimeoutError struct {
	Hash  common.Hash
	Block uint64
}

func (e *TxTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not included by block %d", e.Hash.Hex(), e.Block)
}

// TxRevertError is returned when the transaction landed with a failed status.
type TxRevertError struct {
	Receipt *types.Receipt
}

func (e *TxRevertError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %d", e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber)
}

// BundleTimeoutError is returned when none of the bundle's transactions
// appeared on chain before the wait window closed.
type BundleTimeoutError struct {
	Hashes []common.Hash
	Block  uint64
}

func (e *BundleTimeoutError) Error() string {
	return fmt.Sprintf("bundle of %d transactions not included by block %d", len(e.Hashes), e.Block)
}

// BundleRevertError is returned when every bundle transaction landed but at
// least one reverted. Receipts holds all of them.
type BundleRevertError struct {
	Receipts []*types.Receipt
}

func (e *BundleRevertError) Error() string {
	return fmt.Sprintf("bundle reverted, %d receipts", len(e.Receipts))
}

// BundleDiscardError is returned when the bundle was broken apart: some of
// its transactions landed independently while others never will as part of
// this bundle. Receipts holds the parts that did land so the caller can
// reconcile state.
type BundleDiscardError struct {
	Receipts []*types.Receipt
}

func (e *BundleDiscardError) Error() string {
	return fmt.Sprintf("bundle discarded, %d of its transactions landed independently", len(e.Receipts))
}

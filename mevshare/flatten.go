package mevshare

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// BodyHashIterator walks a bundle body and yields the transaction hashes the
// bundle depends on, depth-first, left to right, parents before children's
// siblings. Hash references yield the stored hash, raw transactions yield the
// keccak of their signed bytes, nested bundles are descended into in place.
// Duplicates are yielded as often as they appear.
//
// The traversal keeps an explicit stack of the remaining siblings at each
// nesting level, so arbitrarily deep bundles do not grow the call stack.
type BodyHashIterator struct {
	stack [][]MevBundleBody
}

func NewBodyHashIterator(body []MevBundleBody) *BodyHashIterator {
	return &BodyHashIterator{stack: [][]MevBundleBody{body}}
}

// Next returns the next hash in traversal order, or false when the body is
// exhausted. The iterator is not restartable.
func (it *BodyHashIterator) Next() (common.Hash, bool) {
	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]
		if len(top) == 0 {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		el := top[0]
		it.stack[len(it.stack)-1] = top[1:]

		switch {
		case el.Hash != nil:
			return *el.Hash, true
		case el.Tx != nil:
			return rawTxHash(*el.Tx), true
		case el.Bundle != nil:
			it.stack = append(it.stack, el.Bundle.Body)
		}
	}
	return common.Hash{}, false
}

// BodyHashes materializes the full flattened hash sequence of a bundle body.
func BodyHashes(body []MevBundleBody) []common.Hash {
	var hashes []common.Hash
	it := NewBodyHashIterator(body)
	for h, ok := it.Next(); ok; h, ok = it.Next() {
		hashes = append(hashes, h)
	}
	return hashes
}

func rawTxHash(raw hexutil.Bytes) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(raw)
	return common.BytesToHash(hasher.Sum(nil))
}

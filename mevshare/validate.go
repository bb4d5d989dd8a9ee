package mevshare

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ValidateBundle checks a bundle before submission so obviously broken
// payloads fail locally instead of burning a signed relay round trip. It
// mirrors the relay's own acceptance rules but is intentionally shallower:
// passing validation does not guarantee relay acceptance.
func ValidateBundle(bundle *SendMevBundleArgs) error {
	if bundle == nil {
		return ErrInvalidBundleBody
	}
	if bundle.Version != VersionV1 && bundle.Version != VersionBeta {
		return fmt.Errorf("%w: unknown version %q", ErrInvalidBundleBody, bundle.Version)
	}
	if err := validateInclusion(bundle.Inclusion); err != nil {
		return err
	}
	if err := validateBody(bundle.Body); err != nil {
		return err
	}
	if err := validateConstraints(bundle.Validity); err != nil {
		return err
	}
	if bundle.Privacy != nil && bundle.Privacy.Hints != HintNone && hasHashReference(bundle.Body) {
		return fmt.Errorf("%w: hints require all transactions to be signed", ErrInvalidBundlePrivacy)
	}
	return nil
}

func validateInclusion(inclusion MevBundleInclusion) error {
	if inclusion.BlockNumber == 0 {
		return fmt.Errorf("%w: missing target block", ErrInvalidInclusion)
	}
	if inclusion.MaxBlock != 0 && inclusion.MaxBlock < inclusion.BlockNumber {
		return fmt.Errorf("%w: max block below target block", ErrInvalidInclusion)
	}
	return nil
}

func validateBody(body []MevBundleBody) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidBundleBody)
	}
	// Nested bundles are walked with an explicit stack, no depth limit.
	stack := [][]MevBundleBody{body}
	for len(stack) > 0 {
		items := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(items) > MaxBodySize {
			return fmt.Errorf("%w: body exceeds %d elements", ErrInvalidBundleBody, MaxBodySize)
		}
		for i, item := range items {
			fields := 0
			if item.Hash != nil {
				fields++
			}
			if item.Tx != nil {
				fields++
			}
			if item.Bundle != nil {
				fields++
			}
			if fields != 1 {
				return fmt.Errorf("%w: body item %d must set exactly one of hash, tx, bundle", ErrInvalidBundleBody, i)
			}
			if item.Bundle != nil {
				if len(item.Bundle.Body) == 0 {
					return fmt.Errorf("%w: empty nested bundle", ErrInvalidBundleBody)
				}
				stack = append(stack, item.Bundle.Body)
			}
		}
	}
	return nil
}

func validateConstraints(validity MevBundleValidity) error {
	total := 0
	for _, refund := range validity.Refund {
		if refund.Percent < 0 || refund.Percent > 100 {
			return fmt.Errorf("%w: refund percent out of range", ErrInvalidBundleConstraints)
		}
		total += refund.Percent
	}
	if total > 100 {
		return fmt.Errorf("%w: refund percents sum above 100", ErrInvalidBundleConstraints)
	}
	total = 0
	for _, config := range validity.RefundConfig {
		if config.Percent < 0 || config.Percent > 100 {
			return fmt.Errorf("%w: refund config percent out of range", ErrInvalidBundleConstraints)
		}
		total += config.Percent
	}
	if total > 100 {
		return fmt.Errorf("%w: refund config percents sum above 100", ErrInvalidBundleConstraints)
	}
	return nil
}

func hasHashReference(body []MevBundleBody) bool {
	stack := [][]MevBundleBody{body}
	for len(stack) > 0 {
		items := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, item := range items {
			if item.Hash != nil {
				return true
			}
			if item.Bundle != nil {
				stack = append(stack, item.Bundle.Body)
			}
		}
	}
	return false
}

// BundleHash computes the identity of a bundle from its flattened transaction
// hashes: one transaction keeps its own hash, otherwise the keccak256 of the
// concatenated hashes.
func BundleHash(body []MevBundleBody) common.Hash {
	hashes := BodyHashes(body)
	if len(hashes) == 1 {
		return hashes[0]
	}
	hasher := sha3.NewLegacyKeccak256()
	for _, hash := range hashes {
		hasher.Write(hash.Bytes())
	}
	return common.BytesToHash(hasher.Sum(nil))
}

// Package jsonrpcclient is a minimal JSON-RPC 2.0 HTTP client that signs
// every request body with the Flashbots authentication scheme: the
// X-Flashbots-Signature header carries the signer address and an EIP-191
// personal-sign signature over the hex-encoded keccak256 of the body.
package jsonrpcclient

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces authentication signatures for request bodies. The identity
// behind it is a reputation key, not a funds key.
type Signer interface {
	Address() common.Address
	SignMessage(msg []byte) ([]byte, error)
}

// PrivateKeySigner signs with a local secp256k1 key.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

func NewPrivateKeySignerFromHex(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewPrivateKeySigner(key), nil
}

func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

// SignMessage signs the EIP-191 personal-sign digest of msg.
func (s *PrivateKeySigner) SignMessage(msg []byte) ([]byte, error) {
	return crypto.Sign(accounts.TextHash(msg), s.key)
}

// internal/wallet/wallet.go
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is a pure signing capability. The pipeline never touches key
// storage; lookup and encryption-at-rest live with the excluded collaborator.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Wallet signs transactions with a secp256k1 key held in memory.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromHex creates a wallet from a hex-encoded private key, with or without
// the 0x prefix.
func FromHex(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// SignTx signs the transaction for the given chain.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// String returns the wallet's address.
func (w *Wallet) String() string {
	return w.address.Hex()
}

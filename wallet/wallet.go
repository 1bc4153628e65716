// Package wallet is the in-memory multi-asset ledger: exact balance
// accounting for Ether, ERC-20, ERC-721 and ERC-1155 holdings, keyed by
// wallet and asset. Entries are deleted when a balance returns to zero, so
// the maps only ever hold live positions.
package wallet

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrNotOwner            = errors.New("wallet: not the owner")
	ErrMissingAppAddress   = errors.New("wallet: application address not set")
	ErrOverflow            = errors.New("wallet: balance overflow")
)

// Wallet aggregates the four asset ledgers. It is supervisor-scoped: two
// supervisors in one process hold independent wallets.
type Wallet struct {
	Ether   *EtherWallet
	ERC20   *ERC20Wallet
	ERC721  *ERC721Wallet
	ERC1155 *ERC1155Wallet
}

func New() *Wallet {
	return &Wallet{
		Ether:   NewEtherWallet(),
		ERC20:   NewERC20Wallet(),
		ERC721:  NewERC721Wallet(),
		ERC1155: NewERC1155Wallet(),
	}
}

// Snapshot deep-copies the ledger. Together with Restore it implements the
// per-cycle staging: mutate live, roll back to the snapshot on Reject.
func (w *Wallet) Snapshot() *Wallet {
	return &Wallet{
		Ether:   w.Ether.snapshot(),
		ERC20:   w.ERC20.snapshot(),
		ERC721:  w.ERC721.snapshot(),
		ERC1155: w.ERC1155.snapshot(),
	}
}

// Restore replaces the ledger contents with a snapshot taken earlier.
func (w *Wallet) Restore(snap *Wallet) {
	w.Ether.balances = snap.Ether.balances
	w.ERC20.balances = snap.ERC20.balances
	w.ERC721.owners = snap.ERC721.owners
	w.ERC1155.balances = snap.ERC1155.balances
}

func sortedAddresses(set map[common.Address]struct{}) []common.Address {
	addresses := make([]common.Address, 0, len(set))
	for addr := range set {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return bytes.Compare(addresses[i][:], addresses[j][:]) < 0
	})
	return addresses
}

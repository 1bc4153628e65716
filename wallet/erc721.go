package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type erc721Key struct {
	token common.Address
	id    uint256.Int
}

// ERC721Wallet tracks which address owns each (token, id) held by the
// application. An absent key means the ledger does not hold the token.
type ERC721Wallet struct {
	owners map[erc721Key]common.Address
}

func NewERC721Wallet() *ERC721Wallet {
	return &ERC721Wallet{owners: make(map[erc721Key]common.Address)}
}

// Addresses returns the set of current owners, byte-ordered.
func (w *ERC721Wallet) Addresses() []common.Address {
	set := make(map[common.Address]struct{})
	for _, owner := range w.owners {
		set[owner] = struct{}{}
	}
	return sortedAddresses(set)
}

// OwnerOf reports the owner of (token, id) and whether the ledger holds it.
func (w *ERC721Wallet) OwnerOf(token common.Address, id *uint256.Int) (common.Address, bool) {
	owner, ok := w.owners[erc721Key{token, *id}]
	return owner, ok
}

// SetOwner assigns (token, id) to an owner, preserving the at-most-one-owner
// invariant by construction.
func (w *ERC721Wallet) SetOwner(owner, token common.Address, id *uint256.Int) {
	w.owners[erc721Key{token, *id}] = owner
}

func (w *ERC721Wallet) Deposit(to, token common.Address, id *uint256.Int) error {
	w.SetOwner(to, token, id)
	return nil
}

// Transfer reassigns (token, id) from src to dst. Fails unless src is the
// current owner.
func (w *ERC721Wallet) Transfer(src, dst, token common.Address, id *uint256.Int) error {
	owner, ok := w.OwnerOf(token, id)
	if !ok || owner != src {
		return ErrNotOwner
	}
	w.SetOwner(dst, token, id)
	return nil
}

// Withdraw removes (token, id) from the ledger entirely; the key is deleted,
// not zeroed.
func (w *ERC721Wallet) Withdraw(src, token common.Address, id *uint256.Int) error {
	owner, ok := w.OwnerOf(token, id)
	if !ok || owner != src {
		return ErrNotOwner
	}
	delete(w.owners, erc721Key{token, *id})
	return nil
}

func (w *ERC721Wallet) snapshot() *ERC721Wallet {
	copied := make(map[erc721Key]common.Address, len(w.owners))
	for key, owner := range w.owners {
		copied[key] = owner
	}
	return &ERC721Wallet{owners: copied}
}

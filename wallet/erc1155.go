package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/crabrolls/crabrolls/entities"
)

type erc1155Key struct {
	wallet common.Address
	token  common.Address
	id     uint256.Int
}

// ERC1155Wallet tracks semi-fungible balances per (wallet, token, id).
type ERC1155Wallet struct {
	balances map[erc1155Key]uint256.Int
}

func NewERC1155Wallet() *ERC1155Wallet {
	return &ERC1155Wallet{balances: make(map[erc1155Key]uint256.Int)}
}

// Addresses returns every wallet with a positive balance of any id,
// byte-ordered.
func (w *ERC1155Wallet) Addresses() []common.Address {
	set := make(map[common.Address]struct{})
	for key := range w.balances {
		set[key.wallet] = struct{}{}
	}
	return sortedAddresses(set)
}

func (w *ERC1155Wallet) BalanceOf(wallet, token common.Address, id *uint256.Int) *uint256.Int {
	balance := w.balances[erc1155Key{wallet, token, *id}]
	return new(uint256.Int).Set(&balance)
}

// SetBalance overwrites the balance. Zero deletes the entry.
func (w *ERC1155Wallet) SetBalance(wallet, token common.Address, id, value *uint256.Int) {
	key := erc1155Key{wallet, token, *id}
	if value == nil || value.IsZero() {
		delete(w.balances, key)
		return
	}
	w.balances[key] = *value
}

func (w *ERC1155Wallet) Deposit(wallet, token common.Address, id, amount *uint256.Int) error {
	balance := w.BalanceOf(wallet, token, id)
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return ErrOverflow
	}
	w.SetBalance(wallet, token, id, balance)
	return nil
}

// Transfer moves every (id, amount) pair from src to dst, all-or-nothing: if
// any debit would go negative nothing is applied. A transfer to self is a
// no-op that still requires sufficient balances.
func (w *ERC1155Wallet) Transfer(src, dst, token common.Address, transfers []entities.IDAmount) error {
	staged, err := w.stage(src, dst, token, transfers, dst != src)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	w.commit(staged)
	return nil
}

// Withdraw debits every (id, amount) pair from src, all-or-nothing.
func (w *ERC1155Wallet) Withdraw(src, token common.Address, withdrawals []entities.IDAmount) error {
	staged, err := w.stage(src, common.Address{}, token, withdrawals, false)
	if err != nil {
		return err
	}
	w.commit(staged)
	return nil
}

// stage computes the post-operation balances without touching the live map,
// so a failing pair leaves no partial effect. Duplicate ids within one batch
// accumulate against the staged value, not the live one.
func (w *ERC1155Wallet) stage(src, dst, token common.Address, pairs []entities.IDAmount, credit bool) (map[erc1155Key]uint256.Int, error) {
	staged := make(map[erc1155Key]uint256.Int, len(pairs)*2)
	read := func(key erc1155Key) *uint256.Int {
		if balance, ok := staged[key]; ok {
			return new(uint256.Int).Set(&balance)
		}
		balance := w.balances[key]
		return new(uint256.Int).Set(&balance)
	}
	for _, pair := range pairs {
		srcKey := erc1155Key{src, token, *pair.ID}
		srcBalance := read(srcKey)
		if srcBalance.Lt(pair.Amount) {
			return nil, ErrInsufficientBalance
		}
		staged[srcKey] = *srcBalance.Sub(srcBalance, pair.Amount)
		if credit {
			dstKey := erc1155Key{dst, token, *pair.ID}
			dstBalance := read(dstKey)
			if _, overflow := dstBalance.AddOverflow(dstBalance, pair.Amount); overflow {
				return nil, ErrOverflow
			}
			staged[dstKey] = *dstBalance
		}
	}
	return staged, nil
}

func (w *ERC1155Wallet) commit(staged map[erc1155Key]uint256.Int) {
	for key, balance := range staged {
		if balance.IsZero() {
			delete(w.balances, key)
		} else {
			w.balances[key] = balance
		}
	}
}

func (w *ERC1155Wallet) snapshot() *ERC1155Wallet {
	copied := make(map[erc1155Key]uint256.Int, len(w.balances))
	for key, balance := range w.balances {
		copied[key] = balance
	}
	return &ERC1155Wallet{balances: copied}
}

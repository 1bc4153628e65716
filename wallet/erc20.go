package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type erc20Key struct {
	wallet common.Address
	token  common.Address
}

// ERC20Wallet tracks fungible token balances per (wallet, token).
type ERC20Wallet struct {
	balances map[erc20Key]uint256.Int
}

func NewERC20Wallet() *ERC20Wallet {
	return &ERC20Wallet{balances: make(map[erc20Key]uint256.Int)}
}

// Addresses returns every wallet holding a positive balance of at least one
// token, byte-ordered.
func (w *ERC20Wallet) Addresses() []common.Address {
	set := make(map[common.Address]struct{})
	for key := range w.balances {
		set[key.wallet] = struct{}{}
	}
	return sortedAddresses(set)
}

func (w *ERC20Wallet) BalanceOf(wallet, token common.Address) *uint256.Int {
	balance := w.balances[erc20Key{wallet, token}]
	return new(uint256.Int).Set(&balance)
}

// SetBalance overwrites the balance. Zero deletes the entry.
func (w *ERC20Wallet) SetBalance(wallet, token common.Address, value *uint256.Int) {
	key := erc20Key{wallet, token}
	if value == nil || value.IsZero() {
		delete(w.balances, key)
		return
	}
	w.balances[key] = *value
}

func (w *ERC20Wallet) Deposit(wallet, token common.Address, amount *uint256.Int) error {
	balance := w.BalanceOf(wallet, token)
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return ErrOverflow
	}
	w.SetBalance(wallet, token, balance)
	return nil
}

// Transfer moves amount of token from src to dst. A transfer to self is a
// no-op that still requires sufficient balance.
func (w *ERC20Wallet) Transfer(src, dst, token common.Address, amount *uint256.Int) error {
	srcBalance := w.BalanceOf(src, token)
	if srcBalance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if src == dst {
		return nil
	}
	dstBalance := w.BalanceOf(dst, token)
	if _, overflow := dstBalance.AddOverflow(dstBalance, amount); overflow {
		return ErrOverflow
	}
	w.SetBalance(src, token, srcBalance.Sub(srcBalance, amount))
	w.SetBalance(dst, token, dstBalance)
	return nil
}

// Withdraw debits amount of token from the wallet.
func (w *ERC20Wallet) Withdraw(wallet, token common.Address, amount *uint256.Int) error {
	balance := w.BalanceOf(wallet, token)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	w.SetBalance(wallet, token, balance.Sub(balance, amount))
	return nil
}

func (w *ERC20Wallet) snapshot() *ERC20Wallet {
	copied := make(map[erc20Key]uint256.Int, len(w.balances))
	for key, balance := range w.balances {
		copied[key] = balance
	}
	return &ERC20Wallet{balances: copied}
}

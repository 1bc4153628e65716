package wallet

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EtherWallet tracks wei balances per address.
type EtherWallet struct {
	balances map[common.Address]uint256.Int
}

func NewEtherWallet() *EtherWallet {
	return &EtherWallet{balances: make(map[common.Address]uint256.Int)}
}

// Addresses returns every address with a positive balance, byte-ordered.
func (w *EtherWallet) Addresses() []common.Address {
	set := make(map[common.Address]struct{}, len(w.balances))
	for addr := range w.balances {
		set[addr] = struct{}{}
	}
	return sortedAddresses(set)
}

// BalanceOf returns the balance of address, zero when absent.
func (w *EtherWallet) BalanceOf(address common.Address) *uint256.Int {
	balance := w.balances[address]
	return new(uint256.Int).Set(&balance)
}

// SetBalance overwrites the balance. Zero deletes the entry.
func (w *EtherWallet) SetBalance(address common.Address, value *uint256.Int) {
	if value == nil || value.IsZero() {
		delete(w.balances, address)
		return
	}
	w.balances[address] = *value
}

// Deposit credits amount to the address.
func (w *EtherWallet) Deposit(address common.Address, amount *uint256.Int) error {
	balance := w.BalanceOf(address)
	if _, overflow := balance.AddOverflow(balance, amount); overflow {
		return ErrOverflow
	}
	w.SetBalance(address, balance)
	return nil
}

// Transfer moves amount from src to dst. A transfer to self is a no-op that
// still requires sufficient balance.
func (w *EtherWallet) Transfer(src, dst common.Address, amount *uint256.Int) error {
	srcBalance := w.BalanceOf(src)
	if srcBalance.Lt(amount) {
		return ErrInsufficientBalance
	}
	if src == dst {
		return nil
	}
	dstBalance := w.BalanceOf(dst)
	if _, overflow := dstBalance.AddOverflow(dstBalance, amount); overflow {
		return ErrOverflow
	}
	w.SetBalance(src, srcBalance.Sub(srcBalance, amount))
	w.SetBalance(dst, dstBalance)
	return nil
}

// Withdraw debits amount from the address. The voucher that releases the
// funds on L1 is built by the caller.
func (w *EtherWallet) Withdraw(address common.Address, amount *uint256.Int) error {
	balance := w.BalanceOf(address)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}
	w.SetBalance(address, balance.Sub(balance, amount))
	return nil
}

func (w *EtherWallet) snapshot() *EtherWallet {
	copied := make(map[common.Address]uint256.Int, len(w.balances))
	for addr, balance := range w.balances {
		copied[addr] = balance
	}
	return &EtherWallet{balances: copied}
}

package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DepositKind tags the asset class of a portal deposit.
type DepositKind int

const (
	DepositEther DepositKind = iota
	DepositERC20
	DepositERC721
	DepositERC1155
)

func (k DepositKind) String() string {
	switch k {
	case DepositEther:
		return "ether"
	case DepositERC20:
		return "erc20"
	case DepositERC721:
		return "erc721"
	case DepositERC1155:
		return "erc1155"
	}
	return "unknown"
}

// IDAmount pairs an ERC-1155 token id with an amount. Order matters: batch
// operations preserve the sequence the portal delivered.
type IDAmount struct {
	ID     *uint256.Int
	Amount *uint256.Int
}

// Deposit is the typed asset event a portal input carries to the application.
// Which fields are set depends on Kind: Amount for Ether and ERC20, ID for
// ERC721, IDsAmounts for ERC1155 (a single deposit collapses to one element).
type Deposit struct {
	Kind       DepositKind
	Sender     common.Address
	Token      common.Address
	Amount     *uint256.Int
	ID         *uint256.Int
	IDsAmounts []IDAmount
}

func NewEtherDeposit(sender common.Address, amount *uint256.Int) *Deposit {
	return &Deposit{Kind: DepositEther, Sender: sender, Amount: amount}
}

func NewERC20Deposit(sender, token common.Address, amount *uint256.Int) *Deposit {
	return &Deposit{Kind: DepositERC20, Sender: sender, Token: token, Amount: amount}
}

func NewERC721Deposit(sender, token common.Address, id *uint256.Int) *Deposit {
	return &Deposit{Kind: DepositERC721, Sender: sender, Token: token, ID: id}
}

func NewERC1155Deposit(sender, token common.Address, idsAmounts []IDAmount) *Deposit {
	return &Deposit{Kind: DepositERC1155, Sender: sender, Token: token, IDsAmounts: idsAmounts}
}

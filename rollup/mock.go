package rollup

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/crabrolls/crabrolls/abi"
	"github.com/crabrolls/crabrolls/addressbook"
	"github.com/crabrolls/crabrolls/entities"
	"github.com/crabrolls/crabrolls/wallet"
)

// MockOptions configures the in-process runtime used by tests.
type MockOptions struct {
	PortalConfig entities.PortalConfig
	Network      addressbook.Network
	// BaseBlockNumber and BaseTimestamp seed the synthesized metadata; each
	// input advances both by one so runs are fully deterministic.
	BaseBlockNumber uint64
	BaseTimestamp   uint64
}

func DefaultMockOptions() MockOptions {
	return MockOptions{
		PortalConfig:    entities.DefaultPortalConfig(),
		Network:         addressbook.Local,
		BaseBlockNumber: 1,
		BaseTimestamp:   1700000000,
	}
}

// CycleResult is everything one mock cycle left behind.
type CycleResult struct {
	Status   entities.FinishStatus
	Outputs  []entities.Output
	Metadata entities.Metadata
	// Err is the application or decoder error that forced a Reject, nil on
	// clean cycles.
	Err error
	// Ledger is a snapshot of the wallet after the cycle resolved.
	Ledger *wallet.Wallet
}

func (r CycleResult) byKind(kind entities.OutputKind) []entities.Output {
	var outputs []entities.Output
	for _, output := range r.Outputs {
		if output.Kind == kind {
			outputs = append(outputs, output)
		}
	}
	return outputs
}

func (r CycleResult) Notices() []entities.Output  { return r.byKind(entities.OutputNotice) }
func (r CycleResult) Reports() []entities.Output  { return r.byKind(entities.OutputReport) }
func (r CycleResult) Vouchers() []entities.Output { return r.byKind(entities.OutputVoucher) }

// Tester is the deterministic in-process substitute for the host runtime. It
// shares the exact machine, decoder, ledger and environment the Supervisor
// uses; only the HTTP transport is absent.
type Tester struct {
	app        Application
	machine    *machine
	options    MockOptions
	inputIndex uint64
}

func NewTester(app Application, options MockOptions) *Tester {
	log := logrus.WithField("component", "tester")
	return &Tester{
		app:     app,
		machine: newMachine(addressbook.ForNetwork(options.Network), options.PortalConfig, log),
		options: options,
	}
}

func (t *Tester) nextMetadata(sender common.Address) entities.Metadata {
	index := t.inputIndex
	t.inputIndex++
	return entities.Metadata{
		MsgSender:      sender,
		BlockNumber:    t.options.BaseBlockNumber + index,
		BlockTimestamp: t.options.BaseTimestamp + index,
		InputIndex:     index,
		EpochIndex:     0,
		PrevRandao:     uint256.NewInt(index),
	}
}

func (t *Tester) result(metadata entities.Metadata, res cycleResult) CycleResult {
	return CycleResult{
		Status:   res.status,
		Outputs:  res.outputs,
		Metadata: metadata,
		Err:      res.err,
		Ledger:   t.machine.wallet.Snapshot(),
	}
}

// Advance sends a state-changing input.
func (t *Tester) Advance(sender common.Address, payload []byte) CycleResult {
	metadata := t.nextMetadata(sender)
	return t.result(metadata, t.machine.advance(t.app, metadata, payload))
}

// Inspect sends a read-only query.
func (t *Tester) Inspect(payload []byte) CycleResult {
	return t.result(entities.Metadata{}, t.machine.inspect(t.app, payload))
}

// Deposit synthesizes the portal input for the given deposit, bit-exact with
// the wire schema, and advances with msg_sender set to the matching portal.
func (t *Tester) Deposit(deposit *entities.Deposit) CycleResult {
	payload, err := t.depositPayload(deposit)
	if err != nil {
		return CycleResult{Status: entities.Reject, Err: err, Ledger: t.machine.wallet.Snapshot()}
	}
	return t.Advance(t.machine.book.PortalForDeposit(deposit), payload)
}

func (t *Tester) depositPayload(deposit *entities.Deposit) ([]byte, error) {
	switch deposit.Kind {
	case entities.DepositEther:
		return abi.EtherDepositPayload(deposit.Sender, deposit.Amount, nil)
	case entities.DepositERC20:
		return abi.ERC20DepositPayload(true, deposit.Token, deposit.Sender, deposit.Amount, nil)
	case entities.DepositERC721:
		return abi.ERC721DepositPayload(deposit.Token, deposit.Sender, deposit.ID, nil)
	case entities.DepositERC1155:
		if len(deposit.IDsAmounts) == 1 {
			pair := deposit.IDsAmounts[0]
			return abi.ERC1155SingleDepositPayload(deposit.Token, deposit.Sender, pair.ID, pair.Amount, nil)
		}
		ids := make([]*uint256.Int, len(deposit.IDsAmounts))
		amounts := make([]*uint256.Int, len(deposit.IDsAmounts))
		for i, pair := range deposit.IDsAmounts {
			ids[i] = pair.ID
			amounts[i] = pair.Amount
		}
		return abi.ERC1155BatchDepositPayload(deposit.Token, deposit.Sender, ids, amounts, nil, nil)
	}
	return nil, fmt.Errorf("rollup: unknown deposit kind %d", deposit.Kind)
}

// RelayAppAddress sends the AppAddressRelay input carrying the dapp's own
// address.
func (t *Tester) RelayAppAddress(address common.Address) CycleResult {
	return t.Advance(t.machine.book.AppAddressRelay, address.Bytes())
}

// AppAddress mirrors the supervisor state learned from the relay.
func (t *Tester) AppAddress() (common.Address, bool) {
	return t.machine.AppAddress()
}

// Ledger accessors, handy for assertions between cycles.

func (t *Tester) EtherBalance(address common.Address) *uint256.Int {
	return t.machine.wallet.Ether.BalanceOf(address)
}

func (t *Tester) EtherAddresses() []common.Address {
	return t.machine.wallet.Ether.Addresses()
}

func (t *Tester) ERC20Balance(walletAddress, token common.Address) *uint256.Int {
	return t.machine.wallet.ERC20.BalanceOf(walletAddress, token)
}

func (t *Tester) ERC20Addresses() []common.Address {
	return t.machine.wallet.ERC20.Addresses()
}

func (t *Tester) ERC721Owner(token common.Address, id *uint256.Int) (common.Address, bool) {
	return t.machine.wallet.ERC721.OwnerOf(token, id)
}

func (t *Tester) ERC721Addresses() []common.Address {
	return t.machine.wallet.ERC721.Addresses()
}

func (t *Tester) ERC1155Balance(walletAddress, token common.Address, id *uint256.Int) *uint256.Int {
	return t.machine.wallet.ERC1155.BalanceOf(walletAddress, token, id)
}

func (t *Tester) ERC1155Addresses() []common.Address {
	return t.machine.wallet.ERC1155.Addresses()
}

// PreloadWallet exposes the ledger for seeding state before a scenario; it
// must not be called while a callback is running.
func (t *Tester) PreloadWallet() *wallet.Wallet {
	return t.machine.wallet
}

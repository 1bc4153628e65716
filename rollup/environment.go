package rollup

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/crabrolls/crabrolls/abi"
	"github.com/crabrolls/crabrolls/entities"
	"github.com/crabrolls/crabrolls/wallet"
)

// Environment is the handle a callback uses to emit outputs and touch the
// ledger. All mutations are staged with the cycle and discarded on Reject;
// reads observe staged writes. The handle is single-shot: once the callback
// returns every operation fails with ErrReentrantEnvironment.
type Environment interface {
	// SendNotice buffers a notice and returns its index within the cycle.
	SendNotice(payload []byte) (int, error)
	// SendReport buffers a report. Reports are the only output allowed
	// during inspect.
	SendReport(payload []byte) (int, error)
	// SendVoucher buffers an arbitrary L1 call the host may execute after
	// settlement.
	SendVoucher(destination common.Address, payload []byte) (int, error)

	// Metadata of the current Advance input; zero during inspect.
	Metadata() entities.Metadata
	// AppAddress is the dapp's own L1 address, unknown until the
	// AppAddressRelay input arrives.
	AppAddress() (common.Address, bool)

	EtherAddresses() []common.Address
	EtherBalance(address common.Address) *uint256.Int
	EtherDeposit(to common.Address, amount *uint256.Int) error
	EtherTransfer(src, dst common.Address, amount *uint256.Int) error
	EtherWithdraw(src common.Address, amount *uint256.Int) error

	ERC20Addresses() []common.Address
	ERC20Balance(walletAddress, token common.Address) *uint256.Int
	ERC20Deposit(to, token common.Address, amount *uint256.Int) error
	ERC20Transfer(src, dst, token common.Address, amount *uint256.Int) error
	ERC20Withdraw(src, token common.Address, amount *uint256.Int) error

	ERC721Addresses() []common.Address
	ERC721Owner(token common.Address, id *uint256.Int) (common.Address, bool)
	ERC721Deposit(to, token common.Address, id *uint256.Int) error
	ERC721Transfer(src, dst, token common.Address, id *uint256.Int) error
	ERC721Withdraw(src, token common.Address, id *uint256.Int) error

	ERC1155Addresses() []common.Address
	ERC1155Balance(walletAddress, token common.Address, id *uint256.Int) *uint256.Int
	ERC1155Deposit(to, token common.Address, id, amount *uint256.Int) error
	ERC1155Transfer(src, dst, token common.Address, transfers []entities.IDAmount) error
	ERC1155Withdraw(src, token common.Address, withdrawals []entities.IDAmount, data []byte) error
}

// session is the per-cycle Environment implementation. It buffers outputs
// with per-kind indices and writes through to the machine's live wallet; the
// machine snapshot taken before the callback provides the rollback.
type session struct {
	machine  *machine
	metadata entities.Metadata
	inspect  bool
	closed   bool
	outputs  []entities.Output
	indices  [3]int
}

func newSession(m *machine, metadata entities.Metadata, inspect bool) *session {
	return &session{machine: m, metadata: metadata, inspect: inspect}
}

func (s *session) guard() error {
	if s.closed {
		return ErrReentrantEnvironment
	}
	return nil
}

func (s *session) guardWrite() error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.inspect {
		return ErrReadOnlyContext
	}
	return nil
}

func (s *session) buffer(kind entities.OutputKind, destination common.Address, payload []byte) int {
	index := s.indices[kind]
	s.indices[kind]++
	s.outputs = append(s.outputs, entities.Output{
		Kind:        kind,
		Destination: destination,
		Payload:     append([]byte(nil), payload...),
		Index:       index,
	})
	return index
}

func (s *session) SendNotice(payload []byte) (int, error) {
	if err := s.guardWrite(); err != nil {
		return 0, err
	}
	return s.buffer(entities.OutputNotice, common.Address{}, payload), nil
}

func (s *session) SendReport(payload []byte) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	return s.buffer(entities.OutputReport, common.Address{}, payload), nil
}

func (s *session) SendVoucher(destination common.Address, payload []byte) (int, error) {
	if err := s.guardWrite(); err != nil {
		return 0, err
	}
	return s.buffer(entities.OutputVoucher, destination, payload), nil
}

func (s *session) Metadata() entities.Metadata {
	return s.metadata
}

func (s *session) AppAddress() (common.Address, bool) {
	return s.machine.AppAddress()
}

func (s *session) EtherAddresses() []common.Address {
	return s.machine.wallet.Ether.Addresses()
}

func (s *session) EtherBalance(address common.Address) *uint256.Int {
	return s.machine.wallet.Ether.BalanceOf(address)
}

func (s *session) EtherDeposit(to common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.Ether.Deposit(to, amount)
}

func (s *session) EtherTransfer(src, dst common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.Ether.Transfer(src, dst, amount)
}

// EtherWithdraw debits src and buffers a withdrawEther voucher addressed to
// the application contract itself.
func (s *session) EtherWithdraw(src common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	appAddress, ok := s.machine.AppAddress()
	if !ok {
		return wallet.ErrMissingAppAddress
	}
	payload, err := abi.EncodeEtherWithdraw(src, amount)
	if err != nil {
		return err
	}
	if err := s.machine.wallet.Ether.Withdraw(src, amount); err != nil {
		return err
	}
	s.buffer(entities.OutputVoucher, appAddress, payload)
	return nil
}

func (s *session) ERC20Addresses() []common.Address {
	return s.machine.wallet.ERC20.Addresses()
}

func (s *session) ERC20Balance(walletAddress, token common.Address) *uint256.Int {
	return s.machine.wallet.ERC20.BalanceOf(walletAddress, token)
}

func (s *session) ERC20Deposit(to, token common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC20.Deposit(to, token, amount)
}

func (s *session) ERC20Transfer(src, dst, token common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC20.Transfer(src, dst, token, amount)
}

// ERC20Withdraw debits src and buffers a transfer voucher addressed to the
// token contract.
func (s *session) ERC20Withdraw(src, token common.Address, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	payload, err := abi.EncodeERC20Withdraw(src, amount)
	if err != nil {
		return err
	}
	if err := s.machine.wallet.ERC20.Withdraw(src, token, amount); err != nil {
		return err
	}
	s.buffer(entities.OutputVoucher, token, payload)
	return nil
}

func (s *session) ERC721Addresses() []common.Address {
	return s.machine.wallet.ERC721.Addresses()
}

func (s *session) ERC721Owner(token common.Address, id *uint256.Int) (common.Address, bool) {
	return s.machine.wallet.ERC721.OwnerOf(token, id)
}

func (s *session) ERC721Deposit(to, token common.Address, id *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC721.Deposit(to, token, id)
}

func (s *session) ERC721Transfer(src, dst, token common.Address, id *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC721.Transfer(src, dst, token, id)
}

// ERC721Withdraw forgets (token, id) and buffers a safeTransferFrom voucher
// addressed to the token contract.
func (s *session) ERC721Withdraw(src, token common.Address, id *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	appAddress, ok := s.machine.AppAddress()
	if !ok {
		return wallet.ErrMissingAppAddress
	}
	payload, err := abi.EncodeERC721Withdraw(appAddress, src, id)
	if err != nil {
		return err
	}
	if err := s.machine.wallet.ERC721.Withdraw(src, token, id); err != nil {
		return err
	}
	s.buffer(entities.OutputVoucher, token, payload)
	return nil
}

func (s *session) ERC1155Addresses() []common.Address {
	return s.machine.wallet.ERC1155.Addresses()
}

func (s *session) ERC1155Balance(walletAddress, token common.Address, id *uint256.Int) *uint256.Int {
	return s.machine.wallet.ERC1155.BalanceOf(walletAddress, token, id)
}

func (s *session) ERC1155Deposit(to, token common.Address, id, amount *uint256.Int) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC1155.Deposit(to, token, id, amount)
}

func (s *session) ERC1155Transfer(src, dst, token common.Address, transfers []entities.IDAmount) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	return s.machine.wallet.ERC1155.Transfer(src, dst, token, transfers)
}

// ERC1155Withdraw debits the pairs all-or-nothing and buffers a single or
// batch safeTransferFrom voucher depending on the pair count.
func (s *session) ERC1155Withdraw(src, token common.Address, withdrawals []entities.IDAmount, data []byte) error {
	if err := s.guardWrite(); err != nil {
		return err
	}
	appAddress, ok := s.machine.AppAddress()
	if !ok {
		return wallet.ErrMissingAppAddress
	}
	var payload []byte
	var err error
	if len(withdrawals) == 1 {
		payload, err = abi.EncodeERC1155SingleWithdraw(appAddress, src, withdrawals[0].ID, withdrawals[0].Amount, data)
	} else {
		ids := make([]*uint256.Int, len(withdrawals))
		amounts := make([]*uint256.Int, len(withdrawals))
		for i, pair := range withdrawals {
			ids[i] = pair.ID
			amounts[i] = pair.Amount
		}
		payload, err = abi.EncodeERC1155BatchWithdraw(appAddress, src, ids, amounts, data)
	}
	if err != nil {
		return err
	}
	if err := s.machine.wallet.ERC1155.Withdraw(src, token, withdrawals); err != nil {
		return err
	}
	s.buffer(entities.OutputVoucher, token, payload)
	return nil
}

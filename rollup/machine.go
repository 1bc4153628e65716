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

// machine is the supervisor-scoped state shared by the HTTP loop and the
// mock runtime: the address book, the ledger, the relayed application
// address and the portal handling mode. It owns the ledger exclusively; the
// per-cycle session is the only write path handed out.
type machine struct {
	book          addressbook.Book
	wallet        *wallet.Wallet
	portalConfig  entities.PortalConfig
	appAddress    common.Address
	hasAppAddress bool
	log           *logrus.Entry
}

func newMachine(book addressbook.Book, portalConfig entities.PortalConfig, log *logrus.Entry) *machine {
	return &machine{
		book:         book,
		wallet:       wallet.New(),
		portalConfig: portalConfig,
		log:          log,
	}
}

func (m *machine) AppAddress() (common.Address, bool) {
	return m.appAddress, m.hasAppAddress
}

// cycleResult is what one handled input leaves behind before flushing:
// the resolved status, the outputs that survived it, and the error (if any)
// that forced a Reject.
type cycleResult struct {
	status  entities.FinishStatus
	outputs []entities.Output
	err     error
}

// errorResult rejects the cycle with a single synthetic report carrying the
// error text, so the failure still surfaces on the host.
func errorResult(err error) cycleResult {
	return cycleResult{
		status:  entities.Reject,
		outputs: []entities.Output{{Kind: entities.OutputReport, Payload: []byte(err.Error())}},
		err:     err,
	}
}

// advance runs one Advance cycle: relay absorption, portal classification,
// ledger mutation, application callback, and Reject rollback.
func (m *machine) advance(app Application, metadata entities.Metadata, payload []byte) cycleResult {
	sender := metadata.MsgSender

	if sender == m.book.AppAddressRelay {
		return m.handleRelay(payload)
	}

	snapshot := m.wallet.Snapshot()
	session := newSession(m, metadata, false)
	status, err := m.runAdvance(app, session, metadata, payload)
	session.closed = true

	if err != nil {
		m.wallet.Restore(snapshot)
		m.log.WithError(err).Error("advance rejected")
		return errorResult(err)
	}
	if status == entities.Reject {
		m.wallet.Restore(snapshot)
		return cycleResult{status: entities.Reject}
	}
	return cycleResult{status: entities.Accept, outputs: session.outputs}
}

// runAdvance performs the portal dispatch and the guarded application call.
func (m *machine) runAdvance(app Application, session *session, metadata entities.Metadata, payload []byte) (entities.FinishStatus, error) {
	var deposit *entities.Deposit
	userPayload := payload

	if m.book.IsPortal(metadata.MsgSender) {
		switch m.portalConfig.Kind {
		case entities.PortalDispense:
			m.log.WithField("portal", metadata.MsgSender.Hex()).Debug("deposit dispensed")
			return entities.Accept, nil
		case entities.PortalIgnore:
			// Fall through to the application with the raw payload.
		case entities.PortalHandle:
			var err error
			deposit, userPayload, err = m.applyDeposit(metadata.MsgSender, payload)
			if err != nil {
				return entities.Reject, err
			}
			if !m.portalConfig.Advance {
				return entities.Accept, nil
			}
		}
	}

	return safeAdvance(app, session, metadata, userPayload, deposit)
}

// inspect runs one read-only cycle. Mutations are blocked at the session, so
// there is no snapshot to restore.
func (m *machine) inspect(app Application, payload []byte) cycleResult {
	session := newSession(m, entities.Metadata{}, true)
	status, err := safeInspect(app, session, payload)
	session.closed = true

	if err != nil {
		m.log.WithError(err).Error("inspect rejected")
		return errorResult(err)
	}
	if status == entities.Reject {
		return cycleResult{status: entities.Reject}
	}
	return cycleResult{status: entities.Accept, outputs: session.outputs}
}

// handleRelay absorbs the AppAddressRelay input: the 20-byte payload becomes
// the dapp's own address and the application is not invoked.
func (m *machine) handleRelay(payload []byte) cycleResult {
	if len(payload) != common.AddressLength {
		return errorResult(fmt.Errorf("%w: relay payload is %d bytes, want %d", abi.ErrMalformed, len(payload), common.AddressLength))
	}
	m.appAddress = common.BytesToAddress(payload)
	m.hasAppAddress = true
	m.log.WithField("address", m.appAddress.Hex()).Info("application address relayed")
	return cycleResult{status: entities.Accept}
}

// applyDeposit peels the portal wire prefix, credits the ledger and builds
// the typed deposit the application will see.
func (m *machine) applyDeposit(portal common.Address, payload []byte) (*entities.Deposit, []byte, error) {
	switch portal {
	case m.book.EtherPortal:
		sender, amount, rest, err := abi.ParseEtherDeposit(payload)
		if err != nil {
			return nil, nil, err
		}
		if err := m.wallet.Ether.Deposit(sender, amount); err != nil {
			return nil, nil, err
		}
		m.log.WithFields(logrus.Fields{"sender": sender.Hex(), "amount": amount}).Debug("ether deposit")
		return entities.NewEtherDeposit(sender, amount), rest, nil

	case m.book.ERC20Portal:
		success, token, sender, amount, rest, err := abi.ParseERC20Deposit(payload)
		if err != nil {
			return nil, nil, err
		}
		if !success {
			// Failed L1 transfer: observed but worth nothing. The ledger is
			// untouched and the application sees a zero-amount deposit.
			return entities.NewERC20Deposit(sender, token, uint256.NewInt(0)), rest, nil
		}
		if err := m.wallet.ERC20.Deposit(sender, token, amount); err != nil {
			return nil, nil, err
		}
		m.log.WithFields(logrus.Fields{"sender": sender.Hex(), "token": token.Hex(), "amount": amount}).Debug("erc20 deposit")
		return entities.NewERC20Deposit(sender, token, amount), rest, nil

	case m.book.ERC721Portal:
		token, sender, id, rest, err := abi.ParseERC721Deposit(payload)
		if err != nil {
			return nil, nil, err
		}
		if err := m.wallet.ERC721.Deposit(sender, token, id); err != nil {
			return nil, nil, err
		}
		m.log.WithFields(logrus.Fields{"sender": sender.Hex(), "token": token.Hex(), "id": id}).Debug("erc721 deposit")
		return entities.NewERC721Deposit(sender, token, id), rest, nil

	case m.book.ERC1155SinglePortal:
		token, sender, id, amount, rest, err := abi.ParseERC1155SingleDeposit(payload)
		if err != nil {
			return nil, nil, err
		}
		if err := m.wallet.ERC1155.Deposit(sender, token, id, amount); err != nil {
			return nil, nil, err
		}
		m.log.WithFields(logrus.Fields{"sender": sender.Hex(), "token": token.Hex(), "id": id}).Debug("erc1155 single deposit")
		pairs := []entities.IDAmount{{ID: id, Amount: amount}}
		return entities.NewERC1155Deposit(sender, token, pairs), rest, nil

	case m.book.ERC1155BatchPortal:
		token, sender, ids, amounts, execLayer, err := abi.ParseERC1155BatchDeposit(payload)
		if err != nil {
			return nil, nil, err
		}
		pairs := make([]entities.IDAmount, len(ids))
		for i := range ids {
			if err := m.wallet.ERC1155.Deposit(sender, token, ids[i], amounts[i]); err != nil {
				return nil, nil, err
			}
			pairs[i] = entities.IDAmount{ID: ids[i], Amount: amounts[i]}
		}
		m.log.WithFields(logrus.Fields{"sender": sender.Hex(), "token": token.Hex(), "pairs": len(pairs)}).Debug("erc1155 batch deposit")
		return entities.NewERC1155Deposit(sender, token, pairs), execLayer, nil
	}
	return nil, nil, fmt.Errorf("rollup: %s is not a configured portal", portal.Hex())
}

// safeAdvance converts a callback panic into a Reject with the panic text.
func safeAdvance(app Application, env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (status entities.FinishStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = entities.Reject
			err = fmt.Errorf("application panic: %v", r)
		}
	}()
	return app.Advance(env, metadata, payload, deposit)
}

func safeInspect(app Application, env Environment, payload []byte) (status entities.FinishStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = entities.Reject
			err = fmt.Errorf("application panic: %v", r)
		}
	}()
	return app.Inspect(env, payload)
}

package rollup

import (
	"errors"
	"math/big"
	"testing"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crabrolls/crabrolls/abi"
	"github.com/crabrolls/crabrolls/addressbook"
	"github.com/crabrolls/crabrolls/entities"
)

var (
	alice     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	token     = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	dappOnL1  = common.HexToAddress("0xab7528bb862fB57E8A2BCd567a2e929a0Be56a5e")
	oneEther  = uint256.MustFromDecimal("1000000000000000000")
	echoInput = []byte("Hi Crabrolls!")
)

// funcApp adapts two closures into an Application.
type funcApp struct {
	advance func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error)
	inspect func(env Environment, payload []byte) (entities.FinishStatus, error)
}

func (a funcApp) Advance(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
	if a.advance == nil {
		return entities.Accept, nil
	}
	return a.advance(env, metadata, payload, deposit)
}

func (a funcApp) Inspect(env Environment, payload []byte) (entities.FinishStatus, error) {
	if a.inspect == nil {
		return entities.Accept, nil
	}
	return a.inspect(env, payload)
}

func echoApp() funcApp {
	return funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			if _, err := env.SendNotice(payload); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
		inspect: func(env Environment, payload []byte) (entities.FinishStatus, error) {
			if _, err := env.SendReport(payload); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
	}
}

func TestEchoAdvance(t *testing.T) {
	tester := NewTester(echoApp(), DefaultMockOptions())

	result := tester.Advance(alice, echoInput)
	require.NoError(t, result.Err)
	assert.Equal(t, entities.Accept, result.Status)

	notices := result.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, echoInput, []byte(notices[0].Payload))
	assert.Equal(t, 0, notices[0].Index)
	assert.Equal(t, alice, result.Metadata.MsgSender)
	assert.Equal(t, uint64(0), result.Metadata.InputIndex)
}

func TestMetadataIsDeterministic(t *testing.T) {
	tester := NewTester(echoApp(), DefaultMockOptions())

	first := tester.Advance(alice, []byte("a"))
	second := tester.Advance(bob, []byte("b"))

	assert.Equal(t, uint64(0), first.Metadata.InputIndex)
	assert.Equal(t, uint64(1), second.Metadata.InputIndex)
	assert.Equal(t, first.Metadata.BlockNumber+1, second.Metadata.BlockNumber)
	assert.Equal(t, first.Metadata.BlockTimestamp+1, second.Metadata.BlockTimestamp)
}

func TestEtherDepositCreditsLedger(t *testing.T) {
	var seen *entities.Deposit
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			seen = deposit
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	result := tester.Deposit(entities.NewEtherDeposit(alice, oneEther))
	require.NoError(t, result.Err)
	assert.Equal(t, entities.Accept, result.Status)

	require.NotNil(t, seen)
	assert.Equal(t, entities.DepositEther, seen.Kind)
	assert.Equal(t, alice, seen.Sender)
	assert.Equal(t, oneEther, seen.Amount)
	assert.Equal(t, oneEther, tester.EtherBalance(alice))

	book := addressbook.ForNetwork(addressbook.Local)
	assert.Equal(t, book.EtherPortal, result.Metadata.MsgSender)
}

func TestEtherWithdrawNeedsRelay(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			if deposit != nil {
				return entities.Accept, nil
			}
			if err := env.EtherWithdraw(metadata.MsgSender, oneEther); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	tester.Deposit(entities.NewEtherDeposit(alice, oneEther))

	// Withdrawing before the relay fails and rolls back.
	result := tester.Advance(alice, []byte("withdraw"))
	assert.Equal(t, entities.Reject, result.Status)
	require.Error(t, result.Err)
	assert.Equal(t, oneEther, tester.EtherBalance(alice))

	relay := tester.RelayAppAddress(dappOnL1)
	require.NoError(t, relay.Err)
	assert.Equal(t, entities.Accept, relay.Status)
	assert.Empty(t, relay.Outputs)

	result = tester.Advance(alice, []byte("withdraw"))
	require.NoError(t, result.Err)
	assert.True(t, tester.EtherBalance(alice).IsZero())

	vouchers := result.Vouchers()
	require.Len(t, vouchers, 1)
	assert.Equal(t, dappOnL1, vouchers[0].Destination)
	expected, err := abi.EncodeEtherWithdraw(alice, oneEther)
	require.NoError(t, err)
	assert.Equal(t, expected, []byte(vouchers[0].Payload))
}

func TestERC20PartialWithdraw(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			if deposit != nil {
				return entities.Accept, nil
			}
			if err := env.ERC20Withdraw(metadata.MsgSender, token, uint256.NewInt(200)); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	deposit := tester.Deposit(entities.NewERC20Deposit(alice, token, uint256.NewInt(500)))
	require.NoError(t, deposit.Err)
	assert.Equal(t, uint256.NewInt(500), tester.ERC20Balance(alice, token))

	result := tester.Advance(alice, []byte("withdraw"))
	require.NoError(t, result.Err)
	assert.Equal(t, uint256.NewInt(300), tester.ERC20Balance(alice, token))

	vouchers := result.Vouchers()
	require.Len(t, vouchers, 1)
	// ERC-20 vouchers target the token contract, no relay needed.
	assert.Equal(t, token, vouchers[0].Destination)
	expected, err := abi.EncodeERC20Withdraw(alice, uint256.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, expected, []byte(vouchers[0].Payload))
}

func TestRejectRollsBackLedgerAndOutputs(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			if deposit != nil {
				return entities.Accept, nil
			}
			if _, err := env.SendNotice([]byte("about to be discarded")); err != nil {
				return entities.Reject, err
			}
			if err := env.EtherTransfer(alice, bob, uint256.NewInt(40)); err != nil {
				return entities.Reject, err
			}
			return entities.Reject, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	tester.Deposit(entities.NewEtherDeposit(alice, uint256.NewInt(100)))

	result := tester.Advance(alice, []byte("go"))
	assert.Equal(t, entities.Reject, result.Status)
	assert.NoError(t, result.Err)
	assert.Empty(t, result.Outputs)
	assert.Equal(t, uint256.NewInt(100), tester.EtherBalance(alice))
	assert.True(t, tester.EtherBalance(bob).IsZero())
}

func TestErrorProducesSyntheticReport(t *testing.T) {
	boom := errors.New("boom")
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			env.SendNotice([]byte("discarded with the rest"))
			return entities.Reject, boom
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	result := tester.Advance(alice, []byte("go"))
	assert.Equal(t, entities.Reject, result.Status)
	require.ErrorIs(t, result.Err, boom)

	require.Len(t, result.Outputs, 1)
	report := result.Outputs[0]
	assert.Equal(t, entities.OutputReport, report.Kind)
	assert.Equal(t, "boom", string(report.Payload))
	assert.Empty(t, result.Notices())
}

func TestRejectUndoesDeposit(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			return entities.Reject, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	result := tester.Deposit(entities.NewEtherDeposit(alice, oneEther))
	assert.Equal(t, entities.Reject, result.Status)
	assert.True(t, tester.EtherBalance(alice).IsZero())
}

func TestPanicBecomesReject(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			panic("unexpected state")
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	result := tester.Advance(alice, []byte("go"))
	assert.Equal(t, entities.Reject, result.Status)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "unexpected state")
}

func TestBatchDepositShapeMismatchRejects(t *testing.T) {
	tester := NewTester(echoApp(), DefaultMockOptions())
	book := addressbook.ForNetwork(addressbook.Local)

	// The payload builder refuses mismatched lengths, so assemble the wire
	// bytes by hand: packed token || sender prefix plus an ABI tail carrying
	// three ids but only two amounts.
	prefix, err := abi.Pack(token, alice)
	require.NoError(t, err)
	tail, err := abi.Encode(
		[]ethabi.Type{abi.TypeUint256Array, abi.TypeUint256Array, abi.TypeBytes, abi.TypeBytes},
		[]*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
		[]*big.Int{big.NewInt(10), big.NewInt(20)},
		[]byte{}, []byte{},
	)
	require.NoError(t, err)

	result := tester.Advance(book.ERC1155BatchPortal, append(prefix, tail...))
	assert.Equal(t, entities.Reject, result.Status)
	require.ErrorIs(t, result.Err, abi.ErrShapeMismatch)
	assert.True(t, tester.ERC1155Balance(alice, token, uint256.NewInt(1)).IsZero())

	// The error still surfaces as a synthetic report.
	require.Len(t, result.Reports(), 1)
}

func TestERC1155BatchDepositAndWithdraw(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			if deposit != nil {
				return entities.Accept, nil
			}
			withdrawals := []entities.IDAmount{
				{ID: uint256.NewInt(1), Amount: uint256.NewInt(5)},
				{ID: uint256.NewInt(2), Amount: uint256.NewInt(20)},
			}
			if err := env.ERC1155Withdraw(metadata.MsgSender, token, withdrawals, nil); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	tester.RelayAppAddress(dappOnL1)

	deposit := tester.Deposit(entities.NewERC1155Deposit(alice, token, []entities.IDAmount{
		{ID: uint256.NewInt(1), Amount: uint256.NewInt(10)},
		{ID: uint256.NewInt(2), Amount: uint256.NewInt(20)},
	}))
	require.NoError(t, deposit.Err)
	assert.Equal(t, uint256.NewInt(10), tester.ERC1155Balance(alice, token, uint256.NewInt(1)))

	result := tester.Advance(alice, []byte("withdraw"))
	require.NoError(t, result.Err)
	assert.Equal(t, uint256.NewInt(5), tester.ERC1155Balance(alice, token, uint256.NewInt(1)))
	assert.True(t, tester.ERC1155Balance(alice, token, uint256.NewInt(2)).IsZero())

	vouchers := result.Vouchers()
	require.Len(t, vouchers, 1)
	assert.Equal(t, token, vouchers[0].Destination)
}

func TestInspectIsReadOnly(t *testing.T) {
	app := funcApp{
		inspect: func(env Environment, payload []byte) (entities.FinishStatus, error) {
			if _, err := env.SendNotice([]byte("nope")); !errors.Is(err, ErrReadOnlyContext) {
				return entities.Reject, errors.New("notice should be refused during inspect")
			}
			if err := env.EtherTransfer(alice, bob, uint256.NewInt(1)); !errors.Is(err, ErrReadOnlyContext) {
				return entities.Reject, errors.New("transfer should be refused during inspect")
			}
			if _, err := env.SendReport(env.EtherBalance(alice).Bytes()); err != nil {
				return entities.Reject, err
			}
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	tester.Deposit(entities.NewEtherDeposit(alice, uint256.NewInt(100)))

	result := tester.Inspect([]byte("balance"))
	require.NoError(t, result.Err)
	assert.Equal(t, entities.Accept, result.Status)
	require.Len(t, result.Reports(), 1)
	assert.Equal(t, uint256.NewInt(100), tester.EtherBalance(alice))
}

func TestEnvironmentIsSingleShot(t *testing.T) {
	var escaped Environment
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			escaped = env
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	tester.Advance(alice, []byte("go"))

	_, err := escaped.SendNotice([]byte("late"))
	require.ErrorIs(t, err, ErrReentrantEnvironment)
	err = escaped.EtherDeposit(alice, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrReentrantEnvironment)
}

func TestPerKindOutputIndices(t *testing.T) {
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			n0, _ := env.SendNotice([]byte("n0"))
			r0, _ := env.SendReport([]byte("r0"))
			n1, _ := env.SendNotice([]byte("n1"))
			v0, _ := env.SendVoucher(token, []byte{0x01})
			if n0 != 0 || n1 != 1 || r0 != 0 || v0 != 0 {
				return entities.Reject, errors.New("indices are per kind")
			}
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())

	result := tester.Advance(alice, []byte("go"))
	require.NoError(t, result.Err)
	require.Len(t, result.Outputs, 4)
	// Insertion order is preserved across kinds.
	assert.Equal(t, entities.OutputNotice, result.Outputs[0].Kind)
	assert.Equal(t, entities.OutputReport, result.Outputs[1].Kind)
	assert.Equal(t, entities.OutputNotice, result.Outputs[2].Kind)
	assert.Equal(t, 1, result.Outputs[2].Index)
	assert.Equal(t, entities.OutputVoucher, result.Outputs[3].Kind)
}

func TestPortalDispenseSkipsApplication(t *testing.T) {
	called := false
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			called = true
			return entities.Accept, nil
		},
	}
	options := DefaultMockOptions()
	options.PortalConfig = entities.PortalConfig{Kind: entities.PortalDispense, Advance: true}
	tester := NewTester(app, options)

	result := tester.Deposit(entities.NewEtherDeposit(alice, oneEther))
	require.NoError(t, result.Err)
	assert.Equal(t, entities.Accept, result.Status)
	assert.False(t, called)
	assert.True(t, tester.EtherBalance(alice).IsZero())
}

func TestPortalIgnorePassesRawPayload(t *testing.T) {
	var rawLen int
	var sawDeposit bool
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			rawLen = len(payload)
			sawDeposit = deposit != nil
			return entities.Accept, nil
		},
	}
	options := DefaultMockOptions()
	options.PortalConfig = entities.PortalConfig{Kind: entities.PortalIgnore, Advance: true}
	tester := NewTester(app, options)

	result := tester.Deposit(entities.NewEtherDeposit(alice, oneEther))
	require.NoError(t, result.Err)
	// The raw wire payload reaches the app and the ledger is untouched.
	assert.Equal(t, 20+32, rawLen)
	assert.False(t, sawDeposit)
	assert.True(t, tester.EtherBalance(alice).IsZero())
}

func TestPortalHandleWithoutAdvance(t *testing.T) {
	called := false
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			called = true
			return entities.Accept, nil
		},
	}
	options := DefaultMockOptions()
	options.PortalConfig = entities.PortalConfig{Kind: entities.PortalHandle, Advance: false}
	tester := NewTester(app, options)

	result := tester.Deposit(entities.NewEtherDeposit(alice, oneEther))
	require.NoError(t, result.Err)
	assert.False(t, called)
	assert.Equal(t, oneEther, tester.EtherBalance(alice))
}

func TestRelayWithBadPayloadRejects(t *testing.T) {
	tester := NewTester(echoApp(), DefaultMockOptions())
	book := addressbook.ForNetwork(addressbook.Local)

	result := tester.Advance(book.AppAddressRelay, []byte("short"))
	assert.Equal(t, entities.Reject, result.Status)
	require.Error(t, result.Err)
	_, ok := tester.AppAddress()
	assert.False(t, ok)
}

func TestFailedERC20TransferDepositsNothing(t *testing.T) {
	var seen *entities.Deposit
	app := funcApp{
		advance: func(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error) {
			seen = deposit
			return entities.Accept, nil
		},
	}
	tester := NewTester(app, DefaultMockOptions())
	book := addressbook.ForNetwork(addressbook.Local)

	payload, err := abi.ERC20DepositPayload(false, token, alice, uint256.NewInt(500), nil)
	require.NoError(t, err)
	result := tester.Advance(book.ERC20Portal, payload)
	require.NoError(t, result.Err)

	require.NotNil(t, seen)
	assert.True(t, seen.Amount.IsZero())
	assert.True(t, tester.ERC20Balance(alice, token).IsZero())
}

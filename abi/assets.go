package abi

import (
	"fmt"
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// JSON ABI fragments for the voucher targets. Selectors are computed from
// these at call time.
const (
	etherWithdrawABI = `[{"name":"withdrawEther","type":"function","inputs":[{"name":"_receiver","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[]}]`

	erc20WithdrawABI = `[{"name":"transfer","type":"function","inputs":[{"name":"_receiver","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[]}]`

	erc721WithdrawABI = `[{"name":"safeTransferFrom","type":"function","inputs":[{"name":"_from","type":"address"},{"name":"_to","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[]}]`

	erc1155SingleWithdrawABI = `[{"name":"safeTransferFrom","type":"function","inputs":[{"name":"_from","type":"address"},{"name":"_to","type":"address"},{"name":"_id","type":"uint256"},{"name":"_amount","type":"uint256"},{"name":"_data","type":"bytes"}],"outputs":[]}]`

	erc1155BatchWithdrawABI = `[{"name":"safeBatchTransferFrom","type":"function","inputs":[{"name":"_from","type":"address"},{"name":"_to","type":"address"},{"name":"_ids","type":"uint256[]"},{"name":"_amounts","type":"uint256[]"},{"name":"_data","type":"bytes"}],"outputs":[]}]`
)

func toBigs(values []*uint256.Int) []*big.Int {
	bigs := make([]*big.Int, len(values))
	for i, v := range values {
		bigs[i] = v.ToBig()
	}
	return bigs
}

func toUints(values []*big.Int) ([]*uint256.Int, error) {
	uints := make([]*uint256.Int, len(values))
	for i, v := range values {
		u, overflow := uint256.FromBig(v)
		if overflow || v.Sign() < 0 {
			return nil, fmt.Errorf("%w: uint256 out of range", ErrMalformed)
		}
		uints[i] = u
	}
	return uints, nil
}

// EtherDepositPayload builds the EtherPortal wire prefix:
// sender (20) || amount (32) || extra.
func EtherDepositPayload(sender common.Address, amount *uint256.Int, extra []byte) ([]byte, error) {
	return Pack(sender, amount, extra)
}

// ParseEtherDeposit peels the EtherPortal packed prefix, returning the sender,
// the amount and the user payload tail.
func ParseEtherDeposit(payload []byte) (common.Address, *uint256.Int, []byte, error) {
	values, rest, err := Unpack([]ethabi.Type{TypeAddress, TypeUint256}, payload)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return values[0].(common.Address), values[1].(*uint256.Int), rest, nil
}

// ERC20DepositPayload builds the ERC20Portal wire prefix:
// success (1) || token (20) || sender (20) || amount (32) || extra.
func ERC20DepositPayload(success bool, token, sender common.Address, amount *uint256.Int, extra []byte) ([]byte, error) {
	return Pack(success, token, sender, amount, extra)
}

// ParseERC20Deposit peels the ERC20Portal packed prefix. A false success flag
// means the L1 transfer failed; the caller decides whether the deposit still
// reaches the application (currently it does, with amount zero).
func ParseERC20Deposit(payload []byte) (bool, common.Address, common.Address, *uint256.Int, []byte, error) {
	values, rest, err := Unpack([]ethabi.Type{TypeBool, TypeAddress, TypeAddress, TypeUint256}, payload)
	if err != nil {
		return false, common.Address{}, common.Address{}, nil, nil, err
	}
	return values[0].(bool), values[1].(common.Address), values[2].(common.Address), values[3].(*uint256.Int), rest, nil
}

// ERC721DepositPayload builds the ERC721Portal wire prefix:
// token (20) || sender (20) || id (32) || extra.
func ERC721DepositPayload(token, sender common.Address, id *uint256.Int, extra []byte) ([]byte, error) {
	return Pack(token, sender, id, extra)
}

func ParseERC721Deposit(payload []byte) (common.Address, common.Address, *uint256.Int, []byte, error) {
	values, rest, err := Unpack([]ethabi.Type{TypeAddress, TypeAddress, TypeUint256}, payload)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, err
	}
	return values[0].(common.Address), values[1].(common.Address), values[2].(*uint256.Int), rest, nil
}

// ERC1155SingleDepositPayload builds the single-portal wire prefix:
// token (20) || sender (20) || id (32) || amount (32) || extra.
func ERC1155SingleDepositPayload(token, sender common.Address, id, amount *uint256.Int, extra []byte) ([]byte, error) {
	return Pack(token, sender, id, amount, extra)
}

func ParseERC1155SingleDeposit(payload []byte) (common.Address, common.Address, *uint256.Int, *uint256.Int, []byte, error) {
	values, rest, err := Unpack([]ethabi.Type{TypeAddress, TypeAddress, TypeUint256, TypeUint256}, payload)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, nil, err
	}
	return values[0].(common.Address), values[1].(common.Address), values[2].(*uint256.Int), values[3].(*uint256.Int), rest, nil
}

// ERC1155BatchDepositPayload builds the batch-portal payload: a packed
// token || sender prefix followed by the ABI-encoded
// (uint256[] ids, uint256[] amounts, bytes baseLayer, bytes execLayer) tail.
func ERC1155BatchDepositPayload(token, sender common.Address, ids, amounts []*uint256.Int, baseLayer, execLayer []byte) ([]byte, error) {
	if len(ids) != len(amounts) {
		return nil, fmt.Errorf("%w: %d ids vs %d amounts", ErrShapeMismatch, len(ids), len(amounts))
	}
	prefix, err := Pack(token, sender)
	if err != nil {
		return nil, err
	}
	if baseLayer == nil {
		baseLayer = []byte{}
	}
	if execLayer == nil {
		execLayer = []byte{}
	}
	tail, err := Encode(
		[]ethabi.Type{TypeUint256Array, TypeUint256Array, TypeBytes, TypeBytes},
		toBigs(ids), toBigs(amounts), baseLayer, execLayer,
	)
	if err != nil {
		return nil, err
	}
	return append(prefix, tail...), nil
}

// ParseERC1155BatchDeposit decodes the batch-portal payload. The returned
// byte slice is the exec-layer data, which the application sees as its user
// payload. Ids and amounts of unequal length fail with ErrShapeMismatch.
func ParseERC1155BatchDeposit(payload []byte) (common.Address, common.Address, []*uint256.Int, []*uint256.Int, []byte, error) {
	head, tail, err := Unpack([]ethabi.Type{TypeAddress, TypeAddress}, payload)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, nil, err
	}
	token := head[0].(common.Address)
	sender := head[1].(common.Address)

	values, err := DecodeValues([]ethabi.Type{TypeUint256Array, TypeUint256Array, TypeBytes, TypeBytes}, tail)
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, nil, err
	}
	ids, err := toUints(values[0].([]*big.Int))
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, nil, err
	}
	amounts, err := toUints(values[1].([]*big.Int))
	if err != nil {
		return common.Address{}, common.Address{}, nil, nil, nil, err
	}
	if len(ids) != len(amounts) {
		return common.Address{}, common.Address{}, nil, nil, nil,
			fmt.Errorf("%w: %d ids vs %d amounts", ErrShapeMismatch, len(ids), len(amounts))
	}
	execLayer := values[3].([]byte)
	return token, sender, ids, amounts, execLayer, nil
}

// EncodeEtherWithdraw builds the voucher body withdrawEther(receiver, value).
// The voucher destination is the application's own address.
func EncodeEtherWithdraw(receiver common.Address, amount *uint256.Int) ([]byte, error) {
	return FunctionCall(etherWithdrawABI, "withdrawEther", receiver, amount.ToBig())
}

// EncodeERC20Withdraw builds the voucher body transfer(receiver, value),
// targeting the token contract.
func EncodeERC20Withdraw(receiver common.Address, amount *uint256.Int) ([]byte, error) {
	return FunctionCall(erc20WithdrawABI, "transfer", receiver, amount.ToBig())
}

// EncodeERC721Withdraw builds safeTransferFrom(app, receiver, id), targeting
// the token contract.
func EncodeERC721Withdraw(appAddress, receiver common.Address, id *uint256.Int) ([]byte, error) {
	return FunctionCall(erc721WithdrawABI, "safeTransferFrom", appAddress, receiver, id.ToBig())
}

// EncodeERC1155SingleWithdraw builds safeTransferFrom(app, receiver, id,
// amount, data), targeting the token contract.
func EncodeERC1155SingleWithdraw(appAddress, receiver common.Address, id, amount *uint256.Int, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return FunctionCall(erc1155SingleWithdrawABI, "safeTransferFrom", appAddress, receiver, id.ToBig(), amount.ToBig(), data)
}

// EncodeERC1155BatchWithdraw builds safeBatchTransferFrom(app, receiver, ids,
// amounts, data), targeting the token contract.
func EncodeERC1155BatchWithdraw(appAddress, receiver common.Address, ids, amounts []*uint256.Int, data []byte) ([]byte, error) {
	if len(ids) != len(amounts) {
		return nil, fmt.Errorf("%w: %d ids vs %d amounts", ErrShapeMismatch, len(ids), len(amounts))
	}
	if data == nil {
		data = []byte{}
	}
	return FunctionCall(erc1155BatchWithdrawABI, "safeBatchTransferFrom", appAddress, receiver, toBigs(ids), toBigs(amounts), data)
}

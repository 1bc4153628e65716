// Package abi implements the codec subset the portals and voucher targets
// speak: standard ABI tuples, the portals' tight packing, and 4-byte-selector
// function calls. Everything returns errors on untrusted input, never panics.
package abi

import (
	"errors"
	"fmt"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrMalformed        = errors.New("abi: malformed payload")
	ErrShapeMismatch    = errors.New("abi: shape mismatch")
	ErrFunctionNotFound = errors.New("abi: function not found")
)

// Parameter types used by the portal and voucher schemas.
var (
	TypeAddress      = mustType("address")
	TypeUint256      = mustType("uint256")
	TypeBool         = mustType("bool")
	TypeBytes        = mustType("bytes")
	TypeString       = mustType("string")
	TypeUint256Array = mustType("uint256[]")
)

func mustType(s string) ethabi.Type {
	t, err := ethabi.NewType(s, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi: bad builtin type %q: %v", s, err))
	}
	return t
}

func arguments(types []ethabi.Type) ethabi.Arguments {
	args := make(ethabi.Arguments, len(types))
	for i, t := range types {
		args[i] = ethabi.Argument{Type: t}
	}
	return args
}

// Encode ABI-encodes values as a tuple with the standard 32-byte head/tail
// layout. Values follow go-ethereum conventions: common.Address for address,
// *big.Int for uint256, []byte for bytes.
func Encode(types []ethabi.Type, values ...interface{}) ([]byte, error) {
	data, err := arguments(types).Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

// DecodeValues is the inverse of Encode.
func DecodeValues(types []ethabi.Type, data []byte) ([]interface{}, error) {
	values, err := arguments(types).UnpackValues(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return values, nil
}

// PackedSize returns the byte size value occupies in the tight packing.
func PackedSize(value interface{}) (int, error) {
	switch v := value.(type) {
	case common.Address:
		return common.AddressLength, nil
	case *uint256.Int:
		return 32, nil
	case bool:
		return 1, nil
	case []byte:
		return len(v), nil
	case string:
		return len(v), nil
	}
	return 0, fmt.Errorf("%w: cannot pack %T", ErrMalformed, value)
}

// PackedSizeAll sums PackedSize over values.
func PackedSizeAll(values ...interface{}) (int, error) {
	total := 0
	for _, value := range values {
		n, err := PackedSize(value)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Pack tightly packs values the way the portals do: 20 raw bytes per address,
// 32 big-endian bytes per uint256, one byte per bool, raw bytes with no
// length prefix for bytes and string.
func Pack(values ...interface{}) ([]byte, error) {
	var buf []byte
	for _, value := range values {
		switch v := value.(type) {
		case common.Address:
			buf = append(buf, v.Bytes()...)
		case *uint256.Int:
			word := v.Bytes32()
			buf = append(buf, word[:]...)
		case bool:
			if v {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case []byte:
			buf = append(buf, v...)
		case string:
			buf = append(buf, v...)
		default:
			return nil, fmt.Errorf("%w: cannot pack %T", ErrMalformed, value)
		}
	}
	return buf, nil
}

// Unpack consumes a tightly packed prefix of data and returns the decoded
// values plus the remaining bytes. Dynamic types (bytes, string, arrays) are
// refused: a raw packed blob is not self-delimiting, and no portal schema
// carries one inside its packed prefix.
func Unpack(types []ethabi.Type, data []byte) ([]interface{}, []byte, error) {
	values := make([]interface{}, 0, len(types))
	rest := data
	for _, t := range types {
		switch t.T {
		case ethabi.AddressTy:
			if len(rest) < common.AddressLength {
				return nil, nil, fmt.Errorf("%w: short buffer for address", ErrMalformed)
			}
			values = append(values, common.BytesToAddress(rest[:common.AddressLength]))
			rest = rest[common.AddressLength:]
		case ethabi.UintTy:
			size := t.Size / 8
			if len(rest) < size {
				return nil, nil, fmt.Errorf("%w: short buffer for uint%d", ErrMalformed, t.Size)
			}
			values = append(values, new(uint256.Int).SetBytes(rest[:size]))
			rest = rest[size:]
		case ethabi.BoolTy:
			if len(rest) < 1 {
				return nil, nil, fmt.Errorf("%w: short buffer for bool", ErrMalformed)
			}
			values = append(values, rest[0] != 0)
			rest = rest[1:]
		case ethabi.FixedBytesTy:
			if len(rest) < t.Size {
				return nil, nil, fmt.Errorf("%w: short buffer for bytes%d", ErrMalformed, t.Size)
			}
			values = append(values, append([]byte(nil), rest[:t.Size]...))
			rest = rest[t.Size:]
		default:
			return nil, nil, fmt.Errorf("%w: type %s is not self-delimiting when packed", ErrMalformed, t.String())
		}
	}
	return values, rest, nil
}

// FunctionCall encodes a call to the named function of a JSON ABI fragment:
// the first four bytes of keccak256 over the canonical signature, followed by
// the ABI-encoded arguments. The selector is derived from the signature at
// call time; no selector table is kept.
func FunctionCall(abiJSON, name string, args ...interface{}) ([]byte, error) {
	parsed, err := ethabi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := parsed.Methods[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	data, err := parsed.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

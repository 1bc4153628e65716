package entities

import "github.com/ethereum/go-ethereum/common"

// OutputKind tags the artifact a cycle emits to the host.
type OutputKind int

const (
	OutputNotice OutputKind = iota
	OutputReport
	OutputVoucher
)

func (k OutputKind) String() string {
	switch k {
	case OutputNotice:
		return "notice"
	case OutputReport:
		return "report"
	case OutputVoucher:
		return "voucher"
	}
	return "unknown"
}

// Output is one buffered artifact. Destination is only meaningful for
// vouchers. Index is the per-kind sequence number within the cycle and must
// match the index the host assigns when the output is flushed.
type Output struct {
	Kind        OutputKind
	Destination common.Address
	Payload     []byte
	Index       int
}

package entities

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// FinishStatus resolves a request cycle. Accept commits the buffered outputs
// and the staged ledger delta; Reject discards both.
type FinishStatus int

const (
	Accept FinishStatus = iota
	Reject
)

func (s FinishStatus) String() string {
	if s == Reject {
		return "reject"
	}
	return "accept"
}

// Metadata describes one Advance input. It is immutable for the duration of
// the application callback.
type Metadata struct {
	MsgSender      common.Address `json:"msg_sender"`
	BlockNumber    uint64         `json:"block_number"`
	BlockTimestamp uint64         `json:"block_timestamp"`
	InputIndex     uint64         `json:"input_index"`
	EpochIndex     uint64         `json:"epoch_index"`
	PrevRandao     *uint256.Int   `json:"prev_randao,omitempty"`
}

const (
	RequestAdvance = "advance_state"
	RequestInspect = "inspect_state"
)

type FinishRequest struct {
	Status string `json:"status"`
}

type FinishResponse struct {
	RequestType string          `json:"request_type"`
	Data        json.RawMessage `json:"data"`
}

type AdvanceData struct {
	Metadata Metadata      `json:"metadata"`
	Payload  hexutil.Bytes `json:"payload"`
}

type InspectData struct {
	Payload hexutil.Bytes `json:"payload"`
}

type NoticeRequest struct {
	Payload hexutil.Bytes `json:"payload"`
}

type ReportRequest struct {
	Payload hexutil.Bytes `json:"payload"`
}

type VoucherRequest struct {
	Destination common.Address `json:"destination"`
	Payload     hexutil.Bytes  `json:"payload"`
}

type IndexResponse struct {
	Index int `json:"index"`
}

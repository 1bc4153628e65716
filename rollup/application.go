// Package rollup drives a dapp against the host rollup HTTP protocol: it
// polls finish for inputs, classifies portal deposits, runs the application
// callback with a per-cycle Environment, and flushes the buffered outputs.
package rollup

import (
	"errors"

	"github.com/crabrolls/crabrolls/entities"
)

var (
	// ErrReadOnlyContext is returned when a callback tries to mutate the
	// ledger, or emit a notice or voucher, during an inspect cycle.
	ErrReadOnlyContext = errors.New("rollup: mutation inside inspect context")
	// ErrReentrantEnvironment is returned when an Environment handle is used
	// after its callback returned.
	ErrReentrantEnvironment = errors.New("rollup: environment used after callback returned")
)

// Application is the dapp business logic. Advance receives state-changing
// inputs, the optional typed deposit when the input came through a portal,
// and the user payload tail; Inspect answers read-only queries. The returned
// status decides whether the cycle's outputs and ledger delta commit.
//
// A returned error, or a panic, is converted to Reject with one synthetic
// report carrying the error text.
type Application interface {
	Advance(env Environment, metadata entities.Metadata, payload []byte, deposit *entities.Deposit) (entities.FinishStatus, error)
	Inspect(env Environment, payload []byte) (entities.FinishStatus, error)
}

package rollup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crabrolls/crabrolls/addressbook"
	"github.com/crabrolls/crabrolls/entities"
)

// DefaultRollupURL is used when ROLLUP_HTTP_SERVER_URL is unset.
const DefaultRollupURL = "http://127.0.0.1:5004"

// RunOptions is the construct-time configuration of a Supervisor.
type RunOptions struct {
	RollupURL    string
	PortalConfig entities.PortalConfig
	Network      addressbook.Network
	// PollInterval bounds the backoff when the host has no input ready.
	PollInterval time.Duration
}

// DefaultRunOptions reads the rollup URL from ROLLUP_HTTP_SERVER_URL and
// falls back to the local devnet defaults.
func DefaultRunOptions() RunOptions {
	url := os.Getenv("ROLLUP_HTTP_SERVER_URL")
	if url == "" {
		url = DefaultRollupURL
	}
	return RunOptions{
		RollupURL:    url,
		PortalConfig: entities.DefaultPortalConfig(),
		Network:      addressbook.Local,
		PollInterval: time.Millisecond * 500,
	}
}

type supervisorState int

const (
	stateIdle supervisorState = iota
	stateFinishing
	stateHandling
	stateFlushing
)

// Supervisor drives the poll-finish loop against the host runtime: it
// reports the previous cycle's status, fetches the next input, hands it to
// the machine and flushes whatever outputs the cycle committed. One
// Supervisor owns one machine; two in one process are fully independent.
type Supervisor struct {
	client  *Client
	machine *machine
	options RunOptions
	quit    chan bool
	state   supervisorState
	log     *logrus.Entry
}

func NewSupervisor(options RunOptions) *Supervisor {
	log := logrus.WithField("component", "supervisor")
	return &Supervisor{
		client:  NewClient(options.RollupURL),
		machine: newMachine(addressbook.ForNetwork(options.Network), options.PortalConfig, log),
		options: options,
		quit:    make(chan bool, 1),
		log:     log,
	}
}

// GetQuitChan exposes the channel that stops the loop before its next cycle.
func (s *Supervisor) GetQuitChan() chan bool {
	return s.quit
}

// Run executes the supervisor loop until the quit channel fires or a
// protocol failure occurs. Protocol failures are fatal: the caller is
// expected to exit non-zero and let the host restart the machine.
func (s *Supervisor) Run(app Application) error {
	s.log.Infof("listening for inputs on %s", s.options.RollupURL)

	status := entities.Accept
	for {
		select {
		case <-s.quit:
			s.log.Info("supervisor stopped")
			return nil
		default:
		}

		s.state = stateFinishing
		finish, err := s.client.Finish(status)
		if err != nil {
			return fmt.Errorf("finish: %w", err)
		}
		if finish == nil {
			s.state = stateIdle
			time.Sleep(s.options.PollInterval)
			continue
		}

		s.state = stateHandling
		result, err := s.handle(app, finish)
		if err != nil {
			return err
		}

		s.state = stateFlushing
		if err := s.flush(result.outputs); err != nil {
			return err
		}

		status = result.status
		s.state = stateIdle
		s.log.WithField("status", status.String()).Debug("cycle resolved")
	}
}

func (s *Supervisor) handle(app Application, finish *entities.FinishResponse) (cycleResult, error) {
	switch finish.RequestType {
	case entities.RequestAdvance:
		var data entities.AdvanceData
		if err := json.Unmarshal(finish.Data, &data); err != nil {
			return cycleResult{}, fmt.Errorf("rollup: malformed advance data: %w", err)
		}
		s.log.WithFields(logrus.Fields{
			"sender": data.Metadata.MsgSender.Hex(),
			"index":  data.Metadata.InputIndex,
		}).Debug("advance input")
		return s.machine.advance(app, data.Metadata, data.Payload), nil
	case entities.RequestInspect:
		var data entities.InspectData
		if err := json.Unmarshal(finish.Data, &data); err != nil {
			return cycleResult{}, fmt.Errorf("rollup: malformed inspect data: %w", err)
		}
		s.log.Debug("inspect input")
		return s.machine.inspect(app, data.Payload), nil
	default:
		return cycleResult{}, fmt.Errorf("rollup: unknown request type %q", finish.RequestType)
	}
}

// flush emits the committed outputs in insertion order and checks the host
// assigns the same per-kind indices the environment handed out.
func (s *Supervisor) flush(outputs []entities.Output) error {
	for _, output := range outputs {
		var index int
		var err error
		switch output.Kind {
		case entities.OutputNotice:
			index, err = s.client.AddNotice(output.Payload)
		case entities.OutputReport:
			index, err = s.client.AddReport(output.Payload)
		case entities.OutputVoucher:
			index, err = s.client.AddVoucher(output.Destination, output.Payload)
		}
		if err != nil {
			return fmt.Errorf("flush %s: %w", output.Kind, err)
		}
		if index != output.Index {
			return fmt.Errorf("rollup: host assigned index %d to %s %d", index, output.Kind, output.Index)
		}
	}
	return nil
}

// Run is the package-level entry point: build a Supervisor and loop.
func Run(app Application, options RunOptions) error {
	return NewSupervisor(options).Run(app)
}

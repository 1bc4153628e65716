package entities

// PortalConfigKind selects how the supervisor treats inputs coming from a
// recognized portal address.
type PortalConfigKind int

const (
	// PortalHandle mutates the ledger and, when Advance is set, forwards the
	// deposit and the user payload tail to the application.
	PortalHandle PortalConfigKind = iota
	// PortalIgnore skips the ledger mutation and hands the application the
	// raw payload with no deposit.
	PortalIgnore
	// PortalDispense skips both the ledger mutation and the application.
	PortalDispense
)

// PortalConfig is the tagged portal-handling mode. Advance is only read when
// Kind is PortalHandle.
type PortalConfig struct {
	Kind    PortalConfigKind
	Advance bool
}

// DefaultPortalConfig handles deposits and forwards them to the application.
func DefaultPortalConfig() PortalConfig {
	return PortalConfig{Kind: PortalHandle, Advance: true}
}

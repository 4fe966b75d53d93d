package audit

// EventType is a closed taxonomy tag. Only types listed here are accepted
// by the append engine; free-form types would make downstream alerting and
// schema validation meaningless.
type EventType string

const (
	// Authentication
	EventAuthLogin  EventType = "auth.login"
	EventAuthLogout EventType = "auth.logout"
	EventAuthDenied EventType = "auth.denied"

	// Data lifecycle
	EventDataAccess EventType = "data.access"
	EventDataExport EventType = "data.export"
	EventDataDelete EventType = "data.delete"

	// Instrument operations
	EventRunStart    EventType = "instrument.run.start"
	EventRunComplete EventType = "instrument.run.complete"
	EventRunAborted  EventType = "instrument.run.aborted"

	// Integrations
	EventIntegrationSync EventType = "integration.sync"

	// Configuration
	EventConfigChange EventType = "config.change"

	// Ledger self-auditing
	EventAuditVerify EventType = "audit.verify"
	EventAuditExport EventType = "audit.export"

	// Security
	EventSecurityAlert EventType = "security.alert"
)

var allEventTypes = map[EventType]struct{}{
	EventAuthLogin:       {},
	EventAuthLogout:      {},
	EventAuthDenied:      {},
	EventDataAccess:      {},
	EventDataExport:      {},
	EventDataDelete:      {},
	EventRunStart:        {},
	EventRunComplete:     {},
	EventRunAborted:      {},
	EventIntegrationSync: {},
	EventConfigChange:    {},
	EventAuditVerify:     {},
	EventAuditExport:     {},
	EventSecurityAlert:   {},
}

// Known reports whether t is part of the closed taxonomy.
func (t EventType) Known() bool {
	_, ok := allEventTypes[t]
	return ok
}

// EventTypes returns the full taxonomy.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(allEventTypes))
	for t := range allEventTypes {
		types = append(types, t)
	}
	return types
}

package log

import (
	"sort"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldTransaction = "transaction_id"
	FieldBorrower    = "borrower"
	FieldLender      = "lender"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldGroup       = "group"
	FieldMessageID   = "message_id"
	FieldEventType   = "event_type"
	FieldSheet       = "sheet"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentCLI     = "cli"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpBorrow      = "borrow"
	OpRepay       = "repay"
	OpPurchase    = "purchase"
	OpCashBack    = "cashback"
	OpBalance     = "balance"
	OpGroup       = "group"
	OpSecretSanta = "secret_santa"
	OpWriteOff    = "write_off"
	OpMirror      = "mirror"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields describing a ledger transaction
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	if t.ID != 0 {
		f[FieldTransaction] = t.ID
	}
	f[FieldBorrower] = t.Borrower.Name
	f[FieldLender] = t.Lender.Name
	f[FieldAmount] = t.Amount.String()
	f[FieldDate] = t.Date.String()
	return f
}

// WithGroup adds group field
func (f LogFields) WithGroup(name string) LogFields {
	f[FieldGroup] = name
	return f
}

// WithEvent adds message fields
func (f LogFields) WithEvent(messageID, eventType string) LogFields {
	f[FieldMessageID] = messageID
	f[FieldEventType] = eventType
	return f
}

// ToSlice converts LogFields to a slice for slog, ordered by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}

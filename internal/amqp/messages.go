package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// EventType names the ledger mutation a message announces.
type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventWriteOff            EventType = "ledger.write_off"
	EventGiftsAssigned       EventType = "gifts.assigned"
)

var ErrMalformedEvent = errors.New("malformed ledger event")

// LedgerEvent carries a complete copy of the mutation, so consumers never
// need access to the store that produced it. Exactly one payload is set,
// matching Type.
type LedgerEvent struct {
	MessageID   string              `json:"message_id"`
	Type        EventType           `json:"type"`
	Timestamp   time.Time           `json:"timestamp"`
	Transaction *TransactionPayload `json:"transaction,omitempty"`
	WriteOff    *WriteOffPayload    `json:"write_off,omitempty"`
	Gifts       *GiftsPayload       `json:"gifts,omitempty"`
}

type TransactionPayload struct {
	ID       int64  `json:"id"`
	Borrower string `json:"borrower"`
	Lender   string `json:"lender"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
}

type WriteOffPayload struct {
	Through string `json:"through"`
	Deleted int64  `json:"deleted"`
}

type GiftsPayload struct {
	Group string     `json:"group"`
	Pairs []GiftPair `json:"pairs"`
}

type GiftPair struct {
	Giver    string `json:"giver"`
	Receiver string `json:"receiver"`
}

func newEvent(typ EventType) *LedgerEvent {
	return &LedgerEvent{
		MessageID: uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now(),
	}
}

// NewTransactionRecorded creates the event for a saved transaction
func NewTransactionRecorded(t core.Transaction) *LedgerEvent {
	e := newEvent(EventTransactionRecorded)
	e.Transaction = &TransactionPayload{
		ID:       t.ID,
		Borrower: t.Borrower.Name,
		Lender:   t.Lender.Name,
		Amount:   t.Amount.String(),
		Date:     t.Date.String(),
	}
	return e
}

// NewWriteOff creates the event for a write-off through the given date
func NewWriteOff(through core.Date, deleted int64) *LedgerEvent {
	e := newEvent(EventWriteOff)
	e.WriteOff = &WriteOffPayload{Through: through.String(), Deleted: deleted}
	return e
}

// NewGiftsAssigned creates the event for a secret santa draw
func NewGiftsAssigned(group string, gifts []core.Gift) *LedgerEvent {
	e := newEvent(EventGiftsAssigned)
	pairs := make([]GiftPair, len(gifts))
	for i, g := range gifts {
		pairs[i] = GiftPair{Giver: g.Giver.Name, Receiver: g.Receiver.Name}
	}
	e.Gifts = &GiftsPayload{Group: group, Pairs: pairs}
	return e
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates a message
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks that the payload matching Type is present.
func (e *LedgerEvent) Validate() error {
	var ok bool
	switch e.Type {
	case EventTransactionRecorded:
		ok = e.Transaction != nil
	case EventWriteOff:
		ok = e.WriteOff != nil
	case EventGiftsAssigned:
		ok = e.Gifts != nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, e.Type)
	}
	if !ok {
		return fmt.Errorf("%w: %s without payload", ErrMalformedEvent, e.Type)
	}
	return nil
}

// ToTransaction rebuilds the recorded transaction. User IDs are not carried.
func (p *TransactionPayload) ToTransaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(p.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: amount %q", ErrMalformedEvent, p.Amount)
	}
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: date %q", ErrMalformedEvent, p.Date)
	}
	return core.Transaction{
		ID:       p.ID,
		Borrower: core.User{Name: p.Borrower},
		Lender:   core.User{Name: p.Lender},
		Amount:   amount,
		Date:     date,
	}, nil
}

// ThroughDate parses the write-off date.
func (p *WriteOffPayload) ThroughDate() (core.Date, error) {
	d, err := core.ParseDate(p.Through)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: date %q", ErrMalformedEvent, p.Through)
	}
	return d, nil
}

func (p *GiftsPayload) ToGifts() []core.Gift {
	gifts := make([]core.Gift, len(p.Pairs))
	for i, pair := range p.Pairs {
		gifts[i] = core.Gift{Giver: core.User{Name: pair.Giver}, Receiver: core.User{Name: pair.Receiver}}
	}
	return gifts
}

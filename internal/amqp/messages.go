package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// EventKind names a transaction lifecycle change.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
	EventPurged  EventKind = "purged"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted, EventPurged:
		return true
	}
	return false
}

// TransactionEvent is published after a successful mutation. Created and updated
// events carry a snapshot of the record; deleted carries only the id; purged
// covers every record of the user.
type TransactionEvent struct {
	Kind          EventKind         `json:"kind"`
	UserID        string            `json:"userId"`
	TransactionID string            `json:"transactionId,omitempty"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent builds an event for t. For EventPurged pass nil.
func NewTransactionEvent(kind EventKind, userID string, t *core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		Kind:      kind,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if t != nil {
		ev.TransactionID = t.ID
		if kind == EventCreated || kind == EventUpdated {
			snapshot := *t
			ev.Transaction = &snapshot
		}
	}
	return ev
}

func (m *TransactionEvent) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	if m.UserID == "" {
		return errors.New("event without user id")
	}
	switch m.Kind {
	case EventCreated, EventUpdated:
		if m.Transaction == nil || m.TransactionID == "" {
			return fmt.Errorf("%s event without transaction snapshot", m.Kind)
		}
	case EventDeleted:
		if m.TransactionID == "" {
			return errors.New("deleted event without transaction id")
		}
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type Collection string

const (
	CollectionHabits       Collection = "habits"
	CollectionCompletions  Collection = "completions"
	CollectionAchievements Collection = "achievements"
)

type OpStatus string

const (
	OpStatusPending OpStatus = "pending"
	OpStatusDead    OpStatus = "dead"
)

// PendingOperation is a mutation made while offline, waiting to be replayed
// against the remote gateway.
type PendingOperation struct {
	ID         string          `json:"id"`
	Kind       OpKind          `json:"kind"`
	Collection Collection      `json:"collection"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	Status     OpStatus        `json:"status"`
}

// DeletePayload identifies the record removed by a delete operation.
type DeletePayload struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// NewPendingOperation builds a pending operation with a fresh id, encoding
// payload as JSON.
func NewPendingOperation(kind OpKind, collection Collection, payload any) (PendingOperation, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return PendingOperation{}, fmt.Errorf("failed to encode %s %s payload: %w", kind, collection, err)
	}
	return PendingOperation{
		ID:         NewID(),
		Kind:       kind,
		Collection: collection,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
		Status:     OpStatusPending,
	}, nil
}

// Decode unmarshals the payload into v.
func (op PendingOperation) Decode(v any) error {
	if err := json.Unmarshal(op.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload of operation %s: %w", op.ID, err)
	}
	return nil
}

// String returns a short description for logs and CLI output.
func (op PendingOperation) String() string {
	return fmt.Sprintf("%s %s", op.Kind, op.Collection)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntityKind string

const (
	KindModel  EntityKind = "retention_model"
	KindPolicy EntityKind = "retention_policy"
)

type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent рассылается подписчикам после каждой зафиксированной мутации.
type ChangeEvent struct {
	EventID    string     `json:"event_id"`
	Kind       EntityKind `json:"kind"`
	Op         ChangeOp   `json:"op"`
	ID         ID         `json:"id"`
	PreviousID *ID        `json:"previous_id,omitempty"` // для update: ID замененной строки
	Actor      string     `json:"actor"`
	At         time.Time  `json:"at"`
}

func NewChangeEvent(kind EntityKind, op ChangeOp, id ID, previous *ID, actor string, at time.Time) ChangeEvent {
	return ChangeEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		Op:         op,
		ID:         id,
		PreviousID: previous,
		Actor:      actor,
		At:         at,
	}
}

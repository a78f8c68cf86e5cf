package model

import "time"

// Action names a mutation applied to a stored entity.
type Action string

// Mutation actions.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// ChangeEvent describes one successful mutation.
type ChangeEvent struct {
	Table  string    `json:"table"`
	Action Action    `json:"action"`
	Key    any       `json:"key"`
	At     time.Time `json:"at"`
}

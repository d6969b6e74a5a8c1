package types

import "github.com/typeloop/typerace-backend/internal/race"

// ClientMessage is everything a racing client can send after joining.
type ClientMessage struct {
	Type     string  `json:"type"` // "start" | "progress" | "finish"
	Progress float64 `json:"progress,omitempty"`
	Position int     `json:"position,omitempty"`
	Errors   int     `json:"errors,omitempty"`
}

type ServerMessage struct {
	Type  string         `json:"type"` // "state" | "error"
	State *race.Snapshot `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

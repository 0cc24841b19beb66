// internal/models/mode.go
package models

import "fmt"

// Mode selects which matchmaking queue a connection waits in and which relay
// rules apply to the resulting room.
type Mode string

const (
	ModeText  Mode = "text"
	ModeVideo Mode = "video"
	ModeGame  Mode = "game"
)

// Modes lists every mode in a stable order, e.g. to build one queue per mode.
var Modes = []Mode{ModeVideo, ModeGame, ModeText}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeText, ModeVideo, ModeGame:
		return true
	}
	return false
}

// ParseMode converts a client supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

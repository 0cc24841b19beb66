// internal/game/state.go
package game

// State is the authoritative tic-tac-toe state held by a game room. It is not
// safe for concurrent use; the owning room serializes access.
type State struct {
	Board  Board `json:"board"`
	Turn   Mark  `json:"turn"`
	Winner Mark  `json:"winner,omitempty"`
	Draw   bool  `json:"draw,omitempty"`
	Moves  int   `json:"moves"`
	Round  int   `json:"round"`
}

// NewState returns an empty board with X to move.
func NewState() *State {
	return &State{Turn: X, Round: 1}
}

// Finished reports whether the current round has a winner or ended in a draw.
func (s *State) Finished() bool {
	return s.Winner != Empty || s.Draw
}

// Apply places mark at cell. Exactly one move is accepted per turn: the move
// must come from the player whose turn it is, target an empty cell, and arrive
// before the round has a result. On error the state is left untouched.
func (s *State) Apply(mark Mark, cell int) error {
	if !mark.Valid() {
		return ErrInvalidMark
	}
	if cell < 0 || cell >= CellCount {
		return ErrInvalidCell
	}
	if s.Finished() {
		return ErrGameOver
	}
	if mark != s.Turn {
		return ErrNotYourTurn
	}
	if s.Board[cell] != Empty {
		return ErrCellTaken
	}

	s.Board[cell] = mark
	s.Moves++

	if w := s.Board.winner(); w != Empty {
		s.Winner = w
		s.Turn = Empty
		return nil
	}
	if s.Board.full() {
		s.Draw = true
		s.Turn = Empty
		return nil
	}
	s.Turn = mark.Opponent()
	return nil
}

// Reset clears the board for a new round once the current one has finished.
// X always opens.
func (s *State) Reset() error {
	if !s.Finished() {
		return ErrNotFinished
	}
	round := s.Round + 1
	*s = State{Turn: X, Round: round}
	return nil
}

// Snapshot returns a copy safe to hand outside the room lock.
func (s *State) Snapshot() State {
	return *s
}

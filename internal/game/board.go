// internal/game/board.go
package game

import "errors"

// Mark is the content of one cell, or the symbol a player plays with.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// CellCount is the number of cells on the 3x3 board.
const CellCount = 9

// Board is the 3x3 grid in row-major order.
type Board [CellCount]Mark

var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrCellTaken   = errors.New("cell already occupied")
	ErrGameOver    = errors.New("game already finished")
	ErrInvalidCell = errors.New("cell index out of range")
	ErrInvalidMark = errors.New("symbol must be X or O")
	ErrNotFinished = errors.New("game still in progress")
)

// lines are the eight winning triples.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Opponent returns the other playing mark. Empty stays Empty.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	}
	return Empty
}

// Valid reports whether m is a playable symbol.
func (m Mark) Valid() bool {
	return m == X || m == O
}

// winner returns the mark holding a full line, if any.
func (b Board) winner() Mark {
	for _, l := range lines {
		if b[l[0]] != Empty && b[l[0]] == b[l[1]] && b[l[1]] == b[l[2]] {
			return b[l[0]]
		}
	}
	return Empty
}

func (b Board) full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Filled counts the occupied cells.
func (b Board) Filled() int {
	n := 0
	for _, c := range b {
		if c != Empty {
			n++
		}
	}
	return n
}

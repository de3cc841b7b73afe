package main

// symbol marks a board cell. The zero value is an empty cell.
type symbol string

const (
	symbolNone symbol = ""
	symbolX    symbol = "X"
	symbolO    symbol = "O"
)

func (s symbol) other() symbol {
	if s == symbolX {
		return symbolO
	}
	return symbolX
}

// board is the 9-cell grid, index 0..8, row-major.
type board [9]symbol

// The 8 winning triples: 3 rows, 3 columns, 2 diagonals.
var winningTriples = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// hasWin reports whether any winning triple is fully occupied by s.
func (b board) hasWin(s symbol) bool {
	for _, t := range winningTriples {
		if b[t[0]] == s && b[t[1]] == s && b[t[2]] == s {
			return true
		}
	}
	return false
}

// isFull reports whether all nine cells are occupied. Callers must check
// hasWin first: a final move can complete a line and fill the board at once.
func (b board) isFull() bool {
	for _, c := range b {
		if c == symbolNone {
			return false
		}
	}
	return true
}

package main

import (
	"math"
	"math/rand"
)

// Difficulty levels for the stateless move picker.
const (
	botEasy   = "easy"
	botMedium = "medium"
	botHard   = "hard"
)

// bestMove picks a cell for s on a caller-supplied board snapshot. It holds
// no state and never touches a live room; safe for concurrent callers.
// Returns -1 when no cell is open.
func bestMove(b board, s symbol, difficulty string) int {
	open := openCells(b)
	if len(open) == 0 {
		return -1
	}

	switch difficulty {
	case botEasy:
		return open[rand.Intn(len(open))]
	case botMedium:
		// Half the time play like a beginner.
		if rand.Intn(2) == 0 {
			return open[rand.Intn(len(open))]
		}
	}

	if c := immediateWin(b, s); c >= 0 {
		return c
	}
	if c := immediateWin(b, s.other()); c >= 0 {
		return c
	}

	bestScore := math.MinInt32
	best := open[0]
	for _, c := range open {
		b[c] = s
		score := minimax(b, s, false, 1)
		b[c] = symbolNone
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

func openCells(b board) []int {
	var out []int
	for i, c := range b {
		if c == symbolNone {
			out = append(out, i)
		}
	}
	return out
}

// immediateWin returns a cell that wins for s in one move, or -1.
func immediateWin(b board, s symbol) int {
	for _, c := range openCells(b) {
		b[c] = s
		won := b.hasWin(s)
		b[c] = symbolNone
		if won {
			return c
		}
	}
	return -1
}

// minimax scores the position for me, preferring faster wins and slower
// losses. The tree is tiny, so no pruning or depth cap is needed.
func minimax(b board, me symbol, maximizing bool, depth int) int {
	if b.hasWin(me) {
		return 10 - depth
	}
	if b.hasWin(me.other()) {
		return depth - 10
	}
	if b.isFull() {
		return 0
	}

	if maximizing {
		best := math.MinInt32
		for _, c := range openCells(b) {
			b[c] = me
			if score := minimax(b, me, false, depth+1); score > best {
				best = score
			}
			b[c] = symbolNone
		}
		return best
	}

	best := math.MaxInt32
	opp := me.other()
	for _, c := range openCells(b) {
		b[c] = opp
		if score := minimax(b, me, true, depth+1); score < best {
			best = score
		}
		b[c] = symbolNone
	}
	return best
}

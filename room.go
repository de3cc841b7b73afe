package main

import "time"

type gamePhase int

const (
	phaseWaiting gamePhase = iota // one slot filled, creator waiting
	phaseActive
	phaseEnded
)

// participant is one player slot. userID is the durable reconnection key;
// the client pointer is volatile and rebound on reconnect.
type participant struct {
	client    *client
	userID    string
	name      string
	connected bool
}

// room is one game's authoritative state. It is only ever touched by the
// coordinator goroutine, so it carries no locking of its own.
type room struct {
	id         string
	variant    string
	players    map[symbol]*participant
	spectators map[*client]struct{}

	grid  board
	turn  symbol
	phase gamePhase

	replayVotes int
	votedReplay map[symbol]bool

	// graceDeadline is zero unless at least one participant is
	// disconnected. Once armed it is never extended; a second disconnect
	// rides out the original deadline.
	graceDeadline time.Time
}

func newRoom(id, variant string) *room {
	return &room{
		id:          id,
		variant:     variant,
		players:     make(map[symbol]*participant, 2),
		spectators:  make(map[*client]struct{}),
		turn:        symbolX,
		phase:       phaseWaiting,
		votedReplay: make(map[symbol]bool, 2),
	}
}

func (r *room) seat(s symbol, c *client, name string) {
	r.players[s] = &participant{
		client:    c,
		userID:    c.userID,
		name:      name,
		connected: true,
	}
}

// seatForUser finds the slot bound to a durable user id. An empty id never
// matches, so anonymous connections cannot collide into each other's seats.
func (r *room) seatForUser(userID string) (symbol, bool) {
	if userID == "" {
		return symbolNone, false
	}
	for s, p := range r.players {
		if p != nil && p.userID == userID {
			return s, true
		}
	}
	return symbolNone, false
}

func (r *room) seatForClient(c *client) (symbol, bool) {
	for s, p := range r.players {
		if p != nil && p.client == c {
			return s, true
		}
	}
	return symbolNone, false
}

// opponentName falls back to a placeholder while the other slot is empty.
func (r *room) opponentName(s symbol) string {
	if p := r.players[s.other()]; p != nil {
		return p.name
	}
	return "Waiting..."
}

func (r *room) bothConnected() bool {
	px, po := r.players[symbolX], r.players[symbolO]
	return px != nil && px.connected && po != nil && po.connected
}

type moveOutcome int

const (
	moveIgnored moveOutcome = iota
	moveApplied
	moveWon
	moveDrawn
)

// applyMove validates and applies one move. Illegal moves (wrong phase,
// wrong turn, occupied or out-of-range cell) leave the room untouched and
// are never surfaced to the mover; that silence is part of the protocol.
func (r *room) applyMove(s symbol, cell int) moveOutcome {
	if r.phase != phaseActive || r.turn != s || cell < 0 || cell > 8 || r.grid[cell] != symbolNone {
		return moveIgnored
	}

	r.grid[cell] = s
	r.turn = s.other()

	// Win before draw: a final move can do both.
	if r.grid.hasWin(s) {
		r.phase = phaseEnded
		return moveWon
	}
	if r.grid.isFull() {
		r.phase = phaseEnded
		return moveDrawn
	}
	return moveApplied
}

type replayOutcome int

const (
	replayIgnored replayOutcome = iota
	replayPending
	replayRestarted
)

// voteReplay counts one rematch vote per participant per ended game. The
// second vote resets the board and restarts with the same symbol
// assignment; symbols are never reshuffled.
func (r *room) voteReplay(s symbol) replayOutcome {
	if r.phase != phaseEnded || r.votedReplay[s] {
		return replayIgnored
	}

	r.votedReplay[s] = true
	r.replayVotes++
	if r.replayVotes < 2 {
		return replayPending
	}

	r.grid = board{}
	r.turn = symbolX
	r.phase = phaseActive
	r.replayVotes = 0
	r.votedReplay = make(map[symbol]bool, 2)
	return replayRestarted
}

// markDisconnected flags the slot and arms the grace deadline when none is
// pending. Reports whether this call armed it. Board and turn stay frozen;
// disconnecting alone never forfeits.
func (r *room) markDisconnected(s symbol, deadline time.Time) bool {
	p := r.players[s]
	if p == nil {
		return false
	}
	p.connected = false
	p.client = nil

	if !r.graceDeadline.IsZero() {
		return false
	}
	r.graceDeadline = deadline
	return true
}

// rebind points an existing slot at a fresh connection and reports whether
// both slots are now connected, in which case the grace deadline is
// cleared.
func (r *room) rebind(s symbol, c *client) bool {
	p := r.players[s]
	p.client = c
	p.userID = c.userID
	p.connected = true

	if !r.bothConnected() {
		return false
	}
	r.graceDeadline = time.Time{}
	return true
}

// spectatorView builds the snapshot sent to joining spectators.
func (r *room) spectatorView() SpectatorStateMessage {
	players := make(map[symbol]SpectatorPlayer, len(r.players))
	for s, p := range r.players {
		if p == nil {
			continue
		}
		players[s] = SpectatorPlayer{Name: p.name, Connected: p.connected}
	}

	return SpectatorStateMessage{
		Type:    "spectatorGameState",
		RoomID:  r.id,
		Players: players,
		Board:   r.grid,
		Turn:    r.turn,
		Variant: r.variant,
	}
}

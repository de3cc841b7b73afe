package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const leaderboardTopN = 10

// intent is one inbound client message awaiting dispatch.
type intent struct {
	from *client
	msg  ClientMessage
}

type leaderboardPush struct {
	to      *client // nil = broadcast to every connection
	leaders map[string]int64
}

// coordinator is the single owner of all session state: the room table, the
// matchmaking slot, and the connection set. Every mutation happens on its
// run goroutine, which serializes intents; that exclusivity is what makes
// per-room locking unnecessary.
type coordinator struct {
	graceWindow time.Duration
	logger      zerolog.Logger
	store       leaderboardStore
	clk         clock

	registry *roomRegistry
	queue    *matchQueue

	clients      map[*client]struct{}
	roomByClient map[*client]*room

	register    chan *client
	unregister  chan *client
	intents     chan intent
	ticks       <-chan time.Time
	leaderboard chan leaderboardPush
}

func newCoordinator(graceWindow time.Duration, store leaderboardStore, clk clock, ticks <-chan time.Time, logger zerolog.Logger) *coordinator {
	return &coordinator{
		graceWindow:  graceWindow,
		logger:       logger,
		store:        store,
		clk:          clk,
		registry:     newRoomRegistry(),
		queue:        newMatchQueue(),
		clients:      make(map[*client]struct{}),
		roomByClient: make(map[*client]*room),
		register:     make(chan *client),
		unregister:   make(chan *client),
		intents:      make(chan intent, 256),
		ticks:        ticks,
		leaderboard:  make(chan leaderboardPush, 16),
	}
}

func (co *coordinator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-co.register:
			co.handleRegister(c)

		case c := <-co.unregister:
			co.handleUnregister(c)

		case in := <-co.intents:
			co.dispatch(in)

		case now := <-co.ticks:
			co.reapExpired(now)

		case push := <-co.leaderboard:
			co.handleLeaderboardPush(push)
		}
	}
}

// dispatch routes one intent to its handler. A panic in one room's handling
// is contained here so it cannot take down unrelated rooms.
func (co *coordinator) dispatch(in intent) {
	defer func() {
		if rec := recover(); rec != nil {
			co.logger.Error().
				Interface("panic", rec).
				Str("intent", in.msg.Type).
				Str("conn", in.from.id).
				Msg("intent handler panicked")
		}
	}()

	switch in.msg.Type {
	case "registerUser":
		in.from.userID = in.msg.UserID
	case "createRoom":
		co.handleCreateRoom(in.from, in.msg)
	case "joinRoom":
		co.handleJoinRoom(in.from, in.msg)
	case "findMatch":
		co.handleFindMatch(in.from, in.msg)
	case "joinSpectator":
		co.handleJoinSpectator(in.from, in.msg)
	case "rejoinGame":
		co.handleRejoinGame(in.from, in.msg)
	case "playerMove":
		co.handlePlayerMove(in.from, in.msg)
	case "playAgainRequest":
		co.handlePlayAgain(in.from, in.msg)
	case "chatMessage":
		co.handleChat(in.from, in.msg)
	case "reaction":
		co.handleReaction(in.from, in.msg)
	default:
		// unknown intents are ignored
	}
}

func (co *coordinator) handleRegister(c *client) {
	co.clients[c] = struct{}{}
	go co.pushLeaderboard(c)
}

func (co *coordinator) handleUnregister(c *client) {
	if _, ok := co.clients[c]; !ok {
		return
	}
	delete(co.clients, c)
	defer close(c.send)

	co.queue.dropClient(c)

	r, ok := co.roomByClient[c]
	if !ok {
		return
	}
	delete(co.roomByClient, c)

	s, isPlayer := r.seatForClient(c)
	if !isPlayer {
		delete(r.spectators, c)
		return
	}

	armed := r.markDisconnected(s, co.clk.Now().Add(co.graceWindow))
	co.broadcastRoom(r, SimpleMessage{Type: "opponentDisconnected"})

	if armed {
		co.logger.Debug().Str("room", r.id).Time("deadline", r.graceDeadline).Msg("grace deadline armed")
	}
}

func (co *coordinator) handleCreateRoom(c *client, msg ClientMessage) {
	name := msg.PlayerName
	if name == "" {
		name = "Player X"
	}

	id := msg.RoomID
	if id == "" {
		id = co.registry.newRoomID()
	}

	r, err := co.registry.create(id, msg.Variant)
	if err != nil {
		co.deliver(c, SimpleMessage{Type: "error", Message: err.Error()})
		return
	}

	r.seat(symbolX, c, name)
	co.roomByClient[c] = r

	co.deliver(c, RoomCreatedMessage{Type: "roomCreated", RoomID: id, Symbol: symbolX})
	co.logger.Info().Str("room", id).Str("player", name).Msg("room created")
}

func (co *coordinator) handleJoinRoom(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		co.deliver(c, SimpleMessage{Type: "error", Message: errRoomNotFound.Error()})
		return
	}

	// A returning identity reconnects instead of taking the O slot.
	if s, found := r.seatForUser(c.userID); found {
		co.reconnect(c, r, s)
		return
	}

	if r.players[symbolO] != nil {
		co.deliver(c, SimpleMessage{Type: "error", Message: errRoomFull.Error()})
		return
	}

	name := msg.PlayerName
	if name == "" {
		name = "Player O"
	}

	r.seat(symbolO, c, name)
	r.phase = phaseActive
	r.graceDeadline = time.Time{}
	co.roomByClient[c] = r

	co.sendGameStart(r)
	co.logger.Info().Str("room", r.id).Str("player", name).Msg("player joined")
}

func (co *coordinator) handleFindMatch(c *client, msg ClientMessage) {
	name := msg.PlayerName
	if name == "" {
		name = "Player"
	}

	entry := &waitingEntry{client: c, userID: c.userID, name: name, variant: msg.Variant}
	partner, res := co.queue.offer(entry)

	switch res {
	case matchQueued:
		co.deliver(c, SimpleMessage{Type: "waitingForPlayer"})
	case matchSelf:
		// self-match prevention: the caller stays unmatched and gets no reply
	case matchPaired:
		id := pairRoomID(partner.client, c)
		r, err := co.registry.create(id, partner.variant)
		if err != nil {
			// cannot happen while connection ids are unique
			co.logger.Error().Err(err).Str("room", id).Msg("pair room collision")
			return
		}

		r.seat(symbolX, partner.client, partner.name)
		r.seat(symbolO, c, name)
		r.phase = phaseActive
		co.roomByClient[partner.client] = r
		co.roomByClient[c] = r

		co.sendGameStart(r)
		co.logger.Info().Str("room", id).Str("x", partner.name).Str("o", name).Msg("matched pair")
	}
}

func (co *coordinator) handleJoinSpectator(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		co.deliver(c, SimpleMessage{Type: "error", Message: errRoomNotFound.Error()})
		return
	}

	r.spectators[c] = struct{}{}
	co.roomByClient[c] = r

	co.deliver(c, r.spectatorView())
}

func (co *coordinator) handleRejoinGame(c *client, msg ClientMessage) {
	if r, ok := co.registry.get(msg.RoomID); ok {
		if s, found := r.seatForUser(c.userID); found {
			co.reconnect(c, r, s)
			return
		}
	}
	co.deliver(c, SimpleMessage{Type: "rejoinFailed"})
}

func (co *coordinator) handlePlayerMove(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		return
	}
	s, isPlayer := r.seatForClient(c)
	if !isPlayer {
		return
	}

	outcome := r.applyMove(s, msg.CellIndex)
	if outcome == moveIgnored {
		return
	}

	co.broadcastRoom(r, OpponentMoveMessage{
		Type:      "opponentMove",
		CellIndex: msg.CellIndex,
		Symbol:    s,
		Turn:      r.turn,
	})

	if outcome == moveWon {
		winner := r.players[s].name
		co.logger.Info().Str("room", r.id).Str("winner", winner).Msg("game won")
		go co.recordWin(winner)
	}
}

func (co *coordinator) handlePlayAgain(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		return
	}
	s, isPlayer := r.seatForClient(c)
	if !isPlayer {
		return
	}

	switch r.voteReplay(s) {
	case replayPending:
		co.broadcastRoomExcept(r, c, SimpleMessage{Type: "opponentWantsToPlayAgain"})
	case replayRestarted:
		co.sendGameStart(r)
	}
}

func (co *coordinator) handleChat(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		return
	}
	// Broadcast verbatim; the sender name is not checked against the
	// connection.
	co.broadcastRoom(r, ChatBroadcastMessage{Type: "chatMessage", Sender: msg.Sender, Message: msg.Message})
}

func (co *coordinator) handleReaction(c *client, msg ClientMessage) {
	r, ok := co.registry.get(msg.RoomID)
	if !ok {
		return
	}
	co.broadcastRoom(r, ReactionMessage{Type: "reaction", Sender: c.id, Content: msg.Content})
}

// reapExpired tears down rooms whose grace deadline has passed. Destruction
// is unconditional: a rejoin arriving one tick later fails.
func (co *coordinator) reapExpired(now time.Time) {
	for _, r := range co.registry.expired(now) {
		co.broadcastRoom(r, SimpleMessage{Type: "opponentLeft"})

		for _, p := range r.players {
			if p != nil && p.client != nil {
				delete(co.roomByClient, p.client)
			}
		}
		for spec := range r.spectators {
			delete(co.roomByClient, spec)
		}

		co.registry.remove(r.id)
		co.logger.Info().Str("room", r.id).Msg("room abandoned")
	}
}

// sendGameStart notifies both players of their symbols and turns; used for
// fresh games and mutual replays alike.
func (co *coordinator) sendGameStart(r *room) {
	for s, p := range r.players {
		if p == nil || p.client == nil {
			continue
		}
		co.deliver(p.client, GameStartMessage{
			Type:         "gameStart",
			Symbol:       s,
			RoomID:       r.id,
			MyTurn:       r.turn == s,
			OpponentName: r.opponentName(s),
			Variant:      r.variant,
		})
	}
}

// recordWin runs off the coordinator goroutine: the store call is
// fire-and-forget and its outcome never gates game state. Failures are
// logged and swallowed.
func (co *coordinator) recordWin(winner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := co.store.IncrementWins(ctx, winner); err != nil {
		co.logger.Error().Err(err).Str("winner", winner).Msg("leaderboard increment failed")
		return
	}

	entries, err := co.store.TopN(ctx, leaderboardTopN)
	if err != nil {
		co.logger.Error().Err(err).Msg("leaderboard read failed")
		return
	}

	select {
	case co.leaderboard <- leaderboardPush{leaders: entriesToMap(entries)}:
	default:
	}
}

// pushLeaderboard sends the current standings to one new connection.
func (co *coordinator) pushLeaderboard(c *client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := co.store.TopN(ctx, leaderboardTopN)
	if err != nil {
		co.logger.Error().Err(err).Msg("leaderboard read failed")
		return
	}

	select {
	case co.leaderboard <- leaderboardPush{to: c, leaders: entriesToMap(entries)}:
	default:
	}
}

func (co *coordinator) handleLeaderboardPush(push leaderboardPush) {
	msg := LeaderboardMessage{Type: "leaderboardUpdate", Leaders: push.leaders}
	if push.to != nil {
		co.deliver(push.to, msg)
		return
	}
	for c := range co.clients {
		co.deliver(c, msg)
	}
}

func entriesToMap(entries []leaderboardEntry) map[string]int64 {
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Wins
	}
	return out
}

// deliver queues a message for one connection. Slow consumers lose
// messages rather than stalling the coordinator.
func (co *coordinator) deliver(c *client, msg any) {
	if _, ok := co.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// broadcastRoom fans out to both connected players plus all spectators.
func (co *coordinator) broadcastRoom(r *room, msg any) {
	co.broadcastRoomExcept(r, nil, msg)
}

func (co *coordinator) broadcastRoomExcept(r *room, except *client, msg any) {
	for _, p := range r.players {
		if p == nil || p.client == nil || p.client == except {
			continue
		}
		co.deliver(p.client, msg)
	}
	for spec := range r.spectators {
		if spec == except {
			continue
		}
		co.deliver(spec, msg)
	}
}

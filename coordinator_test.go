package main

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore records wins in memory and is safe for the off-loop recordWin
// goroutine.
type stubStore struct {
	mu   sync.Mutex
	wins []string
}

func (s *stubStore) IncrementWins(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wins = append(s.wins, name)
	return nil
}

func (s *stubStore) TopN(_ context.Context, n int) ([]leaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64)
	for _, w := range s.wins {
		counts[w]++
	}
	out := make([]leaderboardEntry, 0, len(counts))
	for name, wins := range counts {
		out = append(out, leaderboardEntry{Name: name, Wins: wins})
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *stubStore) winners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.wins...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// harness runs a coordinator on a virtual clock with a hand-cranked tick
// channel. Test clients skip the websocket pumps entirely and talk straight
// to the coordinator's channels, which is all the pumps do anyway.
type harness struct {
	co    *coordinator
	store *stubStore
	clk   *fakeClock
	ticks chan time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := &stubStore{}
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ticks := make(chan time.Time)

	co := newCoordinator(30*time.Second, store, clk, ticks, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go co.run(ctx)

	return &harness{co: co, store: store, clk: clk, ticks: ticks}
}

func (h *harness) connect(userID string) *client {
	c := &client{id: uuid.NewString(), send: make(chan any, 64)}
	h.co.register <- c
	h.send(c, ClientMessage{Type: "registerUser", UserID: userID})
	return c
}

func (h *harness) send(c *client, msg ClientMessage) {
	h.co.intents <- intent{from: c, msg: msg}
}

func (h *harness) disconnect(c *client) {
	h.co.unregister <- c
}

func (h *harness) tick() {
	h.ticks <- h.clk.Now()
}

// waitFor drains c.send until a message of type T matching the predicate
// arrives. Everything else, leaderboard pushes included, is skipped.
func waitFor[T any](t *testing.T, c *client, match func(T) bool) T {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %T", *new(T))
			}
			if msg, ok := raw.(T); ok && match(msg) {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func waitForType[T any](t *testing.T, c *client) T {
	t.Helper()
	return waitFor(t, c, func(T) bool { return true })
}

func waitForSimple(t *testing.T, c *client, typ string) SimpleMessage {
	t.Helper()
	return waitFor(t, c, func(m SimpleMessage) bool { return m.Type == typ })
}

// startGame creates a room via A and joins B, returning once both hold
// their gameStart.
func startGame(t *testing.T, h *harness, a, b *client) string {
	t.Helper()

	h.send(a, ClientMessage{Type: "createRoom", PlayerName: "Alice"})
	created := waitForType[RoomCreatedMessage](t, a)

	h.send(b, ClientMessage{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	waitForType[GameStartMessage](t, a)
	waitForType[GameStartMessage](t, b)

	return created.RoomID
}

func TestCreateAndJoinRoom(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")

	h.send(a, ClientMessage{Type: "createRoom", PlayerName: "Alice", Variant: "neon"})
	created := waitForType[RoomCreatedMessage](t, a)
	assert.Equal(t, "roomCreated", created.Type)
	assert.Equal(t, symbolX, created.Symbol)
	assert.Len(t, created.RoomID, 6)

	h.send(b, ClientMessage{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})

	startA := waitForType[GameStartMessage](t, a)
	assert.Equal(t, symbolX, startA.Symbol)
	assert.True(t, startA.MyTurn)
	assert.Equal(t, "Bob", startA.OpponentName)
	assert.Equal(t, "neon", startA.Variant)

	startB := waitForType[GameStartMessage](t, b)
	assert.Equal(t, symbolO, startB.Symbol)
	assert.False(t, startB.MyTurn)
	assert.Equal(t, "Alice", startB.OpponentName)
	assert.Equal(t, created.RoomID, startB.RoomID)
}

func TestCreateRoomDuplicateID(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")

	h.send(a, ClientMessage{Type: "createRoom", RoomID: "DUPES1"})
	waitForType[RoomCreatedMessage](t, a)

	h.send(b, ClientMessage{Type: "createRoom", RoomID: "DUPES1"})
	notice := waitForSimple(t, b, "error")
	assert.Equal(t, "room already exists", notice.Message)
}

func TestJoinRoomErrors(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	c := h.connect("user-c")

	h.send(c, ClientMessage{Type: "joinRoom", RoomID: "NOSUCH"})
	notice := waitForSimple(t, c, "error")
	assert.Equal(t, "room not found", notice.Message)

	roomID := startGame(t, h, a, b)

	h.send(c, ClientMessage{Type: "joinRoom", RoomID: roomID, PlayerName: "Carol"})
	notice = waitForSimple(t, c, "error")
	assert.Equal(t, "room is full", notice.Message)
}

func TestMatchmakingPairsFirstTwo(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")

	h.send(a, ClientMessage{Type: "findMatch", PlayerName: "Alice", Variant: "retro"})
	waitForSimple(t, a, "waitingForPlayer")

	h.send(b, ClientMessage{Type: "findMatch", PlayerName: "Bob"})

	startA := waitForType[GameStartMessage](t, a)
	startB := waitForType[GameStartMessage](t, b)

	// The earlier arrival takes X and moves first.
	assert.Equal(t, symbolX, startA.Symbol)
	assert.True(t, startA.MyTurn)
	assert.Equal(t, symbolO, startB.Symbol)
	assert.False(t, startB.MyTurn)

	// The pair room id is synthesized from the two connection ids.
	assert.Equal(t, startA.RoomID, startB.RoomID)
	assert.Contains(t, startA.RoomID, "#")

	// The waiting player's variant wins.
	assert.Equal(t, "retro", startB.Variant)
}

func TestMatchmakingNeverPairsUserWithSelf(t *testing.T) {
	h := newHarness(t)
	a1 := h.connect("user-a")
	a2 := h.connect("user-a")
	c := h.connect("user-c")

	h.send(a1, ClientMessage{Type: "findMatch", PlayerName: "Alice"})
	waitForSimple(t, a1, "waitingForPlayer")

	// A second tab of the same user is dropped without any reply.
	h.send(a2, ClientMessage{Type: "findMatch", PlayerName: "Alice"})

	// A distinct user still pairs with the original waiter.
	h.send(c, ClientMessage{Type: "findMatch", PlayerName: "Carol"})
	waitForType[GameStartMessage](t, a1)
	waitForType[GameStartMessage](t, c)

	// The second tab saw neither a match nor a waiting notice.
	for {
		select {
		case raw := <-a2.send:
			switch m := raw.(type) {
			case GameStartMessage:
				t.Fatalf("second tab was matched into room %s", m.RoomID)
			case SimpleMessage:
				assert.NotEqual(t, "waitingForPlayer", m.Type)
			}
		default:
			return
		}
	}
}

func TestWinRecordsLeaderboard(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	// X takes the left column across 0, 3, 6.
	script := []struct {
		from *client
		cell int
	}{
		{a, 0}, {b, 1}, {a, 3}, {b, 4}, {a, 6},
	}
	for _, step := range script {
		h.send(step.from, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: step.cell})
		move := waitFor(t, a, func(m OpponentMoveMessage) bool { return m.CellIndex == step.cell })
		waitFor(t, b, func(m OpponentMoveMessage) bool { return m.CellIndex == step.cell })
		assert.Equal(t, "opponentMove", move.Type)
	}

	require.Eventually(t, func() bool {
		return len(h.store.winners()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Alice"}, h.store.winners())

	// The refreshed standings are broadcast to everyone.
	update := waitFor(t, b, func(m LeaderboardMessage) bool { return m.Leaders["Alice"] == 1 })
	assert.Equal(t, "leaderboardUpdate", update.Type)
}

func TestIllegalMovesAreSilentlyDropped(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	// Out of turn: O may not open.
	h.send(b, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 5})

	h.send(a, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 0})
	move := waitForType[OpponentMoveMessage](t, a)
	assert.Equal(t, 0, move.CellIndex)
	assert.Equal(t, symbolX, move.Symbol)
	assert.Equal(t, symbolO, move.Turn)

	// Occupied cell: dropped without any reply.
	h.send(b, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 0})

	h.send(b, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 5})
	move = waitForType[OpponentMoveMessage](t, a)
	// The first broadcast after the illegal attempts is the legal move, so
	// nothing was echoed for them.
	assert.Equal(t, 5, move.CellIndex)
	assert.Equal(t, symbolO, move.Symbol)
}

func TestDrawGivesNoLeaderboardCredit(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	script := []struct {
		from *client
		cell int
	}{
		{a, 0}, {b, 1}, {a, 2}, {b, 4}, {a, 3}, {b, 5}, {a, 7}, {b, 6}, {a, 8},
	}
	for _, step := range script {
		h.send(step.from, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: step.cell})
		waitFor(t, a, func(m OpponentMoveMessage) bool { return m.CellIndex == step.cell })
	}

	// A chat round trip proves the coordinator has processed every move.
	h.send(a, ClientMessage{Type: "chatMessage", RoomID: roomID, Sender: "Alice", Message: "gg"})
	waitForType[ChatBroadcastMessage](t, b)

	assert.Empty(t, h.store.winners())
}

func TestReplayHandshake(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	for _, step := range []struct {
		from *client
		cell int
	}{
		{a, 0}, {b, 1}, {a, 3}, {b, 4}, {a, 6},
	} {
		h.send(step.from, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: step.cell})
		waitFor(t, a, func(m OpponentMoveMessage) bool { return m.CellIndex == step.cell })
	}

	// First vote notifies only the other player.
	h.send(a, ClientMessage{Type: "playAgainRequest", RoomID: roomID})
	waitForSimple(t, b, "opponentWantsToPlayAgain")

	// A repeat vote from the same player changes nothing; the second
	// player's vote restarts.
	h.send(a, ClientMessage{Type: "playAgainRequest", RoomID: roomID})
	h.send(b, ClientMessage{Type: "playAgainRequest", RoomID: roomID})

	startA := waitForType[GameStartMessage](t, a)
	startB := waitForType[GameStartMessage](t, b)

	// Symbols are never reshuffled across replays.
	assert.Equal(t, symbolX, startA.Symbol)
	assert.Equal(t, symbolO, startB.Symbol)
	assert.True(t, startA.MyTurn)

	// Cell 0 was occupied last game; a fresh move there proves the reset.
	h.send(a, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 0})
	move := waitForType[OpponentMoveMessage](t, b)
	assert.Equal(t, 0, move.CellIndex)
}

func TestReconnectWithinGrace(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	h.send(a, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 0})
	waitForType[OpponentMoveMessage](t, a)

	h.disconnect(b)
	waitForSimple(t, a, "opponentDisconnected")

	b2 := h.connect("user-b")
	h.send(b2, ClientMessage{Type: "rejoinGame", RoomID: roomID})

	rejoined := waitForType[GameRejoinedMessage](t, b2)
	assert.Equal(t, symbolO, rejoined.Symbol)
	assert.Equal(t, symbolX, rejoined.Board[0])
	assert.True(t, rejoined.MyTurn)
	assert.Equal(t, "Alice", rejoined.OpponentName)

	waitForSimple(t, a, "opponentReconnected")

	// The game continues on the fresh connection.
	h.send(b2, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 4})
	move := waitForType[OpponentMoveMessage](t, a)
	assert.Equal(t, 4, move.CellIndex)
	assert.Equal(t, symbolO, move.Symbol)
}

func TestJoinRoomReconnectsReturningIdentity(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	h.disconnect(b)
	waitForSimple(t, a, "opponentDisconnected")

	// A plain joinRoom from the seated identity reconnects instead of
	// bouncing off the occupied seat.
	b2 := h.connect("user-b")
	h.send(b2, ClientMessage{Type: "joinRoom", RoomID: roomID, PlayerName: "Bob"})

	rejoined := waitForType[GameRejoinedMessage](t, b2)
	assert.Equal(t, symbolO, rejoined.Symbol)
	waitForSimple(t, a, "opponentReconnected")
}

func TestAbandonmentAfterGraceExpires(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	roomID := startGame(t, h, a, b)

	h.disconnect(b)
	waitForSimple(t, a, "opponentDisconnected")

	// Inside the window the room survives ticks.
	h.clk.advance(29 * time.Second)
	h.tick()

	h.clk.advance(2 * time.Second)
	h.tick()
	waitForSimple(t, a, "opponentLeft")

	// The room is gone for good; a late rejoin fails.
	b2 := h.connect("user-b")
	h.send(b2, ClientMessage{Type: "rejoinGame", RoomID: roomID})
	waitForSimple(t, b2, "rejoinFailed")

	h.send(b2, ClientMessage{Type: "joinRoom", RoomID: roomID})
	notice := waitForSimple(t, b2, "error")
	assert.Equal(t, "room not found", notice.Message)
}

func TestGraceDeadlineIsNotExtended(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	spec := h.connect("user-s")
	roomID := startGame(t, h, a, b)

	h.send(spec, ClientMessage{Type: "joinSpectator", RoomID: roomID})
	waitForType[SpectatorStateMessage](t, spec)

	h.disconnect(b)
	waitForSimple(t, spec, "opponentDisconnected")

	// A second disconnect halfway through must not restart the window.
	h.clk.advance(15 * time.Second)
	h.disconnect(a)
	waitForSimple(t, spec, "opponentDisconnected")

	h.clk.advance(16 * time.Second)
	h.tick()
	waitForSimple(t, spec, "opponentLeft")
}

func TestSpectatorSeesGameTraffic(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	spec := h.connect("user-s")
	roomID := startGame(t, h, a, b)

	h.send(a, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 4})
	waitForType[OpponentMoveMessage](t, a)

	h.send(spec, ClientMessage{Type: "joinSpectator", RoomID: roomID})
	state := waitForType[SpectatorStateMessage](t, spec)
	assert.Equal(t, roomID, state.RoomID)
	assert.Equal(t, symbolX, state.Board[4])
	assert.Equal(t, symbolO, state.Turn)
	assert.Equal(t, "Alice", state.Players[symbolX].Name)
	assert.Equal(t, "Bob", state.Players[symbolO].Name)

	// Live moves, chat and reactions all reach the spectator.
	h.send(b, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 5})
	move := waitForType[OpponentMoveMessage](t, spec)
	assert.Equal(t, 5, move.CellIndex)

	h.send(a, ClientMessage{Type: "chatMessage", RoomID: roomID, Sender: "Anyone At All", Message: "hi"})
	chat := waitForType[ChatBroadcastMessage](t, spec)
	// The sender name is relayed verbatim, unauthenticated.
	assert.Equal(t, "Anyone At All", chat.Sender)
	assert.Equal(t, "hi", chat.Message)

	h.send(b, ClientMessage{Type: "reaction", RoomID: roomID, Content: "wave"})
	reaction := waitForType[ReactionMessage](t, spec)
	assert.Equal(t, "wave", reaction.Content)
	assert.Equal(t, b.id, reaction.Sender)
}

func TestSpectatorDisconnectNeverArmsDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")
	spec := h.connect("user-s")
	roomID := startGame(t, h, a, b)

	h.send(spec, ClientMessage{Type: "joinSpectator", RoomID: roomID})
	waitForType[SpectatorStateMessage](t, spec)

	h.disconnect(spec)
	h.clk.advance(time.Hour)
	h.tick()

	// The game is untouched.
	h.send(a, ClientMessage{Type: "playerMove", RoomID: roomID, CellIndex: 0})
	move := waitForType[OpponentMoveMessage](t, b)
	assert.Equal(t, 0, move.CellIndex)
}

func TestIdleRoomSurvivesTicks(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")
	b := h.connect("user-b")

	h.send(a, ClientMessage{Type: "createRoom", PlayerName: "Alice"})
	created := waitForType[RoomCreatedMessage](t, a)

	// A creator idling on the lobby screen is not reaped.
	h.clk.advance(24 * time.Hour)
	h.tick()

	h.send(b, ClientMessage{Type: "joinRoom", RoomID: created.RoomID, PlayerName: "Bob"})
	waitForType[GameStartMessage](t, a)
	waitForType[GameStartMessage](t, b)
}

func TestLeaderboardPushedOnConnect(t *testing.T) {
	h := newHarness(t)
	h.store.wins = []string{"Alice", "Alice", "Bob"}

	c := h.connect("user-c")
	update := waitForType[LeaderboardMessage](t, c)
	assert.Equal(t, int64(2), update.Leaders["Alice"])
	assert.Equal(t, int64(1), update.Leaders["Bob"])
}

func TestUnknownIntentIgnored(t *testing.T) {
	h := newHarness(t)
	a := h.connect("user-a")

	h.send(a, ClientMessage{Type: "selfDestruct"})

	// The coordinator shrugs and keeps serving.
	h.send(a, ClientMessage{Type: "createRoom"})
	created := waitForType[RoomCreatedMessage](t, a)
	assert.False(t, strings.Contains(created.RoomID, "#"))
}

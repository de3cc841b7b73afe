package main

// reconnect rebinds a returning identity to its seat and restores its full
// view of the room. Reached from joinRoom (when the userId matches an
// occupied slot) and from rejoinGame.
func (co *coordinator) reconnect(c *client, r *room, s symbol) {
	bothBack := r.rebind(s, c)
	co.roomByClient[c] = r

	if bothBack {
		co.broadcastRoom(r, SimpleMessage{Type: "opponentReconnected"})
	}

	co.deliver(c, GameRejoinedMessage{
		Type:         "gameRejoined",
		Symbol:       s,
		RoomID:       r.id,
		Board:        r.grid,
		MyTurn:       r.turn == s,
		OpponentName: r.opponentName(s),
		Variant:      r.variant,
	})

	co.logger.Info().Str("room", r.id).Str("player", r.players[s].name).Msg("player rejoined")
}

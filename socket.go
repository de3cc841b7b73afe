package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket connection. The id is volatile and changes across
// reconnects; the durable identity arrives later via registerUser.
type client struct {
	id      string
	userID  string
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan any, 32),
		limiter: rate.NewLimiter(1, 5),
	}
}

// serveWS upgrades the connection and runs the pumps. All game state
// changes flow through the coordinator's channels; the pumps never touch a
// room directly.
func serveWS(co *coordinator, logger zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := newClient(conn)
		logger.Debug().Str("conn", c.id).Str("ip", realIP(r)).Msg("client connected")

		co.register <- c

		go c.writePump()
		c.readPump(co)

		logger.Debug().Str("conn", c.id).Msg("client disconnected")
	}
}

func (c *client) readPump(co *coordinator) {
	defer func() {
		co.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		// Chat and reactions are flood-limited per connection; game
		// intents are not.
		switch msg.Type {
		case "chatMessage", "reaction":
			if !c.limiter.Allow() {
				continue
			}
		}

		co.intents <- intent{from: c, msg: msg}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

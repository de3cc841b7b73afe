// XO Arena
//
// Pairs of remote players play XO over persistent websocket connections,
// with room codes, anonymous matchmaking, spectating, chat/reactions, and a
// cross-session leaderboard.
//
// Features:
// - One websocket per client at /xo/ws; JSON tagged messages
// - Rooms by creator-chosen or random 6-char codes, shareable via QR
// - Single-slot matchmaking queue with self-match prevention
// - Mid-game reconnection: a durable userId rebinds its seat within a
//   fixed grace window; expiry tears the room down for good
// - Server-side move validation; illegal moves are silently ignored
// - Leaderboard in redis or a flat JSON file, pushed to every connection
// - Stateless minimax opponent for local single-player, via REST

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// qrHandler renders a PNG QR code for a room's join link.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/xo?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// serveLeaderboard exposes the top-N standings over plain HTTP, for clients
// that want them without opening a websocket.
func serveLeaderboard(cfg *Config, store leaderboardStore, logger zerolog.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		n := leaderboardTopN
		if raw := r.URL.Query().Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 100 {
				http.Error(w, "invalid n", http.StatusBadRequest)
				return
			}
			n = parsed
		}

		entries, err := store.TopN(r.Context(), n)
		if err != nil {
			logger.Error().Err(err).Msg("leaderboard read failed")
			http.Error(w, "leaderboard unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = json.NewEncoder(w).Encode(entries)
	}
}

type botMoveRequest struct {
	Board      board  `json:"board"`
	Symbol     symbol `json:"symbol"`
	Difficulty string `json:"difficulty"`
}

type botMoveResponse struct {
	Index int `json:"index"`
}

// serveBotMove runs the stateless move picker over a caller-supplied board
// snapshot. It has no ties to any room.
func serveBotMove(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req botMoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Symbol != symbolX && req.Symbol != symbolO {
			http.Error(w, "invalid symbol", http.StatusBadRequest)
			return
		}
		for _, c := range req.Board {
			if c != symbolNone && c != symbolX && c != symbolO {
				http.Error(w, "invalid board", http.StatusBadRequest)
				return
			}
		}
		if req.Difficulty == "" {
			req.Difficulty = botHard
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)
		_ = json.NewEncoder(w).Encode(botMoveResponse{Index: bestMove(req.Board, req.Symbol, req.Difficulty)})
	}
}

// registerXOGame sets up routes so that:
//   - $path            → HTML client
//   - $path/ws         → websocket carrying all game intents
//   - $path/qr/:roomid → PNG QR code linking to the room
//   - /api/leaderboard → top-N standings as JSON
//   - /api/bot-move    → stateless AI move for a board snapshot
func registerXOGame(cfg *Config, path string, mux *httprouter.Router, co *coordinator, logger zerolog.Logger) {
	mux.GET(cfg.prefix+path, serveGamePage(cfg))

	// Shared assets (no room in route)
	mux.GET(cfg.prefix+"/assets/xo/app.css", serveAssets(cfg, logger))
	mux.GET(cfg.prefix+"/assets/xo/app.js", serveAssets(cfg, logger))

	mux.GET(cfg.prefix+path+"/ws", serveWS(co, logger))

	mux.GET(cfg.prefix+path+"/qr/:roomid", qrHandler(cfg))

	mux.GET(cfg.prefix+"/api/leaderboard", serveLeaderboard(cfg, co.store, logger))
	mux.POST(cfg.prefix+"/api/bot-move", serveBotMove(cfg))
}

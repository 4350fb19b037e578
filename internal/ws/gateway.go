// internal/ws/gateway.go
//
// Websocket transport: GET /ws/{mode}.
// One connection owns one session, keyed by the connection id. Messages are
// handled one at a time by the read loop, so guesses on a connection are
// always evaluated in the order they were sent. Closing the connection
// deletes the session.
//
// Client → server: {"type":"init"|"guess"|"stats", ...}
// Server → client: {"type":"round"|"verdict"|"ack"|"error", "data":{...}}

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gamedle/internal/auth"
	"github.com/robalobadob/gamedle/internal/game"
	"github.com/robalobadob/gamedle/internal/protocol"
	"github.com/robalobadob/gamedle/internal/round"
	"github.com/robalobadob/gamedle/internal/stats"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	opTimeout      = 10 * time.Second
)

// Recorder accepts play records without blocking.
type Recorder interface {
	Record(stats.Record) bool
}

// Gateway upgrades requests and runs one session per connection.
type Gateway struct {
	rounds   *round.Controller
	rec      Recorder
	upgrader websocket.Upgrader
}

// New builds a gateway. origin restricts the Origin header; "" or "*"
// accepts any origin. rec may be nil.
func New(rounds *round.Controller, rec Recorder, origin string) *Gateway {
	return &Gateway{
		rounds: rounds,
		rec:    rec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return origin == "" || origin == "*" || o == "" || o == origin
			},
		},
	}
}

// inbound is a client message. Guess and Stats fields are flattened.
type inbound struct {
	Type    protocol.Action `json:"type"`
	Exclude []int64         `json:"exclude,omitempty"`
	protocol.Guess
	protocol.Stats
}

// outbound is a server message.
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// conn is the per-connection state.
type conn struct {
	id     string
	mode   game.Mode
	player string
	send   chan []byte
	done   chan struct{} // closed when the write loop exits
	log    zerolog.Logger
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m, err := g.rounds.Modes().Get(chi.URLParam(r, "mode"))
	if err != nil {
		status, body := protocol.Classify(err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
		return
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("mode", m.ID).Msg("websocket upgrade")
		return
	}

	id := uuid.NewString()
	c := &conn{
		id:     id,
		mode:   m,
		player: auth.PlayerID(r.Context()),
		send:   make(chan []byte, 16),
		done:   make(chan struct{}),
		log:    log.With().Str("mode", m.ID).Str("key", id).Logger(),
	}
	c.log.Info().Msg("websocket connected")

	go g.writePump(wsConn, c)
	g.readPump(wsConn, c)
}

func (g *Gateway) readPump(wsConn *websocket.Conn, c *conn) {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if err := g.rounds.End(ctx, c.mode.ID, c.id); err != nil {
			c.log.Warn().Err(err).Msg("end session on disconnect")
		}
		cancel()
		close(c.send)
		wsConn.Close()
		c.log.Info().Msg("websocket disconnected")
	}()

	wsConn.SetReadLimit(maxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		out := g.handle(c, data)
		b, err := json.Marshal(out)
		if err != nil {
			c.log.Error().Err(err).Msg("marshal reply")
			continue
		}
		select {
		case c.send <- b:
		case <-c.done:
			return
		}
	}
}

// handle processes one client message and returns the reply.
func (g *Gateway) handle(c *conn, data []byte) outbound {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return outbound{Type: "error", Data: protocol.Error{Code: "bad_json"}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case protocol.ActionInit:
		rd, err := g.rounds.Start(ctx, c.mode.ID, round.StartOptions{Key: c.id, Exclude: msg.Exclude, PlayerID: c.player})
		if err != nil {
			return errorReply(c, err)
		}
		return outbound{Type: "round", Data: rd}

	case protocol.ActionGuess:
		v, err := protocol.Evaluate(ctx, g.rounds, c.mode, c.id, msg.Guess)
		if err != nil {
			return errorReply(c, err)
		}
		return outbound{Type: "verdict", Data: v}

	case protocol.ActionStats:
		if g.rec != nil {
			g.rec.Record(msg.Stats.Verify(ctx, g.rounds, c.mode, c.id, c.player))
		}
		return outbound{Type: "ack"}
	}
	return outbound{Type: "error", Data: protocol.Error{Code: "unknown_action", Message: string(msg.Type)}}
}

func errorReply(c *conn, err error) outbound {
	status, body := protocol.Classify(err)
	ev := c.log.Debug()
	if status >= http.StatusInternalServerError {
		ev = c.log.Error()
	}
	ev.Err(err).Str("code", body.Code).Msg("message failed")
	return outbound{Type: "error", Data: body}
}

func (g *Gateway) writePump(wsConn *websocket.Conn, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

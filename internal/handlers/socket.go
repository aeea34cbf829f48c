package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eldtechnologies/chatwave/internal/api/middleware"
	"github.com/eldtechnologies/chatwave/internal/chat"
	"github.com/eldtechnologies/chatwave/internal/crypto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second

	// Room ids, keys and framing on top of the largest message body.
	frameOverhead = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	// Any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the connection until either side
// closes it. Signed connections act as their registered user; guests are
// accepted with a self-chosen name when enabled.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, status, msg := h.identify(r)
	if status != 0 {
		h.Error(w, status, msg)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := h.hub.Connect(identity)
	log := h.logger.With().Str("conn", c.ID()).Str("user", identity.UserID).Logger()
	log.Debug().Str("name", identity.Name).Bool("guest", identity.Guest).Msg("connected")

	go h.writePump(ws, c)

	ctx := r.Context()
	if room := r.URL.Query().Get("room"); room != "" {
		// Runs as an in-band join so a refusal reaches the client as an
		// error frame. Browsers cannot send the key header; they join
		// private rooms with a join frame instead.
		h.hub.Dispatch(ctx, c, joinFrame(room, r.Header.Get(middleware.HeaderRoomKey)))
	}

	h.readPump(ctx, ws, c)
	h.hub.Disconnect(c)
	log.Debug().Str("reason", c.Reason()).Msg("disconnected")
}

func joinFrame(room, key string) []byte {
	data, _ := json.Marshal(chat.JoinRequest{Room: room, Key: key})
	frame, _ := json.Marshal(chat.Envelope{Event: chat.EventJoin, Data: data})
	return frame
}

func (h *Handler) identify(r *http.Request) (chat.Identity, int, string) {
	q := r.URL.Query()
	if q.Get("sig") != "" {
		user, err := h.auth.VerifyConnect(r)
		if err != nil {
			status := middleware.AuthStatus(err)
			if status == http.StatusInternalServerError {
				return chat.Identity{}, status, "database error"
			}
			return chat.Identity{}, status, err.Error()
		}
		return chat.Identity{
			UserID: user.ID.String(),
			Name:   chat.SanitizeName(user.Name),
			Avatar: user.Avatar,
		}, 0, ""
	}

	if !h.cfg.AllowGuests {
		return chat.Identity{}, http.StatusUnauthorized, "authentication required"
	}
	return chat.Identity{
		UserID: crypto.NewGuestID(),
		Name:   chat.SanitizeName(q.Get("name")),
		Avatar: sanitizeAvatar(q.Get("avatar")),
		Guest:  true,
	}, 0, ""
}

// readPump feeds inbound frames to the hub until the socket fails.
func (h *Handler) readPump(ctx context.Context, ws *websocket.Conn, c *chat.Conn) {
	ws.SetReadLimit(int64(h.cfg.MaxMessageBytes + frameOverhead))
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug().Err(err).Str("conn", c.ID()).Msg("read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.hub.Dispatch(ctx, c, frame)
	}
}

// writePump is the only writer on ws. It exits when the connection is
// closed by the hub and closes the socket, which ends readPump.
func (h *Handler) writePump(ws *websocket.Conn, c *chat.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame := <-c.Outbound():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.hub.Disconnect(c)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Disconnect(c)
				return
			}

		case <-c.Done():
			code := websocket.CloseNormalClosure
			if c.Reason() == chat.ReasonSlowConsumer {
				code = websocket.CloseTryAgainLater
			}
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, c.Reason()),
				time.Now().Add(writeWait))
			return
		}
	}
}

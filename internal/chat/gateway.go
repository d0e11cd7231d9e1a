package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forumhub/messenger/internal/auth"
	"github.com/forumhub/messenger/internal/hub"
)

// TokenVerifier validates handshake tokens and yields the connection's
// identity.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Gateway owns the websocket connection lifecycle: it authenticates the
// handshake, registers the connection, joins the personal group and feeds
// inbound events to the dispatcher. Unauthenticated attempts are refused
// before the upgrade.
type Gateway struct {
	verifier   TokenVerifier
	registry   *hub.Registry
	rooms      *hub.Rooms
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
}

// NewGateway wires a gateway over the shared registry, rooms and
// dispatcher. allowedOrigins lists the browser origins permitted to open
// websocket connections; when empty, only same-origin requests are
// accepted. Requests without an Origin header (non-browser clients) always
// pass.
func NewGateway(verifier TokenVerifier, registry *hub.Registry, rooms *hub.Rooms, dispatcher *Dispatcher, allowedOrigins []string) *Gateway {
	g := &Gateway{
		verifier:   verifier,
		registry:   registry,
		rooms:      rooms,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(allowedOrigins))
		for _, o := range allowedOrigins {
			if o = strings.TrimSpace(o); o != "" {
				allowed[o] = struct{}{}
			}
		}
		g.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
	return g
}

// HandleWS upgrades an authenticated HTTP request to a websocket connection
// and serves it until the transport closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	}
	claims, err := g.verifier.VerifyToken(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		return
	}

	who := Identity{ID: claims.UserID, Username: claims.Username, Avatar: claims.Avatar}
	g.serve(newConn(who.ID, sock), who)
}

// serve runs the read loop for one connection. Cleanup runs on every exit
// path and is idempotent, so a connection dropping mid-event is safe.
func (g *Gateway) serve(conn *Conn, who Identity) {
	g.registry.Register(who.ID, conn.ID(), conn)
	g.rooms.Join(hub.PersonalKey(who.ID), conn.ID(), who.ID, conn)
	defer g.drop(conn, who)

	go conn.writePump()

	if frame, err := Encode(EventConnected, ConnectedPayload{UserID: who.ID}); err == nil {
		_ = conn.Send(frame)
	}

	conn.sock.SetReadLimit(maxMessageSize)
	_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error for user %d: %v", who.ID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.dispatcher.sendError(conn, "malformed event")
			continue
		}

		// Each event runs as its own task: a slow store call for one event
		// must not stall delivery of the next one or of other connections.
		go g.handleEvent(conn, who, env)
	}
}

func (g *Gateway) drop(conn *Conn, who Identity) {
	g.registry.Unregister(who.ID, conn.ID())
	g.rooms.LeaveAll(conn.ID())
	conn.close()
}

func (g *Gateway) handleEvent(conn *Conn, who Identity, env Envelope) {
	switch env.Event {
	case EventJoinChat:
		var p RecipientPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RecipientID == 0 {
			return
		}
		room := hub.ConversationKey(who.ID, p.RecipientID)
		g.rooms.Join(room, conn.ID(), who.ID, conn)
		if frame, err := Encode(EventJoinedChat, JoinedChatPayload{Room: room, UserID: who.ID, RecipientID: p.RecipientID}); err == nil {
			_ = conn.Send(frame)
		}

	case EventLeaveChat:
		var p RecipientPayload
		if json.Unmarshal(env.Data, &p) != nil || p.RecipientID == 0 {
			return
		}
		g.rooms.Leave(hub.ConversationKey(who.ID, p.RecipientID), conn.ID())

	case EventSendMessage:
		var p SendMessagePayload
		if json.Unmarshal(env.Data, &p) != nil {
			g.dispatcher.sendError(conn, "malformed event")
			return
		}
		g.dispatcher.SendMessage(who, p, conn)

	case EventTyping:
		var p RecipientPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		g.dispatcher.Typing(who, p.RecipientID)

	case EventMarkRead:
		var p MarkReadPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		g.dispatcher.MarkRead(who, p.SenderID, conn)

	default:
		// Unknown events are dropped silently.
	}
}

package ws

import (
	"chat-hub/errors"
	"chat-hub/services"
	"chat-hub/sink"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var errSinkClosed = stderrors.New("connection sink closed")

type Settings struct {
	AllowedOrigins []string
	BufferSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxFrameSize   int64
}

// Handler upgrades authenticated requests and bridges one websocket to the
// chat service. The token is checked before the upgrade, so a rejected
// client gets a plain 401.
type Handler struct {
	chat     *services.ChatService
	upgrader websocket.Upgrader
	settings Settings
	log      *slog.Logger

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

func NewHandler(chat *services.ChatService, settings Settings, log *slog.Logger) *Handler {
	allowed := lo.SliceToMap(settings.AllowedOrigins, func(origin string) (string, struct{}) {
		return origin, struct{}{}
	})
	return &Handler{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		settings: settings,
		log:      log,
	}
}

// ServeHTTP runs one session for the lifetime of the request context. The
// server base context ends every session on shutdown, since hijacked
// connections are not tracked by http.Server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}

	ctx := r.Context()
	user, err := h.chat.Authenticate(ctx, credential)
	if err != nil {
		h.log.Debug("WebSocket connection refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "authorization token is missing or invalid", http.StatusUnauthorized)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	if !h.track() {
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = socket.Close()
		return
	}
	defer h.sessions.Done()

	out := sink.NewConnectionSink(h.settings.BufferSize)
	conn := h.chat.Attach(ctx, user, out)
	h.serve(ctx, conn, socket, out)
}

// track counts a new session unless the handler is draining.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.draining {
		return false
	}
	h.sessions.Add(1)
	return true
}

// Wait refuses new sessions and blocks until the running ones have left
// their groups, or until ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve blocks until either pump stops. The connection leaves every group
// before the socket is closed.
func (h *Handler) serve(ctx context.Context, conn services.Connection, socket *websocket.Conn, out *sink.ConnectionSink) {
	h.log.Info("WebSocket connected", "connection_id", conn.ID, "user_id", conn.User.ID)
	defer func() {
		h.chat.Disconnect(context.WithoutCancel(ctx), conn.ID)
		out.Close()
		_ = socket.Close()
		h.log.Info("WebSocket disconnected", "connection_id", conn.ID, "user_id", conn.User.ID, "dropped", out.Dropped())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readPump(gctx, conn, socket) })
	g.Go(func() error { return h.writePump(gctx, socket, out) })
	g.Go(func() error {
		<-gctx.Done()
		return socket.Close()
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.log.Debug("WebSocket pump stopped", "connection_id", conn.ID, "error", err)
	}
}

// readPump always ends with an error so that the group gets canceled.
func (h *Handler) readPump(ctx context.Context, conn services.Connection, socket *websocket.Conn) error {
	pongWait := 2 * h.settings.PingInterval
	if h.settings.MaxFrameSize > 0 {
		socket.SetReadLimit(h.settings.MaxFrameSize)
	}
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return err
		}
		var frame Frame
		if err = json.Unmarshal(data, &frame); err != nil {
			h.log.Debug("Malformed frame ignored", "connection_id", conn.ID, "error", err)
			continue
		}
		result, err := h.dispatch(ctx, conn.ID, frame)
		if err != nil {
			h.log.Debug("Operation failed", "connection_id", conn.ID, "op", frame.Op, "error", err)
		}
		h.chat.Acknowledge(ctx, conn.ID, frame.RequestID, frame.Op, result, err)
	}
}

func (h *Handler) writePump(ctx context.Context, socket *websocket.Conn, out *sink.ConnectionSink) error {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.settings.WriteTimeout))
			return nil
		case e, ok := <-out.Events():
			if !ok {
				return errSinkClosed
			}
			_ = socket.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := socket.WriteJSON(e); err != nil {
				return err
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, connID string, frame Frame) (any, error) {
	switch frame.Op {
	case OpJoin:
		return nil, h.chat.JoinRoom(ctx, connID, frame.RoomID)
	case OpLeave:
		return nil, h.chat.LeaveRoom(ctx, connID, frame.RoomID)
	case OpSend:
		return h.chat.SendMessage(ctx, connID, frame.draft())
	case OpUpdate:
		return h.chat.UpdateMessage(ctx, connID, frame.MessageID, frame.Content)
	case OpDelete:
		return h.chat.DeleteMessage(ctx, connID, frame.MessageID)
	case OpTypingStart:
		return nil, h.chat.StartTyping(ctx, connID, frame.RoomID)
	case OpTypingStop:
		return nil, h.chat.StopTyping(ctx, connID, frame.RoomID)
	case OpRead:
		return nil, h.chat.MarkAsRead(ctx, connID, frame.RoomID, lo.EmptyableToPtr(frame.MessageID))
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownOperation, frame.Op)
	}
}

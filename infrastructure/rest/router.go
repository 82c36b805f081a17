package rest

import (
	"chat-hub/auth"
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/search"
	"chat-hub/errors"
	"chat-hub/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"google.golang.org/grpc/codes"
)

// Router exposes room administration and message history over HTTP.
// Real-time traffic goes through the websocket handler mounted on /ws.
type Router struct {
	chat     *services.ChatService
	rooms    *services.RoomService
	messages *services.MessageService
	log      *slog.Logger
}

func NewRouter(chat *services.ChatService, rooms *services.RoomService, messages *services.MessageService, log *slog.Logger) *Router {
	return &Router{chat: chat, rooms: rooms, messages: messages, log: log}
}

// Handler builds the routes. The websocket handler authenticates on its own.
func (rt *Router) Handler(identity contract.IdentityResolver, websocket http.Handler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", rt.health).Methods(http.MethodGet)
	if websocket != nil {
		r.Handle("/ws", websocket).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(identity))
	api.HandleFunc("/rooms", rt.listRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms", rt.createRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}", rt.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/participants", rt.addParticipant).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/participants/{userId}", rt.removeParticipant).Methods(http.MethodDelete)
	api.HandleFunc("/rooms/{id}/archive", rt.archive).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/messages", rt.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/search", rt.search).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": rt.chat.Stats(),
	})
}

func (rt *Router) listRooms(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rooms, err := rt.rooms.RoomsFor(r.Context(), user.ID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, rooms)
}

func (rt *Router) createRoom(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var spec services.RoomSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		rt.writeError(w, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	room, err := rt.rooms.CreateRoom(r.Context(), user.ID, spec)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusCreated, room)
}

// roomView is a room with the participants currently connected.
type roomView struct {
	domain.Room
	Online []string `json:"online"`
}

func (rt *Router) getRoom(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	room, err := rt.rooms.Authorize(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, roomView{Room: room, Online: rt.chat.OnlineOf(room.Participants)})
}

func (rt *Router) addParticipant(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		rt.writeError(w, fmt.Errorf("%w: userId is required", errors.ErrValidation))
		return
	}
	room, err := rt.rooms.AddParticipant(r.Context(), mux.Vars(r)["id"], user.ID, body.UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, room)
}

func (rt *Router) removeParticipant(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	vars := mux.Vars(r)
	room, err := rt.rooms.RemoveParticipant(r.Context(), vars["id"], user.ID, vars["userId"])
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, room)
}

func (rt *Router) archive(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	room, err := rt.rooms.Archive(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, room)
}

func (rt *Router) listMessages(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	roomID := mux.Vars(r)["id"]
	if _, err := rt.rooms.Authorize(r.Context(), roomID, user.ID); err != nil {
		rt.writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	messages, err := rt.messages.ListForRoom(r.Context(), roomID, page, pageSize)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, messages)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	roomID := mux.Vars(r)["id"]
	if _, err := rt.rooms.Authorize(r.Context(), roomID, user.ID); err != nil {
		rt.writeError(w, err)
		return
	}
	messages, err := rt.messages.Search(r.Context(), roomID, search.NewSearchQuery(r.URL.Query().Get("q")))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, messages)
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rt.log.Debug("Response not written", "error", err)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	code := errors.Code(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		rt.log.Warn("Request failed", "error", err)
	}
	rt.writeJSON(w, status, map[string]string{"error": errors.Message(err), "code": code.String()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

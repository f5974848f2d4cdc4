package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
)

type createRoomRequest struct {
	Name        string   `json:"name"`
	MaxPlayers  int      `json:"max_players"`
	TotalRounds int      `json:"total_rounds"`
	Categories  []string `json:"categories"`
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, errs.ValidationFailed("malformed request body"))
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = 10
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = 10
	}

	room, err := h.roomService.CreateRoom(r.Context(), userID, req.Name, req.MaxPlayers, req.TotalRounds, req.Categories)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "room created", Code: http.StatusCreated, Data: room})
}

func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rooms, err := h.roomService.ListRooms(r.Context(), status, limit)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "rooms", Code: http.StatusOK, Data: rooms})
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	room, sessions, err := h.roomService.GetRoom(r.Context(), roomID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{
		Message: "room",
		Code:    http.StatusOK,
		Data: map[string]interface{}{
			"room":    room,
			"players": sessions,
		},
	})
}

func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	sess, err := h.roomService.Join(r.Context(), roomID, userID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "joined room", Code: http.StatusOK, Data: sess})
}

func (h *Handler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	if err := h.roomService.Leave(r.Context(), roomID, userID); err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "left room", Code: http.StatusOK})
}

func (h *Handler) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	roomID := chi.URLParam(r, "roomID")

	room, err := h.roomService.Start(r.Context(), roomID, userID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "game started", Code: http.StatusOK, Data: room})
}

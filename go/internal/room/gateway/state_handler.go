package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/estimate/go/internal/room"
	"github.com/mcdev12/estimate/go/internal/room/coordinator"
	"github.com/mcdev12/estimate/go/internal/room/export"
)

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	RoomID   string    `json:"roomId" validate:"omitempty,max=64,printascii,excludesall=/?#%"`
	HostName string    `json:"hostName" validate:"required,max=50"`
	Mode     room.Mode `json:"mode" validate:"omitempty,oneof=open closed"`
}

// CreateRoomResponse carries the host token only when the room was created
// by this request.
type CreateRoomResponse struct {
	RoomID    string      `json:"roomId"`
	HostToken string      `json:"hostToken,omitempty"`
	State     *room.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StateHandler serves the room HTTP API.
type StateHandler struct {
	hub RoomHub
}

func NewStateHandler(hub RoomHub) *StateHandler {
	return &StateHandler{hub: hub}
}

// HandleCreateRoom handles POST /api/rooms. Creating an existing room is not
// an error: the current projection is returned without the host token.
func (h *StateHandler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return
	}
	if err := validateStruct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.RoomID == "" {
		req.RoomID = uuid.NewString()
	}

	s, created, err := h.hub.Init(r.Context(), req.RoomID, req.HostName, req.Mode)
	switch {
	case errors.Is(err, room.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, coordinator.ErrRoomUnavailable):
		log.Warn().Err(err).Str("room_id", req.RoomID).Msg("room unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "room temporarily unavailable"})
		return
	case err != nil:
		log.Error().Err(err).Str("room_id", req.RoomID).Msg("failed to initialize room")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create room"})
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, CreateRoomResponse{
			RoomID: s.RoomID,
			State:  room.Project(s, ""),
		})
		return
	}

	writeJSON(w, http.StatusCreated, CreateRoomResponse{
		RoomID:    s.RoomID,
		HostToken: s.Host.Token,
		State:     room.Project(s, s.Host.Name),
	})
}

// HandleGetRoomState handles GET /api/rooms/{roomID}/state. A bearer host
// token yields the host's projection.
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")

	s, err := h.hub.Snapshot(r.Context(), roomID)
	if err != nil {
		h.writeSnapshotError(w, roomID, err)
		return
	}

	requester := ""
	if s.IsHost(bearerToken(r)) {
		requester = s.Host.Name
	}
	writeJSON(w, http.StatusOK, room.Project(s, requester))
}

// HandleExportRoom handles GET /api/rooms/{roomID}/export.csv for the host.
func (h *StateHandler) HandleExportRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")

	s, err := h.hub.Snapshot(r.Context(), roomID)
	if err != nil {
		h.writeSnapshotError(w, roomID, err)
		return
	}
	if !s.IsHost(bearerToken(r)) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "host token required"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "room-"+roomID+".csv"))
	if err := export.WriteCSV(w, s.Tasks); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to write export")
	}
}

func (h *StateHandler) writeSnapshotError(w http.ResponseWriter, roomID string, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "room not found"})
		return
	case errors.Is(err, coordinator.ErrRoomUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "room temporarily unavailable"})
		return
	}
	log.Error().Err(err).Str("room_id", roomID).Msg("failed to get room state")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get room state"})
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.HandleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{roomID}/state", h.HandleGetRoomState)
	mux.HandleFunc("GET /api/rooms/{roomID}/export.csv", h.HandleExportRoom)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/jmcardle/go-chatserver/internal/server"
	"github.com/jmcardle/go-chatserver/internal/types"
)

type CreateRoomRequest struct {
	Kind           types.RoomKind `json:"kind"`
	Name           string         `json:"name"`
	Image          string         `json:"image"`
	ParticipantIds []string       `json:"participantIds"`
}

type AddParticipantsRequest struct {
	RoomId  string   `json:"roomId"`
	UserIds []string `json:"userIds"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Rooms.CreateRoom(req.Kind, req.Name, req.Image, identity, req.ParticipantIds)
	if err != nil {
		errResp := FromError(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("create room:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *ChatApp) addParticipants(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Rooms.AddParticipants(req.RoomId, identity, req.UserIds)
	if err != nil {
		errResp := FromError(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("add participants:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *ChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	roomId := r.URL.Query().Get("id")
	if roomId == "" {
		errResp := NewBadRequestError("missing room id")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.cs.Rooms.GetRoom(roomId)
	if err != nil {
		errResp := FromError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !room.IsMember(identity) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *ChatApp) chatList(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	status := types.MembershipStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.MembershipAccepted
	}
	switch status {
	case types.MembershipRequested, types.MembershipAccepted,
		types.MembershipRejected, types.MembershipBlocked:
	default:
		errResp := NewBadRequestError("invalid membership status")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chats, err := s.cs.Rooms.ChatList(identity, status)
	if err != nil {
		errResp := FromError(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("chat list:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, chats)
}

// serveWs authenticates the handshake and hands the socket to a connection
// session. Auth failure closes the request before any registration.
func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity, err := s.authenticate(token)
	if err != nil {
		s.log.Printf("authenticate: %v", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(identity, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}

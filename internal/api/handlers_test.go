package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jmcardle/go-chatserver/internal/config"
	"github.com/jmcardle/go-chatserver/internal/database"
	"github.com/jmcardle/go-chatserver/internal/server"
	"github.com/jmcardle/go-chatserver/internal/stats"
	"github.com/jmcardle/go-chatserver/internal/testutil"
	"github.com/jmcardle/go-chatserver/internal/types"
)

var testSigningKey = []byte("test-signing-key")

func newTestApp(t *testing.T, repo database.ChatRepository) *ChatApp {
	t.Helper()
	logger := testutil.TestLogger(t)

	cs, err := server.NewChatServer(logger, repo, stats.NopProvider{}, 10, 20)
	if err != nil {
		t.Fatalf("failed to create chat server: %s", err)
	}

	cfg := &config.Config{
		ServerAddr:     ":0",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return NewChatApp(http.NewServeMux(), logger, cs, repo, cfg)
}

func authedRequest(method, target, body, identity string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if identity != "" {
		r = r.WithContext(WithIdentity(r.Context(), identity))
	}
	return r
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("Ping").Return(nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		s.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code, "expected 200")
		assert.Equal(t, "OK", rr.Body.String(), "expected OK body")
	})

	t.Run("database down", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("Ping").Return(errors.New("connection refused"))
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		s.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected 500")
	})
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("CreateRoom", mock.Anything).Return(&types.Room{
			Id:         1,
			ExternalId: "r1",
			Name:       "Team",
			Kind:       types.RoomKindGroup,
		}, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		body := `{"kind":"group","name":"Team","participantIds":["bob"]}`
		s.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, "alice"))

		assert.Equal(t, http.StatusCreated, rr.Code, "expected 201")

		var room types.Room
		assert.Nil(t, json.NewDecoder(rr.Body).Decode(&room), "expected room body")
		assert.Equal(t, "r1", room.ExternalId, "expected created room")
	})

	t.Run("no identity", func(t *testing.T) {
		s := newTestApp(t, &database.MockChatRepository{})

		rr := httptest.NewRecorder()
		s.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", `{}`, ""))

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestApp(t, &database.MockChatRepository{})

		rr := httptest.NewRecorder()
		s.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", `{"kind"`, "alice"))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected 400")
	})

	t.Run("duplicate direct room", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("FindDirectRoom", "alice", "bob").Return(&types.Room{Id: 7, ExternalId: "r7"}, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		body := `{"kind":"direct","participantIds":["bob"]}`
		s.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, "alice"))

		assert.Equal(t, http.StatusConflict, rr.Code, "expected 409")

		var errResp ApiError
		assert.Nil(t, json.NewDecoder(rr.Body).Decode(&errResp), "expected error body")
		assert.Equal(t, http.StatusConflict, errResp.StatusCode, "expected status in body")
	})

	t.Run("group without name", func(t *testing.T) {
		s := newTestApp(t, &database.MockChatRepository{})

		rr := httptest.NewRecorder()
		body := `{"kind":"group","participantIds":["bob"]}`
		s.createRoom(rr, authedRequest(http.MethodPost, "/api/rooms", body, "alice"))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected 400")
	})
}

func TestAddParticipantsHandler(t *testing.T) {
	groupRoom := &types.Room{
		Id:         1,
		ExternalId: "r1",
		Name:       "Team",
		Kind:       types.RoomKindGroup,
		Participants: []types.Participant{
			{UserId: "bob", Status: types.MembershipRequested},
			{UserId: "alice", Status: types.MembershipAccepted},
		},
		Admins: []string{"alice"},
	}

	t.Run("success", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("GetRoomByExternalId", "r1").Return(groupRoom, nil)
		mockDb.On("AddParticipants", 1, "alice", mock.Anything).Return(groupRoom, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		body := `{"roomId":"r1","userIds":["carol"]}`
		s.addParticipants(rr, authedRequest(http.MethodPost, "/api/rooms/participants", body, "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected 200")
	})

	t.Run("requester not admin", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("GetRoomByExternalId", "r1").Return(groupRoom, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		body := `{"roomId":"r1","userIds":["carol"]}`
		s.addParticipants(rr, authedRequest(http.MethodPost, "/api/rooms/participants", body, "bob"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})

	t.Run("room not found", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("GetRoomByExternalId", "missing").Return(nil, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		body := `{"roomId":"missing","userIds":["carol"]}`
		s.addParticipants(rr, authedRequest(http.MethodPost, "/api/rooms/participants", body, "alice"))

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected 404")
	})
}

func TestGetRoomHandler(t *testing.T) {
	room := &types.Room{
		Id:         1,
		ExternalId: "r1",
		Name:       "Team",
		Kind:       types.RoomKindGroup,
		Participants: []types.Participant{
			{UserId: "alice", Status: types.MembershipAccepted},
		},
		Admins: []string{"alice"},
	}

	tt := []struct {
		name         string
		target       string
		identity     string
		room         *types.Room
		expectedCode int
	}{
		{
			name:         "success",
			target:       "/api/rooms?id=r1",
			identity:     "alice",
			room:         room,
			expectedCode: http.StatusOK,
		},
		{
			name:         "missing id",
			target:       "/api/rooms",
			identity:     "alice",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "not found",
			target:       "/api/rooms?id=r1",
			identity:     "alice",
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "not a member",
			target:       "/api/rooms?id=r1",
			identity:     "eve",
			room:         room,
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			mockDb := &database.MockChatRepository{}
			mockDb.On("GetRoomByExternalId", "r1").Return(tc.room, nil)
			s := newTestApp(t, mockDb)

			rr := httptest.NewRecorder()
			s.getRoom(rr, authedRequest(http.MethodGet, tc.target, "", tc.identity))

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code")
		})
	}
}

func TestChatListHandler(t *testing.T) {
	t.Run("success with default status", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("ListRoomsByUser", "alice", types.MembershipAccepted).Return([]types.Room{
			{Id: 1, ExternalId: "r1", Name: "Team", Kind: types.RoomKindGroup},
		}, nil)
		mockDb.On("LatestMessageByRoom", "r1").Return(&types.Message{Id: 3, RoomId: "r1", Body: "hi"}, nil)
		mockDb.On("CountUnseenByRoom", "r1", "alice").Return(2, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		s.chatList(rr, authedRequest(http.MethodGet, "/api/chats", "", "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected 200")

		var chats []types.ChatSummary
		assert.Nil(t, json.NewDecoder(rr.Body).Decode(&chats), "expected chat list body")
		assert.Len(t, chats, 1, "expected one chat")
		assert.Equal(t, 2, chats[0].UnseenCount, "expected unseen count")
		assert.Equal(t, "hi", chats[0].LatestMessage.Body, "expected latest message")
		mockDb.AssertExpectations(t)
	})

	t.Run("explicit status", func(t *testing.T) {
		mockDb := &database.MockChatRepository{}
		mockDb.On("ListRoomsByUser", "alice", types.MembershipRequested).Return([]types.Room{}, nil)
		s := newTestApp(t, mockDb)

		rr := httptest.NewRecorder()
		s.chatList(rr, authedRequest(http.MethodGet, "/api/chats?status=requested", "", "alice"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected 200")
		mockDb.AssertExpectations(t)
	})

	t.Run("invalid status", func(t *testing.T) {
		s := newTestApp(t, &database.MockChatRepository{})

		rr := httptest.NewRecorder()
		s.chatList(rr, authedRequest(http.MethodGet, "/api/chats?status=banned", "", "alice"))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected 400")
	})
}

func TestServeWsRejectsBadCredentials(t *testing.T) {
	s := newTestApp(t, &database.MockChatRepository{})

	t.Run("no credential", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.serveWs(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})

	t.Run("bad token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.serveWs(rr, httptest.NewRequest(http.MethodGet, "/ws?token=not-a-jwt", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})
}

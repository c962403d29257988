package server

import (
	"fmt"
	"log"

	"github.com/teris-io/shortid"

	"github.com/jmcardle/go-chatserver/internal/database"
	"github.com/jmcardle/go-chatserver/internal/types"
)

// RoomStore is the room membership authority: it owns the create/add
// validation rules and is the gate for membership checks. Durable state
// lives in the repository; rooms are soft-deleted only.
type RoomStore struct {
	log *log.Logger
	db  database.ChatRepository
}

func NewRoomStore(logger *log.Logger, db database.ChatRepository) *RoomStore {
	return &RoomStore{log: logger, db: db}
}

func (s *RoomStore) CreateRoom(kind types.RoomKind, name, image, creatorId string, participantIds []string) (*types.Room, error) {
	seen := make(map[string]struct{}, len(participantIds))
	for _, id := range participantIds {
		if id == creatorId {
			return nil, types.NewInvalidArgument("creator cannot be listed as a participant")
		}
		if _, dup := seen[id]; dup {
			return nil, types.NewConflict(fmt.Sprintf("duplicate participant %q", id))
		}
		seen[id] = struct{}{}
	}

	switch kind {
	case types.RoomKindDirect:
		if len(participantIds) != 1 {
			return nil, types.NewConflict("direct room requires exactly one participant")
		}
		if name != "" {
			return nil, types.NewInvalidArgument("direct room cannot have a name")
		}
		existing, err := s.db.FindDirectRoom(creatorId, participantIds[0])
		if err != nil {
			return nil, types.NewInternal(err)
		}
		if existing != nil {
			return nil, types.NewConflict("direct room already exists")
		}
	case types.RoomKindGroup:
		if name == "" {
			return nil, types.NewInvalidArgument("group room requires a name")
		}
	default:
		return nil, types.NewInvalidArgument(fmt.Sprintf("unknown room kind %q", kind))
	}

	participants := make([]types.Participant, 0, len(participantIds)+1)
	for _, id := range participantIds {
		participants = append(participants, types.Participant{
			UserId: id,
			Status: types.MembershipRequested,
		})
	}
	// The creator is always a participant, accepted and sole initial admin.
	participants = append(participants, types.Participant{
		UserId: creatorId,
		Status: types.MembershipAccepted,
	})

	externalId, err := shortid.Generate()
	if err != nil {
		return nil, types.NewInternal(err)
	}

	room, err := s.db.CreateRoom(database.CreateRoomParams{
		ExternalId:   externalId,
		Name:         name,
		Image:        image,
		Kind:         kind,
		Participants: participants,
		Admins:       []string{creatorId},
		CreatedBy:    creatorId,
	})
	if err != nil {
		return nil, types.NewInternal(err)
	}

	return room, nil
}

func (s *RoomStore) AddParticipants(roomId, requesterId string, userIds []string) (*types.Room, error) {
	room, err := s.GetRoom(roomId)
	if err != nil {
		return nil, err
	}

	if room.Kind != types.RoomKindGroup || !room.IsAdmin(requesterId) {
		return nil, types.NewUnauthorized("only a group room admin can add participants")
	}

	if len(userIds) == 0 {
		return nil, types.NewInvalidArgument("no participants given")
	}

	seen := make(map[string]struct{}, len(userIds))
	for _, id := range userIds {
		if id == requesterId {
			return nil, types.NewConflict("requester cannot add themselves")
		}
		if _, dup := seen[id]; dup {
			return nil, types.NewConflict(fmt.Sprintf("duplicate participant %q", id))
		}
		seen[id] = struct{}{}
		if room.IsMember(id) {
			return nil, types.NewConflict(fmt.Sprintf("user %q is already a participant", id))
		}
	}

	participants := make([]types.Participant, 0, len(userIds))
	for _, id := range userIds {
		participants = append(participants, types.Participant{
			UserId: id,
			Status: types.MembershipRequested,
		})
	}

	updated, err := s.db.AddParticipants(room.Id, requesterId, participants)
	if err != nil {
		return nil, types.NewInternal(err)
	}
	if updated == nil {
		// The room existed a moment ago, so the guarded append refused a
		// userId a concurrent request already inserted.
		return nil, types.NewConflict("room membership changed concurrently")
	}

	return updated, nil
}

func (s *RoomStore) GetRoom(roomId string) (*types.Room, error) {
	room, err := s.db.GetRoomByExternalId(roomId)
	if err != nil {
		return nil, types.NewInternal(err)
	}
	if room == nil {
		return nil, types.NewNotFound("room not found")
	}
	return room, nil
}

// IsMember reports whether a participant record with userId exists in the
// room, regardless of membership status.
func (s *RoomStore) IsMember(roomId, userId string) (bool, error) {
	room, err := s.GetRoom(roomId)
	if err != nil {
		return false, err
	}
	return room.IsMember(userId), nil
}

// ChatList returns the user's rooms with the given membership status, each
// with its latest message and the user's unseen count.
func (s *RoomStore) ChatList(userId string, status types.MembershipStatus) ([]types.ChatSummary, error) {
	rooms, err := s.db.ListRoomsByUser(userId, status)
	if err != nil {
		return nil, types.NewInternal(err)
	}

	summaries := make([]types.ChatSummary, 0, len(rooms))
	for _, room := range rooms {
		latest, err := s.db.LatestMessageByRoom(room.ExternalId)
		if err != nil {
			return nil, types.NewInternal(err)
		}

		unseen, err := s.db.CountUnseenByRoom(room.ExternalId, userId)
		if err != nil {
			return nil, types.NewInternal(err)
		}

		summaries = append(summaries, types.ChatSummary{
			Room:          room,
			LatestMessage: latest,
			UnseenCount:   unseen,
		})
	}

	return summaries, nil
}

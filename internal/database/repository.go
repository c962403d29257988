package database

import (
	"github.com/jmcardle/go-chatserver/internal/types"
)

// ChatRepository is the durable storage capability consumed by the core:
// document-level CRUD on rooms and messages, a field-level atomic update for
// receipt status, and indexed queries by room and user. Methods that look up
// a single record return (nil, nil) when the record is absent.
type ChatRepository interface {
	Ping() error
	CreateRoom(params CreateRoomParams) (*types.Room, error)
	GetRoomByExternalId(externalId string) (*types.Room, error)
	FindDirectRoom(userA, userB string) (*types.Room, error)
	AddParticipants(roomId int, updatedBy string, participants []types.Participant) (*types.Room, error)
	ListRoomsByUser(userId string, status types.MembershipStatus) ([]types.Room, error)
	CreateMessage(params CreateMessageParams) (*types.Message, error)
	GetMessageById(id int) (*types.Message, error)
	ListMessagesByRoom(roomExternalId string) ([]types.Message, error)
	LatestMessageByRoom(roomExternalId string) (*types.Message, error)
	CountUnseenByRoom(roomExternalId, userId string) (int, error)
	SetReceiptStatus(messageId int, userId string, status types.ReceiptStatus) error
}

type CreateRoomParams struct {
	ExternalId   string
	Name         string
	Image        string
	Kind         types.RoomKind
	Participants []types.Participant
	Admins       []string
	CreatedBy    string
}

type CreateMessageParams struct {
	RoomId       int
	SenderId     string
	Body         string
	RecipientIds []string
}

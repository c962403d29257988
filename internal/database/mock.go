package database

import (
	"github.com/stretchr/testify/mock"

	"github.com/jmcardle/go-chatserver/internal/types"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (*types.Room, error) {
	args := m.Called(params)
	if room, ok := args.Get(0).(*types.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) GetRoomByExternalId(externalId string) (*types.Room, error) {
	args := m.Called(externalId)
	if room, ok := args.Get(0).(*types.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) FindDirectRoom(userA, userB string) (*types.Room, error) {
	args := m.Called(userA, userB)
	if room, ok := args.Get(0).(*types.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) AddParticipants(roomId int, updatedBy string, participants []types.Participant) (*types.Room, error) {
	args := m.Called(roomId, updatedBy, participants)
	if room, ok := args.Get(0).(*types.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) ListRoomsByUser(userId string, status types.MembershipStatus) ([]types.Room, error) {
	args := m.Called(userId, status)
	if rooms, ok := args.Get(0).([]types.Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (*types.Message, error) {
	args := m.Called(params)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) GetMessageById(id int) (*types.Message, error) {
	args := m.Called(id)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) ListMessagesByRoom(roomExternalId string) ([]types.Message, error) {
	args := m.Called(roomExternalId)
	if msgs, ok := args.Get(0).([]types.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) LatestMessageByRoom(roomExternalId string) (*types.Message, error) {
	args := m.Called(roomExternalId)
	if msg, ok := args.Get(0).(*types.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChatRepository) CountUnseenByRoom(roomExternalId, userId string) (int, error) {
	args := m.Called(roomExternalId, userId)
	return args.Int(0), args.Error(1)
}

func (m *MockChatRepository) SetReceiptStatus(messageId int, userId string, status types.ReceiptStatus) error {
	args := m.Called(messageId, userId, status)
	return args.Error(0)
}

package stats

import "github.com/stretchr/testify/mock"

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) ConnectionOpened() {
	m.Called()
}

func (m *MockStatsProvider) ConnectionClosed() {
	m.Called()
}

func (m *MockStatsProvider) MessageSent() {
	m.Called()
}

func (m *MockStatsProvider) ReceiptTransition(status string) {
	m.Called(status)
}

func (m *MockStatsProvider) RoomJoined() {
	m.Called()
}

func (m *MockStatsProvider) PushFailed() {
	m.Called()
}

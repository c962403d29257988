package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmcardle/go-chatserver/internal/testutil"
)

func TestClientIdentityAndConnectionId(t *testing.T) {
	cs, _ := newTestServer(t)

	c1 := NewClient("alice", nil, cs, testutil.TestLogger(t))
	c2 := NewClient("alice", nil, cs, testutil.TestLogger(t))

	assert.Equal(t, "alice", c1.Identity(), "expected identity")
	assert.NotEmpty(t, c1.ConnectionId(), "expected a connection id")
	assert.NotEqual(t, c1.ConnectionId(), c2.ConnectionId(), "expected distinct connection ids per connect")
}

func TestClientSetCurrentRoom(t *testing.T) {
	cs, _ := newTestServer(t)
	c := NewClient("alice", nil, cs, testutil.TestLogger(t))

	assert.Equal(t, "", c.CurrentRoom(), "expected no initial subscription")

	prev := c.SetCurrentRoom("r1")
	assert.Equal(t, "", prev, "expected empty previous room")
	assert.Equal(t, "r1", c.CurrentRoom(), "expected subscription set")

	prev = c.SetCurrentRoom("r2")
	assert.Equal(t, "r1", prev, "expected previous room returned")
	assert.Equal(t, "r2", c.CurrentRoom(), "expected subscription replaced")
}

func TestQueueMessage(t *testing.T) {
	cs, _ := newTestServer(t)
	c := NewClient("alice", nil, cs, testutil.TestLogger(t))

	assert.True(t, c.queueMessage(OkResponse(1, "ok")), "expected enqueue to succeed")

	for i := 0; i < cap(c.send); i++ {
		c.queueMessage(OkResponse(i, "fill"))
	}
	assert.False(t, c.queueMessage(OkResponse(2, "overflow")), "expected full queue to drop the message")
}

func TestDispatchUnknownEvent(t *testing.T) {
	cs, _ := newTestServer(t)
	c := NewClient("alice", nil, cs, testutil.TestLogger(t))

	c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 7}})

	msgs := drain(c)
	assert.Len(t, msgs, 1, "expected a failure response")
	assert.False(t, msgs[0].Response.Success, "expected failure")
	assert.Equal(t, "unknown event", msgs[0].Response.Message, "expected unknown event message")
	assert.Equal(t, 7, msgs[0].Id, "expected response correlated to the event id")
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	cs, _ := newTestServer(t)
	c := NewClient("alice", nil, cs, testutil.TestLogger(t))
	c.engine = nil

	c.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 3},
		Join:        &Join{RoomId: "r1"},
	})

	msgs := drain(c)
	assert.Len(t, msgs, 1, "expected a failure response instead of a crash")
	assert.False(t, msgs[0].Response.Success, "expected failure")
	assert.Equal(t, "internal error", msgs[0].Response.Message, "expected generic failure message")
}

func TestRegisterAndDeregisterClient(t *testing.T) {
	cs, _ := newTestServer(t)

	c := NewClient("alice", nil, cs, testutil.TestLogger(t))
	cs.RegisterClient(c)

	_, ok := cs.Presence.Lookup("alice")
	assert.True(t, ok, "expected presence registration on connect")

	msgs := drain(c)
	assert.Len(t, msgs, 1, "expected the initial summary push")
	assert.NotNil(t, msgs[0].Notification.Summary, "expected a summary notification")
	assert.Equal(t, 0, msgs[0].Notification.Summary.TotalUnreadCount, "expected empty summary for a fresh user")

	cs.DeregisterClient(c)
	cs.clientsLock.Lock()
	_, tracked := cs.clients[c]
	cs.clientsLock.Unlock()
	assert.False(t, tracked, "expected client removed from the set")
}

package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id string
}

func (f *fakeConn) ConnectionId() string { return f.id }

func TestRegisterAndLookup(t *testing.T) {
	idx := NewIndex()

	_, ok := idx.Lookup("alice")
	assert.False(t, ok, "expected no entry before registration")

	conn := &fakeConn{id: "conn-1"}
	idx.Register("alice", conn)

	got, ok := idx.Lookup("alice")
	assert.True(t, ok, "expected entry after registration")
	assert.Equal(t, conn, got, "expected lookup to return the registered handle")
	assert.Equal(t, 1, idx.Len(), "expected one registered identity")
}

func TestRegisterOverwritesPriorConnection(t *testing.T) {
	idx := NewIndex()

	old := &fakeConn{id: "conn-1"}
	idx.Register("alice", old)

	replacement := &fakeConn{id: "conn-2"}
	idx.Register("alice", replacement)

	got, ok := idx.Lookup("alice")
	assert.True(t, ok, "expected entry after re-registration")
	assert.Equal(t, replacement, got, "expected last writer to win on reconnect")
}

func TestUnregister(t *testing.T) {
	t.Run("removes matching entry", func(t *testing.T) {
		idx := NewIndex()
		conn := &fakeConn{id: "conn-1"}
		idx.Register("alice", conn)

		idx.Unregister("alice", conn)

		_, ok := idx.Lookup("alice")
		assert.False(t, ok, "expected entry to be removed")
	})

	t.Run("stale disconnect does not clobber newer connection", func(t *testing.T) {
		idx := NewIndex()
		old := &fakeConn{id: "conn-1"}
		idx.Register("alice", old)

		// Reconnect before the old connection's cleanup runs.
		replacement := &fakeConn{id: "conn-2"}
		idx.Register("alice", replacement)

		idx.Unregister("alice", old)

		got, ok := idx.Lookup("alice")
		assert.True(t, ok, "expected newer registration to survive stale unregister")
		assert.Equal(t, replacement, got, "expected lookup to resolve to the newer connection")
	})

	t.Run("no-op for unknown identity", func(t *testing.T) {
		idx := NewIndex()
		idx.Unregister("ghost", &fakeConn{id: "conn-1"})
		assert.Equal(t, 0, idx.Len(), "expected index to remain empty")
	})
}

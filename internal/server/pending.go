package server

import (
	"sort"
	"sync"

	"github.com/jmcardle/go-chatserver/internal/types"
)

type pendingKey struct {
	roomId    string
	messageId int
}

// PendingEntry is one not-yet-seen receipt owned by a user.
type PendingEntry struct {
	RoomId    string
	MessageId int
	Status    types.ReceiptStatus
}

// PendingIndex is the ephemeral projection of receipts whose status is SENT
// or DELIVERED, keyed by recipient. An entry is removed exactly when the
// corresponding durable receipt reaches SEEN. Rebuilt empty on restart, it
// re-fills as messages flow; the durable receipts remain authoritative.
type PendingIndex struct {
	mu      sync.Mutex
	entries map[string]map[pendingKey]types.ReceiptStatus
}

func NewPendingIndex() *PendingIndex {
	return &PendingIndex{
		entries: make(map[string]map[pendingKey]types.ReceiptStatus),
	}
}

// Set records or updates the entry for (userId, roomId, messageId).
func (p *PendingIndex) Set(userId, roomId string, messageId int, status types.ReceiptStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKey, ok := p.entries[userId]
	if !ok {
		byKey = make(map[pendingKey]types.ReceiptStatus)
		p.entries[userId] = byKey
	}
	byKey[pendingKey{roomId: roomId, messageId: messageId}] = status
}

// Delete removes the entry for (userId, roomId, messageId), if present.
func (p *PendingIndex) Delete(userId, roomId string, messageId int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKey, ok := p.entries[userId]
	if !ok {
		return
	}
	delete(byKey, pendingKey{roomId: roomId, messageId: messageId})
	if len(byKey) == 0 {
		delete(p.entries, userId)
	}
}

// DropRoom removes every entry the user holds for roomId. This is an
// explicit scan-and-delete, not a pattern delete against the backing map.
func (p *PendingIndex) DropRoom(userId, roomId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKey, ok := p.entries[userId]
	if !ok {
		return
	}
	for key := range byKey {
		if key.roomId == roomId {
			delete(byKey, key)
		}
	}
	if len(byKey) == 0 {
		delete(p.entries, userId)
	}
}

// Entries returns a snapshot of the user's pending entries, ordered by
// message id for deterministic sweeps.
func (p *PendingIndex) Entries(userId string) []PendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	byKey, ok := p.entries[userId]
	if !ok {
		return nil
	}

	entries := make([]PendingEntry, 0, len(byKey))
	for key, status := range byKey {
		entries = append(entries, PendingEntry{
			RoomId:    key.roomId,
			MessageId: key.messageId,
			Status:    status,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MessageId < entries[j].MessageId
	})

	return entries
}

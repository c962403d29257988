package server

import (
	"log"
	"strings"

	"github.com/jmcardle/go-chatserver/internal/database"
	"github.com/jmcardle/go-chatserver/internal/presence"
	"github.com/jmcardle/go-chatserver/internal/stats"
	"github.com/jmcardle/go-chatserver/internal/types"
)

// DeliveryEngine drives the per-(message, recipient) receipt state machine:
// SENT at append time, DELIVERED once the recipient is reachable, SEEN once
// the recipient is co-present in the room. Transitions are monotonic; the
// engine never downgrades a receipt, and the pending index mirrors every
// receipt that has not yet reached SEEN.
type DeliveryEngine struct {
	log      *log.Logger
	db       database.ChatRepository
	rooms    *RoomStore
	presence *presence.Index
	pending  *PendingIndex
	stats    stats.StatsProvider
}

func NewDeliveryEngine(logger *log.Logger, db database.ChatRepository, rooms *RoomStore,
	idx *presence.Index, pending *PendingIndex, st stats.StatsProvider) *DeliveryEngine {
	return &DeliveryEngine{
		log:      logger,
		db:       db,
		rooms:    rooms,
		presence: idx,
		pending:  pending,
		stats:    st,
	}
}

// Connected registers the client in the presence index and pushes its
// initial unread summary. Connecting proves reachability, so the summary
// sweep promotes any still-SENT entries to DELIVERED.
func (e *DeliveryEngine) Connected(c *Client) {
	e.presence.Register(c.Identity(), c)
	e.stats.ConnectionOpened()
	e.pushSummary(c)
}

// Disconnected removes the client's presence entry, guarded by connection
// id so a reconnect that raced this cleanup keeps its registration.
func (e *DeliveryEngine) Disconnected(c *Client) {
	e.presence.Unregister(c.Identity(), c)
	e.stats.ConnectionClosed()
}

// HandleSend runs the send algorithm for the client's current room:
// validate, append with SENT receipts, resolve each recipient through the
// presence index, broadcast to co-present connections, ack the sender.
func (e *DeliveryEngine) HandleSend(c *Client, msg *ClientMessage) {
	body := strings.TrimSpace(msg.Publish.Message)
	if body == "" {
		c.queueMessage(FailResponse(msg.Id, "message cannot be empty"))
		return
	}

	roomId := c.CurrentRoom()
	if roomId == "" {
		c.queueMessage(FailResponse(msg.Id, "join a room before sending"))
		return
	}

	room, err := e.rooms.GetRoom(roomId)
	if err != nil {
		e.failFromError(c, msg.Id, err)
		return
	}
	if !room.IsMember(c.Identity()) {
		c.queueMessage(FailResponse(msg.Id, "sender is not a member of the room"))
		return
	}

	recipients := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.UserId == c.Identity() || p.Deleted {
			continue
		}
		recipients = append(recipients, p.UserId)
	}

	stored, err := e.db.CreateMessage(database.CreateMessageParams{
		RoomId:       room.Id,
		SenderId:     c.Identity(),
		Body:         body,
		RecipientIds: recipients,
	})
	if err != nil {
		e.log.Println("create message:", err)
		c.queueMessage(FailResponse(msg.Id, "failed to store message"))
		return
	}
	e.stats.MessageSent()

	for _, recipient := range recipients {
		e.resolveRecipient(stored, recipient, roomId)
	}

	e.broadcast(room, roomId, stored, c)

	c.queueMessage(OkResponse(msg.Id, "message sent"))
}

// resolveRecipient decides the receipt status for one recipient of a fresh
// message. Offline leaves it SENT; online elsewhere promotes to DELIVERED
// and notifies; co-present in the room promotes straight to SEEN, skipping
// DELIVERED entirely.
func (e *DeliveryEngine) resolveRecipient(stored *types.Message, recipient, roomId string) {
	handle, ok := e.presence.Lookup(recipient)
	if !ok {
		e.pending.Set(recipient, roomId, stored.Id, types.ReceiptSent)
		return
	}

	rc, ok := handle.(*Client)
	if !ok {
		e.pending.Set(recipient, roomId, stored.Id, types.ReceiptSent)
		return
	}

	if rc.CurrentRoom() == roomId {
		if err := e.promoteReceipt(stored, recipient, types.ReceiptSeen); err != nil {
			e.log.Println("promote receipt to seen:", err)
		}
		return
	}

	if err := e.promoteReceipt(stored, recipient, types.ReceiptDelivered); err != nil {
		e.log.Println("promote receipt to delivered:", err)
		e.pending.Set(recipient, roomId, stored.Id, types.ReceiptSent)
		return
	}
	e.pending.Set(recipient, roomId, stored.Id, types.ReceiptDelivered)

	if !rc.queueMessage(NewMessagePush(roomId)) {
		e.stats.PushFailed()
	}
	e.pushSummary(rc)
}

// broadcast queues the stored message to every connection currently
// subscribed to the room except the sender's own.
func (e *DeliveryEngine) broadcast(room *types.Room, roomId string, stored *types.Message, sender *Client) {
	push := MessagePush(stored)
	for _, p := range room.Participants {
		if p.UserId == sender.Identity() {
			continue
		}
		handle, ok := e.presence.Lookup(p.UserId)
		if !ok {
			continue
		}
		rc, ok := handle.(*Client)
		if !ok || rc.CurrentRoom() != roomId {
			continue
		}
		if !rc.queueMessage(push) {
			e.stats.PushFailed()
		}
	}
}

// HandleJoin subscribes the client to the room, marks everything addressed
// to it there as SEEN, pushes the updated messages and a fresh summary.
// A connection holds at most one room; joining replaces any previous
// subscription and clears its stale pending keys best-effort.
func (e *DeliveryEngine) HandleJoin(c *Client, msg *ClientMessage) {
	roomId := msg.Join.RoomId

	room, err := e.rooms.GetRoom(roomId)
	if err != nil {
		e.failFromError(c, msg.Id, err)
		return
	}
	if !room.IsMember(c.Identity()) {
		c.queueMessage(FailResponse(msg.Id, "not a member of the room"))
		return
	}

	prev := c.SetCurrentRoom(roomId)
	if prev != "" && prev != roomId {
		e.pending.DropRoom(c.Identity(), prev)
	}
	e.stats.RoomJoined()

	c.queueMessage(OkJoinResponse(msg.Id, roomId))

	e.markRoomSeen(c, roomId)
	e.pushSummary(c)
}

// markRoomSeen promotes every unseen receipt addressed to the client in the
// room to SEEN and pushes the updated messages.
func (e *DeliveryEngine) markRoomSeen(c *Client, roomId string) {
	messages, err := e.db.ListMessagesByRoom(roomId)
	if err != nil {
		e.log.Println("list messages:", err)
		return
	}

	for i := range messages {
		m := &messages[i]
		rec := m.Receipt(c.Identity())
		if rec == nil || rec.Deleted || rec.Status == types.ReceiptSeen {
			continue
		}
		if err := e.promoteReceipt(m, c.Identity(), types.ReceiptSeen); err != nil {
			e.log.Println("promote receipt to seen:", err)
			continue
		}
		e.pending.Delete(c.Identity(), roomId, m.Id)
		if !c.queueMessage(MessagePush(m)) {
			e.stats.PushFailed()
		}
	}
}

// HandleLeave clears the client's room subscription, drops its pending keys
// for that room best-effort, and pushes a fresh summary.
func (e *DeliveryEngine) HandleLeave(c *Client, msg *ClientMessage) {
	roomId := c.CurrentRoom()
	if roomId == "" {
		c.queueMessage(FailResponse(msg.Id, "not in a room"))
		return
	}

	member, err := e.rooms.IsMember(roomId, c.Identity())
	if err != nil {
		e.failFromError(c, msg.Id, err)
		return
	}
	if !member {
		c.queueMessage(FailResponse(msg.Id, "not a member of the room"))
		return
	}

	c.SetCurrentRoom("")
	e.pending.DropRoom(c.Identity(), roomId)

	c.queueMessage(OkResponse(msg.Id, "left room"))
	e.pushSummary(c)
}

// HandleLoadMessages returns the client's current room history in ascending
// creation order.
func (e *DeliveryEngine) HandleLoadMessages(c *Client, msg *ClientMessage) {
	roomId := c.CurrentRoom()
	if roomId == "" {
		c.queueMessage(FailResponse(msg.Id, "join a room before loading messages"))
		return
	}

	member, err := e.rooms.IsMember(roomId, c.Identity())
	if err != nil {
		e.failFromError(c, msg.Id, err)
		return
	}
	if !member {
		c.queueMessage(FailResponse(msg.Id, "not a member of the room"))
		return
	}

	messages, err := e.db.ListMessagesByRoom(roomId)
	if err != nil {
		e.log.Println("list messages:", err)
		c.queueMessage(FailResponse(msg.Id, "failed to load messages"))
		return
	}

	c.queueMessage(OkMessagesResponse(msg.Id, messages))
}

// HandleSummary responds with the client's unread summary. The sweep doubles
// as the SENT to DELIVERED promotion pass: asking for the summary proves the
// client is reachable now.
func (e *DeliveryEngine) HandleSummary(c *Client, msg *ClientMessage) {
	summary := e.Summarize(c.Identity())
	c.queueMessage(OkSummaryResponse(msg.Id, summary))
}

// Summarize counts the user's pending receipts per room and in total,
// promoting every SENT entry encountered to DELIVERED in both the store
// and the pending index.
func (e *DeliveryEngine) Summarize(userId string) *types.UnreadSummary {
	summary := &types.UnreadSummary{
		RoomUnreadCounts: make(map[string]int),
	}

	for _, entry := range e.pending.Entries(userId) {
		if entry.Status == types.ReceiptSent {
			// The entry is a stale snapshot: a concurrent join or
			// co-present send may have promoted the receipt to SEEN
			// already. Re-fetch and go through the monotonic promotion
			// path so the sweep can never downgrade a receipt.
			msg, err := e.db.GetMessageById(entry.MessageId)
			if err != nil {
				e.log.Println("load message for sweep:", err)
				summary.TotalUnreadCount++
				summary.RoomUnreadCounts[entry.RoomId]++
				continue
			}

			var rec *types.Receipt
			if msg != nil {
				rec = msg.Receipt(userId)
			}
			if rec == nil || rec.Deleted || rec.Status == types.ReceiptSeen {
				e.pending.Delete(userId, entry.RoomId, entry.MessageId)
				continue
			}

			if err := e.promoteReceipt(msg, userId, types.ReceiptDelivered); err != nil {
				e.log.Println("promote receipt to delivered:", err)
			} else {
				e.pending.Set(userId, entry.RoomId, entry.MessageId, types.ReceiptDelivered)
			}
		}

		summary.TotalUnreadCount++
		summary.RoomUnreadCounts[entry.RoomId]++
	}

	return summary
}

func (e *DeliveryEngine) pushSummary(c *Client) {
	if !c.queueMessage(SummaryPush(e.Summarize(c.Identity()))) {
		e.stats.PushFailed()
	}
}

// promoteReceipt upgrades the durable receipt for (m, userId) to status and
// mirrors the change on the in-memory copy. Downgrades and repeats are
// no-ops, which keeps transitions monotonic regardless of interleaving.
func (e *DeliveryEngine) promoteReceipt(m *types.Message, userId string, status types.ReceiptStatus) error {
	rec := m.Receipt(userId)
	if rec == nil || rec.Deleted {
		return nil
	}
	if status.Rank() <= rec.Status.Rank() {
		return nil
	}

	if err := e.db.SetReceiptStatus(m.Id, userId, status); err != nil {
		return err
	}

	rec.Status = status
	e.stats.ReceiptTransition(string(status))
	return nil
}

func (e *DeliveryEngine) failFromError(c *Client, id int, err error) {
	switch types.CodeOf(err) {
	case types.CodeNotFound:
		c.queueMessage(FailResponse(id, "room not found"))
	case types.CodeUnauthorized:
		c.queueMessage(FailResponse(id, "not authorized"))
	case types.CodeConflict, types.CodeInvalidArgument:
		c.queueMessage(FailResponse(id, err.Error()))
	default:
		e.log.Println("handler error:", err)
		c.queueMessage(FailResponse(id, "internal error"))
	}
}

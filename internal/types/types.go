package types

import (
	"time"
)

// RoomKind distinguishes two-party direct rooms from named group rooms.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
)

// MembershipStatus is a participant's standing within a room.
type MembershipStatus string

const (
	MembershipRequested MembershipStatus = "requested"
	MembershipAccepted  MembershipStatus = "accepted"
	MembershipRejected  MembershipStatus = "rejected"
	MembershipBlocked   MembershipStatus = "blocked"
)

// ReceiptStatus is the per-recipient delivery state of a message.
type ReceiptStatus string

const (
	ReceiptSent      ReceiptStatus = "sent"
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptSeen      ReceiptStatus = "seen"
)

// Rank orders receipt statuses so transitions can be checked for
// monotonicity: sent < delivered < seen. Unknown statuses rank lowest.
func (s ReceiptStatus) Rank() int {
	switch s {
	case ReceiptSent:
		return 1
	case ReceiptDelivered:
		return 2
	case ReceiptSeen:
		return 3
	}
	return 0
}

type Participant struct {
	UserId  string           `json:"userId"`
	Status  MembershipStatus `json:"status"`
	Deleted bool             `json:"deleted,omitempty"`
}

type Room struct {
	Id           int           `json:"id"`
	ExternalId   string        `json:"roomId"`
	Name         string        `json:"name,omitempty"`
	Image        string        `json:"image,omitempty"`
	Kind         RoomKind      `json:"kind"`
	Participants []Participant `json:"participants"`
	Admins       []string      `json:"admins"`
	CreatedBy    string        `json:"createdBy"`
	UpdatedBy    string        `json:"updatedBy,omitempty"`
	Active       bool          `json:"active"`
	Deleted      bool          `json:"-"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt,omitempty"`
}

// Participant returns the participant record for userId, or nil if the user
// has never been added to the room.
func (r *Room) Participant(userId string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserId == userId {
			return &r.Participants[i]
		}
	}
	return nil
}

// IsMember reports whether a participant record exists for userId,
// regardless of membership status.
func (r *Room) IsMember(userId string) bool {
	return r.Participant(userId) != nil
}

// IsAdmin reports whether userId is one of the room's admins.
func (r *Room) IsAdmin(userId string) bool {
	for _, id := range r.Admins {
		if id == userId {
			return true
		}
	}
	return false
}

type Receipt struct {
	UserId  string        `json:"userId"`
	Status  ReceiptStatus `json:"status"`
	Deleted bool          `json:"deleted,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	RoomId    string    `json:"roomId"`
	SenderId  string    `json:"senderId"`
	Body      string    `json:"body"`
	Receipts  []Receipt `json:"receipts"`
	Active    bool      `json:"active"`
	Deleted   bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Receipt returns the receipt record for userId, or nil if the user was not
// a recipient of the message.
func (m *Message) Receipt(userId string) *Receipt {
	for i := range m.Receipts {
		if m.Receipts[i].UserId == userId {
			return &m.Receipts[i]
		}
	}
	return nil
}

// UnreadSummary aggregates a user's not-yet-seen receipts.
type UnreadSummary struct {
	TotalUnreadCount int            `json:"totalUnreadCount"`
	RoomUnreadCounts map[string]int `json:"roomUnreadCounts"`
}

// ChatSummary is one row of a user's chat list: the room, its most recent
// message if any, and how many messages the user has not yet seen.
type ChatSummary struct {
	Room          Room     `json:"room"`
	LatestMessage *Message `json:"latestMessage,omitempty"`
	UnseenCount   int      `json:"unseenCount"`
}

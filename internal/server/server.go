package server

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jmcardle/go-chatserver/internal/database"
	"github.com/jmcardle/go-chatserver/internal/presence"
	"github.com/jmcardle/go-chatserver/internal/stats"
)

// ChatServer owns the shared chat services: the presence index, the pending
// receipt index, the room store and the delivery engine, plus the set of
// live connections for shutdown.
type ChatServer struct {
	log         *log.Logger
	db          database.ChatRepository
	Rooms       *RoomStore
	Engine      *DeliveryEngine
	Presence    *presence.Index
	stats       stats.StatsProvider
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	eventRate   rate.Limit
	eventBurst  int
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, st stats.StatsProvider,
	eventRate float64, eventBurst int) (*ChatServer, error) {
	idx := presence.NewIndex()
	pending := NewPendingIndex()
	rooms := NewRoomStore(logger, db)

	return &ChatServer{
		log:        logger,
		db:         db,
		Rooms:      rooms,
		Engine:     NewDeliveryEngine(logger, db, rooms, idx, pending, st),
		Presence:   idx,
		stats:      st,
		clients:    make(map[*Client]struct{}),
		eventRate:  rate.Limit(eventRate),
		eventBurst: eventBurst,
	}, nil
}

// RegisterClient adds a freshly authenticated connection and runs the
// connect sequence: presence registration and the initial summary push.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()

	cs.Engine.Connected(c)
}

func (cs *ChatServer) DeregisterClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	delete(cs.clients, c)
}

// Shutdown stops every live connection. The read pumps observe the closed
// sockets and run their normal cleanup, deregistering presence entries.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
		if c.conn != nil {
			c.conn.Close()
		}
	}

	return ctx.Err()
}

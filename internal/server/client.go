package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection: it owns the socket, the authenticated
// identity and the current room subscription, and handles inbound events
// serially. All business decisions are delegated to the delivery engine.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	engine     *DeliveryEngine
	log        *log.Logger
	identity   string
	connId     string
	limiter    *rate.Limiter
	send       chan *ServerMessage
	roomMu     sync.Mutex
	room       string
	stop       chan struct{}
}

func NewClient(identity string, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		engine:     cs.Engine,
		log:        l,
		identity:   identity,
		connId:     uuid.NewString(),
		limiter:    rate.NewLimiter(cs.eventRate, cs.eventBurst),
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

// ConnectionId satisfies presence.Conn. Generated per connect, it is what
// makes conditional unregistration safe across reconnects.
func (c *Client) ConnectionId() string {
	return c.connId
}

func (c *Client) Identity() string {
	return c.identity
}

// CurrentRoom returns the room this connection is subscribed to, or "".
func (c *Client) CurrentRoom() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

// SetCurrentRoom replaces the connection's subscription and returns the
// previous one. A connection is subscribed to at most one room at a time.
func (c *Client) SetCurrentRoom(roomId string) string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	prev := c.room
	c.room = roomId
	return prev
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(FailResponse(0, "invalid message format"))
			continue
		}

		if !c.limiter.Allow() {
			c.queueMessage(FailResponse(msg.Id, "rate limit exceeded"))
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch routes one inbound event. A panicking handler never takes the
// connection down; the client sees a generic failure instead.
func (c *Client) dispatch(msg *ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Printf("panic handling event: %v", r)
			c.queueMessage(FailResponse(msg.Id, "internal error"))
		}
	}()

	switch {
	case msg.Join != nil:
		c.engine.HandleJoin(c, msg)
	case msg.Leave != nil:
		c.engine.HandleLeave(c, msg)
	case msg.Publish != nil:
		c.engine.HandleSend(c, msg)
	case msg.LoadMessages != nil:
		c.engine.HandleLoadMessages(c, msg)
	case msg.Summary != nil:
		c.engine.HandleSummary(c, msg)
	default:
		c.queueMessage(FailResponse(msg.Id, "unknown event"))
	}
}

// queueMessage enqueues msg for the write pump without blocking. A full
// queue drops the push: the recipient is treated as having become
// unreachable and reconciles on its next presence hit.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for %s, dropping message", c.identity)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

func (c *Client) cleanup() {
	c.engine.Disconnected(c)
	c.chatServer.DeregisterClient(c)
	c.stopClient()
}

func (c *Client) String() string {
	return fmt.Sprintf("%s (%s)", c.identity, c.connId)
}

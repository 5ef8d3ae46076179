package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"OrgVerify/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConnState is the lifecycle of a live connection. It only moves forward.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client 代表一个实时连接，只在连接存活期间存在
type Client struct {
	ID string

	actor *models.Actor
	state atomic.Int32
	send  chan Event

	// set while this connection is counted in presence
	presenceHeld atomic.Bool

	roomsMu sync.Mutex
	rooms   []string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     uuid.NewString(),
		send:   make(chan Event, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Authenticate binds the resolved actor. It is only valid while connecting.
func (c *Client) Authenticate(actor *models.Actor) bool {
	if actor == nil || !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.actor = actor
	return true
}

func (c *Client) Actor() *models.Actor {
	return c.actor
}

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) Rooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	return append([]string(nil), c.rooms...)
}

func (c *Client) setRooms(rooms []string) {
	c.roomsMu.Lock()
	c.rooms = rooms
	c.roomsMu.Unlock()
}

// takeRooms returns the joined rooms and forgets them, so leaving is done once.
func (c *Client) takeRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	rooms := c.rooms
	c.rooms = nil
	return rooms
}

// Events is drained by the connection's writer.
func (c *Client) Events() <-chan Event {
	return c.send
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Emit queues ev for this connection only.
func (c *Client) Emit(ev Event) bool {
	return c.enqueue(ev)
}

// enqueue never blocks; a client whose buffer is full is closed.
func (c *Client) enqueue(ev Event) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		log.Warn().Str("client_id", c.ID).Msg("client send buffer full, disconnecting")
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.cancel()
	})
}

package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"OrgVerify/models"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotAuthenticated = errors.New("connection is not authenticated")
	ErrHubClosed        = errors.New("hub is closed")
)

// PresenceTracker records which actors have at least one live connection.
type PresenceTracker interface {
	Online(ctx context.Context, ref models.ActorRef) error
	Offline(ctx context.Context, ref models.ActorRef) error
	List(ctx context.Context) ([]models.ActorRef, error)
}

// Hub is the registry of live connections and the rooms they joined.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	clients  map[*Client]struct{}
	closed   bool
	wg       sync.WaitGroup
	presence PresenceTracker
}

func NewHub(presence PresenceTracker) *Hub {
	return &Hub{
		rooms:    make(map[string]*Room),
		clients:  make(map[*Client]struct{}),
		presence: presence,
	}
}

// Connect joins an authenticated client to its own room and, for support
// admins, the broadcast room.
func (h *Hub) Connect(client *Client) error {
	actor := client.Actor()
	if actor == nil || client.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	rooms := []string{ActorRoom(actor.Ref)}
	if actor.IsSupportAdmin() {
		rooms = append(rooms, BroadcastRoom)
	}
	for _, id := range rooms {
		h.join(id, client)
	}
	// 全部加入后才记录房间列表，Disconnect 拿到的总是完整列表
	client.setRooms(rooms)

	h.trackPresence(actor.Ref, true)
	client.presenceHeld.Store(true)

	if !client.state.CompareAndSwap(int32(StateAuthenticated), int32(StateJoined)) {
		// closed while joining
		h.leaveAll(client)
		h.forget(client)
		if client.presenceHeld.CompareAndSwap(true, false) {
			h.trackPresence(actor.Ref, false)
		}
		return ErrNotAuthenticated
	}

	log.Debug().Str("client_id", client.ID).Str("actor", actor.Ref.String()).Strs("rooms", rooms).Msg("client joined")
	return nil
}

// Disconnect closes the client before leaving its rooms, so nothing queued
// afterwards can reach it. Safe to call more than once.
func (h *Hub) Disconnect(client *Client) {
	client.close()
	h.leaveAll(client)
	h.forget(client)
	if client.presenceHeld.CompareAndSwap(true, false) {
		h.trackPresence(client.Actor().Ref, false)
	}
}

// DeliverToActor fans ev out to every live connection of ref and reports
// how many accepted it.
func (h *Hub) DeliverToActor(ref models.ActorRef, ev Event) int {
	return h.deliver(ActorRoom(ref), ev, "")
}

func (h *Hub) DeliverToBroadcast(ev Event) int {
	return h.deliver(BroadcastRoom, ev, "")
}

// OnlineActors lists actors online across instances, falling back to the
// local registry when no tracker is configured.
func (h *Hub) OnlineActors(ctx context.Context) ([]models.ActorRef, error) {
	if h.presence != nil {
		return h.presence.List(ctx)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	refs := make([]models.ActorRef, 0, len(h.rooms))
	for id := range h.rooms {
		if id == BroadcastRoom {
			continue
		}
		if ref, err := models.ParseActorRef(strings.TrimPrefix(id, "actor:")); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Close disconnects every client, which also clears their presence, then
// stops the remaining rooms. Connect fails afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Disconnect(client)
	}

	h.mu.Lock()
	for id, room := range h.rooms {
		room.cancel()
		delete(h.rooms, id)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) forget(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

func (h *Hub) deliver(roomID string, ev Event, except string) int {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return room.do(roomOp{event: &ev, except: except})
}

func (h *Hub) join(roomID string, client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	room, ok := h.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		h.rooms[roomID] = room
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			room.run()
		}()
	}
	room.members++
	h.mu.Unlock()

	room.do(roomOp{register: client})
}

func (h *Hub) leaveAll(client *Client) {
	for _, id := range client.takeRooms() {
		h.leave(id, client)
	}
}

func (h *Hub) leave(roomID string, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	room.members--
	empty := room.members <= 0
	if empty {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	room.do(roomOp{unregister: client})
	if empty {
		room.cancel()
	}
}

func (h *Hub) trackPresence(ref models.ActorRef, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var err error
	if online {
		err = h.presence.Online(ctx, ref)
	} else {
		err = h.presence.Offline(ctx, ref)
	}
	if err != nil {
		log.Error().Err(err).Str("actor", ref.String()).Bool("online", online).Msg("failed to update presence")
	}
}

package realtime

import (
	"context"

	"OrgVerify/models"
)

const BroadcastRoom = "admin-broadcast"

// ActorRoom is the own-id room every connection of ref joins.
func ActorRoom(ref models.ActorRef) string {
	return "actor:" + ref.String()
}

type roomOp struct {
	register   *Client
	unregister *Client
	event      *Event
	except     string
	done       chan int
}

// Room owns its member set. All membership changes and deliveries pass
// through one inbox and are applied in arrival order by run.
type Room struct {
	ID      string
	members int // guarded by Hub.mu

	clients map[string]*Client // owned by run
	inbox   chan roomOp
	ctx     context.Context
	cancel  context.CancelFunc
}

func newRoom(id string) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		ID:      id,
		clients: make(map[string]*Client),
		inbox:   make(chan roomOp, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// 房间的核心消息分发循环
func (r *Room) run() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case op := <-r.inbox:
			op.done <- r.apply(op)
		}
	}
}

func (r *Room) apply(op roomOp) int {
	switch {
	case op.register != nil:
		r.clients[op.register.ID] = op.register
		return len(r.clients)
	case op.unregister != nil:
		delete(r.clients, op.unregister.ID)
		return len(r.clients)
	case op.event != nil:
		delivered := 0
		for id, client := range r.clients {
			if id == op.except {
				continue
			}
			if client.enqueue(*op.event) {
				delivered++
			}
		}
		return delivered
	}
	return 0
}

// do hands op to the room and waits for it to be applied. A stopped room
// applies nothing and reports zero.
func (r *Room) do(op roomOp) int {
	op.done = make(chan int, 1)
	select {
	case r.inbox <- op:
	case <-r.ctx.Done():
		return 0
	}
	select {
	case n := <-op.done:
		return n
	case <-r.ctx.Done():
		return 0
	}
}

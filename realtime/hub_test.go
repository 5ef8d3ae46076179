package realtime

import (
	"context"
	"sync"
	"testing"

	"OrgVerify/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePresence struct {
	mu     sync.Mutex
	online map[models.ActorRef]int
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[models.ActorRef]int)}
}

func (f *fakePresence) Online(_ context.Context, ref models.ActorRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[ref]++
	return nil
}

func (f *fakePresence) Offline(_ context.Context, ref models.ActorRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[ref]--
	if f.online[ref] <= 0 {
		delete(f.online, ref)
	}
	return nil
}

func (f *fakePresence) List(context.Context) ([]models.ActorRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]models.ActorRef, 0, len(f.online))
	for ref := range f.online {
		refs = append(refs, ref)
	}
	return refs, nil
}

func endUser(id uint) *models.Actor {
	return &models.Actor{Ref: models.ActorRef{Kind: models.KindEndUser, ID: id}, Role: models.RoleUser}
}

func supportAdmin(id uint) *models.Actor {
	return &models.Actor{Ref: models.ActorRef{Kind: models.KindSupportAdmin, ID: id}, Role: models.RoleAdmin}
}

func connect(t *testing.T, h *Hub, actor *models.Actor) *Client {
	t.Helper()
	c := NewClient(16)
	require.True(t, c.Authenticate(actor))
	require.NoError(t, h.Connect(c))
	return c
}

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func onlineHere(t *testing.T, h *Hub, ref models.ActorRef) bool {
	t.Helper()
	refs, err := h.OnlineActors(context.Background())
	require.NoError(t, err)
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

func TestConnectRequiresAuthentication(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	c := NewClient(4)
	assert.Equal(t, StateConnecting, c.State())
	assert.ErrorIs(t, h.Connect(c), ErrNotAuthenticated)

	assert.False(t, c.Authenticate(nil))
	require.True(t, c.Authenticate(endUser(1)))
	assert.False(t, c.Authenticate(endUser(2)), "authenticate only once")
	assert.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, h.Connect(c))
	assert.Equal(t, StateJoined, c.State())
	h.Disconnect(c)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnectJoinsRooms(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	user := connect(t, h, endUser(1))
	admin := connect(t, h, supportAdmin(7))

	assert.Equal(t, []string{"actor:EndUser:1"}, user.Rooms())
	assert.Equal(t, []string{"actor:SupportAdmin:7", BroadcastRoom}, admin.Rooms())

	assert.Equal(t, 1, h.DeliverToBroadcast(Event{Type: OutNewConversation}))
	assert.Empty(t, drain(user))
	assert.Len(t, drain(admin), 1)
}

func TestDeliverToEveryConnectionOfActor(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ref := models.ActorRef{Kind: models.KindEndUser, ID: 3}
	a := connect(t, h, endUser(3))
	b := connect(t, h, endUser(3))
	other := connect(t, h, endUser(4))

	n := h.DeliverToActor(ref, Event{Type: OutReceiveMessage, Payload: "hi"})
	assert.Equal(t, 2, n)
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(other))

	assert.Zero(t, h.DeliverToActor(models.ActorRef{Kind: models.KindEndUser, ID: 99}, Event{Type: OutTyping}))
}

func TestDisconnectStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ref := models.ActorRef{Kind: models.KindEndUser, ID: 5}
	c := connect(t, h, endUser(5))
	require.True(t, onlineHere(t, h, ref))

	h.Disconnect(c)
	h.Disconnect(c)

	assert.False(t, onlineHere(t, h, ref))
	assert.Zero(t, h.DeliverToActor(ref, Event{Type: OutReceiveMessage}))
	assert.False(t, c.Emit(Event{Type: OutError}))
	assert.Empty(t, drain(c))

	again := connect(t, h, endUser(5))
	assert.Equal(t, 1, h.DeliverToActor(ref, Event{Type: OutReceiveMessage}))
	assert.Len(t, drain(again), 1)
}

func TestDeliveryPreservesOrder(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ref := models.ActorRef{Kind: models.KindEndUser, ID: 8}
	c := NewClient(200)
	require.True(t, c.Authenticate(endUser(8)))
	require.NoError(t, h.Connect(c))

	for i := 0; i < 100; i++ {
		require.Equal(t, 1, h.DeliverToActor(ref, Event{Type: OutReceiveMessage, Payload: i}))
	}
	got := drain(c)
	require.Len(t, got, 100)
	for i, ev := range got {
		assert.Equal(t, i, ev.Payload)
	}
}

func TestFullBufferClosesClient(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ref := models.ActorRef{Kind: models.KindEndUser, ID: 9}
	c := NewClient(1)
	require.True(t, c.Authenticate(endUser(9)))
	require.NoError(t, h.Connect(c))

	assert.Equal(t, 1, h.DeliverToActor(ref, Event{Type: OutReceiveMessage}))
	assert.Zero(t, h.DeliverToActor(ref, Event{Type: OutReceiveMessage}))
	assert.Equal(t, StateClosed, c.State())

	select {
	case <-c.Done():
	default:
		t.Fatal("client should be closed")
	}
	h.Disconnect(c)
}

func TestConcurrentConnectDeliverDisconnect(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ref := models.ActorRef{Kind: models.KindSupportAdmin, ID: 1}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(64)
			c.Authenticate(supportAdmin(1))
			if err := h.Connect(c); err == nil {
				h.Disconnect(c)
			}
		}()
		go func() {
			defer wg.Done()
			h.DeliverToActor(ref, Event{Type: OutTyping})
			h.DeliverToBroadcast(Event{Type: OutNewConversation})
		}()
	}
	wg.Wait()
	assert.False(t, onlineHere(t, h, ref))
}

func TestPresenceTracking(t *testing.T) {
	presence := newFakePresence()
	h := NewHub(presence)
	defer h.Close()

	a := connect(t, h, endUser(1))
	b := connect(t, h, supportAdmin(2))

	refs, err := h.OnlineActors(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ActorRef{a.Actor().Ref, b.Actor().Ref}, refs)

	h.Disconnect(a)
	refs, err = h.OnlineActors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.ActorRef{b.Actor().Ref}, refs)
}

func TestOnlineActorsWithoutTracker(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	connect(t, h, endUser(11))
	connect(t, h, supportAdmin(12))

	refs, err := h.OnlineActors(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ActorRef{
		{Kind: models.KindEndUser, ID: 11},
		{Kind: models.KindSupportAdmin, ID: 12},
	}, refs)
}

func TestDisconnectRacingConnectLeavesNothingBehind(t *testing.T) {
	presence := newFakePresence()
	h := NewHub(presence)
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		c := NewClient(8)
		require.True(t, c.Authenticate(supportAdmin(3)))
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Connect(c)
		}()
		go func() {
			defer wg.Done()
			h.Disconnect(c)
		}()
	}
	wg.Wait()

	h.mu.Lock()
	assert.Empty(t, h.rooms)
	assert.Empty(t, h.clients)
	h.mu.Unlock()

	refs, err := presence.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCloseDisconnectsClients(t *testing.T) {
	presence := newFakePresence()
	h := NewHub(presence)

	user := connect(t, h, endUser(1))
	admin := connect(t, h, supportAdmin(2))

	h.Close()

	for _, c := range []*Client{user, admin} {
		assert.Equal(t, StateClosed, c.State())
		select {
		case <-c.Done():
		default:
			t.Fatal("client should be closed")
		}
	}
	refs, err := presence.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)

	late := NewClient(4)
	require.True(t, late.Authenticate(endUser(3)))
	assert.ErrorIs(t, h.Connect(late), ErrHubClosed)

	// the pumps still call Disconnect once the socket goes away
	h.Disconnect(user)
	h.Close()
	refs, err = presence.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

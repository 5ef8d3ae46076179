package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"OrgVerify/config"
	"OrgVerify/models"
	"OrgVerify/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrateAll(db))
	return db
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func uintPtr(v uint) *uint { return &v }

type fixture struct {
	db        *gorm.DB
	directory *DirectoryService
	messages  *GormConversationStore
	alerts    *GormNotificationStore
}

func newFixture(t *testing.T) *fixture {
	db := newTestDB(t)
	f := &fixture{
		db:        db,
		directory: NewDirectoryService(db, &config.AuthConfig{JWTSecret: "test-secret"}),
		messages:  NewConversationStore(db),
		alerts:    NewNotificationStore(db),
	}
	clock := stepClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), time.Millisecond)
	f.messages.now = clock
	f.alerts.now = clock
	return f
}

func (f *fixture) user(t *testing.T, name string, companyID *uint) *models.Actor {
	t.Helper()
	role := models.RoleUser
	if companyID != nil {
		role = models.RoleEmployee
	}
	u := models.User{Name: name, Email: name + "@example.com", Role: role, CompanyID: companyID}
	require.NoError(t, f.db.Create(&u).Error)
	return u.Actor()
}

func (f *fixture) admin(t *testing.T, name, role string, available bool, lastAssigned *time.Time) *models.Admin {
	t.Helper()
	a := models.Admin{Name: name, Email: name + "@support.example.com", Role: role, LastAssignedAt: lastAssigned}
	require.NoError(t, f.db.Create(&a).Error)
	// gorm skips zero-valued fields that carry a default tag
	require.NoError(t, f.db.Model(&a).Update("is_available", available).Error)
	a.IsAvailable = available
	return &a
}

func (f *fixture) employee(t *testing.T, name string, companyID uint) *models.Actor {
	t.Helper()
	e := models.Employee{Name: name, CompanyID: companyID}
	require.NoError(t, f.db.Create(&e).Error)
	return e.Actor()
}

type delivered struct {
	ref       models.ActorRef
	broadcast bool
	event     realtime.Event
}

type fakeDeliverer struct {
	mu     sync.Mutex
	online map[models.ActorRef]int
	events []delivered
}

func newFakeDeliverer(online ...models.ActorRef) *fakeDeliverer {
	d := &fakeDeliverer{online: make(map[models.ActorRef]int)}
	for _, ref := range online {
		d.online[ref]++
	}
	return d
}

func (d *fakeDeliverer) DeliverToActor(ref models.ActorRef, ev realtime.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, delivered{ref: ref, event: ev})
	return d.online[ref]
}

func (d *fakeDeliverer) DeliverToBroadcast(ev realtime.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, delivered{broadcast: true, event: ev})
	return 1
}

func (d *fakeDeliverer) ofType(typ string) []delivered {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []delivered
	for _, e := range d.events {
		if e.event.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type published struct {
	topic, key string
	value      interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, key: key, value: value})
	return p.err
}

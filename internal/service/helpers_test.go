package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/listenroom/config"
	"github.com/vogiaan1904/listenroom/internal/catalog"
	"github.com/vogiaan1904/listenroom/internal/delivery/kafka"
	"github.com/vogiaan1904/listenroom/internal/models"
	repository "github.com/vogiaan1904/listenroom/internal/repository/redis"
	"github.com/vogiaan1904/listenroom/pkg/logger"
)

type roomMsg struct {
	RoomID string
	Except string
	Msg    models.Message
}

type connMsg struct {
	ConnID string
	Msg    models.Message
}

type fakePublisher struct {
	mu         sync.Mutex
	conns      map[string]map[string]map[string]bool // room -> user -> conn
	broadcasts []roomMsg
	unicasts   []connMsg
	closed     []string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{conns: make(map[string]map[string]map[string]bool)}
}

func (f *fakePublisher) Subscribe(roomID, userID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conns[roomID] == nil {
		f.conns[roomID] = make(map[string]map[string]bool)
	}
	if f.conns[roomID][userID] == nil {
		f.conns[roomID][userID] = make(map[string]bool)
	}
	f.conns[roomID][userID][connID] = true
}

func (f *fakePublisher) Unsubscribe(roomID, userID, connID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := f.conns[roomID]
	if users == nil {
		return 0
	}
	if connID == "" {
		delete(users, userID)
		return 0
	}
	delete(users[userID], connID)
	return len(users[userID])
}

func (f *fakePublisher) Broadcast(roomID string, msg models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, roomMsg{RoomID: roomID, Msg: msg})
}

func (f *fakePublisher) BroadcastExcept(roomID, userID string, msg models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, roomMsg{RoomID: roomID, Except: userID, Msg: msg})
}

func (f *fakePublisher) Send(connID string, msg models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unicasts = append(f.unicasts, connMsg{ConnID: connID, Msg: msg})
}

func (f *fakePublisher) CloseRoom(roomID string, msg models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, roomID)
	f.closed = append(f.closed, roomID)
}

func (f *fakePublisher) events(event string) []roomMsg {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []roomMsg
	for _, b := range f.broadcasts {
		if b.Msg.Event == event {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakePublisher) lastSync(t *testing.T) models.SyncEvent {
	t.Helper()

	syncs := f.events(models.EventPlaybackSync)
	require.NotEmpty(t, syncs)
	ev, ok := syncs[len(syncs)-1].Msg.Data.(models.SyncEvent)
	require.True(t, ok)
	return ev
}

func (f *fakePublisher) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

type fakeProducer struct {
	mu          sync.Mutex
	created     []kafka.RoomCreatedEvent
	closed      []kafka.RoomClosedEvent
	joined      []kafka.ParticipantJoinedEvent
	left        []kafka.ParticipantLeftEvent
	hostChanged []kafka.HostChangedEvent
}

func (p *fakeProducer) PublishRoomCreated(_ context.Context, e kafka.RoomCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *fakeProducer) PublishRoomClosed(_ context.Context, e kafka.RoomClosedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, e)
	return nil
}

func (p *fakeProducer) PublishParticipantJoined(_ context.Context, e kafka.ParticipantJoinedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, e)
	return nil
}

func (p *fakeProducer) PublishParticipantLeft(_ context.Context, e kafka.ParticipantLeftEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = append(p.left, e)
	return nil
}

func (p *fakeProducer) PublishHostChanged(_ context.Context, e kafka.HostChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostChanged = append(p.hostChanged, e)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type testEnv struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	queue        repository.QueueRepository
	registry     *Registry
	pub          *fakePublisher
	prod         *fakeProducer
	clock        *clock.Mock
	cfg          config.RoomConfig

	deps        Deps
	roomSvc     RoomService
	playbackSvc PlaybackService
	queueSvc    QueueService
	sweeper     Sweeper
}

type envOption func(*Deps)

func withCatalog(s catalog.Store) envOption {
	return func(d *Deps) { d.Catalog = s }
}

// withRooms wraps the room repository seen by the services. The registry
// keeps reading the real one.
func withRooms(wrap func(repository.RoomRepository) repository.RoomRepository) envOption {
	return func(d *Deps) { d.Rooms = wrap(d.Rooms) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = cli.Close()
	})

	l := logger.NewNop()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	cfg := config.RoomConfig{
		SweepInterval:   2 * time.Second,
		PersistInterval: 10 * time.Second,
		StaleAfter:      90 * time.Second,
		DefaultCapacity: 20,
		MaxCapacity:     100,
		CodeLength:      6,
		PageSize:        20,
	}

	rooms := repository.NewRedisRoomRepository(cli, l)
	env := &testEnv{
		rooms:        rooms,
		participants: repository.NewRedisParticipantRepository(cli, l),
		queue:        repository.NewRedisQueueRepository(cli, l),
		registry:     NewRegistry(rooms),
		pub:          newFakePublisher(),
		prod:         &fakeProducer{},
		clock:        mock,
		cfg:          cfg,
	}

	codes := []string{"AB12CD", "EF34GH", "JK56LM", "NP78QR"}
	next := 0
	d := Deps{
		Rooms:        env.rooms,
		Participants: env.participants,
		Queue:        env.queue,
		Registry:     env.registry,
		Publisher:    env.pub,
		Producer:     env.prod,
		Clock:        mock,
		Logger:       l,
		Config:       cfg,
		CodeGenerator: func(int) (string, error) {
			code := codes[next%len(codes)]
			next++
			return code, nil
		},
	}
	for _, o := range opts {
		o(&d)
	}

	env.build(d)
	return env
}

func (env *testEnv) build(d Deps) {
	env.deps = d
	env.roomSvc = NewRoomService(d)
	env.playbackSvc = NewPlaybackService(d)
	env.queueSvc = NewQueueService(d)
	env.sweeper = NewSweeper(env.roomSvc, env.playbackSvc, env.registry, env.clock, d.Logger, env.cfg)
}

// restart drops every in-memory structure and keeps the Directory, the way a
// new server process would find it.
func (env *testEnv) restart() {
	d := env.deps
	env.registry = NewRegistry(env.rooms)
	env.pub = newFakePublisher()
	d.Registry = env.registry
	d.Publisher = env.pub
	env.build(d)
}

func (env *testEnv) createRoom(t *testing.T, host string, capacity int) *models.Room {
	t.Helper()

	room, err := env.roomSvc.CreateRoom(context.Background(), CreateRoomInput{
		UserID:   host,
		Name:     "Room of " + host,
		IsPublic: true,
		Capacity: capacity,
	})
	require.NoError(t, err)
	return room
}

func (env *testEnv) join(t *testing.T, code, user, conn string) *models.RoomSnapshot {
	t.Helper()

	snap, err := env.roomSvc.Join(context.Background(), JoinInput{Code: code, UserID: user, ConnID: conn})
	require.NoError(t, err)
	return snap
}

func (env *testEnv) role(t *testing.T, roomID, user string) models.Role {
	t.Helper()

	p, err := env.participants.Get(context.Background(), roomID, user)
	require.NoError(t, err)
	require.True(t, p.IsActive, "%s should be active", user)
	return p.Role
}

func ptr[T any](v T) *T {
	return &v
}

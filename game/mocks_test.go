package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"partyrooms/domain"
)

// --- Socket ---

type MockSocket struct {
	mock.Mock
}

func (m *MockSocket) Close(reason string) {
	m.Called(reason)
}

func (m *MockSocket) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockSocket) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSocket) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(d time.Duration) <-chan time.Time {
	args := m.Called(d)
	return args.Get(0).(chan time.Time)
}

// --- Clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// --- Store ---

var errStoreDown = errors.New("store down")

type fakeStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	alarms   map[string]time.Time
	failPut  bool
	failGet  bool
	putCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string][]byte{}, alarms: map[string]time.Time{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errStoreDown
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) Put(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errStoreDown
	}
	s.putCount++
	s.blobs[key] = blob
	return nil
}

func (s *fakeStore) SetAlarm(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms[key] = at
	return nil
}

func (s *fakeStore) DeleteAlarm(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alarms, key)
	return nil
}

func (s *fakeStore) PendingAlarms(_ context.Context) ([]Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alarm, 0, len(s.alarms))
	for k, at := range s.alarms {
		out = append(out, Alarm{Key: k, FireAt: at})
	}
	return out, nil
}

func (s *fakeStore) setFailPut(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = v
}

func (s *fakeStore) alarm(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.alarms[key]
	return at, ok
}

func (s *fakeStore) blob(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blobs[key]
}

// --- Machine ---

// counterMachine is the smallest game: players bump a shared counter, the
// host may arm a deadline that adds 100 when it fires.
type counterMachine struct {
	Head       Header    `json:"header"`
	Count      int       `json:"count"`
	Secret     string    `json:"secret"`
	DeadlineAt time.Time `json:"deadlineAt"`
	Max        int       `json:"max"`
}

type counterView struct {
	Header Header `json:"header"`
	Count  int    `json:"count"`
	Secret string `json:"secret,omitempty"`
}

func (m *counterMachine) Header() *Header         { return &m.Head }
func (m *counterMachine) Deadline() time.Time     { return m.DeadlineAt }
func (m *counterMachine) MaxPlayers() int         { return m.Max }
func (m *counterMachine) Reset(now time.Time)     { m.Count = 0; m.DeadlineAt = time.Time{} }
func (m *counterMachine) View(viewer string) any {
	v := counterView{Header: m.Head, Count: m.Count}
	if m.Head.IsHost(viewer) {
		v.Secret = m.Secret
	}
	return v
}

type armPayload struct {
	InMs int `json:"inMs"`
}

func (m *counterMachine) Apply(_ context.Context, ev Event) (Outcome, error) {
	switch ev := ev.(type) {
	case Joined, Left:
		return Changed(), nil
	case AlarmFired:
		if !Due(m.DeadlineAt, ev.At) {
			return Outcome{}, nil
		}
		m.Count += 100
		m.DeadlineAt = time.Time{}
		return Changed(Broadcast(map[string]string{"type": "boom"})), nil
	case Command:
		switch ev.Type {
		case "inc":
			if !m.Head.IsMember(ev.Sender) {
				return Outcome{}, Unauthorized("join first")
			}
			m.Count++
			return Changed(), nil
		case "arm":
			p, err := Decode[armPayload](ev)
			if err != nil {
				return Outcome{}, err
			}
			m.DeadlineAt = ev.At.Add(time.Duration(p.InMs) * time.Millisecond)
			return Changed(), nil
		case "disarm":
			m.DeadlineAt = time.Time{}
			return Changed(), nil
		case "shout":
			return Outcome{Changed: true, Quiet: true, Events: []Send{Broadcast(map[string]string{"type": "shout"})}}, nil
		}
		return Outcome{}, InvalidPayload("unknown command %q", ev.Type)
	}
	return Outcome{}, nil
}

type counterFactory struct{}

func (counterFactory) Kind() string { return "counter" }

func (counterFactory) New(s Settings, hostID string, now time.Time) Machine {
	return &counterMachine{Head: NewHeader(hostID), Secret: "s3cret", Max: IntSetting(s, "max", 4, 1, 8)}
}

func (counterFactory) Restore(state []byte) (Machine, error) {
	var m counterMachine
	if err := json.Unmarshal(state, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// --- helpers ---

type stubParent struct {
	mu       sync.Mutex
	descs    []RoomDescription
	releases int
}

func (p *stubParent) RequestUpdateDescription(desc RoomDescription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descs = append(p.descs, desc)
}

func (p *stubParent) Release(*Room) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	return true
}

// packet is a decoded outbound frame.
type packet map[string]any

func (p packet) Type() string {
	s, _ := p["type"].(string)
	return s
}

func recv(t *testing.T, c *Client) packet {
	t.Helper()
	select {
	case data := <-c.outbox:
		var p packet
		require.NoError(t, json.Unmarshal(data, &p))
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s: no packet received", c.id)
		return nil
	}
}

// recvType skips packets until one of type typ arrives.
func recvType(t *testing.T, c *Client, typ string) packet {
	t.Helper()
	for {
		p := recv(t, c)
		if p.Type() == typ {
			return p
		}
	}
}

func assertNoPacket(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.outbox:
		t.Fatalf("client %s: unexpected packet %s", c.id, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func send(t *testing.T, r *Room, c *Client, msg string) {
	t.Helper()
	require.True(t, r.Deliver(context.Background(), clientEnvelope{raw: []byte(msg), from: c}))
}

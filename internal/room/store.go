package room

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"locked-study/server/internal/state"
	"locked-study/server/logging"
	loggingLifecycle "locked-study/server/logging/lifecycle"
)

const roomCodeLength = 6

// Info summarises a room for diagnostics.
type Info struct {
	ID        string       `json:"id"`
	Status    state.Status `json:"status"`
	HostID    string       `json:"hostId"`
	Players   int          `json:"players"`
	Connected int          `json:"connected"`
	Tick      uint64       `json:"tick"`
	Pending   int          `json:"pending"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Store is the registry of live rooms keyed by room code.
type Store struct {
	cfg  Config
	deps Deps

	mu      sync.RWMutex
	rooms   map[string]*Room
	ctx     context.Context
	running bool
}

func NewStore(cfg Config, deps Deps) *Store {
	return &Store{
		cfg:   cfg.normalized(),
		deps:  deps.normalized(),
		rooms: make(map[string]*Room),
	}
}

// Config returns the normalized room configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// SetDeliverer installs the fan-out for rooms created afterwards.
func (s *Store) SetDeliverer(d Deliverer) {
	s.mu.Lock()
	s.deps.Deliverer = d
	s.mu.Unlock()
}

// Start runs every current and future room until ctx is cancelled. Without
// Start rooms only advance when Step is called.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx = ctx
	s.running = true
	for _, r := range s.rooms {
		go r.Run(ctx)
	}
}

// NormalizeID canonicalises a user supplied room code.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (s *Store) newCodeLocked() string {
	for {
		code := strings.ReplaceAll(uuid.NewString(), "-", "")[:roomCodeLength]
		if _, exists := s.rooms[code]; !exists {
			return code
		}
	}
}

// CreateRoom opens a lobby and seats hostName as its host.
func (s *Store) CreateRoom(hostName string) (*Room, state.Player, error) {
	s.mu.Lock()
	id := s.newCodeLocked()
	r := New(id, s.cfg, s.deps)
	s.rooms[id] = r
	if s.running {
		go r.Run(s.ctx)
	}
	s.mu.Unlock()

	host, _, err := r.Join(hostName, "")
	if err != nil {
		s.Close(id, "create_failed")
		return nil, state.Player{}, err
	}
	loggingLifecycle.RoomCreated(
		context.Background(),
		logging.ForRoom(s.deps.Publisher, id),
		0,
		logging.PlayerRef(host.ID),
		loggingLifecycle.RoomPayload{HostID: host.ID, Players: 1},
		nil,
	)
	s.deps.Logger.Printf("[rooms] created %s host=%s", id, host.ID)
	return r, host, nil
}

// JoinRoom seats a player in an existing room. A non-empty playerID that is
// already a member rejoins regardless of room status.
func (s *Store) JoinRoom(roomID, name, playerID string) (*Room, state.Player, error) {
	r, ok := s.Room(roomID)
	if !ok {
		return nil, state.Player{}, state.ErrRoomNotFound
	}
	player, _, err := r.Join(name, playerID)
	if err != nil {
		return nil, state.Player{}, err
	}
	return r, player, nil
}

// GetState returns a snapshot of the room.
func (s *Store) GetState(roomID string) (state.Snapshot, error) {
	r, ok := s.Room(roomID)
	if !ok {
		return state.Snapshot{}, state.ErrRoomNotFound
	}
	return r.Snapshot(), nil
}

// Room looks up a live room.
func (s *Store) Room(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[NormalizeID(roomID)]
	return r, ok
}

// Close stops a room and forgets it.
func (s *Store) Close(roomID, reason string) error {
	id := NormalizeID(roomID)
	s.mu.Lock()
	r, ok := s.rooms[id]
	if ok {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
	if !ok {
		return state.ErrRoomNotFound
	}
	snapshot := r.Snapshot()
	r.Close()
	loggingLifecycle.RoomClosed(
		context.Background(),
		logging.ForRoom(s.deps.Publisher, id),
		r.Tick(),
		logging.RoomRef(id),
		loggingLifecycle.RoomPayload{HostID: snapshot.HostID, Players: len(snapshot.Players), Reason: reason},
		nil,
	)
	s.deps.Logger.Printf("[rooms] closed %s (%s)", id, reason)
	return nil
}

// Sweep closes rooms that have had no connected player for longer than the
// empty room timeout and returns their ids.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.RLock()
	var expired []string
	for id, r := range s.rooms {
		if r.IdleFor(now) > s.cfg.EmptyRoomTimeout {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(expired)
	for _, id := range expired {
		s.Close(id, "empty")
	}
	return expired
}

// RunSweeper calls Sweep on every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.deps.Clock())
		}
	}
}

// Rooms lists live rooms ordered by id.
func (s *Store) Rooms() []Info {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		infos = append(infos, Info{
			ID:        r.id,
			Status:    r.state.Status,
			HostID:    r.state.HostID,
			Players:   r.state.PlayerCount(),
			Connected: r.connectedLocked(),
			Tick:      r.tick,
			CreatedAt: r.state.CreatedAt,
		})
		r.mu.Unlock()
		infos[len(infos)-1].Pending = r.Pending()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown closes every room.
func (s *Store) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.Close(id, "shutdown")
	}
}

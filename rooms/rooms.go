package rooms

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"bombtag-matchmaker/config"
	"bombtag-matchmaker/matchmaking"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting RoomStatus = "WAITING"
	StatusStarted RoomStatus = "STARTED"
)

// MinPlayersToStart is the room-play minimum, distinct from the matchmaking
// group minimum.
const MinPlayersToStart = 2

var (
	ErrNameRequired     = errors.New("ROOM_NAME_REQUIRED")
	ErrAlreadyExists    = errors.New("ROOM_ALREADY_EXISTS")
	ErrNotFound         = errors.New("ROOM_NOT_FOUND")
	ErrWrongPassword    = errors.New("WRONG_PASSWORD")
	ErrFullOrStarted    = errors.New("ROOM_FULL_OR_STARTED")
	ErrOnlyHost         = errors.New("ONLY_HOST")
	ErrNotEnoughPlayers = errors.New("NOT_ENOUGH_PLAYERS")
)

// Room is one joinable lobby. All mutable state is guarded by the room's own
// mutex; the service map has its own.
type Room struct {
	mu sync.Mutex

	roomID     string
	hostID     string
	name       string
	maxPlayers int
	password   string
	status     RoomStatus

	hostAddress         string
	hostInternalAddress string
	hostPort            int

	players map[string]matchmaking.Player
	order   []string
}

// Snapshot is an immutable view of a room.
type Snapshot struct {
	RoomID              string
	Name                string
	HostID              string
	Status              RoomStatus
	MaxPlayers          int
	Players             []matchmaking.Player
	HostAddress         string
	HostInternalAddress string
	HostPort            int
}

func (r *Room) RoomID() string { return r.roomID }

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]matchmaking.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			players = append(players, p)
		}
	}
	return Snapshot{
		RoomID:              r.roomID,
		Name:                r.name,
		HostID:              r.hostID,
		Status:              r.status,
		MaxPlayers:          r.maxPlayers,
		Players:             players,
		HostAddress:         r.hostAddress,
		HostInternalAddress: r.hostInternalAddress,
		HostPort:            r.hostPort,
	}
}

func (r *Room) add(p matchmaking.Player) {
	if _, ok := r.players[p.PlayerID]; !ok {
		r.order = append(r.order, p.PlayerID)
	}
	r.players[p.PlayerID] = p
}

func (r *Room) remove(playerID string) {
	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Room) canJoin() bool {
	return r.status == StatusWaiting && len(r.players) < r.maxPlayers
}

// Service is the in-memory room directory, keyed case-insensitively by name.
type Service struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	host  *config.GameHost
}

func NewService(host *config.GameHost) *Service {
	return &Service{
		rooms: make(map[string]*Room),
		host:  host,
	}
}

// Create registers a new room named by the host. The room id is the trimmed
// name; lookups are case-insensitive.
func (s *Service) Create(hostID, name string, maxPlayers int, password, hostAddress string) (*Room, error) {
	roomID := strings.TrimSpace(name)
	if roomID == "" {
		return nil, ErrNameRequired
	}

	if maxPlayers < 2 {
		maxPlayers = 2
	}
	if maxPlayers > 4 {
		maxPlayers = 4
	}

	room := &Room{
		roomID:              roomID,
		hostID:              hostID,
		name:                roomID,
		maxPlayers:          maxPlayers,
		password:            strings.TrimSpace(password),
		status:              StatusWaiting,
		hostAddress:         s.host.ResolvePublicAddress(hostAddress),
		hostInternalAddress: s.host.ResolveInternalAddress(hostAddress),
		hostPort:            s.host.Port,
		players:             make(map[string]matchmaking.Player),
	}

	key := canonicalKey(roomID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[key]; exists {
		return nil, ErrAlreadyExists
	}
	s.rooms[key] = room

	log.Info().Str("room", roomID).Str("host", hostID).Int("maxPlayers", maxPlayers).Msg("rooms: room created")
	return room, nil
}

// Find resolves a room by id or name.
func (s *Service) Find(idOrName string) (*Room, bool) {
	key := canonicalKey(idOrName)
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[key]
	return room, ok
}

// Join adds a player; joining a room you are already in is idempotent.
func (s *Service) Join(room *Room, p matchmaking.Player, password string) error {
	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.players[p.PlayerID]; ok {
		return nil
	}
	if room.password != "" && room.password != strings.TrimSpace(password) {
		return ErrWrongPassword
	}
	if !room.canJoin() {
		return ErrFullOrStarted
	}
	room.add(p)

	log.Info().Str("room", room.roomID).Str("player", p.PlayerID).Msg("rooms: player joined")
	return nil
}

// Leave removes a player. A departing host destroys the room; an emptied room
// is destroyed too.
func (s *Service) Leave(room *Room, playerID string) {
	if room == nil || strings.TrimSpace(playerID) == "" {
		return
	}

	room.mu.Lock()
	if _, ok := room.players[playerID]; !ok {
		room.mu.Unlock()
		return
	}

	wasHost := room.hostID == playerID
	room.remove(playerID)
	destroy := wasHost || len(room.players) == 0
	if destroy {
		room.players = make(map[string]matchmaking.Player)
		room.order = nil
		room.status = StatusWaiting
	} else if room.status == StatusStarted && len(room.players) < MinPlayersToStart {
		room.status = StatusWaiting
	}
	room.mu.Unlock()

	if destroy {
		s.mu.Lock()
		if current, ok := s.rooms[canonicalKey(room.roomID)]; ok && current == room {
			delete(s.rooms, canonicalKey(room.roomID))
		}
		s.mu.Unlock()
		log.Info().Str("room", room.roomID).Str("player", playerID).Msg("rooms: room destroyed on leave")
		return
	}
	log.Info().Str("room", room.roomID).Str("player", playerID).Msg("rooms: player left")
}

// Start flips a room to STARTED. Only the host may start, and only with
// enough players present.
func (s *Service) Start(room *Room, requesterID string, minPlayers int) error {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.hostID != requesterID {
		return ErrOnlyHost
	}
	if len(room.players) < minPlayers {
		return ErrNotEnoughPlayers
	}
	room.status = StatusStarted

	log.Info().Str("room", room.roomID).Str("host", requesterID).Int("players", len(room.players)).Msg("rooms: room started")
	return nil
}

// UpdateHostEndpoint refreshes the advertised host endpoint from a request's
// origin, resolving through the configured game-host policy.
func (s *Service) UpdateHostEndpoint(room *Room, address string, port int) {
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.hostAddress = s.host.ResolvePublicAddress(address)
	room.hostInternalAddress = s.host.ResolveInternalAddress(address)
	room.hostPort = s.host.ResolvePort(port)
}

// StartInfo is the launch payload returned to clients when a room starts.
type StartInfo struct {
	MatchID      string
	Map          string
	Seed         int
	HostPlayerID string
	HostAddress  string
	HostInternal string
	HostPort     int
}

// StartInfoFor builds the launch payload for a requester, picking the
// endpoint side appropriate for their network.
func (s *Service) StartInfoFor(room *Room, requesterAddress string) StartInfo {
	snap := room.Snapshot()
	sel := s.host.SelectForClient(snap.HostAddress, snap.HostInternalAddress, requesterAddress)
	return StartInfo{
		MatchID:      "m_" + strconv.FormatInt(time.Now().UnixMilli(), 10),
		Map:          "MainMap",
		Seed:         123456,
		HostPlayerID: snap.HostID,
		HostAddress:  sel.PreferredAddress,
		HostInternal: sel.InternalAddress,
		HostPort:     snap.HostPort,
	}
}

func canonicalKey(roomID string) string {
	return strings.ToLower(strings.TrimSpace(roomID))
}

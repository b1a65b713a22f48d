package matchmaking

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bombtag-matchmaker/matchtoken"
	"bombtag-matchmaker/metrics"
	"bombtag-matchmaker/registry"

	"github.com/rs/zerolog/log"
)

const (
	// MinPlayers is the group size that starts the grace countdown.
	MinPlayers = 3
	// MaxPlayers fills a group and starts the match immediately.
	MaxPlayers = 4
	// WaitForFourthSeconds is the grace window to admit a late fourth player.
	WaitForFourthSeconds = 5

	allocateRetryDelay = time.Second
)

// TicketStatus is the lifecycle state of one matchmaking ticket.
// QUEUED -> FORMING -> MATCHED, with CANCELLED terminal from any
// non-terminal state.
type TicketStatus string

const (
	StatusQueued    TicketStatus = "QUEUED"
	StatusForming   TicketStatus = "FORMING"
	StatusMatched   TicketStatus = "MATCHED"
	StatusCancelled TicketStatus = "CANCELLED"
)

// Player identifies one queued player.
type Player struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// MatchInfo is the resolved match payload stamped onto every member ticket
// when a group starts.
type MatchInfo struct {
	MatchID             string
	Players             []Player
	HostPlayerID        string
	DedicatedServerID   string
	HostAddress         string
	HostInternalAddress string
	HostPort            int
	QueryPort           int
	StartToken          string
	StartTokenExpiresAt time.Time
}

// QueueStatus is the read-only projection of a ticket handed to callers.
// Position is set only while QUEUED (1-based from the queue head);
// ReadyInSeconds and the partial roster only while FORMING; Match only once
// MATCHED.
type QueueStatus struct {
	TicketID             string
	Status               TicketStatus
	Position             *int
	ReadyInSeconds       *int
	WaitForFourthSeconds int
	MinPlayers           int
	MaxPlayers           int
	Players              []Player
	Match                *MatchInfo
}

type ticket struct {
	id      string
	player  Player
	address string
	status  TicketStatus
	pending *pendingMatch
	match   *MatchInfo
}

type pendingMatch struct {
	matchID   string
	tickets   []*ticket
	deadline  time.Time
	countdown *time.Timer
	createdAt time.Time
}

func (m *pendingMatch) add(t *ticket) {
	m.tickets = append(m.tickets, t)
	t.pending = m
	t.status = StatusForming
}

func (m *pendingMatch) remove(t *ticket) {
	for i, member := range m.tickets {
		if member == t {
			m.tickets = append(m.tickets[:i], m.tickets[i+1:]...)
			return
		}
	}
}

func (m *pendingMatch) players() []Player {
	players := make([]Player, 0, len(m.tickets))
	for _, t := range m.tickets {
		players = append(players, t.player)
	}
	return players
}

// Engine owns the ticket queue and the single in-formation group. Every
// public operation serializes on one mutex; the FIFO/grouping/countdown
// interplay depends on all transitions being totally ordered.
type Engine struct {
	mu       sync.Mutex
	servers  *registry.Registry
	tokens   *matchtoken.Codec
	queue    []*ticket
	byID     map[string]*ticket
	byPlayer map[string]*ticket
	pending  *pendingMatch

	ticketSeq atomic.Int64
	matchSeq  atomic.Int64

	// seams for deterministic tests
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

func New(servers *registry.Registry, tokens *matchtoken.Codec) *Engine {
	return &Engine{
		servers:   servers,
		tokens:    tokens,
		byID:      make(map[string]*ticket),
		byPlayer:  make(map[string]*ticket),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Enqueue places a player in the queue or an in-formation group. A player
// already holding an active ticket gets that ticket's status back; a terminal
// leftover ticket is purged and replaced.
func (e *Engine) Enqueue(playerID, nickname, address string) QueueStatus {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.byPlayer[playerID]; ok {
		if existing.status == StatusMatched || existing.status == StatusCancelled {
			e.removeTicketLocked(existing)
		} else {
			return e.statusLocked(existing, now)
		}
	}

	if strings.TrimSpace(nickname) == "" {
		nickname = playerID
	}

	t := &ticket{
		id:      "t_" + strconv.FormatInt(e.ticketSeq.Add(1), 10),
		player:  Player{PlayerID: playerID, Nickname: nickname},
		address: strings.TrimSpace(address),
		status:  StatusQueued,
	}
	e.byID[t.id] = t
	e.byPlayer[playerID] = t
	metrics.TicketsEnqueuedTotal.Inc()

	e.assignLocked(t, now)

	log.Info().Str("ticket", t.id).Str("player", playerID).Str("status", string(t.status)).Msg("matchmaking: player enqueued")
	return e.statusLocked(t, now)
}

// Status projects a ticket's current state; the ticket must exist and belong
// to the calling player.
func (e *Engine) Status(playerID, ticketID string) (QueueStatus, bool) {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.byID[ticketID]
	if !ok || t.player.PlayerID != playerID {
		return QueueStatus{}, false
	}
	return e.statusLocked(t, now), true
}

// Cancel withdraws a ticket under the same ownership condition as Status.
// A MATCHED ticket cannot be unwound; cancellation then is a no-op that
// returns the resolved status.
func (e *Engine) Cancel(playerID, ticketID string) (QueueStatus, bool) {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.byID[ticketID]
	if !ok || t.player.PlayerID != playerID {
		return QueueStatus{}, false
	}

	switch t.status {
	case StatusMatched:
		return e.statusLocked(t, now), true

	case StatusQueued:
		e.removeFromQueueLocked(t)
		t.status = StatusCancelled
		e.removeTicketLocked(t)
		metrics.TicketsCancelledTotal.Inc()
		log.Info().Str("ticket", t.id).Str("player", playerID).Msg("matchmaking: queued ticket cancelled")
		return e.statusLocked(t, now), true

	case StatusForming:
		if m := t.pending; m != nil {
			m.remove(t)
			t.pending = nil
			t.status = StatusCancelled
			if m.countdown != nil {
				m.countdown.Stop()
			}

			if len(m.tickets) >= MinPlayers {
				// Still viable: restart a fresh full grace window.
				m.deadline = now.Add(WaitForFourthSeconds * time.Second)
				m.countdown = e.scheduleCountdown(m.matchID, WaitForFourthSeconds*time.Second)
				log.Info().Str("match", m.matchID).Int("members", len(m.tickets)).Msg("matchmaking: countdown restarted after cancel")
			} else {
				// Below minimum: dissolve and requeue the remaining members
				// at the front, keeping their relative order.
				remaining := m.tickets
				m.tickets = nil
				e.pending = nil

				for _, other := range remaining {
					other.pending = nil
					other.status = StatusQueued
				}
				e.queue = append(remaining, e.queue...)
				log.Info().Str("match", m.matchID).Int("requeued", len(remaining)).Msg("matchmaking: group dissolved after cancel")

				e.tryPromoteLocked(now)
			}
		}

		e.removeTicketLocked(t)
		metrics.TicketsCancelledTotal.Inc()
		return e.statusLocked(t, now), true

	default:
		t.status = StatusCancelled
		e.removeTicketLocked(t)
		return e.statusLocked(t, now), true
	}
}

// Close stops any in-flight countdown timer. Used on shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil && e.pending.countdown != nil {
		e.pending.countdown.Stop()
	}
}

func (e *Engine) assignLocked(t *ticket, now time.Time) {
	if e.pending != nil && len(e.pending.tickets) < MaxPlayers {
		e.pending.add(t)
		if len(e.pending.tickets) >= MaxPlayers {
			e.startMatchLocked(e.pending, now)
		}
		return
	}

	e.queue = append(e.queue, t)
	e.tryPromoteLocked(now)
}

func (e *Engine) tryPromoteLocked(now time.Time) {
	defer func() { metrics.QueueDepth.Set(float64(len(e.queue))) }()

	if e.pending != nil || len(e.queue) < MinPlayers {
		return
	}

	m := &pendingMatch{
		matchID:   "m_" + strconv.FormatInt(e.matchSeq.Add(1), 10),
		createdAt: now,
	}
	for i := 0; i < MinPlayers; i++ {
		next := e.queue[0]
		e.queue = e.queue[1:]
		m.add(next)
	}

	m.deadline = now.Add(WaitForFourthSeconds * time.Second)
	m.countdown = e.scheduleCountdown(m.matchID, WaitForFourthSeconds*time.Second)
	e.pending = m

	log.Info().Str("match", m.matchID).Int("members", len(m.tickets)).Int("graceSeconds", WaitForFourthSeconds).Msg("matchmaking: group forming")
}

// scheduleCountdown arms a timer that re-checks the live pending match id
// before acting, so a firing that lost the race with a cancellation is a
// no-op. Match ids are never reused.
func (e *Engine) scheduleCountdown(matchID string, d time.Duration) *time.Timer {
	return e.afterFunc(d, func() {
		e.onCountdownFinished(matchID)
	})
}

func (e *Engine) onCountdownFinished(matchID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil && e.pending.matchID == matchID {
		e.startMatchLocked(e.pending, e.now())
	}
}

func (e *Engine) startMatchLocked(m *pendingMatch, now time.Time) {
	if m.countdown != nil {
		m.countdown.Stop()
	}

	server, ok := e.servers.AllocateReady()
	if !ok {
		// Server availability fluctuates; keep the group FORMING and retry
		// shortly instead of failing the match.
		metrics.AllocationsTotal.WithLabelValues("retry").Inc()
		m.deadline = now.Add(allocateRetryDelay)
		m.countdown = e.scheduleCountdown(m.matchID, allocateRetryDelay)
		log.Warn().Str("match", m.matchID).Dur("retryIn", allocateRetryDelay).Msg("matchmaking: no READY server, allocation deferred")
		return
	}
	metrics.AllocationsTotal.WithLabelValues("success").Inc()

	players := m.players()
	hostPlayerID := ""
	if len(m.tickets) > 0 {
		hostPlayerID = m.tickets[0].player.PlayerID
	}

	issued := e.tokens.Issue(server.ID, m.matchID, m.matchID)

	info := &MatchInfo{
		MatchID:             m.matchID,
		Players:             players,
		HostPlayerID:        hostPlayerID,
		DedicatedServerID:   server.ID,
		HostAddress:         server.PublicAddress,
		HostInternalAddress: server.InternalAddress,
		HostPort:            server.GamePort,
		QueryPort:           server.QueryPort,
		StartToken:          issued.Token,
		StartTokenExpiresAt: issued.Payload.ExpiresAt,
	}

	for _, t := range m.tickets {
		t.pending = nil
		t.match = info
		t.status = StatusMatched
	}

	m.tickets = nil
	e.pending = nil

	metrics.MatchesStartedTotal.Inc()
	metrics.FormationDuration.Observe(now.Sub(m.createdAt).Seconds())
	log.Info().
		Str("match", m.matchID).
		Str("ds", server.ID).
		Str("host", hostPlayerID).
		Int("players", len(players)).
		Msg("matchmaking: match started")

	// Pipeline: the freed formation slot can serve the next group at once.
	if len(e.queue) >= MinPlayers {
		e.tryPromoteLocked(now)
	}
}

func (e *Engine) statusLocked(t *ticket, now time.Time) QueueStatus {
	status := QueueStatus{
		TicketID:             t.id,
		Status:               t.status,
		WaitForFourthSeconds: WaitForFourthSeconds,
		MinPlayers:           MinPlayers,
		MaxPlayers:           MaxPlayers,
		Players:              []Player{},
	}

	switch t.status {
	case StatusQueued:
		if pos := e.queuePositionLocked(t); pos > 0 {
			status.Position = &pos
		}
	case StatusForming:
		if m := t.pending; m != nil {
			remaining := m.deadline.Sub(now)
			if remaining < 0 {
				remaining = 0
			}
			readyIn := int(math.Ceil(remaining.Seconds()))
			status.ReadyInSeconds = &readyIn
			status.Players = m.players()
		}
	case StatusMatched:
		if t.match != nil {
			status.Match = t.match
			status.Players = t.match.Players
		}
	}

	return status
}

func (e *Engine) queuePositionLocked(t *ticket) int {
	for i, queued := range e.queue {
		if queued == t {
			return i + 1
		}
	}
	return -1
}

func (e *Engine) removeFromQueueLocked(t *ticket) {
	for i, queued := range e.queue {
		if queued == t {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			break
		}
	}
	metrics.QueueDepth.Set(float64(len(e.queue)))
}

func (e *Engine) removeTicketLocked(t *ticket) {
	delete(e.byID, t.id)
	delete(e.byPlayer, t.player.PlayerID)
}

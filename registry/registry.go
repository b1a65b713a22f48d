package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Status tracks the availability of a dedicated server.
type Status string

const (
	StatusRegistered Status = "REGISTERED"
	StatusReady      Status = "READY"
	StatusBusy       Status = "BUSY"
)

// ParseStatus maps an external status report onto a known Status value.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusRegistered:
		return StatusRegistered, true
	case StatusReady:
		return StatusReady, true
	case StatusBusy:
		return StatusBusy, true
	}
	return "", false
}

// ErrIDRequired is returned when a registration carries a blank server id.
var ErrIDRequired = errors.New("dsId required")

// Record is one registered dedicated game-server process. Records are copied
// out of the registry by value; callers never observe later mutations.
type Record struct {
	ID              string
	PublicAddress   string
	InternalAddress string
	GamePort        int
	QueryPort       int
	Status          Status
	LastUpdated     time.Time
}

// Registration is the input to RegisterOrUpdate. Blank addresses, non-positive
// ports, and an empty Status keep the values of an existing record; an empty
// Status defaults to REGISTERED for brand new records.
type Registration struct {
	ID              string
	PublicAddress   string
	InternalAddress string
	GamePort        int
	QueryPort       int
	Status          Status
}

// Registry is the in-memory dedicated-server pool. Since the matchmaker runs
// as a single process, the registry lives in memory and is rebuilt by the
// servers re-registering after a restart.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]Record
	now     func() time.Time
}

func New() *Registry {
	return &Registry{
		servers: make(map[string]Record),
		now:     time.Now,
	}
}

// RegisterOrUpdate upserts a server record, preserving any existing field
// value the registration leaves unset.
func (r *Registry) RegisterOrUpdate(reg Registration) (Record, error) {
	if strings.TrimSpace(reg.ID) == "" {
		return Record{}, ErrIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.servers[reg.ID]

	status := reg.Status
	if status == "" {
		if exists {
			status = existing.Status
		} else {
			status = StatusRegistered
		}
	}

	updated := Record{
		ID:              reg.ID,
		PublicAddress:   resolveAddress(reg.PublicAddress, existing.PublicAddress),
		InternalAddress: resolveAddress(reg.InternalAddress, existing.InternalAddress),
		GamePort:        resolvePort(reg.GamePort, existing.GamePort),
		QueryPort:       resolvePort(reg.QueryPort, existing.QueryPort),
		Status:          status,
		LastUpdated:     r.now(),
	}
	r.servers[reg.ID] = updated

	log.Info().
		Str("ds", updated.ID).
		Str("status", string(updated.Status)).
		Str("publicAddress", updated.PublicAddress).
		Int("gamePort", updated.GamePort).
		Bool("new", !exists).
		Msg("registry: server registered")
	return updated, nil
}

// Find returns the record for the given id, if any.
func (r *Registry) Find(id string) (Record, bool) {
	if strings.TrimSpace(id) == "" {
		return Record{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.servers[id]
	return rec, ok
}

// AllocateReady atomically picks the READY server with the oldest LastUpdated
// timestamp, flips it to BUSY, and returns it. Concurrent calls never receive
// the same server.
func (r *Registry) AllocateReady() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		picked Record
		found  bool
	)
	for _, rec := range r.servers {
		if rec.Status != StatusReady {
			continue
		}
		if !found || rec.LastUpdated.Before(picked.LastUpdated) {
			picked = rec
			found = true
		}
	}
	if !found {
		return Record{}, false
	}

	picked.Status = StatusBusy
	picked.LastUpdated = r.now()
	r.servers[picked.ID] = picked

	log.Info().Str("ds", picked.ID).Msg("registry: server allocated")
	return picked, true
}

// UpdateStatus applies an external status report. Unknown ids report false.
func (r *Registry) UpdateStatus(id string, status Status) (Record, bool) {
	if strings.TrimSpace(id) == "" || status == "" {
		return Record{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.servers[id]
	if !ok {
		return Record{}, false
	}

	rec.Status = status
	rec.LastUpdated = r.now()
	r.servers[id] = rec

	log.Info().Str("ds", id).Str("status", string(status)).Msg("registry: status updated")
	return rec, true
}

// ReadyCount reports how many servers are currently READY.
func (r *Registry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.servers {
		if rec.Status == StatusReady {
			n++
		}
	}
	return n
}

func resolveAddress(candidate, fallback string) string {
	if trimmed := strings.TrimSpace(candidate); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePort(candidate, fallback int) int {
	if candidate > 0 {
		return candidate
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

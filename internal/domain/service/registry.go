package service

import (
	"salus-bridge/internal/domain/model"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// registry caches the last device listing for ttl. Every command bumps the
// generation so that a listing fetched before the command is never stored
// after it.
type registry struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.RWMutex
	devices    []*model.Device
	byID       map[string]*model.Device
	fetched    time.Time
	generation uint64
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{ttl: ttl, now: time.Now}
}

func (r *registry) enabled() bool {
	return r.ttl > 0
}

func (r *registry) fresh() bool {
	return r.byID != nil && r.now().Sub(r.fetched) < r.ttl
}

func (r *registry) list() ([]*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.fresh() {
		return nil, false
	}
	return cloneAll(r.devices), true
}

func (r *registry) get(id string) (*model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.fresh() {
		return nil, false
	}
	d, ok := r.byID[id]
	return d.Clone(), ok
}

func (r *registry) currentGeneration() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

func (r *registry) store(generation uint64, devices []*model.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		return
	}
	r.devices = cloneAll(devices)
	r.byID = make(map[string]*model.Device, len(devices))
	for _, d := range r.devices {
		r.byID[d.ID] = d
	}
	r.fetched = r.now()
}

func (r *registry) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.devices = nil
	r.byID = nil
}

func cloneAll(devices []*model.Device) []*model.Device {
	out := make([]*model.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Clone())
	}
	return out
}

package candle

import (
	"fmt"
	"sync"

	"github.com/buckstrdr/candlestream/internal/domain/models"
	"github.com/buckstrdr/candlestream/internal/domain/repository"
	applogger "github.com/buckstrdr/candlestream/pkg/logger"
)

// Callback receives candle snapshots for a subscribed key. A returned error is
// logged and swallowed; it never affects other subscribers or buffer state.
type Callback func(models.Candlestick) error

// Subscription is the handle returned by Subscribe. Unsubscribe is idempotent.
type Subscription struct {
	reg  *Registry
	k    key
	id   uint64
	once sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.reg.remove(s.k, s.id) })
}

// Registry decouples candle producers from consumers: a multi-map from
// (instrument, timeframe) to registered callbacks.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[key]map[uint64]Callback
	log    *applogger.Logger
}

func NewRegistry(log *applogger.Logger) *Registry {
	return &Registry{
		subs: make(map[key]map[uint64]Callback),
		log:  log,
	}
}

// Subscribe registers cb for the given key and returns its handle. Many
// independent callbacks may share one key.
func (r *Registry) Subscribe(instrument string, tf repository.Timeframe, cb Callback) *Subscription {
	k := key{Instrument: instrument, Timeframe: tf}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	set, ok := r.subs[k]
	if !ok {
		set = make(map[uint64]Callback)
		r.subs[k] = set
	}
	set[id] = cb
	r.mu.Unlock()

	return &Subscription{reg: r, k: k, id: id}
}

// remove deletes one callback; the key entry is dropped once its set empties
// so the registry does not accumulate orphaned keys.
func (r *Registry) remove(k key, id uint64) {
	r.mu.Lock()
	if set, ok := r.subs[k]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.subs, k)
		}
	}
	r.mu.Unlock()
}

// Notify delivers a snapshot to every callback registered for k. Each
// invocation is isolated: an error or panic in one callback never prevents
// delivery to the rest.
func (r *Registry) Notify(k key, c models.Candlestick) {
	r.mu.RLock()
	set := r.subs[k]
	cbs := make([]Callback, 0, len(set))
	for _, cb := range set {
		cbs = append(cbs, cb)
	}
	r.mu.RUnlock()

	for _, cb := range cbs {
		r.invoke(k, cb, c)
	}
}

func (r *Registry) invoke(k key, cb Callback, c models.Candlestick) {
	defer func() {
		if rec := recover(); rec != nil && r.log != nil {
			r.log.Error("subscriber panic",
				applogger.String("key", k.String()),
				applogger.Any("panic", rec),
			)
		}
	}()
	if err := cb(c); err != nil && r.log != nil {
		r.log.Error("subscriber callback failed",
			applogger.String("key", k.String()),
			applogger.Error(fmt.Errorf("notify %s: %w", k, err)),
		)
	}
}

// ClearInstrument drops every subscription whose key matches instrument.
func (r *Registry) ClearInstrument(instrument string) {
	r.mu.Lock()
	for k := range r.subs {
		if k.Instrument == instrument {
			delete(r.subs, k)
		}
	}
	r.mu.Unlock()
}

// Clear drops all subscriptions.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.subs = make(map[key]map[uint64]Callback)
	r.mu.Unlock()
}

// Count returns the total number of registered callbacks across all keys.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.subs {
		n += len(set)
	}
	return n
}

package pool

import (
	"slices"

	"go.uber.org/zap"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
)

type entry struct {
	mgr        Manager
	addr       scriptheap.Addr
	refCount   int32
	gcRefCount int32
	gen        uint32
	valueType  ValueType
	persistent bool
	gcMark     gcMark
}

func (e *entry) used() bool {
	return e.valueType != ValueUndefined
}

// Pool maps handles to managed objects.
type Pool struct {
	log       *zap.Logger
	byAddr    map[scriptheap.Addr]Handle
	objects   []entry
	free      handleQueue
	observers []Observer
	cfg       Config
	stats     Stats
	next      Handle
	created   int
	live      int
	excluded  scriptheap.Addr
	restoring bool
}

// New creates an empty pool.
func New(cfg Config) *Pool {
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.MaxHandle <= 0 {
		cfg.MaxHandle = DefaultMaxHandle
	}
	if cfg.MaxRestoredHandle <= 0 {
		cfg.MaxRestoredHandle = DefaultMaxRestoredHandle
	}
	cfg.MaxRestoredHandle = min(cfg.MaxRestoredHandle, cfg.MaxHandle)
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Pool{
		log:     log,
		cfg:     cfg,
		objects: make([]entry, 1, 64),
		byAddr:  make(map[scriptheap.Addr]Handle),
		next:    1,
	}
}

func (p *Pool) lookup(h Handle) *entry {
	if h <= 0 || int(h) >= len(p.objects) {
		return nil
	}
	e := &p.objects[h]
	if !e.used() {
		return nil
	}
	return e
}

// valid returns the entry for h, logging misuse of a non-null handle.
func (p *Pool) valid(h Handle, op string) *entry {
	e := p.lookup(h)
	if e == nil && h != 0 {
		p.log.Warn("invalid handle", zap.String("op", op), zap.Int32("handle", int32(h)))
	}
	return e
}

// AddObject registers the object at addr and returns its handle.
// Persistent objects start with one reference and are never collected.
func (p *Pool) AddObject(addr scriptheap.Addr, mgr Manager, vt ValueType, persistent bool) (Handle, error) {
	if err := p.checkAdd(addr, mgr, vt); err != nil {
		return 0, err
	}
	h, ok := p.free.PopFront()
	if !ok {
		if int32(p.next) > p.cfg.MaxHandle || p.next <= 0 {
			p.log.Error("handle space exhausted", zap.Int32("limit", p.cfg.MaxHandle))
			return 0, errors.HandleExhausted(p.cfg.MaxHandle)
		}
		h = p.next
		p.next++
	}
	p.add(h, addr, mgr, vt, persistent)
	return h, nil
}

// AddUnserializedObject registers the object at addr under a handle read
// from save data. Handles above Config.MaxRestoredHandle are rejected.
func (p *Pool) AddUnserializedObject(addr scriptheap.Addr, mgr Manager, h Handle, vt ValueType, persistent bool) (Handle, error) {
	if err := p.checkRestoredHandle(h); err != nil {
		return 0, err
	}
	if err := p.checkAdd(addr, mgr, vt); err != nil {
		return 0, err
	}
	if p.lookup(h) != nil {
		return 0, errors.New(errors.PhaseUnserialize, errors.KindDuplicate).
			Handle(int32(h)).TypeName(mgr.TypeName()).Detail("handle already in use").Build()
	}
	switch {
	case h >= p.next && p.restoring:
		// ReadFromDisk rebuilds the free queue once the table is read
		p.next = h + 1
	case h >= p.next:
		// slots skipped over become free in ascending order
		for gap := p.next; gap < h; gap++ {
			p.free.PushBack(gap)
		}
		p.next = h + 1
	default:
		p.free.Remove(h)
	}
	p.add(h, addr, mgr, vt, persistent)
	return h, nil
}

func (p *Pool) checkRestoredHandle(h Handle) error {
	if h <= 0 || int32(h) > p.cfg.MaxRestoredHandle {
		return errors.New(errors.PhaseUnserialize, errors.KindInvalidData).
			Handle(int32(h)).Value(int32(h)).
			Detail("restored handle outside 1..%d", p.cfg.MaxRestoredHandle).Build()
	}
	return nil
}

// rebuildFree queues every unused slot below the next fresh handle in
// ascending order.
func (p *Pool) rebuildFree() {
	p.free.Reset()
	for h := Handle(1); h < p.next && int(h) < len(p.objects); h++ {
		if !p.objects[h].used() {
			p.free.PushBack(h)
		}
	}
}

func (p *Pool) checkAdd(addr scriptheap.Addr, mgr Manager, vt ValueType) error {
	if addr == 0 || mgr == nil || vt == ValueUndefined {
		return errors.InvalidInput(errors.PhaseAlloc, "object needs an address, a manager and a value type")
	}
	if other, dup := p.byAddr[addr]; dup {
		return errors.AddressMismatch(errors.PhaseAlloc, int32(other), uint32(addr), "address already registered")
	}
	return nil
}

func (p *Pool) add(h Handle, addr scriptheap.Addr, mgr Manager, vt ValueType, persistent bool) {
	if int(h) >= len(p.objects) {
		p.objects = slices.Grow(p.objects, int(h)+1-len(p.objects))
		p.objects = p.objects[:int(h)+1]
	}
	e := &p.objects[h]
	*e = entry{
		mgr:        mgr,
		addr:       addr,
		valueType:  vt,
		persistent: persistent,
		gen:        e.gen,
	}
	if persistent {
		e.refCount = 1
		p.stats.AddedPersistent++
	}
	p.byAddr[addr] = h
	p.created++
	p.live++
	p.stats.Added++
	p.stats.MaxObjectsPresent = max(p.stats.MaxObjectsPresent, uint64(p.live))
	p.notify(Event{Type: EventCreated, Handle: h, Addr: addr, TypeName: mgr.TypeName()})
}

// remove disposes the object and recycles its handle. Without force the
// manager may veto removal.
func (p *Pool) remove(h Handle, force bool, ev EventType) bool {
	e := &p.objects[h]
	addr, mgr := e.addr, e.mgr
	if !mgr.Dispose(addr, force) && !force {
		return false
	}
	// Dispose may have touched other entries; re-fetch.
	e = &p.objects[h]
	p.stats.Removed++
	if e.persistent {
		p.stats.RemovedPersistent++
	}
	if p.byAddr[addr] == h {
		delete(p.byAddr, addr)
	}
	*e = entry{gen: e.gen + 1}
	p.live--
	p.free.PushBack(h)
	p.notify(Event{Type: ev, Handle: h, Addr: addr, TypeName: mgr.TypeName()})
	return true
}

// AddRef increments the reference count and returns the new count,
// or -1 for an invalid handle.
func (p *Pool) AddRef(h Handle) int32 {
	e := p.valid(h, "AddRef")
	if e == nil {
		return -1
	}
	e.refCount++
	return e.refCount
}

// SubRefNoCheck decrements the reference count without disposing.
func (p *Pool) SubRefNoCheck(h Handle) int32 {
	e := p.valid(h, "SubRefNoCheck")
	if e == nil {
		return -1
	}
	e.refCount--
	return e.refCount
}

// SubRefCheckDispose decrements the reference count and disposes the
// object once it reaches zero, unless the object is dispose-excluded.
func (p *Pool) SubRefCheckDispose(h Handle) int32 {
	e := p.valid(h, "SubRefCheckDispose")
	if e == nil {
		return -1
	}
	e.refCount--
	n := e.refCount
	if n <= 0 && e.addr != p.excluded {
		p.remove(h, false, EventDisposed)
	}
	return n
}

// CheckDispose disposes an unreferenced object. It reports whether h no
// longer refers to a live object.
func (p *Pool) CheckDispose(h Handle) bool {
	e := p.lookup(h)
	if e == nil {
		return true
	}
	if e.refCount >= 1 || e.addr == p.excluded {
		return false
	}
	return p.remove(h, false, EventDisposed)
}

// RemoveObject forcibly removes the object at addr regardless of its
// reference count.
func (p *Pool) RemoveObject(addr scriptheap.Addr) bool {
	if addr == 0 {
		return false
	}
	h, ok := p.byAddr[addr]
	if !ok {
		p.log.Warn("remove of unregistered address", zap.Uint32("addr", uint32(addr)))
		return false
	}
	return p.remove(h, true, EventDisposed)
}

// AddressToHandle returns the handle registered for addr, or 0.
func (p *Pool) AddressToHandle(addr scriptheap.Addr) Handle {
	if addr == 0 {
		return 0
	}
	return p.byAddr[addr]
}

// HandleToAddress returns the object address for h, or 0.
func (p *Pool) HandleToAddress(h Handle) scriptheap.Addr {
	e := p.valid(h, "HandleToAddress")
	if e == nil {
		return 0
	}
	return e.addr
}

// HandleToAddressAndManager resolves h fully. The value type is
// ValueUndefined for an invalid handle.
func (p *Pool) HandleToAddressAndManager(h Handle) (scriptheap.Addr, Manager, ValueType) {
	e := p.valid(h, "HandleToAddressAndManager")
	if e == nil {
		return 0, nil, ValueUndefined
	}
	return e.addr, e.mgr, e.valueType
}

// RefCount returns the reference count of h, or -1 if h is invalid.
func (p *Pool) RefCount(h Handle) int32 {
	e := p.lookup(h)
	if e == nil {
		return -1
	}
	return e.refCount
}

// Persistent reports whether h is a live persistent object.
func (p *Pool) Persistent(h Handle) bool {
	e := p.lookup(h)
	return e != nil && e.persistent
}

// Generation returns how many times the slot of h has been released.
// A holder that remembers the generation can tell a recycled handle from
// the object it originally referenced.
func (p *Pool) Generation(h Handle) uint32 {
	if h <= 0 || int(h) >= len(p.objects) {
		return 0
	}
	return p.objects[h].gen
}

// SetDisposeExcluded protects the object at addr from disposal and
// collection until another address (or 0) is set.
func (p *Pool) SetDisposeExcluded(addr scriptheap.Addr) {
	p.excluded = addr
}

// DisposeExcluded returns the protected address, or 0.
func (p *Pool) DisposeExcluded() scriptheap.Addr {
	return p.excluded
}

// Len returns the number of live objects.
func (p *Pool) Len() int {
	return p.live
}

// Each calls fn for every live object in ascending handle order until fn
// returns false.
func (p *Pool) Each(fn func(h Handle, addr scriptheap.Addr, mgr Manager) bool) {
	for h := 1; h < len(p.objects); h++ {
		e := &p.objects[h]
		if e.used() && !fn(Handle(h), e.addr, e.mgr) {
			return
		}
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return p.stats
}

// PrintStats logs the pool counters.
func (p *Pool) PrintStats() {
	s := p.stats
	p.log.Info("managed object pool stats",
		zap.Int("live", p.live),
		zap.Uint64("added", s.Added),
		zap.Uint64("added_persistent", s.AddedPersistent),
		zap.Uint64("removed", s.Removed),
		zap.Uint64("removed_persistent", s.RemovedPersistent),
		zap.Uint64("removed_gc", s.RemovedGC),
		zap.Uint64("removed_gc_detached", s.RemovedGCDetached),
		zap.Uint64("max_objects_present", s.MaxObjectsPresent),
		zap.Uint64("gc_times_run", s.GCTimesRun),
	)
}

// Subscribe adds an observer for lifecycle events.
func (p *Pool) Subscribe(o Observer) {
	p.observers = append(p.observers, o)
}

// Unsubscribe removes an observer. Observers are compared by value, so an
// ObserverFunc cannot be unsubscribed; use a pointer type instead.
func (p *Pool) Unsubscribe(o Observer) {
	for i, obs := range p.observers {
		if obs == o {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			return
		}
	}
}

func (p *Pool) notify(e Event) {
	for _, o := range p.observers {
		o.OnObjectEvent(e)
	}
}

// Reset disposes every object without cascading and clears all handles.
// Counters are kept.
func (p *Pool) Reset() {
	for h := 1; h < len(p.objects); h++ {
		if p.objects[h].used() {
			p.remove(Handle(h), true, EventDisposed)
		}
	}
	p.objects = p.objects[:1]
	clear(p.byAddr)
	p.free.Reset()
	p.next = 1
	p.created = 0
	p.live = 0
	p.excluded = 0
}

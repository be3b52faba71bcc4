package pool

import (
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/script-heap/errors"
)

type gcMark uint8

const (
	gcNone gcMark = iota
	gcCandidate
	gcReachable
)

// RunGarbageCollectionIfAppropriate collects once more than GCInterval
// objects were created since the last collection. It reports whether a
// collection ran.
func (p *Pool) RunGarbageCollectionIfAppropriate() bool {
	if p.cfg.GCInterval < 0 || p.created <= p.cfg.GCInterval {
		return false
	}
	p.RunGarbageCollection()
	return true
}

// RunGarbageCollection disposes every non-persistent object that is not
// reachable from outside the candidate set and returns how many were
// collected. Collected objects release references they hold to survivors
// and are then disposed forcibly.
func (p *Pool) RunGarbageCollection() int {
	start := time.Now()
	p.created = 0
	p.stats.GCTimesRun++

	var cands []Handle
	for h := 1; h < len(p.objects); h++ {
		e := &p.objects[h]
		if !e.used() || e.persistent || e.addr == p.excluded {
			continue
		}
		e.gcRefCount = e.refCount
		e.gcMark = gcCandidate
		cands = append(cands, Handle(h))
	}

	// Subtract references held inside the candidate set. What remains on
	// a candidate comes from outside: script variables, persistent objects
	// or the excluded object.
	for _, h := range cands {
		e := &p.objects[h]
		e.mgr.TraverseRefs(e.addr, func(ref Handle) {
			if t := p.candidate(ref); t != nil {
				t.gcRefCount--
			}
		})
	}

	var stack []Handle
	for _, h := range cands {
		e := &p.objects[h]
		if e.gcRefCount > 0 {
			e.gcMark = gcReachable
			stack = append(stack, h)
		}
	}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e := &p.objects[h]
		e.mgr.TraverseRefs(e.addr, func(ref Handle) {
			if t := p.candidate(ref); t != nil && t.gcMark == gcCandidate {
				t.gcMark = gcReachable
				stack = append(stack, ref)
			}
		})
	}

	var garbage []Handle
	for _, h := range cands {
		if p.objects[h].gcMark == gcCandidate {
			garbage = append(garbage, h)
		}
	}

	for _, h := range garbage {
		e := &p.objects[h]
		e.mgr.TraverseRefs(e.addr, func(ref Handle) {
			if t := p.lookup(ref); t != nil && t.gcMark != gcCandidate {
				t.refCount--
			}
		})
	}

	// Every live entry is registered under its own address, so detached
	// stays zero unless the address map is broken.
	detached := 0
	for _, h := range garbage {
		addr := p.objects[h].addr
		if owner, ok := p.byAddr[addr]; !ok || owner != h {
			detached++
			p.log.Error("collected object not registered at its address",
				zap.Error(errors.AddressMismatch(errors.PhaseGC, int32(h), uint32(addr),
					"address map points elsewhere")),
				zap.Int32("owner", int32(owner)))
		}
		p.remove(h, true, EventCollected)
	}

	for _, h := range cands {
		p.objects[h].gcMark = gcNone
	}

	p.stats.RemovedGC += uint64(len(garbage))
	p.stats.RemovedGCDetached += uint64(detached)
	if len(garbage) > 0 {
		p.log.Debug("garbage collected",
			zap.Int("candidates", len(cands)),
			zap.Int("collected", len(garbage)),
			zap.Int("detached", detached),
			zap.Duration("elapsed", time.Since(start)))
	}
	return len(garbage)
}

// candidate returns the entry for ref if it takes part in the current
// collection.
func (p *Pool) candidate(ref Handle) *entry {
	e := p.lookup(ref)
	if e == nil || e.gcMark == gcNone {
		return nil
	}
	return e
}

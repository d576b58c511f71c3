// Package gc implements the Marten generational garbage collector.
//
// Objects live on one of three singly-linked generation lists. Minor
// collections mark and sweep only the youngest generation, using the
// write-barrier queue as extra roots for old-to-young references, and
// promote survivors one generation. Major collections mark and sweep
// everything. Collection never moves object memory; "destroying" an object
// unlinks it so the host runtime can reclaim it.
package gc

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("marten.gc")

// Initial collection thresholds for the two throttled generations.
const (
	Gen0InitThreshold = 512
	Gen1InitThreshold = 512
)

// RootTraveller enumerates GC roots by invoking visit on each directly
// reachable object.
type RootTraveller func(visit func(Object))

// genInfo tracks one generation list.
type genInfo struct {
	head      Object
	count     int
	threshold int
}

// GC owns all heap objects of a runtime State.
type GC struct {
	gen0 genInfo
	gen1 genInfo
	gen2 genInfo

	minor RootTraveller
	major RootTraveller

	// Old objects mutated since the last minor collection.
	barriered []Object

	// Invoked once per destroyed object, before unlinking. Used by the
	// runtime to drop interner entries for dead strings.
	release func(Object)
}

// New creates an empty collector with the initial thresholds.
func New() *GC {
	return &GC{
		gen0: genInfo{threshold: Gen0InitThreshold},
		gen1: genInfo{threshold: Gen1InitThreshold},
	}
}

// SetThresholds overrides the initial collection thresholds, typically
// from a project manifest. Values below 1 keep the current threshold.
func (g *GC) SetThresholds(gen0, gen1 int) {
	if gen0 > 0 {
		g.gen0.threshold = gen0
	}
	if gen1 > 0 {
		g.gen1.threshold = gen1
	}
}

// SetRootTraveller registers the minor and major root enumerators.
func (g *GC) SetRootTraveller(minor, major RootTraveller) {
	g.minor = minor
	g.major = major
}

// SetReleaseHook registers a callback invoked for every object a sweep
// destroys.
func (g *GC) SetReleaseHook(release func(Object)) {
	g.release = release
}

// Alloc links obj into the requested generation. The object must not
// already be managed.
func (g *GC) Alloc(obj Object, gen Generation) {
	h := obj.Header()
	h.generation = gen
	h.color = White

	info := g.genInfo(gen)
	h.next = info.head
	info.head = obj
	info.count++
}

func (g *GC) genInfo(gen Generation) *genInfo {
	switch gen {
	case Gen0:
		return &g.gen0
	case Gen1:
		return &g.gen1
	case Gen2:
		return &g.gen2
	}
	panic("gc: allocation into invalid generation")
}

// CheckBarrier reports whether obj needs a write barrier when mutated,
// i.e. whether it lives outside the youngest generation.
func CheckBarrier(obj Object) bool {
	return obj.Header().generation != Gen0
}

// SetBarrier records obj as a mutated old object. The next minor
// collection treats it as a root. Recording is idempotent.
func (g *GC) SetBarrier(obj Object) {
	h := obj.Header()
	if h.barriered {
		return
	}
	h.barriered = true
	g.barriered = append(g.barriered, obj)
}

// WriteBarrier is the guard every writer must apply after storing a
// reference into owner: it records owner if and only if owner is old.
func (g *GC) WriteBarrier(owner Object) {
	if CheckBarrier(owner) {
		g.SetBarrier(owner)
	}
}

// CheckGC runs a collection if an allocation threshold has been exceeded.
// The mesozoic generation escalates to a major collection; the young
// generation triggers a minor one.
func (g *GC) CheckGC() {
	if g.gen1.count >= g.gen1.threshold {
		g.CollectMajor()
	} else if g.gen0.count >= g.gen0.threshold {
		g.CollectMinor()
	}
}

// Stats is a snapshot of the collector's occupancy.
type Stats struct {
	Gen0Count     int
	Gen1Count     int
	Gen2Count     int
	Gen0Threshold int
	Gen1Threshold int
	Barriered     int
}

// Stats returns current generation counts and thresholds.
func (g *GC) Stats() Stats {
	return Stats{
		Gen0Count:     g.gen0.count,
		Gen1Count:     g.gen1.count,
		Gen2Count:     g.gen2.count,
		Gen0Threshold: g.gen0.threshold,
		Gen1Threshold: g.gen1.threshold,
		Barriered:     len(g.barriered),
	}
}

// CollectMinor marks and sweeps the youngest generation only.
func (g *GC) CollectMinor() {
	// Old objects already traced through, to keep barrier cycles from
	// recursing forever.
	visitedOld := make(map[Object]struct{})

	var mark func(Object)
	mark = func(obj Object) {
		if obj == nil {
			return
		}
		h := obj.Header()
		if h.generation == Gen0 {
			if h.color == White {
				h.color = Black
				obj.Trace(mark)
			}
			return
		}
		// An old object is traced through only when it is in the
		// barrier queue; otherwise it is assumed not to reference gen0.
		if h.barriered {
			if _, seen := visitedOld[obj]; !seen {
				visitedOld[obj] = struct{}{}
				obj.Trace(mark)
			}
		}
	}

	if g.minor != nil {
		g.minor(mark)
	}
	for _, obj := range g.barriered {
		if _, seen := visitedOld[obj]; !seen {
			visitedOld[obj] = struct{}{}
			obj.Trace(mark)
		}
	}

	// Sweep gen0: black survivors are promoted to gen1, white objects
	// are destroyed. Every gen0 survivor leaves gen0, so no old-to-young
	// reference can exist afterwards and the barrier queue is cleared.
	alive := 0
	swept := 0
	var next Object
	for obj := g.gen0.head; obj != nil; obj = next {
		h := obj.Header()
		next = h.next
		if h.color == Black {
			h.color = White
			h.generation = Gen1
			h.next = g.gen1.head
			g.gen1.head = obj
			g.gen1.count++
			alive++
		} else {
			g.destroy(obj)
			swept++
		}
	}
	g.gen0.head = nil
	g.gen0.count = 0

	for _, obj := range g.barriered {
		obj.Header().barriered = false
	}
	g.barriered = g.barriered[:0]

	g.gen0.threshold = adjustThreshold(alive, Gen0InitThreshold)

	log.Debugf("minor collection: swept=%d promoted=%d gen0-threshold=%d",
		swept, alive, g.gen0.threshold)
}

// CollectMajor marks and sweeps all three generations.
func (g *GC) CollectMajor() {
	var mark func(Object)
	mark = func(obj Object) {
		if obj == nil {
			return
		}
		h := obj.Header()
		if h.color == Black {
			return
		}
		h.color = Black
		obj.Trace(mark)
	}

	if g.major != nil {
		g.major(mark)
	}

	// Sweep order matters: the oldest generation first, so that objects
	// promoted out of gen1 are not swept twice.
	alive2, swept2 := g.sweepGeneration(&g.gen2, &g.gen2, Gen2)
	alive1, swept1 := g.sweepGeneration(&g.gen1, &g.gen2, Gen2)
	alive0, swept0 := g.sweepGeneration(&g.gen0, &g.gen0, Gen0)

	// gen0 survivors keep their generation, so old objects recorded in
	// the barrier queue may still reference young ones. Keep the live
	// entries and drop only the destroyed.
	kept := g.barriered[:0]
	for _, obj := range g.barriered {
		h := obj.Header()
		if h.generation == genDead {
			h.barriered = false
			continue
		}
		kept = append(kept, obj)
	}
	g.barriered = kept

	g.gen0.threshold = adjustThreshold(alive0, Gen0InitThreshold)
	g.gen1.threshold = adjustThreshold(alive1, Gen1InitThreshold)

	log.Debugf("major collection: swept=%d alive=%d gen0-threshold=%d gen1-threshold=%d",
		swept0+swept1+swept2, alive0+alive1+alive2,
		g.gen0.threshold, g.gen1.threshold)
}

// sweepGeneration walks gen, destroying white objects and resetting black
// ones to white. Survivors are relinked into dst with generation dstGen
// (dst may be gen itself). Returns the survivor and swept counts.
func (g *GC) sweepGeneration(gen, dst *genInfo, dstGen Generation) (alive, swept int) {
	head := gen.head
	gen.head = nil
	gen.count = 0

	var next Object
	for obj := head; obj != nil; obj = next {
		h := obj.Header()
		next = h.next
		if h.color == Black {
			h.color = White
			h.generation = dstGen
			h.next = dst.head
			dst.head = obj
			dst.count++
			alive++
		} else {
			g.destroy(obj)
			swept++
		}
	}
	return alive, swept
}

// destroy unlinks a dead object. Memory reclamation itself is the host
// runtime's job once nothing references the object.
func (g *GC) destroy(obj Object) {
	if g.release != nil {
		g.release(obj)
	}
	h := obj.Header()
	h.next = nil
	h.generation = genDead
}

// adjustThreshold re-tunes a generation's threshold after a sweep so that
// collection cost stays amortised linear in allocation.
func adjustThreshold(alive, minThreshold int) int {
	t := 2 * alive
	if t < minThreshold {
		t = minThreshold
	}
	return t
}

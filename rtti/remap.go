package rtti

import "maps"

// Signature identifies a type across script builds.
type Signature struct {
	Type
	ID uint32
}

// TypeIDResolver maps a type from another build onto a local id.
type TypeIDResolver interface {
	ResolveTypeID(sig Signature) (uint32, bool)
}

// ResolveTypeID matches by name and instance size. A type whose layout
// changed size does not resolve.
func (r *Registry) ResolveTypeID(sig Signature) (uint32, bool) {
	id, ok := r.byName[sig.Name]
	if !ok {
		return 0, false
	}
	if r.types[id].Size != sig.Size {
		return 0, false
	}
	return id, true
}

// Signatures returns the registry's types with their ids.
func (r *Registry) Signatures() []Signature {
	sigs := make([]Signature, 0, r.Len())
	for id := 1; id < len(r.types); id++ {
		sigs = append(sigs, Signature{ID: uint32(id), Type: r.types[id]})
	}
	return sigs
}

// Remap maps type ids of a saved script build to the current one.
// Ids absent from the map had no counterpart.
type Remap map[uint32]uint32

// Lookup returns the current id for a saved id. Id 0 always maps to 0.
func (m Remap) Lookup(id uint32) (uint32, bool) {
	if id == 0 {
		return 0, true
	}
	to, ok := m[id]
	return to, ok
}

// Identity reports whether the remap changes nothing.
func (m Remap) Identity() bool {
	for from, to := range m {
		if from != to {
			return false
		}
	}
	return true
}

// Clone returns a copy of m.
func (m Remap) Clone() Remap {
	return maps.Clone(m)
}

// BuildRemap resolves every saved signature against current. Unresolved
// ids are left out; using one later is an error for the caller to raise.
func BuildRemap(saved []Signature, current TypeIDResolver) Remap {
	m := make(Remap, len(saved))
	for _, sig := range saved {
		if id, ok := current.ResolveTypeID(sig); ok {
			m[sig.ID] = id
		}
	}
	return m
}

// IdentityRemap maps every id of r to itself.
func IdentityRemap(r *Registry) Remap {
	m := make(Remap, r.Len())
	for id := uint32(1); id < uint32(len(r.types)); id++ {
		m[id] = id
	}
	return m
}

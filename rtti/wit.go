package rtti

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/rtti/internal/layout"
)

// FromWIT registers a struct type for each WIT record in defs and returns
// their ids in order. Nested records become by-value struct fields and are
// registered first; strings, lists and resource handles become managed
// handle fields. Anonymous nested records are named after their parent
// field ("outer.field").
func (b *Builder) FromWIT(defs ...*wit.TypeDef) []uint32 {
	w := witImporter{b: b, calc: layout.NewCalculator(), done: make(map[*wit.TypeDef]uint32)}
	ids := make([]uint32, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, w.record(def, def.TypeName()))
	}
	return ids
}

type witImporter struct {
	b    *Builder
	calc *layout.Calculator
	done map[*wit.TypeDef]uint32
}

func (w *witImporter) fail(err error) uint32 {
	if w.b.err == nil {
		w.b.err = err
	}
	return 0
}

// unalias follows `type a = b` definitions.
func unalias(def *wit.TypeDef) *wit.TypeDef {
	for {
		next, ok := def.Kind.(*wit.TypeDef)
		if !ok {
			return def
		}
		def = next
	}
}

func (w *witImporter) record(def *wit.TypeDef, name string) uint32 {
	if def == nil {
		return w.fail(errors.InvalidInput(errors.PhaseRTTI, "nil WIT type definition"))
	}
	def = unalias(def)
	if id, ok := w.done[def]; ok {
		return id
	}
	rec, ok := def.Kind.(*wit.Record)
	if !ok {
		return w.fail(errors.New(errors.PhaseRTTI, errors.KindUnsupported).
			TypeName(name).Detail("only WIT records become struct types").Build())
	}
	if name == "" {
		return w.fail(errors.InvalidInput(errors.PhaseRTTI, "anonymous WIT record at top level"))
	}

	s := w.b.Struct(name)
	for _, f := range rec.Fields {
		w.field(s, name, f)
	}
	if w.b.err != nil {
		return 0
	}
	id := s.Add()
	w.done[def] = id
	return id
}

func (w *witImporter) field(s *StructBuilder, parent string, f wit.Field) {
	info := w.calc.Calculate(f.Type)
	switch info.Kind {
	case layout.KindHandle:
		s.Handle(f.Name, w.handleTarget(f.Type))
	case layout.KindRecord:
		def := unalias(f.Type.(*wit.TypeDef))
		name := def.TypeName()
		if name == "" {
			name = parent + "." + f.Name
		}
		s.Embed(f.Name, w.record(def, name))
	default:
		s.fields = append(s.fields, Field{Name: f.Name})
		s.members = append(s.members, layout.Info{Size: info.Size, Align: info.Align})
	}
}

// handleTarget picks the type id a handle field points at.
func (w *witImporter) handleTarget(t wit.Type) uint32 {
	if _, ok := t.(wit.String); ok {
		return w.b.StringType()
	}
	def, ok := t.(*wit.TypeDef)
	if !ok {
		return 0
	}
	var res *wit.TypeDef
	switch k := unalias(def).Kind.(type) {
	case *wit.Own:
		res = k.Type
	case *wit.Borrow:
		res = k.Type
	default:
		// lists are untyped dynamic arrays
		return 0
	}
	if res == nil || res.TypeName() == "" {
		return 0
	}
	if id, ok := w.b.reg.Lookup(res.TypeName()); ok {
		return id
	}
	return w.b.Managed(res.TypeName())
}

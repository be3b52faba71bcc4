package layout

import "go.bytecodealliance.org/wit"

// HandleSize is the in-struct size of a managed reference.
const HandleSize = 4

// Kind classifies a laid-out value for the type registry.
type Kind uint8

const (
	KindPlain Kind = iota
	KindHandle
	KindRecord
)

// Info is the layout of a single type.
type Info struct {
	Fields []FieldInfo
	Size   uint32
	Align  uint32
	Kind   Kind
}

// FieldInfo is the placement of one record field.
type FieldInfo struct {
	Name   string
	Type   wit.Type
	Info   Info
	Offset uint32
}

// AlignTo rounds offset up to a multiple of align. align must be a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// Sequential lays out members with the given sizes and alignments in order
// and returns their offsets and the padded aggregate.
func Sequential(members []Info) ([]uint32, Info) {
	offs := make([]uint32, len(members))
	maxAlign := uint32(1)
	offset := uint32(0)
	for i, m := range members {
		align := m.Align
		if align == 0 {
			align = 1
		}
		offset = AlignTo(offset, align)
		offs[i] = offset
		if align > maxAlign {
			maxAlign = align
		}
		offset += m.Size
	}
	return offs, Info{Size: AlignTo(offset, maxAlign), Align: maxAlign, Kind: KindRecord}
}

type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: HandleSize, Align: HandleSize, Kind: KindHandle}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.List, *wit.Own, *wit.Borrow:
		info = Info{Size: HandleSize, Align: HandleSize, Kind: KindHandle}
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Variant:
		info = c.calculateVariant(kind)
	case *wit.Option:
		inner := c.Calculate(kind.Type)
		info = c.tagged(1, inner.Size, inner.Align)
	case *wit.Flags:
		info = calculateFlags(len(kind.Flags))
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1, Kind: KindRecord}
	}

	members := make([]Info, len(r.Fields))
	for i, field := range r.Fields {
		members[i] = c.Calculate(field.Type)
	}
	offs, info := Sequential(members)

	info.Fields = make([]FieldInfo, len(r.Fields))
	for i, field := range r.Fields {
		info.Fields[i] = FieldInfo{
			Name:   field.Name,
			Type:   field.Type,
			Info:   members[i],
			Offset: offs[i],
		}
	}
	return info
}

func (c *Calculator) calculateVariant(v *wit.Variant) Info {
	if len(v.Cases) == 0 {
		return Info{Size: 0, Align: 1}
	}
	maxAlign := uint32(1)
	maxSize := uint32(0)
	for _, cs := range v.Cases {
		if cs.Type == nil {
			continue
		}
		l := c.Calculate(cs.Type)
		maxAlign = max(maxAlign, l.Align)
		maxSize = max(maxSize, l.Size)
	}
	return c.tagged(discriminantSize(len(v.Cases)), maxSize, maxAlign)
}

// tagged lays out a discriminant followed by a payload.
func (c *Calculator) tagged(disc, size, align uint32) Info {
	align = max(align, disc, 1)
	payload := AlignTo(disc, align)
	return Info{Size: AlignTo(payload+size, align), Align: align}
}

func discriminantSize(n int) uint32 {
	switch {
	case n <= 256:
		return 1
	case n <= 65536:
		return 2
	default:
		return 4
	}
}

func calculateFlags(n int) Info {
	switch {
	case n == 0:
		return Info{Size: 0, Align: 1}
	case n <= 8:
		return Info{Size: 1, Align: 1}
	case n <= 16:
		return Info{Size: 2, Align: 2}
	default:
		return Info{Size: uint32((n+31)/32) * 4, Align: 4}
	}
}

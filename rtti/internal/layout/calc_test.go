package layout

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestCalculatePrimitives(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		typ   wit.Type
		name  string
		size  uint32
		align uint32
		kind  Kind
	}{
		{wit.Bool{}, "bool", 1, 1, KindPlain},
		{wit.U8{}, "u8", 1, 1, KindPlain},
		{wit.S16{}, "s16", 2, 2, KindPlain},
		{wit.U32{}, "u32", 4, 4, KindPlain},
		{wit.F32{}, "f32", 4, 4, KindPlain},
		{wit.S64{}, "s64", 8, 8, KindPlain},
		{wit.F64{}, "f64", 8, 8, KindPlain},
		{wit.Char{}, "char", 4, 4, KindPlain},
		{wit.String{}, "string", 4, 4, KindHandle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if info.Align != tc.align {
				t.Errorf("align: got %d, want %d", info.Align, tc.align)
			}
			if info.Kind != tc.kind {
				t.Errorf("kind: got %d, want %d", info.Kind, tc.kind)
			}
		})
	}
}

func TestCalculateHandles(t *testing.T) {
	c := NewCalculator()
	for name, kind := range map[string]wit.TypeDefKind{
		"list":   &wit.List{Type: wit.U32{}},
		"own":    &wit.Own{},
		"borrow": &wit.Borrow{},
	} {
		info := c.Calculate(&wit.TypeDef{Kind: kind})
		if info.Size != HandleSize || info.Kind != KindHandle {
			t.Errorf("%s: got size %d kind %d, want handle", name, info.Size, info.Kind)
		}
	}
}

func TestCalculateRecord(t *testing.T) {
	c := NewCalculator()

	t.Run("empty", func(t *testing.T) {
		info := c.Calculate(&wit.TypeDef{Kind: &wit.Record{}})
		if info.Size != 0 || info.Kind != KindRecord {
			t.Errorf("got size %d kind %d", info.Size, info.Kind)
		}
	})

	t.Run("mixed_alignment", func(t *testing.T) {
		record := &wit.Record{
			Fields: []wit.Field{
				{Name: "a", Type: wit.U8{}},
				{Name: "b", Type: wit.U32{}},
				{Name: "c", Type: wit.U8{}},
				{Name: "name", Type: wit.String{}},
			},
		}
		info := c.Calculate(&wit.TypeDef{Kind: record})
		wantOffs := []uint32{0, 4, 8, 12}
		for i, f := range info.Fields {
			if f.Offset != wantOffs[i] {
				t.Errorf("field %s offset: got %d, want %d", f.Name, f.Offset, wantOffs[i])
			}
		}
		if info.Size != 16 || info.Align != 4 {
			t.Errorf("got size %d align %d, want 16/4", info.Size, info.Align)
		}
	})

	t.Run("nested", func(t *testing.T) {
		inner := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "x", Type: wit.U8{}},
			{Name: "y", Type: wit.F64{}},
		}}}
		outer := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
			{Name: "flag", Type: wit.Bool{}},
			{Name: "pos", Type: inner},
		}}}
		info := c.Calculate(outer)
		if info.Fields[1].Offset != 8 {
			t.Errorf("pos offset: got %d, want 8", info.Fields[1].Offset)
		}
		if info.Size != 24 || info.Align != 8 {
			t.Errorf("got size %d align %d, want 24/8", info.Size, info.Align)
		}
	})
}

func TestCalculateTagged(t *testing.T) {
	c := NewCalculator()

	opt := c.Calculate(&wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}})
	if opt.Size != 8 || opt.Align != 4 {
		t.Errorf("option<u32>: got %d/%d, want 8/4", opt.Size, opt.Align)
	}

	enum := c.Calculate(&wit.TypeDef{Kind: &wit.Enum{Cases: make([]wit.EnumCase, 3)}})
	if enum.Size != 1 {
		t.Errorf("enum: got size %d, want 1", enum.Size)
	}

	flags := c.Calculate(&wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 40)}})
	if flags.Size != 8 || flags.Align != 4 {
		t.Errorf("flags(40): got %d/%d, want 8/4", flags.Size, flags.Align)
	}
}

func TestSequential(t *testing.T) {
	offs, info := Sequential([]Info{{Size: 1, Align: 1}, {Size: 8, Align: 8}, {Size: 2, Align: 2}})
	want := []uint32{0, 8, 16}
	for i := range want {
		if offs[i] != want[i] {
			t.Errorf("offset %d: got %d, want %d", i, offs[i], want[i])
		}
	}
	if info.Size != 24 || info.Align != 8 {
		t.Errorf("got %d/%d, want 24/8", info.Size, info.Align)
	}
}

func TestAlignTo(t *testing.T) {
	tests := []struct{ off, align, want uint32 }{
		{0, 4, 0}, {1, 4, 4}, {4, 4, 4}, {5, 8, 8}, {7, 0, 7},
	}
	for _, tc := range tests {
		if got := AlignTo(tc.off, tc.align); got != tc.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tc.off, tc.align, got, tc.want)
		}
	}
}

package dynobj

import (
	"bytes"

	scriptheap "github.com/wippyai/script-heap"
	"github.com/wippyai/script-heap/errors"
	"github.com/wippyai/script-heap/gfxdef"
	"github.com/wippyai/script-heap/internal/stream"
	"github.com/wippyai/script-heap/pool"
	"github.com/wippyai/script-heap/rtti"
)

// CharacterTypeName tags engine characters in save data.
const CharacterTypeName = "Character"

// Character struct layout.
const (
	CharacterSize = 128

	CharID           = 0
	CharRoom         = 4
	CharX            = 8
	CharY            = 12
	CharFlags        = 16
	CharWalkSpeed    = 20 // int16
	CharTransparency = 22 // legacy 0-255 byte
	CharName         = 24
	CharNameLen      = 40
	CharInventory    = 64 // int16 per item
	CharInventoryLen = 32
)

// Characters manages the engine's fixed table of character structs. The
// table is allocated once and every slot is a persistent object, so the
// pool never frees it.
type Characters struct {
	fields
	base    scriptheap.Addr
	handles []pool.Handle

	// OnInventoryChange, if set, is called after a script writes an
	// inventory count.
	OnInventoryChange func(char, item int, count int16)
}

// NewCharacters allocates count characters and registers them.
func NewCharacters(env *Env, count int) (*Characters, error) {
	c := &Characters{fields: fields{env: env}, handles: make([]pool.Handle, count)}
	if count == 0 {
		return c, nil
	}
	base, err := env.alloc(0, uint64(count)*CharacterSize)
	if err != nil {
		return nil, err
	}
	c.base = base
	for i := range c.handles {
		if err := c.WriteInt32(c.Addr(i), CharID, int32(i)); err != nil {
			return nil, err
		}
	}
	if err := c.Register(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Characters) TypeName() string { return CharacterTypeName }

// Register adds every slot the pool does not know about, e.g. after the
// pool was reset outside of a restore.
func (c *Characters) Register() error {
	for i := range c.handles {
		addr := c.Addr(i)
		if h := c.env.Pool.AddressToHandle(addr); h != 0 {
			c.handles[i] = h
			continue
		}
		h, err := c.env.Pool.AddObject(addr, c, pool.ValueEngineObject, true)
		if err != nil {
			return err
		}
		c.handles[i] = h
	}
	return nil
}

// Count returns the number of characters.
func (c *Characters) Count() int {
	return len(c.handles)
}

// Addr returns the address of character i.
func (c *Characters) Addr(i int) scriptheap.Addr {
	return c.base + scriptheap.Addr(i*CharacterSize)
}

// Handle returns the handle of character i.
func (c *Characters) Handle(i int) pool.Handle {
	if i < 0 || i >= len(c.handles) {
		return 0
	}
	return c.handles[i]
}

// Index returns the character index of a slot address.
func (c *Characters) Index(addr scriptheap.Addr) (int, bool) {
	if len(c.handles) == 0 || addr < c.base {
		return 0, false
	}
	off := int(addr - c.base)
	if off%CharacterSize != 0 || off/CharacterSize >= len(c.handles) {
		return 0, false
	}
	return off / CharacterSize, true
}

func (c *Characters) check(i int) error {
	if i < 0 || i >= len(c.handles) {
		return errors.OutOfBounds(errors.PhaseAccess, []string{CharacterTypeName}, i, len(c.handles))
	}
	return nil
}

// WriteInt16 writes a field and reports inventory changes.
func (c *Characters) WriteInt16(addr scriptheap.Addr, off uint32, v int16) error {
	if err := c.fields.WriteInt16(addr, off, v); err != nil {
		return err
	}
	if c.OnInventoryChange == nil || off < CharInventory || off >= CharInventory+2*CharInventoryLen {
		return nil
	}
	if i, ok := c.Index(addr); ok {
		c.OnInventoryChange(i, int(off-CharInventory)/2, v)
	}
	return nil
}

// Transparency returns the transparency of character i in percent.
func (c *Characters) Transparency(i int) (int, error) {
	if err := c.check(i); err != nil {
		return 0, err
	}
	v, err := c.ReadInt8(c.Addr(i), CharTransparency)
	if err != nil {
		return 0, err
	}
	return gfxdef.LegacyTrans255ToTrans100(int(uint8(v))), nil
}

// SetTransparency sets the transparency of character i in percent.
func (c *Characters) SetTransparency(i, trans int) error {
	if err := c.check(i); err != nil {
		return err
	}
	if trans < 0 || trans > 100 {
		return errors.New(errors.PhaseAccess, errors.KindInvalidInput).
			Value(trans).Detail("transparency must be within 0..100").Build()
	}
	return c.WriteInt8(c.Addr(i), CharTransparency, int8(uint8(gfxdef.Trans100ToLegacyTrans255(trans))))
}

// Name returns the name of character i.
func (c *Characters) Name(i int) (string, error) {
	if err := c.check(i); err != nil {
		return "", err
	}
	b, err := c.env.copyOut(c.Addr(i)+CharName, CharNameLen)
	if err != nil {
		return "", accessErr(err, c.Addr(i), CharName)
	}
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b), nil
}

// SetName stores name, cut to fit the fixed field.
func (c *Characters) SetName(i int, name string) error {
	if err := c.check(i); err != nil {
		return err
	}
	buf := make([]byte, CharNameLen)
	copy(buf[:CharNameLen-1], name)
	if err := c.env.mem().Write(uint32(c.Addr(i)+CharName), buf); err != nil {
		return accessErr(err, c.Addr(i), CharName)
	}
	return nil
}

// Inventory returns how many of item character i carries.
func (c *Characters) Inventory(i, item int) (int16, error) {
	if err := c.check(i); err != nil {
		return 0, err
	}
	if item < 0 || item >= CharInventoryLen {
		return 0, errors.OutOfBounds(errors.PhaseAccess, []string{CharacterTypeName, "inventory"}, item, CharInventoryLen)
	}
	return c.ReadInt16(c.Addr(i), CharInventory+uint32(item)*2)
}

// SetInventory sets how many of item character i carries.
func (c *Characters) SetInventory(i, item int, count int16) error {
	if err := c.check(i); err != nil {
		return err
	}
	if item < 0 || item >= CharInventoryLen {
		return errors.OutOfBounds(errors.PhaseAccess, []string{CharacterTypeName, "inventory"}, item, CharInventoryLen)
	}
	return c.WriteInt16(c.Addr(i), CharInventory+uint32(item)*2, count)
}

// Dispose never frees a character slot.
func (c *Characters) Dispose(scriptheap.Addr, bool) bool {
	return false
}

func (c *Characters) CalcSerializeSize(scriptheap.Addr) uint32 {
	return 4
}

// Serialize writes only the character index; the struct contents are
// saved with the rest of the game state.
func (c *Characters) Serialize(addr scriptheap.Addr, w *stream.Writer) error {
	i, ok := c.Index(addr)
	if !ok {
		return errors.InvalidData(errors.PhaseSerialize, []string{CharacterTypeName}, "address is not a character slot")
	}
	w.WriteInt32(int32(i))
	return w.Err()
}

func (c *Characters) Unserialize(handle pool.Handle, r *stream.Reader, size uint32) error {
	if size != 4 {
		return errors.SizeMismatch(errors.PhaseUnserialize, int32(handle), CharacterTypeName, 4, int(size))
	}
	i := int(r.ReadInt32())
	if err := r.Err(); err != nil {
		return err
	}
	if i < 0 || i >= len(c.handles) {
		return errors.InvalidData(errors.PhaseUnserialize, []string{CharacterTypeName}, "character index out of range")
	}
	if _, err := c.env.Pool.AddUnserializedObject(c.Addr(i), c, handle, pool.ValueEngineObject, true); err != nil {
		return err
	}
	c.handles[i] = handle
	return nil
}

func (c *Characters) RemapTypeIDs(scriptheap.Addr, rtti.Remap) error { return nil }

func (c *Characters) TraverseRefs(scriptheap.Addr, func(pool.Handle)) {}

package main

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/wippyai/script-heap/dynobj"
	"github.com/wippyai/script-heap/savegame"
)

const maxPreview = 40

// objectInfo is the decoded view of one saved object.
type objectInfo struct {
	Handle   int32  `json:"handle"`
	Kind     string `json:"kind"`
	Type     string `json:"type,omitempty"`
	RefCount int32  `json:"refCount"`
	Size     int    `json:"size"`
	Summary  string `json:"summary"`
}

func u32(b []byte, off int) (uint32, bool) {
	if len(b) < off+4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[off:]), true
}

func typeName(s *savegame.Summary, id uint32) string {
	if id == 0 {
		return ""
	}
	if name, ok := s.TypeName(id); ok {
		return name
	}
	return "#" + strconv.FormatUint(uint64(id), 10)
}

// describe decodes the payload of o as far as its type tag allows.
func describe(s *savegame.Summary, o savegame.Object) objectInfo {
	info := objectInfo{
		Handle:   int32(o.Handle),
		Kind:     o.TypeName,
		RefCount: o.RefCount,
		Size:     len(o.Payload),
	}
	p := o.Payload
	switch o.TypeName {
	case dynobj.ArrayTypeName:
		id, _ := u32(p, 0)
		count, _ := u32(p, 4)
		elem, _ := u32(p, 8)
		info.Type = typeName(s, id&^dynobj.ArrayManagedFlag)
		info.Summary = fmt.Sprintf("%d x %d bytes", count, elem)
		if id&dynobj.ArrayManagedFlag != 0 {
			info.Summary += ", handles " + handleList(p[min(len(p), 12):], int(count))
		}
	case dynobj.StringTypeName:
		n, _ := u32(p, 0)
		text := p[min(len(p), 4):]
		text = text[:min(len(text), int(n))]
		if len(text) > maxPreview {
			info.Summary = strconv.Quote(string(text[:maxPreview])) + "..."
		} else {
			info.Summary = strconv.Quote(string(text))
		}
	case dynobj.UserObjectTypeName:
		id, _ := u32(p, 0)
		size, _ := u32(p, 4)
		info.Type = typeName(s, id)
		info.Summary = fmt.Sprintf("%d bytes", size)
	case dynobj.CharacterTypeName:
		idx, _ := u32(p, 0)
		info.Summary = fmt.Sprintf("character %d", int32(idx))
	default:
		info.Summary = fmt.Sprintf("%d bytes", len(p))
	}
	return info
}

func handleList(p []byte, count int) string {
	const shown = 8
	out := "["
	for i := 0; i < count && i < shown; i++ {
		h, ok := u32(p, i*4)
		if !ok {
			break
		}
		if i > 0 {
			out += " "
		}
		out += strconv.FormatInt(int64(int32(h)), 10)
	}
	if count > shown {
		out += " ..."
	}
	return out + "]"
}

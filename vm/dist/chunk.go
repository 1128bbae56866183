// Package dist implements the serialized method format for Javelin.
// Method bodies travel as content-hashed CBOR chunks whose constant
// pools are symbolic; the receiver links them against its own classes
// and verifies the hash.
package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/javelin/vm"
)

// Pool entry tags as they appear on the wire.
const (
	ConstInt uint8 = iota + 1
	ConstLong
	ConstFloat
	ConstDouble
	ConstString
	ConstClass
	ConstMethodRef
	ConstFieldRef
)

// PoolConst is one symbolic constant-pool entry.
type PoolConst struct {
	Tag uint8   `cbor:"1,keyasint"`
	I   int32   `cbor:"2,keyasint,omitempty"`
	L   int64   `cbor:"3,keyasint,omitempty"`
	F   float32 `cbor:"4,keyasint,omitempty"`
	D   float64 `cbor:"5,keyasint,omitempty"`
	S   string  `cbor:"6,keyasint,omitempty"`

	ClassName  string `cbor:"7,keyasint,omitempty"`
	MemberName string `cbor:"8,keyasint,omitempty"`
	MemberSig  string `cbor:"9,keyasint,omitempty"`
}

// HandlerEntry is one exception table row.
type HandlerEntry struct {
	Start    int32  `cbor:"1,keyasint"`
	End      int32  `cbor:"2,keyasint"`
	Handler  int32  `cbor:"3,keyasint"`
	CatchCPI uint16 `cbor:"4,keyasint,omitempty"`
}

// Chunk is one serialized method.
type Chunk struct {
	Hash      [32]byte       `cbor:"1,keyasint"`
	Name      string         `cbor:"2,keyasint"`
	Flags     uint16         `cbor:"3,keyasint,omitempty"`
	Params    []uint8        `cbor:"4,keyasint,omitempty"`
	Return    uint8          `cbor:"5,keyasint"`
	MaxStack  int32          `cbor:"6,keyasint"`
	MaxLocals int32          `cbor:"7,keyasint"`
	Code      []byte         `cbor:"8,keyasint"`
	Pool      []PoolConst    `cbor:"9,keyasint,omitempty"`
	Handlers  []HandlerEntry `cbor:"10,keyasint,omitempty"`
}

// Program is a self-contained set of chunks plus its entry point.
type Program struct {
	Main    string  `cbor:"1,keyasint"`
	Class   string  `cbor:"2,keyasint"`
	Methods []Chunk `cbor:"3,keyasint"`
}

// HashChunk computes the content hash of a chunk: the canonical encoding
// with the hash field zeroed.
func HashChunk(c *Chunk) ([32]byte, error) {
	clone := *c
	clone.Hash = [32]byte{}
	data, err := cborEncMode.Marshal(&clone)
	if err != nil {
		return [32]byte{}, fmt.Errorf("dist: hash chunk: %w", err)
	}
	return sha256.Sum256(data), nil
}

// SealChunk fills in the content hash.
func SealChunk(c *Chunk) error {
	h, err := HashChunk(c)
	if err != nil {
		return err
	}
	c.Hash = h
	return nil
}

// VerifyChunk recomputes the hash and checks it against the carried one.
func VerifyChunk(c *Chunk) error {
	h, err := HashChunk(c)
	if err != nil {
		return err
	}
	if h != c.Hash {
		return fmt.Errorf("dist: chunk %q hash mismatch", c.Name)
	}
	return nil
}

// Registry resolves the symbolic class names a chunk's pool mentions.
type Registry interface {
	ClassByName(name string) *vm.Class
}

// FromMethod serializes a method body into a sealed chunk. Only constant
// and symbolic-reference pool entries survive; resolved pointers do not
// travel.
func FromMethod(m *vm.Method) (*Chunk, error) {
	params := make([]uint8, len(m.Params))
	for i, p := range m.Params {
		params[i] = uint8(p)
	}
	c := &Chunk{
		Name:      m.Name,
		Flags:     uint16(m.Flags),
		Params:    params,
		Return:    uint8(m.Return),
		MaxStack:  int32(m.MaxStack),
		MaxLocals: int32(m.MaxLocals),
		Code:      m.Code,
	}
	for _, h := range m.Handlers {
		c.Handlers = append(c.Handlers, HandlerEntry{
			Start:    int32(h.Start),
			End:      int32(h.End),
			Handler:  int32(h.HandlerBCI),
			CatchCPI: h.CatchCPI,
		})
	}
	if m.Pool != nil {
		for cpi := uint16(1); int(cpi) < m.Pool.Len(); cpi++ {
			pc, err := fromPoolEntry(m.Pool.EntryAt(cpi))
			if err != nil {
				return nil, err
			}
			c.Pool = append(c.Pool, pc)
		}
	}
	if err := SealChunk(c); err != nil {
		return nil, err
	}
	return c, nil
}

func fromPoolEntry(e vm.PoolEntry) (PoolConst, error) {
	switch e.Tag {
	case vm.PoolInt:
		return PoolConst{Tag: ConstInt, I: e.IntVal}, nil
	case vm.PoolLong:
		return PoolConst{Tag: ConstLong, L: e.LongVal}, nil
	case vm.PoolFloat:
		return PoolConst{Tag: ConstFloat, F: e.FloatVal}, nil
	case vm.PoolDouble:
		return PoolConst{Tag: ConstDouble, D: e.DoubleVal}, nil
	case vm.PoolString:
		return PoolConst{Tag: ConstString, S: e.StrVal}, nil
	case vm.PoolClass:
		return PoolConst{Tag: ConstClass, ClassName: e.ClassName}, nil
	case vm.PoolMethodRef:
		pc := PoolConst{Tag: ConstMethodRef, ClassName: e.ClassName}
		if e.Method != nil {
			pc.MemberName = e.Method.Name
			pc.MemberSig = e.Method.Sig
		}
		return pc, nil
	case vm.PoolFieldRef:
		pc := PoolConst{Tag: ConstFieldRef, ClassName: e.ClassName}
		if e.Field != nil {
			pc.MemberName = e.Field.Name
		}
		return pc, nil
	}
	return PoolConst{}, fmt.Errorf("dist: pool entry tag %d does not serialize", e.Tag)
}

// Link attaches a verified chunk's body to a method declared on owner,
// resolving symbolic pool entries through the registry.
func Link(c *Chunk, owner *vm.Class, reg Registry) (*vm.Method, error) {
	if err := VerifyChunk(c); err != nil {
		return nil, err
	}
	params := make([]vm.Kind, len(c.Params))
	for i, p := range c.Params {
		params[i] = vm.Kind(p)
	}
	m := owner.NewMethod(c.Name, params, vm.Kind(c.Return), vm.AccessFlags(c.Flags))

	pool := vm.NewConstantPool()
	for _, pc := range c.Pool {
		if err := linkPoolConst(pool, pc, reg); err != nil {
			return nil, fmt.Errorf("dist: link %q: %w", c.Name, err)
		}
	}
	handlers := make([]vm.Handler, 0, len(c.Handlers))
	for _, h := range c.Handlers {
		handlers = append(handlers, vm.Handler{
			Start:      int(h.Start),
			End:        int(h.End),
			HandlerBCI: int(h.Handler),
			CatchCPI:   h.CatchCPI,
		})
	}
	m.SetCode(c.Code, int(c.MaxStack), int(c.MaxLocals), pool, handlers)
	return m, nil
}

func linkPoolConst(pool *vm.ConstantPool, pc PoolConst, reg Registry) error {
	switch pc.Tag {
	case ConstInt:
		pool.AddInt(pc.I)
	case ConstLong:
		pool.AddLong(pc.L)
	case ConstFloat:
		pool.AddFloat(pc.F)
	case ConstDouble:
		pool.AddDouble(pc.D)
	case ConstString:
		pool.AddString(pc.S)
	case ConstClass:
		if cl := reg.ClassByName(pc.ClassName); cl != nil {
			pool.AddClass(cl)
		} else {
			pool.AddClassName(pc.ClassName)
		}
	case ConstMethodRef:
		cl := reg.ClassByName(pc.ClassName)
		if cl == nil {
			pool.AddMethodRef(nil, nil)
			return nil
		}
		pool.AddMethodRef(cl, cl.FindMethod(pc.MemberName, pc.MemberSig))
	case ConstFieldRef:
		cl := reg.ClassByName(pc.ClassName)
		if cl == nil {
			pool.AddFieldRef(nil, nil)
			return nil
		}
		var target *vm.Field
		for k := cl; k != nil && target == nil; k = k.Super {
			for _, f := range k.Fields {
				if f.Name == pc.MemberName {
					target = f
					break
				}
			}
		}
		pool.AddFieldRef(cl, target)
	default:
		return fmt.Errorf("unknown pool tag %d", pc.Tag)
	}
	return nil
}

package relocate

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"reloc/internal/layout"
	"reloc/internal/types"
)

// Addr is a byte offset into an Arena. NilAddr is never handed out by Alloc.
type Addr uint32

const NilAddr Addr = 0

// FaultKind enumerates arena access violations.
type FaultKind uint8

const (
	FaultOOB FaultKind = iota + 1
	FaultReadOnly
)

// Fault is raised (as a panic value) on an illegal arena access. The arena
// models checked memory: an out-of-bounds or readonly-violating access is
// an invariant break in the caller, not a recoverable condition.
type Fault struct {
	Kind FaultKind
	Addr Addr
	Size int
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultOOB:
		return fmt.Sprintf("arena: access out of bounds at %d (+%d)", f.Addr, f.Size)
	case FaultReadOnly:
		return fmt.Sprintf("arena: write to read-only storage at %d (+%d)", f.Addr, f.Size)
	default:
		return fmt.Sprintf("arena: fault kind=%d at %d", f.Kind, f.Addr)
	}
}

type byteRange struct {
	start Addr
	end   Addr
}

func (r byteRange) overlaps(addr Addr, size int) bool {
	end := addr + Addr(size)
	return addr < r.end && r.start < end
}

func (r byteRange) contains(addr Addr, size int) bool {
	end := addr + Addr(size)
	return addr >= r.start && end <= r.end
}

// Arena is a flat byte store with read-only ranges and a scoped
// suspension window for post-move callbacks on qualified instances.
type Arena struct {
	Engine *layout.Engine

	mem       []byte
	brk       Addr
	readonly  []byteRange
	unsafeMut []byteRange
}

// NewArena allocates an arena of the given byte size. Offset 0 is reserved
// so NilAddr never aliases live storage.
func NewArena(engine *layout.Engine, size int) *Arena {
	if size < 16 {
		size = 16
	}
	return &Arena{
		Engine: engine,
		mem:    make([]byte, size),
		brk:    8,
	}
}

// Alloc reserves aligned storage for a value of the given type and returns
// its address.
func (a *Arena) Alloc(t types.TypeID) (Addr, error) {
	l, err := a.Engine.LayoutOf(t)
	if err != nil {
		return NilAddr, err
	}
	align := l.Align
	if align <= 0 {
		align = 1
	}
	alignAddr, err := safecast.Conv[Addr](align)
	if err != nil {
		return NilAddr, fmt.Errorf("alloc align overflow: %w", err)
	}
	addr := a.brk
	if rem := addr % alignAddr; rem != 0 {
		addr += alignAddr - rem
	}
	end := addr + Addr(l.Size)
	if int(end) > len(a.mem) {
		return NilAddr, fmt.Errorf("arena: out of memory (need %d bytes at %d, have %d)", l.Size, addr, len(a.mem))
	}
	a.brk = end
	return addr, nil
}

// MarkReadOnly freezes the byte range; later writes fault unless covered
// by an active WithUnsafeMut window.
func (a *Arena) MarkReadOnly(addr Addr, size int) {
	a.readonly = append(a.readonly, byteRange{start: addr, end: addr + Addr(size)})
}

// ClearReadOnly lifts every freeze overlapping the range.
func (a *Arena) ClearReadOnly(addr Addr, size int) {
	out := a.readonly[:0]
	for _, r := range a.readonly {
		if !r.overlaps(addr, size) {
			out = append(out, r)
		}
	}
	a.readonly = out
}

// WithUnsafeMut suspends the read-only guarantee for the destination range
// only, for the duration of fn. This is the audited escape hatch a
// post-move callback uses when repairing a read-only or immutable
// destination; externally referenced memory stays frozen.
func (a *Arena) WithUnsafeMut(addr Addr, size int, fn func()) {
	a.unsafeMut = append(a.unsafeMut, byteRange{start: addr, end: addr + Addr(size)})
	defer func() {
		a.unsafeMut = a.unsafeMut[:len(a.unsafeMut)-1]
	}()
	fn()
}

func (a *Arena) checkRead(addr Addr, size int) {
	if addr == NilAddr || int(addr)+size > len(a.mem) {
		panic(&Fault{Kind: FaultOOB, Addr: addr, Size: size})
	}
}

func (a *Arena) checkWrite(addr Addr, size int) {
	a.checkRead(addr, size)
	for _, r := range a.readonly {
		if !r.overlaps(addr, size) {
			continue
		}
		suspended := false
		for _, w := range a.unsafeMut {
			if w.contains(addr, size) {
				suspended = true
				break
			}
		}
		if !suspended {
			panic(&Fault{Kind: FaultReadOnly, Addr: addr, Size: size})
		}
	}
}

// Load reads size bytes (1, 2, 4, or 8) as a little-endian word.
func (a *Arena) Load(addr Addr, size int) uint64 {
	a.checkRead(addr, size)
	switch size {
	case 1:
		return uint64(a.mem[addr])
	case 2:
		return uint64(binary.LittleEndian.Uint16(a.mem[addr:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(a.mem[addr:]))
	case 8:
		return binary.LittleEndian.Uint64(a.mem[addr:])
	default:
		panic(&Fault{Kind: FaultOOB, Addr: addr, Size: size})
	}
}

// Store writes size bytes (1, 2, 4, or 8) as a little-endian word.
func (a *Arena) Store(addr Addr, size int, v uint64) {
	a.checkWrite(addr, size)
	switch size {
	case 1:
		a.mem[addr] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(a.mem[addr:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(a.mem[addr:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(a.mem[addr:], v)
	default:
		panic(&Fault{Kind: FaultOOB, Addr: addr, Size: size})
	}
}

// copyRaw is the bitwise move itself. It is not subject to the language
// level read-only rule: the destination storage is fresh and the source is
// about to be retired.
func (a *Arena) copyRaw(dst, src Addr, size int) {
	a.checkRead(src, size)
	a.checkRead(dst, size)
	copy(a.mem[dst:int(dst)+size], a.mem[src:int(src)+size])
}

// poison fills retired storage with a trap pattern. No destruction logic
// runs on the old bits, they simply stop being the value.
func (a *Arena) poison(addr Addr, size int) {
	a.checkRead(addr, size)
	for i := 0; i < size; i++ {
		a.mem[int(addr)+i] = 0xDD
	}
}

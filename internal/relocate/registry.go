package relocate

import (
	"reloc/internal/types"
)

// Callback is an executable post-move callback body. It is bound to new as
// the receiver and may read old, treating it as about to be retired. The
// contract requires it to be non-throwing, so the signature carries no
// error path.
type Callback func(new, old Ref)

// HookRegistry binds executable callback bodies to the types that declare
// them, and counts invocations so tests can assert the zero-cost and
// single-invocation properties.
type HookRegistry struct {
	bodies map[types.TypeID]Callback
	calls  map[types.TypeID]int
	total  int
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		bodies: make(map[types.TypeID]Callback, 8),
		calls:  make(map[types.TypeID]int, 8),
	}
}

// Register installs the callback body for a type.
func (r *HookRegistry) Register(t types.TypeID, cb Callback) {
	r.bodies[t] = cb
}

// TotalCalls returns the number of callback invocations performed.
func (r *HookRegistry) TotalCalls() int {
	if r == nil {
		return 0
	}
	return r.total
}

// CallsFor returns the invocation count for one type.
func (r *HookRegistry) CallsFor(t types.TypeID) int {
	if r == nil {
		return 0
	}
	return r.calls[t]
}

func (r *HookRegistry) invoke(t types.TypeID, newRef, oldRef Ref) {
	if r == nil {
		return
	}
	r.total++
	r.calls[t]++
	if cb, ok := r.bodies[t]; ok && cb != nil {
		cb(newRef, oldRef)
	}
}

package scene

// Handle identifies an entity inside an Arena. Handles are 1-based slot
// positions and are never reused, so a stale handle resolves to nil instead
// of to another entity.
type Handle uint32

const NoHandle Handle = 0

// Arena stores entities in insertion order. Removing an entity leaves a
// tombstone so that every other handle stays valid.
type Arena[T any] struct {
	slots []*T
	live  int
}

func (a *Arena[T]) Add(v *T) Handle {
	a.slots = append(a.slots, v)
	a.live++
	return Handle(len(a.slots))
}

func (a *Arena[T]) Get(h Handle) *T {
	if h == NoHandle || int(h) > len(a.slots) {
		return nil
	}
	return a.slots[h-1]
}

// Remove drops h and returns the entity it held, or nil.
func (a *Arena[T]) Remove(h Handle) *T {
	v := a.Get(h)
	if v == nil {
		return nil
	}
	a.slots[h-1] = nil
	a.live--
	return v
}

func (a *Arena[T]) Len() int { return a.live }

// Each visits live entities in insertion order. Removing the visited entity
// from inside fn is allowed.
func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := 0; i < len(a.slots); i++ {
		if v := a.slots[i]; v != nil {
			fn(Handle(i+1), v)
		}
	}
}

// First returns the oldest live entity.
func (a *Arena[T]) First() (Handle, *T) {
	for i, v := range a.slots {
		if v != nil {
			return Handle(i + 1), v
		}
	}
	return NoHandle, nil
}

// Handles returns a snapshot of the live handles in insertion order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ *T) { out = append(out, h) })
	return out
}

package goalarm

import (
	"sync"
	"sync/atomic"
)

// Thread safe atomic array + map.
// Fds with a small value use array indexing, fds beyond the array range
// fall into a map; for fd-shaped keys the array part wins by a wide
// margin over a mutexed map.
//
// Saving nil requires attention to semantics, as when loading fails to
// find a value in the map, it will also return nil.
type arrayMapUnion[T any] struct {
	arrSize int
	arr     []*atomic.Pointer[T]

	sMap sync.Map
}

// T only Pointer
func newArrayMapUnion[T any](arrSize int) *arrayMapUnion[T] {
	if arrSize < 1 {
		panic("newArrayMapUnion arrSize < 1")
	}
	amu := &arrayMapUnion[T]{
		arrSize: arrSize,
		arr:     make([]*atomic.Pointer[T], arrSize),
	}
	for i := 0; i < arrSize; i++ {
		amu.arr[i] = new(atomic.Pointer[T])
	}
	return amu
}

func (am *arrayMapUnion[T]) Load(i int) *T {
	if i < am.arrSize {
		return am.arr[i].Load()
	}
	if v, ok := am.sMap.Load(i); ok {
		return v.(*T)
	}
	return nil
}

func (am *arrayMapUnion[T]) Store(i int, v *T) {
	if i < am.arrSize {
		am.arr[i].Store(v)
		return
	}
	am.sMap.Store(i, v)
}

func (am *arrayMapUnion[T]) Delete(i int) {
	if i < am.arrSize {
		am.arr[i].Store(nil)
		return
	}
	am.sMap.Delete(i)
}

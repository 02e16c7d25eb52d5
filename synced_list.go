package main

import "sync"

type syncedList[T any] struct {
	list []T
	sync.Mutex
}

func (sl *syncedList[T]) add(item T) {
	sl.Lock()
	sl.list = append(sl.list, item)
	sl.Unlock()
}

// items returns a copy safe to read while adds continue.
func (sl *syncedList[T]) items() []T {
	sl.Lock()
	defer sl.Unlock()
	out := make([]T, len(sl.list))
	copy(out, sl.list)
	return out
}

// Package lock содержит помощники для взаимного исключения по ключу сущности.
package lock

import (
	"sort"
	"sync"
)

// Keyed выдаёт отдельный мьютекс на каждый идентификатор товара.
// Неиспользуемые мьютексы удаляются, поэтому карта не растёт бесконечно.
type Keyed struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed создаёт пустой набор блокировок.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[int64]*keyedEntry)}
}

// Lock захватывает блокировку одного ключа и возвращает функцию освобождения.
func (k *Keyed) Lock(id int64) func() {
	return k.LockAll(id)
}

// LockAll захватывает блокировки всех ключей в порядке возрастания.
// Повторы игнорируются. Единый порядок исключает взаимные блокировки.
func (k *Keyed) LockAll(ids ...int64) func() {
	keys := uniqueSorted(ids)

	entries := make([]*keyedEntry, 0, len(keys))
	for _, id := range keys {
		entry := k.acquire(id)
		entry.mu.Lock()
		entries = append(entries, entry)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(entries) - 1; i >= 0; i-- {
				entries[i].mu.Unlock()
				k.release(keys[i])
			}
		})
	}
}

// Len возвращает число ключей с активными владельцами или ожидающими.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *Keyed) acquire(id int64) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[id]
	if !ok {
		entry = &keyedEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (k *Keyed) release(id int64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.locks[id]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, id)
	}
}

func uniqueSorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

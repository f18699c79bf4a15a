/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package event

import (
	"sync"

	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/types"
)

// PoolStats 事件池统计
type PoolStats struct {
	Size     int // 已分配的槽位总数
	Free     int // 空闲槽位
	Borrowed int // 借出未归还
}

// arena is a growable slab of fixed-shape slots addressed by handle, with a
// free list of handles. It never shrinks.
type arena[T any] struct {
	mu      sync.Mutex
	slots   []T
	inUse   []bool
	free    []int
	newSlot func(handle int) T
}

func newArena[T any](initialSize int, newSlot func(handle int) T) *arena[T] {
	if initialSize < 0 {
		initialSize = 0
	}
	a := &arena[T]{
		slots:   make([]T, 0, initialSize),
		inUse:   make([]bool, 0, initialSize),
		free:    make([]int, 0, initialSize),
		newSlot: newSlot,
	}
	// 预分配，倒序入栈使借出顺序从0开始
	for h := 0; h < initialSize; h++ {
		a.slots = append(a.slots, newSlot(h))
		a.inUse = append(a.inUse, false)
	}
	for h := initialSize - 1; h >= 0; h-- {
		a.free = append(a.free, h)
	}
	return a
}

func (a *arena[T]) borrow() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.inUse[h] = true
		return a.slots[h]
	}
	h := len(a.slots)
	slot := a.newSlot(h)
	a.slots = append(a.slots, slot)
	a.inUse = append(a.inUse, true)
	return slot
}

// release reports false when the handle is not currently borrowed. reset,
// when set, runs on the slot before it rejoins the free list.
func (a *arena[T]) release(h int, reset func(T)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h < 0 || h >= len(a.inUse) || !a.inUse[h] {
		return false
	}
	if reset != nil {
		reset(a.slots[h])
	}
	a.inUse[h] = false
	a.free = append(a.free, h)
	return true
}

func (a *arena[T]) stats() PoolStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return PoolStats{
		Size:     len(a.slots),
		Free:     len(a.free),
		Borrowed: len(a.slots) - len(a.free),
	}
}

// StreamEventPool hands out base events shaped by one definition.
//
// Borrow never fails: when the free list is empty the arena grows. A borrowed
// event keeps whatever values its previous user left behind; callers must
// overwrite every attribute they read. Release gives up all access to the event.
type StreamEventPool struct {
	definition *types.Definition
	arena      *arena[*StreamEvent]
	log        logger.Logger
}

// NewStreamEventPool creates a pool with initialSize preallocated events.
func NewStreamEventPool(def *types.Definition, initialSize int) *StreamEventPool {
	p := &StreamEventPool{
		definition: def,
		log:        logger.Named("pool:" + def.ID()),
	}
	p.arena = newArena(initialSize, func(handle int) *StreamEvent {
		return &StreamEvent{
			data:       make([]any, def.Len()),
			definition: def,
			pool:       p,
			handle:     handle,
		}
	})
	return p
}

// Definition 池中事件的结构
func (p *StreamEventPool) Definition() *types.Definition {
	return p.definition
}

// Borrow takes an event from the free list. Kind is reset to Current and
// the timestamp to -1; attribute values are stale.
func (p *StreamEventPool) Borrow() *StreamEvent {
	e := p.arena.borrow()
	e.kind = Current
	e.timestamp = -1
	return e
}

// Release returns a borrowed event. Events of another pool and events that are
// not currently borrowed are ignored.
func (p *StreamEventPool) Release(e *StreamEvent) {
	if e == nil {
		return
	}
	if e.pool != p {
		p.log.Warn("ignoring release of an event owned by another pool")
		return
	}
	if !p.arena.release(e.handle, nil) {
		p.log.Warn("ignoring release of event handle %d which is not borrowed", e.handle)
	}
}

// Stats 返回池统计
func (p *StreamEventPool) Stats() PoolStats {
	return p.arena.stats()
}

// StateEventPool hands out correlated events with a fixed number of slots.
type StateEventPool struct {
	size  int
	arena *arena[*StateEvent]
	log   logger.Logger
}

// NewStateEventPool creates a pool of correlated events with size slots each.
func NewStateEventPool(size int, initialSize int) *StateEventPool {
	p := &StateEventPool{
		size: size,
		log:  logger.Named("pool:state"),
	}
	p.arena = newArena(initialSize, func(handle int) *StateEvent {
		return &StateEvent{
			streams: make([]*StreamEvent, size),
			pool:    p,
			handle:  handle,
		}
	})
	return p
}

// Size 每个关联事件的槽位数
func (p *StateEventPool) Size() int {
	return p.size
}

// Borrow takes a correlated event with all slots empty.
func (p *StateEventPool) Borrow() *StateEvent {
	e := p.arena.borrow()
	e.kind = Current
	e.timestamp = -1
	return e
}

// Release clears the slots and returns the structure to the free list.
func (p *StateEventPool) Release(e *StateEvent) {
	if e == nil {
		return
	}
	if e.pool != p {
		p.log.Warn("ignoring release of a state event owned by another pool")
		return
	}
	if !p.arena.release(e.handle, (*StateEvent).clear) {
		p.log.Warn("ignoring release of state event handle %d which is not borrowed", e.handle)
	}
}

// Stats 返回池统计
func (p *StateEventPool) Stats() PoolStats {
	return p.arena.stats()
}

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

type node[E any] struct {
	value E
	next  *node[E]
}

// Chunk is an ordered, singly linked batch of events with a cursor.
//
// Iteration goes through Reset/HasNext/Next only. The cursor is independent of
// the contents: Reset never mutates the chunk. A chunk is not safe for
// concurrent use; it belongs to the stage that fills it.
//
//	chunk.Reset()
//	for chunk.HasNext() {
//		ev := chunk.Next()
//		...
//	}
type Chunk[E any] struct {
	first    *node[E]
	last     *node[E]
	previous *node[E]
	current  *node[E]
	length   int
	spare    *node[E] // 回收的节点
}

// NewChunk creates an empty chunk.
func NewChunk[E any]() *Chunk[E] {
	return &Chunk[E]{}
}

// ChunkOf creates a chunk holding the given events in order.
func ChunkOf[E any](events ...E) *Chunk[E] {
	c := &Chunk[E]{}
	for _, e := range events {
		c.Add(e)
	}
	return c
}

func (c *Chunk[E]) newNode(e E) *node[E] {
	if n := c.spare; n != nil {
		c.spare = n.next
		n.value = e
		n.next = nil
		return n
	}
	return &node[E]{value: e}
}

func (c *Chunk[E]) recycle(n *node[E]) {
	var zero E
	n.value = zero
	n.next = c.spare
	c.spare = n
}

// Add appends an event at the end of the chunk.
func (c *Chunk[E]) Add(e E) {
	n := c.newNode(e)
	if c.last == nil {
		c.first = n
	} else {
		c.last.next = n
	}
	c.last = n
	c.length++
}

// Reset moves the cursor before the first event.
func (c *Chunk[E]) Reset() {
	c.previous = nil
	c.current = nil
}

func (c *Chunk[E]) nextNode() *node[E] {
	switch {
	case c.current != nil:
		return c.current.next
	case c.previous != nil:
		// 上一次Next返回的元素已被Remove
		return c.previous.next
	default:
		return c.first
	}
}

// HasNext reports whether Next would return an event.
func (c *Chunk[E]) HasNext() bool {
	return c.nextNode() != nil
}

// Next advances the cursor and returns the event under it.
// It returns the zero value when the chunk is exhausted.
func (c *Chunk[E]) Next() E {
	n := c.nextNode()
	if n == nil {
		var zero E
		return zero
	}
	if c.current != nil {
		c.previous = c.current
	}
	c.current = n
	return n.value
}

// Remove drops the event last returned by Next. It reports false when there
// is no such event.
func (c *Chunk[E]) Remove() bool {
	n := c.current
	if n == nil {
		return false
	}
	if c.previous == nil {
		c.first = n.next
	} else {
		c.previous.next = n.next
	}
	if c.last == n {
		c.last = c.previous
	}
	c.current = nil
	c.length--
	c.recycle(n)
	return true
}

// First returns the first event without moving the cursor.
func (c *Chunk[E]) First() (E, bool) {
	if c.first == nil {
		var zero E
		return zero, false
	}
	return c.first.value, true
}

// Len 返回事件个数
func (c *Chunk[E]) Len() int {
	return c.length
}

// IsEmpty 是否为空
func (c *Chunk[E]) IsEmpty() bool {
	return c.first == nil
}

// Clear empties the chunk and keeps its nodes for reuse.
func (c *Chunk[E]) Clear() {
	for n := c.first; n != nil; {
		next := n.next
		c.recycle(n)
		n = next
	}
	c.first = nil
	c.last = nil
	c.previous = nil
	c.current = nil
	c.length = 0
}

// Slice copies the events into a new slice without touching the cursor.
func (c *Chunk[E]) Slice() []E {
	out := make([]E, 0, c.length)
	for n := c.first; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

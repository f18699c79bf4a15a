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
	"fmt"
	"time"

	"github.com/rulego/streamcep/types"
)

// Kind 事件类型标签
type Kind int8

const (
	// Current 当前事件
	Current Kind = iota
	// Expired 过期事件
	Expired
	// Timer 定时器事件
	Timer
	// Reset 重置事件
	Reset
)

func (k Kind) String() string {
	switch k {
	case Current:
		return "CURRENT"
	case Expired:
		return "EXPIRED"
	case Timer:
		return "TIMER"
	case Reset:
		return "RESET"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ComplexEvent is the common view of base and correlated events flowing
// between processing stages.
type ComplexEvent interface {
	Kind() Kind
	SetKind(kind Kind)
	// Timestamp in unix milliseconds
	Timestamp() int64
	SetTimestamp(ts int64)
	// OutputData is the row a downstream stage reads: the event data of a
	// base event or the selector output of a correlated event.
	OutputData() []any
}

// StreamEvent is one row of one stream. Its arity is fixed by its definition.
type StreamEvent struct {
	data       []any
	timestamp  int64
	kind       Kind
	definition *types.Definition
	pool       *StreamEventPool
	handle     int
}

var _ ComplexEvent = (*StreamEvent)(nil)

// NewStreamEvent creates a free-standing event that is not owned by any pool.
// Missing trailing values stay nil, extra values are ignored.
func NewStreamEvent(def *types.Definition, ts int64, values ...any) *StreamEvent {
	e := &StreamEvent{
		data:       make([]any, def.Len()),
		timestamp:  ts,
		definition: def,
		handle:     -1,
	}
	copy(e.data, values)
	return e
}

func (e *StreamEvent) Kind() Kind            { return e.kind }
func (e *StreamEvent) SetKind(kind Kind)     { e.kind = kind }
func (e *StreamEvent) Timestamp() int64      { return e.timestamp }
func (e *StreamEvent) SetTimestamp(ts int64) { e.timestamp = ts }
func (e *StreamEvent) OutputData() []any     { return e.data }

// Definition returns the shape this event was created with.
func (e *StreamEvent) Definition() *types.Definition {
	return e.definition
}

// Data returns the backing row. Writes through the slice are visible on the event.
func (e *StreamEvent) Data() []any {
	return e.data
}

// Attribute 按位置读取属性
func (e *StreamEvent) Attribute(i int) any {
	return e.data[i]
}

// SetAttribute 按位置写入属性
func (e *StreamEvent) SetAttribute(i int, v any) {
	e.data[i] = v
}

// Get reads an attribute by name.
func (e *StreamEvent) Get(name string) (any, bool) {
	if e.definition == nil {
		return nil, false
	}
	pos, ok := e.definition.Position(name)
	if !ok {
		return nil, false
	}
	return e.data[pos], true
}

// SetData overwrites the row in place. Values beyond the arity are ignored
// and positions without a value are set to nil.
func (e *StreamEvent) SetData(values ...any) {
	n := copy(e.data, values)
	for i := n; i < len(e.data); i++ {
		e.data[i] = nil
	}
}

// Pool returns the owning pool, nil for free-standing events.
func (e *StreamEvent) Pool() *StreamEventPool {
	return e.pool
}

// Release returns the event to its owning pool. No-op for free-standing events.
func (e *StreamEvent) Release() {
	if e.pool != nil {
		e.pool.Release(e)
	}
}

func (e *StreamEvent) String() string {
	return fmt.Sprintf("StreamEvent{ts=%d, kind=%s, data=%v}", e.timestamp, e.kind, e.data)
}

// StateEvent is a correlated event: one base-event slot per stream position
// of a join or pattern. It references base events but does not own them.
type StateEvent struct {
	streams   []*StreamEvent
	output    []any
	timestamp int64
	kind      Kind
	pool      *StateEventPool
	handle    int
}

var _ ComplexEvent = (*StateEvent)(nil)

// NewStateEvent creates a free-standing correlated event with size slots.
func NewStateEvent(size int) *StateEvent {
	return &StateEvent{
		streams:   make([]*StreamEvent, size),
		timestamp: time.Now().UnixMilli(),
		handle:    -1,
	}
}

func (e *StateEvent) Kind() Kind            { return e.kind }
func (e *StateEvent) SetKind(kind Kind)     { e.kind = kind }
func (e *StateEvent) Timestamp() int64      { return e.timestamp }
func (e *StateEvent) SetTimestamp(ts int64) { e.timestamp = ts }

// OutputData returns the selector output, nil until SetOutputData is called.
func (e *StateEvent) OutputData() []any { return e.output }

// SetOutputData sets the selector output of the correlated event.
func (e *StateEvent) SetOutputData(values []any) {
	e.output = values
}

// Size 槽位个数
func (e *StateEvent) Size() int {
	return len(e.streams)
}

// Stream returns the base event at the stream position, nil when empty.
func (e *StateEvent) Stream(position int) *StreamEvent {
	return e.streams[position]
}

// SetStream places a base event at the stream position.
func (e *StateEvent) SetStream(position int, ev *StreamEvent) {
	e.streams[position] = ev
}

// Pool returns the owning pool, nil for free-standing events.
func (e *StateEvent) Pool() *StateEventPool {
	return e.pool
}

// Release returns the correlated event structure to its pool. Base events in
// its slots are not released.
func (e *StateEvent) Release() {
	if e.pool != nil {
		e.pool.Release(e)
	}
}

func (e *StateEvent) clear() {
	for i := range e.streams {
		e.streams[i] = nil
	}
	e.output = nil
}

func (e *StateEvent) String() string {
	return fmt.Sprintf("StateEvent{ts=%d, kind=%s, streams=%v}", e.timestamp, e.kind, e.streams)
}

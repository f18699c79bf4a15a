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

package output

import (
	"fmt"
	"sync"

	"github.com/rulego/streamcep/debugger"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/logger"
	"github.com/rulego/streamcep/table"
	"github.com/rulego/streamcep/types"
)

// Callback is the terminal stage of a query.
type Callback interface {
	// Send applies the first count events of chunk. The chunk is only
	// borrowed for the duration of the call.
	Send(chunk *event.Chunk[event.ComplexEvent], count int) error
}

// Config 输出回调配置，部署后不可变
type Config struct {
	QueryName            string
	Action               Action
	Table                table.Table
	MatchingStreamIndex  int
	ConvertToStreamEvent bool
	// StatePool supplies the correlated events handed to the table.
	StatePool *event.StateEventPool
	// Converter and StreamPool are required when ConvertToStreamEvent is set;
	// converted events are borrowed from StreamPool.
	Converter  *event.Converter
	StreamPool *event.StreamEventPool
	Debugger   *debugger.Debugger
}

// TableCallback drives one table mutation per Send. Concurrent Send calls on
// the same instance are serialized.
type TableCallback struct {
	mu sync.Mutex

	queryName string
	action    Action
	table     table.Table
	matching  int
	convert   bool
	statePool *event.StateEventPool
	converter *event.Converter
	pool      *event.StreamEventPool
	debugger  *debugger.Debugger

	// reused across batches, guarded by mu
	out       *event.Chunk[*event.StateEvent]
	converted []*event.StreamEvent

	stats *StatsCollector
	log   logger.Logger
}

var _ Callback = (*TableCallback)(nil)

// NewTableCallback validates cfg and creates the callback. Missing or
// incompatible artifacts are configuration errors.
func NewTableCallback(cfg Config) (*TableCallback, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("%w: output callback needs a table", types.ErrConfiguration)
	}
	if cfg.Action == nil {
		return nil, fmt.Errorf("%w: output callback needs an action", types.ErrConfiguration)
	}
	if err := cfg.Action.validate(); err != nil {
		return nil, err
	}
	if cfg.StatePool == nil {
		return nil, fmt.Errorf("%w: output callback needs a state event pool", types.ErrConfiguration)
	}
	if cfg.MatchingStreamIndex < 0 || cfg.MatchingStreamIndex >= cfg.StatePool.Size() {
		return nil, fmt.Errorf("%w: matching stream index %d outside correlated event of size %d",
			types.ErrConfiguration, cfg.MatchingStreamIndex, cfg.StatePool.Size())
	}
	if cond := conditionOf(cfg.Action); cond != nil && cond.MatchingStreamIndex() != cfg.MatchingStreamIndex {
		return nil, fmt.Errorf("%w: condition bound to stream %d, callback to %d",
			types.ErrConfiguration, cond.MatchingStreamIndex(), cfg.MatchingStreamIndex)
	}
	if cfg.ConvertToStreamEvent {
		if cfg.Converter == nil || cfg.StreamPool == nil {
			return nil, fmt.Errorf("%w: conversion needs a converter and a stream event pool", types.ErrConfiguration)
		}
		if !cfg.StreamPool.Definition().SameShape(cfg.Converter.Target()) {
			return nil, fmt.Errorf("%w: stream pool %s does not match converter target %s",
				types.ErrConfiguration, cfg.StreamPool.Definition().ID(), cfg.Converter.Target().ID())
		}
	}
	name := cfg.QueryName
	if name == "" {
		name = cfg.Table.Definition().ID()
	}
	return &TableCallback{
		queryName: name,
		action:    cfg.Action,
		table:     cfg.Table,
		matching:  cfg.MatchingStreamIndex,
		convert:   cfg.ConvertToStreamEvent,
		statePool: cfg.StatePool,
		converter: cfg.Converter,
		pool:      cfg.StreamPool,
		debugger:  cfg.Debugger,
		out:       event.NewChunk[*event.StateEvent](),
		stats:     NewStatsCollector(),
		log:       logger.Named("output:" + name),
	}, nil
}

// Send builds a correlated-event chunk from the first count events and
// invokes the table operation of the configured action. Errors abort the
// batch; rows already written stay written.
func (c *TableCallback) Send(chunk *event.Chunk[event.ComplexEvent], count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debugger != nil {
		first, _ := chunk.First()
		c.debugger.CheckBreakPoint(c.queryName, debugger.Out, first)
	}
	chunk.Reset()
	if count <= 0 || chunk.IsEmpty() {
		return nil
	}
	c.stats.IncrementBatches()
	defer c.releaseBatch()

	n := 0
	for ; n < count && chunk.HasNext(); n++ {
		raw := chunk.Next()
		base, err := c.baseEvent(raw)
		if err != nil {
			c.stats.IncrementFailures()
			return err
		}
		se := c.statePool.Borrow()
		se.SetStream(c.matching, base)
		se.SetKind(c.kindOf(raw))
		se.SetTimestamp(raw.Timestamp())
		c.out.Add(se)
	}
	c.stats.AddEvents(n)

	if err := c.dispatch(count); err != nil {
		c.stats.IncrementFailures()
		c.log.Debug("%s batch of %d events failed: %v", c.action.Name(), n, err)
		return err
	}
	return nil
}

func (c *TableCallback) baseEvent(raw event.ComplexEvent) (*event.StreamEvent, error) {
	if c.convert {
		ev, borrowed, err := c.converter.Convert(raw, c.pool)
		if err != nil {
			return nil, err
		}
		if borrowed {
			ev.SetKind(c.kindOf(raw))
			c.converted = append(c.converted, ev)
			c.stats.IncrementConversions()
		}
		return ev, nil
	}
	ev, ok := raw.(*event.StreamEvent)
	if !ok || ev == nil {
		return nil, fmt.Errorf("%w: %T is not a stream event and conversion is disabled", types.ErrConversion, raw)
	}
	return ev, nil
}

// kindOf 转换后的事件一律作为当前事件写表，过期事件也不例外
func (c *TableCallback) kindOf(raw event.ComplexEvent) event.Kind {
	if c.convert && raw.Kind() == event.Expired {
		return event.Current
	}
	return raw.Kind()
}

func (c *TableCallback) dispatch(count int) error {
	switch a := c.action.(type) {
	case Insert:
		return c.table.Insert(c.out, c.matching, count)
	case Delete:
		return c.table.Delete(c.out, a.Condition, count)
	case Update:
		return c.table.Update(c.out, a.Condition, a.Set, count)
	case UpdateOrInsert:
		return c.table.UpdateOrInsert(c.out, a.Condition, a.Set, c.matching, count)
	default:
		return fmt.Errorf("%w: output action %T", types.ErrUnsupported, a)
	}
}

// releaseBatch returns every event borrowed for the current batch.
func (c *TableCallback) releaseBatch() {
	c.out.Reset()
	for c.out.HasNext() {
		c.statePool.Release(c.out.Next())
	}
	c.out.Clear()
	for i, ev := range c.converted {
		c.pool.Release(ev)
		c.converted[i] = nil
	}
	c.converted = c.converted[:0]
}

// QueryName 所属查询名称
func (c *TableCallback) QueryName() string {
	return c.queryName
}

// Action 输出动作
func (c *TableCallback) Action() Action {
	return c.action
}

// Table 目标表
func (c *TableCallback) Table() table.Table {
	return c.table
}

// MatchingStreamIndex 基础事件在关联事件中的位置
func (c *TableCallback) MatchingStreamIndex() int {
	return c.matching
}

// Stats 回调统计
func (c *TableCallback) Stats() *StatsCollector {
	return c.stats
}

// SetDebugger attaches or detaches (nil) the debug hook.
func (c *TableCallback) SetDebugger(d *debugger.Debugger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugger = d
}

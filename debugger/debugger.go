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

// Package debugger suspends query terminals for interactive inspection.
//
// A breakpoint is set on the IN or OUT terminal of a named query. When an
// event reaches a terminal with a breakpoint (or any terminal while stepping),
// the registered callback is invoked with the event and the calling goroutine
// blocks until Next or Play is called. Only one goroutine is suspended at a
// time; others reaching a breakpoint queue behind it.
package debugger

import (
	"sync"
	"sync/atomic"

	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/logger"
)

// Terminal identifies the entry or exit point of a query.
type Terminal int8

const (
	In Terminal = iota
	Out
)

func (t Terminal) String() string {
	if t == In {
		return "IN"
	}
	return "OUT"
}

// Callback is invoked before a goroutine suspends at a breakpoint.
type Callback func(ev event.ComplexEvent, query string, terminal Terminal, d *Debugger)

type breakpoint struct {
	query    string
	terminal Terminal
}

// Debugger 调试器，阻塞直到Next或Play被调用
type Debugger struct {
	mu          sync.RWMutex
	breakpoints map[breakpoint]struct{}
	callback    Callback

	suspend   sync.Mutex
	resume    chan struct{}
	stepping  atomic.Bool
	suspended atomic.Bool
	log       logger.Logger
}

// New 创建调试器
func New() *Debugger {
	return &Debugger{
		breakpoints: make(map[breakpoint]struct{}),
		resume:      make(chan struct{}, 1),
		log:         logger.Named("debugger"),
	}
}

// AcquireBreakPoint sets a breakpoint on a query terminal.
func (d *Debugger) AcquireBreakPoint(query string, terminal Terminal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[breakpoint{query, terminal}] = struct{}{}
	d.log.Debug("breakpoint set at %s:%s", query, terminal)
}

// ReleaseBreakPoint 移除断点
func (d *Debugger) ReleaseBreakPoint(query string, terminal Terminal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.breakpoints, breakpoint{query, terminal})
}

// ReleaseAllBreakPoints 移除全部断点
func (d *Debugger) ReleaseAllBreakPoints() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints = make(map[breakpoint]struct{})
}

// HasBreakPoint 是否设置了断点
func (d *Debugger) HasBreakPoint(query string, terminal Terminal) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.breakpoints[breakpoint{query, terminal}]
	return ok
}

// SetCallback 设置断点回调
func (d *Debugger) SetCallback(cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = cb
}

// CheckBreakPoint blocks the caller when query/terminal has a breakpoint or
// the debugger is stepping. It returns once the caller is resumed.
func (d *Debugger) CheckBreakPoint(query string, terminal Terminal, ev event.ComplexEvent) {
	d.mu.RLock()
	_, hit := d.breakpoints[breakpoint{query, terminal}]
	cb := d.callback
	d.mu.RUnlock()
	if !hit && !d.stepping.Load() {
		return
	}

	d.suspend.Lock()
	defer d.suspend.Unlock()
	// 丢弃没有等待者时发出的恢复信号
	select {
	case <-d.resume:
	default:
	}
	d.suspended.Store(true)
	d.log.Info("suspended at %s:%s", query, terminal)
	if cb != nil {
		cb(ev, query, terminal, d)
	}
	<-d.resume
	d.suspended.Store(false)
}

// Next resumes the suspended goroutine and suspends again at the next terminal reached.
func (d *Debugger) Next() {
	d.stepping.Store(true)
	d.signal()
}

// Play resumes the suspended goroutine until the next breakpoint.
func (d *Debugger) Play() {
	d.stepping.Store(false)
	d.signal()
}

// Suspended reports whether a goroutine is currently blocked at a terminal.
func (d *Debugger) Suspended() bool {
	return d.suspended.Load()
}

func (d *Debugger) signal() {
	select {
	case d.resume <- struct{}{}:
	default:
	}
}

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

package debugger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/types"
)

func sampleEvent() *event.StreamEvent {
	def := types.MustDefinition("S", types.Attribute{Name: "id", Type: types.INT})
	return event.NewStreamEvent(def, 1, 7)
}

// TestDebugger_NoBreakPoint 测试未设置断点时直接通过
func TestDebugger_NoBreakPoint(t *testing.T) {
	d := New()
	called := false
	d.SetCallback(func(event.ComplexEvent, string, Terminal, *Debugger) { called = true })
	d.CheckBreakPoint("q", Out, sampleEvent())
	assert.False(t, called)
	assert.False(t, d.Suspended())
}

// TestDebugger_SuspendAndPlay 测试断点挂起与恢复
func TestDebugger_SuspendAndPlay(t *testing.T) {
	d := New()
	d.AcquireBreakPoint("q", Out)
	assert.True(t, d.HasBreakPoint("q", Out))
	assert.False(t, d.HasBreakPoint("q", In))

	hits := make(chan event.ComplexEvent, 1)
	d.SetCallback(func(ev event.ComplexEvent, query string, terminal Terminal, _ *Debugger) {
		assert.Equal(t, "q", query)
		assert.Equal(t, Out, terminal)
		hits <- ev
	})

	ev := sampleEvent()
	done := make(chan struct{})
	go func() {
		d.CheckBreakPoint("q", Out, ev)
		close(done)
	}()

	select {
	case got := <-hits:
		assert.Same(t, ev, got.(*event.StreamEvent))
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	select {
	case <-done:
		t.Fatal("caller must block until resumed")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, d.Suspended())

	d.Play()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("caller not resumed")
	}
	assert.False(t, d.Suspended())
}

// TestDebugger_Next 测试单步执行
func TestDebugger_Next(t *testing.T) {
	d := New()
	d.AcquireBreakPoint("q", In)
	var terminals []Terminal
	d.SetCallback(func(_ event.ComplexEvent, _ string, terminal Terminal, dbg *Debugger) {
		terminals = append(terminals, terminal)
		if terminal == In {
			dbg.Next()
		} else {
			dbg.Play()
		}
	})

	d.CheckBreakPoint("q", In, sampleEvent())
	// 单步模式下下一个终端也会挂起
	d.CheckBreakPoint("q", Out, sampleEvent())
	// Play之后不再挂起
	d.CheckBreakPoint("other", Out, sampleEvent())
	assert.Equal(t, []Terminal{In, Out}, terminals)
}

// TestDebugger_StaleSignal 测试无人等待时的恢复信号不会跳过下一个断点
func TestDebugger_StaleSignal(t *testing.T) {
	d := New()
	d.Play()
	d.AcquireBreakPoint("q", Out)

	done := make(chan struct{})
	go func() {
		d.CheckBreakPoint("q", Out, sampleEvent())
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("stale resume signal must be discarded")
	case <-time.After(50 * time.Millisecond):
	}
	require.Eventually(t, d.Suspended, time.Second, 5*time.Millisecond)
	d.Play()
	<-done
}

// TestDebugger_ReleaseBreakPoints 测试移除断点
func TestDebugger_ReleaseBreakPoints(t *testing.T) {
	d := New()
	d.AcquireBreakPoint("a", In)
	d.AcquireBreakPoint("b", Out)
	d.ReleaseBreakPoint("a", In)
	assert.False(t, d.HasBreakPoint("a", In))
	assert.True(t, d.HasBreakPoint("b", Out))
	d.ReleaseAllBreakPoints()
	assert.False(t, d.HasBreakPoint("b", Out))
	require.Equal(t, "IN", In.String())
	require.Equal(t, "OUT", Out.String())
}

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
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/debugger"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/table"
	"github.com/rulego/streamcep/types"
)

func tDefinition() *types.Definition {
	return types.MustDefinition("T",
		types.Attribute{Name: "id", Type: types.INT},
		types.Attribute{Name: "qty", Type: types.INT},
	)
}

func newT(t *testing.T, rows ...[]any) *table.InMemoryTable {
	t.Helper()
	def, err := types.NewTableDefinition(tDefinition(), "id")
	require.NoError(t, err)
	tbl := table.NewInMemoryTable(def)
	for _, r := range rows {
		require.NoError(t, tbl.InsertRow(r...))
	}
	return tbl
}

func compiler(t *testing.T, tbl table.Table, matching int) *condition.Compiler {
	t.Helper()
	c, err := condition.NewCompiler(tbl.Definition().Definition, matching,
		condition.StreamRef{Position: matching, Definition: tDefinition()})
	require.NoError(t, err)
	return c
}

func newCallback(t *testing.T, tbl table.Table, action Action, matching int) *TableCallback {
	t.Helper()
	cb, err := NewTableCallback(Config{
		QueryName:           "q",
		Action:              action,
		Table:               tbl,
		MatchingStreamIndex: matching,
		StatePool:           event.NewStateEventPool(matching+1, 4),
	})
	require.NoError(t, err)
	return cb
}

func rawChunk(events ...*event.StreamEvent) *event.Chunk[event.ComplexEvent] {
	c := event.NewChunk[event.ComplexEvent]()
	for _, ev := range events {
		c.Add(ev)
	}
	return c
}

func tEvent(values ...any) *event.StreamEvent {
	return event.NewStreamEvent(tDefinition(), 1, values...)
}

// TestTableCallback_UpdateScenario 测试更新场景
func TestTableCallback_UpdateScenario(t *testing.T) {
	tbl := newT(t, []any{1, 5})
	c := compiler(t, tbl, 0)
	cond, err := c.CompileCondition("id == event.id")
	require.NoError(t, err)
	set, err := c.CompileUpdateSet([]types.Assignment{{Column: "qty", Expression: "event.qty"}})
	require.NoError(t, err)

	cb := newCallback(t, tbl, Update{Condition: cond, Set: set}, 0)
	require.NoError(t, cb.Send(rawChunk(tEvent(1, 9)), 1))
	assert.Equal(t, [][]any{{int32(1), int32(9)}}, tbl.Rows())
}

// TestTableCallback_DeleteScenario 测试删除不存在的行
func TestTableCallback_DeleteScenario(t *testing.T) {
	tbl := newT(t, []any{1, 5})
	cond, err := compiler(t, tbl, 0).CompileCondition("id == event.id")
	require.NoError(t, err)

	cb := newCallback(t, tbl, Delete{Condition: cond}, 0)
	require.NoError(t, cb.Send(rawChunk(tEvent(2, 0)), 1))
	assert.Equal(t, [][]any{{int32(1), int32(5)}}, tbl.Rows())

	require.NoError(t, cb.Send(rawChunk(tEvent(1, 0)), 1))
	assert.Equal(t, 0, tbl.Size())
}

// TestTableCallback_Variants 测试四种输出动作
func TestTableCallback_Variants(t *testing.T) {
	tbl := newT(t, []any{1, 5}, []any{2, 5}, []any{3, 7})
	c := compiler(t, tbl, 0)
	byID, err := c.CompileCondition("id == event.id")
	require.NoError(t, err)
	byQty, err := c.CompileCondition("qty == event.qty")
	require.NoError(t, err)
	double, err := c.CompileUpdateSet([]types.Assignment{{Column: "qty", Expression: "qty * 2"}})
	require.NoError(t, err)
	assign, err := c.CompileUpdateSet([]types.Assignment{{Column: "qty", Expression: "event.qty"}})
	require.NoError(t, err)

	// insert: 行数加一
	require.NoError(t, newCallback(t, tbl, Insert{}, 0).Send(rawChunk(tEvent(4, 1)), 1))
	assert.Equal(t, 4, tbl.Size())
	row, ok := tbl.Find(4)
	require.True(t, ok)
	assert.Equal(t, []any{int32(4), int32(1)}, row)

	// update: 只修改匹配的k行
	require.NoError(t, newCallback(t, tbl, Update{Condition: byQty, Set: double}, 0).Send(rawChunk(tEvent(0, 5)), 1))
	assert.Equal(t, [][]any{
		{int32(1), int32(10)}, {int32(2), int32(10)}, {int32(3), int32(7)}, {int32(4), int32(1)},
	}, tbl.Rows())

	// update_or_insert: 有匹配时更新，无匹配时插入一行
	upsert := newCallback(t, tbl, UpdateOrInsert{Condition: byID, Set: assign}, 0)
	require.NoError(t, upsert.Send(rawChunk(tEvent(3, 0)), 1))
	row, _ = tbl.Find(3)
	assert.Equal(t, int32(0), row[1])
	require.NoError(t, upsert.Send(rawChunk(tEvent(5, 6)), 1))
	assert.Equal(t, 5, tbl.Size())
	row, _ = tbl.Find(5)
	assert.Equal(t, []any{int32(5), int32(6)}, row)

	// delete: 删除恰好一行
	require.NoError(t, newCallback(t, tbl, Delete{Condition: byID}, 0).Send(rawChunk(tEvent(2, 0)), 1))
	assert.Equal(t, 4, tbl.Size())
	_, ok = tbl.Find(2)
	assert.False(t, ok)
}

// TestTableCallback_CountDecoupling 测试只处理前count个事件
func TestTableCallback_CountDecoupling(t *testing.T) {
	tbl := newT(t)
	cb := newCallback(t, tbl, Insert{}, 0)
	chunk := rawChunk(tEvent(1, 1), tEvent(2, 2), tEvent(3, 3), tEvent(4, 4))

	require.NoError(t, cb.Send(chunk, 2))
	assert.Equal(t, 2, tbl.Size())
	_, ok := tbl.Find(3)
	assert.False(t, ok)
	// 块内容保持不变，可以复用
	assert.Equal(t, 4, chunk.Len())

	require.NoError(t, cb.Send(rawChunk(tEvent(7, 7)), 0))
	require.NoError(t, cb.Send(rawChunk(), 3))
	assert.Equal(t, 2, tbl.Size())

	// count大于块长度时处理全部
	require.NoError(t, cb.Send(rawChunk(tEvent(8, 8)), 10))
	assert.Equal(t, 3, tbl.Size())

	assert.Equal(t, int64(2), cb.Stats().GetBatchCount())
	assert.Equal(t, int64(3), cb.Stats().GetEventCount())
}

// recordingTable captures the base events handed to each operation.
type recordingTable struct {
	def   *types.TableDefinition
	mu    sync.Mutex
	bases [][]*event.StreamEvent
	sizes []int
	kinds []event.Kind
}

func (r *recordingTable) Definition() *types.TableDefinition { return r.def }

func (r *recordingTable) record(events *event.Chunk[*event.StateEvent], slot, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var batch []*event.StreamEvent
	events.Reset()
	for i := 0; i < count && events.HasNext(); i++ {
		se := events.Next()
		r.sizes = append(r.sizes, se.Size())
		r.kinds = append(r.kinds, se.Kind())
		batch = append(batch, se.Stream(slot))
	}
	r.bases = append(r.bases, batch)
	return nil
}

func (r *recordingTable) Insert(events *event.Chunk[*event.StateEvent], slot int, count int) error {
	return r.record(events, slot, count)
}

func (r *recordingTable) Delete(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, count int) error {
	return r.record(events, cond.MatchingStreamIndex(), count)
}

func (r *recordingTable) Update(events *event.Chunk[*event.StateEvent], cond condition.CompiledCondition, _ condition.CompiledUpdateSet, count int) error {
	return r.record(events, cond.MatchingStreamIndex(), count)
}

func (r *recordingTable) UpdateOrInsert(events *event.Chunk[*event.StateEvent], _ condition.CompiledCondition, _ condition.CompiledUpdateSet, slot int, count int) error {
	return r.record(events, slot, count)
}

// TestTableCallback_MatchingStreamIndex 测试基础事件放在匹配位置
func TestTableCallback_MatchingStreamIndex(t *testing.T) {
	def, err := types.NewTableDefinition(tDefinition())
	require.NoError(t, err)
	rec := &recordingTable{def: def}
	cond, err := compiler(t, rec, 2).CompileCondition("id == event.id")
	require.NoError(t, err)

	cb := newCallback(t, rec, Delete{Condition: cond}, 2)
	a, b := tEvent(1, 1), tEvent(2, 2)
	require.NoError(t, cb.Send(rawChunk(a, b), 2))

	require.Len(t, rec.bases, 1)
	assert.Same(t, a, rec.bases[0][0])
	assert.Same(t, b, rec.bases[0][1])
	assert.Equal(t, []int{3, 3}, rec.sizes)
}

// TestTableCallback_Convert 测试转换为规范结构
func TestTableCallback_Convert(t *testing.T) {
	def, err := types.NewTableDefinition(tDefinition())
	require.NoError(t, err)
	rec := &recordingTable{def: def}

	source := types.MustDefinition("Raw",
		types.Attribute{Name: "qty", Type: types.STRING},
		types.Attribute{Name: "id", Type: types.STRING},
	)
	conv, err := event.NewConverter(source, tDefinition())
	require.NoError(t, err)
	streamPool := event.NewStreamEventPool(tDefinition(), 2)
	statePool := event.NewStateEventPool(1, 2)

	cb, err := NewTableCallback(Config{
		Action:               Insert{},
		Table:                rec,
		ConvertToStreamEvent: true,
		StatePool:            statePool,
		Converter:            conv,
		StreamPool:           streamPool,
	})
	require.NoError(t, err)
	assert.Equal(t, "T", cb.QueryName())

	raw := event.NewStreamEvent(source, 3, "9", "1")
	canonical := tEvent(2, 2)
	require.NoError(t, cb.Send(rawChunk(raw, canonical), 2))

	require.Len(t, rec.bases, 1)
	converted := rec.bases[0][0]
	assert.NotSame(t, raw, converted)
	assert.Equal(t, []any{int32(1), int32(9)}, converted.Data())
	assert.Same(t, canonical, rec.bases[0][1], "canonical events are not copied")
	assert.Equal(t, int64(1), cb.Stats().GetConversionCount())

	// 批次结束后借出的事件全部归还
	assert.Equal(t, 0, streamPool.Stats().Borrowed)
	assert.Equal(t, 0, statePool.Stats().Borrowed)

	bad := event.NewStreamEvent(source, 3, "many", "1")
	err = cb.Send(rawChunk(bad), 1)
	assert.True(t, errors.Is(err, types.ErrConversion))
	assert.Equal(t, int64(1), cb.Stats().GetFailureCount())
	assert.Equal(t, 0, streamPool.Stats().Borrowed)
}

// TestTableCallback_ConvertExpired 测试转换时过期事件作为当前事件写表
func TestTableCallback_ConvertExpired(t *testing.T) {
	def, err := types.NewTableDefinition(tDefinition())
	require.NoError(t, err)
	source := types.MustDefinition("Raw",
		types.Attribute{Name: "id", Type: types.STRING},
		types.Attribute{Name: "qty", Type: types.STRING},
	)
	conv, err := event.NewConverter(source, tDefinition())
	require.NoError(t, err)

	raw := event.NewStreamEvent(source, 3, "1", "2")
	raw.SetKind(event.Expired)
	canonical := tEvent(2, 2)
	canonical.SetKind(event.Expired)

	rec := &recordingTable{def: def}
	cb, err := NewTableCallback(Config{
		Action:               Insert{},
		Table:                rec,
		ConvertToStreamEvent: true,
		StatePool:            event.NewStateEventPool(1, 2),
		Converter:            conv,
		StreamPool:           event.NewStreamEventPool(tDefinition(), 2),
	})
	require.NoError(t, err)
	require.NoError(t, cb.Send(rawChunk(raw, canonical), 2))
	assert.Equal(t, []event.Kind{event.Current, event.Current}, rec.kinds)
	assert.Equal(t, event.Expired, raw.Kind(), "source events are not modified")
	assert.Equal(t, event.Expired, canonical.Kind(), "canonical events are not modified")

	// 未开启转换时保留原始类型
	plain := &recordingTable{def: def}
	require.NoError(t, newCallback(t, plain, Insert{}, 0).Send(rawChunk(canonical), 1))
	assert.Equal(t, []event.Kind{event.Expired}, plain.kinds)
}

// TestTableCallback_RawEventWithoutConversion 测试未开启转换时的非基础事件
func TestTableCallback_RawEventWithoutConversion(t *testing.T) {
	tbl := newT(t)
	statePool := event.NewStateEventPool(1, 1)
	cb, err := NewTableCallback(Config{Action: Insert{}, Table: tbl, StatePool: statePool})
	require.NoError(t, err)

	chunk := event.NewChunk[event.ComplexEvent]()
	chunk.Add(tEvent(1, 1))
	chunk.Add(event.NewStateEvent(1))
	err = cb.Send(chunk, 2)
	assert.True(t, errors.Is(err, types.ErrConversion))
	assert.Equal(t, 0, tbl.Size(), "the batch fails before the table is called")
	assert.Equal(t, 0, statePool.Stats().Borrowed)
}

// TestTableCallback_PartialFailure 测试批次中途失败保留已应用的修改
func TestTableCallback_PartialFailure(t *testing.T) {
	tbl := newT(t, []any{2, 0})
	cb := newCallback(t, tbl, Insert{}, 0)
	err := cb.Send(rawChunk(tEvent(1, 1), tEvent(2, 2), tEvent(3, 3)), 3)
	assert.True(t, errors.Is(err, types.ErrConstraintViolation))
	assert.Equal(t, 2, tbl.Size())
	_, ok := tbl.Find(1)
	assert.True(t, ok)
	_, ok = tbl.Find(3)
	assert.False(t, ok)
}

// TestTableCallback_ConcurrentSend 测试同一回调并发发送被串行化
func TestTableCallback_ConcurrentSend(t *testing.T) {
	const batches, perBatch = 16, 50
	tbl := newT(t)
	statePool := event.NewStateEventPool(1, 0)
	cb, err := NewTableCallback(Config{Action: Insert{}, Table: tbl, StatePool: statePool})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			chunk := event.NewChunk[event.ComplexEvent]()
			for i := 0; i < perBatch; i++ {
				chunk.Add(tEvent(b*perBatch+i, b))
			}
			if err := cb.Send(chunk, perBatch); err != nil {
				t.Error(err)
			}
		}(b)
	}
	wg.Wait()

	rows := tbl.Rows()
	require.Len(t, rows, batches*perBatch)
	// 每个批次的行连续出现
	for start := 0; start < len(rows); start += perBatch {
		batch := rows[start][1]
		for i := start; i < start+perBatch; i++ {
			assert.Equal(t, batch, rows[i][1])
		}
	}
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = int(r[0].(int32))
	}
	sort.Ints(ids)
	for i, id := range ids {
		assert.Equal(t, i, id)
	}
	// 串行化下关联事件池最多同时借出一个批次
	stats := statePool.Stats()
	assert.Equal(t, 0, stats.Borrowed)
	assert.LessOrEqual(t, stats.Size, perBatch)
	assert.Equal(t, int64(batches), cb.Stats().GetBatchCount())
}

// TestTableCallback_Debugger 测试断点阻塞发送
func TestTableCallback_Debugger(t *testing.T) {
	tbl := newT(t)
	cb := newCallback(t, tbl, Insert{}, 0)
	d := debugger.New()
	d.AcquireBreakPoint("q", debugger.Out)
	seen := make(chan event.ComplexEvent, 1)
	d.SetCallback(func(ev event.ComplexEvent, _ string, _ debugger.Terminal, _ *debugger.Debugger) {
		seen <- ev
	})
	cb.SetDebugger(d)

	first := tEvent(1, 1)
	done := make(chan error, 1)
	go func() { done <- cb.Send(rawChunk(first, tEvent(2, 2)), 2) }()

	select {
	case ev := <-seen:
		assert.Same(t, first, ev.(*event.StreamEvent))
	case <-time.After(time.Second):
		t.Fatal("breakpoint not hit")
	}
	assert.Equal(t, 0, tbl.Size())
	d.Play()
	require.NoError(t, <-done)
	assert.Equal(t, 2, tbl.Size())
}

// TestNewTableCallback_Validation 测试部署期配置校验
func TestNewTableCallback_Validation(t *testing.T) {
	tbl := newT(t)
	cond, err := compiler(t, tbl, 0).CompileCondition("id == event.id")
	require.NoError(t, err)
	pool := event.NewStateEventPool(1, 0)

	cases := map[string]Config{
		"缺少表":     {Action: Insert{}, StatePool: pool},
		"缺少动作":    {Table: tbl, StatePool: pool},
		"缺少条件":    {Action: Delete{}, Table: tbl, StatePool: pool},
		"缺少更新集":   {Action: Update{Condition: cond}, Table: tbl, StatePool: pool},
		"缺少关联事件池": {Action: Insert{}, Table: tbl},
		"匹配位置越界":  {Action: Insert{}, Table: tbl, StatePool: pool, MatchingStreamIndex: 1},
		"条件位置不一致": {Action: Delete{Condition: cond}, Table: tbl, StatePool: event.NewStateEventPool(2, 0), MatchingStreamIndex: 1},
		"缺少转换器":   {Action: Insert{}, Table: tbl, StatePool: pool, ConvertToStreamEvent: true},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTableCallback(cfg)
			assert.True(t, errors.Is(err, types.ErrConfiguration), "got %v", err)
		})
	}

	other := types.MustDefinition("Other", types.Attribute{Name: "id", Type: types.INT})
	conv, err := event.NewConverter(nil, tDefinition())
	require.NoError(t, err)
	_, err = NewTableCallback(Config{
		Action: Insert{}, Table: tbl, StatePool: pool, ConvertToStreamEvent: true,
		Converter: conv, StreamPool: event.NewStreamEventPool(other, 0),
	})
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

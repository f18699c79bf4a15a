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

package table

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/streamcep/condition"
	"github.com/rulego/streamcep/event"
	"github.com/rulego/streamcep/types"
)

func orderDefinition() *types.Definition {
	return types.MustDefinition("Orders",
		types.Attribute{Name: "id", Type: types.INT},
		types.Attribute{Name: "qty", Type: types.INT},
	)
}

func newOrders(t *testing.T, pk bool, rows ...[]any) *InMemoryTable {
	t.Helper()
	var keys []string
	if pk {
		keys = []string{"id"}
	}
	def, err := types.NewTableDefinition(orderDefinition(), keys...)
	require.NoError(t, err)
	tbl := NewInMemoryTable(def)
	for _, r := range rows {
		require.NoError(t, tbl.InsertRow(r...))
	}
	return tbl
}

// chunkOf wraps base events into correlated events at slot 0.
func chunkOf(events ...*event.StreamEvent) *event.Chunk[*event.StateEvent] {
	c := event.NewChunk[*event.StateEvent]()
	for _, ev := range events {
		se := event.NewStateEvent(1)
		se.SetStream(0, ev)
		c.Add(se)
	}
	return c
}

func orderEvent(id, qty any) *event.StreamEvent {
	return event.NewStreamEvent(orderDefinition(), 0, id, qty)
}

func compile(t *testing.T, tbl *InMemoryTable, on string, set ...types.Assignment) (condition.CompiledCondition, condition.CompiledUpdateSet) {
	t.Helper()
	c, err := condition.NewCompiler(tbl.Definition().Definition, 0,
		condition.StreamRef{Position: 0, Definition: orderDefinition()})
	require.NoError(t, err)
	cond, err := c.CompileCondition(on)
	require.NoError(t, err)
	if len(set) == 0 {
		return cond, nil
	}
	us, err := c.CompileUpdateSet(set)
	require.NoError(t, err)
	return cond, us
}

// TestInMemoryTable_Insert 测试插入
func TestInMemoryTable_Insert(t *testing.T) {
	tbl := newOrders(t, false)
	require.NoError(t, tbl.Insert(chunkOf(orderEvent(1, 5)), 0, 1))
	assert.Equal(t, 1, tbl.Size())
	assert.Equal(t, [][]any{{int32(1), int32(5)}}, tbl.Rows())

	// count小于块长度时只处理前count个
	require.NoError(t, tbl.Insert(chunkOf(orderEvent(2, 1), orderEvent(3, 1), orderEvent(4, 1)), 0, 2))
	assert.Equal(t, 3, tbl.Size())

	// 空槽位
	err := tbl.Insert(chunkOf(orderEvent(9, 9)), 1, 1)
	assert.True(t, errors.Is(err, types.ErrConversion))
}

// TestInMemoryTable_InsertByName 测试不同结构事件按名称映射
func TestInMemoryTable_InsertByName(t *testing.T) {
	tbl := newOrders(t, false)
	other := types.MustDefinition("Incoming",
		types.Attribute{Name: "qty", Type: types.LONG},
		types.Attribute{Name: "note", Type: types.STRING},
		types.Attribute{Name: "id", Type: types.LONG},
	)
	require.NoError(t, tbl.Insert(chunkOf(event.NewStreamEvent(other, 0, int64(7), "x", int64(3))), 0, 1))
	assert.Equal(t, [][]any{{int32(3), int32(7)}}, tbl.Rows())
}

// TestInMemoryTable_PrimaryKey 测试主键唯一性
func TestInMemoryTable_PrimaryKey(t *testing.T) {
	tbl := newOrders(t, true, []any{1, 5})

	err := tbl.Insert(chunkOf(orderEvent(2, 1), orderEvent(1, 1), orderEvent(3, 1)), 0, 3)
	assert.True(t, errors.Is(err, types.ErrConstraintViolation))
	// 失败前的事件保留
	assert.Equal(t, 2, tbl.Size())

	row, ok := tbl.Find(2)
	require.True(t, ok)
	assert.Equal(t, []any{int32(2), int32(1)}, row)
	_, ok = tbl.Find(3)
	assert.False(t, ok)
	_, ok = tbl.Find("1")
	assert.True(t, ok, "key values are coerced to the column type")
}

// TestInMemoryTable_TypeMismatch 测试类型不匹配
func TestInMemoryTable_TypeMismatch(t *testing.T) {
	tbl := newOrders(t, false)
	err := tbl.Insert(chunkOf(event.NewStreamEvent(orderDefinition(), 0, "one", 5)), 0, 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))
	assert.Equal(t, 0, tbl.Size())
}

// TestInMemoryTable_IntOverflow 测试写入超出INT范围或带小数的值
func TestInMemoryTable_IntOverflow(t *testing.T) {
	tbl := newOrders(t, false)
	err := tbl.Insert(chunkOf(orderEvent(1, int64(5_000_000_000))), 0, 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch), "got %v", err)
	err = tbl.Insert(chunkOf(orderEvent(1, 9.7)), 0, 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch), "got %v", err)
	assert.Equal(t, 0, tbl.Size())

	require.NoError(t, tbl.InsertRow(1, 5))
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "qty * 1000000000"})
	err = tbl.Update(chunkOf(orderEvent(1, 0)), cond, set, 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch), "got %v", err)
	assert.Equal(t, [][]any{{int32(1), int32(5)}}, tbl.Rows())

	cond, set = compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "qty / 2"})
	err = tbl.Update(chunkOf(orderEvent(1, 0)), cond, set, 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch), "got %v", err)
	assert.Equal(t, [][]any{{int32(1), int32(5)}}, tbl.Rows())
}

// TestInMemoryTable_NilPrimaryKey 测试空主键与空字符串主键互不冲突
func TestInMemoryTable_NilPrimaryKey(t *testing.T) {
	def, err := types.NewTableDefinition(types.MustDefinition("S",
		types.Attribute{Name: "k", Type: types.STRING},
		types.Attribute{Name: "v", Type: types.INT},
	), "k")
	require.NoError(t, err)
	tbl := NewInMemoryTable(def)
	require.NoError(t, tbl.InsertRow(nil, 1))
	require.NoError(t, tbl.InsertRow("", 2))
	assert.True(t, errors.Is(tbl.InsertRow(nil, 3), types.ErrConstraintViolation))

	row, ok := tbl.Find("")
	require.True(t, ok)
	assert.Equal(t, []any{"", int32(2)}, row)
	row, ok = tbl.Find(nil)
	require.True(t, ok)
	assert.Equal(t, []any{nil, int32(1)}, row)
}

// TestInMemoryTable_CompositeKeySeparator 测试联合主键中包含分隔字符的值
func TestInMemoryTable_CompositeKeySeparator(t *testing.T) {
	def, err := types.NewTableDefinition(types.MustDefinition("P",
		types.Attribute{Name: "a", Type: types.STRING},
		types.Attribute{Name: "b", Type: types.STRING},
	), "a", "b")
	require.NoError(t, err)
	tbl := NewInMemoryTable(def)
	require.NoError(t, tbl.InsertRow("x\x00", "y"))
	require.NoError(t, tbl.InsertRow("x", "\x00y"))
	require.NoError(t, tbl.InsertRow("1:x", ""))
	require.NoError(t, tbl.InsertRow("1", ":x"))
	assert.Equal(t, 4, tbl.Size())
}

// TestInMemoryTable_Delete 测试删除
func TestInMemoryTable_Delete(t *testing.T) {
	tbl := newOrders(t, false, []any{1, 5}, []any{2, 6}, []any{3, 7})
	cond, _ := compile(t, tbl, "id == event.id")

	require.NoError(t, tbl.Delete(chunkOf(orderEvent(2, 0)), cond, 1))
	assert.Equal(t, [][]any{{int32(1), int32(5)}, {int32(3), int32(7)}}, tbl.Rows())

	// 没有匹配行时不变
	require.NoError(t, tbl.Delete(chunkOf(orderEvent(42, 0)), cond, 1))
	assert.Equal(t, 2, tbl.Size())

	wide, _ := compile(t, tbl, "qty > event.qty")
	require.NoError(t, tbl.Delete(chunkOf(orderEvent(0, 0)), wide, 1))
	assert.Equal(t, 0, tbl.Size())

	assert.True(t, errors.Is(tbl.Delete(chunkOf(), nil, 1), types.ErrConfiguration))
}

// TestInMemoryTable_Update 测试更新k行其余不变
func TestInMemoryTable_Update(t *testing.T) {
	tbl := newOrders(t, false, []any{1, 5}, []any{1, 6}, []any{2, 7})
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "qty + event.qty"})

	require.NoError(t, tbl.Update(chunkOf(orderEvent(1, 10)), cond, set, 1))
	assert.Equal(t, [][]any{{int32(1), int32(15)}, {int32(1), int32(16)}, {int32(2), int32(7)}}, tbl.Rows())

	require.NoError(t, tbl.Update(chunkOf(orderEvent(9, 10)), cond, set, 1))
	assert.Equal(t, 3, tbl.Size())

	assert.True(t, errors.Is(tbl.Update(chunkOf(), cond, nil, 1), types.ErrConfiguration))
}

// TestInMemoryTable_UpdatePrimaryKey 测试更新主键
func TestInMemoryTable_UpdatePrimaryKey(t *testing.T) {
	tbl := newOrders(t, true, []any{1, 5}, []any{2, 6})
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "id", Expression: "event.qty"})

	// 1 -> 3
	require.NoError(t, tbl.Update(chunkOf(orderEvent(1, 3)), cond, set, 1))
	_, ok := tbl.Find(3)
	assert.True(t, ok)
	_, ok = tbl.Find(1)
	assert.False(t, ok)

	// 3 -> 2 冲突
	err := tbl.Update(chunkOf(orderEvent(3, 2)), cond, set, 1)
	assert.True(t, errors.Is(err, types.ErrConstraintViolation))
	row, ok := tbl.Find(3)
	require.True(t, ok)
	assert.Equal(t, int32(5), row[1])

	// 交换主键
	swap, swapSet := compile(t, tbl, "true", types.Assignment{Column: "id", Expression: "id == 2 ? 3 : 2"})
	require.NoError(t, tbl.Update(chunkOf(orderEvent(0, 0)), swap, swapSet, 1))
	row, _ = tbl.Find(2)
	assert.Equal(t, int32(5), row[1])
	row, _ = tbl.Find(3)
	assert.Equal(t, int32(6), row[1])
}

// TestInMemoryTable_UpdateOrInsert 测试更新或插入
func TestInMemoryTable_UpdateOrInsert(t *testing.T) {
	tbl := newOrders(t, true, []any{1, 5})
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "event.qty"})

	require.NoError(t, tbl.UpdateOrInsert(chunkOf(orderEvent(1, 9), orderEvent(2, 4)), cond, set, 0, 2))
	assert.Equal(t, [][]any{{int32(1), int32(9)}, {int32(2), int32(4)}}, tbl.Rows())

	// 同一批次中后续事件可以看到先前插入的行
	require.NoError(t, tbl.UpdateOrInsert(chunkOf(orderEvent(3, 1), orderEvent(3, 2)), cond, set, 0, 2))
	row, ok := tbl.Find(3)
	require.True(t, ok)
	assert.Equal(t, int32(2), row[1])
	assert.Equal(t, 3, tbl.Size())
}

// TestInMemoryTable_EvaluationAborts 测试求值失败中止批次
func TestInMemoryTable_EvaluationAborts(t *testing.T) {
	tbl := newOrders(t, false, []any{1, 5}, []any{2, 6})
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "qty / event.qty"})

	bad := event.NewStreamEvent(orderDefinition(), 0, 2, "zero")
	err := tbl.Update(chunkOf(orderEvent(1, 5), bad), cond, set, 2)
	assert.True(t, errors.Is(err, types.ErrEvaluation), "got %v", err)
	rows := tbl.Rows()
	assert.Equal(t, int32(1), rows[0][1])
	assert.Equal(t, int32(6), rows[1][1])
}

// TestInMemoryTable_Load 测试加载初始数据
func TestInMemoryTable_Load(t *testing.T) {
	tbl, err := FromConfig(types.TableConfig{
		ID:         "Orders",
		Attributes: orderDefinition().Attributes(),
		PrimaryKey: []string{"id"},
		Rows:       []map[string]any{{"id": 1, "qty": 5}, {"id": "2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int32(1), int32(5)}, {int32(2), nil}}, tbl.Rows())

	err = tbl.Load([]map[string]any{{"colour": "red"}})
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	tbl.Truncate()
	assert.Equal(t, 0, tbl.Size())
	_, ok := tbl.Find(1)
	assert.False(t, ok)
}

// TestInMemoryTable_Concurrent 测试并发批次
func TestInMemoryTable_Concurrent(t *testing.T) {
	tbl := newOrders(t, true)
	cond, set := compile(t, tbl, "id == event.id", types.Assignment{Column: "qty", Expression: "qty + 1"})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := tbl.UpdateOrInsert(chunkOf(orderEvent(i%10, 1)), cond, set, 0, 1); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, tbl.Size())
	total := int32(0)
	for _, r := range tbl.Rows() {
		total += r[1].(int32)
	}
	// 10次插入(qty=1) + 390次更新(+1)
	assert.Equal(t, int32(400), total)
}

// TestResolverFunc 测试查找函数适配
func TestResolverFunc(t *testing.T) {
	tbl := newOrders(t, false)
	r := ResolverFunc(func(id string) (Table, bool) {
		if id == "Orders" {
			return tbl, true
		}
		return nil, false
	})
	got, ok := r.Table("Orders")
	assert.True(t, ok)
	assert.Same(t, tbl, got.(*InMemoryTable))
	_, ok = r.Table("Missing")
	assert.False(t, ok)
}

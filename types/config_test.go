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

package types

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParsePlan 测试部署计划解析
func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(`
engine:
  logLevel: debug
  repository:
    backend: redis
    address: localhost:6379
tables:
  - id: T
    attributes:
      - {name: id, type: int}
    primaryKey: [id]
    rows:
      - {id: 1}
queries:
  - name: q
    streams:
      - {id: S, alias: s, attributes: [{name: id, type: int}]}
    output:
      table: T
      action: update_or_insert
      on: id == s.id
      set:
        - {column: id, expression: s.id}
      matchingStreamIndex: 0
      convertToStreamEvent: true
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", plan.Engine.LogLevel)
	assert.Equal(t, DefaultPoolConfig(), plan.Engine.Pool)
	assert.Equal(t, "redis", plan.Engine.Repository.Backend)
	assert.Equal(t, 5*time.Second, plan.Engine.Repository.Timeout)
	require.Len(t, plan.Tables, 1)
	assert.Equal(t, []string{"id"}, plan.Tables[0].PrimaryKey)
	require.Len(t, plan.Queries, 1)
	q := plan.Queries[0]
	assert.Equal(t, "s", q.Streams[0].Alias)
	assert.Equal(t, ActionUpdateOrInsert, q.Output.Action)
	assert.Equal(t, []Assignment{{Column: "id", Expression: "s.id"}}, q.Output.Set)
	assert.True(t, q.Output.ConvertToStreamEvent)
}

// TestParsePlan_Defaults 测试空计划使用默认配置
func TestParsePlan_Defaults(t *testing.T) {
	plan, err := ParsePlan([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), plan.Engine)
	assert.Empty(t, plan.Tables)

	_, err = ParsePlan([]byte("tables: [unclosed"))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

// TestLoadPlan 测试从文件加载
func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  pool:\n    initialSize: 3\n"), 0o644))
	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Engine.Pool.InitialSize)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestMarshalQuery 测试查询编译单元的序列化
func TestMarshalQuery(t *testing.T) {
	q := QueryConfig{
		Name:    "deleteStock",
		Streams: []StreamConfig{{ID: "S", Attributes: []Attribute{{Name: "symbol", Type: STRING}}}},
		Output:  OutputConfig{Table: "StockTable", Action: ActionDelete, On: "symbol == event.symbol"},
	}
	data, err := MarshalQuery(q)
	require.NoError(t, err)
	back, err := UnmarshalQuery(data)
	require.NoError(t, err)
	assert.Equal(t, q.Name, back.Name)
	assert.Equal(t, q.Output.Table, back.Output.Table)
	assert.Equal(t, q.Output.Action, back.Output.Action)
	assert.Equal(t, q.Output.On, back.Output.On)
	assert.Empty(t, back.Output.Set)
	assert.Equal(t, q.Streams[0].Attributes, back.Streams[0].Attributes)

	_, err = UnmarshalQuery([]byte("name: [x"))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

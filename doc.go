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

/*
Package streamcep 是复杂事件处理(CEP)查询的输出执行层。

一个查询在上游完成匹配之后，会把一批结果事件交给输出回调。回调把每个结果
包装为关联事件(state event)，然后对目标表执行插入、删除、更新或更新插入。
条件和更新集在部署时编译，运行时只做求值。

# 核心组件

• event - 流事件、关联事件、事件池、事件块以及结构转换器
• condition - 基于 expr 的条件与更新集编译
• table - 内存表，支持主键约束与批量变更
• output - 四种输出动作回调和统计
• debugger - 查询输出端的断点调试
• runtime - 单个查询的部署与事件发送
• repository - 编译单元仓库(文件系统、Badger、Redis)

# 入门示例

	engine := streamcep.New()
	engine.DefineTable(types.TableConfig{
		ID: "StockTable",
		Attributes: []types.Attribute{
			{Name: "symbol", Type: types.STRING},
			{Name: "price", Type: types.DOUBLE},
			{Name: "volume", Type: types.LONG},
		},
		PrimaryKey: []string{"symbol"},
	})

	rt, err := engine.Deploy(types.QueryConfig{
		Name:    "updateStock",
		Streams: []types.StreamConfig{{ID: "UpdateStockStream", Alias: "u", Attributes: attrs}},
		Output: types.OutputConfig{
			Table:  "StockTable",
			Action: types.ActionUpdate,
			On:     "symbol == u.symbol",
			Set:    []types.Assignment{{Column: "price", Expression: "u.price"}},
		},
	})
	if err != nil {
		panic(err)
	}
	rt.Emit(ctx, []map[string]any{{"symbol": "IBM", "price": 100.0}})

# 部署计划

表和查询也可以通过 YAML 部署计划加载:

	engine.LoadPlanFile("plan.yaml")

命令行工具 cepctl 可以运行部署计划并管理编译单元仓库。
*/
package streamcep
